package broker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"wisegate/internal/config"
	"wisegate/internal/constants"
	"wisegate/internal/logger"
	"wisegate/pkg/errors"
	"wisegate/pkg/logging"
	"wisegate/pkg/metrics"
	"wisegate/pkg/tracing"
)

// SourceTopicHeader carries the original MQTT topic when a bridge relays
// device traffic into Kafka.
const SourceTopicHeader = "mqtt_topic"

type KafkaProducer struct {
	writer      *kafka.Writer
	logger      logger.Logger
	serviceName string
}

func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: constants.KafkaBatchTimeout,
		WriteTimeout: constants.KafkaWriteTimeout,
		Async:        false,
	}
	return &KafkaProducer{writer: w, logger: log, serviceName: constants.ServiceName}
}

func (p *KafkaProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	headers := tracing.InjectTraceContext(ctx, nil)

	start := time.Now()
	err := p.writer.WriteMessages(ctx,
		kafka.Message{
			Topic:   topic,
			Key:     key,
			Value:   value,
			Headers: headers,
			Time:    start,
		},
	)
	metrics.ObserveKafkaWriteDuration(p.serviceName, topic, time.Since(start))

	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	metrics.IncKafkaMessagesWritten(p.serviceName, topic)
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

type KafkaConsumer struct {
	cfg         config.KafkaConfig
	wg          sync.WaitGroup
	mu          sync.Mutex
	reader      *kafka.Reader
	logger      logger.Logger
	serviceName string
	connected   atomic.Bool
}

func NewKafkaConsumer(cfg config.KafkaConfig, log logger.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		cfg:         cfg,
		logger:      log,
		serviceName: "unknown",
	}
}

func (c *KafkaConsumer) SetServiceName(name string) {
	c.serviceName = name
}

func (c *KafkaConsumer) IsConnected() bool {
	return c.connected.Load()
}

// Consume reads the group topics sequentially. Every message is committed
// after the handler returns, whatever the outcome; there is no redelivery.
func (c *KafkaConsumer) Consume(ctx context.Context, topics []string, handler HandlerFunc) error {
	if len(topics) == 0 {
		return fmt.Errorf("no topics to subscribe")
	}

	c.logger.Infow("Creating Kafka reader",
		"topics", topics,
		"brokers", c.cfg.Brokers,
		"group_id", c.cfg.GroupID,
		"service_name", c.serviceName,
	)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.cfg.Brokers,
		GroupID:     c.cfg.GroupID,
		GroupTopics: topics,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	c.mu.Lock()
	c.reader = reader
	c.mu.Unlock()

	c.wg.Add(1)
	defer c.wg.Done()

	consumeCtx := logging.WithServiceName(ctx, c.serviceName)
	c.logger.InfowCtx(consumeCtx, "Started consuming", "topics", topics)

	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.connected.Store(false)
				c.logger.InfowCtx(consumeCtx, "Stopped consuming", "reason", "context canceled")
				return ctx.Err()
			}
			c.connected.Store(false)
			metrics.SetBusConnected(constants.BusKafka, false)
			c.logger.ErrorwCtx(consumeCtx, "Error fetching kafka message", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}
		c.connected.Store(true)
		metrics.SetBusConnected(constants.BusKafka, true)

		c.deliver(consumeCtx, m, handler)

		if err := reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.logger.ErrorwCtx(consumeCtx, "Failed to commit message",
				"error", err,
				"topic", m.Topic,
				"offset", m.Offset,
			)
		}
	}
}

func (c *KafkaConsumer) deliver(ctx context.Context, m kafka.Message, handler HandlerFunc) {
	msg := toMessage(m, time.Now().UTC())

	metrics.IncBusMessageReceived(constants.BusKafka, m.Topic)
	metrics.ObserveBusMessageSize(constants.BusKafka, len(m.Value))

	msgCtx := logging.WithMessageID(ctx, msg.ID)
	msgCtx = logging.WithTopic(msgCtx, msg.Topic)

	defer func() {
		if r := recover(); r != nil {
			c.logger.ErrorwCtx(msgCtx, "Panic recovered in Kafka handler",
				"error", errors.RecoverPanic(r),
			)
		}
	}()

	handler(msgCtx, msg)
}

func toMessage(m kafka.Message, receivedAt time.Time) Message {
	headers := tracing.HeadersToMap(m.Headers)
	topic := m.Topic
	if src := headers[SourceTopicHeader]; src != "" {
		topic = src
	}
	return Message{
		ID:         uuid.NewString(),
		Topic:      topic,
		Payload:    m.Value,
		Headers:    headers,
		ReceivedAt: receivedAt,
	}
}

func (c *KafkaConsumer) Close() error {
	c.mu.Lock()
	reader := c.reader
	c.mu.Unlock()

	var err error
	if reader != nil {
		err = reader.Close()
	}
	c.wg.Wait()
	return err
}
