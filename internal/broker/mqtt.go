package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"wisegate/internal/config"
	"wisegate/internal/constants"
	"wisegate/internal/logger"
	"wisegate/pkg/errors"
	"wisegate/pkg/logging"
	"wisegate/pkg/metrics"
)

type MQTTConsumer struct {
	cfg         config.MQTTConfig
	logger      logger.Logger
	serviceName string

	mu     sync.RWMutex
	client mqtt.Client
	now    func() time.Time
}

func NewMQTTConsumer(cfg config.MQTTConfig, log logger.Logger) *MQTTConsumer {
	return &MQTTConsumer{
		cfg:         cfg,
		logger:      log,
		serviceName: "unknown",
		now:         time.Now,
	}
}

func (c *MQTTConsumer) SetServiceName(name string) {
	c.serviceName = name
}

func (c *MQTTConsumer) options(filters map[string]byte, handler HandlerFunc) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.cfg.URL)
	opts.SetClientID(c.cfg.ClientID)
	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}

	keepAlive := c.cfg.KeepAlive
	if keepAlive <= 0 {
		keepAlive = constants.MQTTKeepAlive
	}
	opts.SetKeepAlive(keepAlive)
	opts.SetPingTimeout(constants.MQTTPingTimeout)
	if c.cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(c.cfg.ConnectTimeout)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(constants.MQTTConnectRetryInterval)
	opts.SetCleanSession(true)
	// Handlers run one at a time in arrival order.
	opts.SetOrderMatters(true)

	callback := c.messageHandler(handler)

	// Clean sessions drop subscriptions, so every (re)connect subscribes again.
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		metrics.SetBusConnected(constants.BusMQTT, true)
		c.logger.Infow("MQTT connected",
			"broker", c.cfg.URL,
			"client_id", c.cfg.ClientID,
			"service_name", c.serviceName,
		)

		token := client.SubscribeMultiple(filters, callback)
		if !token.WaitTimeout(constants.MQTTSubscribeTimeout) {
			c.logger.Errorw("MQTT subscribe timed out", "topics", filterNames(filters))
			return
		}
		if err := token.Error(); err != nil {
			c.logger.Errorw("MQTT subscribe failed", "error", err, "topics", filterNames(filters))
			return
		}
		c.logger.Infow("MQTT subscribed", "topics", filterNames(filters))
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		metrics.SetBusConnected(constants.BusMQTT, false)
		c.logger.Warnw("MQTT connection lost", "error", err, "broker", c.cfg.URL)
	})

	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		c.logger.Infow("MQTT reconnecting", "broker", c.cfg.URL)
	})

	return opts
}

func (c *MQTTConsumer) Consume(ctx context.Context, topics []string, handler HandlerFunc) error {
	if len(topics) == 0 {
		return fmt.Errorf("no topics to subscribe")
	}

	filters := make(map[string]byte, len(topics))
	for _, t := range topics {
		filters[t] = c.cfg.QoS
	}

	client := mqtt.NewClient(c.options(filters, handler))
	c.mu.Lock()
	c.client = client
	c.mu.Unlock()

	c.logger.Infow("Connecting to MQTT broker",
		"broker", c.cfg.URL,
		"topics", topics,
		"service_name", c.serviceName,
	)

	token := client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	<-ctx.Done()
	c.logger.Infow("Stopped consuming", "reason", "context canceled")
	return ctx.Err()
}

// messageHandler adapts paho deliveries to HandlerFunc. A panic escaping
// handler is logged here so the paho router goroutine survives it.
func (c *MQTTConsumer) messageHandler(handler HandlerFunc) mqtt.MessageHandler {
	return func(_ mqtt.Client, m mqtt.Message) {
		msg := Message{
			ID:         uuid.NewString(),
			Topic:      m.Topic(),
			Payload:    m.Payload(),
			ReceivedAt: c.now().UTC(),
		}

		metrics.IncBusMessageReceived(constants.BusMQTT, msg.Topic)
		metrics.ObserveBusMessageSize(constants.BusMQTT, len(msg.Payload))

		ctx := logging.WithServiceName(context.Background(), c.serviceName)
		ctx = logging.WithMessageID(ctx, msg.ID)
		ctx = logging.WithTopic(ctx, msg.Topic)

		defer func() {
			if r := recover(); r != nil {
				c.logger.ErrorwCtx(ctx, "Panic recovered in MQTT handler",
					"error", errors.RecoverPanic(r),
				)
			}
		}()

		handler(ctx, msg)
	}
}

func (c *MQTTConsumer) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client != nil && c.client.IsConnectionOpen()
}

func (c *MQTTConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(constants.MQTTDisconnectQuiesce)
		metrics.SetBusConnected(constants.BusMQTT, false)
		c.logger.Info("MQTT disconnected")
	}
	return nil
}

func filterNames(filters map[string]byte) []string {
	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	return names
}
