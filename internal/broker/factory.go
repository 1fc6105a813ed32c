package broker

import (
	"fmt"

	"wisegate/internal/config"
	"wisegate/internal/constants"
	"wisegate/internal/logger"
)

func NewConsumer(cfg config.BrokerConfig, log logger.Logger) (Consumer, error) {
	switch cfg.Type {
	case constants.BusMQTT:
		return NewMQTTConsumer(cfg.MQTT, log), nil
	case constants.BusKafka:
		return NewKafkaConsumer(cfg.Kafka, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}

// NewProducer returns nil when no Kafka brokers are configured.
func NewProducer(cfg config.BrokerConfig, log logger.Logger) Producer {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil
	}
	return NewKafkaProducer(cfg.Kafka, log)
}
