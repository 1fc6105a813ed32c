package broker

import (
	"context"
	"time"
)

// Message is one payload delivered by the bus.
type Message struct {
	ID         string
	Topic      string
	Payload    []byte
	Headers    map[string]string
	ReceivedAt time.Time
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
	Close() error
}

// Consumer subscribes to topics and delivers messages to handler one at a
// time per subscription. Consume blocks until ctx is done.
type Consumer interface {
	Consume(ctx context.Context, topics []string, handler HandlerFunc) error
	IsConnected() bool
	Close() error
	SetServiceName(name string)
}

// HandlerFunc absorbs every failure; bus clients never see an error from it.
type HandlerFunc func(ctx context.Context, msg Message)
