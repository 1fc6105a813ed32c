package realtime

import (
	"context"
	"encoding/json"
	"time"

	"wisegate/internal/broker"
	apperrors "wisegate/pkg/errors"
)

// KafkaNotifier forwards event frames to one topic, keyed by channel.
type KafkaNotifier struct {
	producer broker.Producer
	topic    string
}

func NewKafkaNotifier(producer broker.Producer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic}
}

func (n *KafkaNotifier) Publish(ctx context.Context, channel string, payload any) error {
	b, err := json.Marshal(newEvent(channel, payload, time.Now()))
	if err != nil {
		return apperrors.ErrBroadcast.WithCause(err)
	}
	if err := n.producer.Publish(ctx, n.topic, []byte(channel), b); err != nil {
		return apperrors.ErrBroadcast.WithCause(err).WithDetail("topic", n.topic)
	}
	return nil
}
