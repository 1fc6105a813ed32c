package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "wisegate/pkg/errors"
)

// RedisNotifier publishes event frames on Redis pub/sub so other processes
// can relay them.
type RedisNotifier struct {
	client *redis.Client
	prefix string
}

func NewRedisNotifier(client *redis.Client, prefix string) *RedisNotifier {
	return &RedisNotifier{client: client, prefix: prefix}
}

func (n *RedisNotifier) Channel(channel string) string {
	return n.prefix + channel
}

func (n *RedisNotifier) Publish(ctx context.Context, channel string, payload any) error {
	b, err := json.Marshal(newEvent(channel, payload, time.Now()))
	if err != nil {
		return apperrors.ErrBroadcast.WithCause(err)
	}
	if err := n.client.Publish(ctx, n.Channel(channel), b).Err(); err != nil {
		return apperrors.ErrBroadcast.WithCause(err).WithDetail("channel", n.Channel(channel))
	}
	return nil
}
