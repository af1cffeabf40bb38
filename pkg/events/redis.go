package events

import (
	"context"
	"fmt"
)

type channelPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// RedisPublisher publishes every event on one pub/sub channel. The key is not used.
type RedisPublisher struct {
	client  channelPublisher
	channel string
}

func NewRedisPublisher(client channelPublisher, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	if err := p.client.Publish(ctx, p.channel, value); err != nil {
		return fmt.Errorf("redis publish to %s: %w", p.channel, err)
	}
	return nil
}

// Close is a no-op; the redis client is owned by the cache.
func (p *RedisPublisher) Close() error {
	return nil
}
