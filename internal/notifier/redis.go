package notifier

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/amishk599/personiojobs/internal/model"
)

// DefaultChannel is used by the broker publishers when none is configured.
const DefaultChannel = "personio_jobs.imported"

// Ensure RedisPublisher implements model.EventPublisher.
var _ model.EventPublisher = (*RedisPublisher)(nil)

// RedisPublisher sends the event payload to a pub/sub channel.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

func NewRedisPublisher(rdb *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{rdb: rdb, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev model.ImportedEvent) error {
	data, err := encode(ev)
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", p.channel, err)
	}
	return nil
}
