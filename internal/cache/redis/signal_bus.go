package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/marketglass/footprintd/internal/domain"
)

// SignalBus implements domain.SignalBus using Redis Pub/Sub for ephemeral
// delivery and Redis Streams for durable, ordered delivery of detected
// signals.
type SignalBus struct {
	rdb          *redis.Client
	streamMaxLen int64
}

// NewSignalBus creates a SignalBus backed by the given Client. Streams are
// trimmed to approximately maxLen entries.
func NewSignalBus(c *Client, maxLen int64) *SignalBus {
	return &SignalBus{rdb: c.Underlying(), streamMaxLen: maxLen}
}

// Publish sends a raw byte payload to a Redis Pub/Sub channel.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// StreamAppend appends a payload to a Redis stream using XADD with an
// approximate MAXLEN for automatic trimming.
func (sb *SignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	args := &redis.XAddArgs{
		Stream: stream,
		MaxLen: sb.streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"payload": payload,
		},
	}
	if err := sb.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: stream append %s: %w", stream, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SignalBus = (*SignalBus)(nil)
