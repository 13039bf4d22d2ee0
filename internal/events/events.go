// Package events publishes a one-line JSON event per completed evaluation
// to a Redis channel via github.com/go-redis/redis/v8, the same client
// the teacher uses in its queue/cache packages. Best-effort: publish
// failures are logged and never block or fail a request.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/oriys/sandboxd/internal/logging"
)

// DefaultChannel is the Redis Pub/Sub channel evaluation events publish
// to.
const DefaultChannel = "sandbox:events"

// ExecutionEvent mirrors audit.Entry minus the output byte counts.
type ExecutionEvent struct {
	RequestID    string  `json:"request_id"`
	SandboxID    *string `json:"sandbox_id,omitempty"`
	Stage        string  `json:"stage"`
	Status       string  `json:"status"`
	FuelConsumed uint64  `json:"fuel_consumed"`
	DurationMS   int64   `json:"duration_ms"`
	Timestamp    int64   `json:"timestamp"`
}

// Publisher fans out ExecutionEvents.
type Publisher interface {
	Publish(ctx context.Context, evt ExecutionEvent)
}

// RedisPublisher is the go-redis/v8-backed Publisher.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher constructs a publisher against addr, publishing on
// channel (DefaultChannel if empty).
func NewRedisPublisher(addr, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		channel: channel,
	}
}

// Publish serializes evt and publishes it, swallowing and logging any
// transport error.
func (p *RedisPublisher) Publish(ctx context.Context, evt ExecutionEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		logging.Op().Error("events: failed to encode execution event", "request_id", evt.RequestID, "error", err)
		return
	}
	publishCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := p.client.Publish(publishCtx, p.channel, data).Err(); err != nil {
		logging.Op().Warn("events: failed to publish execution event", "request_id", evt.RequestID, "error", err)
	}
}

// Close releases the Redis client.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// NoopPublisher discards every event; used when the Redis fan-out is
// disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, ExecutionEvent) {}
