package realtime

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// EventSink is a push transport for realtime events. Publish failures are
// tolerated; the durable queue always has the event for polling.
type EventSink interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Name() string
}

// RedisSink publishes events over redis pub/sub
type RedisSink struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisSink creates a redis-backed sink. The connection is verified
// lazily on first publish.
func NewRedisSink(client *redis.Client, logger *zap.Logger) *RedisSink {
	return &RedisSink{client: client, logger: logger}
}

func (s *RedisSink) Publish(ctx context.Context, channel string, payload []byte) error {
	return s.client.Publish(ctx, channel, payload).Err()
}

func (s *RedisSink) Name() string { return "redis" }

// Envelope is the wire shape published to the sink
type Envelope struct {
	EventID   string                 `json:"event_id"`
	Type      string                 `json:"type"`
	Channel   string                 `json:"channel"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp int64                  `json:"timestamp"`
}

func (e Envelope) marshal() []byte {
	b, _ := json.Marshal(e)
	return b
}
