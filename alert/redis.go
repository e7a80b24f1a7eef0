package alert

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// DefaultStream is the Redis stream fall events are appended to.
const DefaultStream = "fall:events"

// RedisSink appends events to a Redis stream for downstream consumers.
type RedisSink struct {
	client *redis.Client
	stream string
}

// NewRedisSink creates a sink writing to stream, or DefaultStream when empty.
func NewRedisSink(client *redis.Client, stream string) *RedisSink {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisSink{client: client, stream: stream}
}

// Send adds ev to the stream with "data" (JSON) and "timestamp" (unix
// seconds) fields.
func (s *RedisSink) Send(ctx context.Context, ev FallEvent) error {
	payload, err := ev.Marshal()
	if err != nil {
		return fmt.Errorf("encoding fall event: %w", err)
	}
	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"data":      string(payload),
			"timestamp": ev.DetectedAt.Unix(),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("adding to stream %s: %w", s.stream, err)
	}
	return nil
}
