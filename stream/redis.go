package stream

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// RedisSink publishes events over a Redis pub/sub channel keyed by
// execution id. Unlike PulseSink, it offers no replay of events published
// before a subscriber attaches; it is the lighter-weight binding for
// deployments that already run Redis but not Pulse.
type RedisSink struct {
	client *redis.Client
	prefix string
}

// NewRedisSink constructs a RedisSink over an existing client. prefix is
// prepended to the execution id to form the pub/sub channel name.
func NewRedisSink(client *redis.Client, prefix string) *RedisSink {
	return &RedisSink{client: client, prefix: prefix}
}

func (s *RedisSink) channel(executionID string) string {
	return s.prefix + executionID
}

// Publish marshals event to JSON and publishes it on the execution's
// channel.
func (s *RedisSink) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, s.channel(event.ExecutionID), payload).Err()
}

// Subscribe attaches to the execution's Redis channel and forwards decoded
// events. The returned function closes the underlying subscription.
func (s *RedisSink) Subscribe(ctx context.Context, executionID string) (<-chan Event, func()) {
	pubsub := s.client.Subscribe(ctx, s.channel(executionID))
	out := make(chan Event, 64)

	go func() {
		defer close(out)
		ch := pubsub.Channel()
		for msg := range ch {
			var decoded Event
			if json.Unmarshal([]byte(msg.Payload), &decoded) == nil {
				out <- decoded
			}
		}
	}()

	return out, func() { _ = pubsub.Close() }
}

// Close closes the Redis client. Idempotent in practice since go-redis
// tolerates repeated Close calls returning an error that is safe to ignore.
func (s *RedisSink) Close(context.Context) error {
	return s.client.Close()
}
