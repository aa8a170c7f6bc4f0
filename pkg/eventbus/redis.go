package eventbus

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisTransport publishes envelopes with Redis PUBLISH on the event subject
// used as channel name.
type RedisTransport struct {
	client redis.Cmdable
}

// NewRedisTransport creates a Redis transport.
func NewRedisTransport(client redis.Cmdable) (*RedisTransport, error) {
	if client == nil {
		return nil, fmt.Errorf("eventbus: redis client cannot be nil")
	}
	return &RedisTransport{client: client}, nil
}

// Publish sends payload to the subject channel.
func (t *RedisTransport) Publish(ctx context.Context, subject string, payload []byte) error {
	if subject == "" {
		return fmt.Errorf("eventbus: subject cannot be empty")
	}
	return t.client.Publish(ctx, subject, payload).Err()
}
