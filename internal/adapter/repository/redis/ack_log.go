package redis

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultAckKey is the Redis set holding acknowledged request ids
const DefaultAckKey = "settlement:acks"

// AckLog is a domain.AckLog backed by a Redis set, so acknowledgements
// survive a restart of the engine.
type AckLog struct {
	client redis.Cmdable
	key    string
}

// NewAckLog creates an AckLog on client; an empty key uses DefaultAckKey
func NewAckLog(client redis.Cmdable, key string) *AckLog {
	if key == "" {
		key = DefaultAckKey
	}
	return &AckLog{client: client, key: key}
}

// Connect opens a client to addr and verifies it with a PING
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func (l *AckLog) Ack(ctx context.Context, id uuid.UUID) error {
	if err := l.client.SAdd(ctx, l.key, id.String()).Err(); err != nil {
		return fmt.Errorf("failed to ack request %s: %w", id, err)
	}
	return nil
}

func (l *AckLog) IsAcked(ctx context.Context, id uuid.UUID) (bool, error) {
	ok, err := l.client.SIsMember(ctx, l.key, id.String()).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check ack for request %s: %w", id, err)
	}
	return ok, nil
}

func (l *AckLog) Forget(ctx context.Context, id uuid.UUID) error {
	if err := l.client.SRem(ctx, l.key, id.String()).Err(); err != nil {
		return fmt.Errorf("failed to forget request %s: %w", id, err)
	}
	return nil
}
