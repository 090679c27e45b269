package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps failures of the Redis backend.
var ErrRedisUnavailable = errors.New("redis unavailable")

// RedisStorage keeps slots as plain Redis string keys named "<prefix>:<slot>".
type RedisStorage struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStorage returns a Redis-backed Storage. A ttl of zero stores keys without
// expiry.
func NewRedisStorage(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStorage {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStorage{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (r *RedisStorage) key(slot string) string {
	if r.prefix == "" {
		return slot
	}
	return r.prefix + ":" + slot
}

func (r *RedisStorage) Get(ctx context.Context, slot string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.key(slot)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: get %s: %v", ErrRedisUnavailable, slot, err)
	}
	return v, true, nil
}

func (r *RedisStorage) Set(ctx context.Context, slot, value string) error {
	if err := r.client.Set(ctx, r.key(slot), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrRedisUnavailable, slot, err)
	}
	return nil
}

func (r *RedisStorage) Remove(ctx context.Context, slot string) error {
	if err := r.client.Del(ctx, r.key(slot)).Err(); err != nil {
		return fmt.Errorf("%w: del %s: %v", ErrRedisUnavailable, slot, err)
	}
	return nil
}
