package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store shared across instances via Redis. Counter keys live
// under a namespace prefix and expire with their window.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed Store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "ratelimit:"}
}

// Incr implements Store. INCR is atomic in Redis, so concurrent instances
// share one consistent window per key.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	k := s.prefix + key

	count, err := s.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("incrementing rate limit counter: %w", err)
	}

	if count == 1 {
		if err := s.client.PExpire(ctx, k, window).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("setting rate limit window expiry: %w", err)
		}
		return count, time.Now().Add(window), nil
	}

	ttl, err := s.client.PTTL(ctx, k).Result()
	if err != nil || ttl < 0 {
		// Counter without expiry (e.g. a crashed instance between INCR and
		// PEXPIRE): re-arm the window rather than lock the key out forever.
		if expErr := s.client.PExpire(ctx, k, window).Err(); expErr != nil {
			return 0, time.Time{}, fmt.Errorf("re-arming rate limit window: %w", expErr)
		}
		ttl = window
	}

	return count, time.Now().Add(ttl), nil
}
