package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/storage"
)

const (
	counterKeyPrefix = "ratelimit:count:"
	blockKeyPrefix   = "ratelimit:block:"
)

// RateLimitStore keeps rate-limit counters in Redis so limits hold across
// all instances of the service.
type RateLimitStore struct {
	client *redis.Client
}

func NewRateLimitStore(client *redis.Client) *RateLimitStore {
	return &RateLimitStore{client: client}
}

var _ storage.RateLimitStore = (*RateLimitStore)(nil)

func (s *RateLimitStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := s.client.Incr(ctx, counterKeyPrefix+key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr rate counter: %w", err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, counterKeyPrefix+key, window).Err(); err != nil {
			return 0, fmt.Errorf("expire rate counter: %w", err)
		}
	}
	return count, nil
}

func (s *RateLimitStore) Block(ctx context.Context, key string, duration time.Duration) error {
	if err := s.client.Set(ctx, blockKeyPrefix+key, "blocked", duration).Err(); err != nil {
		return fmt.Errorf("set block key: %w", err)
	}
	return nil
}

func (s *RateLimitStore) IsBlocked(ctx context.Context, key string) (bool, time.Duration, error) {
	ttl, err := s.client.TTL(ctx, blockKeyPrefix+key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("ttl block key: %w", err)
	}
	if ttl <= 0 {
		return false, 0, nil
	}
	return true, ttl, nil
}
