package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/storage"
	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/util"
)

// RateLimiter enforces a per-key request budget with a penalty block once
// the budget is exhausted. Counter state lives in the store so limits hold
// across instances.
type RateLimiter struct {
	store storage.RateLimitStore
	cfg   *util.RateLimiterConfig
	log   *zap.SugaredLogger
}

func NewRateLimiter(store storage.RateLimitStore, cfg *util.RateLimiterConfig, log *zap.SugaredLogger) *RateLimiter {
	return &RateLimiter{store: store, cfg: cfg, log: log}
}

// Allow reports whether the request may proceed and, when it may not, how
// long until the caller should retry. Store failures fail open.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	blocked, retryAfter, err := rl.store.IsBlocked(ctx, key)
	if err != nil {
		rl.log.Errorw("rate limiter block check failed", "key", key, "error", err)
		return true, 0
	}
	if blocked {
		return false, retryAfter
	}

	count, err := rl.store.Increment(ctx, key, rl.cfg.Interval)
	if err != nil {
		rl.log.Errorw("rate limiter increment failed", "key", key, "error", err)
		return true, 0
	}

	if count > int64(rl.cfg.Limit) {
		if err := rl.store.Block(ctx, key, rl.cfg.BlockTime); err != nil {
			rl.log.Errorw("rate limiter block failed", "key", key, "error", err)
		}
		rl.log.Warnw("rate limit exceeded", "key", key, "count", count)
		return false, rl.cfg.BlockTime
	}

	return true, 0
}
