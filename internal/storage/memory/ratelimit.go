package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/storage"
)

type rateWindow struct {
	count   int64
	resetAt time.Time
}

// RateLimitStore is an in-memory counter backend for the login rate limiter.
type RateLimitStore struct {
	mu      sync.Mutex
	windows map[string]rateWindow
	blocks  map[string]time.Time
}

func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{
		windows: make(map[string]rateWindow),
		blocks:  make(map[string]time.Time),
	}
}

var _ storage.RateLimitStore = (*RateLimitStore)(nil)

func (s *RateLimitStore) Increment(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	w, ok := s.windows[key]
	if !ok || now.After(w.resetAt) {
		w = rateWindow{count: 0, resetAt: now.Add(window)}
	}
	w.count++
	s.windows[key] = w
	return w.count, nil
}

func (s *RateLimitStore) Block(_ context.Context, key string, duration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blocks[key] = time.Now().Add(duration)
	return nil
}

func (s *RateLimitStore) IsBlocked(_ context.Context, key string) (bool, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.blocks[key]
	if !ok {
		return false, 0, nil
	}
	remaining := time.Until(until)
	if remaining <= 0 {
		delete(s.blocks, key)
		return false, 0, nil
	}
	return true, remaining, nil
}
