// Package ratelimit bounds gateway throughput per credential with a fixed
// window counter. The algorithm is decoupled from its storage so a
// single-instance deployment can use the in-process store while horizontally
// scaled deployments share a Redis store.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Store is a windowed counter. Incr increments the counter for key, starting
// a fresh window when none is active, and returns the count within the
// current window plus the window's reset time.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, reset time.Time, err error)
}

// Decision is the outcome of a limiter check.
type Decision struct {
	Allowed   bool
	Remaining int64
	Reset     time.Time
}

// Limiter applies a fixed window of max requests per window duration.
type Limiter struct {
	store  Store
	max    int64
	window time.Duration
}

// NewLimiter creates a Limiter.
func NewLimiter(store Store, max int, window time.Duration) *Limiter {
	return &Limiter{store: store, max: int64(max), window: window}
}

// Max returns the request budget per window.
func (l *Limiter) Max() int64 { return l.max }

// Window returns the window duration.
func (l *Limiter) Window() time.Duration { return l.window }

// Allow records one request for key and reports whether it is within budget.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	count, reset, err := l.store.Incr(ctx, key, l.window)
	if err != nil {
		return Decision{}, err
	}

	remaining := l.max - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= l.max,
		Remaining: remaining,
		Reset:     reset,
	}, nil
}

type window struct {
	count   int64
	resetAt time.Time
}

// MemoryStore is a process-local Store. State is not shared across instances
// and does not survive restarts; acceptable for advisory abuse prevention.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// NewMemoryStore creates an in-process Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Incr implements Store. The read-check-increment is one step under the lock
// so concurrent bursts from the same key never undercount.
func (s *MemoryStore) Incr(_ context.Context, key string, windowDur time.Duration) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{count: 0, resetAt: now.Add(windowDur)}
		s.windows[key] = w
	}
	w.count++

	return w.count, w.resetAt, nil
}
