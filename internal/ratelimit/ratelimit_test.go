package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests advance the memory store's notion of time.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(max int, window time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	store := NewMemoryStore()
	store.now = clock.Now
	return NewLimiter(store, max, window), clock
}

func TestLimiter_WithinBudget(t *testing.T) {
	limiter, _ := newTestLimiter(100, time.Minute)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		d, err := limiter.Allow(ctx, "key")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d should be allowed", i+1)
	}
}

func TestLimiter_101stRejected(t *testing.T) {
	limiter, _ := newTestLimiter(100, time.Minute)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		_, err := limiter.Allow(ctx, "key")
		require.NoError(t, err)
	}

	d, err := limiter.Allow(ctx, "key")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, int64(0), d.Remaining)
}

func TestLimiter_WindowResets(t *testing.T) {
	limiter, clock := newTestLimiter(100, time.Minute)
	ctx := context.Background()

	for i := 0; i < 101; i++ {
		_, err := limiter.Allow(ctx, "key")
		require.NoError(t, err)
	}

	clock.Advance(61 * time.Second)

	d, err := limiter.Allow(ctx, "key")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "first request of the next window must succeed")
	assert.Equal(t, int64(99), d.Remaining)
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := limiter.Allow(ctx, "a")
		require.NoError(t, err)
	}

	d, err := limiter.Allow(ctx, "b")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "one key's exhaustion must not affect another")
}

func TestLimiter_ResetTime(t *testing.T) {
	limiter, clock := newTestLimiter(100, time.Minute)
	ctx := context.Background()

	start := clock.Now()
	d, err := limiter.Allow(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, start.Add(time.Minute), d.Reset)

	// The reset time is pinned to the window's first request.
	clock.Advance(30 * time.Second)
	d, err = limiter.Allow(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, start.Add(time.Minute), d.Reset)
}

func TestMemoryStore_ConcurrentBurst(t *testing.T) {
	store := NewMemoryStore()
	limiter := NewLimiter(store, 100, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	rejected := 0

	for i := 0; i < 150; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := limiter.Allow(ctx, "burst")
			require.NoError(t, err)
			if !d.Allowed {
				mu.Lock()
				rejected++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, rejected, "read-check-increment must be atomic per key")
}
