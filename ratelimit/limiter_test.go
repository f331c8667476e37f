package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// exerciseLimiter runs the shared sliding-window contract against any Limiter.
func exerciseLimiter(t *testing.T, l Limiter, clock *fakeClock) {
	t.Helper()
	ctx := context.Background()
	const key = "cancel:user-1"

	limited, err := l.IsLimited(ctx, key, 3, time.Hour)
	require.NoError(t, err)
	assert.False(t, limited)

	_, ok, err := l.TimeUntilReset(ctx, key, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	for i := 0; i < 3; i++ {
		require.NoError(t, l.RecordAttempt(ctx, key, time.Hour))
		clock.Advance(time.Minute)
	}

	limited, err = l.IsLimited(ctx, key, 3, time.Hour)
	require.NoError(t, err)
	assert.True(t, limited)

	remaining, err := l.Remaining(ctx, key, 3, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	wait, ok, err := l.TimeUntilReset(ctx, key, time.Hour)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 57*time.Minute, wait)

	// first attempt leaves the window
	clock.Advance(57*time.Minute + time.Second)
	limited, err = l.IsLimited(ctx, key, 3, time.Hour)
	require.NoError(t, err)
	assert.False(t, limited)
	remaining, err = l.Remaining(ctx, key, 3, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	// everything expires
	clock.Advance(time.Hour)
	limited, err = l.IsLimited(ctx, key, 3, time.Hour)
	require.NoError(t, err)
	assert.False(t, limited)
	remaining, err = l.Remaining(ctx, key, 3, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)
	_, ok, err = l.TimeUntilReset(ctx, key, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	// keys are independent
	require.NoError(t, l.RecordAttempt(ctx, "cancel:user-2", time.Hour))
	remaining, err = l.Remaining(ctx, "cancel:user-1", 3, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)
}

// exerciseAcquire checks that Acquire counts and admits in one step.
func exerciseAcquire(t *testing.T, l Limiter, clock *fakeClock) {
	t.Helper()
	ctx := context.Background()
	const key = "cancel:user-9"

	for i := 0; i < 3; i++ {
		ok, err := l.Acquire(ctx, key, 3, time.Hour)
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d", i+1)
		clock.Advance(time.Minute)
	}

	ok, err := l.Acquire(ctx, key, 3, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	// a refused attempt is not recorded
	wait, counted, err := l.TimeUntilReset(ctx, key, time.Hour)
	require.NoError(t, err)
	require.True(t, counted)
	assert.Equal(t, 57*time.Minute, wait)

	clock.Advance(57 * time.Minute)
	ok, err = l.Acquire(ctx, key, 3, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

// acquireConcurrently fires workers Acquire calls at one key and returns
// how many were admitted.
func acquireConcurrently(t *testing.T, l Limiter, workers, limit int) int {
	t.Helper()
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.Acquire(context.Background(), "shared", limit, time.Hour)
			if err != nil || !ok {
				return
			}
			mu.Lock()
			admitted++
			mu.Unlock()
		}()
	}
	wg.Wait()
	return admitted
}

func TestMemoryLimiter_Acquire(t *testing.T) {
	clock := newFakeClock()
	exerciseAcquire(t, NewMemoryLimiter(WithClock(clock.Now)), clock)
}

func TestMemoryLimiter_AcquireConcurrent(t *testing.T) {
	assert.Equal(t, 3, acquireConcurrently(t, NewMemoryLimiter(), 50, 3))
}

func TestMemoryLimiter_DropsLapsedKeys(t *testing.T) {
	clock := newFakeClock()
	l := NewMemoryLimiter(WithClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		require.NoError(t, l.RecordAttempt(ctx, fmt.Sprintf("cancel:user-%d", i), time.Hour))
	}
	require.Equal(t, 100, l.Len())

	clock.Advance(48 * time.Hour)

	// reading a lapsed key forgets it
	limited, err := l.IsLimited(ctx, "cancel:user-0", 3, time.Hour)
	require.NoError(t, err)
	assert.False(t, limited)
	assert.Equal(t, 99, l.Len())

	// the next write sweeps the rest
	require.NoError(t, l.RecordAttempt(ctx, "cancel:fresh", time.Hour))
	assert.Equal(t, 1, l.Len())
}

func TestMemoryLimiter_SlidingWindow(t *testing.T) {
	clock := newFakeClock()
	exerciseLimiter(t, NewMemoryLimiter(WithClock(clock.Now)), clock)
}

func TestMemoryLimiter_BoundaryIsExclusive(t *testing.T) {
	clock := newFakeClock()
	l := NewMemoryLimiter(WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, l.RecordAttempt(ctx, "k", time.Minute))
	clock.Advance(time.Minute)

	remaining, err := l.Remaining(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining, "an attempt exactly one window old no longer counts")
}

func TestMemoryLimiter_BoundedKeys(t *testing.T) {
	clock := newFakeClock()
	l := NewMemoryLimiter(WithClock(clock.Now), WithMaxKeys(3))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.RecordAttempt(ctx, fmt.Sprintf("k%d", i), time.Minute))
		clock.Advance(time.Second)
	}
	require.Equal(t, 3, l.Len())

	// k0 is least recently used and gets evicted
	require.NoError(t, l.RecordAttempt(ctx, "k3", time.Minute))
	assert.Equal(t, 3, l.Len())
	remaining, err := l.Remaining(ctx, "k0", 1, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	// once the windows lapse, expired keys are swept instead
	clock.Advance(2 * time.Minute)
	require.NoError(t, l.RecordAttempt(ctx, "k4", time.Minute))
	assert.Equal(t, 1, l.Len())
}

func TestMemoryLimiter_Concurrent(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.RecordAttempt(ctx, "shared", time.Hour)
		}()
	}
	wg.Wait()

	remaining, err := l.Remaining(ctx, "shared", 100, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 50, remaining)
}
