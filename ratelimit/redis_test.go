package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLimiter(t *testing.T, clock *fakeClock) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisLimiter(rdb, WithRedisClock(clock.Now)), mr
}

func TestRedisLimiter_SlidingWindow(t *testing.T) {
	clock := newFakeClock()
	l, _ := newRedisLimiter(t, clock)
	exerciseLimiter(t, l, clock)
}

func TestRedisLimiter_Acquire(t *testing.T) {
	clock := newFakeClock()
	l, _ := newRedisLimiter(t, clock)
	exerciseAcquire(t, l, clock)
}

func TestRedisLimiter_AcquireConcurrent(t *testing.T) {
	l, mr := newRedisLimiter(t, newFakeClock())
	assert.Equal(t, 3, acquireConcurrently(t, l, 20, 3))

	members, err := mr.ZMembers("ratelimit:shared")
	require.NoError(t, err)
	assert.Len(t, members, 3)
	assert.Equal(t, time.Hour, mr.TTL("ratelimit:shared"))
}

func TestRedisLimiter_KeyLayout(t *testing.T) {
	clock := newFakeClock()
	l, mr := newRedisLimiter(t, clock)
	ctx := context.Background()

	require.NoError(t, l.RecordAttempt(ctx, "cancel:42", time.Hour))
	require.NoError(t, l.RecordAttempt(ctx, "cancel:42", time.Hour))

	assert.True(t, mr.Exists("ratelimit:cancel:42"))
	members, err := mr.ZMembers("ratelimit:cancel:42")
	require.NoError(t, err)
	assert.Len(t, members, 2, "same-millisecond attempts are kept as distinct members")
	assert.Equal(t, time.Hour, mr.TTL("ratelimit:cancel:42"))
}

func TestRedisLimiter_RecordPrunesExpired(t *testing.T) {
	clock := newFakeClock()
	l, mr := newRedisLimiter(t, clock)
	ctx := context.Background()

	require.NoError(t, l.RecordAttempt(ctx, "k", time.Minute))
	clock.Advance(2 * time.Minute)
	require.NoError(t, l.RecordAttempt(ctx, "k", time.Minute))

	members, err := mr.ZMembers("ratelimit:k")
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestRedisLimiter_ErrorsSurface(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	l := NewRedisLimiter(rdb)
	mr.Close()

	_, err = l.IsLimited(context.Background(), "k", 3, time.Hour)
	assert.Error(t, err)
	assert.Error(t, l.RecordAttempt(context.Background(), "k", time.Hour))
	_, err = l.Acquire(context.Background(), "k", 3, time.Hour)
	assert.Error(t, err)
}
