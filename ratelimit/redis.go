package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "ratelimit:"

// acquireScript prunes, counts and records in one server-side step.
// KEYS[1] window, ARGV cutoff ms, now ms, limit, member, window ms.
var acquireScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[3]) then
	return 0
end
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

// RedisLimiter stores each window as a sorted set scored by attempt time in
// unix milliseconds, so limits hold across replicas.
type RedisLimiter struct {
	rdb    redis.Cmdable
	prefix string
	now    func() time.Time
}

type RedisOption func(*RedisLimiter)

func WithKeyPrefix(prefix string) RedisOption {
	return func(l *RedisLimiter) { l.prefix = prefix }
}

func WithRedisClock(now func() time.Time) RedisOption {
	return func(l *RedisLimiter) {
		if now != nil {
			l.now = now
		}
	}
}

func NewRedisLimiter(rdb redis.Cmdable, opts ...RedisOption) *RedisLimiter {
	l := &RedisLimiter{rdb: rdb, prefix: DefaultKeyPrefix, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RedisLimiter) key(k string) string { return l.prefix + k }

// lowerBound excludes attempts at exactly now-window.
func lowerBound(now time.Time, length time.Duration) string {
	return "(" + strconv.FormatInt(now.Add(-length).UnixMilli(), 10)
}

func (l *RedisLimiter) count(ctx context.Context, key string, length time.Duration) (int64, error) {
	n, err := l.rdb.ZCount(ctx, l.key(key), lowerBound(l.now(), length), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("ratelimit: count %s: %w", key, err)
	}
	return n, nil
}

func (l *RedisLimiter) IsLimited(ctx context.Context, key string, limit int, length time.Duration) (bool, error) {
	n, err := l.count(ctx, key, length)
	if err != nil {
		return false, err
	}
	return n >= int64(limit), nil
}

func (l *RedisLimiter) RecordAttempt(ctx context.Context, key string, length time.Duration) error {
	now := l.now()
	k := l.key(key)
	pipe := l.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, k, "-inf", strconv.FormatInt(now.Add(-length).UnixMilli(), 10))
	pipe.ZAdd(ctx, k, redis.Z{Score: float64(now.UnixMilli()), Member: uuid.NewString()})
	pipe.PExpire(ctx, k, length)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ratelimit: record %s: %w", key, err)
	}
	return nil
}

func (l *RedisLimiter) Acquire(ctx context.Context, key string, limit int, length time.Duration) (bool, error) {
	now := l.now()
	admitted, err := acquireScript.Run(ctx, l.rdb, []string{l.key(key)},
		now.Add(-length).UnixMilli(),
		now.UnixMilli(),
		limit,
		uuid.NewString(),
		length.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("ratelimit: acquire %s: %w", key, err)
	}
	return admitted == 1, nil
}

func (l *RedisLimiter) TimeUntilReset(ctx context.Context, key string, length time.Duration) (time.Duration, bool, error) {
	now := l.now()
	oldest, err := l.rdb.ZRangeByScoreWithScores(ctx, l.key(key), &redis.ZRangeBy{
		Min:   lowerBound(now, length),
		Max:   "+inf",
		Count: 1,
	}).Result()
	if err != nil {
		return 0, false, fmt.Errorf("ratelimit: oldest %s: %w", key, err)
	}
	if len(oldest) == 0 {
		return 0, false, nil
	}
	first := time.UnixMilli(int64(oldest[0].Score))
	return first.Add(length).Sub(now), true, nil
}

func (l *RedisLimiter) Remaining(ctx context.Context, key string, limit int, length time.Duration) (int, error) {
	n, err := l.count(ctx, key, length)
	if err != nil {
		return 0, err
	}
	if n >= int64(limit) {
		return 0, nil
	}
	return limit - int(n), nil
}
