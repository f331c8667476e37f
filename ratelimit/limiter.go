// Package ratelimit counts attempts per key over a sliding window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter is a sliding-window attempt counter. An attempt counts while its
// timestamp is newer than now minus window.
type Limiter interface {
	IsLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	RecordAttempt(ctx context.Context, key string, window time.Duration) error
	// Acquire records an attempt only while fewer than limit are counted,
	// checking and recording in one step. It reports whether the attempt
	// was admitted.
	Acquire(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	// TimeUntilReset returns how long until the oldest counted attempt
	// leaves the window. ok is false when nothing is counted.
	TimeUntilReset(ctx context.Context, key string, window time.Duration) (d time.Duration, ok bool, err error)
	Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error)
}

const (
	DefaultMaxKeys = 10000

	// sweepInterval spaces out full passes over the tracked keys.
	sweepInterval = time.Minute
)

type window struct {
	attempts []time.Time
	length   time.Duration
}

// prune drops attempts at or before cutoff. attempts stay sorted.
func (w *window) prune(cutoff time.Time) {
	i := 0
	for i < len(w.attempts) && !w.attempts[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.attempts = append(w.attempts[:0], w.attempts[i:]...)
	}
}

// MemoryLimiter keeps windows in process memory. Keys are dropped once
// their window lapses. The number of tracked keys is also bounded: when
// full, the least recently used key is evicted.
type MemoryLimiter struct {
	mu        sync.Mutex
	windows   map[string]*window
	maxKeys   int
	now       func() time.Time
	lastSweep time.Time
}

type MemoryOption func(*MemoryLimiter)

// WithMaxKeys bounds the number of keys held at once.
func WithMaxKeys(n int) MemoryOption {
	return func(l *MemoryLimiter) {
		if n > 0 {
			l.maxKeys = n
		}
	}
}

// WithClock replaces time.Now, used by tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(l *MemoryLimiter) {
		if now != nil {
			l.now = now
		}
	}
}

func NewMemoryLimiter(opts ...MemoryOption) *MemoryLimiter {
	l := &MemoryLimiter{
		windows: make(map[string]*window),
		maxKeys: DefaultMaxKeys,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *MemoryLimiter) IsLimited(_ context.Context, key string, limit int, length time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.lookupLocked(key, length, l.now())
	return w != nil && len(w.attempts) >= limit, nil
}

func (l *MemoryLimiter) RecordAttempt(_ context.Context, key string, length time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.maybeSweepLocked(now)
	l.appendLocked(key, length, now)
	return nil
}

func (l *MemoryLimiter) Acquire(_ context.Context, key string, limit int, length time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.maybeSweepLocked(now)
	if w := l.lookupLocked(key, length, now); w != nil && len(w.attempts) >= limit {
		return false, nil
	}
	l.appendLocked(key, length, now)
	return true, nil
}

func (l *MemoryLimiter) TimeUntilReset(_ context.Context, key string, length time.Duration) (time.Duration, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	w := l.lookupLocked(key, length, now)
	if w == nil {
		return 0, false, nil
	}
	return w.attempts[0].Add(length).Sub(now), true, nil
}

func (l *MemoryLimiter) Remaining(_ context.Context, key string, limit int, length time.Duration) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	used := 0
	if w := l.lookupLocked(key, length, l.now()); w != nil {
		used = len(w.attempts)
	}
	if used >= limit {
		return 0, nil
	}
	return limit - used, nil
}

// Len returns the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// lookupLocked returns the live window of key, or nil once every attempt in
// it has expired. An expired window is dropped.
func (l *MemoryLimiter) lookupLocked(key string, length time.Duration, now time.Time) *window {
	w, ok := l.windows[key]
	if !ok {
		return nil
	}
	w.prune(now.Add(-length))
	if len(w.attempts) == 0 {
		delete(l.windows, key)
		return nil
	}
	return w
}

func (l *MemoryLimiter) appendLocked(key string, length time.Duration, now time.Time) {
	w, ok := l.windows[key]
	if !ok {
		if len(l.windows) >= l.maxKeys {
			l.evictLocked(now)
		}
		w = &window{}
		l.windows[key] = w
	}
	w.length = length
	w.prune(now.Add(-length))
	w.attempts = append(w.attempts, now)
}

func (l *MemoryLimiter) maybeSweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) >= sweepInterval {
		l.sweepLocked(now)
	}
}

// sweepLocked drops every key whose window has lapsed.
func (l *MemoryLimiter) sweepLocked(now time.Time) {
	for k, w := range l.windows {
		w.prune(now.Add(-w.length))
		if len(w.attempts) == 0 {
			delete(l.windows, k)
		}
	}
	l.lastSweep = now
}

func (l *MemoryLimiter) evictLocked(now time.Time) {
	l.sweepLocked(now)
	if len(l.windows) < l.maxKeys {
		return
	}
	var (
		victim string
		oldest time.Time
	)
	for k, w := range l.windows {
		last := w.attempts[len(w.attempts)-1]
		if victim == "" || last.Before(oldest) {
			victim, oldest = k, last
		}
	}
	delete(l.windows, victim)
}
