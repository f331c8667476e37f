package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThrottle_PerKeyBurst(t *testing.T) {
	clock := newFakeClock()
	th := NewThrottle(ThrottleConfig{Rate: 1, Burst: 2, IdleTTL: time.Minute})
	th.now = clock.Now

	assert.True(t, th.Allow("a"))
	assert.True(t, th.Allow("a"))
	assert.False(t, th.Allow("a"))
	assert.True(t, th.Allow("b"), "other callers keep their own bucket")

	clock.Advance(time.Second)
	assert.True(t, th.Allow("a"))
}

func TestThrottle_ForgetsIdleCallers(t *testing.T) {
	clock := newFakeClock()
	th := NewThrottle(ThrottleConfig{Rate: 1, Burst: 1, IdleTTL: time.Minute})
	th.now = clock.Now
	th.lastCleanup = clock.Now()

	th.Allow("a")
	clock.Advance(2 * time.Minute)
	th.Allow("b")

	th.mu.Lock()
	defer th.mu.Unlock()
	_, ok := th.visitors["a"]
	assert.False(t, ok)
	assert.Len(t, th.visitors, 1)
}
