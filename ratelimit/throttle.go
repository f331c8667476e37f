package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ThrottleConfig sets the per-caller request budget.
type ThrottleConfig struct {
	Rate  rate.Limit // requests per second
	Burst int

	// Callers idle longer than IdleTTL are forgotten.
	IdleTTL time.Duration
}

func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{Rate: 20, Burst: 40, IdleTTL: 10 * time.Minute}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Throttle is a token bucket per caller key guarding every API request.
type Throttle struct {
	cfg ThrottleConfig

	mu          sync.Mutex
	visitors    map[string]*visitor
	lastCleanup time.Time
	now         func() time.Time
}

func NewThrottle(cfg ThrottleConfig) *Throttle {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultThrottleConfig().IdleTTL
	}
	return &Throttle{
		cfg:         cfg,
		visitors:    make(map[string]*visitor),
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

// Allow consumes one token for key.
func (t *Throttle) Allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	v, ok := t.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(t.cfg.Rate, t.cfg.Burst)}
		t.visitors[key] = v
	}
	v.lastSeen = now
	allowed := v.limiter.AllowN(now, 1)

	if now.Sub(t.lastCleanup) >= t.cfg.IdleTTL {
		for k, other := range t.visitors {
			if now.Sub(other.lastSeen) > t.cfg.IdleTTL {
				delete(t.visitors, k)
			}
		}
		t.lastCleanup = now
	}
	return allowed
}
