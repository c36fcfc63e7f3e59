package middleware

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig tunes the three-tier token-bucket limiter. Authenticated
// users receive AuthenticatedFactor times the per-key rate and burst of
// anonymous IP buckets.
type RateLimitConfig struct {
	Enabled             bool
	GlobalRate          float64
	GlobalBurst         int
	PerKeyRate          float64
	PerKeyBurst         int
	AuthenticatedFactor int
}

func (c *RateLimitConfig) withDefaults() RateLimitConfig {
	cfg := *c
	if cfg.GlobalRate <= 0 {
		cfg.GlobalRate = 1000
	}
	if cfg.GlobalBurst <= 0 {
		cfg.GlobalBurst = 2000
	}
	if cfg.PerKeyRate <= 0 {
		cfg.PerKeyRate = 10
	}
	if cfg.PerKeyBurst <= 0 {
		cfg.PerKeyBurst = 20
	}
	if cfg.AuthenticatedFactor <= 0 {
		cfg.AuthenticatedFactor = 2
	}
	return cfg
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen atomic.Int64
}

// RateLimiter holds one global limiter plus lazily created per-IP and
// per-user buckets. Buckets are never evicted on the hot path; an external
// periodic sweep calls [RateLimiter.SweepIdle].
type RateLimiter struct {
	cfg    RateLimitConfig
	global *rate.Limiter

	mu    sync.RWMutex
	ips   map[string]*bucket
	users map[string]*bucket

	now func() time.Time
}

// NewRateLimiter creates a limiter with the given tuning.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	cfg = cfg.withDefaults()
	return &RateLimiter{
		cfg:    cfg,
		global: rate.NewLimiter(rate.Limit(cfg.GlobalRate), cfg.GlobalBurst),
		ips:    make(map[string]*bucket),
		users:  make(map[string]*bucket),
		now:    time.Now,
	}
}

// Allow reports whether a request from ip (and, when authenticated,
// userID) may proceed. The request must pass the global limiter, then its
// IP bucket, then its user bucket; the first refusal wins.
func (l *RateLimiter) Allow(ip, userID string) bool {
	if !l.global.Allow() {
		return false
	}
	if ip != "" && !l.bucketFor(l.ips, ip, 1).lim.Allow() {
		return false
	}
	if userID != "" && !l.bucketFor(l.users, userID, l.cfg.AuthenticatedFactor).lim.Allow() {
		return false
	}
	return true
}

// SweepIdle evicts buckets unused for longer than maxIdle and returns the
// number removed. Intended to be driven by an operational ticker, never by
// the request path.
func (l *RateLimiter) SweepIdle(maxIdle time.Duration) int {
	cutoff := l.now().Add(-maxIdle).UnixNano()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, b := range l.ips {
		if b.lastSeen.Load() < cutoff {
			delete(l.ips, key)
			removed++
		}
	}
	for key, b := range l.users {
		if b.lastSeen.Load() < cutoff {
			delete(l.users, key)
			removed++
		}
	}
	return removed
}

func (l *RateLimiter) bucketFor(m map[string]*bucket, key string, factor int) *bucket {
	l.mu.RLock()
	b, ok := m[key]
	l.mu.RUnlock()

	if !ok {
		l.mu.Lock()
		if b, ok = m[key]; !ok {
			b = &bucket{lim: rate.NewLimiter(
				rate.Limit(l.cfg.PerKeyRate*float64(factor)),
				l.cfg.PerKeyBurst*factor,
			)}
			m[key] = b
		}
		l.mu.Unlock()
	}

	b.lastSeen.Store(l.now().UnixNano())
	return b
}
