// Package ratelimit provides per-client token bucket rate limiting for the HTTP API.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// tokenBucket allows capacity requests in a burst, refilling at refillRate tokens per second
type tokenBucket struct {
	capacity   float64
	refillRate float64
	tokens     float64
	lastRefill time.Time
	lastAccess time.Time
}

func newTokenBucket(capacity int, refillRate float64, now time.Time) *tokenBucket {
	return &tokenBucket{
		capacity:   float64(capacity),
		refillRate: refillRate,
		tokens:     float64(capacity),
		lastRefill: now,
		lastAccess: now,
	}
}

func (tb *tokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+elapsed*tb.refillRate)
		tb.lastRefill = now
	}
}

// take consumes one token if available
func (tb *tokenBucket) take(now time.Time) bool {
	tb.refill(now)
	tb.lastAccess = now
	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// untilNext returns how long until one token is available
func (tb *tokenBucket) untilNext() time.Duration {
	if tb.tokens >= 1 || tb.refillRate <= 0 {
		return 0
	}
	return time.Duration((1 - tb.tokens) / tb.refillRate * float64(time.Second))
}

// Info describes the limit applied to one request
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter tracks one bucket per client, endpoint and method
type Limiter struct {
	cfg     Config
	mu      sync.Mutex
	buckets map[string]*tokenBucket
	now     func() time.Time
}

// NewLimiter creates a limiter
func NewLimiter(cfg Config) *Limiter {
	return &Limiter{
		cfg:     cfg,
		buckets: make(map[string]*tokenBucket),
		now:     time.Now,
	}
}

// Allow consumes a token for clientID on method and path
func (l *Limiter) Allow(clientID, method, path string) Info {
	if !l.cfg.Enabled || l.cfg.Exempt[clientID] {
		return Info{Allowed: true}
	}

	rule := MatchEndpoint(method, path, l.cfg.Endpoints)
	if rule == nil {
		rule = &EndpointConfig{Limit: l.cfg.DefaultLimit, Window: l.cfg.DefaultWindow}
	}
	if rule.Limit <= 0 || rule.Window <= 0 {
		return Info{Allowed: true}
	}

	burst := rule.Burst
	if burst <= 0 {
		burst = rule.Limit
	}
	key := clientID + " " + method + " " + rule.Path

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = newTokenBucket(burst, float64(rule.Limit)/rule.Window.Seconds(), now)
		l.buckets[key] = bucket
	}
	allowed := bucket.take(now)
	info := Info{Allowed: allowed, Limit: rule.Limit, Remaining: int(bucket.tokens)}
	if !allowed {
		info.RetryAfter = bucket.untilNext()
	}
	return info
}

// Run evicts idle buckets every CleanupInterval until ctx is done
func (l *Limiter) Run(ctx context.Context) {
	if l.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evictIdle(time.Hour)
		}
	}
}

func (l *Limiter) evictIdle(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-idle)
	evicted := 0
	for key, bucket := range l.buckets {
		if bucket.lastAccess.Before(cutoff) {
			delete(l.buckets, key)
			evicted++
		}
	}
	return evicted
}
