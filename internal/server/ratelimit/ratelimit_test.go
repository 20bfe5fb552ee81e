package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

func newTestLimiter(cfg Config) (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewLimiter(cfg)
	l.now = clock.Now
	return l, clock
}

func TestTokenBucket_BurstThenRefill(t *testing.T) {
	start := time.Now()
	bucket := newTokenBucket(3, 1.0, start)

	for i := 0; i < 3; i++ {
		assert.True(t, bucket.take(start), "request %d", i+1)
	}
	assert.False(t, bucket.take(start))
	assert.Equal(t, time.Second, bucket.untilNext())

	assert.True(t, bucket.take(start.Add(time.Second)))
	assert.False(t, bucket.take(start.Add(time.Second)))
}

func TestTokenBucket_CapsAtCapacity(t *testing.T) {
	start := time.Now()
	bucket := newTokenBucket(2, 10.0, start)
	bucket.take(start.Add(time.Hour))
	assert.InDelta(t, 1.0, bucket.tokens, 0.001)
}

func TestLimiter_JobSubmissionsLimited(t *testing.T) {
	l, clock := newTestLimiter(DefaultConfig(20))

	// burst is a tenth of the hourly limit
	for i := 0; i < 2; i++ {
		info := l.Allow("10.0.0.1", http.MethodPost, "/jobs")
		require.True(t, info.Allowed, "submission %d", i+1)
		assert.Equal(t, 20, info.Limit)
	}
	info := l.Allow("10.0.0.1", http.MethodPost, "/jobs")
	assert.False(t, info.Allowed)
	assert.Equal(t, 3*time.Minute, info.RetryAfter.Round(time.Second))

	// other clients have their own bucket
	assert.True(t, l.Allow("10.0.0.2", http.MethodPost, "/jobs").Allowed)

	clock.Advance(3*time.Minute + time.Second)
	assert.True(t, l.Allow("10.0.0.1", http.MethodPost, "/jobs").Allowed)
}

func TestLimiter_RestartSharesPrefixRule(t *testing.T) {
	l, _ := newTestLimiter(DefaultConfig(10))

	assert.True(t, l.Allow("c", http.MethodPost, "/jobs/a/restart").Allowed)
	// all restarts count against one bucket regardless of job id
	assert.False(t, l.Allow("c", http.MethodPost, "/jobs/b/restart").Allowed)
}

func TestLimiter_UnlimitedEndpoints(t *testing.T) {
	l, _ := newTestLimiter(DefaultConfig(1))

	for i := 0; i < 1000; i++ {
		require.True(t, l.Allow("c", http.MethodGet, "/health").Allowed)
		require.True(t, l.Allow("c", http.MethodGet, "/metrics").Allowed)
	}
}

func TestLimiter_DefaultLimitForUnmatchedRoutes(t *testing.T) {
	cfg := DefaultConfig(10)
	cfg.DefaultLimit = 2
	l, _ := newTestLimiter(cfg)

	assert.True(t, l.Allow("c", http.MethodGet, "/jobs/j1").Allowed)
	assert.True(t, l.Allow("c", http.MethodGet, "/jobs/j1").Allowed)
	assert.False(t, l.Allow("c", http.MethodGet, "/jobs/j1").Allowed)
}

func TestLimiter_DisabledAndExempt(t *testing.T) {
	cfg := DefaultConfig(1)
	cfg.Exempt["127.0.0.1"] = true
	l, _ := newTestLimiter(cfg)
	for i := 0; i < 10; i++ {
		require.True(t, l.Allow("127.0.0.1", http.MethodPost, "/jobs").Allowed)
	}

	cfg = DefaultConfig(1)
	cfg.Enabled = false
	l, _ = newTestLimiter(cfg)
	for i := 0; i < 10; i++ {
		require.True(t, l.Allow("c", http.MethodPost, "/jobs").Allowed)
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	cfg := DefaultConfig(10)
	cfg.DefaultLimit = 50
	l, _ := newTestLimiter(cfg)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("c", http.MethodGet, "/files").Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestLimiter_EvictIdle(t *testing.T) {
	l, clock := newTestLimiter(DefaultConfig(10))
	for i := 0; i < 3; i++ {
		l.Allow(fmt.Sprintf("client-%d", i), http.MethodPost, "/uploads")
	}
	clock.Advance(30 * time.Minute)
	l.Allow("client-0", http.MethodPost, "/uploads")
	clock.Advance(45 * time.Minute)

	assert.Equal(t, 2, l.evictIdle(time.Hour))
	assert.Len(t, l.buckets, 1)
}

func TestLimiter_RunStopsOnCancel(t *testing.T) {
	cfg := DefaultConfig(10)
	cfg.CleanupInterval = time.Millisecond
	l := NewLimiter(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestMatchEndpoint(t *testing.T) {
	rules := DefaultConfig(10).Endpoints

	tests := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodPost, "/jobs", "/jobs"},
		{http.MethodPost, "/jobs/abc/restart", "/jobs/"},
		{http.MethodPost, "/uploads", "/uploads"},
		{http.MethodGet, "/health", "/health"},
		{http.MethodGet, "/jobs/abc", ""},
		{http.MethodDelete, "/jobs", ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			got := MatchEndpoint(tt.method, tt.path, rules)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Path)
		})
	}
}
