package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket implements an in-memory token bucket rate limiter. Each key
// gets its own bucket sized by the policy of its first request.
type TokenBucket struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	cleanup *time.Ticker
	done    chan struct{}
	once    sync.Once
	now     func() time.Time
}

type bucket struct {
	tokens     int
	lastRefill time.Time
	lastSeen   time.Time
	policy     Policy
}

// NewTokenBucket creates an in-memory limiter. Buckets idle for longer than
// twice their window are dropped every cleanupInterval; zero disables
// cleanup.
func NewTokenBucket(cleanupInterval time.Duration) *TokenBucket {
	tb := &TokenBucket{
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
		now:     time.Now,
	}
	if cleanupInterval > 0 {
		tb.cleanup = time.NewTicker(cleanupInterval)
		go tb.cleanupLoop()
	}
	return tb
}

// Allow checks if a request should be allowed for the given key
func (tb *TokenBucket) Allow(ctx context.Context, key string, policy Policy) (*RateLimitInfo, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	b, ok := tb.buckets[key]
	if !ok || b.policy != policy {
		b = &bucket{tokens: policy.Limit, lastRefill: now, policy: policy}
		tb.buckets[key] = b
	}
	b.lastSeen = now

	// capacity tokens per window, added proportionally to elapsed time
	if elapsed := now.Sub(b.lastRefill); elapsed > 0 {
		add := int(float64(policy.Limit) * elapsed.Seconds() / policy.Window.Seconds())
		if add > 0 {
			b.tokens = min(policy.Limit, b.tokens+add)
			b.lastRefill = now
		}
	}

	info := &RateLimitInfo{
		Limit:   policy.Limit,
		ResetAt: b.lastRefill.Add(policy.Window),
	}
	if b.tokens > 0 {
		b.tokens--
		info.Remaining = b.tokens
		info.Allowed = true
	}
	return info, nil
}

// Close stops the cleanup goroutine
func (tb *TokenBucket) Close() {
	tb.once.Do(func() {
		close(tb.done)
		if tb.cleanup != nil {
			tb.cleanup.Stop()
		}
	})
}

// Len returns the number of tracked buckets
func (tb *TokenBucket) Len() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return len(tb.buckets)
}

func (tb *TokenBucket) cleanupLoop() {
	for {
		select {
		case <-tb.cleanup.C:
			tb.sweep()
		case <-tb.done:
			return
		}
	}
}

// sweep removes buckets that haven't been used for twice their window
func (tb *TokenBucket) sweep() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	for key, b := range tb.buckets {
		if now.Sub(b.lastSeen) > 2*b.policy.Window {
			delete(tb.buckets, key)
		}
	}
}
