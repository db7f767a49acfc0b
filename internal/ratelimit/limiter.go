package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SendLimiter bounds outbound gateway calls across the whole worker pool.
// Burst is set equal to the rate so no extra burst capacity accumulates
// beyond the configured per-second maximum.
type SendLimiter struct {
	limiter *rate.Limiter
}

// NewSendLimiter creates a limiter granting ratePerSec tokens per second.
func NewSendLimiter(ratePerSec int) *SendLimiter {
	return &SendLimiter{limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec)}
}

// Wait blocks until a token is granted. Called by each worker immediately
// before the gateway call. Returns a non-nil error only if ctx is cancelled
// while waiting.
func (l *SendLimiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// SourceLimiter caps inbound webhook requests per source identity over a
// rolling minute, bounding abuse and replay. Buckets are created lazily per
// key and never expire; the key space is bounded by the provider's sender
// population.
type SourceLimiter struct {
	mu      sync.Mutex
	perMin  int
	buckets map[string]*rate.Limiter
}

func NewSourceLimiter(perMin int) *SourceLimiter {
	return &SourceLimiter{
		perMin:  perMin,
		buckets: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether the source identified by key is under its cap.
// Requests over the limit are rejected without processing.
func (l *SourceLimiter) Allow(key string) bool {
	l.mu.Lock()
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMin)), l.perMin)
		l.buckets[key] = bucket
	}
	l.mu.Unlock()
	return bucket.Allow()
}
