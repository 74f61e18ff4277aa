package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucket is an in-process limiter for single-replica deployments.
// Each distinct maxPerMinute gets its own bucket with a burst of that size.
type TokenBucket struct {
	mu      sync.Mutex
	buckets map[int]*rate.Limiter
}

// NewTokenBucket creates an empty TokenBucket
func NewTokenBucket() *TokenBucket {
	return &TokenBucket{buckets: make(map[int]*rate.Limiter)}
}

// Gate waits for a token
func (b *TokenBucket) Gate(ctx context.Context, maxPerMinute int) error {
	if maxPerMinute <= 0 {
		return ctx.Err()
	}
	return b.limiter(maxPerMinute).Wait(ctx)
}

func (b *TokenBucket) limiter(maxPerMinute int) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()

	l, ok := b.buckets[maxPerMinute]
	if !ok {
		l = rate.NewLimiter(rate.Every(time.Minute/time.Duration(maxPerMinute)), maxPerMinute)
		b.buckets[maxPerMinute] = l
	}
	return l
}
