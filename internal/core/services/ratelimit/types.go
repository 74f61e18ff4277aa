package ratelimit

import (
	"context"
	"time"
)

// Gate blocks until one more LLM request may be sent
type Gate interface {
	Gate(ctx context.Context, maxPerMinute int) error
}

// WindowStore is a log of call timestamps shared by every caller of a limiter
type WindowStore interface {
	// CountSince returns calls at or after since, and the oldest of them
	CountSince(ctx context.Context, since time.Time) (int64, time.Time, error)
	Record(ctx context.Context, at time.Time) error
	Prune(ctx context.Context, before time.Time) error
}

// Options tunes the sliding window. Zero values take the defaults.
type Options struct {
	Window             time.Duration
	Jitter             time.Duration
	CleanupProbability float64

	// Injected for deterministic tests
	Now     func() time.Time
	Sleep   func(ctx context.Context, d time.Duration) error
	Float64 func() float64
}

const (
	DefaultWindow             = 60 * time.Second
	DefaultJitter             = 2 * time.Second
	DefaultCleanupProbability = 0.01
)

func (o Options) withDefaults() Options {
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.Jitter < 0 {
		o.Jitter = 0
	}
	if o.CleanupProbability < 0 {
		o.CleanupProbability = 0
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Sleep == nil {
		o.Sleep = SleepContext
	}
	if o.Float64 == nil {
		o.Float64 = randFloat64
	}
	return o
}

// SleepContext waits for d or until ctx is done
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
