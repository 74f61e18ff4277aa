package ratelimit

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/metrics"
)

func randFloat64() float64 { return rand.Float64() }

// SlidingWindow throttles callers against a shared log of call timestamps.
// When the window is full it waits until the oldest counted call is one
// second past the window; otherwise it waits a random jitter so concurrent
// callers spread out. Every call is recorded after the wait.
type SlidingWindow struct {
	store  WindowStore
	opts   Options
	logger *slog.Logger
}

// NewSlidingWindow creates a limiter over store
func NewSlidingWindow(store WindowStore, opts Options, logger *slog.Logger) *SlidingWindow {
	if logger == nil {
		logger = slog.Default()
	}

	return &SlidingWindow{
		store:  store,
		opts:   opts.withDefaults(),
		logger: logger,
	}
}

// Gate waits as needed, then records the call. Store failures are logged and
// the call proceeds with the jitter wait only.
func (l *SlidingWindow) Gate(ctx context.Context, maxPerMinute int) error {
	wait := l.waitFor(ctx, maxPerMinute)

	if wait > 0 {
		metrics.RateLimitWait.Observe(wait.Seconds())
		if err := l.opts.Sleep(ctx, wait); err != nil {
			return err
		}
	}

	if err := l.store.Record(ctx, l.opts.Now()); err != nil {
		l.logger.Warn("failed to record LLM call", slog.Any("error", err))
	}

	if l.opts.Float64() < l.opts.CleanupProbability {
		if err := l.store.Prune(ctx, l.opts.Now().Add(-l.opts.Window)); err != nil {
			l.logger.Warn("rate limit cleanup failed", slog.Any("error", err))
		}
	}

	return nil
}

func (l *SlidingWindow) waitFor(ctx context.Context, maxPerMinute int) time.Duration {
	now := l.opts.Now()

	count, oldest, err := l.store.CountSince(ctx, now.Add(-l.opts.Window))
	if err != nil {
		l.logger.Warn("failed to read rate limit window", slog.Any("error", err))
		return l.jitter()
	}

	if maxPerMinute > 0 && count >= int64(maxPerMinute) {
		wait := l.opts.Window + time.Second - now.Sub(oldest)
		if wait < 0 {
			wait = 0
		}
		l.logger.Info("LLM rate limit reached, waiting",
			slog.Int64("calls_in_window", count),
			slog.Int("limit", maxPerMinute),
			slog.Duration("wait", wait))
		return wait
	}

	return l.jitter()
}

func (l *SlidingWindow) jitter() time.Duration {
	return time.Duration(l.opts.Float64() * float64(l.opts.Jitter))
}
