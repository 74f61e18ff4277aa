package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore implements WindowStore for testing
type memoryStore struct {
	mu       sync.Mutex
	calls    []time.Time
	pruned   int
	countErr error
	pruneErr error
}

func (m *memoryStore) CountSince(ctx context.Context, since time.Time) (int64, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, time.Time{}, m.countErr
	}
	var count int64
	var oldest time.Time
	for _, c := range m.calls {
		if c.Before(since) {
			continue
		}
		if count == 0 || c.Before(oldest) {
			oldest = c
		}
		count++
	}
	return count, oldest, nil
}

func (m *memoryStore) Record(ctx context.Context, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, at)
	return nil
}

func (m *memoryStore) Prune(ctx context.Context, before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruned++
	if m.pruneErr != nil {
		return m.pruneErr
	}
	kept := m.calls[:0]
	for _, c := range m.calls {
		if !c.Before(before) {
			kept = append(kept, c)
		}
	}
	m.calls = kept
	return nil
}

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return ctx.Err()
}

func newLimiter(store WindowStore, clock *fakeClock, random float64) *SlidingWindow {
	return NewSlidingWindow(store, Options{
		Window:             60 * time.Second,
		Jitter:             2 * time.Second,
		CleanupProbability: 0.01,
		Now:                clock.Now,
		Sleep:              clock.Sleep,
		Float64:            func() float64 { return random },
	}, nil)
}

func TestSlidingWindow_UnderLimitSleepsJitter(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := &memoryStore{}
	limiter := newLimiter(store, clock, 0.5)

	require.NoError(t, limiter.Gate(context.Background(), 50))

	require.Len(t, clock.sleeps, 1)
	assert.Equal(t, time.Second, clock.sleeps[0])
	require.Len(t, store.calls, 1)
	assert.Equal(t, clock.now, store.calls[0], "call recorded after the wait")
	assert.Zero(t, store.pruned)
}

func TestSlidingWindow_FullWindowWaitsForOldest(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	store := &memoryStore{}
	for i := 0; i < 3; i++ {
		store.calls = append(store.calls, start.Add(-20*time.Second+time.Duration(i)*time.Second))
	}
	limiter := newLimiter(store, clock, 0.5)

	require.NoError(t, limiter.Gate(context.Background(), 3))

	// 61s - (now - oldest) = 61s - 20s
	require.Len(t, clock.sleeps, 1)
	assert.Equal(t, 41*time.Second, clock.sleeps[0])
	assert.Len(t, store.calls, 4)
}

func TestSlidingWindow_OldestAtWindowEdge(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	store := &memoryStore{calls: []time.Time{start.Add(-60 * time.Second), start.Add(-time.Second)}}
	limiter := newLimiter(store, clock, 0.5)

	require.NoError(t, limiter.Gate(context.Background(), 2))
	assert.Equal(t, []time.Duration{time.Second}, clock.sleeps)
}

// staleStore reports a full window whose oldest call is already outside it
type staleStore struct{ memoryStore }

func (s *staleStore) CountSince(ctx context.Context, since time.Time) (int64, time.Time, error) {
	return 10, since.Add(-time.Minute), nil
}

func TestSlidingWindow_WaitClampedAtZero(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := &staleStore{}
	limiter := newLimiter(store, clock, 0.5)

	require.NoError(t, limiter.Gate(context.Background(), 10))
	assert.Empty(t, clock.sleeps)
	assert.Len(t, store.calls, 1)
}

func TestSlidingWindow_ConsecutiveCallsCompound(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := &memoryStore{}
	limiter := newLimiter(store, clock, 0)

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Gate(context.Background(), 3))
	}
	assert.Empty(t, clock.sleeps, "zero jitter under the limit")

	require.NoError(t, limiter.Gate(context.Background(), 3))
	require.Len(t, clock.sleeps, 1)
	assert.Equal(t, 61*time.Second, clock.sleeps[0])
}

func TestSlidingWindow_ProbabilisticCleanup(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := &memoryStore{calls: []time.Time{clock.now.Add(-10 * time.Minute)}, pruneErr: errors.New("db down")}
	limiter := newLimiter(store, clock, 0.001)

	require.NoError(t, limiter.Gate(context.Background(), 50), "cleanup failures are not fatal")
	assert.Equal(t, 1, store.pruned)
}

func TestSlidingWindow_StoreErrorFallsBackToJitter(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := &memoryStore{countErr: errors.New("redis down")}
	limiter := newLimiter(store, clock, 0.25)

	require.NoError(t, limiter.Gate(context.Background(), 1))
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, clock.sleeps)
}

func TestSlidingWindow_ContextCancelled(t *testing.T) {
	store := &memoryStore{}
	limiter := NewSlidingWindow(store, Options{Jitter: time.Hour, Float64: func() float64 { return 0.9 }}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := limiter.Gate(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.calls)
}

func TestTokenBucket(t *testing.T) {
	bucket := NewTokenBucket()
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, bucket.Gate(ctx, 600))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond, "burst is served immediately")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.NoError(t, bucket.Gate(ctx, 1))
	assert.Error(t, bucket.Gate(ctx, 1), "second call would wait a minute")
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, SleepContext(context.Background(), 0))
	assert.NoError(t, SleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
}
