package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateWindow is a sorted set of call timestamps shared by every process
// talking to the same Redis. Scores are unix milliseconds.
type RateWindow struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRateWindow creates a window store under key. Members expire with the
// whole key after ttl of inactivity.
func (r *RedisCache) NewRateWindow(key string, ttl time.Duration) *RateWindow {
	return &RateWindow{client: r.client, key: key, ttl: ttl}
}

// CountSince returns the number of calls at or after since and the oldest of them
func (w *RateWindow) CountSince(ctx context.Context, since time.Time) (int64, time.Time, error) {
	lower := strconv.FormatInt(since.UnixMilli(), 10)

	count, err := w.client.ZCount(ctx, w.key, lower, "+inf").Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to count rate window: %w", err)
	}
	if count == 0 {
		return 0, time.Time{}, nil
	}

	oldest, err := w.client.ZRangeByScoreWithScores(ctx, w.key, &redis.ZRangeBy{
		Min:   lower,
		Max:   "+inf",
		Count: 1,
	}).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to read rate window: %w", err)
	}
	if len(oldest) == 0 {
		return count, time.Time{}, nil
	}

	return count, time.UnixMilli(int64(oldest[0].Score)), nil
}

// Record appends a call at the given time
func (w *RateWindow) Record(ctx context.Context, at time.Time) error {
	pipe := w.client.TxPipeline()
	pipe.ZAdd(ctx, w.key, redis.Z{Score: float64(at.UnixMilli()), Member: uuid.NewString()})
	if w.ttl > 0 {
		pipe.Expire(ctx, w.key, w.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record rate window call: %w", err)
	}
	return nil
}

// Prune drops calls strictly older than before
func (w *RateWindow) Prune(ctx context.Context, before time.Time) error {
	upper := "(" + strconv.FormatInt(before.UnixMilli(), 10)
	if err := w.client.ZRemRangeByScore(ctx, w.key, "-inf", upper).Err(); err != nil {
		return fmt.Errorf("failed to prune rate window: %w", err)
	}
	return nil
}
