package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandroruanova/review-insights-service/internal/core/domain"
	"gorm.io/gorm"
)

// RateLimitRepository is the Postgres-backed call window for the LLM limiter
type RateLimitRepository struct {
	db     *gorm.DB
	scope  string
	logger *slog.Logger
}

// NewRateLimitRepository creates a window store for one scope (e.g. "openai")
func NewRateLimitRepository(db *gorm.DB, scope string, logger *slog.Logger) *RateLimitRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &RateLimitRepository{
		db:     db,
		scope:  scope,
		logger: logger,
	}
}

// CountSince returns the number of calls at or after since and the oldest of them
func (r *RateLimitRepository) CountSince(ctx context.Context, since time.Time) (int64, time.Time, error) {
	var row struct {
		Count  int64
		Oldest *time.Time
	}
	err := r.db.WithContext(ctx).
		Model(&domain.RateLimitLog{}).
		Select("COUNT(*) AS count, MIN(called_at) AS oldest").
		Where("scope = ? AND called_at >= ?", r.scope, since).
		Scan(&row).
		Error
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to count rate limit window: %w", err)
	}
	if row.Oldest == nil {
		return row.Count, time.Time{}, nil
	}
	return row.Count, *row.Oldest, nil
}

// Record appends one call timestamp
func (r *RateLimitRepository) Record(ctx context.Context, at time.Time) error {
	if err := r.db.WithContext(ctx).Create(&domain.RateLimitLog{Scope: r.scope, CalledAt: at}).Error; err != nil {
		return fmt.Errorf("failed to record rate limit call: %w", err)
	}
	return nil
}

// Prune deletes calls older than before
func (r *RateLimitRepository) Prune(ctx context.Context, before time.Time) error {
	result := r.db.WithContext(ctx).
		Where("scope = ? AND called_at < ?", r.scope, before).
		Delete(&domain.RateLimitLog{})
	if result.Error != nil {
		return fmt.Errorf("failed to prune rate limit logs: %w", result.Error)
	}
	r.logger.Debug("pruned rate limit logs", slog.Int64("rows", result.RowsAffected))
	return nil
}
