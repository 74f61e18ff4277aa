package repositories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandroruanova/review-insights-service/internal/core/domain"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FetchLogRepository records orchestrator runs and enforces the per-company cooldown
type FetchLogRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewFetchLogRepository creates a new repository instance
func NewFetchLogRepository(db *gorm.DB, logger *slog.Logger) *FetchLogRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &FetchLogRepository{
		db:     db,
		logger: logger,
	}
}

// BeginIfEligible either returns the non-error log that keeps the company in
// cooldown (blocking) or inserts and returns a new pending log (created).
// The check and insert run under a transaction-scoped advisory lock on the
// company, so two concurrent triggers cannot both start a run.
func (r *FetchLogRepository) BeginIfEligible(ctx context.Context, companyID uuid.UUID, triggeredBy *uuid.UUID, now time.Time, cooldown time.Duration) (created, blocking *domain.FetchCallLog, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", companyID.String()).Error; err != nil {
			return fmt.Errorf("failed to lock company: %w", err)
		}

		var last domain.FetchCallLog
		err := tx.
			Where("company_id = ? AND status <> ? AND triggered_at > ?", companyID, domain.FetchStatusError, now.Add(-cooldown)).
			Order("triggered_at DESC").
			Take(&last).
			Error
		if err == nil {
			blocking = &last
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to read fetch logs: %w", err)
		}

		entry := &domain.FetchCallLog{
			CompanyID:   companyID,
			TriggeredAt: now,
			TriggeredBy: triggeredBy,
			Status:      domain.FetchStatusPending,
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to insert fetch log: %w", err)
		}
		created = entry
		return nil
	})
	if err != nil {
		r.logger.Error("cooldown check failed",
			slog.String("company_id", companyID.String()),
			slog.Any("error", err))
		return nil, nil, err
	}
	return created, blocking, nil
}

// Complete marks a run successful with its aggregate stats
func (r *FetchLogRepository) Complete(ctx context.Context, id uuid.UUID, locations, inserted int, warnings []string, at time.Time) error {
	updates := map[string]interface{}{
		"status":              domain.FetchStatusSuccess,
		"locations_processed": locations,
		"reviews_inserted":    inserted,
		"completed_at":        at,
	}
	if len(warnings) > 0 {
		updates["warnings"] = datatypes.JSONSlice[string](warnings)
	}
	return r.update(ctx, id, updates)
}

// Fail marks a run as errored with the message
func (r *FetchLogRepository) Fail(ctx context.Context, id uuid.UUID, message string, at time.Time) error {
	return r.update(ctx, id, map[string]interface{}{
		"status":        domain.FetchStatusError,
		"error_message": message,
		"completed_at":  at,
	})
}

// Get returns a log row by id
func (r *FetchLogRepository) Get(ctx context.Context, id uuid.UUID) (*domain.FetchCallLog, error) {
	var entry domain.FetchCallLog
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&entry).Error; err != nil {
		return nil, fmt.Errorf("failed to load fetch log: %w", err)
	}
	return &entry, nil
}

func (r *FetchLogRepository) update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	err := r.db.WithContext(ctx).
		Model(&domain.FetchCallLog{}).
		Where("id = ?", id).
		Updates(updates).
		Error
	if err != nil {
		return fmt.Errorf("failed to update fetch log: %w", err)
	}
	return nil
}
