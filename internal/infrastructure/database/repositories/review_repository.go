package repositories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandroruanova/review-insights-service/internal/core/domain"
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/metrics"
	apperrors "github.com/alejandroruanova/review-insights-service/internal/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReviewRepository persists reviews and reads the enrichment backlog
type ReviewRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewReviewRepository creates a new repository instance
func NewReviewRepository(db *gorm.DB, logger *slog.Logger) *ReviewRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &ReviewRepository{
		db:     db,
		logger: logger,
	}
}

// InsertIfAbsent inserts the review unless (platform_connection_id, external_id)
// already exists. It reports whether a row was written.
func (r *ReviewRepository) InsertIfAbsent(ctx context.Context, review *domain.Review) (bool, error) {
	defer metrics.TrackDBOperation("reviews.insert")(time.Now())

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "platform_connection_id"}, {Name: "external_id"}},
			DoNothing: true,
		}).
		Create(review)
	if result.Error != nil {
		return false, fmt.Errorf("failed to insert review %s: %w", review.ExternalID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// backlog selects reviews of active connections at active locations with no analysis
func (r *ReviewRepository) backlog(ctx context.Context, companyID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&domain.Review{}).
		Joins("JOIN platform_connections pc ON pc.id = reviews.platform_connection_id AND pc.is_active").
		Joins("JOIN locations l ON l.id = pc.location_id AND l.is_active").
		Joins("LEFT JOIN sentiment_analyses sa ON sa.review_id = reviews.id").
		Where("l.company_id = ? AND sa.id IS NULL", companyID)
}

// CountUnanalyzed returns the size of the company's enrichment backlog
func (r *ReviewRepository) CountUnanalyzed(ctx context.Context, companyID uuid.UUID) (int64, error) {
	var count int64
	if err := r.backlog(ctx, companyID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count unanalyzed reviews: %w", err)
	}
	return count, nil
}

// ListUnanalyzed returns up to limit backlog reviews, oldest first
func (r *ReviewRepository) ListUnanalyzed(ctx context.Context, companyID uuid.UUID, limit int) ([]domain.Review, error) {
	defer metrics.TrackDBOperation("reviews.backlog")(time.Now())

	var reviews []domain.Review
	err := r.backlog(ctx, companyID).
		Select("reviews.*").
		Order("reviews.created_at ASC, reviews.id ASC").
		Limit(limit).
		Find(&reviews).
		Error
	if err != nil {
		r.logger.Error("failed to list unanalyzed reviews",
			slog.String("company_id", companyID.String()),
			slog.Any("error", err))
		return nil, fmt.Errorf("failed to list unanalyzed reviews: %w", err)
	}
	return reviews, nil
}

// GetWithCompany loads a review together with its connection and location
func (r *ReviewRepository) GetWithCompany(ctx context.Context, id uuid.UUID) (*domain.Review, error) {
	var review domain.Review
	err := r.db.WithContext(ctx).
		Preload("PlatformConnection.Location").
		Where("id = ?", id).
		Take(&review).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.RecordNotFound("review")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load review: %w", err)
	}
	return &review, nil
}
