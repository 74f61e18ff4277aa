package repositories

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandroruanova/review-insights-service/internal/core/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SentimentRepository stores one analysis per review
type SentimentRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewSentimentRepository creates a new repository instance
func NewSentimentRepository(db *gorm.DB, logger *slog.Logger) *SentimentRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &SentimentRepository{
		db:     db,
		logger: logger,
	}
}

// UpsertSentiment writes the analysis, overwriting any previous one for the review
func (r *SentimentRepository) UpsertSentiment(ctx context.Context, analysis *domain.SentimentAnalysis) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "review_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"sentiment", "sentiment_score", "emotions", "confidence", "language", "source", "updated_at",
			}),
		}).
		Create(analysis).
		Error
	if err != nil {
		r.logger.Error("failed to upsert sentiment",
			slog.String("review_id", analysis.ReviewID.String()),
			slog.Any("error", err))
		return fmt.Errorf("failed to upsert sentiment: %w", err)
	}
	return nil
}

// HasAnalysis reports whether the review already has an analysis row
func (r *SentimentRepository) HasAnalysis(ctx context.Context, reviewID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.SentimentAnalysis{}).
		Where("review_id = ?", reviewID).
		Count(&count).
		Error
	if err != nil {
		return false, fmt.Errorf("failed to check sentiment row: %w", err)
	}
	return count > 0, nil
}
