package enrichment

import (
	"context"
	"log/slog"

	"github.com/alejandroruanova/review-insights-service/internal/core/domain"
	"github.com/alejandroruanova/review-insights-service/internal/core/services/taxonomy"
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/metrics"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// recorder persists analyses; the sentiment row always precedes taxonomy links
type recorder struct {
	sentiments SentimentStore
	taxonomy   TaxonomyLinker
	confidence float64
	logger     *slog.Logger
}

// saveRating stores the rating-derived sentiment of a review without text
func (r *recorder) saveRating(ctx context.Context, review *domain.Review, lang string) (*domain.SentimentAnalysis, error) {
	sentiment, raw := domain.SentimentFromRating(review.Rating)
	analysis := &domain.SentimentAnalysis{
		ReviewID:       review.ID,
		Sentiment:      sentiment,
		SentimentScore: domain.ScoreFromLLM(raw),
		Confidence:     r.confidence,
		Language:       lang,
		Source:         domain.SourceRating,
	}
	if err := r.sentiments.UpsertSentiment(ctx, analysis); err != nil {
		metrics.SentimentResults.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.SentimentResults.WithLabelValues("rating").Inc()
	return analysis, nil
}

// saved is a stored analysis and the outcome of its taxonomy linking
type saved struct {
	analysis *domain.SentimentAnalysis
	stats    taxonomy.LinkStats
	linkErr  error
}

// saveResult stores a model analysis then links its taxonomy. Only a
// sentiment failure is returned as an error; linking failures ride on saved.
func (r *recorder) saveResult(ctx context.Context, review *domain.Review, companyID uuid.UUID, result *AnalysisResult, lang string) (*saved, error) {
	analysis := &domain.SentimentAnalysis{
		ReviewID:       review.ID,
		Sentiment:      domain.Sentiment(result.Sentiment),
		SentimentScore: domain.ScoreFromLLM(*result.Score),
		Emotions:       datatypes.JSONSlice[string](result.Emotions),
		Confidence:     r.confidence,
		Language:       lang,
		Source:         domain.SourceLLM,
	}
	if err := r.sentiments.UpsertSentiment(ctx, analysis); err != nil {
		metrics.SentimentResults.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.SentimentResults.WithLabelValues("analyzed").Inc()

	stats, linkErr := r.taxonomy.LinkReview(ctx, taxonomy.ReviewTaxonomy{
		ReviewID:     review.ID,
		ConnectionID: review.PlatformConnectionID,
		CompanyID:    companyID,
		Sentiment:    analysis.Sentiment,
		Keywords:     result.Keywords,
		Topics:       result.Topics,
	})
	if linkErr != nil {
		r.logger.Warn("taxonomy linking failed",
			slog.String("review_id", review.ID.String()),
			slog.Any("error", linkErr))
	}
	return &saved{analysis: analysis, stats: stats, linkErr: linkErr}, nil
}
