package enrichment

import (
	"context"
	"log/slog"

	"github.com/alejandroruanova/review-insights-service/internal/pkg/config"
	apperrors "github.com/alejandroruanova/review-insights-service/internal/pkg/errors"
	"github.com/google/uuid"
)

// SingleReviewProcessor analyzes one review as soon as it is stored
type SingleReviewProcessor struct {
	reviews    ReviewSource
	sentiments SentimentStore
	languages  LanguageSource
	analyzer   ReviewAnalyzer
	recorder   *recorder
	cfg        config.EnrichmentConfig
	logger     *slog.Logger
}

// NewSingleReviewProcessor creates a new processor
func NewSingleReviewProcessor(
	reviews ReviewSource,
	sentiments SentimentStore,
	linker TaxonomyLinker,
	languages LanguageSource,
	analyzer ReviewAnalyzer,
	cfg config.EnrichmentConfig,
	logger *slog.Logger,
) *SingleReviewProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = withEnrichmentDefaults(cfg)

	return &SingleReviewProcessor{
		reviews:    reviews,
		sentiments: sentiments,
		languages:  languages,
		analyzer:   analyzer,
		recorder: &recorder{
			sentiments: sentiments,
			taxonomy:   linker,
			confidence: cfg.DefaultConfidence,
			logger:     logger,
		},
		cfg:    cfg,
		logger: logger.With(slog.String("component", "single_review")),
	}
}

// Process analyzes a review unless it already has an analysis. Reviews
// without text get the rating-derived sentiment and no taxonomy.
func (p *SingleReviewProcessor) Process(ctx context.Context, reviewID uuid.UUID) (*SingleResult, error) {
	review, err := p.reviews.GetWithCompany(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	done, err := p.sentiments.HasAnalysis(ctx, reviewID)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	if done {
		return &SingleResult{ReviewID: reviewID, Status: StatusAlreadyAnalyzed}, nil
	}

	var companyID uuid.UUID
	if review.PlatformConnection != nil && review.PlatformConnection.Location != nil {
		companyID = review.PlatformConnection.Location.CompanyID
	}

	var pref string
	if companyID != uuid.Nil {
		if pref, err = p.languages.CompanyLanguage(ctx, companyID); err != nil {
			p.logger.Warn("company language unavailable, using default",
				slog.String("company_id", companyID.String()),
				slog.Any("error", err))
		}
	}
	lang := ResolveLanguage(pref, p.cfg.DefaultLanguage)

	if !review.HasContent() {
		analysis, err := p.recorder.saveRating(ctx, review, lang)
		if err != nil {
			return nil, apperrors.DatabaseError(err)
		}
		return &SingleResult{
			ReviewID:       reviewID,
			Status:         StatusRatingFallback,
			Sentiment:      analysis.Sentiment,
			SentimentScore: analysis.SentimentScore,
		}, nil
	}

	result, err := p.analyzer.AnalyzeReview(ctx, toRecord(review), lang)
	if err != nil {
		return nil, err
	}

	stored, err := p.recorder.saveResult(ctx, review, companyID, result, lang)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	out := &SingleResult{
		ReviewID:       reviewID,
		Status:         StatusAnalyzed,
		Sentiment:      stored.analysis.Sentiment,
		SentimentScore: stored.analysis.SentimentScore,
		Keywords:       stored.stats.Keywords,
		Topics:         stored.stats.Topics,
	}
	if stored.linkErr != nil {
		out.TaxonomyError = stored.linkErr.Error()
	}

	p.logger.Info("review analyzed",
		slog.String("review_id", reviewID.String()),
		slog.String("sentiment", string(out.Sentiment)),
		slog.Int("keywords", out.Keywords),
		slog.Int("topics", out.Topics))
	return out, nil
}
