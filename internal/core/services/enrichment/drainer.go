package enrichment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandroruanova/review-insights-service/internal/core/domain"
	"github.com/alejandroruanova/review-insights-service/internal/core/services/llm_input"
	"github.com/alejandroruanova/review-insights-service/internal/core/services/ratelimit"
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/metrics"
	"github.com/alejandroruanova/review-insights-service/internal/pkg/config"
	apperrors "github.com/alejandroruanova/review-insights-service/internal/pkg/errors"
	"github.com/google/uuid"
)

// Drainer works through a company's unanalyzed reviews page by page
type Drainer struct {
	reviews   ReviewSource
	languages LanguageSource
	analyzer  ReviewAnalyzer
	recorder  *recorder
	cfg       config.EnrichmentConfig
	sleep     func(ctx context.Context, d time.Duration) error
	logger    *slog.Logger
}

// NewDrainer creates a new drainer
func NewDrainer(
	reviews ReviewSource,
	sentiments SentimentStore,
	linker TaxonomyLinker,
	languages LanguageSource,
	analyzer ReviewAnalyzer,
	cfg config.EnrichmentConfig,
	logger *slog.Logger,
) *Drainer {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = withEnrichmentDefaults(cfg)

	return &Drainer{
		reviews:   reviews,
		languages: languages,
		analyzer:  analyzer,
		recorder: &recorder{
			sentiments: sentiments,
			taxonomy:   linker,
			confidence: cfg.DefaultConfidence,
			logger:     logger,
		},
		cfg:    cfg,
		sleep:  ratelimit.SleepContext,
		logger: logger.With(slog.String("component", "drainer")),
	}
}

func withEnrichmentDefaults(cfg config.EnrichmentConfig) config.EnrichmentConfig {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.SubBatchSize <= 0 {
		cfg.SubBatchSize = 5
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.PassBudget <= 0 {
		cfg.PassBudget = 5 * time.Minute
	}
	if cfg.DefaultConfidence <= 0 {
		cfg.DefaultConfidence = domain.DefaultConfidence
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en"
	}
	return cfg
}

// Drain runs passes until the backlog is empty or retryCount reaches the
// retry ceiling, sleeping RetryDelay between passes. Counts are summed over
// all passes; Remaining is what the last pass left behind.
//
// When ctx carries a deadline that cannot fit another delay plus pass, or the
// deadline expires mid-pass, Drain stops with Deferred set and RetryCount
// advanced, so a re-enqueued drain keeps counting toward the ceiling.
func (d *Drainer) Drain(ctx context.Context, companyID uuid.UUID, retryCount int) (*DrainResult, error) {
	result := &DrainResult{RetryCount: retryCount}
	log := d.logger.With(slog.String("company_id", companyID.String()))

	for {
		pass, err := d.pass(ctx, companyID)
		if err != nil {
			if d.deadlineHit(ctx, retryCount) {
				return d.deferDrain(log, result, retryCount), nil
			}
			return result, err
		}
		result.add(pass)
		result.RetryCount = retryCount
		metrics.DrainPasses.Inc()

		log.Info("drain pass finished",
			slog.Int("retry_count", retryCount),
			slog.Int("processed", pass.processed),
			slog.Int("skipped", pass.skipped),
			slog.Int("errors", pass.errors),
			slog.Int("remaining", pass.remaining))

		if pass.remaining == 0 {
			return result, nil
		}
		if retryCount >= d.cfg.MaxRetries {
			log.Warn("drain retry ceiling reached",
				slog.Int("retry_count", retryCount),
				slog.Int("remaining", pass.remaining))
			return result, nil
		}
		if !d.fitsAnotherPass(ctx) {
			return d.deferDrain(log, result, retryCount), nil
		}

		if err := d.sleep(ctx, d.cfg.RetryDelay); err != nil {
			if d.deadlineHit(ctx, retryCount) {
				return d.deferDrain(log, result, retryCount), nil
			}
			return result, err
		}
		retryCount++
	}
}

func (d *Drainer) fitsAnotherPass(ctx context.Context) bool {
	deadline, ok := ctx.Deadline()
	if !ok {
		return true
	}
	return time.Until(deadline) >= d.cfg.RetryDelay+d.cfg.PassBudget
}

func (d *Drainer) deadlineHit(ctx context.Context, retryCount int) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded) && retryCount < d.cfg.MaxRetries
}

func (d *Drainer) deferDrain(log *slog.Logger, result *DrainResult, retryCount int) *DrainResult {
	result.RetryCount = retryCount + 1
	result.Deferred = true
	log.Info("drain deferred by task deadline",
		slog.Int("next_retry_count", result.RetryCount),
		slog.Int("remaining", result.Remaining))
	return result
}

// pass analyzes one page of the backlog
func (d *Drainer) pass(ctx context.Context, companyID uuid.UUID) (passResult, error) {
	var res passResult

	total, err := d.reviews.CountUnanalyzed(ctx, companyID)
	if err != nil {
		return res, apperrors.DatabaseError(err)
	}
	page, err := d.reviews.ListUnanalyzed(ctx, companyID, d.cfg.PageSize)
	if err != nil {
		return res, apperrors.DatabaseError(err)
	}
	if len(page) == 0 {
		return res, nil
	}

	lang := d.language(ctx, companyID)

	textual := make([]domain.Review, 0, len(page))
	for i := range page {
		if page[i].HasContent() {
			textual = append(textual, page[i])
			continue
		}
		if _, err := d.recorder.saveRating(ctx, &page[i], lang); err != nil {
			res.errors++
			continue
		}
		res.processed++
	}

	for _, batch := range llm_input.Chunk(textual, d.cfg.SubBatchSize) {
		outcome, err := d.analyzer.AnalyzeBatch(ctx, toRecords(batch), lang)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			if apperrors.IsRateLimited(err) {
				// the rest of the page stays in the backlog for the next pass
				res.skipped += len(batch)
				res.rateLimited = true
				metrics.SentimentResults.WithLabelValues("skipped").Add(float64(len(batch)))
				d.logger.Warn("llm rate limited, stopping pass",
					slog.String("company_id", companyID.String()),
					slog.Int("skipped", len(batch)))
				break
			}
			res.errors += len(batch)
			metrics.SentimentResults.WithLabelValues("error").Add(float64(len(batch)))
			d.logger.Error("batch analysis failed",
				slog.String("company_id", companyID.String()),
				slog.Int("reviews", len(batch)),
				slog.Any("error", err))
			continue
		}

		for i := range batch {
			review := &batch[i]
			analysis, ok := outcome.Results[review.ID.String()]
			if !ok {
				res.errors++
				metrics.SentimentResults.WithLabelValues("unmatched").Inc()
				continue
			}

			saved, err := d.recorder.saveResult(ctx, review, companyID, analysis, lang)
			if err != nil {
				res.errors++
				continue
			}
			res.processed++
			if saved.linkErr != nil {
				res.errors++
			}
		}
	}

	res.remaining = int(total) - res.processed
	if res.remaining < 0 {
		res.remaining = 0
	}
	return res, nil
}

func (d *Drainer) language(ctx context.Context, companyID uuid.UUID) string {
	pref, err := d.languages.CompanyLanguage(ctx, companyID)
	if err != nil {
		d.logger.Warn("company language unavailable, using default",
			slog.String("company_id", companyID.String()),
			slog.Any("error", err))
	}
	return ResolveLanguage(pref, d.cfg.DefaultLanguage)
}

func toRecords(reviews []domain.Review) []llm_input.ReviewRecord {
	records := make([]llm_input.ReviewRecord, len(reviews))
	for i, r := range reviews {
		records[i] = toRecord(&r)
	}
	return records
}

func toRecord(r *domain.Review) llm_input.ReviewRecord {
	record := llm_input.ReviewRecord{
		ReviewID: r.ID.String(),
		Rating:   r.Rating,
		Content:  r.Content,
	}
	if r.Title != nil {
		record.Title = *r.Title
	}
	return record
}

// String is used in task logs
func (r *DrainResult) String() string {
	return fmt.Sprintf("processed=%d skipped=%d errors=%d remaining=%d retries=%d",
		r.Processed, r.Skipped, r.Errors, r.Remaining, r.RetryCount)
}
