package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alejandroruanova/review-insights-service/internal/core/domain"
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/metrics"
	"github.com/google/uuid"
)

// Service writes canonical reviews for a platform connection
type Service struct {
	reviews ReviewWriter
	logger  *slog.Logger
}

// NewService creates a new ingestion service
func NewService(reviews ReviewWriter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		reviews: reviews,
		logger:  logger,
	}
}

// Save stores reviews best-effort. Duplicates inside the batch are dropped
// first, then the store drops ids it already has. A failing review is
// recorded in the result and the rest of the batch is still processed.
func (s *Service) Save(ctx context.Context, connectionID uuid.UUID, reviews []domain.StandardReview) *SaveResult {
	startTime := time.Now()
	result := &SaveResult{Fetched: len(reviews)}

	if len(reviews) == 0 {
		return result
	}

	seen := make(map[string]bool, len(reviews))
	for i, review := range reviews {
		externalID := strings.TrimSpace(review.ExternalID)
		if externalID == "" {
			result.addError(fmt.Sprintf("review %d: missing external id", i))
			metrics.ReviewsStored.WithLabelValues("error").Inc()
			continue
		}

		// Level 1: within-batch
		if seen[externalID] {
			result.Duplicates++
			metrics.ReviewsStored.WithLabelValues("duplicate").Inc()
			continue
		}
		seen[externalID] = true

		// Level 2: already stored for this connection
		inserted, err := s.reviews.InsertIfAbsent(ctx, review.ToReview(connectionID))
		if err != nil {
			s.logger.Warn("failed to store review",
				slog.String("connection_id", connectionID.String()),
				slog.String("external_id", externalID),
				slog.Any("error", err))
			result.addError(fmt.Sprintf("review %s: %v", externalID, err))
			metrics.ReviewsStored.WithLabelValues("error").Inc()
			continue
		}

		if inserted {
			result.New++
			metrics.ReviewsStored.WithLabelValues("new").Inc()
		} else {
			result.Duplicates++
			metrics.ReviewsStored.WithLabelValues("duplicate").Inc()
		}
	}

	s.logger.Info("reviews saved",
		slog.String("connection_id", connectionID.String()),
		slog.Int("fetched", result.Fetched),
		slog.Int("new", result.New),
		slog.Int("duplicates", result.Duplicates),
		slog.Int("errors", result.Failed()),
		slog.Int64("processing_time_ms", time.Since(startTime).Milliseconds()))

	return result
}
