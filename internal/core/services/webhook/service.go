package webhook

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandroruanova/review-insights-service/internal/core/domain"
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/metrics"
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/zembra"
	apperrors "github.com/alejandroruanova/review-insights-service/internal/pkg/errors"
)

// Service processes review pushes from the review source
type Service struct {
	token       []byte
	connections ConnectionStore
	archive     Archive
	saver       ReviewSaver
	scheduler   DrainScheduler
	now         func() time.Time
	logger      *slog.Logger
}

// NewService creates a webhook service. archive may be nil.
func NewService(token string, connections ConnectionStore, archive Archive, saver ReviewSaver, scheduler DrainScheduler, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		token:       []byte(token),
		connections: connections,
		archive:     archive,
		saver:       saver,
		scheduler:   scheduler,
		now:         time.Now,
		logger:      logger.With(slog.String("component", "webhook")),
	}
}

// Authorize compares the shared secret in constant time
func (s *Service) Authorize(token string) bool {
	if len(s.token) == 0 || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare(s.token, []byte(token)) == 1
}

// Handle processes one delivery. Only malformed bodies and storage
// failures while resolving the connection are returned as errors.
func (s *Service) Handle(ctx context.Context, body []byte) (*Result, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return &Result{Status: OutcomeAck, Success: true}, nil
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperrors.BadRequest("invalid webhook payload").WithDetails("error", err.Error())
	}

	if payload.Type != ReviewsEvent {
		s.logger.Info("ignoring webhook event", slog.String("type", payload.Type))
		return &Result{Status: OutcomeIgnored, Success: true, Type: payload.Type}, nil
	}

	target := payload.Data.Target
	if target == nil || target.Slug == "" {
		return s.unresolved("webhook payload has no target slug"), nil
	}

	conn, err := s.connections.FindConnectionBySlug(ctx, target.Network, target.Slug)
	if apperrors.IsNotFound(err) {
		s.logger.Warn("no connection for webhook target",
			slog.String("network", target.Network),
			slog.String("slug", target.Slug))
		return s.unresolved(fmt.Sprintf("no active connection for %s listing %q", target.Network, target.Slug)), nil
	}
	if err != nil {
		return nil, err
	}

	jobID := ""
	if payload.Data.Job != nil {
		jobID = payload.Data.Job.ID
	}
	s.archivePayload(ctx, jobID, body)

	reviews, normalizeErrs := zembra.NormalizeReviews(payload.Data.Reviews)
	metrics.ReviewsFetched.WithLabelValues("webhook").Add(float64(len(reviews)))

	saved := s.saver.Save(ctx, conn.ID, reviews)

	result := &Result{
		Status:     OutcomeProcessed,
		Success:    true,
		Fetched:    len(payload.Data.Reviews),
		New:        saved.New,
		Duplicates: saved.Duplicates,
	}
	result.Errors = append(result.Errors, normalizeErrs...)
	result.Errors = append(result.Errors, saved.Errors...)

	metadata := map[string]interface{}{
		"last_fetch_status": "webhook",
		"last_fetch_count":  len(reviews),
		"last_fetch_new":    saved.New,
	}
	if jobID != "" {
		metadata["last_job_id"] = jobID
	}
	if err := s.connections.MarkConnectionSynced(ctx, conn.ID, s.now(), metadata); err != nil {
		s.logger.Warn("failed to mark connection synced",
			slog.String("connection_id", conn.ID.String()),
			slog.Any("error", err))
	}

	if saved.New > 0 {
		s.scheduleDrain(ctx, conn)
	}

	s.logger.Info("webhook processed",
		slog.String("connection_id", conn.ID.String()),
		slog.String("job_id", jobID),
		slog.Int("fetched", result.Fetched),
		slog.Int("new", result.New),
		slog.Int("errors", len(result.Errors)))

	return result, nil
}

func (s *Service) unresolved(msg string) *Result {
	return &Result{Status: OutcomeUnresolved, Success: false, Error: msg}
}

func (s *Service) archivePayload(ctx context.Context, jobID string, body []byte) {
	if s.archive == nil {
		return
	}
	if _, err := s.archive.SaveWebhookPayload(ctx, jobID, body); err != nil {
		s.logger.Warn("failed to archive webhook payload",
			slog.String("job_id", jobID),
			slog.Any("error", err))
	}
}

func (s *Service) scheduleDrain(ctx context.Context, conn *domain.PlatformConnection) {
	if conn.Location == nil {
		s.logger.Warn("connection has no location, enrichment not scheduled",
			slog.String("connection_id", conn.ID.String()))
		return
	}
	if err := s.scheduler.EnqueueDrain(ctx, conn.Location.CompanyID, 0); err != nil {
		s.logger.Error("failed to schedule enrichment",
			slog.String("company_id", conn.Location.CompanyID.String()),
			slog.Any("error", err))
	}
}
