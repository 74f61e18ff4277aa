package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alejandroruanova/review-insights-service/internal/core/services/enrichment"
	"github.com/alejandroruanova/review-insights-service/internal/core/services/fetch"
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/queue"
	apperrors "github.com/alejandroruanova/review-insights-service/internal/pkg/errors"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Drainer drains a company's enrichment backlog
type Drainer interface {
	Drain(ctx context.Context, companyID uuid.UUID, retryCount int) (*enrichment.DrainResult, error)
}

// ReviewProcessor enriches one review
type ReviewProcessor interface {
	Process(ctx context.Context, reviewID uuid.UUID) (*enrichment.SingleResult, error)
}

// FetchTrigger runs a company-wide fetch
type FetchTrigger interface {
	Trigger(ctx context.Context, companyID uuid.UUID, caller fetch.Caller) (*fetch.TriggerResult, error)
}

// ArchiveCleaner removes old archived payloads
type ArchiveCleaner interface {
	CleanupOldFiles(ctx context.Context, olderThan time.Duration) (int, error)
}

// DrainRequeuer schedules the continuation of a deferred drain
type DrainRequeuer interface {
	EnqueueDrainIn(ctx context.Context, companyID uuid.UUID, retryCount int, delay time.Duration) error
}

// Registrar is the part of the asynq server the handlers register on
type Registrar interface {
	HandleFunc(pattern string, handler func(context.Context, *asynq.Task) error)
	Use(middleware func(asynq.Handler) asynq.Handler)
}

// Handlers processes the pipeline's background tasks
type Handlers struct {
	drainer   Drainer
	processor ReviewProcessor
	fetcher   FetchTrigger
	archive   ArchiveCleaner
	retention time.Duration
	requeue   DrainRequeuer
	delay     time.Duration
	logger    *slog.Logger
}

// NewHandlers creates the task handlers
func NewHandlers(drainer Drainer, processor ReviewProcessor, fetcher FetchTrigger, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handlers{
		drainer:   drainer,
		processor: processor,
		fetcher:   fetcher,
		logger:    logger.With(slog.String("component", "worker")),
	}
}

// WithArchiveCleanup enables the storage:cleanup task
func (h *Handlers) WithArchiveCleanup(archive ArchiveCleaner, retention time.Duration) *Handlers {
	h.archive = archive
	h.retention = retention
	return h
}

// WithDrainRequeue lets a drain that hit its task deadline continue in a
// fresh task after delay
func (h *Handlers) WithDrainRequeue(requeue DrainRequeuer, delay time.Duration) *Handlers {
	h.requeue = requeue
	h.delay = delay
	return h
}

// Register wires every task type and the logging middleware
func (h *Handlers) Register(r Registrar) {
	r.Use(h.logTasks)
	r.HandleFunc(queue.TaskTypeEnrichmentDrain, h.HandleDrain)
	r.HandleFunc(queue.TaskTypeAnalyzeReview, h.HandleAnalyzeReview)
	r.HandleFunc(queue.TaskTypeReviewsFetch, h.HandleFetch)
	if h.archive != nil {
		r.HandleFunc(queue.TaskTypeStorageCleanup, h.HandleCleanup)
	}
}

// HandleDrain runs the bounded drain loop for one company
func (h *Handlers) HandleDrain(ctx context.Context, task *asynq.Task) error {
	var payload queue.DrainPayload
	if err := queue.DecodePayload(task, &payload); err != nil {
		return err
	}

	result, err := h.drainer.Drain(ctx, payload.CompanyID, payload.RetryCount)
	if err != nil {
		return classify(err)
	}

	if result.Deferred {
		return h.continueDrain(payload.CompanyID, result.RetryCount)
	}
	if result.Remaining > 0 {
		h.logger.Warn("drain stopped with backlog remaining",
			slog.String("company_id", payload.CompanyID.String()),
			slog.Int("remaining", result.Remaining),
			slog.Int("retry_count", result.RetryCount))
	}
	return nil
}

func (h *Handlers) continueDrain(companyID uuid.UUID, retryCount int) error {
	if h.requeue == nil {
		return fmt.Errorf("drain for company %s deferred with no requeue configured", companyID)
	}
	// the task context is at its deadline
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.requeue.EnqueueDrainIn(ctx, companyID, retryCount, h.delay); err != nil {
		return fmt.Errorf("failed to requeue drain: %w", err)
	}
	h.logger.Info("drain continued in a new task",
		slog.String("company_id", companyID.String()),
		slog.Int("retry_count", retryCount))
	return nil
}

// HandleAnalyzeReview enriches one review
func (h *Handlers) HandleAnalyzeReview(ctx context.Context, task *asynq.Task) error {
	var payload queue.AnalyzeReviewPayload
	if err := queue.DecodePayload(task, &payload); err != nil {
		return err
	}

	result, err := h.processor.Process(ctx, payload.ReviewID)
	if err != nil {
		return classify(err)
	}

	h.logger.Debug("review analyzed",
		slog.String("review_id", payload.ReviewID.String()),
		slog.String("status", result.Status))
	return nil
}

// HandleFetch runs an orchestrator fetch. A nil requester runs as the system.
func (h *Handlers) HandleFetch(ctx context.Context, task *asynq.Task) error {
	var payload queue.FetchPayload
	if err := queue.DecodePayload(task, &payload); err != nil {
		return err
	}

	caller := fetch.Caller{UserID: payload.RequestedBy, System: payload.RequestedBy == uuid.Nil}
	result, err := h.fetcher.Trigger(ctx, payload.CompanyID, caller)
	if err != nil {
		return classify(err)
	}

	if result.Skipped {
		h.logger.Info("fetch skipped by cooldown",
			slog.String("company_id", payload.CompanyID.String()),
			slog.Any("next_eligible_at", result.NextEligibleAt))
	}
	return nil
}

// HandleCleanup removes archives older than the retention period
func (h *Handlers) HandleCleanup(ctx context.Context, task *asynq.Task) error {
	if h.archive == nil || h.retention <= 0 {
		return nil
	}
	removed, err := h.archive.CleanupOldFiles(ctx, h.retention)
	if err != nil {
		return err
	}
	h.logger.Info("archive cleanup finished", slog.Int("removed", removed))
	return nil
}

// classify stops retries for errors a retry cannot fix
func classify(err error) error {
	if appErr, ok := apperrors.GetAppError(err); ok &&
		appErr.StatusCode >= http.StatusBadRequest && appErr.StatusCode < http.StatusInternalServerError &&
		appErr.StatusCode != http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}

func (h *Handlers) logTasks(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
		start := time.Now()
		taskID, _ := asynq.GetTaskID(ctx)
		retried, _ := asynq.GetRetryCount(ctx)

		err := next.ProcessTask(ctx, task)

		attrs := []any{
			slog.String("task_type", task.Type()),
			slog.String("task_id", taskID),
			slog.Int("retried", retried),
			slog.Duration("duration", time.Since(start)),
		}
		switch {
		case err == nil:
			h.logger.Info("task completed", attrs...)
		case errors.Is(err, asynq.SkipRetry):
			h.logger.Warn("task dropped", append(attrs, slog.Any("error", err))...)
		default:
			h.logger.Error("task failed", append(attrs, slog.Any("error", err))...)
		}
		return err
	})
}
