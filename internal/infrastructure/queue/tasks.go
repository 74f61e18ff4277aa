package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Queue names, by priority
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Task types
const (
	TaskTypeEnrichmentDrain = "enrichment:drain"
	TaskTypeAnalyzeReview   = "sentiment:analyze-review"
	TaskTypeReviewsFetch    = "reviews:fetch"
)

// DrainTimeout bounds one enrichment:drain run. The drainer stops at a pass
// boundary before it and re-enqueues the rest.
const DrainTimeout = 30 * time.Minute

// ErrAlreadyQueued is returned when a unique task is already pending
var ErrAlreadyQueued = errors.New("task already queued")

// DrainPayload is the payload of an enrichment:drain task
type DrainPayload struct {
	CompanyID  uuid.UUID `json:"company_id"`
	RetryCount int       `json:"retry_count"`
}

// AnalyzeReviewPayload is the payload of a sentiment:analyze-review task
type AnalyzeReviewPayload struct {
	ReviewID uuid.UUID `json:"review_id"`
}

// FetchPayload is the payload of a reviews:fetch task
type FetchPayload struct {
	CompanyID   uuid.UUID `json:"company_id"`
	RequestedBy uuid.UUID `json:"requested_by"`
}

// NewDrainTask builds an enrichment:drain task
func NewDrainTask(companyID uuid.UUID, retryCount int) (*asynq.Task, error) {
	return newTask(TaskTypeEnrichmentDrain, DrainPayload{CompanyID: companyID, RetryCount: retryCount})
}

// NewAnalyzeReviewTask builds a sentiment:analyze-review task
func NewAnalyzeReviewTask(reviewID uuid.UUID) (*asynq.Task, error) {
	return newTask(TaskTypeAnalyzeReview, AnalyzeReviewPayload{ReviewID: reviewID})
}

// NewFetchTask builds a reviews:fetch task
func NewFetchTask(companyID, requestedBy uuid.UUID) (*asynq.Task, error) {
	return newTask(TaskTypeReviewsFetch, FetchPayload{CompanyID: companyID, RequestedBy: requestedBy})
}

func newTask(taskType string, payload interface{}) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", taskType, err)
	}
	return asynq.NewTask(taskType, data), nil
}

// DecodePayload unmarshals a task payload into v
func DecodePayload(task *asynq.Task, v interface{}) error {
	if err := json.Unmarshal(task.Payload(), v); err != nil {
		return fmt.Errorf("invalid %s payload: %w: %w", task.Type(), err, asynq.SkipRetry)
	}
	return nil
}

// RetryDelay is exponential backoff: 2s, 4s, 8s, 16s, ...
func RetryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	if n > 10 {
		n = 10
	}
	return time.Duration(1<<uint(n)) * time.Second
}

// TaskEnqueuer is the subset of AsynqClient used by the scheduler
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Scheduler enqueues the review pipeline's tasks
type Scheduler struct {
	client    TaskEnqueuer
	uniqueTTL time.Duration
	maxRetry  int
}

// NewScheduler creates a Scheduler. uniqueTTL bounds how long a pending drain
// for one company suppresses further drains for it.
func NewScheduler(client TaskEnqueuer, uniqueTTL time.Duration, maxRetry int) *Scheduler {
	if uniqueTTL <= 0 {
		uniqueTTL = 15 * time.Minute
	}
	return &Scheduler{client: client, uniqueTTL: uniqueTTL, maxRetry: maxRetry}
}

// EnqueueDrain schedules a drain of the company's enrichment backlog.
// A drain already pending for the company is not an error.
func (s *Scheduler) EnqueueDrain(ctx context.Context, companyID uuid.UUID, retryCount int) error {
	return s.enqueueDrain(ctx, companyID, retryCount)
}

// EnqueueDrainIn schedules the continuation of a drain that ran out of time
func (s *Scheduler) EnqueueDrainIn(ctx context.Context, companyID uuid.UUID, retryCount int, delay time.Duration) error {
	return s.enqueueDrain(ctx, companyID, retryCount, asynq.ProcessIn(delay))
}

func (s *Scheduler) enqueueDrain(ctx context.Context, companyID uuid.UUID, retryCount int, extra ...asynq.Option) error {
	task, err := NewDrainTask(companyID, retryCount)
	if err != nil {
		return err
	}
	opts := append([]asynq.Option{
		asynq.Queue(QueueDefault),
		asynq.Unique(s.uniqueTTL),
		asynq.MaxRetry(s.maxRetry),
		asynq.Timeout(DrainTimeout),
	}, extra...)
	_, err = s.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, ErrAlreadyQueued) {
		return nil
	}
	return err
}

// EnqueueAnalyzeReview schedules single-review enrichment
func (s *Scheduler) EnqueueAnalyzeReview(ctx context.Context, reviewID uuid.UUID) error {
	task, err := NewAnalyzeReviewTask(reviewID)
	if err != nil {
		return err
	}
	_, err = s.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueCritical),
		asynq.TaskID("analyze:"+reviewID.String()),
		asynq.MaxRetry(s.maxRetry),
	)
	if errors.Is(err, ErrAlreadyQueued) {
		return nil
	}
	return err
}

// EnqueueFetch schedules an orchestrator run on behalf of requestedBy
func (s *Scheduler) EnqueueFetch(ctx context.Context, companyID, requestedBy uuid.UUID) error {
	task, err := NewFetchTask(companyID, requestedBy)
	if err != nil {
		return err
	}
	_, err = s.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueLow),
		asynq.MaxRetry(0),
	)
	return err
}
