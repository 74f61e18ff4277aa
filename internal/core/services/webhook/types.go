package webhook

import (
	"context"
	"encoding/json"
	"time"

	"github.com/alejandroruanova/review-insights-service/internal/core/domain"
	"github.com/alejandroruanova/review-insights-service/internal/core/services/ingestion"
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/storage"
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/zembra"
	"github.com/google/uuid"
)

// ReviewsEvent is the only event type that carries reviews
const ReviewsEvent = "reviews"

// Outcome classifies how a delivery was handled
type Outcome string

const (
	OutcomeAck        Outcome = "ok"
	OutcomeIgnored    Outcome = "ignored"
	OutcomeUnresolved Outcome = "unresolved"
	OutcomeProcessed  Outcome = "processed"
)

// ConnectionStore resolves and stamps platform connections
type ConnectionStore interface {
	FindConnectionBySlug(ctx context.Context, network, slug string) (*domain.PlatformConnection, error)
	MarkConnectionSynced(ctx context.Context, connectionID uuid.UUID, at time.Time, metadata map[string]interface{}) error
}

// Archive keeps raw deliveries
type Archive interface {
	SaveWebhookPayload(ctx context.Context, jobID string, body []byte) (*storage.FileMetadata, error)
}

// ReviewSaver stores pushed reviews
type ReviewSaver interface {
	Save(ctx context.Context, connectionID uuid.UUID, reviews []domain.StandardReview) *ingestion.SaveResult
}

// DrainScheduler hands new reviews to enrichment
type DrainScheduler interface {
	EnqueueDrain(ctx context.Context, companyID uuid.UUID, retryCount int) error
}

// Payload is a provider push
type Payload struct {
	Type string      `json:"type"`
	Data PayloadData `json:"data"`
}

// PayloadData carries the job, the listing and its reviews
type PayloadData struct {
	Job     *zembra.Job       `json:"job,omitempty"`
	Target  *zembra.Target    `json:"target,omitempty"`
	Reviews []json.RawMessage `json:"reviews"`
}

// Result is returned to the provider. Unresolved deliveries still answer 200.
type Result struct {
	Status     Outcome  `json:"status"`
	Success    bool     `json:"success"`
	Type       string   `json:"type,omitempty"`
	Fetched    int      `json:"fetched,omitempty"`
	New        int      `json:"new,omitempty"`
	Duplicates int      `json:"duplicates,omitempty"`
	Errors     []string `json:"errors,omitempty"`
	Error      string   `json:"error,omitempty"`
}
