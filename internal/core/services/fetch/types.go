package fetch

import (
	"context"
	"time"

	"github.com/alejandroruanova/review-insights-service/internal/core/domain"
	"github.com/alejandroruanova/review-insights-service/internal/core/services/ingestion"
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/zembra"
	"github.com/google/uuid"
)

// CompanyStore reads tenants and their connections
type CompanyStore interface {
	FindCompany(ctx context.Context, id uuid.UUID) (*domain.Company, error)
	FindProfile(ctx context.Context, id uuid.UUID) (*domain.UserProfile, error)
	ListActiveLocations(ctx context.Context, companyID uuid.UUID) ([]domain.Location, error)
	MarkConnectionSynced(ctx context.Context, connectionID uuid.UUID, at time.Time, metadata map[string]interface{}) error
}

// LogStore records runs and enforces the cooldown
type LogStore interface {
	BeginIfEligible(ctx context.Context, companyID uuid.UUID, triggeredBy *uuid.UUID, now time.Time, cooldown time.Duration) (created, blocking *domain.FetchCallLog, err error)
	Complete(ctx context.Context, id uuid.UUID, locations, inserted int, warnings []string, at time.Time) error
	Fail(ctx context.Context, id uuid.UUID, message string, at time.Time) error
}

// ReviewSource pulls reviews for one listing
type ReviewSource interface {
	FetchReviews(ctx context.Context, network, slug string) (*zembra.FetchResult, error)
}

// ReviewSaver stores pulled reviews
type ReviewSaver interface {
	Save(ctx context.Context, connectionID uuid.UUID, reviews []domain.StandardReview) *ingestion.SaveResult
}

// DrainScheduler hands new reviews to enrichment
type DrainScheduler interface {
	EnqueueDrain(ctx context.Context, companyID uuid.UUID, retryCount int) error
}

// Caller is who asked for a fetch. System callers skip the ownership check.
type Caller struct {
	UserID uuid.UUID
	System bool
}

// TriggerResult is the outcome of Trigger
type TriggerResult struct {
	Success            bool       `json:"success"`
	Skipped            bool       `json:"skipped"`
	LogID              *uuid.UUID `json:"log_id,omitempty"`
	NextEligibleAt     *time.Time `json:"next_eligible_at,omitempty"`
	CooldownHours      float64    `json:"cooldown_hours,omitempty"`
	LocationsProcessed int        `json:"locations_processed"`
	ReviewsFetched     int        `json:"reviews_fetched"`
	ReviewsInserted    int        `json:"reviews_inserted"`
	PendingConnections int        `json:"pending_connections"`
	Warnings           []string   `json:"warnings,omitempty"`
}
