package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandroruanova/review-insights-service/internal/core/domain"
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/metrics"
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/zembra"
	"github.com/alejandroruanova/review-insights-service/internal/pkg/config"
	apperrors "github.com/alejandroruanova/review-insights-service/internal/pkg/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const defaultMaxConcurrency = 8

// Orchestrator runs a full review fetch for a company
type Orchestrator struct {
	companies CompanyStore
	logs      LogStore
	source    ReviewSource
	saver     ReviewSaver
	scheduler DrainScheduler
	cfg       config.FetchConfig
	now       func() time.Time
	logger    *slog.Logger
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(
	companies CompanyStore,
	logs LogStore,
	source ReviewSource,
	saver ReviewSaver,
	scheduler DrainScheduler,
	cfg config.FetchConfig,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = defaultMaxConcurrency
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 48 * time.Hour
	}

	return &Orchestrator{
		companies: companies,
		logs:      logs,
		source:    source,
		saver:     saver,
		scheduler: scheduler,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "fetch")),
	}
}

// Trigger fetches every active connection of the company unless a
// non-error run started within the cooldown window. Authorization and
// lookup failures happen before any log row is written.
func (o *Orchestrator) Trigger(ctx context.Context, companyID uuid.UUID, caller Caller) (*TriggerResult, error) {
	company, err := o.companies.FindCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if err := o.authorize(ctx, company, caller); err != nil {
		metrics.FetchRuns.WithLabelValues("forbidden").Inc()
		return nil, err
	}

	now := o.now()
	var triggeredBy *uuid.UUID
	if caller.UserID != uuid.Nil {
		id := caller.UserID
		triggeredBy = &id
	}

	entry, blocking, err := o.logs.BeginIfEligible(ctx, companyID, triggeredBy, now, o.cfg.Cooldown)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	if blocking != nil {
		next := blocking.TriggeredAt.Add(o.cfg.Cooldown)
		metrics.FetchRuns.WithLabelValues("skipped").Inc()
		o.logger.Info("fetch skipped, company in cooldown",
			slog.String("company_id", companyID.String()),
			slog.Time("next_eligible_at", next))
		return &TriggerResult{
			Skipped:        true,
			LogID:          &blocking.ID,
			NextEligibleAt: &next,
			CooldownHours:  o.cfg.Cooldown.Hours(),
		}, nil
	}

	result, err := o.run(ctx, companyID)
	if err != nil {
		metrics.FetchRuns.WithLabelValues("error").Inc()
		// a cancelled request must still close its log row
		if failErr := o.logs.Fail(context.WithoutCancel(ctx), entry.ID, err.Error(), o.now()); failErr != nil {
			o.logger.Error("failed to mark fetch log as errored",
				slog.String("log_id", entry.ID.String()),
				slog.Any("error", failErr))
		}
		return nil, err
	}
	result.LogID = &entry.ID

	if err := o.logs.Complete(context.WithoutCancel(ctx), entry.ID, result.LocationsProcessed, result.ReviewsInserted, result.Warnings, o.now()); err != nil {
		o.logger.Error("failed to complete fetch log",
			slog.String("log_id", entry.ID.String()),
			slog.Any("error", err))
	}
	metrics.FetchRuns.WithLabelValues("success").Inc()

	if result.ReviewsInserted > 0 && o.scheduler != nil {
		if err := o.scheduler.EnqueueDrain(context.WithoutCancel(ctx), companyID, 0); err != nil {
			o.logger.Warn("failed to schedule enrichment",
				slog.String("company_id", companyID.String()),
				slog.Any("error", err))
		}
	}

	o.logger.Info("fetch completed",
		slog.String("company_id", companyID.String()),
		slog.Int("locations", result.LocationsProcessed),
		slog.Int("fetched", result.ReviewsFetched),
		slog.Int("inserted", result.ReviewsInserted),
		slog.Int("warnings", len(result.Warnings)))
	return result, nil
}

func (o *Orchestrator) authorize(ctx context.Context, company *domain.Company, caller Caller) error {
	if caller.System || (caller.UserID != uuid.Nil && company.OwnerID == caller.UserID) {
		return nil
	}
	if caller.UserID == uuid.Nil {
		return apperrors.Forbidden("caller cannot fetch reviews for this company")
	}

	profile, err := o.companies.FindProfile(ctx, caller.UserID)
	if err != nil {
		if appErr, ok := apperrors.GetAppError(err); ok && appErr.Code == apperrors.ErrCodeRecordNotFound {
			return apperrors.Forbidden("caller cannot fetch reviews for this company")
		}
		return err
	}
	if !profile.IsAdmin() {
		return apperrors.Forbidden("caller cannot fetch reviews for this company")
	}
	return nil
}

type target struct {
	location   string
	connection domain.PlatformConnection
}

func (o *Orchestrator) run(ctx context.Context, companyID uuid.UUID) (*TriggerResult, error) {
	locations, err := o.companies.ListActiveLocations(ctx, companyID)
	if err != nil {
		return nil, err
	}

	result := &TriggerResult{Success: true, LocationsProcessed: len(locations)}
	var targets []target
	for _, loc := range locations {
		for _, conn := range loc.Connections {
			if conn.Provider() == "" || conn.Slug() == "" {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("%s: connection %s has no provider or slug, skipped", loc.Name, conn.ID))
				continue
			}
			targets = append(targets, target{location: loc.Name, connection: conn})
		}
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(o.cfg.MaxConcurrency)

	for _, t := range targets {
		t := t // per-iteration copy (go < 1.22 loop semantics)
		g.Go(func() error {
			fetched, inserted, pending, warnings := o.fetchConnection(ctx, t)

			mu.Lock()
			defer mu.Unlock()
			result.ReviewsFetched += fetched
			result.ReviewsInserted += inserted
			if pending {
				result.PendingConnections++
			}
			result.Warnings = append(result.Warnings, warnings...)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// fetchConnection pulls and stores one connection; failures become warnings
func (o *Orchestrator) fetchConnection(ctx context.Context, t target) (fetched, inserted int, pending bool, warnings []string) {
	conn := t.connection
	network, slug := conn.Provider(), conn.Slug()
	label := fmt.Sprintf("%s/%s (%s)", network, slug, t.location)

	res, err := o.source.FetchReviews(ctx, network, slug)
	if err != nil {
		metrics.SourceFetches.WithLabelValues("error").Inc()
		o.logger.Warn("review fetch failed",
			slog.String("connection_id", conn.ID.String()),
			slog.Any("error", err))
		return 0, 0, false, []string{fmt.Sprintf("%s: %v", label, err)}
	}
	metrics.SourceFetches.WithLabelValues(string(res.Status)).Inc()

	meta := map[string]interface{}{
		"last_fetch_status": string(res.Status),
		"last_fetch_count":  len(res.Reviews),
	}
	if res.JobID != "" {
		meta["last_job_id"] = res.JobID
	}

	switch res.Status {
	case zembra.FetchPending:
		msg := fmt.Sprintf("%s: reviews still pending after %d attempts", label, res.Attempts)
		if res.LastError != nil {
			msg += fmt.Sprintf(" (last error: %v)", res.LastError)
		}
		warnings = append(warnings, msg)
		pending = true
	case zembra.FetchReviews:
		metrics.ReviewsFetched.WithLabelValues("pull").Add(float64(len(res.Reviews)))
		saved := o.saver.Save(ctx, conn.ID, res.Reviews)
		fetched, inserted = saved.Fetched, saved.New
		meta["last_fetch_new"] = saved.New
		if saved.ErrorMessage != "" {
			warnings = append(warnings, fmt.Sprintf("%s: %s", label, saved.ErrorMessage))
		}
	}
	for _, fail := range res.NormalizeFails {
		warnings = append(warnings, fmt.Sprintf("%s: %s", label, fail))
	}

	if err := o.companies.MarkConnectionSynced(ctx, conn.ID, o.now(), meta); err != nil {
		warnings = append(warnings, fmt.Sprintf("%s: sync stamp not saved: %v", label, err))
	}
	return fetched, inserted, pending, warnings
}
