package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandroruanova/review-insights-service/internal/core/services/enrichment"
	"github.com/alejandroruanova/review-insights-service/internal/core/services/fetch"
	"github.com/alejandroruanova/review-insights-service/internal/core/services/ingestion"
	"github.com/alejandroruanova/review-insights-service/internal/core/services/ratelimit"
	"github.com/alejandroruanova/review-insights-service/internal/core/services/taxonomy"
	"github.com/alejandroruanova/review-insights-service/internal/core/services/webhook"
	"github.com/alejandroruanova/review-insights-service/internal/handler"
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/cache"
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/database"
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/database/repositories"
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/listingpage"
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/openai"
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/queue"
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/reviewimport"
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/storage"
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/zembra"
	"github.com/alejandroruanova/review-insights-service/internal/pkg/config"
	"github.com/alejandroruanova/review-insights-service/internal/worker"
	"github.com/labstack/echo/v4"
)

// rateLimitScope names the LLM call log in Redis and Postgres
const rateLimitScope = "openai"

// App holds every long-lived dependency of the service
type App struct {
	Config *config.Config
	Logger *slog.Logger

	DB        *database.PostgresDB
	Cache     *cache.RedisCache
	Queue     *queue.AsynqClient
	Scheduler *queue.Scheduler
	Archive   *storage.LocalStorage

	Companies  *repositories.CompanyRepository
	Reviews    *repositories.ReviewRepository
	Sentiments *repositories.SentimentRepository
	Taxonomy   *repositories.TaxonomyRepository
	FetchLogs  *repositories.FetchLogRepository

	ReviewSource *zembra.Client
	Pages        *listingpage.Inspector
	Loader       *reviewimport.Loader

	Ingestion    *ingestion.Service
	Importer     *ingestion.Importer
	Orchestrator *fetch.Orchestrator
	Drainer      *enrichment.Drainer
	Single       *enrichment.SingleReviewProcessor
	Webhook      *webhook.Service
}

// New connects to Postgres, Redis and the queue and builds the services
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	var err error
	a.DB, err = database.NewPostgresDB(&cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	a.Cache, err = cache.NewRedisCache(&cfg.Cache, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Queue, err = queue.NewAsynqClient(&cfg.Queue, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Scheduler = queue.NewScheduler(a.Queue, cfg.Queue.DrainUniqueTTL, cfg.Queue.MaxRetry)

	a.Archive, err = storage.NewLocalStorage(&cfg.Storage, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	gate, err := a.newGate()
	if err != nil {
		a.Close()
		return nil, err
	}

	db := a.DB.DB
	a.Companies = repositories.NewCompanyRepository(db, logger)
	a.Reviews = repositories.NewReviewRepository(db, logger)
	a.Sentiments = repositories.NewSentimentRepository(db, logger)
	a.Taxonomy = repositories.NewTaxonomyRepository(db, logger)
	a.FetchLogs = repositories.NewFetchLogRepository(db, logger)

	a.ReviewSource = zembra.NewClient(&cfg.ReviewSource, logger)
	a.Pages = listingpage.NewInspector(nil, logger)
	a.Loader = reviewimport.NewLoader(nil, logger)

	linker := taxonomy.NewService(a.Taxonomy, logger)
	analyzer := enrichment.NewAnalyzer(openai.NewClient(&cfg.LLM, logger), gate, cfg.LLM.MaxPerMinute, logger)

	a.Ingestion = ingestion.NewService(a.Reviews, logger)
	a.Importer = ingestion.NewImporter(a.Ingestion, a.Loader, a.Companies, a.Archive, a.Scheduler, logger)
	a.Orchestrator = fetch.NewOrchestrator(a.Companies, a.FetchLogs, a.ReviewSource, a.Ingestion, a.Scheduler, cfg.Fetch, logger)
	a.Drainer = enrichment.NewDrainer(a.Reviews, a.Sentiments, linker, a.Companies, analyzer, cfg.Enrichment, logger)
	a.Single = enrichment.NewSingleReviewProcessor(a.Reviews, a.Sentiments, linker, a.Companies, analyzer, cfg.Enrichment, logger)
	a.Webhook = webhook.NewService(cfg.ReviewSource.WebhookToken, a.Companies, a.Archive, a.Ingestion, a.Scheduler, logger)

	return a, nil
}

// newGate picks the LLM rate limiter backend
func (a *App) newGate() (ratelimit.Gate, error) {
	llm := a.Config.LLM
	opts := ratelimit.Options{
		Window:             llm.RateLimitWindow,
		Jitter:             llm.RateLimitJitter,
		CleanupProbability: llm.RateLimitCleanupRate,
	}

	switch llm.RateLimitBackend {
	case "redis":
		window := llm.RateLimitWindow
		if window <= 0 {
			window = ratelimit.DefaultWindow
		}
		store := a.Cache.NewRateWindow("ratelimit:"+rateLimitScope, 2*window)
		return ratelimit.NewSlidingWindow(store, opts, a.Logger), nil
	case "postgres":
		store := repositories.NewRateLimitRepository(a.DB.DB, rateLimitScope, a.Logger)
		return ratelimit.NewSlidingWindow(store, opts, a.Logger), nil
	case "memory":
		return ratelimit.NewTokenBucket(), nil
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", llm.RateLimitBackend)
	}
}

// Router builds the HTTP surface
func (a *App) Router() *echo.Echo {
	return handler.NewRouter(
		handler.RouterConfig{
			JWTSecret:  a.Config.Auth.JWTSecret,
			ServiceKey: a.Config.Auth.ServiceKey,
		},
		handler.Handlers{
			Health: handler.NewHealthHandler(map[string]handler.HealthChecker{
				"database": a.DB,
				"redis":    a.Cache,
			}),
			Webhook:     handler.NewWebhookHandler(a.Webhook),
			Fetch:       handler.NewFetchHandler(a.Orchestrator),
			Connections: handler.NewConnectionHandler(a.ReviewSource, a.Pages),
			Enrichment:  handler.NewEnrichmentHandler(a.Scheduler, a.Single),
		},
	)
}

// WorkerHandlers builds the asynq task handlers
func (a *App) WorkerHandlers() *worker.Handlers {
	return worker.NewHandlers(a.Drainer, a.Single, a.Orchestrator, a.Logger).
		WithArchiveCleanup(a.Archive, a.Config.Storage.RetentionPeriod).
		WithDrainRequeue(a.Scheduler, a.Config.Enrichment.RetryDelay)
}

// Ping checks Postgres and Redis
func (a *App) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return errors.Join(a.DB.Ping(ctx), a.Cache.Ping(ctx))
}

// Close releases every connection that was opened
func (a *App) Close() error {
	var errs []error
	if a.Queue != nil {
		errs = append(errs, a.Queue.Close())
	}
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
