package handler

import (
	"github.com/alejandroruanova/review-insights-service/internal/middleware"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups every route handler
type Handlers struct {
	Health      *HealthHandler
	Webhook     *WebhookHandler
	Fetch       *FetchHandler
	Connections *ConnectionHandler
	Enrichment  *EnrichmentHandler
}

// RouterConfig holds the secrets guarding the authenticated groups
type RouterConfig struct {
	JWTSecret  string
	ServiceKey string
}

// NewRouter builds the echo instance with middleware and routes
func NewRouter(cfg RouterConfig, h Handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler

	e.Use(echomw.Recover())
	e.Use(middleware.RequestID)
	e.Use(middleware.Metrics)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/health", h.Health.Check)

	// Provider pushes authenticate with the shared token header
	e.POST("/webhooks/zembra", h.Webhook.Receive)

	api := e.Group("/api/v1", middleware.JWTAuth(cfg.JWTSecret))
	api.POST("/reviews/fetch", h.Fetch.Trigger)
	api.POST("/connections/verify", h.Connections.Verify)

	internal := e.Group("/internal", middleware.ServiceKeyAuth(cfg.ServiceKey))
	internal.POST("/enrichment/drain", h.Enrichment.Drain)
	internal.POST("/reviews/:id/analyze", h.Enrichment.AnalyzeReview)

	return e
}
