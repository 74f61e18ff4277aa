package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthChecker reports the state of one dependency
type HealthChecker interface {
	Health(ctx context.Context) map[string]interface{}
}

// HealthHandler serves GET /health
type HealthHandler struct {
	checks map[string]HealthChecker
}

// NewHealthHandler creates a health handler over named dependencies
func NewHealthHandler(checks map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Check reports 200 when every dependency is up, 503 otherwise
func (h *HealthHandler) Check(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	details := make(map[string]interface{}, len(h.checks))
	for name, check := range h.checks {
		result := check.Health(ctx)
		details[name] = result
		if result["status"] != "up" {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	return c.JSON(code, map[string]interface{}{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339),
		"checks": details,
	})
}
