package middleware

import (
	"strconv"
	"time"

	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/metrics"
	"github.com/labstack/echo/v4"
)

// Metrics records request counts and durations by route
func Metrics(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		// Let the error handler write the response so the real status is recorded
		if err := next(c); err != nil {
			c.Error(err)
		}

		method := c.Request().Method
		path := c.Path()
		status := strconv.Itoa(c.Response().Status)

		metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())

		return nil
	}
}
