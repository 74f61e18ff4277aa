package middleware

import (
	"log/slog"

	"github.com/alejandroruanova/review-insights-service/internal/pkg/logger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const requestIDKey = "request_id"

// RequestID tags each request with an id, reusing the caller's when present,
// and puts a request-scoped logger in the request context
func RequestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get(echo.HeaderXRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Response().Header().Set(echo.HeaderXRequestID, requestID)
		c.Set(requestIDKey, requestID)

		log := logger.Get().With(slog.String("request_id", requestID))
		req := c.Request()
		c.SetRequest(req.WithContext(logger.NewContext(req.Context(), log)))

		return next(c)
	}
}

// GetRequestID returns the id assigned by RequestID
func GetRequestID(c echo.Context) string {
	id, _ := c.Get(requestIDKey).(string)
	return id
}
