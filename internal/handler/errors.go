package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	apperrors "github.com/alejandroruanova/review-insights-service/internal/pkg/errors"
	"github.com/alejandroruanova/review-insights-service/internal/pkg/logger"
	"github.com/labstack/echo/v4"
)

// ErrorHandler renders AppErrors as {"error": {...}} with their status code
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	appErr, ok := apperrors.GetAppError(err)
	if !ok {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			appErr = apperrors.New(codeForStatus(he.Code), fmt.Sprint(he.Message), he.Code)
		} else {
			appErr = apperrors.InternalWrap(err, err.Error())
		}
	}

	log := logger.FromContext(c.Request().Context())
	if appErr.StatusCode >= http.StatusInternalServerError {
		log.Error("request failed",
			slog.String("method", c.Request().Method),
			slog.String("path", c.Path()),
			slog.Int("status", appErr.StatusCode),
			slog.Any("error", err))
	} else {
		log.Debug("request rejected",
			slog.String("path", c.Path()),
			slog.Int("status", appErr.StatusCode),
			slog.String("code", string(appErr.Code)))
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(appErr.StatusCode)
	} else {
		err = c.JSON(appErr.StatusCode, echo.Map{"error": appErr})
	}
	if err != nil {
		log.Error("failed to write error response", slog.Any("error", err))
	}
}

func codeForStatus(status int) apperrors.ErrorCode {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return apperrors.ErrCodeBadRequest
	case http.StatusUnauthorized:
		return apperrors.ErrCodeUnauthorized
	case http.StatusForbidden:
		return apperrors.ErrCodeForbidden
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return apperrors.ErrCodeNotFound
	default:
		return apperrors.ErrCodeInternal
	}
}
