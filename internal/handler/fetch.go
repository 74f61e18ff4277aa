package handler

import (
	"context"
	"net/http"

	"github.com/alejandroruanova/review-insights-service/internal/core/services/fetch"
	"github.com/alejandroruanova/review-insights-service/internal/middleware"
	apperrors "github.com/alejandroruanova/review-insights-service/internal/pkg/errors"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// FetchTrigger runs a company-wide review fetch
type FetchTrigger interface {
	Trigger(ctx context.Context, companyID uuid.UUID, caller fetch.Caller) (*fetch.TriggerResult, error)
}

// FetchHandler serves POST /api/v1/reviews/fetch
type FetchHandler struct {
	orchestrator FetchTrigger
}

// NewFetchHandler creates a fetch handler
func NewFetchHandler(orchestrator FetchTrigger) *FetchHandler {
	return &FetchHandler{orchestrator: orchestrator}
}

type triggerRequest struct {
	CompanyID string `json:"company_id"`
}

// Trigger fetches reviews for every active connection of a company. A run
// inside the cooldown answers 200 with skipped=true.
func (h *FetchHandler) Trigger(c echo.Context) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return apperrors.Unauthorized("missing caller identity")
	}

	var req triggerRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}
	companyID, err := uuid.Parse(req.CompanyID)
	if err != nil {
		return apperrors.BadRequest("company_id must be a UUID")
	}

	result, err := h.orchestrator.Trigger(c.Request().Context(), companyID, fetch.Caller{UserID: userID})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
