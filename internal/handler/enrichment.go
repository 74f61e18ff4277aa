package handler

import (
	"context"
	"net/http"

	"github.com/alejandroruanova/review-insights-service/internal/core/services/enrichment"
	apperrors "github.com/alejandroruanova/review-insights-service/internal/pkg/errors"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// DrainScheduler queues a company's enrichment drain
type DrainScheduler interface {
	EnqueueDrain(ctx context.Context, companyID uuid.UUID, retryCount int) error
}

// ReviewProcessor enriches one review
type ReviewProcessor interface {
	Process(ctx context.Context, reviewID uuid.UUID) (*enrichment.SingleResult, error)
}

// EnrichmentHandler serves the internal enrichment endpoints
type EnrichmentHandler struct {
	scheduler DrainScheduler
	processor ReviewProcessor
}

// NewEnrichmentHandler creates an enrichment handler
func NewEnrichmentHandler(scheduler DrainScheduler, processor ReviewProcessor) *EnrichmentHandler {
	return &EnrichmentHandler{
		scheduler: scheduler,
		processor: processor,
	}
}

type drainRequest struct {
	CompanyID  string `json:"company_id"`
	RetryCount int    `json:"retry_count"`
}

// Drain queues an enrichment drain for a company
func (h *EnrichmentHandler) Drain(c echo.Context) error {
	var req drainRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}
	companyID, err := uuid.Parse(req.CompanyID)
	if err != nil {
		return apperrors.BadRequest("company_id must be a UUID")
	}
	if req.RetryCount < 0 {
		return apperrors.BadRequest("retry_count must not be negative")
	}

	if err := h.scheduler.EnqueueDrain(c.Request().Context(), companyID, req.RetryCount); err != nil {
		return err
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"queued":      true,
		"company_id":  companyID,
		"retry_count": req.RetryCount,
	})
}

// AnalyzeReview enriches one review synchronously
func (h *EnrichmentHandler) AnalyzeReview(c echo.Context) error {
	reviewID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperrors.BadRequest("review id must be a UUID")
	}

	result, err := h.processor.Process(c.Request().Context(), reviewID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
