package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/alejandroruanova/review-insights-service/internal/core/services/webhook"
	apperrors "github.com/alejandroruanova/review-insights-service/internal/pkg/errors"
	"github.com/labstack/echo/v4"
)

const (
	// ZembraTokenHeader carries the shared webhook secret
	ZembraTokenHeader = "X-Zembra-Token"

	maxWebhookBody = 10 << 20
)

// WebhookProcessor handles review-source pushes
type WebhookProcessor interface {
	Authorize(token string) bool
	Handle(ctx context.Context, body []byte) (*webhook.Result, error)
}

// WebhookHandler serves POST /webhooks/zembra
type WebhookHandler struct {
	processor WebhookProcessor
}

// NewWebhookHandler creates a webhook handler
func NewWebhookHandler(processor WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{processor: processor}
}

// Receive authenticates and processes one delivery
func (h *WebhookHandler) Receive(c echo.Context) error {
	if !h.processor.Authorize(c.Request().Header.Get(ZembraTokenHeader)) {
		return apperrors.Unauthorized("invalid webhook token")
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody+1))
	if err != nil {
		return apperrors.BadRequest("failed to read webhook body")
	}
	if len(body) > maxWebhookBody {
		return apperrors.New(apperrors.ErrCodeBadRequest, "webhook body too large", http.StatusRequestEntityTooLarge)
	}

	result, err := h.processor.Handle(c.Request().Context(), body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
