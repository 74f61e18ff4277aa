package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/listingpage"
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/zembra"
	apperrors "github.com/alejandroruanova/review-insights-service/internal/pkg/errors"
	"github.com/alejandroruanova/review-insights-service/internal/pkg/logger"
	"github.com/labstack/echo/v4"
)

// ListingVerifier looks a listing up on the review source
type ListingVerifier interface {
	VerifyListing(ctx context.Context, network, slug string) (*zembra.Listing, error)
}

// PageInspector reads metadata from a public listing page
type PageInspector interface {
	Inspect(ctx context.Context, pageURL string) (*listingpage.Metadata, error)
}

// ConnectionHandler serves POST /api/v1/connections/verify
type ConnectionHandler struct {
	listings ListingVerifier
	pages    PageInspector
}

// NewConnectionHandler creates a connection handler. pages may be nil.
func NewConnectionHandler(listings ListingVerifier, pages PageInspector) *ConnectionHandler {
	return &ConnectionHandler{
		listings: listings,
		pages:    pages,
	}
}

type verifyRequest struct {
	Network string `json:"network"`
	Slug    string `json:"slug"`
	URL     string `json:"url"`
}

type verifyResponse struct {
	Listing     *zembra.Listing       `json:"listing"`
	Page        *listingpage.Metadata `json:"page,omitempty"`
	PageError   string                `json:"page_error,omitempty"`
	SlugMatched *bool                 `json:"slug_matched,omitempty"`
}

// Verify checks that a listing exists before a connection is saved. When a
// public URL is given its page metadata is returned too; page failures are
// reported in the body, not as errors.
func (h *ConnectionHandler) Verify(c echo.Context) error {
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}
	req.Network = strings.ToLower(strings.TrimSpace(req.Network))
	req.Slug = strings.TrimSpace(req.Slug)
	if req.Network == "" || req.Slug == "" {
		return apperrors.BadRequest("network and slug are required")
	}

	ctx := c.Request().Context()
	listing, err := h.listings.VerifyListing(ctx, req.Network, req.Slug)
	if err != nil {
		if status, ok := apperrors.UpstreamStatus(err); ok && status == http.StatusNotFound {
			return apperrors.NotFound("listing not found on review source")
		}
		return err
	}

	resp := verifyResponse{Listing: listing}
	if url := strings.TrimSpace(req.URL); url != "" && h.pages != nil {
		page, err := h.pages.Inspect(ctx, url)
		if err != nil {
			logger.FromContext(ctx).Warn("listing page inspection failed",
				slog.String("url", url),
				slog.Any("error", err))
			resp.PageError = err.Error()
		} else {
			matched := page.MentionsSlug(req.Slug)
			resp.Page = page
			resp.SlugMatched = &matched
		}
	}

	return c.JSON(http.StatusOK, resp)
}
