package zembra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alejandroruanova/review-insights-service/internal/pkg/config"
	apperrors "github.com/alejandroruanova/review-insights-service/internal/pkg/errors"
)

const (
	defaultBaseURL = "https://api.zembra.io"
	defaultTimeout = 30 * time.Second
)

var defaultPollDelays = []time.Duration{10 * time.Second, 15 * time.Second, 20 * time.Second}

// Client talks to the Zembra review API
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	pollDelays []time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *slog.Logger
}

// NewClient creates a client from config
func NewClient(cfg *config.ReviewSourceConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	delays := cfg.PollDelays
	if len(delays) == 0 {
		delays = defaultPollDelays
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		token:      cfg.APIToken,
		pollDelays: delays,
		sleep:      sleepContext,
		logger:     logger.With(slog.String("component", "zembra")),
	}
}

// CreateJob asks Zembra to scrape a listing
func (c *Client) CreateJob(ctx context.Context, network, slug string) (*Job, error) {
	form := url.Values{}
	form.Set("network", network)
	form.Set("slug", slug)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/reviews/job/", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var env Envelope[struct {
		Job *Job `json:"job"`
	}]
	if err := c.do(req, &env); err != nil {
		return nil, err
	}
	if env.Data.Job == nil {
		return &Job{Network: network, Slug: slug}, nil
	}
	return env.Data.Job, nil
}

// GetReviews reads whatever the provider currently holds for a listing
func (c *Client) GetReviews(ctx context.Context, network, slug string) (*ReviewsPage, error) {
	q := url.Values{}
	q.Set("network", network)
	q.Set("slug", slug)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reviews/?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var env Envelope[ReviewsPage]
	if err := c.do(req, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// VerifyListing checks that a network/slug pair resolves to a listing
func (c *Client) VerifyListing(ctx context.Context, network, slug string) (*Listing, error) {
	q := url.Values{}
	q.Set("network", network)
	q.Set("slug", slug)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/listing/?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var env Envelope[Listing]
	if err := c.do(req, &env); err != nil {
		return nil, err
	}
	if env.Data.Network == "" {
		env.Data.Network = network
	}
	if env.Data.Slug == "" {
		env.Data.Slug = slug
	}
	return &env.Data, nil
}

// FetchReviews creates a job then polls until reviews appear, the job
// completes empty, or the poll delays are used up. Transport failures and
// retryable statuses count as a pending attempt; any other 4xx aborts.
func (c *Client) FetchReviews(ctx context.Context, network, slug string) (*FetchResult, error) {
	result := &FetchResult{Status: FetchPending}

	job, err := c.CreateJob(ctx, network, slug)
	switch {
	case err == nil:
		result.JobID = job.ID
	case !isRetryable(err):
		return nil, wrapSourceError(err)
	default:
		result.LastError = err
		c.logger.Warn("job creation failed, reading existing reviews",
			slog.String("network", network),
			slog.String("slug", slug),
			slog.Any("error", err))
	}

	attempts := len(c.pollDelays) + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, c.pollDelays[attempt-1]); err != nil {
				return nil, err
			}
		}
		result.Attempts = attempt + 1

		page, err := c.GetReviews(ctx, network, slug)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !isRetryable(err) {
				return nil, wrapSourceError(err)
			}
			result.LastError = err
			c.logger.Warn("review read failed",
				slog.String("slug", slug),
				slog.Int("attempt", result.Attempts),
				slog.Any("error", err))
			continue
		}

		if page.Job != nil && page.Job.ID != "" {
			result.JobID = page.Job.ID
		}
		if len(page.Reviews) > 0 {
			result.Status = FetchReviews
			result.Reviews, result.NormalizeFails = NormalizeReviews(page.Reviews)
			result.LastError = nil
			return result, nil
		}
		if page.Job.IsComplete() {
			result.Status = FetchEmpty
			result.LastError = nil
			return result, nil
		}
	}

	c.logger.Info("reviews still pending after polling",
		slog.String("network", network),
		slog.String("slug", slug),
		slog.Int("attempts", result.Attempts))
	return result, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if env, ok := out.(interface{ OK() bool }); ok && !env.OK() {
		return fmt.Errorf("zembra returned status %q", envelopeMessage(body))
	}
	return nil
}

func envelopeMessage(body []byte) string {
	var env Envelope[json.RawMessage]
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	if env.Message != "" {
		return env.Status + ": " + env.Message
	}
	return env.Status
}

func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return true
}

func wrapSourceError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apperrors.Upstream("zembra", apiErr.StatusCode, apiErr)
	}
	return apperrors.ReviewSourceFailed(err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
