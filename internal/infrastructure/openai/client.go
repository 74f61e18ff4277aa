package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/alejandroruanova/review-insights-service/internal/pkg/config"
	apperrors "github.com/alejandroruanova/review-insights-service/internal/pkg/errors"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 90 * time.Second
	maxRetries     = 2
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 10 * time.Second
)

// Client calls the chat completions API. Server errors and transport
// failures are retried; 429 is returned immediately so callers can back off
// the whole batch.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *slog.Logger
}

// NewClient creates a client from config
func NewClient(cfg *config.LLMConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	baseURL := strings.TrimRight(cfg.OpenAIBaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     baseURL,
		apiKey:      cfg.OpenAIAPIKey,
		model:       cfg.OpenAIModel,
		temperature: cfg.Temperature,
		sleep:       sleepContext,
		logger:      logger,
	}
}

// Model returns the default model name
func (c *Client) Model() string {
	return c.model
}

// ChatCompletion sends a chat completion request
func (c *Client) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.Model == "" {
		req.Model = c.model
	}
	if req.Temperature == nil {
		t := c.temperature
		req.Temperature = &t
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, calculateBackoff(attempt)); err != nil {
				return nil, err
			}
		}

		resp, err := c.do(ctx, body)
		if err == nil {
			return resp, nil
		}

		apiErr, isAPI := err.(*APIError)
		switch {
		case isAPI && apiErr.StatusCode == http.StatusTooManyRequests:
			return nil, apperrors.LLMRateLimited(apiErr)
		case isAPI && !isRetryableStatus(apiErr.StatusCode):
			return nil, apperrors.Upstream("openai", apiErr.StatusCode, apiErr)
		case ctx.Err() != nil:
			return nil, ctx.Err()
		}

		lastErr = err
		c.logger.Warn("openai request failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Any("error", err))
	}

	if status, ok := apperrors.UpstreamStatus(lastErr); ok {
		return nil, apperrors.Upstream("openai", status, lastErr)
	}
	return nil, apperrors.LLMRequestFailed(fmt.Errorf("max retries exceeded: %w", lastErr))
}

func (c *Client) do(ctx context.Context, body []byte) (*ChatResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseAPIError(resp.StatusCode, respBody)
	}

	var result ChatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &result, nil
}

func parseAPIError(status int, body []byte) *APIError {
	var envelope struct {
		Error APIError `json:"error"`
	}
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		envelope.Error.StatusCode = status
		return &envelope.Error
	}
	apiErr.Message = strings.TrimSpace(string(body))
	return apiErr
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func calculateBackoff(attempt int) time.Duration {
	backoff := float64(initialBackoff) * math.Pow(2, float64(attempt-1))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}
	// +-25% jitter
	jitter := backoff * 0.25 * (rand.Float64()*2 - 1)
	return time.Duration(backoff + jitter)
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
