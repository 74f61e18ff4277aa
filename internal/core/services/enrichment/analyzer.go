package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alejandroruanova/review-insights-service/internal/core/domain"
	"github.com/alejandroruanova/review-insights-service/internal/core/services/llm_input"
	"github.com/alejandroruanova/review-insights-service/internal/core/services/ratelimit"
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/metrics"
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/openai"
	apperrors "github.com/alejandroruanova/review-insights-service/internal/pkg/errors"
)

const (
	modeSingle = "single"
	modeBatch  = "batch"
)

// Analyzer sends reviews to the model, one at a time or in batches.
// Every request goes through the rate limiter first.
type Analyzer struct {
	llm          ChatClient
	gate         ratelimit.Gate
	maxPerMinute int
	generator    *llm_input.Generator
	logger       *slog.Logger
}

// NewAnalyzer creates a new analyzer
func NewAnalyzer(llm ChatClient, gate ratelimit.Gate, maxPerMinute int, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Analyzer{
		llm:          llm,
		gate:         gate,
		maxPerMinute: maxPerMinute,
		generator:    llm_input.NewGenerator(logger),
		logger:       logger,
	}
}

// AnalyzeReview analyzes a single review
func (a *Analyzer) AnalyzeReview(ctx context.Context, review llm_input.ReviewRecord, lang string) (*AnalysisResult, error) {
	input, err := a.generator.GenerateInput([]llm_input.ReviewRecord{review},
		llm_input.DefaultGeneratorConfig().WithLanguage(lang).WithChunkSize(1))
	if err != nil {
		return nil, apperrors.BadRequest(err.Error())
	}
	cleaned := input.Reviews[0]

	var user strings.Builder
	if cleaned.Title != "" {
		fmt.Fprintf(&user, "Title: %s\n", cleaned.Title)
	}
	if cleaned.Rating > 0 {
		fmt.Fprintf(&user, "Rating: %.1f/5\n", cleaned.Rating)
	}
	fmt.Fprintf(&user, "Review: %s", cleaned.Content)

	content, err := a.complete(ctx, modeSingle, lang, user.String(), resultSchema(false))
	if err != nil {
		return nil, err
	}

	result, _, err := parseSingle(content)
	if err != nil {
		metrics.LLMRequests.WithLabelValues(modeSingle, "invalid").Inc()
		return nil, err
	}
	result.ReviewID = review.ReviewID
	if err := validateResult(result); err != nil {
		metrics.LLMRequests.WithLabelValues(modeSingle, "invalid").Inc()
		return nil, apperrors.LLMInvalidResponse(err.Error())
	}
	return result, nil
}

// AnalyzeBatch analyzes several reviews in one request and matches the
// answers back by reviewId. Ids the model skipped are reported in Unmatched.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, reviews []llm_input.ReviewRecord, lang string) (*BatchOutcome, error) {
	cfg := llm_input.DefaultGeneratorConfig().WithLanguage(lang).WithChunkSize(len(reviews))
	input, err := a.generator.GenerateInput(reviews, cfg)
	if err != nil {
		return nil, apperrors.BadRequest(err.Error())
	}
	if err := a.generator.ValidateInput(input); err != nil {
		return nil, apperrors.BadRequest(err.Error())
	}

	payload, err := a.generator.ToJSON(input, cfg.CompactMode)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}

	content, err := a.complete(ctx, modeBatch, lang, string(payload), batchSchema())
	if err != nil {
		return nil, err
	}

	results, repaired, err := parseBatch(content)
	if err != nil {
		metrics.LLMRequests.WithLabelValues(modeBatch, "invalid").Inc()
		return nil, err
	}

	outcome := &BatchOutcome{
		Results:  make(map[string]*AnalysisResult, len(input.Reviews)),
		Repaired: repaired,
	}
	sent := make(map[string]bool, len(input.Reviews))
	for _, r := range input.Reviews {
		sent[r.ReviewID] = true
	}

	for _, result := range results {
		if result == nil {
			continue
		}
		id := strings.TrimSpace(result.ReviewID)
		if !sent[id] {
			outcome.Unknown++
			a.logger.Warn("model answered for an unknown review", slog.String("review_id", id))
			continue
		}
		if _, dup := outcome.Results[id]; dup {
			continue
		}
		if err := validateResult(result); err != nil {
			outcome.Invalid++
			a.logger.Warn("rejected model answer",
				slog.String("review_id", id),
				slog.Any("error", err))
			continue
		}
		result.ReviewID = id
		outcome.Results[id] = result
	}

	for _, r := range input.Reviews {
		if _, ok := outcome.Results[r.ReviewID]; !ok {
			outcome.Unmatched = append(outcome.Unmatched, r.ReviewID)
		}
	}
	if len(outcome.Unmatched) > 0 || repaired {
		a.logger.Warn("incomplete batch answer",
			slog.Int("sent", len(input.Reviews)),
			slog.Int("matched", len(outcome.Results)),
			slog.Int("unknown", outcome.Unknown),
			slog.Int("invalid", outcome.Invalid),
			slog.Bool("repaired", repaired))
	}

	return outcome, nil
}

func (a *Analyzer) complete(ctx context.Context, mode, lang, user string, schema map[string]interface{}) (string, error) {
	if err := a.gate.Gate(ctx, a.maxPerMinute); err != nil {
		return "", err
	}

	resp, err := a.llm.ChatCompletion(ctx, openai.ChatRequest{
		Messages: []openai.ChatMessage{
			{Role: "system", Content: systemPrompt(lang, mode == modeBatch)},
			{Role: "user", Content: user},
		},
		ResponseFormat: &openai.ResponseFormat{
			Type: "json_schema",
			JSONSchema: &openai.JSONSchema{
				Name:   "review_analysis_" + mode,
				Strict: true,
				Schema: schema,
			},
		},
	})
	if err != nil {
		status := "error"
		if apperrors.IsRateLimited(err) {
			status = "rate_limited"
		}
		metrics.LLMRequests.WithLabelValues(mode, status).Inc()
		return "", err
	}

	content, err := resp.Content()
	if err != nil {
		metrics.LLMRequests.WithLabelValues(mode, "invalid").Inc()
		return "", apperrors.LLMInvalidResponse(err.Error())
	}
	metrics.LLMRequests.WithLabelValues(mode, "ok").Inc()
	return content, nil
}

func parseSingle(content string) (*AnalysisResult, bool, error) {
	var result AnalysisResult
	if err := json.Unmarshal([]byte(stripFences(content)), &result); err == nil {
		return &result, false, nil
	}

	fixed, ok := repairJSON(content)
	if !ok {
		return nil, false, apperrors.LLMInvalidResponse("analysis is not valid JSON")
	}
	if err := json.Unmarshal([]byte(fixed), &result); err != nil {
		return nil, true, apperrors.LLMInvalidResponse(fmt.Sprintf("analysis is not valid JSON after repair: %v", err))
	}
	return &result, true, nil
}

// parseBatch accepts {"results":[...]} or a bare array, repairing truncation
func parseBatch(content string) ([]*AnalysisResult, bool, error) {
	if results, err := decodeBatch(stripFences(content)); err == nil {
		return results, false, nil
	}

	fixed, ok := repairJSON(content)
	if !ok {
		return nil, false, apperrors.LLMInvalidResponse("batch answer is not valid JSON")
	}
	results, err := decodeBatch(fixed)
	if err != nil {
		return nil, true, apperrors.LLMInvalidResponse(fmt.Sprintf("batch answer is not valid JSON after repair: %v", err))
	}
	return results, true, nil
}

func decodeBatch(s string) ([]*AnalysisResult, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		var results []*AnalysisResult
		if err := json.Unmarshal([]byte(s), &results); err != nil {
			return nil, err
		}
		return results, nil
	}

	var envelope struct {
		Results []*AnalysisResult `json:"results"`
	}
	if err := json.Unmarshal([]byte(s), &envelope); err != nil {
		return nil, err
	}
	if envelope.Results == nil {
		return nil, fmt.Errorf("missing results")
	}
	return envelope.Results, nil
}

// validateResult rejects an answer without a known sentiment label or a
// score in [1,100], then normalizes the label and drops blank emotions.
func validateResult(r *AnalysisResult) error {
	label := strings.ToLower(strings.TrimSpace(r.Sentiment))
	if !domain.IsValidSentiment(label) {
		return fmt.Errorf("sentiment %q is not one of positive, negative, neutral, mixed", r.Sentiment)
	}
	if r.Score == nil {
		return fmt.Errorf("score is missing")
	}
	if *r.Score < 1 || *r.Score > 100 {
		return fmt.Errorf("score %v is outside 1-100", *r.Score)
	}
	r.Sentiment = label

	emotions := r.Emotions[:0]
	for _, e := range r.Emotions {
		if e = strings.TrimSpace(e); e != "" {
			emotions = append(emotions, e)
		}
	}
	r.Emotions = emotions
	return nil
}
