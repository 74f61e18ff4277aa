package enrichment

import (
	"context"

	"github.com/alejandroruanova/review-insights-service/internal/core/domain"
	"github.com/alejandroruanova/review-insights-service/internal/core/services/llm_input"
	"github.com/alejandroruanova/review-insights-service/internal/core/services/taxonomy"
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/openai"
	"github.com/google/uuid"
)

// ChatClient sends chat completion requests
type ChatClient interface {
	ChatCompletion(ctx context.Context, req openai.ChatRequest) (*openai.ChatResponse, error)
}

// ReviewSource reads the enrichment backlog
type ReviewSource interface {
	CountUnanalyzed(ctx context.Context, companyID uuid.UUID) (int64, error)
	ListUnanalyzed(ctx context.Context, companyID uuid.UUID, limit int) ([]domain.Review, error)
	GetWithCompany(ctx context.Context, id uuid.UUID) (*domain.Review, error)
}

// SentimentStore persists analyses
type SentimentStore interface {
	UpsertSentiment(ctx context.Context, analysis *domain.SentimentAnalysis) error
	HasAnalysis(ctx context.Context, reviewID uuid.UUID) (bool, error)
}

// TaxonomyLinker links keywords and topics to a review
type TaxonomyLinker interface {
	LinkReview(ctx context.Context, in taxonomy.ReviewTaxonomy) (taxonomy.LinkStats, error)
}

// LanguageSource resolves the prompt language of a company
type LanguageSource interface {
	CompanyLanguage(ctx context.Context, companyID uuid.UUID) (string, error)
}

// ReviewAnalyzer asks the model for sentiment, keywords and topics
type ReviewAnalyzer interface {
	AnalyzeReview(ctx context.Context, review llm_input.ReviewRecord, lang string) (*AnalysisResult, error)
	AnalyzeBatch(ctx context.Context, reviews []llm_input.ReviewRecord, lang string) (*BatchOutcome, error)
}

// AnalysisResult is the model's answer for one review
type AnalysisResult struct {
	ReviewID  string                  `json:"reviewId,omitempty"`
	Sentiment string                  `json:"sentiment"`
	Score     *float64                `json:"score"`
	Emotions  []string                `json:"emotions"`
	Keywords  []taxonomy.KeywordInput `json:"keywords"`
	Topics    []taxonomy.TopicInput   `json:"topics"`
}

// BatchOutcome correlates a batch answer back to the reviews sent
type BatchOutcome struct {
	Results map[string]*AnalysisResult

	// Sent ids the model did not answer for
	Unmatched []string

	// Answers whose reviewId was never sent
	Unknown int

	// Answers for a sent id that failed validation; their ids are in Unmatched
	Invalid int

	// Set when the answer had to be repaired before parsing
	Repaired bool
}

// DrainResult sums every pass of a drain
type DrainResult struct {
	Processed   int  `json:"processed"`
	Skipped     int  `json:"skipped"`
	Errors      int  `json:"errors"`
	Remaining   int  `json:"remaining"`
	RetryCount  int  `json:"retry_count"`
	Passes      int  `json:"passes"`
	RateLimited bool `json:"rate_limited"`
	// Deferred means the task deadline ended the drain early; the caller
	// re-enqueues it with RetryCount.
	Deferred bool `json:"deferred,omitempty"`
}

func (r *DrainResult) add(p passResult) {
	r.Processed += p.processed
	r.Skipped += p.skipped
	r.Errors += p.errors
	r.Remaining = p.remaining
	r.Passes++
	if p.rateLimited {
		r.RateLimited = true
	}
}

type passResult struct {
	processed   int
	skipped     int
	errors      int
	remaining   int
	rateLimited bool
}

// Single review statuses
const (
	StatusAnalyzed        = "analyzed"
	StatusRatingFallback  = "rating_fallback"
	StatusAlreadyAnalyzed = "already_analyzed"
)

// SingleResult is the outcome of analyzing one review
type SingleResult struct {
	ReviewID       uuid.UUID        `json:"review_id"`
	Status         string           `json:"status"`
	Sentiment      domain.Sentiment `json:"sentiment,omitempty"`
	SentimentScore float64          `json:"sentiment_score"`
	Keywords       int              `json:"keywords"`
	Topics         int              `json:"topics"`
	TaxonomyError  string           `json:"taxonomy_error,omitempty"`
}
