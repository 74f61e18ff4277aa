package taxonomy

import (
	"context"

	"github.com/alejandroruanova/review-insights-service/internal/core/domain"
	"github.com/google/uuid"
)

// Store persists keywords, topics and their review links
type Store interface {
	UpsertKeyword(ctx context.Context, kw *domain.Keyword) (uuid.UUID, error)
	UpsertTopic(ctx context.Context, companyID uuid.UUID, name string, sentiment domain.Sentiment, keywords []string) (uuid.UUID, error)
	LinkKeyword(ctx context.Context, link *domain.ReviewKeyword) error
	LinkTopic(ctx context.Context, link *domain.ReviewTopic) error
}

// KeywordInput is one keyword extracted from a review
type KeywordInput struct {
	Text      string  `json:"text"`
	Category  string  `json:"category"`
	Relevance float64 `json:"relevance"`
}

// TopicInput is one topic extracted from a review
type TopicInput struct {
	Name      string   `json:"name"`
	Relevance float64  `json:"relevance"`
	Keywords  []string `json:"keywords,omitempty"`
}

// ReviewTaxonomy is everything to link for one analyzed review
type ReviewTaxonomy struct {
	ReviewID     uuid.UUID
	ConnectionID uuid.UUID
	CompanyID    uuid.UUID
	Sentiment    domain.Sentiment
	Keywords     []KeywordInput
	Topics       []TopicInput
}

// LinkStats counts the links written for one review
type LinkStats struct {
	Keywords int
	Topics   int
}
