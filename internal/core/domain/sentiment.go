package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Sentiment is the overall polarity of a review
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
	SentimentMixed    Sentiment = "mixed"
)

// Analysis sources
const (
	SourceLLM    = "llm"
	SourceRating = "rating"
)

// DefaultConfidence is stored on every analysis; it is not model-derived.
const DefaultConfidence = 0.85

// SentimentAnalysis holds the enrichment result for exactly one review
type SentimentAnalysis struct {
	ID             uuid.UUID                   `gorm:"type:uuid;primary_key" json:"id"`
	ReviewID       uuid.UUID                   `gorm:"type:uuid;not null;uniqueIndex:idx_sentiment_review" json:"review_id"`
	Sentiment      Sentiment                   `gorm:"type:varchar(20);not null;index:idx_sentiment_value" json:"sentiment"`
	SentimentScore float64                     `gorm:"type:numeric(5,4);not null" json:"sentiment_score"`
	Emotions       datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"emotions,omitempty"`
	Confidence     float64                     `gorm:"type:numeric(4,3);not null" json:"confidence"`
	Language       string                      `gorm:"type:varchar(8)" json:"language"`
	Source         string                      `gorm:"type:varchar(20);not null;default:'llm'" json:"source"`
	CreatedAt      time.Time                   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (SentimentAnalysis) TableName() string {
	return "sentiment_analyses"
}

// BeforeCreate GORM hook
func (s *SentimentAnalysis) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// ValidSentiments returns the accepted sentiment values
func ValidSentiments() []Sentiment {
	return []Sentiment{SentimentPositive, SentimentNegative, SentimentNeutral, SentimentMixed}
}

// IsValidSentiment checks if a sentiment value is valid
func IsValidSentiment(s string) bool {
	for _, v := range ValidSentiments() {
		if string(v) == s {
			return true
		}
	}
	return false
}

// ClampLLMScore bounds a raw model score to its 1-100 scale
func ClampLLMScore(raw float64) float64 {
	if raw < 1 {
		return 1
	}
	if raw > 100 {
		return 100
	}
	return raw
}

// ScoreFromLLM maps a 1-100 positivity score onto [-1, 1].
func ScoreFromLLM(raw float64) float64 {
	return (ClampLLMScore(raw) - 50) / 50
}

// SentimentFromRating derives a sentiment for reviews without text.
// The rating is doubled onto a 0-10 scale: <4 negative, 5 neutral, >6 positive,
// anything else mixed. A rating <= 0 means the source gave none and is neutral.
// The second return value is the equivalent 1-100 model score.
func SentimentFromRating(rating float64) (Sentiment, float64) {
	if rating <= 0 {
		return SentimentNeutral, 50
	}

	score := rating * 2
	raw := ClampLLMScore(rating * 20)

	switch {
	case score < 4:
		return SentimentNegative, raw
	case score == 5:
		return SentimentNeutral, raw
	case score > 6:
		return SentimentPositive, raw
	default:
		return SentimentMixed, raw
	}
}
