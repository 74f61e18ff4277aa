package llm_input

import (
	"time"

	"github.com/google/uuid"
)

// ReviewRecord is one review as presented to the model. ReviewID is echoed
// back by the model and used to correlate results.
type ReviewRecord struct {
	ReviewID string  `json:"reviewId"`
	Rating   float64 `json:"rating,omitempty"`
	Title    string  `json:"title,omitempty"`
	Content  string  `json:"content"`
}

// GeneratorConfig contains configuration for prompt input generation
type GeneratorConfig struct {
	// Maximum reviews per chunk
	ChunkSize int `json:"chunk_size"`

	// Language the model must answer in ("en", "fr")
	Language string `json:"language"`

	// Compact mode: minimal whitespace
	CompactMode bool `json:"compact_mode"`
}

// LLMInput is one batch of reviews ready to be sent to the model
type LLMInput struct {
	Metadata InputMetadata  `json:"-"`
	Reviews  []ReviewRecord `json:"reviews"`
	Stats    InputStats     `json:"-"`
}

// InputMetadata contains context about the batch
type InputMetadata struct {
	BatchID      uuid.UUID `json:"batch_id"`
	TotalReviews int       `json:"total_reviews"`
	ChunkNumber  int       `json:"chunk_number,omitempty"`
	TotalChunks  int       `json:"total_chunks,omitempty"`
	Language     string    `json:"language"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// InputStats provides statistics about the generated input
type InputStats struct {
	TotalReviews    int `json:"total_reviews"`
	SkippedEmpty    int `json:"skipped_empty"`
	EstimatedTokens int `json:"estimated_tokens"`
}

// DefaultGeneratorConfig matches the enrichment sub-batch size
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		ChunkSize:   5,
		Language:    "en",
		CompactMode: true,
	}
}

// WithChunkSize creates a config with custom chunk size
func (c GeneratorConfig) WithChunkSize(size int) GeneratorConfig {
	c.ChunkSize = size
	return c
}

// WithLanguage creates a config with the given answer language
func (c GeneratorConfig) WithLanguage(lang string) GeneratorConfig {
	c.Language = lang
	return c
}
