package llm_input

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandroruanova/review-insights-service/internal/core/services/refinery"
	"github.com/google/uuid"
)

// promptOverhead approximates the system prompt and schema in tokens
const promptOverhead = 300

// Generator builds model input from reviews
type Generator struct {
	cleaner *refinery.Pipeline
	logger  *slog.Logger
}

// NewGenerator creates a new LLM input generator
func NewGenerator(logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Generator{
		cleaner: refinery.MustPipeline("review-text"),
		logger:  logger,
	}
}

// GenerateInput cleans review text and builds one batch. Reviews whose text
// is empty after cleaning are left out and counted in Stats.SkippedEmpty.
func (g *Generator) GenerateInput(records []ReviewRecord, config GeneratorConfig) (*LLMInput, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no reviews provided")
	}

	reviews := make([]ReviewRecord, 0, len(records))
	skipped := 0

	for _, record := range records {
		content := g.cleaner.CleanText(record.Content)
		if content == "" {
			g.logger.Warn("skipping review with no usable text",
				slog.String("review_id", record.ReviewID))
			skipped++
			continue
		}

		reviews = append(reviews, ReviewRecord{
			ReviewID: record.ReviewID,
			Rating:   record.Rating,
			Title:    g.cleaner.CleanText(record.Title),
			Content:  content,
		})
	}

	if len(reviews) == 0 {
		return nil, fmt.Errorf("no reviews with text in batch of %d", len(records))
	}

	input := &LLMInput{
		Metadata: InputMetadata{
			BatchID:      uuid.New(),
			TotalReviews: len(reviews),
			Language:     config.Language,
			GeneratedAt:  time.Now(),
		},
		Reviews: reviews,
	}

	input.Stats = InputStats{
		TotalReviews:    len(reviews),
		SkippedEmpty:    skipped,
		EstimatedTokens: g.EstimateTokenCount(input),
	}

	g.logger.Debug("LLM input generated",
		slog.String("batch_id", input.Metadata.BatchID.String()),
		slog.Int("reviews", len(reviews)),
		slog.Int("estimated_tokens", input.Stats.EstimatedTokens))

	return input, nil
}

// EstimateTokenCount provides a rough estimate of token count
// Based on the rule: ~4 characters per token for English/French text
func (g *Generator) EstimateTokenCount(input *LLMInput) int {
	jsonBytes, err := json.Marshal(input)
	if err != nil {
		g.logger.Warn("failed to marshal for token estimation", slog.Any("error", err))
		return 0
	}

	return len(jsonBytes)/4 + promptOverhead
}

// GenerateChunks splits records into multiple LLM inputs
func (g *Generator) GenerateChunks(records []ReviewRecord, config GeneratorConfig) ([]*LLMInput, error) {
	if config.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk_size must be greater than 0")
	}

	parts := Chunk(records, config.ChunkSize)
	chunks := make([]*LLMInput, 0, len(parts))

	for i, part := range parts {
		input, err := g.GenerateInput(part, config)
		if err != nil {
			return nil, fmt.Errorf("failed to generate chunk %d: %w", i, err)
		}

		input.Metadata.ChunkNumber = i + 1
		input.Metadata.TotalChunks = len(parts)
		chunks = append(chunks, input)
	}

	return chunks, nil
}

// ToJSON serializes the user message for the model: {"reviews":[...]}
func (g *Generator) ToJSON(input *LLMInput, compact bool) ([]byte, error) {
	if compact {
		return json.Marshal(input)
	}
	return json.MarshalIndent(input, "", "  ")
}

// ValidateInput checks if the generated input is valid
func (g *Generator) ValidateInput(input *LLMInput) error {
	if input == nil {
		return fmt.Errorf("input is nil")
	}

	if len(input.Reviews) == 0 {
		return fmt.Errorf("no reviews in input")
	}

	seen := make(map[string]bool, len(input.Reviews))
	for _, review := range input.Reviews {
		if review.ReviewID == "" {
			return fmt.Errorf("review without id")
		}
		if seen[review.ReviewID] {
			return fmt.Errorf("duplicate reviewId: %s", review.ReviewID)
		}
		seen[review.ReviewID] = true

		if review.Content == "" {
			return fmt.Errorf("review %s has no content", review.ReviewID)
		}
	}

	return nil
}

// Chunk splits items into consecutive slices of at most size elements
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		return nil
	}

	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
