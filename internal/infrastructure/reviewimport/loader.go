package reviewimport

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandroruanova/review-insights-service/internal/core/domain"
)

// Batch is a parsed and mapped review export
type Batch struct {
	Format      string
	TotalRows   int
	SkippedRows int
	Reviews     []domain.StandardReview
	Failures    []string
}

// Loader parses review export files into canonical reviews
type Loader struct {
	factory *ParserFactory
	logger  *slog.Logger
}

// NewLoader creates a loader over the built-in parsers
func NewLoader(config *ParserConfig, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		factory: NewParserFactory(config),
		logger:  logger,
	}
}

// SupportedFormats lists the accepted file extensions
func (l *Loader) SupportedFormats() []string {
	return l.factory.SupportedFormats()
}

// Load parses path and maps every row
func (l *Loader) Load(ctx context.Context, path string) (*Batch, error) {
	parsed, err := l.factory.ParseFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	reviews, failures := MapRecords(parsed.Records)

	l.logger.Info("review export loaded",
		slog.String("path", path),
		slog.String("format", parsed.Format),
		slog.Int("rows", parsed.TotalRows),
		slog.Int("skipped", parsed.SkippedRows),
		slog.Int("reviews", len(reviews)),
		slog.Int("failures", len(failures)))

	return &Batch{
		Format:      parsed.Format,
		TotalRows:   parsed.TotalRows,
		SkippedRows: parsed.SkippedRows,
		Reviews:     reviews,
		Failures:    failures,
	}, nil
}
