package reviewimport

import (
	"context"
	"io"
)

// Record is one row of a review export, keyed by column name
type Record map[string]interface{}

// ParseResult contains parsing statistics
type ParseResult struct {
	Records     []Record
	TotalRows   int
	SkippedRows int
	Columns     []string
	Format      string
}

// FileParser reads one export format
type FileParser interface {
	// Parse reads and parses the file from the given path
	Parse(ctx context.Context, filePath string) (*ParseResult, error)

	// ParseStream reads and parses an export from r
	ParseStream(ctx context.Context, r io.Reader) (*ParseResult, error)

	// SupportedFormats returns the file extensions this parser supports
	SupportedFormats() []string
}

// ParserConfig holds configuration for all parsers
type ParserConfig struct {
	// SkipEmptyRows determines if empty rows should be skipped
	SkipEmptyRows bool

	// MaxFileSize is the maximum file size in bytes (0 = unlimited)
	MaxFileSize int64
}

// DefaultParserConfig returns sensible defaults
func DefaultParserConfig() *ParserConfig {
	return &ParserConfig{
		SkipEmptyRows: true,
		MaxFileSize:   50 * 1024 * 1024, // 50 MB
	}
}
