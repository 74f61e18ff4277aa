package reviewimport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// JSONParser parses JSON review exports: an array of reviews, an object
// with a "reviews" array, or a single review object
type JSONParser struct {
	config *ParserConfig
}

// NewJSONParser creates a new JSON parser
func NewJSONParser(config *ParserConfig) *JSONParser {
	if config == nil {
		config = DefaultParserConfig()
	}
	return &JSONParser{config: config}
}

// Parse reads and parses a JSON file from disk
func (p *JSONParser) Parse(ctx context.Context, filePath string) (*ParseResult, error) {
	file, err := openLimited(filePath, p.config)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return p.ParseStream(ctx, file)
}

// ParseStream reads and parses JSON data
func (p *JSONParser) ParseStream(ctx context.Context, r io.Reader) (*ParseResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON document")
	}

	var records []Record
	if data[0] == '[' {
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("failed to decode JSON records: %w", err)
		}
	} else {
		var wrapper struct {
			Reviews []Record `json:"reviews"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("failed to decode JSON object: %w", err)
		}
		if wrapper.Reviews != nil {
			records = wrapper.Reviews
		} else {
			var record Record
			if err := json.Unmarshal(data, &record); err != nil {
				return nil, fmt.Errorf("failed to decode JSON object: %w", err)
			}
			records = []Record{record}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kept := records[:0]
	skipped := 0
	for _, rec := range records {
		if p.config.SkipEmptyRows && len(rec) == 0 {
			skipped++
			continue
		}
		kept = append(kept, rec)
	}

	return &ParseResult{
		Records:     kept,
		TotalRows:   len(records),
		SkippedRows: skipped,
		Columns:     columnsOf(kept),
		Format:      "JSON",
	}, nil
}

// SupportedFormats returns the file extensions this parser supports
func (p *JSONParser) SupportedFormats() []string {
	return []string{".json"}
}

// columnsOf returns the sorted union of keys
func columnsOf(records []Record) []string {
	set := make(map[string]bool)
	for _, rec := range records {
		for key := range rec {
			set[key] = true
		}
	}
	columns := make([]string, 0, len(set))
	for key := range set {
		columns = append(columns, key)
	}
	sort.Strings(columns)
	return columns
}
