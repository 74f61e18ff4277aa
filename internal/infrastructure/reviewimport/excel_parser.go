package reviewimport

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ExcelParser parses spreadsheet review exports
type ExcelParser struct {
	config *ParserConfig
}

// NewExcelParser creates a new Excel parser
func NewExcelParser(config *ParserConfig) *ExcelParser {
	if config == nil {
		config = DefaultParserConfig()
	}
	return &ExcelParser{config: config}
}

// Parse reads and parses an Excel file from disk
func (p *ExcelParser) Parse(ctx context.Context, filePath string) (*ParseResult, error) {
	file, err := openLimited(filePath, p.config)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return p.ParseStream(ctx, file)
}

// ParseStream reads and parses Excel data
func (p *ExcelParser) ParseStream(ctx context.Context, r io.Reader) (*ParseResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read Excel stream: %w", err)
	}
	defer f.Close()

	return p.parseWorkbook(ctx, f)
}

// parseWorkbook reads the sheet named "Reviews", or the first sheet
func (p *ExcelParser) parseWorkbook(ctx context.Context, f *excelize.File) (*ParseResult, error) {
	sheetName := f.GetSheetName(0)
	if idx, err := f.GetSheetIndex("Reviews"); err == nil && idx >= 0 {
		sheetName = "Reviews"
	}
	if sheetName == "" {
		return nil, fmt.Errorf("no sheets found in Excel file")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows from sheet %s: %w", sheetName, err)
	}

	if len(rows) == 0 {
		return &ParseResult{Records: []Record{}, Columns: []string{}, Format: "XLSX"}, nil
	}

	header := rows[0]
	records, skipped, err := rowsToRecords(header, rows[1:], p.config.SkipEmptyRows, ctx.Err)
	if err != nil {
		return nil, err
	}

	return &ParseResult{
		Records:     records,
		TotalRows:   len(rows) - 1,
		SkippedRows: skipped,
		Columns:     header,
		Format:      "XLSX",
	}, nil
}

// SupportedFormats returns the file extensions this parser supports
func (p *ExcelParser) SupportedFormats() []string {
	return []string{".xlsx"}
}
