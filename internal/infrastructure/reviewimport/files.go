package reviewimport

import (
	"fmt"
	"os"
	"strings"
)

// openLimited opens path and enforces the configured size limit
func openLimited(path string, cfg *ParserConfig) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	if cfg.MaxFileSize > 0 {
		stat, err := file.Stat()
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to stat file: %w", err)
		}
		if stat.Size() > cfg.MaxFileSize {
			file.Close()
			return nil, fmt.Errorf("file size %d exceeds maximum %d", stat.Size(), cfg.MaxFileSize)
		}
	}
	return file, nil
}

// rowsToRecords turns a header row and data rows into records
func rowsToRecords(header []string, rows [][]string, skipEmpty bool, check func() error) ([]Record, int, error) {
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	records := make([]Record, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		if err := check(); err != nil {
			return nil, 0, err
		}
		if skipEmpty && isEmptyRow(row) {
			skipped++
			continue
		}

		record := make(Record, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if i < len(row) {
				record[col] = strings.TrimSpace(row[i])
			} else {
				record[col] = ""
			}
		}
		records = append(records, record)
	}
	return records, skipped, nil
}

// isEmptyRow checks if a row contains only empty strings
func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
