package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/alejandroruanova/review-insights-service/internal/pkg/config"
	"github.com/google/uuid"
)

const (
	webhooksDir = "webhooks"
	importsDir  = "imports"
	dayLayout   = "2006-01-02"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// LocalStorage archives webhook payloads and imported review files
type LocalStorage struct {
	basePath string
	now      func() time.Time
	logger   *slog.Logger
}

// FileMetadata contains information about stored files
type FileMetadata struct {
	ID           string
	OriginalName string
	StoredPath   string
	Size         int64
	Hash         string
	ContentType  string
	CreatedAt    time.Time
}

// NewLocalStorage creates a new local storage instance
func NewLocalStorage(cfg *config.StorageConfig, logger *slog.Logger) (*LocalStorage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &LocalStorage{
		basePath: cfg.BasePath,
		now:      time.Now,
		logger:   logger,
	}, nil
}

// SaveWebhookPayload writes a raw webhook body under webhooks/<day>/<job>.json.
// An empty job id gets a random name.
func (s *LocalStorage) SaveWebhookPayload(ctx context.Context, jobID string, body []byte) (*FileMetadata, error) {
	now := s.now().UTC()
	name := sanitizeName(jobID)
	if name == "" {
		name = uuid.NewString()
	}

	dir := filepath.Join(s.basePath, webhooksDir, now.Format(dayLayout))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create webhook directory: %w", err)
	}

	path := filepath.Join(dir, name+".json")
	if _, err := os.Stat(path); err == nil {
		// the provider may push the same job more than once
		path = filepath.Join(dir, fmt.Sprintf("%s-%d.json", name, now.UnixNano()))
	}

	if err := os.WriteFile(path, body, 0644); err != nil {
		return nil, fmt.Errorf("failed to write webhook payload: %w", err)
	}

	sum := sha256.Sum256(body)
	metadata := &FileMetadata{
		ID:           name,
		OriginalName: name + ".json",
		StoredPath:   path,
		Size:         int64(len(body)),
		Hash:         hex.EncodeToString(sum[:]),
		ContentType:  getContentType(path),
		CreatedAt:    now,
	}

	s.logger.Debug("webhook payload archived",
		slog.String("job_id", jobID),
		slog.String("path", path),
		slog.Int64("size", metadata.Size))

	return metadata, nil
}

// GetWebhookPayload reads an archived payload
func (s *LocalStorage) GetWebhookPayload(ctx context.Context, day time.Time, name string) ([]byte, error) {
	path := filepath.Join(s.basePath, webhooksDir, day.UTC().Format(dayLayout), filepath.Base(name))

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("webhook payload not found: %s", name)
		}
		return nil, fmt.Errorf("failed to read webhook payload: %w", err)
	}
	return data, nil
}

// SaveImport keeps a copy of an imported review file and returns its metadata
func (s *LocalStorage) SaveImport(ctx context.Context, importID string, filename string, reader io.Reader) (*FileMetadata, error) {
	importDir := filepath.Join(s.basePath, importsDir, sanitizeName(importID))
	if err := os.MkdirAll(importDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create import directory: %w", err)
	}

	safeName := filepath.Base(filename)
	destPath := filepath.Join(importDir, safeName)

	destFile, err := os.Create(destPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create destination file: %w", err)
	}
	defer destFile.Close()

	// Calculate hash while copying
	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(destFile, hash), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to copy file: %w", err)
	}

	fileHash := hex.EncodeToString(hash.Sum(nil))
	metadata := &FileMetadata{
		ID:           importID,
		OriginalName: filename,
		StoredPath:   destPath,
		Size:         size,
		Hash:         fileHash,
		ContentType:  getContentType(filename),
		CreatedAt:    s.now(),
	}

	s.logger.Info("import file stored",
		slog.String("import_id", importID),
		slog.String("filename", filename),
		slog.Int64("size", size),
		slog.String("hash", fileHash))

	return metadata, nil
}

// CleanupOldFiles removes archive directories older than the specified duration
func (s *LocalStorage) CleanupOldFiles(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoffTime := s.now().Add(-olderThan)
	removed := 0

	for _, sub := range []string{webhooksDir, importsDir} {
		n, err := s.cleanupDirectory(ctx, filepath.Join(s.basePath, sub), cutoffTime)
		removed += n
		if err != nil {
			return removed, fmt.Errorf("failed to cleanup %s: %w", sub, err)
		}
	}

	s.logger.Info("cleanup completed",
		slog.Duration("older_than", olderThan),
		slog.Int("removed", removed))

	return removed, nil
}

// cleanupDirectory removes directories older than cutoff time. Day
// directories are dated by name, others by modification time.
func (s *LocalStorage) cleanupDirectory(ctx context.Context, dir string, cutoffTime time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if !entry.IsDir() {
			continue
		}

		dirPath := filepath.Join(dir, entry.Name())
		stamp, err := time.Parse(dayLayout, entry.Name())
		if err == nil {
			// a day directory holds files up to the end of that day
			stamp = stamp.Add(24 * time.Hour)
		} else {
			info, err := entry.Info()
			if err != nil {
				s.logger.Warn("failed to get file info",
					slog.String("path", dirPath),
					slog.Any("error", err))
				continue
			}
			stamp = info.ModTime()
		}

		if !stamp.Before(cutoffTime) {
			continue
		}
		if err := os.RemoveAll(dirPath); err != nil {
			s.logger.Warn("failed to remove directory",
				slog.String("path", dirPath),
				slog.Any("error", err))
			continue
		}
		removed++
		s.logger.Debug("removed old directory", slog.String("path", dirPath))
	}

	return removed, nil
}

func sanitizeName(name string) string {
	return strings.Trim(unsafeName.ReplaceAllString(strings.TrimSpace(name), "_"), "._")
}

// getContentType returns the content type based on file extension
func getContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xls":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".jsonl", ".ndjson":
		return "application/x-ndjson"
	default:
		return "application/octet-stream"
	}
}
