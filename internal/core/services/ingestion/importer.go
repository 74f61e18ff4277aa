package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alejandroruanova/review-insights-service/internal/core/domain"
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/reviewimport"
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/storage"
	apperrors "github.com/alejandroruanova/review-insights-service/internal/pkg/errors"
	"github.com/google/uuid"
)

// FileLoader parses a review export from disk
type FileLoader interface {
	Load(ctx context.Context, path string) (*reviewimport.Batch, error)
}

// ImportArchive keeps a copy of every imported file
type ImportArchive interface {
	SaveImport(ctx context.Context, importID string, filename string, reader io.Reader) (*storage.FileMetadata, error)
}

// ConnectionLookup loads a connection with its location
type ConnectionLookup interface {
	GetConnection(ctx context.Context, id uuid.UUID) (*domain.PlatformConnection, error)
}

// DrainScheduler queues enrichment for a company
type DrainScheduler interface {
	EnqueueDrain(ctx context.Context, companyID uuid.UUID, retryCount int) error
}

// ImportResult summarizes one imported file
type ImportResult struct {
	ImportID     string   `json:"import_id"`
	ConnectionID string   `json:"connection_id"`
	Format       string   `json:"format"`
	TotalRows    int      `json:"total_rows"`
	SkippedRows  int      `json:"skipped_rows"`
	RowFailures  []string `json:"row_failures,omitempty"`
	ArchivedPath string   `json:"archived_path,omitempty"`
	DrainQueued  bool     `json:"drain_queued"`
	*SaveResult
}

// Importer loads review exports into a platform connection
type Importer struct {
	saver       *Service
	loader      FileLoader
	connections ConnectionLookup
	archive     ImportArchive
	scheduler   DrainScheduler
	logger      *slog.Logger
}

// NewImporter creates an importer. archive and scheduler may be nil.
func NewImporter(saver *Service, loader FileLoader, connections ConnectionLookup, archive ImportArchive, scheduler DrainScheduler, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		saver:       saver,
		loader:      loader,
		connections: connections,
		archive:     archive,
		scheduler:   scheduler,
		logger:      logger,
	}
}

// Import parses path, stores its reviews under connectionID and queues a
// drain for the owning company when anything new was stored.
func (i *Importer) Import(ctx context.Context, connectionID uuid.UUID, path string) (*ImportResult, error) {
	conn, err := i.connections.GetConnection(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	batch, err := i.loader.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(batch.Reviews) == 0 && len(batch.Failures) > 0 {
		return nil, apperrors.InvalidFile(fmt.Sprintf("no usable rows in %s: %s", filepath.Base(path), batch.Failures[0]))
	}

	result := &ImportResult{
		ImportID:     uuid.NewString(),
		ConnectionID: connectionID.String(),
		Format:       batch.Format,
		TotalRows:    batch.TotalRows,
		SkippedRows:  batch.SkippedRows,
		RowFailures:  batch.Failures,
	}

	if i.archive != nil {
		result.ArchivedPath = i.archiveFile(ctx, result.ImportID, path)
	}

	result.SaveResult = i.saver.Save(ctx, connectionID, batch.Reviews)

	if result.New > 0 && i.scheduler != nil && conn.Location != nil {
		if err := i.scheduler.EnqueueDrain(ctx, conn.Location.CompanyID, 0); err != nil {
			i.logger.Warn("failed to queue drain after import",
				slog.String("company_id", conn.Location.CompanyID.String()),
				slog.Any("error", err))
		} else {
			result.DrainQueued = true
		}
	}

	i.logger.Info("review file imported",
		slog.String("import_id", result.ImportID),
		slog.String("connection_id", result.ConnectionID),
		slog.String("format", result.Format),
		slog.Int("rows", result.TotalRows),
		slog.Int("new", result.New),
		slog.Int("duplicates", result.Duplicates),
		slog.Int("row_failures", len(result.RowFailures)))

	return result, nil
}

func (i *Importer) archiveFile(ctx context.Context, importID, path string) string {
	f, err := os.Open(path)
	if err != nil {
		i.logger.Warn("failed to reopen import for archiving", slog.String("path", path), slog.Any("error", err))
		return ""
	}
	defer f.Close()

	meta, err := i.archive.SaveImport(ctx, importID, filepath.Base(path), f)
	if err != nil {
		i.logger.Warn("failed to archive import", slog.String("path", path), slog.Any("error", err))
		return ""
	}
	return meta.StoredPath
}
