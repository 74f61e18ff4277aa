package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandroruanova/review-insights-service/internal/core/domain"
	apperrors "github.com/alejandroruanova/review-insights-service/internal/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CompanyRepository reads tenants, owners and platform connections
type CompanyRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewCompanyRepository creates a new repository instance
func NewCompanyRepository(db *gorm.DB, logger *slog.Logger) *CompanyRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &CompanyRepository{
		db:     db,
		logger: logger,
	}
}

// FindCompany returns the company or a RECORD_NOT_FOUND error
func (r *CompanyRepository) FindCompany(ctx context.Context, id uuid.UUID) (*domain.Company, error) {
	var company domain.Company
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&company).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.RecordNotFound("company")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load company: %w", err)
	}
	return &company, nil
}

// FindProfile returns the user profile or a RECORD_NOT_FOUND error
func (r *CompanyRepository) FindProfile(ctx context.Context, id uuid.UUID) (*domain.UserProfile, error) {
	var profile domain.UserProfile
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.RecordNotFound("profile")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return &profile, nil
}

// CompanyLanguage returns the owner's preferred language, or "" when unknown
func (r *CompanyRepository) CompanyLanguage(ctx context.Context, companyID uuid.UUID) (string, error) {
	var languages []string
	err := r.db.WithContext(ctx).
		Table("companies c").
		Joins("JOIN profiles p ON p.id = c.owner_id").
		Where("c.id = ?", companyID).
		Limit(1).
		Pluck("p.language", &languages).
		Error
	if err != nil {
		return "", fmt.Errorf("failed to load company language: %w", err)
	}
	if len(languages) == 0 {
		return "", nil
	}
	return languages[0], nil
}

// ListActiveLocations returns the company's active locations with their active connections
func (r *CompanyRepository) ListActiveLocations(ctx context.Context, companyID uuid.UUID) ([]domain.Location, error) {
	var locations []domain.Location
	err := r.db.WithContext(ctx).
		Preload("Connections", "is_active = ?", true).
		Where("company_id = ? AND is_active = ?", companyID, true).
		Order("created_at ASC").
		Find(&locations).
		Error
	if err != nil {
		r.logger.Error("failed to list active locations",
			slog.String("company_id", companyID.String()),
			slog.Any("error", err))
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	return locations, nil
}

// FindConnectionBySlug resolves an active connection from a provider slug.
// network may be empty when the caller does not know it.
func (r *CompanyRepository) FindConnectionBySlug(ctx context.Context, network, slug string) (*domain.PlatformConnection, error) {
	query := r.db.WithContext(ctx).
		Preload("Location").
		Where("is_active = ?", true).
		Where("(platform_location_id = ? OR metadata->>'slug' = ?)", slug, slug)
	if network != "" {
		query = query.Where("LOWER(platform) = LOWER(?)", network)
	}

	var conn domain.PlatformConnection
	err := query.Order("created_at ASC").Take(&conn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.RecordNotFound("platform connection")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve connection: %w", err)
	}
	return &conn, nil
}

// GetConnection loads a connection with its location
func (r *CompanyRepository) GetConnection(ctx context.Context, id uuid.UUID) (*domain.PlatformConnection, error) {
	var conn domain.PlatformConnection
	err := r.db.WithContext(ctx).Preload("Location").Where("id = ?", id).Take(&conn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.RecordNotFound("platform connection")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load connection: %w", err)
	}
	return &conn, nil
}

// MarkConnectionSynced stamps last_sync_at and merges metadata keys
func (r *CompanyRepository) MarkConnectionSynced(ctx context.Context, connectionID uuid.UUID, at time.Time, metadata map[string]interface{}) error {
	patch, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode connection metadata: %w", err)
	}

	err = r.db.WithContext(ctx).
		Model(&domain.PlatformConnection{}).
		Where("id = ?", connectionID).
		Updates(map[string]interface{}{
			"last_sync_at": at,
			"metadata":     gorm.Expr("COALESCE(metadata, '{}'::jsonb) || ?::jsonb", string(patch)),
		}).
		Error
	if err != nil {
		r.logger.Warn("failed to mark connection synced",
			slog.String("connection_id", connectionID.String()),
			slog.Any("error", err))
		return fmt.Errorf("failed to update connection: %w", err)
	}
	return nil
}
