package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// UserProfile is the account behind a bearer token
type UserProfile struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Email     string    `gorm:"type:varchar(320);uniqueIndex" json:"email"`
	FullName  string    `gorm:"type:varchar(255)" json:"full_name"`
	Language  string    `gorm:"type:varchar(8);not null;default:'en'" json:"language"`
	Role      string    `gorm:"type:varchar(20);not null;default:'user'" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (UserProfile) TableName() string {
	return "profiles"
}

// BeforeCreate GORM hook
func (u *UserProfile) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// IsAdmin reports whether the profile has platform admin rights
func (u *UserProfile) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Company is the tenant root
type Company struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	OwnerID   uuid.UUID `gorm:"type:uuid;not null;index:idx_companies_owner" json:"owner_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Owner     *UserProfile `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Locations []Location   `gorm:"foreignKey:CompanyID;constraint:OnDelete:CASCADE" json:"locations,omitempty"`
}

// TableName specifies the table name for GORM
func (Company) TableName() string {
	return "companies"
}

// BeforeCreate GORM hook
func (c *Company) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Location is a business location under a company
type Location struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	CompanyID uuid.UUID `gorm:"type:uuid;not null;index:idx_locations_company" json:"company_id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Address   string    `gorm:"type:text" json:"address,omitempty"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Company     *Company             `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
	Connections []PlatformConnection `gorm:"foreignKey:LocationID;constraint:OnDelete:CASCADE" json:"connections,omitempty"`
}

// TableName specifies the table name for GORM
func (Location) TableName() string {
	return "locations"
}

// BeforeCreate GORM hook
func (l *Location) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// PlatformConnection binds a location to one review-source listing
type PlatformConnection struct {
	ID                 uuid.UUID         `gorm:"type:uuid;primary_key" json:"id"`
	LocationID         uuid.UUID         `gorm:"type:uuid;not null;index:idx_connections_location" json:"location_id"`
	Platform           string            `gorm:"type:varchar(50);not null;index:idx_connections_platform_slug" json:"platform"`
	PlatformLocationID string            `gorm:"type:varchar(255);index:idx_connections_platform_slug" json:"platform_location_id"`
	IsActive           bool              `gorm:"not null;default:true" json:"is_active"`
	LastSyncAt         *time.Time        `json:"last_sync_at,omitempty"`
	Metadata           datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt          time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time         `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Location *Location `gorm:"foreignKey:LocationID" json:"location,omitempty"`
}

// TableName specifies the table name for GORM
func (PlatformConnection) TableName() string {
	return "platform_connections"
}

// BeforeCreate GORM hook
func (p *PlatformConnection) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Provider returns the review-source network name ("google", "yelp", ...)
func (p *PlatformConnection) Provider() string {
	return strings.ToLower(strings.TrimSpace(p.Platform))
}

// Slug resolves the listing slug, falling back to metadata.slug
func (p *PlatformConnection) Slug() string {
	if slug := strings.TrimSpace(p.PlatformLocationID); slug != "" {
		return slug
	}
	if p.Metadata != nil {
		if slug, ok := p.Metadata["slug"].(string); ok {
			return strings.TrimSpace(slug)
		}
	}
	return ""
}
