package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FetchStatus is the lifecycle state of a fetch attempt
type FetchStatus string

const (
	FetchStatusPending FetchStatus = "pending"
	FetchStatusSuccess FetchStatus = "success"
	FetchStatusError   FetchStatus = "error"
)

// FetchCallLog records one orchestrator run for a company
type FetchCallLog struct {
	ID                 uuid.UUID                   `gorm:"type:uuid;primary_key" json:"id"`
	CompanyID          uuid.UUID                   `gorm:"type:uuid;not null;index:idx_fetch_logs_company_triggered,priority:1" json:"company_id"`
	TriggeredAt        time.Time                   `gorm:"not null;index:idx_fetch_logs_company_triggered,priority:2,sort:desc" json:"triggered_at"`
	TriggeredBy        *uuid.UUID                  `gorm:"type:uuid" json:"triggered_by,omitempty"`
	Status             FetchStatus                 `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	LocationsProcessed int                         `gorm:"not null;default:0" json:"locations_processed"`
	ReviewsInserted    int                         `gorm:"not null;default:0" json:"reviews_inserted"`
	Warnings           datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"warnings,omitempty"`
	ErrorMessage       *string                     `gorm:"type:text" json:"error_message,omitempty"`
	CompletedAt        *time.Time                  `json:"completed_at,omitempty"`
}

// TableName specifies the table name for GORM
func (FetchCallLog) TableName() string {
	return "fetch_call_logs"
}

// BeforeCreate GORM hook
func (f *FetchCallLog) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// RateLimitLog is an append-only record of one outbound LLM call
type RateLimitLog struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Scope    string    `gorm:"type:varchar(50);not null;index:idx_rate_limit_scope_called,priority:1" json:"scope"`
	CalledAt time.Time `gorm:"not null;index:idx_rate_limit_scope_called,priority:2" json:"called_at"`
}

// TableName specifies the table name for GORM
func (RateLimitLog) TableName() string {
	return "rate_limit_logs"
}

// BeforeCreate GORM hook
func (r *RateLimitLog) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Models lists every table managed by this service, in migration order
func Models() []interface{} {
	return []interface{}{
		&UserProfile{},
		&Company{},
		&Location{},
		&PlatformConnection{},
		&Review{},
		&SentimentAnalysis{},
		&Keyword{},
		&Topic{},
		&ReviewKeyword{},
		&ReviewTopic{},
		&FetchCallLog{},
		&RateLimitLog{},
	}
}
