package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Review is a canonical review pulled from a review source.
// Rows are immutable once written; enrichment lives in side tables.
type Review struct {
	ID                   uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	PlatformConnectionID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_reviews_connection_external" json:"platform_connection_id"`
	ExternalID           string         `gorm:"type:varchar(255);not null;uniqueIndex:idx_reviews_connection_external" json:"external_id"`
	AuthorName           string         `gorm:"type:varchar(255);not null;default:''" json:"author_name"`
	Rating               float64        `gorm:"type:numeric(4,2);not null;default:0" json:"rating"`
	Title                *string        `gorm:"type:text" json:"title,omitempty"`
	Content              string         `gorm:"type:text;not null;default:''" json:"content"`
	PublishedAt          *time.Time     `gorm:"index:idx_reviews_published" json:"published_at,omitempty"`
	ReplyContent         *string        `gorm:"type:text" json:"reply_content,omitempty"`
	ReplyPublishedAt     *time.Time     `json:"reply_published_at,omitempty"`
	RawData              datatypes.JSON `gorm:"type:jsonb" json:"raw_data,omitempty"`
	CreatedAt            time.Time      `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	PlatformConnection *PlatformConnection `gorm:"foreignKey:PlatformConnectionID;constraint:OnDelete:CASCADE" json:"platform_connection,omitempty"`
	Sentiment          *SentimentAnalysis  `gorm:"foreignKey:ReviewID" json:"sentiment,omitempty"`
}

// TableName specifies the table name for GORM
func (Review) TableName() string {
	return "reviews"
}

// BeforeCreate GORM hook
func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// HasContent reports whether the review has non-whitespace text
func (r *Review) HasContent() bool {
	return strings.TrimSpace(r.Content) != ""
}

// StandardReview is the provider-independent shape produced by review sources
type StandardReview struct {
	ExternalID       string          `json:"external_id"`
	AuthorName       string          `json:"author_name"`
	Rating           float64         `json:"rating"`
	Title            *string         `json:"title,omitempty"`
	Content          string          `json:"content"`
	PublishedAt      *time.Time      `json:"published_at,omitempty"`
	ReplyContent     *string         `json:"reply_content,omitempty"`
	ReplyPublishedAt *time.Time      `json:"reply_published_at,omitempty"`
	RawData          json.RawMessage `json:"raw_data,omitempty"`
}

// ToReview builds the row persisted for a connection
func (s StandardReview) ToReview(connectionID uuid.UUID) *Review {
	return &Review{
		PlatformConnectionID: connectionID,
		ExternalID:           strings.TrimSpace(s.ExternalID),
		AuthorName:           s.AuthorName,
		Rating:               s.Rating,
		Title:                s.Title,
		Content:              s.Content,
		PublishedAt:          s.PublishedAt,
		ReplyContent:         s.ReplyContent,
		ReplyPublishedAt:     s.ReplyPublishedAt,
		RawData:              datatypes.JSON(s.RawData),
	}
}
