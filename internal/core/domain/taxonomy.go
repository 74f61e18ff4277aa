package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// KeywordCategory groups extracted keywords
type KeywordCategory string

const (
	CategoryService     KeywordCategory = "service"
	CategoryFood        KeywordCategory = "food"
	CategoryAmbiance    KeywordCategory = "ambiance"
	CategoryPrice       KeywordCategory = "price"
	CategoryQuality     KeywordCategory = "quality"
	CategoryCleanliness KeywordCategory = "cleanliness"
	CategoryStaff       KeywordCategory = "staff"
	CategoryOther       KeywordCategory = "other"
)

// ValidKeywordCategories returns the accepted keyword categories
func ValidKeywordCategories() []KeywordCategory {
	return []KeywordCategory{
		CategoryService, CategoryFood, CategoryAmbiance, CategoryPrice,
		CategoryQuality, CategoryCleanliness, CategoryStaff, CategoryOther,
	}
}

// IsValidKeywordCategory checks if a category is valid
func IsValidKeywordCategory(c string) bool {
	for _, v := range ValidKeywordCategories() {
		if string(v) == c {
			return true
		}
	}
	return false
}

// Keyword is a global, deduplicated short phrase
type Keyword struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	Text           string          `gorm:"type:varchar(255);not null" json:"text"`
	NormalizedText string          `gorm:"type:varchar(255);not null;uniqueIndex:idx_keywords_normalized" json:"normalized_text"`
	Category       KeywordCategory `gorm:"type:varchar(30);not null;default:'other'" json:"category"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for GORM
func (Keyword) TableName() string {
	return "keywords"
}

// BeforeCreate GORM hook
func (k *Keyword) BeforeCreate(tx *gorm.DB) error {
	if k.ID == uuid.Nil {
		k.ID = uuid.New()
	}
	return nil
}

// Topic is a company-scoped theme with running aggregates
type Topic struct {
	ID                    uuid.UUID                           `gorm:"type:uuid;primary_key" json:"id"`
	CompanyID             uuid.UUID                           `gorm:"type:uuid;not null;uniqueIndex:idx_topics_company_name" json:"company_id"`
	Name                  string                              `gorm:"type:varchar(255);not null;uniqueIndex:idx_topics_company_name" json:"name"`
	OccurrenceCount       int                                 `gorm:"not null;default:0" json:"occurrence_count"`
	SentimentDistribution datatypes.JSONType[map[string]int]  `gorm:"type:jsonb;not null;default:'{}'" json:"sentiment_distribution"`
	Keywords              datatypes.JSONSlice[string]         `gorm:"type:jsonb;not null;default:'[]'" json:"keywords"`
	CreatedAt             time.Time                           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time                           `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Topic) TableName() string {
	return "topics"
}

// BeforeCreate GORM hook
func (t *Topic) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// ReviewKeyword links a review to a keyword
type ReviewKeyword struct {
	ID                   uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	ReviewID             uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_review_keywords_pair" json:"review_id"`
	KeywordID            uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_review_keywords_pair;index:idx_review_keywords_keyword" json:"keyword_id"`
	PlatformConnectionID uuid.UUID `gorm:"type:uuid;not null" json:"platform_connection_id"`
	RelevanceScore       float64   `gorm:"type:numeric(4,3);not null" json:"relevance_score"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for GORM
func (ReviewKeyword) TableName() string {
	return "review_keywords"
}

// BeforeCreate GORM hook
func (r *ReviewKeyword) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// ReviewTopic links a review to a topic
type ReviewTopic struct {
	ID                   uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	ReviewID             uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_review_topics_pair" json:"review_id"`
	TopicID              uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_review_topics_pair;index:idx_review_topics_topic" json:"topic_id"`
	PlatformConnectionID uuid.UUID `gorm:"type:uuid;not null" json:"platform_connection_id"`
	RelevanceScore       float64   `gorm:"type:numeric(4,3);not null" json:"relevance_score"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for GORM
func (ReviewTopic) TableName() string {
	return "review_topics"
}

// BeforeCreate GORM hook
func (r *ReviewTopic) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// ClampRelevance bounds a relevance score to [0, 1]
func ClampRelevance(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
