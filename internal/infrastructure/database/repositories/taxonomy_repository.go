package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alejandroruanova/review-insights-service/internal/core/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// upsertTopicSQL inserts a topic or bumps its counters in place. The
// sentiment bucket and keyword union are computed by Postgres so concurrent
// enrichments of the same company never lose an increment.
const upsertTopicSQL = `
INSERT INTO topics (id, company_id, name, occurrence_count, sentiment_distribution, keywords, created_at, updated_at)
VALUES (?, ?, ?, 1, jsonb_build_object(?::text, 1), ?::jsonb, NOW(), NOW())
ON CONFLICT (company_id, name) DO UPDATE SET
	occurrence_count = topics.occurrence_count + 1,
	sentiment_distribution = jsonb_set(
		COALESCE(topics.sentiment_distribution, '{}'::jsonb),
		ARRAY[?::text],
		to_jsonb(COALESCE((topics.sentiment_distribution->>?::text)::int, 0) + 1)
	),
	keywords = (
		SELECT COALESCE(jsonb_agg(DISTINCT k ORDER BY k), '[]'::jsonb)
		FROM jsonb_array_elements_text(COALESCE(topics.keywords, '[]'::jsonb) || EXCLUDED.keywords) AS k
	),
	updated_at = NOW()
RETURNING id`

// TaxonomyRepository upserts keywords and topics and links them to reviews
type TaxonomyRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewTaxonomyRepository creates a new repository instance
func NewTaxonomyRepository(db *gorm.DB, logger *slog.Logger) *TaxonomyRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &TaxonomyRepository{
		db:     db,
		logger: logger,
	}
}

// UpsertKeyword returns the id of the keyword with kw.NormalizedText, creating it if needed
func (r *TaxonomyRepository) UpsertKeyword(ctx context.Context, kw *domain.Keyword) (uuid.UUID, error) {
	db := r.db.WithContext(ctx)

	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "normalized_text"}},
		DoNothing: true,
	}).Create(kw).Error
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert keyword %q: %w", kw.NormalizedText, err)
	}

	var existing domain.Keyword
	err = db.Select("id").Where("normalized_text = ?", kw.NormalizedText).Take(&existing).Error
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to read keyword %q: %w", kw.NormalizedText, err)
	}
	return existing.ID, nil
}

// UpsertTopic creates or updates a company topic and returns its id
func (r *TaxonomyRepository) UpsertTopic(ctx context.Context, companyID uuid.UUID, name string, sentiment domain.Sentiment, keywords []string) (uuid.UUID, error) {
	if keywords == nil {
		keywords = []string{}
	}
	keywordsJSON, err := json.Marshal(keywords)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to encode topic keywords: %w", err)
	}

	bucket := string(sentiment)
	var ids []uuid.UUID
	err = r.db.WithContext(ctx).
		Raw(upsertTopicSQL, uuid.New(), companyID, name, bucket, string(keywordsJSON), bucket, bucket).
		Scan(&ids).
		Error
	if err != nil {
		r.logger.Error("failed to upsert topic",
			slog.String("company_id", companyID.String()),
			slog.String("topic", name),
			slog.Any("error", err))
		return uuid.Nil, fmt.Errorf("failed to upsert topic %q: %w", name, err)
	}
	if len(ids) == 0 {
		return uuid.Nil, fmt.Errorf("topic upsert for %q returned no id", name)
	}
	return ids[0], nil
}

// LinkKeyword links a review to a keyword; an existing link is kept as is
func (r *TaxonomyRepository) LinkKeyword(ctx context.Context, link *domain.ReviewKeyword) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "review_id"}, {Name: "keyword_id"}},
			DoNothing: true,
		}).
		Create(link).
		Error
	if err != nil {
		return fmt.Errorf("failed to link keyword: %w", err)
	}
	return nil
}

// LinkTopic links a review to a topic; an existing link is kept as is
func (r *TaxonomyRepository) LinkTopic(ctx context.Context, link *domain.ReviewTopic) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "review_id"}, {Name: "topic_id"}},
			DoNothing: true,
		}).
		Create(link).
		Error
	if err != nil {
		return fmt.Errorf("failed to link topic: %w", err)
	}
	return nil
}
