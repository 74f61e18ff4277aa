package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alejandroruanova/review-insights-service/internal/core/domain"
	"github.com/alejandroruanova/review-insights-service/internal/core/services/refinery"
)

// Service links extracted keywords and topics to reviews
type Service struct {
	store  Store
	keys   *refinery.Pipeline
	logger *slog.Logger
}

// NewService creates a new taxonomy service
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		store:  store,
		keys:   refinery.MustPipeline("keyword"),
		logger: logger,
	}
}

// NormalizeKeyword returns the dedup key for a keyword
func (s *Service) NormalizeKeyword(text string) string {
	return s.keys.CleanText(text)
}

// LinkReview upserts every keyword and topic of a review and links them.
// Every item is attempted; failures are joined into the returned error.
func (s *Service) LinkReview(ctx context.Context, in ReviewTaxonomy) (LinkStats, error) {
	var stats LinkStats
	var errs []error

	keywords := s.prepareKeywords(in.Keywords)
	keywordTexts := make([]string, 0, len(keywords))

	for _, kw := range keywords {
		keywordTexts = append(keywordTexts, kw.Text)

		id, err := s.store.UpsertKeyword(ctx, &domain.Keyword{
			Text:           kw.Text,
			NormalizedText: kw.key,
			Category:       kw.category,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("keyword %q: %w", kw.Text, err))
			continue
		}

		err = s.store.LinkKeyword(ctx, &domain.ReviewKeyword{
			ReviewID:             in.ReviewID,
			KeywordID:            id,
			PlatformConnectionID: in.ConnectionID,
			RelevanceScore:       domain.ClampRelevance(kw.Relevance),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("keyword link %q: %w", kw.Text, err))
			continue
		}
		stats.Keywords++
	}

	seenTopics := make(map[string]bool, len(in.Topics))
	for _, topic := range in.Topics {
		// topic identity is the trimmed name, case is kept
		name := strings.TrimSpace(topic.Name)
		if name == "" || seenTopics[name] {
			continue
		}
		seenTopics[name] = true

		topicKeywords := cleanList(topic.Keywords)
		if len(topicKeywords) == 0 {
			topicKeywords = keywordTexts
		}

		id, err := s.store.UpsertTopic(ctx, in.CompanyID, name, in.Sentiment, topicKeywords)
		if err != nil {
			errs = append(errs, fmt.Errorf("topic %q: %w", name, err))
			continue
		}

		err = s.store.LinkTopic(ctx, &domain.ReviewTopic{
			ReviewID:             in.ReviewID,
			TopicID:              id,
			PlatformConnectionID: in.ConnectionID,
			RelevanceScore:       domain.ClampRelevance(topic.Relevance),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("topic link %q: %w", name, err))
			continue
		}
		stats.Topics++
	}

	if len(errs) > 0 {
		s.logger.Warn("taxonomy linking incomplete",
			slog.String("review_id", in.ReviewID.String()),
			slog.Int("failures", len(errs)),
			slog.Int("keywords_linked", stats.Keywords),
			slog.Int("topics_linked", stats.Topics))
	}
	return stats, errors.Join(errs...)
}

type preparedKeyword struct {
	KeywordInput
	key      string
	category domain.KeywordCategory
}

// prepareKeywords trims, keys and dedups keywords, keeping the highest relevance
func (s *Service) prepareKeywords(in []KeywordInput) []preparedKeyword {
	out := make([]preparedKeyword, 0, len(in))
	index := make(map[string]int, len(in))

	for _, kw := range in {
		text := strings.TrimSpace(kw.Text)
		key := s.keys.CleanText(text)
		if key == "" {
			continue
		}

		category := domain.CategoryOther
		if c := strings.ToLower(strings.TrimSpace(kw.Category)); domain.IsValidKeywordCategory(c) {
			category = domain.KeywordCategory(c)
		}

		if i, ok := index[key]; ok {
			if kw.Relevance > out[i].Relevance {
				out[i].Relevance = kw.Relevance
			}
			continue
		}
		index[key] = len(out)
		out = append(out, preparedKeyword{
			KeywordInput: KeywordInput{Text: text, Category: string(category), Relevance: kw.Relevance},
			key:          key,
			category:     category,
		})
	}
	return out
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
