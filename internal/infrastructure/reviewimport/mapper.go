package reviewimport

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alejandroruanova/review-insights-service/internal/core/domain"
)

// Column aliases accepted in review exports, first match wins
var (
	idColumns        = []string{"external_id", "review_id", "id"}
	authorColumns    = []string{"author_name", "author", "reviewer"}
	ratingColumns    = []string{"rating", "stars", "score"}
	titleColumns     = []string{"title", "headline"}
	contentColumns   = []string{"content", "text", "review", "comment"}
	publishedColumns = []string{"published_at", "date", "timestamp", "created_at"}
	replyColumns     = []string{"reply_content", "reply", "owner_reply"}
	replyAtColumns   = []string{"reply_published_at", "reply_date"}
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// MapRecords converts export rows into canonical reviews. Rows that cannot
// be mapped are reported as "row N: reason", N counting from 1.
func MapRecords(records []Record) ([]domain.StandardReview, []string) {
	reviews := make([]domain.StandardReview, 0, len(records))
	var failures []string

	for i, rec := range records {
		review, err := MapRecord(rec)
		if err != nil {
			failures = append(failures, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		reviews = append(reviews, review)
	}
	return reviews, failures
}

// MapRecord converts one export row
func MapRecord(rec Record) (domain.StandardReview, error) {
	normalized := make(Record, len(rec))
	for key, value := range rec {
		normalized[strings.ToLower(strings.TrimSpace(key))] = value
	}

	review := domain.StandardReview{
		ExternalID: lookupString(normalized, idColumns),
		AuthorName: lookupString(normalized, authorColumns),
		Content:    lookupString(normalized, contentColumns),
	}
	if review.ExternalID == "" {
		return review, fmt.Errorf("missing external id")
	}

	rating, err := parseRating(lookup(normalized, ratingColumns))
	if err != nil {
		return review, err
	}
	review.Rating = rating

	if title := lookupString(normalized, titleColumns); title != "" {
		review.Title = &title
	}
	if reply := lookupString(normalized, replyColumns); reply != "" {
		review.ReplyContent = &reply
	}
	review.PublishedAt = parseDate(lookupString(normalized, publishedColumns))
	review.ReplyPublishedAt = parseDate(lookupString(normalized, replyAtColumns))

	raw, err := json.Marshal(rec)
	if err != nil {
		return review, fmt.Errorf("failed to encode raw row: %w", err)
	}
	review.RawData = raw

	return review, nil
}

func lookup(rec Record, columns []string) interface{} {
	for _, col := range columns {
		if value, ok := rec[col]; ok && value != nil {
			if s, isString := value.(string); isString && strings.TrimSpace(s) == "" {
				continue
			}
			return value
		}
	}
	return nil
}

func lookupString(rec Record, columns []string) string {
	switch v := lookup(rec, columns).(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// parseRating accepts numbers and strings like "4", "4.5" or "4/5".
// A missing rating is 0.
func parseRating(value interface{}) (float64, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if slash := strings.Index(s, "/"); slash >= 0 {
			s = strings.TrimSpace(s[:slash])
		}
		s = strings.ReplaceAll(s, ",", ".")
		rating, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid rating %q", v)
		}
		return rating, nil
	default:
		return 0, fmt.Errorf("invalid rating %v", v)
	}
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
