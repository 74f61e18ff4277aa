package zembra

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alejandroruanova/review-insights-service/internal/core/domain"
)

// rawReview covers the review shapes Zembra returns across networks
type rawReview struct {
	ID             flexString      `json:"id"`
	ReviewID       flexString      `json:"reviewId"`
	Timestamp      flexTime        `json:"timestamp"`
	Rating         *float64        `json:"rating"`
	Recommendation *int            `json:"recommendation"`
	Title          *string         `json:"title"`
	Text           *string         `json:"text"`
	Content        *string         `json:"content"`
	Author         json.RawMessage `json:"author"`
	Reply          *struct {
		Text      *string  `json:"text"`
		Timestamp flexTime `json:"timestamp"`
	} `json:"reply"`
}

// NormalizeReview maps one provider review to a StandardReview.
// The rating comes from "rating"; networks without stars use
// "recommendation" (1 -> 5, -1 -> 1); anything else is 0.
func NormalizeReview(raw json.RawMessage) (domain.StandardReview, error) {
	var r rawReview
	if err := json.Unmarshal(raw, &r); err != nil {
		return domain.StandardReview{}, fmt.Errorf("invalid review payload: %w", err)
	}

	review := domain.StandardReview{
		ExternalID: strings.TrimSpace(string(r.ID)),
		AuthorName: authorName(r.Author),
		Rating:     normalizeRating(r.Rating, r.Recommendation),
		RawData:    append(json.RawMessage(nil), raw...),
	}
	if review.ExternalID == "" {
		review.ExternalID = strings.TrimSpace(string(r.ReviewID))
	}

	switch {
	case r.Text != nil:
		review.Content = *r.Text
	case r.Content != nil:
		review.Content = *r.Content
	}
	if r.Title != nil && strings.TrimSpace(*r.Title) != "" {
		review.Title = r.Title
	}
	if t := r.Timestamp.Time(); t != nil {
		review.PublishedAt = t
	}
	if r.Reply != nil && r.Reply.Text != nil && strings.TrimSpace(*r.Reply.Text) != "" {
		review.ReplyContent = r.Reply.Text
		review.ReplyPublishedAt = r.Reply.Timestamp.Time()
	}

	return review, nil
}

// NormalizeReviews maps a page of reviews, collecting per-review failures
func NormalizeReviews(raws []json.RawMessage) ([]domain.StandardReview, []string) {
	reviews := make([]domain.StandardReview, 0, len(raws))
	var failures []string

	for i, raw := range raws {
		review, err := NormalizeReview(raw)
		if err != nil {
			failures = append(failures, fmt.Sprintf("review %d: %v", i, err))
			continue
		}
		reviews = append(reviews, review)
	}
	return reviews, failures
}

func normalizeRating(rating *float64, recommendation *int) float64 {
	if rating != nil && *rating > 0 {
		return *rating
	}
	if recommendation != nil {
		switch *recommendation {
		case 1:
			return 5
		case -1:
			return 1
		}
	}
	return 0
}

func authorName(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return strings.TrimSpace(name)
	}

	var author struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &author); err == nil {
		return strings.TrimSpace(author.Name)
	}
	return ""
}

// flexString accepts a JSON string or number
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(b)
	return nil
}

// flexTime accepts RFC 3339, common date layouts or unix seconds
type flexTime struct{ t *time.Time }

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (f *flexTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}

	if b[0] != '"' {
		secs, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return nil
		}
		t := time.Unix(secs, 0).UTC()
		f.t = &t
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			f.t = &t
			return nil
		}
	}
	// unparseable dates are dropped, the raw payload keeps them
	return nil
}

// Time returns the parsed time, if any
func (f flexTime) Time() *time.Time {
	return f.t
}
