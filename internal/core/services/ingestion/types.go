package ingestion

import (
	"context"
	"strings"

	"github.com/alejandroruanova/review-insights-service/internal/core/domain"
)

// ReviewWriter stores a review unless its connection already has that external id
type ReviewWriter interface {
	InsertIfAbsent(ctx context.Context, review *domain.Review) (bool, error)
}

// SaveResult summarizes one Save call
type SaveResult struct {
	Fetched      int      `json:"fetched"`
	New          int      `json:"new"`
	Duplicates   int      `json:"duplicates"`
	Errors       []string `json:"errors,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

// Failed is the number of reviews that could not be stored
func (r *SaveResult) Failed() int {
	return len(r.Errors)
}

func (r *SaveResult) addError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.ErrorMessage = strings.Join(r.Errors, "; ")
}
