package zembra

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alejandroruanova/review-insights-service/internal/core/domain"
)

// Envelope wraps every Zembra response
type Envelope[T any] struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// OK reports whether the provider marked the call successful
func (e *Envelope[T]) OK() bool {
	return e.Status == "" || strings.EqualFold(e.Status, "SUCCESS")
}

// Job is a scrape job for one listing
type Job struct {
	ID       string `json:"jobId"`
	Status   string `json:"status"`
	Network  string `json:"network,omitempty"`
	Slug     string `json:"slug,omitempty"`
	Progress string `json:"progress,omitempty"`
}

// IsComplete reports whether the provider finished the job
func (j *Job) IsComplete() bool {
	if j == nil {
		return false
	}
	switch strings.ToLower(j.Status) {
	case "complete", "completed", "done", "finished", "success":
		return true
	}
	return false
}

// Target is the business listing a job or webhook refers to
type Target struct {
	Network string `json:"network"`
	Slug    string `json:"slug"`
	Name    string `json:"name,omitempty"`
	URL     string `json:"url,omitempty"`
}

// ReviewsPage is the data of a review read or a webhook push
type ReviewsPage struct {
	Job     *Job              `json:"job,omitempty"`
	Target  *Target           `json:"target,omitempty"`
	Reviews []json.RawMessage `json:"reviews"`
}

// Listing is the provider's view of a business listing
type Listing struct {
	Network       string  `json:"network"`
	Slug          string  `json:"slug"`
	Name          string  `json:"name"`
	Address       string  `json:"address,omitempty"`
	URL           string  `json:"url,omitempty"`
	AverageRating float64 `json:"averageRating,omitempty"`
	ReviewCount   int     `json:"reviewCount,omitempty"`
}

// FetchStatus is the outcome of a pull-mode fetch
type FetchStatus string

const (
	// FetchReviews means reviews were returned
	FetchReviews FetchStatus = "reviews"
	// FetchEmpty means the provider finished the job and has no reviews
	FetchEmpty FetchStatus = "empty"
	// FetchPending means retries ran out while the job was still running
	FetchPending FetchStatus = "pending"
)

// FetchResult is the tri-state result of FetchReviews
type FetchResult struct {
	Status         FetchStatus
	Reviews        []domain.StandardReview
	JobID          string
	Attempts       int
	LastError      error
	NormalizeFails []string
}

// APIError is a non-2xx response from Zembra
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("zembra API error %d: %s", e.StatusCode, body)
}

// HTTPStatus exposes the response status to error classifiers
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}
