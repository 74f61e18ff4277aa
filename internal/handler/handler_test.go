package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alejandroruanova/review-insights-service/internal/core/domain"
	"github.com/alejandroruanova/review-insights-service/internal/core/services/enrichment"
	"github.com/alejandroruanova/review-insights-service/internal/core/services/fetch"
	"github.com/alejandroruanova/review-insights-service/internal/core/services/webhook"
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/listingpage"
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/zembra"
	"github.com/alejandroruanova/review-insights-service/internal/middleware"
	apperrors "github.com/alejandroruanova/review-insights-service/internal/pkg/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	jwtSecret  = "jwt-secret"
	serviceKey = "service-key"
)

type fakeWebhook struct {
	calls int
	res   *webhook.Result
	err   error
}

func (f *fakeWebhook) Authorize(token string) bool { return token == "hook-token" }

func (f *fakeWebhook) Handle(ctx context.Context, body []byte) (*webhook.Result, error) {
	f.calls++
	return f.res, f.err
}

type fakeTrigger struct {
	caller fetch.Caller
	calls  int
	res    *fetch.TriggerResult
	err    error
}

func (f *fakeTrigger) Trigger(ctx context.Context, companyID uuid.UUID, caller fetch.Caller) (*fetch.TriggerResult, error) {
	f.calls++
	f.caller = caller
	return f.res, f.err
}

type fakeScheduler struct {
	companyID uuid.UUID
	retry     int
	calls     int
}

func (f *fakeScheduler) EnqueueDrain(ctx context.Context, companyID uuid.UUID, retryCount int) error {
	f.calls++
	f.companyID = companyID
	f.retry = retryCount
	return nil
}

type fakeProcessor struct {
	err error
}

func (f *fakeProcessor) Process(ctx context.Context, reviewID uuid.UUID) (*enrichment.SingleResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &enrichment.SingleResult{ReviewID: reviewID, Status: enrichment.StatusAnalyzed, Sentiment: domain.SentimentPositive}, nil
}

type fakeListings struct {
	err error
}

func (f *fakeListings) VerifyListing(ctx context.Context, network, slug string) (*zembra.Listing, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &zembra.Listing{Network: network, Slug: slug, Name: "Cafe Lumiere"}, nil
}

type fakePages struct{}

func (fakePages) Inspect(ctx context.Context, pageURL string) (*listingpage.Metadata, error) {
	return &listingpage.Metadata{URL: pageURL, CanonicalURL: "https://maps.example.com/cafe-lumiere", Title: "Cafe Lumiere"}, nil
}

type fakeHealth struct{ status string }

func (f fakeHealth) Health(ctx context.Context) map[string]interface{} {
	return map[string]interface{}{"status": f.status}
}

type server struct {
	e         *echo.Echo
	webhook   *fakeWebhook
	trigger   *fakeTrigger
	scheduler *fakeScheduler
	processor *fakeProcessor
	listings  *fakeListings
}

func newServer(t *testing.T, dbStatus string) *server {
	t.Helper()
	s := &server{
		webhook:   &fakeWebhook{res: &webhook.Result{Status: webhook.OutcomeAck, Success: true}},
		trigger:   &fakeTrigger{res: &fetch.TriggerResult{Success: true, LocationsProcessed: 2, ReviewsInserted: 7}},
		scheduler: &fakeScheduler{},
		processor: &fakeProcessor{},
		listings:  &fakeListings{},
	}
	s.e = NewRouter(RouterConfig{JWTSecret: jwtSecret, ServiceKey: serviceKey}, Handlers{
		Health:      NewHealthHandler(map[string]HealthChecker{"database": fakeHealth{status: dbStatus}}),
		Webhook:     NewWebhookHandler(s.webhook),
		Fetch:       NewFetchHandler(s.trigger),
		Connections: NewConnectionHandler(s.listings, fakePages{}),
		Enrichment:  NewEnrichmentHandler(s.scheduler, s.processor),
	})
	return s
}

func (s *server) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func bearer(t *testing.T, userID uuid.UUID) map[string]string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.UserClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return map[string]string{echo.HeaderAuthorization: "Bearer " + signed}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestWebhook_RejectsBadToken(t *testing.T) {
	s := newServer(t, "up")

	rec := s.do(http.MethodPost, "/webhooks/zembra", `{"type":"reviews"}`, map[string]string{ZembraTokenHeader: "nope"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))
	assert.Equal(t, 0, s.webhook.calls)
}

func TestWebhook_Processes(t *testing.T) {
	s := newServer(t, "up")
	s.webhook.res = &webhook.Result{Status: webhook.OutcomeUnresolved, Error: "no active connection"}

	rec := s.do(http.MethodPost, "/webhooks/zembra", `{}`, map[string]string{ZembraTokenHeader: "hook-token"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
	assert.Equal(t, 1, s.webhook.calls)
}

func TestWebhook_MalformedIs400(t *testing.T) {
	s := newServer(t, "up")
	s.webhook.err = apperrors.BadRequest("invalid webhook payload")

	rec := s.do(http.MethodPost, "/webhooks/zembra", `{`, map[string]string{ZembraTokenHeader: "hook-token"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFetch_RequiresToken(t *testing.T) {
	s := newServer(t, "up")

	rec := s.do(http.MethodPost, "/api/v1/reviews/fetch", `{"company_id":"`+uuid.NewString()+`"}`, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, s.trigger.calls)
}

func TestFetch_Success(t *testing.T) {
	s := newServer(t, "up")
	userID := uuid.New()

	rec := s.do(http.MethodPost, "/api/v1/reviews/fetch", `{"company_id":"`+uuid.NewString()+`"}`, bearer(t, userID))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, s.trigger.caller.UserID)
	assert.False(t, s.trigger.caller.System)
	assert.Contains(t, rec.Body.String(), `"reviews_inserted":7`)
}

func TestFetch_ForbiddenPropagates(t *testing.T) {
	s := newServer(t, "up")
	s.trigger.err = apperrors.Forbidden("caller does not own this company")

	rec := s.do(http.MethodPost, "/api/v1/reviews/fetch", `{"company_id":"`+uuid.NewString()+`"}`, bearer(t, uuid.New()))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, rec))
}

func TestFetch_InvalidCompanyID(t *testing.T) {
	s := newServer(t, "up")

	rec := s.do(http.MethodPost, "/api/v1/reviews/fetch", `{"company_id":"acme"}`, bearer(t, uuid.New()))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, s.trigger.calls)
}

func TestFetch_UnexpectedErrorIs500(t *testing.T) {
	s := newServer(t, "up")
	s.trigger.err = errors.New("boom")

	rec := s.do(http.MethodPost, "/api/v1/reviews/fetch", `{"company_id":"`+uuid.NewString()+`"}`, bearer(t, uuid.New()))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "boom")
}

func TestDrain_RequiresServiceKey(t *testing.T) {
	s := newServer(t, "up")
	body := `{"company_id":"` + uuid.NewString() + `"}`

	rec := s.do(http.MethodPost, "/internal/enrichment/drain", body, bearer(t, uuid.New()))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, s.scheduler.calls)
}

func TestDrain_Enqueues(t *testing.T) {
	s := newServer(t, "up")
	companyID := uuid.New()

	rec := s.do(http.MethodPost, "/internal/enrichment/drain",
		`{"company_id":"`+companyID.String()+`","retry_count":3}`,
		map[string]string{echo.HeaderAuthorization: "Bearer " + serviceKey})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, companyID, s.scheduler.companyID)
	assert.Equal(t, 3, s.scheduler.retry)
}

func TestAnalyzeReview(t *testing.T) {
	s := newServer(t, "up")
	headers := map[string]string{middleware.ServiceKeyHeader: serviceKey}

	rec := s.do(http.MethodPost, "/internal/reviews/"+uuid.NewString()+"/analyze", "", headers)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"analyzed"`)

	s.processor.err = apperrors.RecordNotFound("review")
	rec = s.do(http.MethodPost, "/internal/reviews/"+uuid.NewString()+"/analyze", "", headers)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, "/internal/reviews/not-a-uuid/analyze", "", headers)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyConnection(t *testing.T) {
	s := newServer(t, "up")
	headers := bearer(t, uuid.New())

	rec := s.do(http.MethodPost, "/api/v1/connections/verify",
		`{"network":"Google","slug":"cafe-lumiere","url":"https://maps.example.com/x"}`, headers)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"slug_matched":true`)
	assert.Contains(t, rec.Body.String(), `"network":"google"`)

	rec = s.do(http.MethodPost, "/api/v1/connections/verify", `{"network":"google"}`, headers)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.listings.err = apperrors.Upstream("zembra", http.StatusNotFound, errors.New("no listing"))
	rec = s.do(http.MethodPost, "/api/v1/connections/verify", `{"network":"google","slug":"gone"}`, headers)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	rec := newServer(t, "up").do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = newServer(t, "down").do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"degraded"`)
}

func TestUnknownRoute(t *testing.T) {
	rec := newServer(t, "up").do(http.MethodGet, "/nope", "", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))
}
