package enrichment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alejandroruanova/review-insights-service/internal/core/domain"
	"github.com/alejandroruanova/review-insights-service/internal/core/services/llm_input"
	"github.com/alejandroruanova/review-insights-service/internal/core/services/taxonomy"
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/openai"
	apperrors "github.com/alejandroruanova/review-insights-service/internal/pkg/errors"
	"github.com/google/uuid"
)

type fakeSentiments struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*domain.SentimentAnalysis
	fail map[uuid.UUID]bool
}

func newFakeSentiments() *fakeSentiments {
	return &fakeSentiments{rows: map[uuid.UUID]*domain.SentimentAnalysis{}, fail: map[uuid.UUID]bool{}}
}

func (f *fakeSentiments) UpsertSentiment(ctx context.Context, a *domain.SentimentAnalysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[a.ReviewID] {
		return fmt.Errorf("insert failed")
	}
	f.rows[a.ReviewID] = a
	return nil
}

func (f *fakeSentiments) HasAnalysis(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rows[id]
	return ok, nil
}

type fakeBacklog struct {
	reviews    []domain.Review
	sentiments *fakeSentiments
}

func newBacklog(sentiments *fakeSentiments, n int, content string) *fakeBacklog {
	b := &fakeBacklog{sentiments: sentiments}
	conn := uuid.New()
	for i := 0; i < n; i++ {
		b.reviews = append(b.reviews, domain.Review{
			ID:                   uuid.New(),
			PlatformConnectionID: conn,
			ExternalID:           fmt.Sprintf("ext-%d", i),
			Rating:               4,
			Content:              content,
		})
	}
	return b
}

func (b *fakeBacklog) pending() []domain.Review {
	var out []domain.Review
	for _, r := range b.reviews {
		if ok, _ := b.sentiments.HasAnalysis(context.Background(), r.ID); !ok {
			out = append(out, r)
		}
	}
	return out
}

func (b *fakeBacklog) CountUnanalyzed(ctx context.Context, companyID uuid.UUID) (int64, error) {
	return int64(len(b.pending())), nil
}

func (b *fakeBacklog) ListUnanalyzed(ctx context.Context, companyID uuid.UUID, limit int) ([]domain.Review, error) {
	p := b.pending()
	if len(p) > limit {
		p = p[:limit]
	}
	return p, nil
}

func (b *fakeBacklog) GetWithCompany(ctx context.Context, id uuid.UUID) (*domain.Review, error) {
	for i := range b.reviews {
		if b.reviews[i].ID == id {
			return &b.reviews[i], nil
		}
	}
	return nil, apperrors.RecordNotFound("review")
}

type fakeLinker struct {
	calls []taxonomy.ReviewTaxonomy
	err   error
}

func (f *fakeLinker) LinkReview(ctx context.Context, in taxonomy.ReviewTaxonomy) (taxonomy.LinkStats, error) {
	f.calls = append(f.calls, in)
	return taxonomy.LinkStats{Keywords: len(in.Keywords), Topics: len(in.Topics)}, f.err
}

type fakeLanguages struct{ lang string }

func (f fakeLanguages) CompanyLanguage(ctx context.Context, companyID uuid.UUID) (string, error) {
	return f.lang, nil
}

// fakeAnalyzer answers every review positively unless batchFn overrides it
type fakeAnalyzer struct {
	batchCalls  int
	singleCalls int
	langs       []string
	batchFn     func(call int, reviews []llm_input.ReviewRecord) (*BatchOutcome, error)
	singleErr   error
}

func (f *fakeAnalyzer) AnalyzeReview(ctx context.Context, r llm_input.ReviewRecord, lang string) (*AnalysisResult, error) {
	f.singleCalls++
	f.langs = append(f.langs, lang)
	if f.singleErr != nil {
		return nil, f.singleErr
	}
	return positiveResult(r.ReviewID), nil
}

func (f *fakeAnalyzer) AnalyzeBatch(ctx context.Context, reviews []llm_input.ReviewRecord, lang string) (*BatchOutcome, error) {
	f.batchCalls++
	f.langs = append(f.langs, lang)
	if f.batchFn != nil {
		return f.batchFn(f.batchCalls, reviews)
	}
	return answerAll(reviews), nil
}

func answerAll(reviews []llm_input.ReviewRecord) *BatchOutcome {
	out := &BatchOutcome{Results: map[string]*AnalysisResult{}}
	for _, r := range reviews {
		out.Results[r.ReviewID] = positiveResult(r.ReviewID)
	}
	return out
}

func positiveResult(id string) *AnalysisResult {
	return &AnalysisResult{
		ReviewID:  id,
		Sentiment: "positive",
		Score:     scorePtr(90),
		Emotions:  []string{"😊"},
		Keywords:  []taxonomy.KeywordInput{{Text: "friendly staff", Category: "staff", Relevance: 0.9}},
		Topics:    []taxonomy.TopicInput{{Name: "Service", Relevance: 0.8}},
	}
}

type fakeChat struct {
	requests []openai.ChatRequest
	reply    string
	err      error
}

func (f *fakeChat) ChatCompletion(ctx context.Context, req openai.ChatRequest) (*openai.ChatResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &openai.ChatResponse{Choices: []openai.Choice{{Message: openai.ChatMessage{Role: "assistant", Content: f.reply}}}}, nil
}

type countingGate struct{ calls int }

func (g *countingGate) Gate(ctx context.Context, maxPerMinute int) error {
	g.calls++
	return nil
}

func noSleep(slept *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
}

func scorePtr(v float64) *float64 {
	return &v
}
