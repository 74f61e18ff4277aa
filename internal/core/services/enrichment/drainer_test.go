package enrichment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alejandroruanova/review-insights-service/internal/core/domain"
	"github.com/alejandroruanova/review-insights-service/internal/core/services/llm_input"
	"github.com/alejandroruanova/review-insights-service/internal/pkg/config"
	apperrors "github.com/alejandroruanova/review-insights-service/internal/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(maxRetries int) config.EnrichmentConfig {
	return config.EnrichmentConfig{
		PageSize:          100,
		SubBatchSize:      5,
		MaxRetries:        maxRetries,
		RetryDelay:        10 * time.Second,
		DefaultConfidence: 0.85,
		DefaultLanguage:   "en",
	}
}

type drainFixture struct {
	drainer    *Drainer
	backlog    *fakeBacklog
	sentiments *fakeSentiments
	analyzer   *fakeAnalyzer
	linker     *fakeLinker
	slept      []time.Duration
}

func newDrainFixture(n int, content string, maxRetries int) *drainFixture {
	f := &drainFixture{
		sentiments: newFakeSentiments(),
		analyzer:   &fakeAnalyzer{},
		linker:     &fakeLinker{},
	}
	f.backlog = newBacklog(f.sentiments, n, content)
	f.drainer = NewDrainer(f.backlog, f.sentiments, f.linker, fakeLanguages{lang: "fr-CA"},
		f.analyzer, testConfig(maxRetries), nil)
	f.drainer.sleep = noSleep(&f.slept)
	return f
}

func TestDrain_TerminatesOnLargeBacklog(t *testing.T) {
	f := newDrainFixture(250, "Great place", 50)

	result, err := f.drainer.Drain(context.Background(), uuid.New(), 0)
	require.NoError(t, err)

	assert.Equal(t, 250, result.Processed)
	assert.Equal(t, 0, result.Remaining)
	assert.Equal(t, 0, result.Errors)
	assert.Equal(t, 2, result.RetryCount)
	assert.Equal(t, 3, result.Passes)
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second}, f.slept)
	assert.Equal(t, 50, f.analyzer.batchCalls)
	assert.Len(t, f.sentiments.rows, 250)
	assert.Equal(t, "fr", f.analyzer.langs[0])
}

func TestDrain_EmptyBacklog(t *testing.T) {
	f := newDrainFixture(0, "", 50)

	result, err := f.drainer.Drain(context.Background(), uuid.New(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
	assert.Equal(t, 0, result.Remaining)
	assert.Empty(t, f.slept)
}

func TestDrain_RateLimitStopsPass(t *testing.T) {
	f := newDrainFixture(20, "Lovely", 0)
	f.analyzer.batchFn = func(call int, reviews []llm_input.ReviewRecord) (*BatchOutcome, error) {
		if call == 2 {
			return nil, apperrors.LLMRateLimited(errors.New("429"))
		}
		return answerAll(reviews), nil
	}

	result, err := f.drainer.Drain(context.Background(), uuid.New(), 0)
	require.NoError(t, err)

	assert.Equal(t, 5, result.Processed)
	assert.Equal(t, 5, result.Skipped)
	assert.Equal(t, 0, result.Errors)
	assert.True(t, result.RateLimited)
	assert.Equal(t, 2, f.analyzer.batchCalls)
	assert.Equal(t, 15, result.Remaining)
	assert.Len(t, f.backlog.pending(), 15)
}

func TestDrain_RateLimitedReviewsDrainOnNextPass(t *testing.T) {
	f := newDrainFixture(10, "Lovely", 50)
	f.analyzer.batchFn = func(call int, reviews []llm_input.ReviewRecord) (*BatchOutcome, error) {
		if call == 1 {
			return nil, apperrors.Upstream("openai", 429, nil)
		}
		return answerAll(reviews), nil
	}

	result, err := f.drainer.Drain(context.Background(), uuid.New(), 0)
	require.NoError(t, err)

	assert.Equal(t, 10, result.Processed)
	assert.Equal(t, 5, result.Skipped)
	assert.Equal(t, 0, result.Remaining)
	assert.Equal(t, 1, result.RetryCount)
}

func TestDrain_BatchErrorContinues(t *testing.T) {
	f := newDrainFixture(10, "Okay", 0)
	f.analyzer.batchFn = func(call int, reviews []llm_input.ReviewRecord) (*BatchOutcome, error) {
		if call == 1 {
			return nil, apperrors.LLMInvalidResponse("garbage")
		}
		return answerAll(reviews), nil
	}

	result, err := f.drainer.Drain(context.Background(), uuid.New(), 0)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Processed)
	assert.Equal(t, 5, result.Errors)
	assert.Equal(t, 2, f.analyzer.batchCalls)
}

func TestDrain_UnmatchedIdsAreErrors(t *testing.T) {
	f := newDrainFixture(5, "Fine", 0)
	f.analyzer.batchFn = func(call int, reviews []llm_input.ReviewRecord) (*BatchOutcome, error) {
		out := answerAll(reviews[:3])
		out.Unmatched = []string{reviews[3].ReviewID, reviews[4].ReviewID}
		return out, nil
	}

	result, err := f.drainer.Drain(context.Background(), uuid.New(), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 2, result.Errors)
	assert.Equal(t, 2, result.Remaining)
}

func TestDrain_RetryCeiling(t *testing.T) {
	f := newDrainFixture(5, "Fine", 3)
	f.analyzer.batchFn = func(call int, reviews []llm_input.ReviewRecord) (*BatchOutcome, error) {
		return nil, errors.New("model down")
	}

	result, err := f.drainer.Drain(context.Background(), uuid.New(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, result.RetryCount)
	assert.Equal(t, 3, result.Passes)
	assert.Equal(t, 15, result.Errors)
	assert.Equal(t, 5, result.Remaining)
	assert.Len(t, f.slept, 2)
}

func TestDrain_EmptyContentUsesRating(t *testing.T) {
	f := newDrainFixture(3, "   ", 0)
	f.backlog.reviews[0].Rating = 1
	f.backlog.reviews[1].Rating = 2.5
	f.backlog.reviews[2].Rating = 5

	result, err := f.drainer.Drain(context.Background(), uuid.New(), 0)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 0, f.analyzer.batchCalls)
	assert.Empty(t, f.linker.calls)

	got := f.sentiments.rows
	assert.Equal(t, domain.SentimentNegative, got[f.backlog.reviews[0].ID].Sentiment)
	assert.Equal(t, domain.SentimentNeutral, got[f.backlog.reviews[1].ID].Sentiment)
	assert.Equal(t, domain.SentimentPositive, got[f.backlog.reviews[2].ID].Sentiment)
	assert.Equal(t, domain.SourceRating, got[f.backlog.reviews[2].ID].Source)
	assert.InDelta(t, 0.85, got[f.backlog.reviews[2].ID].Confidence, 1e-9)
}

func TestDrain_TaxonomyFailureKeepsSentiment(t *testing.T) {
	f := newDrainFixture(2, "Slow but tasty", 0)
	f.linker.err = errors.New("topic upsert failed")

	result, err := f.drainer.Drain(context.Background(), uuid.New(), 0)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 2, result.Errors)
	assert.Len(t, f.sentiments.rows, 2)
	row := f.sentiments.rows[f.backlog.reviews[0].ID]
	assert.InDelta(t, 0.8, row.SentimentScore, 1e-9)
	assert.Equal(t, "fr", row.Language)
}

func TestDrain_SentimentFailureSkipsTaxonomy(t *testing.T) {
	f := newDrainFixture(2, "Nice", 0)
	f.sentiments.fail[f.backlog.reviews[0].ID] = true

	result, err := f.drainer.Drain(context.Background(), uuid.New(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Errors)
	require.Len(t, f.linker.calls, 1)
	assert.Equal(t, f.backlog.reviews[1].ID, f.linker.calls[0].ReviewID)
}

func TestDrain_ContextCancelledWhileSleeping(t *testing.T) {
	f := newDrainFixture(150, "Nice", 50)
	ctx, cancel := context.WithCancel(context.Background())
	f.drainer.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	result, err := f.drainer.Drain(ctx, uuid.New(), 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 100, result.Processed)
}

func TestDrain_StopsBeforeTaskDeadline(t *testing.T) {
	f := newDrainFixture(150, "Nice", 50)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	result, err := f.drainer.Drain(ctx, uuid.New(), 7)
	require.NoError(t, err)

	assert.True(t, result.Deferred)
	assert.Equal(t, 8, result.RetryCount)
	assert.Equal(t, 1, result.Passes)
	assert.Equal(t, 100, result.Processed)
	assert.Equal(t, 50, result.Remaining)
	assert.Empty(t, f.slept)
}

func TestDrain_DeadlineMidPassAdvancesRetryCount(t *testing.T) {
	f := newDrainFixture(10, "Nice", 50)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	f.analyzer.batchFn = func(call int, reviews []llm_input.ReviewRecord) (*BatchOutcome, error) {
		return nil, context.DeadlineExceeded
	}

	result, err := f.drainer.Drain(ctx, uuid.New(), 2)
	require.NoError(t, err)
	assert.True(t, result.Deferred)
	assert.Equal(t, 3, result.RetryCount)
	assert.Equal(t, 0, result.Passes)
}

func TestDrain_DeadlineAtCeilingIsAnError(t *testing.T) {
	f := newDrainFixture(10, "Nice", 2)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	f.analyzer.batchFn = func(call int, reviews []llm_input.ReviewRecord) (*BatchOutcome, error) {
		return nil, context.DeadlineExceeded
	}

	result, err := f.drainer.Drain(ctx, uuid.New(), 2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, result.Deferred)
}

func TestDrain_NoDeadlineKeepsLooping(t *testing.T) {
	f := newDrainFixture(150, "Nice", 50)

	result, err := f.drainer.Drain(context.Background(), uuid.New(), 0)
	require.NoError(t, err)
	assert.False(t, result.Deferred)
	assert.Equal(t, 0, result.Remaining)
	assert.Len(t, f.slept, 1)
}
