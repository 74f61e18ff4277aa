package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/alejandroruanova/review-insights-service/internal/core/services/llm_input"
	apperrors "github.com/alejandroruanova/review-insights-service/internal/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(ids ...string) []llm_input.ReviewRecord {
	out := make([]llm_input.ReviewRecord, len(ids))
	for i, id := range ids {
		out[i] = llm_input.ReviewRecord{ReviewID: id, Rating: 4, Content: "Review " + id}
	}
	return out
}

func TestAnalyzeBatch_CorrelatesByReviewID(t *testing.T) {
	chat := &fakeChat{reply: `{"results":[
		{"reviewId":"b","sentiment":"NEGATIVE","score":10,"emotions":["😠"," "],"keywords":[],"topics":[]},
		{"reviewId":"zzz","sentiment":"positive","score":90,"emotions":[],"keywords":[],"topics":[]},
		{"reviewId":" a ","sentiment":"positive","score":100,"emotions":[],"keywords":[{"text":"view","category":"ambiance","relevance":0.7}],"topics":[]},
		{"reviewId":"c","sentiment":"unsure","score":150,"emotions":[],"keywords":[],"topics":[]}
	]}`}
	gate := &countingGate{}
	a := NewAnalyzer(chat, gate, 30, nil)

	outcome, err := a.AnalyzeBatch(context.Background(), records("a", "b", "c", "d"), "en")
	require.NoError(t, err)

	assert.Equal(t, 1, gate.calls)
	assert.Equal(t, 1, outcome.Unknown)
	assert.Equal(t, 1, outcome.Invalid)
	assert.Equal(t, []string{"c", "d"}, outcome.Unmatched)
	assert.False(t, outcome.Repaired)

	require.Contains(t, outcome.Results, "a")
	require.NotNil(t, outcome.Results["a"].Score)
	assert.Equal(t, 100.0, *outcome.Results["a"].Score)
	assert.Equal(t, "positive", outcome.Results["a"].Sentiment)
	assert.Len(t, outcome.Results["a"].Keywords, 1)
	assert.Equal(t, "negative", outcome.Results["b"].Sentiment)
	assert.Equal(t, []string{"😠"}, outcome.Results["b"].Emotions)
	assert.NotContains(t, outcome.Results, "c")

	require.Len(t, chat.requests, 1)
	req := chat.requests[0]
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, "json_schema", req.ResponseFormat.Type)
	assert.Equal(t, "review_analysis_batch", req.ResponseFormat.JSONSchema.Name)
	assert.Contains(t, req.Messages[0].Content, "reviewId")

	var sent struct {
		Reviews []llm_input.ReviewRecord `json:"reviews"`
	}
	require.NoError(t, json.Unmarshal([]byte(req.Messages[1].Content), &sent))
	assert.Len(t, sent.Reviews, 3)
}

func TestAnalyzeBatch_RepairsTruncatedAnswer(t *testing.T) {
	chat := &fakeChat{reply: "```json\n" + `{"results":[
		{"reviewId":"a","sentiment":"positive","score":80,"emotions":[],"keywords":[],"topics":[]},
		{"reviewId":"b","sentiment":"neg`}
	a := NewAnalyzer(chat, &countingGate{}, 30, nil)

	outcome, err := a.AnalyzeBatch(context.Background(), records("a", "b"), "en")
	require.NoError(t, err)
	assert.True(t, outcome.Repaired)
	assert.Contains(t, outcome.Results, "a")
	assert.Equal(t, []string{"b"}, outcome.Unmatched)
}

func TestAnalyzeBatch_RejectsElementCutMidway(t *testing.T) {
	chat := &fakeChat{reply: `{"results":[
		{"reviewId":"a","sentiment":"positive","score":80,"emotions":[],"keywords":[],"topics":[]},
		{"reviewId":"b","keywords":[{"text":"great view","category":"ambiance","relevance":0.8},{"text":"lou`}
	a := NewAnalyzer(chat, &countingGate{}, 30, nil)

	outcome, err := a.AnalyzeBatch(context.Background(), records("a", "b"), "en")
	require.NoError(t, err)

	assert.True(t, outcome.Repaired)
	assert.Contains(t, outcome.Results, "a")
	assert.NotContains(t, outcome.Results, "b")
	assert.Equal(t, 1, outcome.Invalid)
	assert.Equal(t, []string{"b"}, outcome.Unmatched)
}

func TestValidateResult(t *testing.T) {
	tests := []struct {
		name   string
		result AnalysisResult
		valid  bool
	}{
		{"valid", AnalysisResult{Sentiment: " Mixed ", Score: scorePtr(55)}, true},
		{"lowest score", AnalysisResult{Sentiment: "negative", Score: scorePtr(1)}, true},
		{"missing sentiment", AnalysisResult{Score: scorePtr(40)}, false},
		{"unknown sentiment", AnalysisResult{Sentiment: "unsure", Score: scorePtr(40)}, false},
		{"missing score", AnalysisResult{Sentiment: "positive"}, false},
		{"score zero", AnalysisResult{Sentiment: "negative", Score: scorePtr(0)}, false},
		{"score above range", AnalysisResult{Sentiment: "positive", Score: scorePtr(101)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.result
			err := validateResult(&r)
			if tt.valid {
				assert.NoError(t, err)
				assert.Equal(t, strings.ToLower(strings.TrimSpace(tt.result.Sentiment)), r.Sentiment)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAnalyzeBatch_UnrepairableAnswer(t *testing.T) {
	a := NewAnalyzer(&fakeChat{reply: "sorry, I cannot help"}, &countingGate{}, 30, nil)

	_, err := a.AnalyzeBatch(context.Background(), records("a"), "en")
	appErr, ok := apperrors.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeLLMInvalidResponse, appErr.Code)
}

func TestAnalyzeBatch_RateLimitPassesThrough(t *testing.T) {
	a := NewAnalyzer(&fakeChat{err: apperrors.LLMRateLimited(errors.New("slow down"))}, &countingGate{}, 30, nil)

	_, err := a.AnalyzeBatch(context.Background(), records("a"), "en")
	assert.True(t, apperrors.IsRateLimited(err))
}

func TestAnalyzeReview_French(t *testing.T) {
	chat := &fakeChat{reply: `{"sentiment":"mixed","score":55,"emotions":[],"keywords":[],"topics":[{"name":"Prix","relevance":0.6,"keywords":["cher"]}]}`}
	a := NewAnalyzer(chat, &countingGate{}, 30, nil)

	result, err := a.AnalyzeReview(context.Background(), llm_input.ReviewRecord{
		ReviewID: "r1", Rating: 3, Title: "Bof", Content: "Bon mais  cher",
	}, "fr")
	require.NoError(t, err)

	assert.Equal(t, "r1", result.ReviewID)
	assert.Equal(t, "mixed", result.Sentiment)
	require.Len(t, result.Topics, 1)

	req := chat.requests[0]
	assert.True(t, strings.HasPrefix(req.Messages[0].Content, "Tu analyses"))
	assert.NotContains(t, req.Messages[0].Content, "reviewId")
	assert.Contains(t, req.Messages[1].Content, "Title: Bof")
	assert.Contains(t, req.Messages[1].Content, "Rating: 3.0/5")
}

func TestAnalyzeReview_RejectsAnswerWithoutScore(t *testing.T) {
	chat := &fakeChat{reply: `{"sentiment":"positive","emotions":[],"keywords":[],"topics":[]}`}
	a := NewAnalyzer(chat, &countingGate{}, 30, nil)

	_, err := a.AnalyzeReview(context.Background(), llm_input.ReviewRecord{ReviewID: "r1", Content: "Lovely"}, "en")
	appErr, ok := apperrors.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeLLMInvalidResponse, appErr.Code)
	assert.Contains(t, err.Error(), "score is missing")
}

func TestAnalyzeReview_RejectsEmptyText(t *testing.T) {
	chat := &fakeChat{}
	a := NewAnalyzer(chat, &countingGate{}, 30, nil)

	_, err := a.AnalyzeReview(context.Background(), llm_input.ReviewRecord{ReviewID: "r1", Content: "  "}, "en")
	require.Error(t, err)
	assert.Empty(t, chat.requests)
}

func TestParseBatch_BareArray(t *testing.T) {
	results, repaired, err := parseBatch(`[{"reviewId":"x","sentiment":"neutral","score":50}]`)
	require.NoError(t, err)
	assert.False(t, repaired)
	require.Len(t, results, 1)
	assert.Equal(t, "x", results[0].ReviewID)
}
