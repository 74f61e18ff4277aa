package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentimentFromRating(t *testing.T) {
	tests := []struct {
		rating float64
		want   Sentiment
	}{
		{1, SentimentNegative},
		{1.5, SentimentNegative},
		{2, SentimentMixed},
		{2.5, SentimentNeutral},
		{3, SentimentMixed},
		{3.5, SentimentPositive},
		{4, SentimentPositive},
		{5, SentimentPositive},
		{0, SentimentNeutral},
	}

	for _, tt := range tests {
		got, _ := SentimentFromRating(tt.rating)
		assert.Equal(t, tt.want, got, "rating %v", tt.rating)
	}
}

func TestSentimentFromRating_Deterministic(t *testing.T) {
	s1, raw1 := SentimentFromRating(4)
	s2, raw2 := SentimentFromRating(4)

	assert.Equal(t, s1, s2)
	assert.Equal(t, raw1, raw2)
	assert.InDelta(t, 0.6, ScoreFromLLM(raw1), 1e-9)
}

func TestScoreFromLLM(t *testing.T) {
	assert.Equal(t, 0.0, ScoreFromLLM(50))
	assert.Equal(t, 1.0, ScoreFromLLM(100))
	assert.InDelta(t, -0.98, ScoreFromLLM(1), 1e-9)

	// out-of-range scores are clamped before remapping
	assert.InDelta(t, -0.98, ScoreFromLLM(-20), 1e-9)
	assert.Equal(t, 1.0, ScoreFromLLM(250))

	for s := 1.0; s <= 100; s++ {
		got := ScoreFromLLM(s)
		assert.GreaterOrEqual(t, got, -0.98)
		assert.LessOrEqual(t, got, 1.0)
	}
}

func TestIsValidSentiment(t *testing.T) {
	for _, s := range ValidSentiments() {
		assert.True(t, IsValidSentiment(string(s)))
	}
	assert.False(t, IsValidSentiment("ecstatic"))
	assert.False(t, IsValidSentiment(""))
}

func TestIsValidKeywordCategory(t *testing.T) {
	assert.True(t, IsValidKeywordCategory("food"))
	assert.True(t, IsValidKeywordCategory("other"))
	assert.False(t, IsValidKeywordCategory("parking"))
}

func TestClampRelevance(t *testing.T) {
	assert.Equal(t, 0.0, ClampRelevance(-0.3))
	assert.Equal(t, 0.42, ClampRelevance(0.42))
	assert.Equal(t, 1.0, ClampRelevance(7))
}
