package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("DB_USER", "postgres")
	t.Setenv("DB_PASSWORD", "postgres")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ZEMBRA_API_TOKEN", "zembra-api")
	t.Setenv("ZEMBRA_WEBHOOK_TOKEN", "zembra-hook")
	t.Setenv("SERVICE_KEY", "service-key")
	t.Setenv("JWT_SECRET", "jwt-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 48*time.Hour, cfg.Fetch.Cooldown)
	assert.Equal(t, 100, cfg.Enrichment.PageSize)
	assert.Equal(t, 5, cfg.Enrichment.SubBatchSize)
	assert.Equal(t, 50, cfg.Enrichment.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.Enrichment.RetryDelay)
	assert.InDelta(t, 0.85, cfg.Enrichment.DefaultConfidence, 1e-9)
	assert.Equal(t, 60*time.Second, cfg.LLM.RateLimitWindow)
	assert.Equal(t, 2*time.Second, cfg.LLM.RateLimitJitter)
	assert.InDelta(t, 0.01, cfg.LLM.RateLimitCleanupRate, 1e-9)
	assert.Equal(t, []time.Duration{10 * time.Second, 15 * time.Second, 20 * time.Second}, cfg.ReviewSource.PollDelays)
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestLoad_MissingSecret(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ZEMBRA_WEBHOOK_TOKEN", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ZEMBRA_WEBHOOK_TOKEN")
}

func TestValidate_RateLimitBackend(t *testing.T) {
	setRequiredEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	cfg.LLM.RateLimitBackend = "carrier-pigeon"
	assert.Error(t, cfg.Validate())

	cfg.LLM.RateLimitBackend = "memory"
	assert.NoError(t, cfg.Validate())
}
