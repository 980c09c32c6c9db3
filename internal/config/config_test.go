package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, int64(3), cfg.HTTPMaxConcurrency)
	assert.Equal(t, 500*time.Millisecond, cfg.HTTPMinInterval)
	assert.Equal(t, 4, cfg.HTTPMaxRetries)
	assert.Equal(t, 2.0, cfg.HTTPBackoffFactor)
	assert.Equal(t, 500*time.Millisecond, cfg.HTTPInitialBackoff)
	assert.Equal(t, 300*time.Millisecond, cfg.HTTPJitter)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 24*time.Hour, cfg.PersistentCacheTTL)
	assert.Equal(t, 10000, cfg.MaxCacheSize)
	assert.Equal(t, 5, cfg.BreakerFailureThreshold)
	assert.Equal(t, 60*time.Second, cfg.BreakerTimeout)
	assert.Equal(t, 60*time.Second, cfg.LLMTimeout)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_MAX_CONCURRENCY", "7")
	t.Setenv("HTTP_MIN_INTERVAL", "1.5")
	t.Setenv("PERSISTENT_CACHE_TTL", "3600")
	t.Setenv("CACHE_DIR", "/tmp/nf-test")
	t.Setenv("BROWSER_HEADLESS", "false")

	cfg := Load()
	assert.Equal(t, int64(7), cfg.HTTPMaxConcurrency)
	assert.Equal(t, 1500*time.Millisecond, cfg.HTTPMinInterval)
	assert.Equal(t, time.Hour, cfg.PersistentCacheTTL)
	assert.Equal(t, "/tmp/nf-test", cfg.CacheDir)
	assert.False(t, cfg.BrowserHeadless)
}

func TestMalformedEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("HTTP_MAX_RETRIES", "molti")
	cfg := Load()
	assert.Equal(t, 4, cfg.HTTPMaxRetries)
}
