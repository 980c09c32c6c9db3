// Package config loads the environment-driven configuration. A .env file
// in the working directory is honored when present; explicit environment
// variables always win.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every tunable knob with its documented default.
type Config struct {
	HTTPMaxConcurrency int64
	HTTPMinInterval    time.Duration
	HTTPMaxRetries     int
	HTTPBackoffFactor  float64
	HTTPInitialBackoff time.Duration
	HTTPJitter         time.Duration
	HTTPTimeout        time.Duration

	PersistentCacheTTL time.Duration
	MaxCacheSize       int
	CacheDir           string

	BreakerFailureThreshold int
	BreakerSuccessThreshold int
	BreakerTimeout          time.Duration

	LLMParsingModel string
	LLMAPIKey       string
	LLMTimeout      time.Duration

	BrowserBin      string // optional explicit Chromium binary
	BrowserHeadless bool
}

// Load reads configuration from the environment, after a best-effort
// .env load.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		HTTPMaxConcurrency: envInt64("HTTP_MAX_CONCURRENCY", 3),
		HTTPMinInterval:    envSeconds("HTTP_MIN_INTERVAL", 0.5),
		HTTPMaxRetries:     envInt("HTTP_MAX_RETRIES", 4),
		HTTPBackoffFactor:  envFloat("HTTP_BACKOFF_FACTOR", 2.0),
		HTTPInitialBackoff: envSeconds("HTTP_INITIAL_BACKOFF", 0.5),
		HTTPJitter:         envSeconds("HTTP_JITTER", 0.3),
		HTTPTimeout:        envSeconds("HTTP_TIMEOUT", 30),

		PersistentCacheTTL: envSeconds("PERSISTENT_CACHE_TTL", 86400),
		MaxCacheSize:       envInt("MAX_CACHE_SIZE", 10000),
		CacheDir:           envString("CACHE_DIR", defaultCacheDir()),

		BreakerFailureThreshold: envInt("BREAKER_FAILURE_THRESHOLD", 5),
		BreakerSuccessThreshold: envInt("BREAKER_SUCCESS_THRESHOLD", 2),
		BreakerTimeout:          envSeconds("BREAKER_TIMEOUT", 60),

		LLMParsingModel: envString("LLM_PARSING_MODEL", "gemini-2.0-flash"),
		LLMAPIKey:       envString("LLM_API_KEY", os.Getenv("GEMINI_API_KEY")),
		LLMTimeout:      envSeconds("LLM_TIMEOUT", 60),

		BrowserBin:      envString("BROWSER_BIN", ""),
		BrowserHeadless: envBool("BROWSER_HEADLESS", true),
	}
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "normafetch")
	}
	return ".normafetch-cache"
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// envSeconds reads a float number of seconds.
func envSeconds(key string, def float64) time.Duration {
	return time.Duration(envFloat(key, def) * float64(time.Second))
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
