// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// RedisConfig provides Redis connection settings.
type RedisConfig interface {
	GetRedisURL() string
}

// StreamConfig provides settings for the lead event stream.
type StreamConfig interface {
	RedisConfig
	GetStreamQueue() string
	GetStreamMaxRetry() int
}

// TriageConfig provides settings for the triage worker.
type TriageConfig interface {
	StreamConfig
	GetTriageConcurrency() int
	GetTriageRetryBase() time.Duration
	GetTriageRetryCap() time.Duration
}

// ClassifierConfig provides settings for classifier selection.
type ClassifierConfig interface {
	GetClassifierKind() string
	GetClassifierURL() string
	GetClassifierTimeout() time.Duration
	GetClassifierFallback() bool
}

// IntakeConfig provides settings for the intake gateway.
type IntakeConfig interface {
	GetIdempotencyCacheTTL() time.Duration
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetRateLimitRPS() float64
	GetRateLimitBurst() int
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                 string
	HTTPAddr            string
	DatabaseURL         string
	RedisURL            string
	CORSAllowAll        bool
	CORSOrigins         []string
	RateLimitRPS        float64
	RateLimitBurst      int
	StreamQueue         string
	StreamMaxRetry      int
	TriageConcurrency   int
	TriageRetryBase     time.Duration
	TriageRetryCap      time.Duration
	ClassifierKind      string
	ClassifierURL       string
	ClassifierTimeout   time.Duration
	ClassifierFallback  bool
	IdempotencyCacheTTL time.Duration
}

// Load reads configuration from the environment, honoring a local .env file
// when present.
func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Env:                 getEnv("ENV", "development"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            getEnv("REDIS_URL", "redis://localhost:6379/0"),
		CORSAllowAll:        getBoolEnv("CORS_ALLOW_ALL", false),
		CORSOrigins:         getListEnv("CORS_ORIGINS"),
		RateLimitRPS:        getFloatEnv("RATE_LIMIT_RPS", 10),
		RateLimitBurst:      getIntEnv("RATE_LIMIT_BURST", 20),
		StreamQueue:         getEnv("STREAM_QUEUE", "triage"),
		StreamMaxRetry:      getIntEnv("STREAM_MAX_RETRY", 5),
		TriageConcurrency:   getIntEnv("TRIAGE_CONCURRENCY", 10),
		TriageRetryBase:     getDurationEnv("TRIAGE_RETRY_BASE", 2*time.Second),
		TriageRetryCap:      getDurationEnv("TRIAGE_RETRY_CAP", 5*time.Minute),
		ClassifierKind:      getEnv("CLASSIFIER_KIND", "rules"),
		ClassifierURL:       os.Getenv("CLASSIFIER_URL"),
		ClassifierTimeout:   getDurationEnv("CLASSIFIER_TIMEOUT", 10*time.Second),
		ClassifierFallback:  getBoolEnv("CLASSIFIER_FALLBACK", true),
		IdempotencyCacheTTL: getDurationEnv("IDEMPOTENCY_CACHE_TTL", 24*time.Hour),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.ClassifierKind == "model" && cfg.ClassifierURL == "" {
		return nil, fmt.Errorf("CLASSIFIER_URL is required when CLASSIFIER_KIND=model")
	}

	return cfg, nil
}

// =============================================================================
// Interface Implementations
// =============================================================================

func (c *Config) GetDatabaseURL() string              { return c.DatabaseURL }
func (c *Config) GetRedisURL() string                 { return c.RedisURL }
func (c *Config) GetHTTPAddr() string                 { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool               { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string            { return c.CORSOrigins }
func (c *Config) GetRateLimitRPS() float64            { return c.RateLimitRPS }
func (c *Config) GetRateLimitBurst() int              { return c.RateLimitBurst }
func (c *Config) GetStreamQueue() string              { return c.StreamQueue }
func (c *Config) GetStreamMaxRetry() int              { return c.StreamMaxRetry }
func (c *Config) GetTriageConcurrency() int           { return c.TriageConcurrency }
func (c *Config) GetTriageRetryBase() time.Duration   { return c.TriageRetryBase }
func (c *Config) GetTriageRetryCap() time.Duration    { return c.TriageRetryCap }
func (c *Config) GetClassifierKind() string           { return c.ClassifierKind }
func (c *Config) GetClassifierURL() string            { return c.ClassifierURL }
func (c *Config) GetClassifierTimeout() time.Duration { return c.ClassifierTimeout }
func (c *Config) GetClassifierFallback() bool         { return c.ClassifierFallback }
func (c *Config) GetIdempotencyCacheTTL() time.Duration {
	return c.IdempotencyCacheTTL
}

// =============================================================================
// Env Helpers
// =============================================================================

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getFloatEnv(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getBoolEnv(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getListEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
