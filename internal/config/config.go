// Package config handles application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port    int
	BaseURL string

	// Database
	DatabaseURL string

	// Authentication. JWTSecret verifies caller tokens and seeds the
	// user-hash key; tokens are issued by the app backend.
	JWTSecret string
	JWTIssuer string

	// LLM provider
	LLMProvider string // openrouter, anthropic, openai, ollama
	LLMAPIKey   string
	LLMBaseURL  string // override for proxies and local servers
	LLMModel    string

	// Content limits
	MaxTextLength         int // full analysis
	MaxRealtimeTextLength int // realtime analysis

	// Admission window
	WindowDuration      time.Duration
	WindowMaxRequests   int
	WindowMaxCharacters int

	// Result cache
	CacheTTL           time.Duration
	MinCacheableLength int // texts shorter than this with no suggestions are not cached
	LRUMaxEntries      int

	// Retry policy
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	RetryJitterMax   time.Duration

	// Timeouts
	CallTimeout    time.Duration // single LLM attempt
	OverallTimeout time.Duration // whole analysis request

	// CORS
	CORSOrigins []string

	// Maintenance sweeper
	SweepEnabled  bool
	SweepInterval time.Duration
	// Rate windows idle longer than this are dropped by the sweeper.
	SweepIdleWindowAge time.Duration

	// Object storage for the optional limits-override document
	// (S3-compatible; Tigris/MinIO work via AWS_ENDPOINT_URL_S3).
	StorageEnabled    bool
	StorageEndpoint   string
	StorageAccessKey  string
	StorageSecretKey  string
	StorageBucket     string
	StorageRegion     string
	LimitsOverrideKey string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		DatabaseURL: getEnv("DATABASE_URL", "file:draftwise.db?_journal=WAL&_timeout=5000"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "draftwise"),

		LLMProvider: getEnv("LLM_PROVIDER", "openrouter"),
		LLMAPIKey:   getEnv("LLM_API_KEY", ""),
		LLMBaseURL:  getEnv("LLM_BASE_URL", ""),
		LLMModel:    getEnv("LLM_MODEL", "anthropic/claude-3.5-haiku"),

		MaxTextLength:         getEnvInt("MAX_TEXT_LENGTH", 10000),
		MaxRealtimeTextLength: getEnvInt("MAX_REALTIME_TEXT_LENGTH", 5000),

		WindowDuration:      getEnvDuration("WINDOW_DURATION", time.Hour),
		WindowMaxRequests:   getEnvInt("WINDOW_MAX_REQUESTS", 100),
		WindowMaxCharacters: getEnvInt("WINDOW_MAX_CHARACTERS", 1_000_000),

		CacheTTL:           getEnvDuration("CACHE_TTL", 24*time.Hour),
		MinCacheableLength: getEnvInt("MIN_CACHEABLE_LENGTH", 100),
		LRUMaxEntries:      getEnvInt("LRU_MAX_ENTRIES", 500),

		RetryMaxAttempts: getEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryBaseDelay:   getEnvDuration("RETRY_BASE_DELAY", time.Second),
		RetryMaxDelay:    getEnvDuration("RETRY_MAX_DELAY", 10*time.Second),
		RetryJitterMax:   getEnvDuration("RETRY_JITTER_MAX", time.Second),

		CallTimeout:    getEnvDuration("CALL_TIMEOUT", 30*time.Second),
		OverallTimeout: getEnvDuration("OVERALL_TIMEOUT", 60*time.Second),

		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),

		SweepEnabled:       getEnvBool("SWEEP_ENABLED", true),
		SweepInterval:      getEnvDuration("SWEEP_INTERVAL", time.Hour),
		SweepIdleWindowAge: getEnvDuration("SWEEP_IDLE_WINDOW_AGE", 24*time.Hour),

		StorageEndpoint:   getEnv("AWS_ENDPOINT_URL_S3", ""),
		StorageAccessKey:  getEnv("AWS_ACCESS_KEY_ID", ""),
		StorageSecretKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		StorageBucket:     getEnvWithFallback("BUCKET_NAME", "STORAGE_BUCKET", ""),
		StorageRegion:     getEnv("AWS_REGION", "auto"),
		LimitsOverrideKey: getEnv("LIMITS_OVERRIDE_KEY", "config/limits.json"),
	}

	// Limits overrides only load when a bucket is configured.
	cfg.StorageEnabled = cfg.StorageBucket != ""

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.LLMAPIKey == "" && cfg.LLMProvider != "ollama" {
		return nil, fmt.Errorf("LLM_API_KEY is required for provider %s", cfg.LLMProvider)
	}
	if cfg.MaxRealtimeTextLength > cfg.MaxTextLength {
		return nil, fmt.Errorf("MAX_REALTIME_TEXT_LENGTH must not exceed MAX_TEXT_LENGTH")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func getEnvWithFallback(primary, fallback, defaultValue string) string {
	if value := os.Getenv(primary); value != "" {
		return value
	}
	if value := os.Getenv(fallback); value != "" {
		return value
	}
	return defaultValue
}
