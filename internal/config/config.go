/*
Copyright (C) 2026 Tactile Sound Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	BaseURL     string // Public base URL (e.g., http://ratings.example.com)
	MetricsBind string

	DBBackend DatabaseBackend
	DBDSN     string

	MediaRoot       string // Local root holding audio/ and vibration/ trees
	RatingsPath     string // Optional ratings.json to serve when the DB is empty
	TaxonomyPath    string // Optional YAML override for the category taxonomy
	JWTSigningKey   string
	MaxUploadSizeMB int // Optional global multipart upload limit override (MB)

	// Generation service (vibration rendering backend)
	GenerationURL     string
	GenerationTimeout time.Duration

	// Dashboard tuning
	RatingFloor     float64
	Debounce        time.Duration
	InitialBatch    int
	BackgroundBatch int
	BatchDelay      time.Duration
	SessionIdle     time.Duration

	// S3 Object Storage configuration
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Endpoint        string // For S3-compatible services (MinIO, Spaces, etc.)
	S3PublicBaseURL   string // Optional CDN/CloudFront URL
	S3UsePathStyle    bool   // Required for MinIO

	// Redis cache configuration
	CacheEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("RATEX_ENV", "development"),
		HTTPBind:    getEnv("RATEX_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("RATEX_HTTP_PORT", 8080),
		BaseURL:     getEnv("RATEX_BASE_URL", ""),
		MetricsBind: getEnv("RATEX_METRICS_BIND", "127.0.0.1:9000"),

		DBBackend: DatabaseBackend(getEnv("RATEX_DB_BACKEND", string(DatabaseSQLite))),
		DBDSN:     getEnv("RATEX_DB_DSN", "ratings.db"),

		MediaRoot:       getEnv("RATEX_MEDIA_ROOT", "./media"),
		RatingsPath:     getEnv("RATEX_RATINGS_PATH", ""),
		TaxonomyPath:    getEnv("RATEX_TAXONOMY_PATH", ""),
		JWTSigningKey:   getEnv("RATEX_JWT_SIGNING_KEY", ""),
		MaxUploadSizeMB: getEnvInt("RATEX_MAX_UPLOAD_SIZE_MB", 0),

		GenerationURL:     getEnv("RATEX_GENERATION_URL", "http://localhost:5000"),
		GenerationTimeout: time.Duration(getEnvInt("RATEX_GENERATION_TIMEOUT_SECONDS", 120)) * time.Second,

		RatingFloor:     getEnvFloat("RATEX_RATING_FLOOR", 35),
		Debounce:        time.Duration(getEnvInt("RATEX_DEBOUNCE_MS", 300)) * time.Millisecond,
		InitialBatch:    getEnvInt("RATEX_INITIAL_BATCH", 12),
		BackgroundBatch: getEnvInt("RATEX_BACKGROUND_BATCH", 48),
		BatchDelay:      time.Duration(getEnvInt("RATEX_BATCH_DELAY_MS", 2000)) * time.Millisecond,
		SessionIdle:     time.Duration(getEnvInt("RATEX_SESSION_IDLE_MINUTES", 30)) * time.Minute,

		// S3 Object Storage configuration
		S3AccessKeyID:     getEnvAny([]string{"RATEX_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"RATEX_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3Region:          getEnvAny([]string{"RATEX_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Bucket:          getEnvAny([]string{"RATEX_S3_BUCKET", "S3_BUCKET"}, ""),
		S3Endpoint:        getEnvAny([]string{"RATEX_S3_ENDPOINT", "S3_ENDPOINT"}, ""),
		S3PublicBaseURL:   getEnvAny([]string{"RATEX_S3_PUBLIC_BASE_URL", "S3_PUBLIC_BASE_URL"}, ""),
		S3UsePathStyle:    getEnvBool("RATEX_S3_USE_PATH_STYLE", false),

		// Redis cache configuration
		CacheEnabled:  getEnvBool("RATEX_CACHE_ENABLED", false),
		RedisAddr:     getEnv("RATEX_REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("RATEX_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("RATEX_REDIS_DB", 0),

		// Tracing configuration
		TracingEnabled:    getEnvBool("RATEX_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("RATEX_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("RATEX_TRACING_SAMPLE_RATE", 1.0),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("RATEX_DB_DSN must be provided")
	}

	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("RATEX_JWT_SIGNING_KEY must be provided")
	}

	if cfg.RatingFloor < 0 || cfg.RatingFloor > 100 {
		return nil, fmt.Errorf("RATEX_RATING_FLOOR must be within [0, 100], got %g", cfg.RatingFloor)
	}

	if strings.EqualFold(cfg.Environment, "production") {
		if strings.EqualFold(cfg.JWTSigningKey, "hackme") || strings.EqualFold(cfg.JWTSigningKey, "changeme") {
			return nil, fmt.Errorf("RATEX_JWT_SIGNING_KEY must be set to a non-default value in production")
		}
		if cfg.S3Bucket != "" && (cfg.S3AccessKeyID == "" || cfg.S3SecretAccessKey == "") {
			return nil, fmt.Errorf("RATEX_S3_ACCESS_KEY_ID and RATEX_S3_SECRET_ACCESS_KEY are required when S3 is enabled in production")
		}
	}
	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"ENVIRONMENT":     "use RATEX_ENV",
		"JWT_SIGNING_KEY": "use RATEX_JWT_SIGNING_KEY",
		"TRACING_ENABLED": "use RATEX_TRACING_ENABLED",
		"OTLP_ENDPOINT":   "use RATEX_OTLP_ENDPOINT",
		"GENERATION_URL":  "use RATEX_GENERATION_URL",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// MaxUploadSizeBytes returns the configured upload limit in bytes.
// A value of 0 means "not configured" and callers should use endpoint defaults.
func (c *Config) MaxUploadSizeBytes() int64 {
	if c == nil || c.MaxUploadSizeMB <= 0 {
		return 0
	}
	return int64(c.MaxUploadSizeMB) * 1024 * 1024
}

// S3Enabled reports whether object storage is configured.
func (c *Config) S3Enabled() bool {
	return c != nil && c.S3Bucket != ""
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "true" || v == "1" || v == "yes" {
			return true
		}
		if v == "false" || v == "0" || v == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}
