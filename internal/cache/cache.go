/*
Copyright (C) 2026 Tactile Sound Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for the aggregate
// payloads every dashboard session requests on load.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tactilesound/ratingexplorer/internal/models"
	"github.com/tactilesound/ratingexplorer/internal/stats"
	"github.com/tactilesound/ratingexplorer/internal/telemetry"
)

// Default TTL values for different cache types.
const (
	DefaultSummaryTTL = 5 * time.Minute
	DefaultStatsTTL   = 10 * time.Minute
	DefaultRatingsTTL = time.Hour
)

// Key prefixes for Redis cache.
const (
	KeySummary       = "ratex:cache:summary"
	KeyCategoryStats = "ratex:cache:stats:categories"
	KeyClassStats    = "ratex:cache:stats:classes"
	KeyDesignStats   = "ratex:cache:stats:designs"
	KeyRatings       = "ratex:cache:ratings"
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TTL overrides
	SummaryTTL time.Duration
	StatsTTL   time.Duration
	RatingsTTL time.Duration

	// Fallback behavior
	DisableOnError bool // If true, disable caching on Redis errors
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		SummaryTTL:     DefaultSummaryTTL,
		StatsTTL:       DefaultStatsTTL,
		RatingsTTL:     DefaultRatingsTTL,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed caching with graceful fallback: when Redis is
// unreachable every lookup is a miss and the caller recomputes.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

// New creates a new cache instance.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		return &Cache{
			logger:   logger.With().Str("component", "cache").Logger(),
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	telemetry.CacheHitsTotal.WithLabelValues("error").Inc()
	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

// get retrieves a value from cache and unmarshals it.
func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		telemetry.CacheHitsTotal.WithLabelValues("miss").Inc()
		return false, nil
	}
	if err != nil {
		c.handleError(err, "get")
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false, nil
	}

	telemetry.CacheHitsTotal.WithLabelValues("hit").Inc()
	return true, nil
}

// set stores a value in cache with TTL.
func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}
	return nil
}

// delete removes a key from cache.
func (c *Cache) delete(ctx context.Context, key string) error {
	if !c.IsAvailable() {
		return nil
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}
	return nil
}

// deletePattern deletes all keys matching a pattern using SCAN.
func (c *Cache) deletePattern(ctx context.Context, pattern string) error {
	if !c.IsAvailable() {
		return nil
	}

	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return err
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete_batch")
				return err
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
	return nil
}

// Summary caching

// GetSummary retrieves the cached dataset summary.
func (c *Cache) GetSummary(ctx context.Context) (*models.Summary, bool) {
	var summary models.Summary
	found, err := c.get(ctx, KeySummary, &summary)
	if err != nil || !found {
		return nil, false
	}
	return &summary, true
}

// SetSummary caches the dataset summary.
func (c *Cache) SetSummary(ctx context.Context, summary models.Summary) error {
	return c.set(ctx, KeySummary, summary, c.config.SummaryTTL)
}

// Stats caching

// GetCategoryStats retrieves cached per-category statistics.
func (c *Cache) GetCategoryStats(ctx context.Context) ([]stats.CategoryStats, bool) {
	var out []stats.CategoryStats
	found, err := c.get(ctx, KeyCategoryStats, &out)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Int("count", len(out)).Msg("category stats cache hit")
	return out, true
}

// SetCategoryStats caches per-category statistics.
func (c *Cache) SetCategoryStats(ctx context.Context, out []stats.CategoryStats) error {
	return c.set(ctx, KeyCategoryStats, out, c.config.StatsTTL)
}

// GetClassStats retrieves cached per-class statistics.
func (c *Cache) GetClassStats(ctx context.Context) ([]stats.ClassStats, bool) {
	var out []stats.ClassStats
	found, err := c.get(ctx, KeyClassStats, &out)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Int("count", len(out)).Msg("class stats cache hit")
	return out, true
}

// SetClassStats caches per-class statistics.
func (c *Cache) SetClassStats(ctx context.Context, out []stats.ClassStats) error {
	return c.set(ctx, KeyClassStats, out, c.config.StatsTTL)
}

// GetDesignStats retrieves cached per-design statistics.
func (c *Cache) GetDesignStats(ctx context.Context) ([]stats.DesignStats, bool) {
	var out []stats.DesignStats
	found, err := c.get(ctx, KeyDesignStats, &out)
	if err != nil || !found {
		return nil, false
	}
	return out, true
}

// SetDesignStats caches per-design statistics.
func (c *Cache) SetDesignStats(ctx context.Context, out []stats.DesignStats) error {
	return c.set(ctx, KeyDesignStats, out, c.config.StatsTTL)
}

// Ratings payload caching

// GetRatingsPayload retrieves the cached raw ratings JSON served to the
// frontend on load.
func (c *Cache) GetRatingsPayload(ctx context.Context) ([]byte, bool) {
	if !c.IsAvailable() {
		return nil, false
	}
	data, err := c.client.Get(ctx, KeyRatings).Bytes()
	if err == redis.Nil {
		telemetry.CacheHitsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	if err != nil {
		c.handleError(err, "get")
		return nil, false
	}
	telemetry.CacheHitsTotal.WithLabelValues("hit").Inc()
	return data, true
}

// SetRatingsPayload caches the raw ratings JSON.
func (c *Cache) SetRatingsPayload(ctx context.Context, data []byte) error {
	if !c.IsAvailable() {
		return nil
	}
	if err := c.client.Set(ctx, KeyRatings, data, c.config.RatingsTTL).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}
	return nil
}

// InvalidateDataset removes every dataset-derived cache entry. Called after
// an import changes the rating table.
func (c *Cache) InvalidateDataset(ctx context.Context) error {
	c.logger.Debug().Msg("invalidating dataset caches")
	for _, key := range []string{KeySummary, KeyCategoryStats, KeyClassStats, KeyDesignStats, KeyRatings} {
		if err := c.delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// FlushAll removes all cached data (use sparingly).
func (c *Cache) FlushAll(ctx context.Context) error {
	c.logger.Warn().Msg("flushing all cache data")
	return c.deletePattern(ctx, "ratex:cache:*")
}
