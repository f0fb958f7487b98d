// Package cache provides a Redis-backed read-path cache for the
// dashboard stats. It degrades gracefully: when Redis is unreachable
// every lookup is a miss and callers fall back to the database.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"license-server/internal/database"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const statsKey = "licenses:stats"

// Config holds cache settings
type Config struct {
	Address  string
	Password string
	DB       int
	PoolSize int
	StatsTTL time.Duration
}

// StatsCache caches the aggregate license counters with a short TTL
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewStatsCache connects to Redis. A failed initial ping is not fatal;
// the cache simply starts degraded.
func NewStatsCache(cfg Config, logger zerolog.Logger) *StatsCache {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ttl := cfg.StatsTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis unreachable, stats cache degraded")
	}

	return &StatsCache{client: client, ttl: ttl, logger: logger}
}

// GetStats returns the cached counters, with ok=false on miss or error
func (c *StatsCache) GetStats(ctx context.Context) (*database.LicenseStats, bool) {
	data, err := c.client.Get(ctx, statsKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug().Err(err).Msg("stats cache read failed")
		}
		return nil, false
	}

	var stats database.LicenseStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, false
	}
	return &stats, true
}

// SetStats stores the counters. Errors are logged, never surfaced.
func (c *StatsCache) SetStats(ctx context.Context, stats *database.LicenseStats) {
	data, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, statsKey, data, c.ttl).Err(); err != nil {
		c.logger.Debug().Err(err).Msg("stats cache write failed")
	}
}

// Invalidate drops the cached counters after a mutating admin action
func (c *StatsCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, statsKey).Err(); err != nil {
		c.logger.Debug().Err(err).Msg("stats cache invalidation failed")
	}
}

// Close releases the Redis connection
func (c *StatsCache) Close() error {
	return c.client.Close()
}
