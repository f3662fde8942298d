package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// QuickStats holds the small aggregate figures shown above a list.
type QuickStats map[string]float64

// StatsCache stores quick stats per list kind and visibility scope.
type StatsCache interface {
	Get(ctx context.Context, kind ListKind, scope string) (QuickStats, bool)
	Set(ctx context.Context, kind ListKind, scope string, stats QuickStats)
	Invalidate(ctx context.Context, kinds ...ListKind)
}

type redisStatsCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewStatsCache returns a redis backed cache, or a no-op cache when client is nil.
func NewStatsCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) StatsCache {
	if client == nil {
		return noopStatsCache{}
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &redisStatsCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "stats_cache").Logger(),
	}
}

func statsKey(kind ListKind, scope string) string {
	return fmt.Sprintf("stats:%s:%s", kind, scope)
}

func (c *redisStatsCache) Get(ctx context.Context, kind ListKind, scope string) (QuickStats, bool) {
	cached, err := c.client.Get(ctx, statsKey(kind, scope)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Str("kind", string(kind)).Msg("failed to read stats cache")
		}
		return nil, false
	}

	var stats QuickStats
	if err := json.Unmarshal([]byte(cached), &stats); err != nil {
		c.logger.Warn().Err(err).Str("kind", string(kind)).Msg("discarding malformed stats cache entry")
		return nil, false
	}
	return stats, true
}

func (c *redisStatsCache) Set(ctx context.Context, kind ListKind, scope string, stats QuickStats) {
	payload, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, statsKey(kind, scope), payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("kind", string(kind)).Msg("failed to store stats cache")
	}
}

func (c *redisStatsCache) Invalidate(ctx context.Context, kinds ...ListKind) {
	for _, kind := range kinds {
		iter := c.client.Scan(ctx, 0, statsKey(kind, "*"), 100).Iterator()
		keys := make([]string, 0)
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			c.logger.Warn().Err(err).Str("kind", string(kind)).Msg("failed to scan stats cache")
			continue
		}
		if len(keys) == 0 {
			continue
		}
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			c.logger.Warn().Err(err).Str("kind", string(kind)).Msg("failed to invalidate stats cache")
		}
	}
}

type noopStatsCache struct{}

func (noopStatsCache) Get(context.Context, ListKind, string) (QuickStats, bool) { return nil, false }
func (noopStatsCache) Set(context.Context, ListKind, string, QuickStats)        {}
func (noopStatsCache) Invalidate(context.Context, ...ListKind)                  {}
