package runstore

import (
	"context"
	"time"

	"github.com/wonny/evidence/internal/contracts"
	"github.com/wonny/evidence/pkg/logger"
	"github.com/wonny/evidence/pkg/redis"
)

// latestTTL bounds how long a cached latest run is served
const latestTTL = 24 * time.Hour

// Cached fronts a backend with a Redis copy of each universe's latest run
// Redis 비활성 시 그대로 backend 로 위임
type Cached struct {
	Backend
	cache  *redis.Cache
	logger *logger.Logger
}

// NewCached wraps a backend
func NewCached(backend Backend, cache *redis.Cache, log *logger.Logger) *Cached {
	return &Cached{Backend: backend, cache: cache, logger: log.WithField("module", "runstore")}
}

// Save writes through to the backend, then refreshes the cached latest run
func (c *Cached) Save(ctx context.Context, result *contracts.ScoringResult) error {
	if err := c.Backend.Save(ctx, result); err != nil {
		return err
	}
	for _, universe := range []string{result.Metadata.Universe, ""} {
		if err := c.cache.Set(ctx, redis.LatestRunKey(universe), result, latestTTL); err != nil {
			c.logger.WithError(err).Warn("Failed to cache latest run")
		}
	}
	return nil
}

// Latest serves from Redis when present
func (c *Cached) Latest(ctx context.Context, universe string) (*contracts.ScoringResult, error) {
	var cached contracts.ScoringResult
	found, err := c.cache.Get(ctx, redis.LatestRunKey(universe), &cached)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to read cached latest run")
	}
	if found {
		return &cached, nil
	}
	return c.Backend.Latest(ctx, universe)
}
