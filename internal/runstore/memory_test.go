package runstore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/evidence/internal/contracts"
	"github.com/wonny/evidence/pkg/config"
	"github.com/wonny/evidence/pkg/logger"
	"github.com/wonny/evidence/pkg/redis"
)

func resultAt(id, universe string, completed time.Time) *contracts.ScoringResult {
	r := sampleResult(universe)
	r.RunID = id
	r.Metadata.CompletedAt = completed
	return r
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 22, 30, 0, 0, time.UTC)
	m := NewMemoryStore(0)

	_, err := m.Latest(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Save(ctx, resultAt("r1", "us", base)))
	require.NoError(t, m.Save(ctx, resultAt("r2", "eu", base.Add(time.Hour))))
	require.NoError(t, m.Save(ctx, resultAt("r3", "us", base.Add(2*time.Hour))))

	latest, err := m.Latest(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "r3", latest.RunID)

	latest, err = m.Latest(ctx, "eu")
	require.NoError(t, err)
	assert.Equal(t, "r2", latest.RunID)

	got, err := m.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "us", got.Metadata.Universe)

	_, err = m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	history, err := m.History(ctx, "us", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "r3", history[0].RunID)
	assert.Equal(t, contracts.ModeRiskOn, history[0].ModeLabel)
	assert.Equal(t, 2, history[0].ScoredCount)

	history, err = m.History(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestMemoryStoreEvictsOldest(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	m := NewMemoryStore(3)

	for i := 0; i < 5; i++ {
		require.NoError(t, m.Save(ctx, resultAt(fmt.Sprintf("r%d", i), "us", base.Add(time.Duration(i)*time.Hour))))
	}

	history, err := m.History(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "r4", history[0].RunID)
	assert.Equal(t, "r2", history[2].RunID)

	_, err = m.Get(ctx, "r0")
	assert.ErrorIs(t, err, ErrNotFound)
}

func newRedisCache(t *testing.T, enabled bool) *redis.Cache {
	t.Helper()
	cfg := &config.Config{Redis: config.RedisConfig{Enabled: false}}
	if enabled {
		if testing.Short() || os.Getenv("REDIS_HOST") == "" {
			t.Skip("REDIS_HOST not set, skipping integration test")
		}
		loaded, err := config.Load()
		require.NoError(t, err)
		cfg = loaded
		cfg.Redis.Enabled = true
	}
	client, err := redis.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return redis.NewCache(client, fmt.Sprintf("runstore-test-%d", time.Now().UnixNano()))
}

func TestCachedDelegatesWhenRedisDisabled(t *testing.T) {
	ctx := context.Background()
	c := NewCached(NewMemoryStore(0), newRedisCache(t, false), logger.NewNop())

	_, err := c.Latest(ctx, "us")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Save(ctx, resultAt("r1", "us", time.Now())))
	latest, err := c.Latest(ctx, "us")
	require.NoError(t, err)
	assert.Equal(t, "r1", latest.RunID)

	history, err := c.History(ctx, "", 5)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestCachedServesFromRedis(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryStore(0)
	c := NewCached(backend, newRedisCache(t, true), logger.NewNop())

	require.NoError(t, c.Save(ctx, resultAt("r1", "us", time.Now().UTC())))

	// backend 에서 지워도 Redis 사본이 응답
	backend.runs = map[string]*contracts.ScoringResult{}
	latest, err := c.Latest(ctx, "us")
	require.NoError(t, err)
	assert.Equal(t, "r1", latest.RunID)
	assert.Len(t, latest.Scores, 2)
}
