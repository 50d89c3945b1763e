package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/evidence/pkg/config"
	"github.com/wonny/evidence/pkg/redis"
)

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	data, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), data)

	now = now.Add(time.Minute)
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok, "entry expires exactly at ttl")

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 1, c.Purge())
	assert.Equal(t, 0, c.Len())
}

func TestTieredCache(t *testing.T) {
	front, back := NewMemoryCache(), NewMemoryCache()
	c := NewTieredCache(front, back, time.Minute)
	ctx := context.Background()

	require.NoError(t, back.Set(ctx, "k", []byte("shared"), time.Hour))

	data, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("shared"), data)

	// back 히트가 front 를 채움
	_, ok, _ = front.Get(ctx, "k")
	assert.True(t, ok)

	require.NoError(t, c.Set(ctx, "k2", []byte("x"), time.Hour))
	_, ok, _ = back.Get(ctx, "k2")
	assert.True(t, ok)
}

func TestRedisCacheDisabledAlwaysMisses(t *testing.T) {
	client, err := redis.New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	require.NoError(t, err)

	c := NewRedisCache(redis.NewCache(client, "test"))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte(`{"a":1}`), time.Minute))
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCacheIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}

	cfg, err := config.Load()
	if err != nil || !cfg.Redis.Enabled {
		t.Skip("Redis not configured")
	}
	client, err := redis.New(cfg)
	if err != nil {
		t.Skipf("Redis unavailable: %v", err)
	}
	defer client.Close()

	c := NewRedisCache(redis.NewCache(client, "evidence-test"))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "roundtrip", []byte(`{"provider":"p"}`), time.Minute))
	data, ok, err := c.Get(ctx, "roundtrip")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"provider":"p"}`, string(data))
}
