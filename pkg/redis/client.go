package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wonny/evidence/pkg/config"
)

// DefaultKeyPrefix namespaces every key this service writes
const DefaultKeyPrefix = "evidence"

// Client wraps the Redis client with the service key namespace
// ⭐ SSOT: Redis 연결은 여기서만 관리
// 비활성 상태에서도 nil 이 아닌 Client 를 반환 (cache / limiter 는 no-op)
type Client struct {
	rdb     *redis.Client
	addr    string
	prefix  string
	enabled bool
}

// New connects when REDIS_ENABLED is set and verifies the connection with a ping
func New(cfg *config.Config) (*Client, error) {
	prefix := cfg.Redis.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if !cfg.Redis.Enabled {
		return &Client{prefix: prefix}, nil
	}

	timeout := cfg.Redis.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	addr := fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port)
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connection to %s failed: %w", addr, err)
	}

	return &Client{
		rdb:     rdb,
		addr:    addr,
		prefix:  prefix,
		enabled: true,
	}, nil
}

// Ping checks the connection; a disabled client is always healthy
func (c *Client) Ping(ctx context.Context) error {
	if !c.enabled {
		return nil
	}
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", c.addr, err)
	}
	return nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// Enabled returns whether Redis is enabled
func (c *Client) Enabled() bool {
	return c.enabled
}

// Addr returns host:port, empty when disabled
func (c *Client) Addr() string {
	return c.addr
}

// Prefix returns the key namespace shared by caches and limiters
func (c *Client) Prefix() string {
	return c.prefix
}

// Redis returns the underlying redis client for advanced usage
func (c *Client) Redis() *redis.Client {
	return c.rdb
}
