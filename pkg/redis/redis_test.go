package redis

import (
	"context"
	"testing"
	"time"

	"github.com/wonny/evidence/pkg/config"
)

func TestNewClient_Disabled(t *testing.T) {
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Enabled: false,
		},
	}

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if client.Enabled() {
		t.Error("Expected client to be disabled")
	}
	if client.Prefix() != DefaultKeyPrefix {
		t.Errorf("Expected prefix %q, got %q", DefaultKeyPrefix, client.Prefix())
	}
	if client.Addr() != "" {
		t.Errorf("Expected empty addr, got %q", client.Addr())
	}
	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Ping() on disabled client error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNewClient_KeyPrefix(t *testing.T) {
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Enabled:   false,
			KeyPrefix: "evidence-staging",
		},
	}

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if client.Prefix() != "evidence-staging" {
		t.Errorf("Expected prefix evidence-staging, got %q", client.Prefix())
	}
}

func TestNewClient_Unreachable(t *testing.T) {
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Host:        "127.0.0.1",
			Port:        "1",
			Enabled:     true,
			DialTimeout: 200 * time.Millisecond,
		},
	}

	if _, err := New(cfg); err == nil {
		t.Error("Expected connection error for unreachable redis")
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Enabled: false,
		},
	}

	client, _ := New(cfg)
	limiter := NewRateLimiter(client, "test")
	limit := ProviderRateLimit("yfinance", 250*time.Millisecond)

	// When Redis is disabled, all requests should be allowed
	allowed, remaining, err := limiter.Allow(context.Background(), limit)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Error("Expected request to be allowed when Redis disabled")
	}
	if remaining != limit.Limit {
		t.Errorf("Expected remaining = %d, got %d", limit.Limit, remaining)
	}

	if err := limiter.Wait(context.Background(), limit); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
}

func TestProviderRateLimit(t *testing.T) {
	tests := []struct {
		name       string
		delay      time.Duration
		wantLimit  int
		wantWindow time.Duration
	}{
		{"quarter second", 250 * time.Millisecond, 4, time.Second},
		{"no delay", 0, 1, time.Second},
		{"two seconds", 2 * time.Second, 1, 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProviderRateLimit("yfinance", tt.delay)
			if got.Key != "yfinance" {
				t.Errorf("Key = %q, want yfinance", got.Key)
			}
			if got.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", got.Limit, tt.wantLimit)
			}
			if got.Window != tt.wantWindow {
				t.Errorf("Window = %v, want %v", got.Window, tt.wantWindow)
			}
		})
	}
}

func TestCache_Disabled(t *testing.T) {
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Enabled: false,
		},
	}

	client, _ := New(cfg)
	cache := NewCache(client, "test")
	ctx := context.Background()

	// When Redis is disabled, cache operations should be no-ops
	if err := cache.Set(ctx, "key", "value", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var result string
	found, err := cache.Get(ctx, "key", &result)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Expected cache miss when Redis disabled")
	}

	if err := cache.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
}

func TestCacheKeys(t *testing.T) {
	tests := []struct {
		name     string
		fn       func() string
		expected string
	}{
		{
			name:     "FieldKey fundamentals",
			fn:       func() string { return FieldKey("yfinance", ClassFundamentals, "AAPL") },
			expected: "yfinance:fundamentals:AAPL",
		},
		{
			name:     "FieldKey profile",
			fn:       func() string { return FieldKey("finnhub", ClassProfile, "MSFT") },
			expected: "finnhub:profile:MSFT",
		},
		{
			name:     "LatestRunKey",
			fn:       func() string { return LatestRunKey("sp500") },
			expected: "run:latest:sp500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}
