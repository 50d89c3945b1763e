package fetch

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/evidence/pkg/redis"
)

// Throttler spaces outbound provider calls
// ⭐ SSOT: 모든 외부 호출은 Wait() 이후에만 (캐시 히트는 대상 아님)
type Throttler struct {
	limiter     *rate.Limiter
	distributed *redis.RateLimiter
	distCfg     redis.RateLimitConfig
}

// NewThrottler creates a throttler allowing one call per minDelay
// minDelay <= 0 → 제한 없음
func NewThrottler(minDelay time.Duration) *Throttler {
	limit := rate.Inf
	if minDelay > 0 {
		limit = rate.Every(minDelay)
	}
	return &Throttler{limiter: rate.NewLimiter(limit, 1)}
}

// WithDistributed adds a Redis sliding-window limiter shared across processes
func (t *Throttler) WithDistributed(limiter *redis.RateLimiter, cfg redis.RateLimitConfig) *Throttler {
	t.distributed = limiter
	t.distCfg = cfg
	return t
}

// Wait blocks until the next call is allowed
func (t *Throttler) Wait(ctx context.Context) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	if t.distributed != nil {
		return t.distributed.Wait(ctx, t.distCfg)
	}
	return nil
}
