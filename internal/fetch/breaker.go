package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wonny/evidence/pkg/logger"
)

// BreakerConfig controls when the primary provider is bypassed
// open 판정은 구간 실패율 기준 (연속 실패 횟수 아님)
type BreakerConfig struct {
	MinRequests  uint32        // 판정에 필요한 최소 요청 수
	FailureRatio float64       // 실패율 이 값 이상 → open
	Window       time.Duration // closed 상태 카운트 초기화 주기
	Timeout      time.Duration // open 유지 시간 (이후 half-open)
}

// DefaultBreakerConfig returns default breaker settings
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MinRequests:  100,
		FailureRatio: 0.8,
		Window:       time.Minute,
		Timeout:      60 * time.Second,
	}
}

// tripped reports whether the window's counts look like a provider-wide outage
func (c BreakerConfig) tripped(counts gobreaker.Counts) bool {
	if counts.Requests < c.MinRequests || counts.Requests == 0 {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureRatio
}

// Breaker wraps a provider-level circuit breaker
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker creates a breaker for one provider
func NewBreaker(name string, cfg BreakerConfig, log *logger.Logger) *Breaker {
	def := DefaultBreakerConfig()
	if cfg.MinRequests == 0 {
		cfg.MinRequests = def.MinRequests
	}
	if cfg.FailureRatio <= 0 || cfg.FailureRatio > 1 {
		cfg.FailureRatio = def.FailureRatio
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    cfg.Window,
		Timeout:     cfg.Timeout,
		ReadyToTrip: cfg.tripped,
		// 호출자 취소, 빈 응답은 provider 장애로 보지 않음
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrEmptyResponse)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(map[string]interface{}{
				"provider": name,
				"from":     from.String(),
				"to":       to.String(),
			}).Warn("Provider circuit breaker state changed")
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn through the breaker
// open 상태면 fn 을 호출하지 않고 gobreaker.ErrOpenState 반환
func (b *Breaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return b.cb.Execute(fn)
}

// IsOpen reports whether calls are currently rejected
func (b *Breaker) IsOpen() bool {
	return b.cb.State() == gobreaker.StateOpen
}

// State returns the breaker state name
func (b *Breaker) State() string {
	return b.cb.State().String()
}
