package regime

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/wonny/evidence/internal/contracts"
	"github.com/wonny/evidence/internal/risk"
)

// ErrInsufficientHistory is returned when the benchmark has too few candles
var ErrInsufficientHistory = errors.New("insufficient benchmark history")

// Config holds classifier thresholds
type Config struct {
	MinCandles   int     // 최소 캔들 수 (기본 50)
	ShortWindow  int     // 단기 이동평균 (기본 50)
	LongWindow   int     // 장기 이동평균 (기본 200, 데이터 부족 시 생략)
	ReturnWindow int     // 추세 수익률 구간 (기본 63 = 13주)
	VolThreshold float64 // 연환산 변동성 상한 (기본 0.25)
	TrendWeight  float64 // 추세 비중 (기본 0.6), 나머지는 breadth
	RiskOnScore  float64 // 이상이면 risk_on (기본 60)
	RiskOffScore float64 // 이하이면 risk_off (기본 40)
}

// DefaultConfig returns default thresholds
func DefaultConfig() Config {
	return Config{
		MinCandles:   50,
		ShortWindow:  50,
		LongWindow:   200,
		ReturnWindow: 63,
		VolThreshold: 0.25,
		TrendWeight:  0.6,
		RiskOnScore:  60,
		RiskOffScore: 40,
	}
}

// Classifier is the reference RegimeClassifier
// ⭐ SSOT: 벤치마크 추세 + 시장 breadth 투표 방식
type Classifier struct {
	config Config
}

// NewClassifier creates a classifier
func NewClassifier(config Config) *Classifier {
	return &Classifier{config: config}
}

// Classify labels the market from benchmark candles and breadth (0..1)
func (c *Classifier) Classify(ctx context.Context, benchmark []contracts.Candle, breadth float64) (contracts.MarketMode, error) {
	if err := ctx.Err(); err != nil {
		return contracts.MarketMode{}, err
	}
	if len(benchmark) < c.config.MinCandles {
		return contracts.MarketMode{}, fmt.Errorf("%w: %d candles (need %d)", ErrInsufficientHistory, len(benchmark), c.config.MinCandles)
	}
	if math.IsNaN(breadth) {
		breadth = 0.5
	}
	breadth = math.Max(0, math.Min(1, breadth))

	closes := sortedCloses(benchmark)
	if len(closes) < c.config.MinCandles {
		return contracts.MarketMode{}, fmt.Errorf("%w: %d valid closes", ErrInsufficientHistory, len(closes))
	}

	trend := c.trendScore(closes)
	score := c.config.TrendWeight*trend + (1-c.config.TrendWeight)*breadth*100
	score = math.Round(score*100) / 100

	label := contracts.ModeNeutral
	switch {
	case score >= c.config.RiskOnScore:
		label = contracts.ModeRiskOn
	case score <= c.config.RiskOffScore:
		label = contracts.ModeRiskOff
	}

	return contracts.MarketMode{
		Label:   label,
		Score:   score,
		Breadth: breadth,
	}, nil
}

// trendScore votes on price vs MA, MA cross, trailing return and volatility (0..100)
func (c *Classifier) trendScore(closes []float64) float64 {
	last := closes[len(closes)-1]
	votes, total := 0.0, 0.0

	short := risk.Mean(tail(closes, c.config.ShortWindow))
	total++
	if last > short {
		votes++
	}

	if c.config.LongWindow > 0 && len(closes) >= c.config.LongWindow {
		long := risk.Mean(tail(closes, c.config.LongWindow))
		total++
		if short > long {
			votes++
		}
	}

	if len(closes) > c.config.ReturnWindow {
		base := closes[len(closes)-1-c.config.ReturnWindow]
		total++
		if base > 0 && last > base {
			votes++
		}
	}

	vol := risk.AnnualizedVolatility(risk.LogReturns(tail(closes, c.config.ReturnWindow+1)))
	total++
	if vol < c.config.VolThreshold {
		votes++
	}

	return votes / total * 100
}

func sortedCloses(candles []contracts.Candle) []float64 {
	sorted := append([]contracts.Candle(nil), candles...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	closes := make([]float64, 0, len(sorted))
	for _, c := range sorted {
		if c.Close > 0 {
			closes = append(closes, c.Close)
		}
	}
	return closes
}

func tail(values []float64, n int) []float64 {
	if n <= 0 || n >= len(values) {
		return values
	}
	return values[len(values)-n:]
}

var _ contracts.RegimeClassifier = (*Classifier)(nil)
