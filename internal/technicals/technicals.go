package technicals

import (
	"sort"

	"github.com/wonny/evidence/internal/contracts"
	"github.com/wonny/evidence/internal/risk"
)

// Lookbacks in trading days
const (
	Days13W = 63
	Days26W = 126
	Days52W = 252

	// MinVolatilitySamples 변동성 계산 최소 일별 수익률 수
	MinVolatilitySamples = 20
)

// FromCandles derives technical metrics from daily candles
// ⭐ SSOT: 캔들 → technical 지표 변환은 여기서만
// 데이터가 부족한 지표는 nil 로 남김 (추정 금지)
func FromCandles(candles []contracts.Candle) *contracts.TechnicalMetrics {
	if len(candles) == 0 {
		return nil
	}

	sorted := append([]contracts.Candle(nil), candles...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	closes := make([]float64, 0, len(sorted))
	kept := make([]contracts.Candle, 0, len(sorted))
	for _, c := range sorted {
		if c.Close > 0 {
			closes = append(closes, c.Close)
			kept = append(kept, c)
		}
	}
	if len(closes) == 0 {
		return nil
	}

	last := closes[len(closes)-1]
	tm := &contracts.TechnicalMetrics{
		Price: contracts.Float(last),
		AsOf:  kept[len(kept)-1].Date,
	}

	tm.Return13W = trailingReturn(closes, Days13W)
	tm.Return26W = trailingReturn(closes, Days26W)
	tm.Return52W = trailingReturn(closes, Days52W)

	// 52주 고가/저가
	window := kept
	if len(window) > Days52W {
		window = window[len(window)-Days52W:]
	}
	hi, lo := window[0].High, window[0].Low
	for _, c := range window {
		h, l := c.High, c.Low
		if h <= 0 {
			h = c.Close
		}
		if l <= 0 {
			l = c.Close
		}
		if h > hi || hi <= 0 {
			hi = h
		}
		if l < lo || lo <= 0 {
			lo = l
		}
	}
	if hi > 0 && lo > 0 {
		tm.High52W = contracts.Float(hi)
		tm.Low52W = contracts.Float(lo)
	}

	// 3개월 연율화 변동성
	volWindow := closes
	if len(volWindow) > Days13W+1 {
		volWindow = volWindow[len(volWindow)-(Days13W+1):]
	}
	if rets := risk.LogReturns(volWindow); len(rets) >= MinVolatilitySamples {
		tm.Volatility3M = contracts.Float(risk.AnnualizedVolatility(rets))
	}

	return tm
}

// trailingReturn returns close[t]/close[t-days]-1 when enough history exists
func trailingReturn(closes []float64, days int) *float64 {
	if len(closes) <= days {
		return nil
	}
	last := closes[len(closes)-1]
	base := closes[len(closes)-1-days]
	if base <= 0 {
		return nil
	}
	return contracts.Float(last/base - 1)
}

// Merge fills nil fields of primary from secondary without overwriting
func Merge(primary, secondary *contracts.TechnicalMetrics) *contracts.TechnicalMetrics {
	if primary == nil {
		return secondary.Clone()
	}
	out := primary.Clone()
	if secondary == nil {
		return out
	}
	fill := func(dst **float64, src *float64) {
		if *dst == nil && src != nil {
			v := *src
			*dst = &v
		}
	}
	fill(&out.Price, secondary.Price)
	fill(&out.Return13W, secondary.Return13W)
	fill(&out.Return26W, secondary.Return26W)
	fill(&out.Return52W, secondary.Return52W)
	fill(&out.High52W, secondary.High52W)
	fill(&out.Low52W, secondary.Low52W)
	fill(&out.Volatility3M, secondary.Volatility3M)
	fill(&out.Beta, secondary.Beta)
	if out.AsOf.IsZero() {
		out.AsOf = secondary.AsOf
	}
	return out
}

// Breadth returns the fraction of metrics with a positive 13-week return
// 13주 수익률이 없는 종목은 분모에서 제외
func Breadth(metrics []*contracts.TechnicalMetrics) float64 {
	total, positive := 0, 0
	for _, m := range metrics {
		if m == nil || m.Return13W == nil {
			continue
		}
		total++
		if *m.Return13W > 0 {
			positive++
		}
	}
	if total == 0 {
		return 0.5
	}
	return float64(positive) / float64(total)
}
