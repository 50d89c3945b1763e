package technicals

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/evidence/internal/contracts"
)

// series builds n daily candles where close = fn(i)
func series(n int, fn func(i int) float64) []contracts.Candle {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]contracts.Candle, n)
	for i := 0; i < n; i++ {
		c := fn(i)
		out[i] = contracts.Candle{
			Date:  start.AddDate(0, 0, i),
			Open:  c,
			High:  c * 1.01,
			Low:   c * 0.99,
			Close: c,
		}
	}
	return out
}

func TestFromCandlesReturns(t *testing.T) {
	candles := series(300, func(i int) float64 { return 100 + float64(i) })
	tm := FromCandles(candles)
	require.NotNil(t, tm)

	assert.Equal(t, 399.0, *tm.Price)
	assert.InDelta(t, 399.0/336-1, *tm.Return13W, 1e-12)
	assert.InDelta(t, 399.0/273-1, *tm.Return26W, 1e-12)
	assert.InDelta(t, 399.0/147-1, *tm.Return52W, 1e-12)
	assert.Equal(t, candles[299].Date, tm.AsOf)

	// 최근 252 봉 기준 고가/저가
	assert.InDelta(t, 399*1.01, *tm.High52W, 1e-9)
	assert.InDelta(t, 148*0.99, *tm.Low52W, 1e-9)
	require.NotNil(t, tm.Volatility3M)
	assert.Greater(t, *tm.Volatility3M, 0.0)
}

func TestFromCandlesShortHistory(t *testing.T) {
	candles := series(30, func(i int) float64 { return 50 })
	tm := FromCandles(candles)
	require.NotNil(t, tm)

	assert.Nil(t, tm.Return13W)
	assert.Nil(t, tm.Return26W)
	assert.Nil(t, tm.Return52W)
	require.NotNil(t, tm.Volatility3M)
	assert.Zero(t, *tm.Volatility3M)

	tiny := FromCandles(series(5, func(i int) float64 { return 50 }))
	assert.Nil(t, tiny.Volatility3M)

	assert.Nil(t, FromCandles(nil))
}

func TestFromCandlesUnsortedInput(t *testing.T) {
	candles := series(80, func(i int) float64 { return 10 + float64(i%3) })
	reversed := make([]contracts.Candle, len(candles))
	for i := range candles {
		reversed[len(candles)-1-i] = candles[i]
	}

	assert.Equal(t, FromCandles(candles), FromCandles(reversed))
}

func TestFromCandlesVolatility(t *testing.T) {
	// 일별 ±1% 교대 → 연율화 약 16%
	candles := series(100, func(i int) float64 {
		if i%2 == 0 {
			return 100
		}
		return 101
	})
	tm := FromCandles(candles)
	require.NotNil(t, tm.Volatility3M)
	assert.InDelta(t, math.Log(1.01)*math.Sqrt(252), *tm.Volatility3M, 0.01)
}

func TestMerge(t *testing.T) {
	primary := &contracts.TechnicalMetrics{Price: contracts.Float(10)}
	secondary := &contracts.TechnicalMetrics{
		Price:        contracts.Float(11),
		Volatility3M: contracts.Float(0.2),
	}

	merged := Merge(primary, secondary)
	assert.Equal(t, 10.0, *merged.Price)
	assert.Equal(t, 0.2, *merged.Volatility3M)
	assert.Nil(t, primary.Volatility3M, "inputs must not be modified")

	assert.Equal(t, secondary, Merge(nil, secondary))
	assert.Nil(t, Merge(nil, nil))
}

func TestBreadth(t *testing.T) {
	f := contracts.Float
	metrics := []*contracts.TechnicalMetrics{
		{Return13W: f(0.1)},
		{Return13W: f(-0.1)},
		{Return13W: f(0.2)},
		{Return13W: f(0.05)},
		{},
		nil,
	}
	assert.Equal(t, 0.75, Breadth(metrics))
	assert.Equal(t, 0.5, Breadth(nil))
}
