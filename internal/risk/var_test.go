package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateVaR(t *testing.T) {
	returns := make([]float64, 100)
	for i := range returns {
		returns[i] = float64(i-50) / 100 // -0.50 .. 0.49
	}

	res := CalculateVaR(returns, 0.95)
	assert.Equal(t, 0.95, res.Confidence)
	assert.InDelta(t, 0.45, res.VaR, 1e-9)
	assert.Greater(t, res.CVaR, res.VaR)

	gains := []float64{0.01, 0.02, 0.03}
	assert.Zero(t, CalculateVaR(gains, 0.95).VaR)
	assert.Zero(t, CalculateVaR(nil, 0.95).VaR)
}

func TestStats(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	assert.Equal(t, 5.0, Mean(values))
	assert.InDelta(t, math.Sqrt(32.0/7), StdDev(values), 1e-12)
	assert.Zero(t, StdDev([]float64{1}))

	sorted := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 1.0, Percentile(sorted, 0))
	assert.Equal(t, 3.0, Percentile(sorted, 50))
	assert.Equal(t, 5.0, Percentile(sorted, 100))
	assert.InDelta(t, 1.4, Percentile(sorted, 10), 1e-12)

	assert.Equal(t, 0.4, FractionAbove(sorted, 3))
}

func TestVolatility(t *testing.T) {
	closes := []float64{100, 101, 100, 101, 100}
	rets := LogReturns(closes)
	assert.Len(t, rets, 4)
	assert.InDelta(t, math.Log(1.01), rets[0], 1e-12)

	vol := AnnualizedVolatility(rets)
	assert.InDelta(t, StdDev(rets)*math.Sqrt(252), vol, 1e-12)

	assert.Nil(t, LogReturns([]float64{100}))
	assert.Len(t, LogReturns([]float64{100, 0, 100}), 0)
}
