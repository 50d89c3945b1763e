package pricetarget

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/evidence/internal/contracts"
	"github.com/wonny/evidence/internal/resolver"
	"github.com/wonny/evidence/internal/scoringconfig"
)

var f = contracts.Float

func techMedians() *resolver.GroupMedians {
	return &resolver.GroupMedians{
		Sector: map[string]map[contracts.FundamentalField]resolver.GroupStat{
			"Technology": {
				contracts.FieldPE: {Median: 20, N: 10},
				contracts.FieldPB: {Median: 4, N: 10},
				contracts.FieldPS: {Median: 5, N: 10},
			},
		},
		Global:    map[contracts.FundamentalField]resolver.GroupStat{},
		MinSample: 5,
	}
}

func metrics(fund *contracts.Fundamentals, dq float64) *resolver.Metrics {
	return &resolver.Metrics{
		Symbol:       "AAPL",
		Sector:       "Technology",
		Fundamentals: fund,
		Technical:    &contracts.TechnicalMetrics{Price: f(100), Volatility3M: f(0.25)},
		DataQuality:  contracts.DataQuality{Score: dq},
		Imputed:      map[contracts.FundamentalField]string{},
	}
}

func flat(v float64) contracts.EvidencePillars {
	return contracts.EvidencePillars{Valuation: v, Quality: v, Technical: v, Risk: v}
}

func newEngine() *Engine {
	return NewEngine(scoringconfig.Default())
}

func TestComputeWeightedFairValue(t *testing.T) {
	m := metrics(&contracts.Fundamentals{PE: f(25), PB: f(4), PS: f(4)}, 90)

	pt, err := newEngine().Compute(m, flat(70), techMedians(), Options{})
	require.NoError(t, err)

	// PE 80(0.5) + PB 100(0.25) + PS 125(0.25)
	assert.Equal(t, 96.25, pt.FairValue)
	assert.Equal(t, 96.25, pt.TargetPrice)
	assert.Equal(t, -3.75, pt.UpsidePct)
	assert.Equal(t, -0.0375, pt.ExpectedReturn)
	assert.Equal(t, contracts.ConfidenceHigh, pt.Confidence)
	assert.Equal(t, 6, pt.HoldingPeriodMonths)
	assert.False(t, pt.RequiresDeepAnalysis)
	assert.Empty(t, pt.Diagnostics.BoundedBy)
	assert.Nil(t, pt.Diagnostics.MonteCarlo)

	require.Len(t, pt.Diagnostics.Components, 3)
	pe := pt.Diagnostics.Components[0]
	assert.Equal(t, contracts.FieldPE, pe.Multiple)
	assert.True(t, pe.Included)
	assert.Equal(t, 80.0, *pe.ImpliedPrice)
	assert.Equal(t, resolver.SourceSector, pe.MedianSource)
}

func TestComputeClampAndBound(t *testing.T) {
	m := metrics(&contracts.Fundamentals{PE: f(2)}, 90)

	pt, err := newEngine().Compute(m, flat(70), techMedians(), Options{})
	require.NoError(t, err)

	pe := pt.Diagnostics.Components[0]
	assert.True(t, pe.Clamped)
	assert.Equal(t, ReasonRatioClamped, pe.Reason)
	assert.Equal(t, 400.0, *pe.ImpliedPrice)

	assert.Equal(t, 400.0, pt.Diagnostics.RawFairValue)
	assert.Equal(t, 200.0, pt.TargetPrice)
	assert.Equal(t, BoundMax, pt.Diagnostics.BoundedBy)

	// component 1개 → high 불가
	assert.Equal(t, contracts.ConfidenceMedium, pt.Confidence)
	assert.Equal(t, 9, pt.HoldingPeriodMonths)

	// 하한 bound
	cheap := metrics(&contracts.Fundamentals{PE: f(80)}, 90)
	pt, err = newEngine().Compute(cheap, flat(70), techMedians(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 50.0, pt.TargetPrice)
	assert.Equal(t, BoundMin, pt.Diagnostics.BoundedBy)
}

func TestComputeExclusionReasons(t *testing.T) {
	medians := techMedians()
	delete(medians.Sector["Technology"], contracts.FieldPS)

	m := metrics(&contracts.Fundamentals{PE: f(20), PB: f(-1), PS: f(3)}, 90)
	m.Fundamentals.PE = f(20)
	m.Imputed[contracts.FieldPE] = resolver.SourceSector

	pt, err := newEngine().Compute(m, flat(70), medians, Options{})
	require.NoError(t, err)

	reasons := map[contracts.FundamentalField]string{}
	for _, c := range pt.Diagnostics.Components {
		assert.False(t, c.Included)
		reasons[c.Multiple] = c.Reason
	}
	assert.Equal(t, ReasonMissingMultiple, reasons[contracts.FieldPE])
	assert.Equal(t, ReasonNonPositive, reasons[contracts.FieldPB])
	assert.Equal(t, ReasonNoMedian, reasons[contracts.FieldPS])

	assert.Equal(t, 100.0, pt.FairValue)
	assert.Equal(t, contracts.ConfidenceLow, pt.Confidence)
	assert.Equal(t, 12, pt.HoldingPeriodMonths)
	assert.True(t, pt.RequiresDeepAnalysis)
	assert.NotEmpty(t, pt.Diagnostics.Notes)
}

func TestComputeDeepAnalysisFlag(t *testing.T) {
	fund := &contracts.Fundamentals{PE: f(20), PB: f(4), PS: f(5)}
	e := newEngine()

	tests := []struct {
		name    string
		pillars contracts.EvidencePillars
		dq      float64
		conf    contracts.Confidence
		deep    bool
	}{
		{"clean", flat(60), 85, contracts.ConfidenceHigh, false},
		{"medium dq", flat(60), 70, contracts.ConfidenceMedium, false},
		{"high dispersion", contracts.EvidencePillars{Valuation: 100, Quality: 0, Technical: 100, Risk: 0}, 95, contracts.ConfidenceLow, true},
		{"low dq", flat(60), 55, contracts.ConfidenceLow, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pt, err := e.Compute(metrics(fund.Clone(), tt.dq), tt.pillars, techMedians(), Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.conf, pt.Confidence)
			assert.Equal(t, tt.deep, pt.RequiresDeepAnalysis)
		})
	}
}

func TestComputeNoPrice(t *testing.T) {
	m := metrics(&contracts.Fundamentals{PE: f(20)}, 90)
	m.Technical = nil

	_, err := newEngine().Compute(m, flat(70), techMedians(), Options{})
	assert.ErrorIs(t, err, ErrNoPrice)
}

func TestComputeWithMonteCarlo(t *testing.T) {
	m := metrics(&contracts.Fundamentals{PE: f(25), PB: f(4), PS: f(4)}, 90)

	pt, err := newEngine().Compute(m, flat(70), techMedians(), Options{ComputeMonteCarlo: true})
	require.NoError(t, err)
	require.NotNil(t, pt.Diagnostics.MonteCarlo)

	mc := pt.Diagnostics.MonteCarlo
	assert.Equal(t, 1000, mc.Iterations)
	assert.Equal(t, 6, mc.HorizonMonths)
	assert.Equal(t, 0.25, mc.Volatility)
}

func TestMonteCarloDeterministic(t *testing.T) {
	mc := NewMonteCarlo(scoringconfig.Default().MonteCarlo)

	a := mc.Simulate("MSFT", 100, 120, f(0.3), 9)
	b := mc.Simulate("MSFT", 100, 120, f(0.3), 9)
	assert.Equal(t, a, b)

	_, err := uuid.Parse(a.RunID)
	assert.NoError(t, err)

	other := mc.Simulate("NVDA", 100, 120, f(0.3), 9)
	assert.NotEqual(t, a.Seed, other.Seed)
	assert.NotEqual(t, a.RunID, other.RunID)
}

func TestMonteCarloDistribution(t *testing.T) {
	params := scoringconfig.Default().MonteCarlo
	params.Iterations = 2001
	mc := NewMonteCarlo(params)

	d := mc.Simulate("JNJ", 100, 110, nil, 12)

	assert.Equal(t, 2002, d.Iterations, "rounded up for antithetic pairs")
	assert.Equal(t, 0.3, d.Volatility, "default volatility when missing")
	assert.Equal(t, 0.5, d.ProbAboveTarget)
	assert.InDelta(t, 110, d.P50, 1.0)
	assert.Less(t, d.P10, d.P50)
	assert.Less(t, d.P50, d.P90)
	assert.Greater(t, d.ProbPositive, 0.5)
	assert.Greater(t, d.VaR95, 0.0)
	assert.Greater(t, d.StdReturn, 0.0)
}
