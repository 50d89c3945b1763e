package pillars

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/evidence/internal/contracts"
	"github.com/wonny/evidence/internal/scoringconfig"
)

var f = contracts.Float

func TestLowerIsBetter(t *testing.T) {
	band := scoringconfig.Band{Low: 10, High: 25}

	tests := []struct {
		name string
		v    float64
		want float64
	}{
		{"below low", 5, 100},
		{"at low", 10, 100},
		{"pe 12", 12, 100 - 80*2.0/15},
		{"at high", 25, 20},
		{"half band past high", 32.5, 10},
		{"one band past high", 40, 0},
		{"far past high", 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, LowerIsBetter(tt.v, band), 1e-9)
		})
	}
}

func TestPE12Component(t *testing.T) {
	score := LowerIsBetter(12, scoringconfig.Band{Low: 10, High: 25})
	assert.Greater(t, score, 60.0)
	assert.Less(t, score, 100.0)
	assert.InDelta(t, 89.3333, score, 1e-3)
}

func TestHigherIsBetter(t *testing.T) {
	band := scoringconfig.Band{Low: 8, High: 20}

	assert.Equal(t, 100.0, HigherIsBetter(25, band))
	assert.Equal(t, 100.0, HigherIsBetter(20, band))
	assert.InDelta(t, 60.0, HigherIsBetter(14, band), 1e-9)
	assert.Equal(t, 20.0, HigherIsBetter(8, band))
	assert.InDelta(t, 10.0, HigherIsBetter(2, band), 1e-9)
	assert.Equal(t, 0.0, HigherIsBetter(-10, band))
}

func TestValuationInsufficientData(t *testing.T) {
	cfg := scoringconfig.Default()

	tests := []struct {
		name string
		f    *contracts.Fundamentals
	}{
		{"nil", nil},
		{"empty", &contracts.Fundamentals{}},
		{"only pe", &contracts.Fundamentals{PE: f(10)}},
		{"only fcf yield", &contracts.Fundamentals{FCFYield: f(5)}},
		{"pe plus negative pb", &contracts.Fundamentals{PE: f(10), PB: f(-1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, contracts.ScoreInsufficient, Valuation(tt.f, cfg))
		})
	}
}

func TestValuationBlend(t *testing.T) {
	cfg := scoringconfig.Default()

	cheap := &contracts.Fundamentals{PE: f(10), PB: f(1)}
	assert.Equal(t, 100.0, Valuation(cheap, cfg))

	atHigh := &contracts.Fundamentals{PE: f(30), PB: f(5)}
	assert.InDelta(t, 20.0, Valuation(atHigh, cfg), 1e-9)

	// PE 100점(0.35), FCF yield 20점(0.25) → 재정규화
	mixed := &contracts.Fundamentals{PE: f(10), FCFYield: f(2)}
	want := (100*0.35 + 20*0.25) / 0.60
	assert.InDelta(t, want, Valuation(mixed, cfg), 1e-9)
}

func TestValuationGARP(t *testing.T) {
	cfg, err := scoringconfig.ApplyPreset(scoringconfig.Default(), "garp")
	require.NoError(t, err)

	fund := &contracts.Fundamentals{PE: f(10), PB: f(1), PEG: f(2.5)}
	assert.InDelta(t, 0.7*100+0.3*20, Valuation(fund, cfg), 1e-9)

	// PEG 없음 → base 그대로
	noPEG := &contracts.Fundamentals{PE: f(10), PB: f(1)}
	assert.Equal(t, 100.0, Valuation(noPEG, cfg))

	// default 모드는 PEG 무시
	assert.Equal(t, 100.0, Valuation(fund, scoringconfig.Default()))
}

func TestQuality(t *testing.T) {
	cfg := scoringconfig.Default()

	assert.Equal(t, 0.0, Quality(nil, cfg, nil))
	assert.Equal(t, 0.0, Quality(&contracts.Fundamentals{}, cfg, nil))
	assert.Equal(t, 0.0, Quality(&contracts.Fundamentals{ROE: f(25)}, cfg, nil))

	strong := &contracts.Fundamentals{ROE: f(25), DebtToEquity: f(0.3), GrossMargin: f(60)}
	assert.Equal(t, 100.0, Quality(strong, cfg, nil))

	// ROE 60점, D/E 100점
	two := &contracts.Fundamentals{ROE: f(14), DebtToEquity: f(0.5)}
	assert.InDelta(t, 80.0, Quality(two, cfg, nil), 1e-9)

	negEquity := &contracts.Fundamentals{ROE: f(20), DebtToEquity: f(-2)}
	assert.InDelta(t, 50.0, Quality(negEquity, cfg, nil), 1e-9)
}

func TestRedFlagsAndShield(t *testing.T) {
	cfg := scoringconfig.Default()
	fund := &contracts.Fundamentals{
		ROE:          f(25),
		ROA:          f(-1),
		DebtToEquity: f(3.5),
		GrossMargin:  f(60),
		FreeCashFlow: f(-1e6),
	}

	flags := RedFlags(fund, cfg)
	assert.Equal(t, []string{FlagUnprofitable, FlagCashBurner, FlagOverleveraged}, flags)
	assert.Greater(t, Quality(fund, cfg, flags), 0.0)

	shield, err := scoringconfig.ApplyPreset(cfg, "shield")
	require.NoError(t, err)
	assert.Equal(t, contracts.ScoreInsufficient, Quality(fund, shield, flags))

	clean := &contracts.Fundamentals{ROA: f(5), FreeCashFlow: f(1e9), DebtToEquity: f(1)}
	assert.Empty(t, RedFlags(clean, cfg))
	assert.Nil(t, RedFlags(nil, cfg))
}

func TestTechnical(t *testing.T) {
	cfg := scoringconfig.Default()

	t.Run("neutral without data", func(t *testing.T) {
		assert.Equal(t, contracts.ScoreNeutral, Technical(nil, cfg))
		assert.Equal(t, contracts.ScoreNeutral, Technical(&contracts.TechnicalMetrics{}, cfg))
	})

	t.Run("returns at centers", func(t *testing.T) {
		tm := &contracts.TechnicalMetrics{Return13W: f(0.03), Return26W: f(0.06), Return52W: f(0.10)}
		assert.InDelta(t, 50.0, Technical(tm, cfg), 1e-9)
	})

	t.Run("range only", func(t *testing.T) {
		tm := &contracts.TechnicalMetrics{Price: f(85), High52W: f(100), Low52W: f(50)}
		assert.Equal(t, 100.0, Technical(tm, cfg))
	})

	t.Run("blend", func(t *testing.T) {
		tm := &contracts.TechnicalMetrics{
			Price:     f(70),
			High52W:   f(100),
			Low52W:    f(50),
			Return13W: f(0.03),
			Return26W: f(0.06),
			Return52W: f(0.10),
		}
		rangeScore := 20 + 0.4/0.6*80
		assert.InDelta(t, 0.6*50+0.4*rangeScore, Technical(tm, cfg), 1e-9)
	})

	t.Run("momentum saturates", func(t *testing.T) {
		tm := &contracts.TechnicalMetrics{Return52W: f(1.5)}
		assert.Equal(t, 100.0, Technical(tm, cfg))
		tm = &contracts.TechnicalMetrics{Return52W: f(-0.9)}
		assert.Equal(t, 0.0, Technical(tm, cfg))
	})
}

func TestRangePosition(t *testing.T) {
	cfg := scoringconfig.Default()
	at := func(price float64) float64 {
		s, ok := RangePosition(&contracts.TechnicalMetrics{Price: f(price), High52W: f(200), Low52W: f(100)}, cfg)
		require.True(t, ok)
		return s
	}

	assert.InDelta(t, 20.0, at(100), 1e-9)  // 저점
	assert.InDelta(t, 100.0, at(160), 1e-9) // sweet spot 하단
	assert.InDelta(t, 100.0, at(180), 1e-9) // sweet spot 상단
	assert.InDelta(t, 85.0, at(190), 1e-9)
	assert.InDelta(t, 70.0, at(200), 1e-9) // 고점 과열 할인
	assert.InDelta(t, 70.0, at(250), 1e-9) // 범위 초과는 고점으로 clamp
	assert.Greater(t, at(200), at(100), "near-low must score lowest")

	_, ok := RangePosition(&contracts.TechnicalMetrics{Price: f(10), High52W: f(5), Low52W: f(5)}, cfg)
	assert.False(t, ok)
}

func TestRiskBoundaries(t *testing.T) {
	cfg := scoringconfig.Default()

	tests := []struct {
		vol  float64
		want float64
	}{
		{0.10, 100},
		{0.15, 100},
		{0.1501, 85},
		{0.20, 85},
		{0.25, 70},
		{0.30, 50},
		{0.35, 30},
		{0.39, 15},
		{0.40, 5},
		{0.80, 5},
	}

	for _, tt := range tests {
		got := Risk(&contracts.TechnicalMetrics{Volatility3M: f(tt.vol)}, cfg)
		assert.Equal(t, tt.want, got, "vol %.4f", tt.vol)
	}

	assert.Equal(t, contracts.ScoreNeutral, Risk(nil, cfg))
	assert.Equal(t, contracts.ScoreNeutral, Risk(&contracts.TechnicalMetrics{}, cfg))
}

func TestTotal(t *testing.T) {
	w := scoringconfig.Default().Weights
	total, b := Total(contracts.EvidencePillars{Valuation: 100, Quality: 100, Technical: 0, Risk: 0}, w)

	assert.InDelta(t, 60.0, total, 1e-9)
	assert.InDelta(t, 30.0, b.Valuation, 1e-9)
	assert.InDelta(t, 30.0, b.Quality, 1e-9)
	assert.Zero(t, b.Technical)
}

// 무작위 입력에 대해 모든 pillar ∈ [0,100], total = Σ pillar·weight
func TestScoreBounding(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	maybe := func(lo, hi float64) *float64 {
		if rng.Intn(4) == 0 {
			return nil
		}
		return f(lo + rng.Float64()*(hi-lo))
	}

	for _, preset := range scoringconfig.PresetNames() {
		cfg, err := scoringconfig.ApplyPreset(scoringconfig.Default(), preset)
		require.NoError(t, err)
		require.InDelta(t, 1.0, cfg.Weights.Sum(), 1e-6)
		scorer := NewScorer(cfg)

		for i := 0; i < 500; i++ {
			fund := &contracts.Fundamentals{
				PE:           maybe(-20, 200),
				PB:           maybe(-2, 30),
				PS:           maybe(-1, 40),
				PEG:          maybe(-3, 10),
				FCFYield:     maybe(-20, 30),
				ROE:          maybe(-80, 120),
				ROA:          maybe(-30, 40),
				DebtToEquity: maybe(-5, 10),
				GrossMargin:  maybe(-50, 100),
				FreeCashFlow: maybe(-1e9, 1e9),
			}
			tech := &contracts.TechnicalMetrics{
				Price:        maybe(1, 500),
				High52W:      maybe(1, 600),
				Low52W:       maybe(1, 300),
				Return13W:    maybe(-0.9, 2),
				Return26W:    maybe(-0.9, 3),
				Return52W:    maybe(-0.9, 5),
				Volatility3M: maybe(0, 1.5),
			}

			res := scorer.Score(fund, tech)
			for _, v := range res.Pillars.Values() {
				require.GreaterOrEqual(t, v, 0.0)
				require.LessOrEqual(t, v, 100.0)
			}
			w := cfg.Weights
			want := res.Pillars.Valuation*w.Valuation + res.Pillars.Quality*w.Quality +
				res.Pillars.Technical*w.Technical + res.Pillars.Risk*w.Risk
			require.InDelta(t, want, res.Total, 1e-9)
		}
	}
}
