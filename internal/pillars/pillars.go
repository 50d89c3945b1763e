package pillars

import (
	"github.com/wonny/evidence/internal/contracts"
	"github.com/wonny/evidence/internal/scoringconfig"
)

// Red flag labels
const (
	FlagUnprofitable  = "unprofitable"
	FlagCashBurner    = "cash_burner"
	FlagOverleveraged = "overleveraged"
)

// weighted is one present component of a blended pillar
type weighted struct {
	score  float64
	weight float64
}

// blend returns the weight-renormalized average of present components
func blend(parts []weighted) float64 {
	var sum, wsum float64
	for _, p := range parts {
		sum += p.score * p.weight
		wsum += p.weight
	}
	if wsum == 0 {
		return contracts.ScoreNeutral
	}
	return sum / wsum
}

// positive returns v when it is a usable multiple (> 0)
func positive(v *float64) (float64, bool) {
	if v == nil || *v <= 0 {
		return 0, false
	}
	return *v, true
}

// Valuation scores PE/PB/PS/FCF-yield against their bands
// ⭐ 입력 부족(< min_components) → 0 (중립 50 아님)
func Valuation(f *contracts.Fundamentals, cfg *scoringconfig.Config) float64 {
	if f == nil {
		return contracts.ScoreInsufficient
	}
	th := cfg.Thresholds
	vp := cfg.Valuation

	var parts []weighted
	if pe, ok := positive(f.PE); ok {
		parts = append(parts, weighted{LowerIsBetter(pe, th.PE), vp.PEWeight})
	}
	if pb, ok := positive(f.PB); ok {
		parts = append(parts, weighted{LowerIsBetter(pb, th.PB), vp.PBWeight})
	}
	if ps, ok := positive(f.PS); ok {
		parts = append(parts, weighted{LowerIsBetter(ps, th.PS), vp.PSWeight})
	}
	if f.FCFYield != nil {
		parts = append(parts, weighted{HigherIsBetter(*f.FCFYield, th.FCFYield), vp.FCFYieldWeight})
	}

	if len(parts) < vp.MinComponents {
		return contracts.ScoreInsufficient
	}
	base := blend(parts)

	// GARP: PEG 점수 혼합
	if blendW := cfg.Mode.PEGBlend; blendW > 0 {
		if peg, ok := positive(f.PEG); ok {
			base = (1-blendW)*base + blendW*LowerIsBetter(peg, th.PEG)
		}
	}

	return Clamp(base)
}

// Quality scores ROE, debt/equity and gross margin with equal weight
// ⭐ 입력 부족 → 0, shield 모드에서 red flag 존재 → 0
func Quality(f *contracts.Fundamentals, cfg *scoringconfig.Config, redFlags []string) float64 {
	if f == nil {
		return contracts.ScoreInsufficient
	}
	if cfg.Mode.ZeroQualityOnRedFlag && len(redFlags) > 0 {
		return contracts.ScoreInsufficient
	}
	th := cfg.Thresholds

	var parts []weighted
	if f.ROE != nil {
		parts = append(parts, weighted{HigherIsBetter(*f.ROE, th.ROE), 1})
	}
	if f.DebtToEquity != nil {
		de := *f.DebtToEquity
		score := LowerIsBetter(de, th.DebtToEquity)
		if de < 0 {
			score = 0 // 자본잠식
		}
		parts = append(parts, weighted{score, 1})
	}
	if f.GrossMargin != nil {
		parts = append(parts, weighted{HigherIsBetter(*f.GrossMargin, th.GrossMargin), 1})
	}

	if len(parts) < cfg.Quality.MinComponents {
		return contracts.ScoreInsufficient
	}
	return Clamp(blend(parts))
}

// RedFlags returns the quality-gate failures in fixed order
func RedFlags(f *contracts.Fundamentals, cfg *scoringconfig.Config) []string {
	if f == nil {
		return nil
	}
	var flags []string
	if f.ROA != nil && *f.ROA <= 0 {
		flags = append(flags, FlagUnprofitable)
	}
	if f.FreeCashFlow != nil && *f.FreeCashFlow <= 0 {
		flags = append(flags, FlagCashBurner)
	}
	if f.DebtToEquity != nil && *f.DebtToEquity > cfg.Quality.OverleveragedDebtToEq {
		flags = append(flags, FlagOverleveraged)
	}
	return flags
}

// horizonReturn picks the return matching a configured lookback
func horizonReturn(t *contracts.TechnicalMetrics, weeks int) *float64 {
	switch weeks {
	case 13:
		return t.Return13W
	case 26:
		return t.Return26W
	case 52:
		return t.Return52W
	default:
		return nil
	}
}

// Momentum blends available horizon returns; ok=false when none exist
func Momentum(t *contracts.TechnicalMetrics, cfg *scoringconfig.Config) (float64, bool) {
	if t == nil {
		return 0, false
	}
	var parts []weighted
	for _, h := range cfg.Technical.Horizons {
		r := horizonReturn(t, h.Weeks)
		if r == nil {
			continue
		}
		score := Clamp(50 + (*r-h.Center)/h.HalfWidth*50)
		parts = append(parts, weighted{score, h.Weight})
	}
	if len(parts) == 0 {
		return 0, false
	}
	return blend(parts), true
}

// RangePosition scores where price sits in its 52-week range; ok=false without a valid range
// 0.6~0.8 sweet spot → 100, 고점 근처 과열 할인, 저점 근처 최저
func RangePosition(t *contracts.TechnicalMetrics, cfg *scoringconfig.Config) (float64, bool) {
	if t == nil || t.Price == nil || t.High52W == nil || t.Low52W == nil {
		return 0, false
	}
	hi, lo := *t.High52W, *t.Low52W
	if hi <= lo {
		return 0, false
	}
	p := clamp((*t.Price-lo)/(hi-lo), 0, 1)

	tp := cfg.Technical
	switch {
	case p >= tp.SweetSpotLow && p <= tp.SweetSpotHigh:
		return 100, true
	case p > tp.SweetSpotHigh:
		return 100 - (p-tp.SweetSpotHigh)/(1-tp.SweetSpotHigh)*(100-tp.NearHighScore), true
	default:
		return tp.NearLowScore + p/tp.SweetSpotLow*(100-tp.NearLowScore), true
	}
}

// Technical blends momentum and range position
// 수익률 없음 → range 만, 둘 다 없음 → 50 중립
func Technical(t *contracts.TechnicalMetrics, cfg *scoringconfig.Config) float64 {
	m, hasM := Momentum(t, cfg)
	r, hasR := RangePosition(t, cfg)

	switch {
	case hasM && hasR:
		return Clamp(cfg.Technical.MomentumWeight*m + cfg.Technical.RangeWeight*r)
	case hasM:
		return Clamp(m)
	case hasR:
		return Clamp(r)
	default:
		return contracts.ScoreNeutral
	}
}

// Risk maps 3-month annualized volatility through the step function
// 변동성 없음 → 50 중립
func Risk(t *contracts.TechnicalMetrics, cfg *scoringconfig.Config) float64 {
	if t == nil || t.Volatility3M == nil {
		return contracts.ScoreNeutral
	}
	vol := *t.Volatility3M
	for _, step := range cfg.Risk.Steps {
		if vol < step.MaxVolatility || (step.Inclusive && vol == step.MaxVolatility) {
			return step.Score
		}
	}
	return cfg.Risk.FloorScore
}

// Total returns Σ pillar·weight and each weighted contribution
func Total(p contracts.EvidencePillars, w scoringconfig.Weights) (float64, contracts.ScoreBreakdown) {
	b := contracts.ScoreBreakdown{
		Valuation: Clamp(p.Valuation) * w.Valuation,
		Quality:   Clamp(p.Quality) * w.Quality,
		Technical: Clamp(p.Technical) * w.Technical,
		Risk:      Clamp(p.Risk) * w.Risk,
	}
	return b.Valuation + b.Quality + b.Technical + b.Risk, b
}

// Result is the full pillar evaluation for one symbol
type Result struct {
	Pillars   contracts.EvidencePillars
	Breakdown contracts.ScoreBreakdown
	Total     float64
	RedFlags  []string
}

// Scorer evaluates all pillars under one immutable config
// ⭐ SSOT: pillar 공식은 여기서만 (모드는 파라미터로만 분기)
type Scorer struct {
	cfg *scoringconfig.Config
}

// NewScorer creates a scorer bound to cfg
func NewScorer(cfg *scoringconfig.Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Config returns the bound configuration
func (s *Scorer) Config() *scoringconfig.Config {
	return s.cfg
}

// Score evaluates one symbol
func (s *Scorer) Score(f *contracts.Fundamentals, t *contracts.TechnicalMetrics) Result {
	flags := RedFlags(f, s.cfg)
	p := contracts.EvidencePillars{
		Valuation: Valuation(f, s.cfg),
		Quality:   Quality(f, s.cfg, flags),
		Technical: Technical(t, s.cfg),
		Risk:      Risk(t, s.cfg),
	}
	total, breakdown := Total(p, s.cfg.Weights)
	return Result{
		Pillars:   p,
		Breakdown: breakdown,
		Total:     total,
		RedFlags:  flags,
	}
}
