package pricetarget

import (
	"errors"
	"fmt"
	"math"

	"github.com/wonny/evidence/internal/contracts"
	"github.com/wonny/evidence/internal/resolver"
	"github.com/wonny/evidence/internal/scoringconfig"
)

// ErrNoPrice is returned when the symbol has no usable current price
var ErrNoPrice = errors.New("no current price")

// Component exclusion / clamp reasons
const (
	ReasonMissingMultiple = "missing_multiple"
	ReasonNoMedian        = "no_median"
	ReasonNonPositive     = "non_positive"
	ReasonRatioClamped    = "ratio_clamped"
)

// Bound labels
const (
	BoundMin = "min_price_multiple"
	BoundMax = "max_price_multiple"
)

// Options controls the optional, costly parts of a computation
type Options struct {
	ComputeMonteCarlo bool
}

// Engine derives bounded price targets from sector-median multiples
// ⭐ SSOT: fair value / confidence 규칙은 여기서만
type Engine struct {
	params scoringconfig.PriceTargetParams
	mc     *MonteCarlo
}

// NewEngine creates a price target engine
func NewEngine(cfg *scoringconfig.Config) *Engine {
	return &Engine{
		params: cfg.PriceTarget,
		mc:     NewMonteCarlo(cfg.MonteCarlo),
	}
}

// Compute derives the price target for one resolved symbol
func (e *Engine) Compute(
	m *resolver.Metrics,
	pillars contracts.EvidencePillars,
	medians *resolver.GroupMedians,
	opts Options,
) (*contracts.PriceTarget, error) {
	price, ok := m.Price()
	if !ok {
		return nil, ErrNoPrice
	}
	p := e.params

	// === Components ===
	multiples := []struct {
		field  contracts.FundamentalField
		weight float64
	}{
		{contracts.FieldPE, p.PEWeight},
		{contracts.FieldPB, p.PBWeight},
		{contracts.FieldPS, p.PSWeight},
	}

	diag := contracts.PriceTargetDiagnostics{
		Components: make([]contracts.ValuationComponent, 0, len(multiples)),
	}
	var weightedSum, weightSum float64
	included := 0

	for _, mult := range multiples {
		comp := e.component(m, medians, mult.field, mult.weight, price)
		if comp.Included {
			weightedSum += *comp.ImpliedPrice * comp.Weight
			weightSum += comp.Weight
			included++
		}
		diag.Components = append(diag.Components, comp)
	}

	// === Fair value ===
	rawFair := price
	if weightSum > 0 {
		rawFair = weightedSum / weightSum
	} else {
		diag.Notes = append(diag.Notes, "no valuation components; fair value equals current price")
	}
	diag.RawFairValue = round2(rawFair)

	target := rawFair
	if lo := price * p.MinPriceMultiple; target < lo {
		target = lo
		diag.BoundedBy = BoundMin
	}
	if hi := price * p.MaxPriceMultiple; target > hi {
		target = hi
		diag.BoundedBy = BoundMax
	}

	// === Confidence ===
	dq := m.DataQuality.Score
	dispersion := pillars.Dispersion()
	diag.PillarDispersion = round2(dispersion)

	confidence := contracts.ConfidenceLow
	switch {
	case dq >= p.HighConfidenceDQ && dispersion <= p.HighConfidenceMaxDisp && included >= 2:
		confidence = contracts.ConfidenceHigh
	case dq >= p.MediumConfidenceDQ && dispersion <= p.MediumConfidenceMaxDisp && included >= 1:
		confidence = contracts.ConfidenceMedium
	}

	holding := p.HoldingMonthsLow
	switch confidence {
	case contracts.ConfidenceHigh:
		holding = p.HoldingMonthsHigh
	case contracts.ConfidenceMedium:
		holding = p.HoldingMonthsMedium
	}

	requiresDeep := confidence == contracts.ConfidenceLow ||
		dispersion > p.DeepAnalysisMaxDisp ||
		dq < p.DeepAnalysisMinDQ

	expected := target/price - 1
	pt := &contracts.PriceTarget{
		CurrentPrice:         round2(price),
		FairValue:            round2(rawFair),
		TargetPrice:          round2(target),
		UpsidePct:            round2(expected * 100),
		ExpectedReturn:       round4(expected),
		HoldingPeriodMonths:  holding,
		Confidence:           confidence,
		RequiresDeepAnalysis: requiresDeep,
		Diagnostics:          diag,
	}

	if opts.ComputeMonteCarlo {
		var vol *float64
		if m.Technical != nil {
			vol = m.Technical.Volatility3M
		}
		pt.Diagnostics.MonteCarlo = e.mc.Simulate(m.Symbol, price, target, vol, holding)
	}

	return pt, nil
}

// component evaluates one multiple's implied price
// imputed multiple 은 자기 자신의 중앙값과 비교하게 되므로 제외
func (e *Engine) component(
	m *resolver.Metrics,
	medians *resolver.GroupMedians,
	field contracts.FundamentalField,
	weight float64,
	price float64,
) contracts.ValuationComponent {
	comp := contracts.ValuationComponent{Multiple: field, Weight: weight}

	own := m.Fundamentals.Get(field)
	if own == nil || m.IsImputed(field) {
		comp.Reason = ReasonMissingMultiple
		return comp
	}
	comp.Own = contracts.Float(*own)

	st, source, ok := medians.Lookup(m.Sector, field)
	if !ok {
		comp.Reason = ReasonNoMedian
		return comp
	}
	comp.Median = contracts.Float(st.Median)
	comp.MedianSource = source

	if *own <= 0 || st.Median <= 0 {
		comp.Reason = ReasonNonPositive
		return comp
	}

	ratio := st.Median / *own
	if ratio < e.params.MinMedianRatio || ratio > e.params.MaxMedianRatio {
		ratio = math.Max(e.params.MinMedianRatio, math.Min(e.params.MaxMedianRatio, ratio))
		comp.Clamped = true
		comp.Reason = ReasonRatioClamped
	}

	comp.ImpliedPrice = contracts.Float(round2(price * ratio))
	comp.Included = true
	return comp
}

// Summary formats a target for logs
func Summary(pt *contracts.PriceTarget) string {
	if pt == nil {
		return "none"
	}
	return fmt.Sprintf("%.2f→%.2f (%s, %dm)", pt.CurrentPrice, pt.TargetPrice, pt.Confidence, pt.HoldingPeriodMonths)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
