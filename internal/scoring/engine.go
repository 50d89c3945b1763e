package scoring

import (
	"errors"
	"fmt"

	"github.com/wonny/evidence/internal/contracts"
	"github.com/wonny/evidence/internal/pillars"
	"github.com/wonny/evidence/internal/pricetarget"
	"github.com/wonny/evidence/internal/resolver"
	"github.com/wonny/evidence/internal/scoringconfig"
)

// ErrNilMetrics is returned for a missing resolved snapshot
var ErrNilMetrics = errors.New("resolved metrics is nil")

// Options selects the pass a symbol is scored in
type Options struct {
	ComputePriceTarget bool
	ComputeMonteCarlo  bool
}

// Scan is the cheap first pass
var Scan = Options{}

// Deep adds the price target
var Deep = Options{ComputePriceTarget: true}

// Refine adds Monte Carlo diagnostics on top of the deep pass
var Refine = Options{ComputePriceTarget: true, ComputeMonteCarlo: true}

// Engine scores one resolved symbol
// ⭐ SSOT: SymbolScore 조립은 여기서만 (pillar + price target)
type Engine struct {
	cfg     *scoringconfig.Config
	scorer  *pillars.Scorer
	targets *pricetarget.Engine
}

// NewEngine creates a per-run scoring engine
func NewEngine(cfg *scoringconfig.Config) *Engine {
	return &Engine{
		cfg:     cfg,
		scorer:  pillars.NewScorer(cfg),
		targets: pricetarget.NewEngine(cfg),
	}
}

// Score builds the SymbolScore for one symbol
// NoData → 명시적 neutral fallback
func (e *Engine) Score(m *resolver.Metrics, medians *resolver.GroupMedians, opts Options) (contracts.SymbolScore, error) {
	if m == nil {
		return contracts.SymbolScore{}, ErrNilMetrics
	}
	if m.NoData {
		return Neutral(m.Symbol, "no data fetched; neutral fallback applied", e.cfg.Weights), nil
	}

	res := e.scorer.Score(m.Fundamentals, m.Technical)
	score := contracts.SymbolScore{
		Symbol:      m.Symbol,
		Name:        m.Name,
		Sector:      m.Sector,
		Industry:    m.Industry,
		TotalScore:  res.Total,
		Breakdown:   res.Breakdown,
		Evidence:    res.Pillars,
		DataQuality: copyQuality(m.DataQuality),
		IsScanOnly:  !opts.ComputePriceTarget,
		RedFlags:    res.RedFlags,
	}

	if !opts.ComputePriceTarget {
		return score, nil
	}

	pt, err := e.targets.Compute(m, res.Pillars, medians, pricetarget.Options{ComputeMonteCarlo: opts.ComputeMonteCarlo})
	if err != nil {
		if errors.Is(err, pricetarget.ErrNoPrice) {
			score.DataQuality.Assumptions = append(score.DataQuality.Assumptions,
				"price target unavailable: no current price")
			return score, nil
		}
		return score, fmt.Errorf("price target %s: %w", m.Symbol, err)
	}
	score.PriceTarget = pt
	return score, nil
}

// Neutral returns the documented fallback record for a symbol that could not be scored
// pillar 50, dataQuality 50, missingCritical ["all"]
func Neutral(symbol, reason string, w scoringconfig.Weights) contracts.SymbolScore {
	p := contracts.NeutralPillars()
	total, b := pillars.Total(p, w)
	return contracts.SymbolScore{
		Symbol:     symbol,
		TotalScore: total,
		Breakdown:  b,
		Evidence:   p,
		DataQuality: contracts.DataQuality{
			Score:           contracts.ScoreNeutral,
			MissingCritical: []string{contracts.MissingCriticalAll},
			MissingFields:   []string{},
			OutlierFlags:    []string{},
			Assumptions:     []string{reason},
		},
		IsScanOnly: true,
	}
}

// Config returns the bound configuration
func (e *Engine) Config() *scoringconfig.Config {
	return e.cfg
}

// copyQuality detaches slices so later appends never alias the resolver's record
func copyQuality(dq contracts.DataQuality) contracts.DataQuality {
	out := dq
	out.MissingCritical = append([]string{}, dq.MissingCritical...)
	out.MissingFields = append([]string{}, dq.MissingFields...)
	out.OutlierFlags = append([]string{}, dq.OutlierFlags...)
	out.Assumptions = append([]string{}, dq.Assumptions...)
	if dq.Provenance != nil {
		out.Provenance = append([]string{}, dq.Provenance...)
	}
	return out
}
