package contracts

import "math"

// Pillar names one of the four evidence pillars
type Pillar string

const (
	PillarValuation Pillar = "valuation"
	PillarQuality   Pillar = "quality"
	PillarTechnical Pillar = "technical"
	PillarRisk      Pillar = "risk"
)

// Score sentinels with defined meaning
const (
	// ScoreInsufficient: 입력 부족 또는 심층 검증 실패
	ScoreInsufficient = 0.0
	// ScoreNeutral: 중립 기본값
	ScoreNeutral = 50.0
)

// EvidencePillars holds the four 0-100 pillar scores
// ⭐ SSOT: Pillar Scorer → Orchestrator 전달
type EvidencePillars struct {
	Valuation float64 `json:"valuation"`
	Quality   float64 `json:"quality"`
	Technical float64 `json:"technical"`
	Risk      float64 `json:"risk"`
}

// NeutralPillars returns the documented neutral fallback
func NeutralPillars() EvidencePillars {
	return EvidencePillars{
		Valuation: ScoreNeutral,
		Quality:   ScoreNeutral,
		Technical: ScoreNeutral,
		Risk:      ScoreNeutral,
	}
}

// Values returns the pillars in fixed order
func (p EvidencePillars) Values() []float64 {
	return []float64{p.Valuation, p.Quality, p.Technical, p.Risk}
}

// Dispersion returns the population standard deviation across pillars
func (p EvidencePillars) Dispersion() float64 {
	values := p.Values()
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return math.Sqrt(variance / float64(len(values)))
}

// ScoreBreakdown holds each pillar's weighted contribution to the total
type ScoreBreakdown struct {
	Valuation float64 `json:"valuation"`
	Quality   float64 `json:"quality"`
	Technical float64 `json:"technical"`
	Risk      float64 `json:"risk"`
}

// DataQuality tracks completeness and imputation for one symbol
type DataQuality struct {
	Score               float64  `json:"data_quality_score"`
	CompletenessRatio   float64  `json:"completeness_ratio"`
	ImputedRatio        float64  `json:"imputed_ratio"`
	MissingCritical     []string `json:"missing_critical"`
	MissingFields       []string `json:"missing_fields"`
	OutlierFlags        []string `json:"outlier_flags"`
	Assumptions         []string `json:"assumptions"`
	Provenance          []string `json:"provenance,omitempty"`
	FundamentalsAgeDays *float64 `json:"fundamentals_age_days,omitempty"`
	StaleFundamentals   bool     `json:"stale_fundamentals"`
}

// MissingCriticalAll marks a symbol for which nothing could be fetched
const MissingCriticalAll = "all"

// Confidence labels a price target
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ValuationComponent explains one multiple's contribution to fair value
type ValuationComponent struct {
	Multiple     FundamentalField `json:"multiple"`
	Own          *float64         `json:"own,omitempty"`
	Median       *float64         `json:"median,omitempty"`
	MedianSource string           `json:"median_source,omitempty"`
	ImpliedPrice *float64         `json:"implied_price,omitempty"`
	Weight       float64          `json:"weight"`
	Included     bool             `json:"included"`
	Clamped      bool             `json:"clamped"`
	Reason       string           `json:"reason,omitempty"`
}

// MonteCarloDiagnostics summarizes a simulated return distribution
type MonteCarloDiagnostics struct {
	RunID           string  `json:"run_id"`
	Iterations      int     `json:"iterations"`
	Seed            int64   `json:"seed"`
	HorizonMonths   int     `json:"horizon_months"`
	Volatility      float64 `json:"volatility"`
	MeanReturn      float64 `json:"mean_return"`
	StdReturn       float64 `json:"std_return"`
	P10             float64 `json:"p10"`
	P50             float64 `json:"p50"`
	P90             float64 `json:"p90"`
	ProbPositive    float64 `json:"prob_positive"`
	ProbAboveTarget float64 `json:"prob_above_target"`
	VaR95           float64 `json:"var_95"`
}

// PriceTargetDiagnostics records how the target was derived
type PriceTargetDiagnostics struct {
	Components       []ValuationComponent   `json:"components"`
	RawFairValue     float64                `json:"raw_fair_value"`
	BoundedBy        string                 `json:"bounded_by,omitempty"`
	PillarDispersion float64                `json:"pillar_dispersion"`
	Notes            []string               `json:"notes,omitempty"`
	MonteCarlo       *MonteCarloDiagnostics `json:"monte_carlo,omitempty"`
}

// PriceTarget is the bounded target derived in the deep pass
type PriceTarget struct {
	CurrentPrice         float64                `json:"current_price"`
	FairValue            float64                `json:"fair_value"`
	TargetPrice          float64                `json:"target_price"`
	UpsidePct            float64                `json:"upside_pct"`
	ExpectedReturn       float64                `json:"expected_return"`
	HoldingPeriodMonths  int                    `json:"holding_period_months"`
	Confidence           Confidence             `json:"confidence"`
	RequiresDeepAnalysis bool                   `json:"requires_deep_analysis"`
	Diagnostics          PriceTargetDiagnostics `json:"diagnostics"`
}

// SymbolScore is the per-symbol output record
// ⭐ SSOT: scan 단계에서 생성, deep 단계에서 교체 (삭제 없음)
type SymbolScore struct {
	Symbol      string          `json:"symbol"`
	Name        string          `json:"name,omitempty"`
	Sector      string          `json:"sector,omitempty"`
	Industry    string          `json:"industry,omitempty"`
	TotalScore  float64         `json:"total_score"`
	Breakdown   ScoreBreakdown  `json:"breakdown"`
	Evidence    EvidencePillars `json:"evidence"`
	DataQuality DataQuality     `json:"data_quality"`
	PriceTarget *PriceTarget    `json:"price_target"`
	IsScanOnly  bool            `json:"is_scan_only"`
	RedFlags    []string        `json:"red_flags,omitempty"`
}

// RequiresDeepAnalysis reports whether the price target flagged this symbol
func (s *SymbolScore) RequiresDeepAnalysis() bool {
	return s.PriceTarget != nil && s.PriceTarget.RequiresDeepAnalysis
}
