package scoringconfig

// Config는 채점 파이프라인의 전체 설정
// ⭐ SSOT: run 당 한 번 로드, 이후 불변 (모든 worker 가 읽기 전용으로 공유)
type Config struct {
	Meta        Meta              `yaml:"meta" json:"meta"`
	Mode        ScoringMode       `yaml:"mode" json:"mode"`
	Weights     Weights           `yaml:"weights" json:"weights"`
	Thresholds  Thresholds        `yaml:"thresholds" json:"thresholds"`
	Valuation   ValuationParams   `yaml:"valuation" json:"valuation"`
	Quality     QualityParams     `yaml:"quality" json:"quality"`
	Technical   TechnicalParams   `yaml:"technical" json:"technical"`
	Risk        RiskParams        `yaml:"risk" json:"risk"`
	Resolver    ResolverParams    `yaml:"resolver" json:"resolver"`
	PriceTarget PriceTargetParams `yaml:"price_target" json:"price_target"`
	MonteCarlo  MonteCarloParams  `yaml:"monte_carlo" json:"monte_carlo"`
}

// Meta 메타 정보
type Meta struct {
	ConfigID string `yaml:"config_id" json:"config_id"`
	Version  string `yaml:"version" json:"version"`
}

// Weights pillar 가중치 (합 = 1.0)
type Weights struct {
	Valuation float64 `yaml:"valuation" json:"valuation"`
	Quality   float64 `yaml:"quality" json:"quality"`
	Technical float64 `yaml:"technical" json:"technical"`
	Risk      float64 `yaml:"risk" json:"risk"`
}

// Sum returns the sum of all weights
func (w Weights) Sum() float64 {
	return w.Valuation + w.Quality + w.Technical + w.Risk
}

// Band is a low/high threshold pair; direction is fixed per metric
type Band struct {
	Low  float64 `yaml:"low" json:"low"`
	High float64 `yaml:"high" json:"high"`
}

// Thresholds per-metric 밴드
// 단위: PE/PB/PS/PEG/DebtToEquity 배수, ROE/GrossMargin/FCFYield %
type Thresholds struct {
	PE           Band `yaml:"pe" json:"pe"`
	PB           Band `yaml:"pb" json:"pb"`
	PS           Band `yaml:"ps" json:"ps"`
	PEG          Band `yaml:"peg" json:"peg"`
	FCFYield     Band `yaml:"fcf_yield" json:"fcf_yield"`
	ROE          Band `yaml:"roe" json:"roe"`
	DebtToEquity Band `yaml:"debt_to_equity" json:"debt_to_equity"`
	GrossMargin  Band `yaml:"gross_margin" json:"gross_margin"`
}

// ValuationParams valuation pillar 구성
type ValuationParams struct {
	PEWeight       float64 `yaml:"pe_weight" json:"pe_weight"`
	PBWeight       float64 `yaml:"pb_weight" json:"pb_weight"`
	PSWeight       float64 `yaml:"ps_weight" json:"ps_weight"`
	FCFYieldWeight float64 `yaml:"fcf_yield_weight" json:"fcf_yield_weight"`
	MinComponents  int     `yaml:"min_components" json:"min_components"`
}

// QualityParams quality pillar 구성
type QualityParams struct {
	MinComponents         int     `yaml:"min_components" json:"min_components"`
	OverleveragedDebtToEq float64 `yaml:"overleveraged_debt_to_equity" json:"overleveraged_debt_to_equity"`
}

// Horizon is one momentum lookback
type Horizon struct {
	Weeks     int     `yaml:"weeks" json:"weeks"`
	Center    float64 `yaml:"center" json:"center"`         // 중립(50점) 수익률
	HalfWidth float64 `yaml:"half_width" json:"half_width"` // center ± half_width → 100/0
	Weight    float64 `yaml:"weight" json:"weight"`
}

// TechnicalParams technical pillar 구성
type TechnicalParams struct {
	Horizons       []Horizon `yaml:"horizons" json:"horizons"`
	MomentumWeight float64   `yaml:"momentum_weight" json:"momentum_weight"`
	RangeWeight    float64   `yaml:"range_weight" json:"range_weight"`
	SweetSpotLow   float64   `yaml:"sweet_spot_low" json:"sweet_spot_low"`
	SweetSpotHigh  float64   `yaml:"sweet_spot_high" json:"sweet_spot_high"`
	NearHighScore  float64   `yaml:"near_high_score" json:"near_high_score"`
	NearLowScore   float64   `yaml:"near_low_score" json:"near_low_score"`
}

// RiskStep maps volatility up to MaxVolatility to Score
type RiskStep struct {
	MaxVolatility float64 `yaml:"max_volatility" json:"max_volatility"`
	Score         float64 `yaml:"score" json:"score"`
	Inclusive     bool    `yaml:"inclusive" json:"inclusive"`
}

// RiskParams risk pillar 계단 함수
type RiskParams struct {
	Steps      []RiskStep `yaml:"steps" json:"steps"`
	FloorScore float64    `yaml:"floor_score" json:"floor_score"`
}

// ResolverParams imputation / staleness / outlier 설정
type ResolverParams struct {
	MinSampleSize int     `yaml:"min_sample_size" json:"min_sample_size"`
	StalenessDays int     `yaml:"staleness_days" json:"staleness_days"`
	OutlierSigma  float64 `yaml:"outlier_sigma" json:"outlier_sigma"`
}

// PriceTargetParams fair value / confidence 설정
type PriceTargetParams struct {
	PEWeight                float64 `yaml:"pe_weight" json:"pe_weight"`
	PBWeight                float64 `yaml:"pb_weight" json:"pb_weight"`
	PSWeight                float64 `yaml:"ps_weight" json:"ps_weight"`
	MinMedianRatio          float64 `yaml:"min_median_ratio" json:"min_median_ratio"`
	MaxMedianRatio          float64 `yaml:"max_median_ratio" json:"max_median_ratio"`
	MinPriceMultiple        float64 `yaml:"min_price_multiple" json:"min_price_multiple"`
	MaxPriceMultiple        float64 `yaml:"max_price_multiple" json:"max_price_multiple"`
	HighConfidenceDQ        float64 `yaml:"high_confidence_dq" json:"high_confidence_dq"`
	MediumConfidenceDQ      float64 `yaml:"medium_confidence_dq" json:"medium_confidence_dq"`
	HighConfidenceMaxDisp   float64 `yaml:"high_confidence_max_dispersion" json:"high_confidence_max_dispersion"`
	MediumConfidenceMaxDisp float64 `yaml:"medium_confidence_max_dispersion" json:"medium_confidence_max_dispersion"`
	DeepAnalysisMinDQ       float64 `yaml:"deep_analysis_min_dq" json:"deep_analysis_min_dq"`
	DeepAnalysisMaxDisp     float64 `yaml:"deep_analysis_max_dispersion" json:"deep_analysis_max_dispersion"`
	HoldingMonthsHigh       int     `yaml:"holding_months_high" json:"holding_months_high"`
	HoldingMonthsMedium     int     `yaml:"holding_months_medium" json:"holding_months_medium"`
	HoldingMonthsLow        int     `yaml:"holding_months_low" json:"holding_months_low"`
}

// MonteCarloParams 시뮬레이션 설정
type MonteCarloParams struct {
	Iterations        int     `yaml:"iterations" json:"iterations"`
	DefaultVolatility float64 `yaml:"default_volatility" json:"default_volatility"`
	Seed              int64   `yaml:"seed" json:"seed"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Meta: Meta{ConfigID: "evidence_default", Version: "1.0.0"},
		Mode: ScoringMode{Kind: ModeDefault},
		Weights: Weights{
			Valuation: 0.30,
			Quality:   0.30,
			Technical: 0.20,
			Risk:      0.20,
		},
		Thresholds: Thresholds{
			PE:           Band{Low: 15, High: 30},
			PB:           Band{Low: 1.5, High: 5},
			PS:           Band{Low: 1.5, High: 6},
			PEG:          Band{Low: 1.0, High: 2.5},
			FCFYield:     Band{Low: 2, High: 8},
			ROE:          Band{Low: 8, High: 20},
			DebtToEquity: Band{Low: 0.5, High: 2.0},
			GrossMargin:  Band{Low: 20, High: 50},
		},
		Valuation: ValuationParams{
			PEWeight:       0.35,
			PBWeight:       0.20,
			PSWeight:       0.20,
			FCFYieldWeight: 0.25,
			MinComponents:  2,
		},
		Quality: QualityParams{
			MinComponents:         2,
			OverleveragedDebtToEq: 3.0,
		},
		Technical: TechnicalParams{
			Horizons: []Horizon{
				{Weeks: 13, Center: 0.03, HalfWidth: 0.15, Weight: 0.2},
				{Weeks: 26, Center: 0.06, HalfWidth: 0.25, Weight: 0.3},
				{Weeks: 52, Center: 0.10, HalfWidth: 0.40, Weight: 0.5},
			},
			MomentumWeight: 0.6,
			RangeWeight:    0.4,
			SweetSpotLow:   0.6,
			SweetSpotHigh:  0.8,
			NearHighScore:  70,
			NearLowScore:   20,
		},
		Risk: RiskParams{
			Steps: []RiskStep{
				{MaxVolatility: 0.15, Score: 100, Inclusive: true},
				{MaxVolatility: 0.20, Score: 85, Inclusive: true},
				{MaxVolatility: 0.25, Score: 70, Inclusive: true},
				{MaxVolatility: 0.30, Score: 50, Inclusive: true},
				{MaxVolatility: 0.35, Score: 30, Inclusive: true},
				{MaxVolatility: 0.40, Score: 15, Inclusive: false},
			},
			FloorScore: 5,
		},
		Resolver: ResolverParams{
			MinSampleSize: 5,
			StalenessDays: 30,
			OutlierSigma:  3.0,
		},
		PriceTarget: PriceTargetParams{
			PEWeight:                0.50,
			PBWeight:                0.25,
			PSWeight:                0.25,
			MinMedianRatio:          0.25,
			MaxMedianRatio:          4.0,
			MinPriceMultiple:        0.5,
			MaxPriceMultiple:        2.0,
			HighConfidenceDQ:        80,
			MediumConfidenceDQ:      60,
			HighConfidenceMaxDisp:   15,
			MediumConfidenceMaxDisp: 25,
			DeepAnalysisMinDQ:       60,
			DeepAnalysisMaxDisp:     25,
			HoldingMonthsHigh:       6,
			HoldingMonthsMedium:     9,
			HoldingMonthsLow:        12,
		},
		MonteCarlo: MonteCarloParams{
			Iterations:        1000,
			DefaultVolatility: 0.30,
			Seed:              42,
		},
	}
}
