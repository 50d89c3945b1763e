package scoringconfig

import (
	"errors"
	"fmt"
	"math"
)

// ValidationError 검증 실패 (run 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// WeightEpsilon pillar 가중치 합 허용 오차
const WeightEpsilon = 1e-6

// Validate checks all required constraints
// 실패 시 error 반환 (run 중단)
func Validate(cfg *Config) error {
	// === Mode ===
	if !cfg.Mode.Kind.IsValid() {
		return ValidationError{"mode.kind", fmt.Sprintf("unsupported mode %q", cfg.Mode.Kind)}
	}
	if cfg.Mode.PEGBlend < 0 || cfg.Mode.PEGBlend > 1 {
		return ValidationError{"mode.peg_blend", "must be in range [0, 1]"}
	}

	// === Weights ===
	w := cfg.Weights
	if err := validateWeightsSum([]float64{w.Valuation, w.Quality, w.Technical, w.Risk}, 1.0, WeightEpsilon); err != nil {
		return ValidationError{"weights", err.Error()}
	}

	// === Thresholds ===
	bands := []struct {
		field string
		band  Band
	}{
		{"thresholds.pe", cfg.Thresholds.PE},
		{"thresholds.pb", cfg.Thresholds.PB},
		{"thresholds.ps", cfg.Thresholds.PS},
		{"thresholds.peg", cfg.Thresholds.PEG},
		{"thresholds.fcf_yield", cfg.Thresholds.FCFYield},
		{"thresholds.roe", cfg.Thresholds.ROE},
		{"thresholds.debt_to_equity", cfg.Thresholds.DebtToEquity},
		{"thresholds.gross_margin", cfg.Thresholds.GrossMargin},
	}
	for _, b := range bands {
		if b.band.Low >= b.band.High {
			return ValidationError{b.field, fmt.Sprintf("low (%.4f) must be < high (%.4f)", b.band.Low, b.band.High)}
		}
	}

	// === Valuation / Quality ===
	v := cfg.Valuation
	if err := validateWeightsSum([]float64{v.PEWeight, v.PBWeight, v.PSWeight, v.FCFYieldWeight}, 1.0, WeightEpsilon); err != nil {
		return ValidationError{"valuation", err.Error()}
	}
	if v.MinComponents < 1 || v.MinComponents > 4 {
		return ValidationError{"valuation.min_components", "must be in range [1, 4]"}
	}
	if cfg.Quality.MinComponents < 1 || cfg.Quality.MinComponents > 3 {
		return ValidationError{"quality.min_components", "must be in range [1, 3]"}
	}

	// === Technical ===
	t := cfg.Technical
	if len(t.Horizons) == 0 {
		return ValidationError{"technical.horizons", "required"}
	}
	for i, h := range t.Horizons {
		if h.HalfWidth <= 0 {
			return ValidationError{fmt.Sprintf("technical.horizons[%d].half_width", i), "must be > 0"}
		}
		if h.Weight <= 0 {
			return ValidationError{fmt.Sprintf("technical.horizons[%d].weight", i), "must be > 0"}
		}
	}
	if err := validateWeightsSum([]float64{t.MomentumWeight, t.RangeWeight}, 1.0, WeightEpsilon); err != nil {
		return ValidationError{"technical", err.Error()}
	}
	if t.SweetSpotLow <= 0 || t.SweetSpotLow >= t.SweetSpotHigh || t.SweetSpotHigh >= 1 {
		return ValidationError{"technical.sweet_spot", "must satisfy 0 < low < high < 1"}
	}

	// === Risk ===
	if len(cfg.Risk.Steps) == 0 {
		return ValidationError{"risk.steps", "required"}
	}
	for i := 1; i < len(cfg.Risk.Steps); i++ {
		prev, cur := cfg.Risk.Steps[i-1], cfg.Risk.Steps[i]
		if cur.MaxVolatility <= prev.MaxVolatility {
			return ValidationError{fmt.Sprintf("risk.steps[%d].max_volatility", i), "must be ascending"}
		}
		if cur.Score > prev.Score {
			return ValidationError{fmt.Sprintf("risk.steps[%d].score", i), "must be non-increasing"}
		}
	}

	// === Resolver ===
	if cfg.Resolver.MinSampleSize < 1 {
		return ValidationError{"resolver.min_sample_size", "must be >= 1"}
	}
	if cfg.Resolver.StalenessDays < 1 {
		return ValidationError{"resolver.staleness_days", "must be >= 1"}
	}
	if cfg.Resolver.OutlierSigma <= 0 {
		return ValidationError{"resolver.outlier_sigma", "must be > 0"}
	}

	// === PriceTarget ===
	pt := cfg.PriceTarget
	if err := validateWeightsSum([]float64{pt.PEWeight, pt.PBWeight, pt.PSWeight}, 1.0, WeightEpsilon); err != nil {
		return ValidationError{"price_target", err.Error()}
	}
	if pt.MinMedianRatio <= 0 || pt.MinMedianRatio >= pt.MaxMedianRatio {
		return ValidationError{"price_target.median_ratio", "must satisfy 0 < min < max"}
	}
	if pt.MinPriceMultiple <= 0 || pt.MinPriceMultiple >= 1 || pt.MaxPriceMultiple <= 1 {
		return ValidationError{"price_target.price_multiple", "must satisfy 0 < min < 1 < max"}
	}

	// === MonteCarlo ===
	if cfg.MonteCarlo.Iterations < 2 {
		return ValidationError{"monte_carlo.iterations", "must be >= 2"}
	}
	if cfg.MonteCarlo.DefaultVolatility <= 0 {
		return ValidationError{"monte_carlo.default_volatility", "must be > 0"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	if cfg.Resolver.MinSampleSize < 3 {
		warnings = append(warnings, Warning{
			Code:    "SMALL_MEDIAN_SAMPLE",
			Message: "min_sample_size < 3: 섹터 중앙값이 소수 종목에 좌우됨",
		})
	}

	if cfg.Weights.Technical+cfg.Weights.Risk > 0.7 && cfg.Mode.Kind != ModeETF {
		warnings = append(warnings, Warning{
			Code:    "PRICE_HEAVY_WEIGHTS",
			Message: "technical+risk > 70%: 펀더멘털 근거가 약함",
		})
	}

	if cfg.MonteCarlo.Iterations%2 != 0 {
		warnings = append(warnings, Warning{
			Code:    "ODD_ITERATIONS",
			Message: "antithetic 쌍을 위해 iterations 가 짝수로 올림됨",
		})
	}

	return warnings
}

// === Helper Functions ===

func validateWeightsSum(weights []float64, target float64, epsilon float64) error {
	if len(weights) == 0 {
		return errors.New("must not be empty")
	}
	sum := 0.0
	for _, w := range weights {
		if w < 0 {
			return fmt.Errorf("weights must be >= 0, got %.4f", w)
		}
		sum += w
	}
	if math.Abs(sum-target) > epsilon {
		return fmt.Errorf("must sum to %.2f, got %.4f", target, sum)
	}
	return nil
}
