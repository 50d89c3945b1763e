package selection

import (
	"github.com/wonny/evidence/internal/contracts"
	"github.com/wonny/evidence/pkg/logger"
)

// Screener applies hard cuts before a symbol may be published
// ⭐ SSOT: 게시 대상 hard cut 은 여기서만 (점수 계산에는 영향 없음)
type Screener struct {
	config ScreenerConfig
	logger *logger.Logger
}

// ScreenerConfig defines hard cut conditions
type ScreenerConfig struct {
	// Data quality
	MinDataQuality     float64 // dataQualityScore 최소값 (예: 40)
	ExcludeNoData      bool    // missingCritical=["all"] (neutral fallback) 제외
	ExcludeStale       bool    // stale fundamentals 제외
	MaxMissingCritical int     // critical 누락 허용 개수 (음수 = 제한 없음)

	// Quality gate
	ExcludeRedFlagged bool // red flag 가 하나라도 있으면 제외

	// Pillar floors
	MinValuation float64
	MinQuality   float64
}

// NewScreener creates a new screener
func NewScreener(config ScreenerConfig, log *logger.Logger) *Screener {
	return &Screener{
		config: config,
		logger: log,
	}
}

// Screen returns the scores that pass every hard cut, preserving input order
func (s *Screener) Screen(scores []contracts.SymbolScore) []contracts.SymbolScore {
	passed := make([]contracts.SymbolScore, 0, len(scores))
	filtered := make(map[string]int) // filter name → count

	for _, score := range scores {
		if reason := s.checkConditions(&score); reason != "" {
			filtered[reason]++
			continue
		}
		passed = append(passed, score)
	}

	s.logger.WithFields(map[string]interface{}{
		"total_input":  len(scores),
		"passed":       len(passed),
		"filtered_out": len(scores) - len(passed),
		"filters":      filtered,
	}).Debug("Screening completed")

	return passed
}

// checkConditions returns an empty string if passed, otherwise the filter name
func (s *Screener) checkConditions(score *contracts.SymbolScore) string {
	dq := score.DataQuality

	if s.config.ExcludeNoData && isNoData(dq) {
		return "no_data"
	}

	if dq.Score < s.config.MinDataQuality {
		return "data_quality"
	}

	if s.config.MaxMissingCritical >= 0 && len(dq.MissingCritical) > s.config.MaxMissingCritical {
		return "missing_critical"
	}

	if s.config.ExcludeStale && dq.StaleFundamentals {
		return "stale"
	}

	if s.config.ExcludeRedFlagged && len(score.RedFlags) > 0 {
		return "red_flag"
	}

	if score.Evidence.Valuation < s.config.MinValuation {
		return "valuation"
	}

	if score.Evidence.Quality < s.config.MinQuality {
		return "quality"
	}

	return ""
}

func isNoData(dq contracts.DataQuality) bool {
	for _, c := range dq.MissingCritical {
		if c == contracts.MissingCriticalAll {
			return true
		}
	}
	return false
}

// DefaultScreenerConfig returns default configuration
func DefaultScreenerConfig() ScreenerConfig {
	return ScreenerConfig{
		MinDataQuality:     40,
		ExcludeNoData:      true,
		ExcludeStale:       false,
		MaxMissingCritical: -1,
		ExcludeRedFlagged:  false,
		MinValuation:       0,
		MinQuality:         0,
	}
}
