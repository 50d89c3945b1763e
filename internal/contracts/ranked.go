package contracts

import (
	"sort"
	"time"
)

// MarketMode is the regime classifier output
type MarketMode struct {
	Label    string  `json:"label"`
	Score    float64 `json:"score"`
	Breadth  float64 `json:"breadth"`
	Fallback bool    `json:"fallback,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

// Regime labels
const (
	ModeRiskOn  = "risk_on"
	ModeNeutral = "neutral"
	ModeRiskOff = "risk_off"
)

// NeutralMode is used when the classifier fails
func NeutralMode(reason string) MarketMode {
	return MarketMode{
		Label:    ModeNeutral,
		Score:    ScoreNeutral,
		Fallback: true,
		Reason:   reason,
	}
}

// Selection holds ranked subsets of symbols
type Selection struct {
	Top5  []string `json:"top5"`
	Top10 []string `json:"top10"`
	Top20 []string `json:"top20"`
	Top30 []string `json:"top30"`
}

// SymbolError records an isolated per-symbol failure
type SymbolError struct {
	Symbol   string `json:"symbol"`
	Phase    Phase  `json:"phase"`
	Provider string `json:"provider,omitempty"`
	Method   string `json:"method,omitempty"`
	Message  string `json:"message"`
}

// ExcludedSymbol records a symbol removed during filtering
type ExcludedSymbol struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// FetchStatsSnapshot is the run's request budget report
type FetchStatsSnapshot struct {
	CacheHits        map[string]int64 `json:"cache_hits"`
	CacheMisses      map[string]int64 `json:"cache_misses"`
	ProviderRequests int64            `json:"provider_requests"`
	FallbackRequests int64            `json:"fallback_requests"`
	BatchRequests    int64            `json:"batch_requests"`
	ProviderErrors   int64            `json:"provider_errors"`
	ThrottleWaitMs   int64            `json:"throttle_wait_ms"`
}

// HitRatio returns cache hits / lookups across all classes
func (s FetchStatsSnapshot) HitRatio() float64 {
	var hits, total int64
	for _, v := range s.CacheHits {
		hits += v
		total += v
	}
	for _, v := range s.CacheMisses {
		total += v
	}
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// DataQualitySummary aggregates per-symbol quality for the run
type DataQualitySummary struct {
	AvgScore             float64 `json:"avg_score"`
	MinScore             float64 `json:"min_score"`
	AvgImputedRatio      float64 `json:"avg_imputed_ratio"`
	StaleCount           int     `json:"stale_count"`
	StaleRatio           float64 `json:"stale_ratio"`
	StaleAlert           bool    `json:"stale_alert"`
	MissingCriticalCount int     `json:"missing_critical_count"`
	OutlierCount         int     `json:"outlier_count"`
	FallbackCount        int     `json:"fallback_count"`
}

// RunMetadata carries pipeline and request-budget stats
type RunMetadata struct {
	Universe         string             `json:"universe"`
	Preset           string             `json:"preset"`
	ConfigHash       string             `json:"config_hash"`
	StartedAt        time.Time          `json:"started_at"`
	CompletedAt      time.Time          `json:"completed_at"`
	DurationMs       int64              `json:"duration_ms"`
	UniverseSize     int                `json:"universe_size"`
	Excluded         []ExcludedSymbol   `json:"excluded"`
	ScoredCount      int                `json:"scored_count"`
	DeepCount        int                `json:"deep_count"`
	MonteCarloCount  int                `json:"monte_carlo_count"`
	TopK             int                `json:"top_k"`
	Selection        Selection          `json:"selection"`
	Errors           []SymbolError      `json:"errors"`
	FetchStats       FetchStatsSnapshot `json:"fetch_stats"`
	PhaseDurationsMs map[Phase]int64    `json:"phase_durations_ms"`
}

// ScoringResult is the run's persisted artifact
// ⭐ SSOT: 외부 소비자(히스토리, diff, UI)는 이 형태만 사용
type ScoringResult struct {
	RunID              string             `json:"run_id"`
	Scores             []SymbolScore      `json:"scores"`
	Mode               MarketMode         `json:"mode"`
	DataQualitySummary DataQualitySummary `json:"data_quality_summary"`
	Metadata           RunMetadata        `json:"metadata"`
}

// Get returns the score for a symbol
func (r *ScoringResult) Get(symbol string) (*SymbolScore, bool) {
	for i := range r.Scores {
		if r.Scores[i].Symbol == symbol {
			return &r.Scores[i], true
		}
	}
	return nil, false
}

// SortByRank orders scores by total score desc, symbol asc on ties
func SortByRank(scores []SymbolScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].TotalScore != scores[j].TotalScore {
			return scores[i].TotalScore > scores[j].TotalScore
		}
		return scores[i].Symbol < scores[j].Symbol
	})
}

// SortBySymbol orders scores by symbol ascending
func SortBySymbol(scores []SymbolScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Symbol < scores[j].Symbol
	})
}
