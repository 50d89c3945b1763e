package resolver

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wonny/evidence/internal/contracts"
	"github.com/wonny/evidence/internal/scoringconfig"
)

// Data-quality penalties
const (
	penaltyMissingCritical = 15.0
	penaltyStale           = 10.0
	penaltyOutlier         = 2.0
	imputedCredit          = 0.5
)

// CriticalPrice is the technical field tracked alongside fundamentals
const CriticalPrice = "price"

// criticalFields must be observed or imputed for a trustworthy score
var criticalFields = []string{CriticalPrice, string(contracts.FieldMarketCap), string(contracts.FieldPE)}

// Metrics is one symbol's resolved snapshot
// ⭐ SSOT: 모든 수치는 실제 관측값이거나 assumptions 에 기록된 imputation
type Metrics struct {
	Symbol       string                      `json:"symbol"`
	Name         string                      `json:"name,omitempty"`
	Sector       string                      `json:"sector,omitempty"`
	Industry     string                      `json:"industry,omitempty"`
	Fundamentals *contracts.Fundamentals     `json:"fundamentals"`
	Technical    *contracts.TechnicalMetrics `json:"technical,omitempty"`
	DataQuality  contracts.DataQuality       `json:"data_quality"`
	NoData       bool                        `json:"no_data"`

	// Imputed maps each filled field to its median source
	Imputed map[contracts.FundamentalField]string `json:"imputed,omitempty"`

	observed int
	tracked  int
}

// Price returns the current price when available
func (m *Metrics) Price() (float64, bool) {
	if m == nil || m.Technical == nil || m.Technical.Price == nil || *m.Technical.Price <= 0 {
		return 0, false
	}
	return *m.Technical.Price, true
}

// IsImputed reports whether field was filled from a median
func (m *Metrics) IsImputed(field contracts.FundamentalField) bool {
	_, ok := m.Imputed[field]
	return ok
}

// Resolver fills missing fundamentals and tracks data quality
// ⭐ SSOT: imputation 규칙은 여기서만
type Resolver struct {
	params scoringconfig.ResolverParams
}

// New creates a resolver
func New(params scoringconfig.ResolverParams) *Resolver {
	return &Resolver{params: params}
}

// Resolve resolves one symbol against the run's medians
// 순수 함수: 같은 입력 → 같은 출력 (raw 는 변경하지 않음)
func (r *Resolver) Resolve(raw *contracts.RawSymbolData, medians *GroupMedians, now time.Time) *Metrics {
	m := &Metrics{
		Fundamentals: &contracts.Fundamentals{},
		Imputed:      make(map[contracts.FundamentalField]string),
	}
	if raw != nil {
		m.Symbol = raw.Symbol
		if raw.Profile != nil {
			m.Name = raw.Profile.Name
			m.Sector = raw.Profile.Sector
			m.Industry = raw.Profile.Industry
		}
		m.Technical = raw.Technical.Clone()
	}

	dq := &m.DataQuality
	dq.MissingCritical = []string{}
	dq.MissingFields = []string{}
	dq.OutlierFlags = []string{}
	dq.Assumptions = []string{}

	if raw.IsEmpty() {
		m.NoData = true
		dq.MissingCritical = []string{contracts.MissingCriticalAll}
		dq.Assumptions = append(dq.Assumptions, "no data fetched; imputation skipped")
		return m
	}

	if raw.Fundamentals != nil {
		m.Fundamentals = raw.Fundamentals.Clone()
		deriveFCFYield(m)
	}

	// === Imputation ===
	imputable := make(map[contracts.FundamentalField]bool)
	for _, field := range contracts.ImputableFields() {
		imputable[field] = true
	}

	for _, field := range contracts.AllFundamentalFields() {
		m.tracked++
		if m.Fundamentals.Get(field) != nil {
			m.observed++
			continue
		}
		if !imputable[field] {
			dq.MissingFields = append(dq.MissingFields, string(field))
			continue
		}
		st, source, ok := medians.Lookup(m.Sector, field)
		if !ok {
			dq.MissingFields = append(dq.MissingFields, string(field))
			continue
		}
		m.Fundamentals.Set(field, contracts.Float(st.Median))
		m.Imputed[field] = source
		dq.Assumptions = append(dq.Assumptions, imputationNote(field, source, m.Sector, st))
	}

	// 가격 (technical 필드지만 critical)
	m.tracked++
	if _, ok := m.Price(); ok {
		m.observed++
	} else {
		dq.MissingFields = append(dq.MissingFields, CriticalPrice)
	}

	// === Critical ===
	for _, c := range criticalFields {
		if c == CriticalPrice {
			if _, ok := m.Price(); !ok {
				dq.MissingCritical = append(dq.MissingCritical, c)
			}
			continue
		}
		if m.Fundamentals.Get(contracts.FundamentalField(c)) == nil {
			dq.MissingCritical = append(dq.MissingCritical, c)
		}
	}

	// === Staleness ===
	if raw.Fundamentals != nil && !raw.Fundamentals.AsOf.IsZero() {
		age := now.Sub(raw.Fundamentals.AsOf).Hours() / 24
		age = math.Round(age*10) / 10
		dq.FundamentalsAgeDays = contracts.Float(age)
		if age > float64(r.params.StalenessDays) {
			dq.StaleFundamentals = true
			dq.Assumptions = append(dq.Assumptions,
				fmt.Sprintf("fundamentals are %.0f days old (threshold %d)", age, r.params.StalenessDays))
		}
	}

	if raw.Profile == nil {
		dq.Assumptions = append(dq.Assumptions, "profile unavailable; sector medians not applicable")
	}

	recompute(m)
	return m
}

// ResolveAll resolves every raw record against the same medians
func (r *Resolver) ResolveAll(raws []*contracts.RawSymbolData, medians *GroupMedians, now time.Time) []*Metrics {
	out := make([]*Metrics, len(raws))
	for i, raw := range raws {
		out[i] = r.Resolve(raw, medians, now)
	}
	return out
}

// deriveFCFYield fills fcfYield (%) from free cash flow and market cap when absent
func deriveFCFYield(m *Metrics) {
	f := m.Fundamentals
	if f.FCFYield != nil || f.FreeCashFlow == nil || f.MarketCap == nil || *f.MarketCap <= 0 {
		return
	}
	f.FCFYield = contracts.Float(*f.FreeCashFlow / *f.MarketCap * 100)
	m.DataQuality.Assumptions = append(m.DataQuality.Assumptions, "fcfYield derived from freeCashFlow / marketCap")
}

func imputationNote(field contracts.FundamentalField, source, sector string, st GroupStat) string {
	if source == SourceSector {
		return fmt.Sprintf("%s imputed from sector median (%s, n=%d)", field, sector, st.N)
	}
	return fmt.Sprintf("%s imputed from global median (n=%d)", field, st.N)
}

// recompute derives the data-quality score from the counters and flags
func recompute(m *Metrics) {
	dq := &m.DataQuality
	if m.NoData || m.tracked == 0 {
		return
	}
	imputed := len(m.Imputed)

	dq.CompletenessRatio = round4(float64(m.observed) / float64(m.tracked))
	dq.ImputedRatio = round4(float64(imputed) / float64(m.tracked))

	score := 100 * (float64(m.observed) + imputedCredit*float64(imputed)) / float64(m.tracked)
	score -= penaltyMissingCritical * float64(len(dq.MissingCritical))
	if dq.StaleFundamentals {
		score -= penaltyStale
	}
	score -= penaltyOutlier * float64(len(dq.OutlierFlags))

	dq.Score = math.Round(clamp(score, 0, 100)*100) / 100
}

// MergeOutlierFlags appends flags and recomputes the score
// 값은 절대 수정하지 않음 (flag 만)
func (m *Metrics) MergeOutlierFlags(flags []string) {
	if len(flags) == 0 {
		return
	}
	seen := make(map[string]bool, len(m.DataQuality.OutlierFlags))
	for _, f := range m.DataQuality.OutlierFlags {
		seen[f] = true
	}
	for _, f := range flags {
		if !seen[f] {
			m.DataQuality.OutlierFlags = append(m.DataQuality.OutlierFlags, f)
			seen[f] = true
		}
	}
	sort.Strings(m.DataQuality.OutlierFlags)
	recompute(m)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
