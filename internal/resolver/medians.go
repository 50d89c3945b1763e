package resolver

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/wonny/evidence/internal/contracts"
)

// ErrNoFundamentals is returned when no symbol produced usable fundamentals
var ErrNoFundamentals = errors.New("no fundamentals available to build medians")

// Median source labels
const (
	SourceSector = "sector"
	SourceGlobal = "global"
)

// GroupStat is the median of one field within a group
type GroupStat struct {
	Median float64 `json:"median"`
	N      int     `json:"n"`
}

// GroupMedians holds cross-sectional medians per sector plus a global set
// ⭐ SSOT: Resolving 단계에서 한 번 생성, 이후 읽기 전용 (락 불필요)
type GroupMedians struct {
	Sector    map[string]map[contracts.FundamentalField]GroupStat `json:"sector"`
	Global    map[contracts.FundamentalField]GroupStat            `json:"global"`
	MinSample int                                                 `json:"min_sample"`
}

// positiveOnly fields are multiples where a non-positive value is meaningless
var positiveOnly = map[contracts.FundamentalField]bool{
	contracts.FieldPE:  true,
	contracts.FieldPB:  true,
	contracts.FieldPS:  true,
	contracts.FieldPEG: true,
}

// usable reports whether v may enter a median for field
func usable(field contracts.FundamentalField, v *float64) bool {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return false
	}
	if positiveOnly[field] && *v <= 0 {
		return false
	}
	return true
}

// BuildMedians computes sector and global medians from successfully fetched fundamentals
// 관측값만 사용 (imputed 값은 입력에 없음). 펀더멘털 전무 → PipelineError
func BuildMedians(raws []*contracts.RawSymbolData, minSample int) (*GroupMedians, error) {
	if minSample < 1 {
		minSample = 1
	}

	bySector := make(map[string]map[contracts.FundamentalField][]float64)
	global := make(map[contracts.FundamentalField][]float64)
	withFundamentals := 0

	for _, raw := range raws {
		if raw == nil || raw.Fundamentals == nil {
			continue
		}
		withFundamentals++
		sector := raw.Sector()

		for _, field := range contracts.ImputableFields() {
			v := raw.Fundamentals.Get(field)
			if !usable(field, v) {
				continue
			}
			global[field] = append(global[field], *v)
			if sector == "" {
				continue
			}
			if bySector[sector] == nil {
				bySector[sector] = make(map[contracts.FundamentalField][]float64)
			}
			bySector[sector][field] = append(bySector[sector][field], *v)
		}
	}

	if withFundamentals == 0 || len(global) == 0 {
		return nil, contracts.NewPipelineError(contracts.PhaseResolving,
			fmt.Errorf("%w (%d symbols)", ErrNoFundamentals, len(raws)))
	}

	gm := &GroupMedians{
		Sector:    make(map[string]map[contracts.FundamentalField]GroupStat, len(bySector)),
		Global:    make(map[contracts.FundamentalField]GroupStat, len(global)),
		MinSample: minSample,
	}
	for field, values := range global {
		if len(values) >= minSample {
			gm.Global[field] = GroupStat{Median: Median(values), N: len(values)}
		}
	}
	for sector, fields := range bySector {
		stats := make(map[contracts.FundamentalField]GroupStat)
		for field, values := range fields {
			if len(values) >= minSample {
				stats[field] = GroupStat{Median: Median(values), N: len(values)}
			}
		}
		if len(stats) > 0 {
			gm.Sector[sector] = stats
		}
	}

	return gm, nil
}

// Lookup returns the sector median when available, else the global median
func (m *GroupMedians) Lookup(sector string, field contracts.FundamentalField) (GroupStat, string, bool) {
	if m == nil {
		return GroupStat{}, "", false
	}
	if stats, ok := m.Sector[sector]; ok {
		if st, ok := stats[field]; ok {
			return st, SourceSector, true
		}
	}
	if st, ok := m.Global[field]; ok {
		return st, SourceGlobal, true
	}
	return GroupStat{}, "", false
}

// Median returns the median of values (input is not modified)
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
