package resolver

import (
	"math"

	"github.com/wonny/evidence/internal/contracts"
)

// outlierFields are checked cross-sectionally
var outlierFields = []contracts.FundamentalField{
	contracts.FieldPE,
	contracts.FieldPB,
	contracts.FieldPS,
	contracts.FieldROE,
	contracts.FieldDebtToEquity,
	contracts.FieldGrossMargin,
	contracts.FieldFCFYield,
}

type moments struct {
	mean, std float64
	n         int
}

func computeMoments(values []float64) moments {
	n := len(values)
	if n == 0 {
		return moments{}
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return moments{mean: mean, std: math.Sqrt(variance / float64(n)), n: n}
}

// DetectOutliers flags observed values more than sigma standard deviations from their sector mean
// sector 표본 < minSample → global 통계 사용. imputed 값은 검사 대상 아님
func DetectOutliers(resolved []*Metrics, sigma float64, minSample int) {
	type key struct {
		sector string
		field  contracts.FundamentalField
	}
	groups := make(map[key][]float64)
	global := make(map[contracts.FundamentalField][]float64)

	observedValue := func(m *Metrics, field contracts.FundamentalField) (float64, bool) {
		if m == nil || m.NoData || m.IsImputed(field) {
			return 0, false
		}
		v := m.Fundamentals.Get(field)
		if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
			return 0, false
		}
		return *v, true
	}

	for _, m := range resolved {
		for _, field := range outlierFields {
			v, ok := observedValue(m, field)
			if !ok {
				continue
			}
			global[field] = append(global[field], v)
			if m.Sector != "" {
				k := key{m.Sector, field}
				groups[k] = append(groups[k], v)
			}
		}
	}

	sectorStats := make(map[key]moments, len(groups))
	for k, values := range groups {
		sectorStats[k] = computeMoments(values)
	}
	globalStats := make(map[contracts.FundamentalField]moments, len(global))
	for field, values := range global {
		globalStats[field] = computeMoments(values)
	}

	for _, m := range resolved {
		var flags []string
		for _, field := range outlierFields {
			v, ok := observedValue(m, field)
			if !ok {
				continue
			}
			st, ok := sectorStats[key{m.Sector, field}]
			if !ok || st.n < minSample {
				st = globalStats[field]
			}
			if st.n < minSample || st.std == 0 {
				continue
			}
			if math.Abs(v-st.mean) > sigma*st.std {
				flags = append(flags, string(field)+"_outlier")
			}
		}
		if m != nil {
			m.MergeOutlierFlags(flags)
		}
	}
}
