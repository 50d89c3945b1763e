package brain

import (
	"math"
	"sort"

	"github.com/wonny/evidence/internal/contracts"
)

// Summarize aggregates per-symbol data quality for the run
// staleRatio > alertRatio → StaleAlert (경고만, 실패 아님)
func Summarize(scores []contracts.SymbolScore, alertRatio float64) contracts.DataQualitySummary {
	var sum contracts.DataQualitySummary
	if len(scores) == 0 {
		return sum
	}

	var dqTotal, imputedTotal float64
	sum.MinScore = math.MaxFloat64
	for i := range scores {
		dq := &scores[i].DataQuality
		dqTotal += dq.Score
		imputedTotal += dq.ImputedRatio
		if dq.Score < sum.MinScore {
			sum.MinScore = dq.Score
		}
		if dq.StaleFundamentals {
			sum.StaleCount++
		}
		if len(dq.MissingCritical) > 0 {
			sum.MissingCriticalCount++
		}
		if len(dq.OutlierFlags) > 0 {
			sum.OutlierCount++
		}
		if len(dq.Provenance) > 0 {
			sum.FallbackCount++
		}
	}

	n := float64(len(scores))
	sum.AvgScore = round2(dqTotal / n)
	sum.AvgImputedRatio = round4(imputedTotal / n)
	sum.StaleRatio = round4(float64(sum.StaleCount) / n)
	sum.StaleAlert = float64(sum.StaleCount)/n > alertRatio
	return sum
}

// isNeutral reports whether a record is the documented no-data fallback
func isNeutral(s *contracts.SymbolScore) bool {
	mc := s.DataQuality.MissingCritical
	return len(mc) == 1 && mc[0] == contracts.MissingCriticalAll
}

// sortErrors orders errors by symbol, then phase order
func sortErrors(errs []contracts.SymbolError) {
	sort.SliceStable(errs, func(i, j int) bool {
		if errs[i].Symbol != errs[j].Symbol {
			return errs[i].Symbol < errs[j].Symbol
		}
		return errs[i].Phase.Index() < errs[j].Phase.Index()
	})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
