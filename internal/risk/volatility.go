package risk

import "math"

// TradingDaysPerYear 연율화 기준
const TradingDaysPerYear = 252

// LogReturns 종가 시계열 → 일별 로그 수익률
// 0 이하 가격 구간은 건너뜀
func LogReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev, cur := closes[i-1], closes[i]
		if prev <= 0 || cur <= 0 {
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// AnnualizedVolatility 일별 수익률 표준편차 × √252
func AnnualizedVolatility(dailyReturns []float64) float64 {
	return StdDev(dailyReturns) * math.Sqrt(TradingDaysPerYear)
}
