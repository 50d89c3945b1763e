package pillars

import "github.com/wonny/evidence/internal/scoringconfig"

// Band mapping anchor scores
const (
	bandFull  = 100.0
	bandEdge  = 20.0 // high(또는 low) 경계 점수
	bandFloor = 0.0
)

// LowerIsBetter maps v through a band where small values earn full credit
// v ≤ low → 100, low..high → 100..20 선형, high 이후 한 밴드 폭에 걸쳐 20..0
func LowerIsBetter(v float64, band scoringconfig.Band) float64 {
	width := band.High - band.Low
	switch {
	case v <= band.Low:
		return bandFull
	case v <= band.High:
		return bandFull - (bandFull-bandEdge)*(v-band.Low)/width
	default:
		return clamp(bandEdge-bandEdge*(v-band.High)/width, bandFloor, bandFull)
	}
}

// HigherIsBetter mirrors LowerIsBetter
// v ≥ high → 100, high..low → 100..20 선형, low 이하 한 밴드 폭에 걸쳐 20..0
func HigherIsBetter(v float64, band scoringconfig.Band) float64 {
	width := band.High - band.Low
	switch {
	case v >= band.High:
		return bandFull
	case v >= band.Low:
		return bandEdge + (bandFull-bandEdge)*(v-band.Low)/width
	default:
		return clamp(bandEdge-bandEdge*(band.Low-v)/width, bandFloor, bandFull)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp bounds a pillar score to [0, 100]
func Clamp(v float64) float64 {
	return clamp(v, 0, 100)
}
