package pricetarget

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"sort"

	"github.com/google/uuid"

	"github.com/wonny/evidence/internal/contracts"
	"github.com/wonny/evidence/internal/risk"
	"github.com/wonny/evidence/internal/scoringconfig"
)

// monteCarloNamespace scopes deterministic simulation ids
var monteCarloNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("evidence/monte-carlo"))

// MonteCarlo simulates terminal prices around a target
// ⭐ SSOT: 재현성을 위해 seed 는 설정 seed + 종목 해시로 고정
type MonteCarlo struct {
	params scoringconfig.MonteCarloParams
}

// NewMonteCarlo creates a simulator
func NewMonteCarlo(params scoringconfig.MonteCarloParams) *MonteCarlo {
	return &MonteCarlo{params: params}
}

// SeedFor derives the per-symbol seed
func (mc *MonteCarlo) SeedFor(symbol string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(symbol))
	return mc.params.Seed ^ int64(h.Sum64()&math.MaxInt64)
}

// Simulate runs a log-normal terminal price simulation with antithetic variates
// 중앙값 = target, σ = 3개월 변동성 (없으면 기본값), horizon = 보유 기간
func (mc *MonteCarlo) Simulate(symbol string, price, target float64, vol *float64, horizonMonths int) *contracts.MonteCarloDiagnostics {
	sigma := mc.params.DefaultVolatility
	if vol != nil && *vol > 0 {
		sigma = *vol
	}
	if horizonMonths <= 0 {
		horizonMonths = 12
	}

	// antithetic 쌍을 위해 짝수로 올림
	n := mc.params.Iterations
	if n%2 != 0 {
		n++
	}

	seed := mc.SeedFor(symbol)
	rng := rand.New(rand.NewSource(seed))

	t := float64(horizonMonths) / 12
	scale := sigma * math.Sqrt(t)
	logTarget := math.Log(target)

	prices := make([]float64, n)
	returns := make([]float64, n)
	for i := 0; i < n; i += 2 {
		z := rng.NormFloat64()
		prices[i] = math.Exp(logTarget + scale*z)
		prices[i+1] = math.Exp(logTarget - scale*z)
		returns[i] = prices[i]/price - 1
		returns[i+1] = prices[i+1]/price - 1
	}

	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)

	aboveTarget := 0
	for _, p := range prices {
		if p > target {
			aboveTarget++
		}
	}

	runID := uuid.NewSHA1(monteCarloNamespace,
		[]byte(fmt.Sprintf("%s|%d|%d|%.6f|%.6f|%.6f|%d", symbol, seed, n, price, target, sigma, horizonMonths)))

	return &contracts.MonteCarloDiagnostics{
		RunID:           runID.String(),
		Iterations:      n,
		Seed:            seed,
		HorizonMonths:   horizonMonths,
		Volatility:      round4(sigma),
		MeanReturn:      round4(risk.Mean(returns)),
		StdReturn:       round4(risk.StdDev(returns)),
		P10:             round2(risk.Percentile(sorted, 10)),
		P50:             round2(risk.Percentile(sorted, 50)),
		P90:             round2(risk.Percentile(sorted, 90)),
		ProbPositive:    round4(risk.FractionAbove(returns, 0)),
		ProbAboveTarget: round4(float64(aboveTarget) / float64(n)),
		VaR95:           round4(risk.CalculateVaR(returns, 0.95).VaR),
	}
}
