package contracts

// Pipeline Phase 정의 (SSOT)
// 모든 로그, 진행률 이벤트, 메타데이터에서 이 상수를 사용해야 함
//
// 파이프라인 흐름:
//   init → filtering → fetching → resolving → scan_scoring → selecting
//        → deep_scoring → monte_carlo_refine → finalizing → done | failed

// Phase represents one state of a scoring run
type Phase string

const (
	// PhaseInit: run id, config hash, 입력 검증
	PhaseInit Phase = "init"

	// PhaseFiltering: 유니버스 제외 규칙 적용 (네트워크 비용 발생 전)
	// 위치: internal/universe/
	PhaseFiltering Phase = "filtering"

	// PhaseFetching: 원천 데이터 수집 (worker pool 또는 batch)
	// 위치: internal/fetch/
	PhaseFetching Phase = "fetching"

	// PhaseResolving: 섹터/글로벌 중앙값 기반 보간 + 이상치 플래그
	// 위치: internal/resolver/
	PhaseResolving Phase = "resolving"

	// PhaseScanScoring: 전 종목 pillar 점수 (price target 없음)
	// 위치: internal/pillars/
	PhaseScanScoring Phase = "scan_scoring"

	// PhaseSelecting: 점수 내림차순, 동점은 심볼 오름차순, top-K 선택
	PhaseSelecting Phase = "selecting"

	// PhaseDeepScoring: top-K 종목만 price target 포함 재채점
	// 위치: internal/pricetarget/
	PhaseDeepScoring Phase = "deep_scoring"

	// PhaseMonteCarloRefine: top-30 ∩ requiresDeepAnalysis 만 Monte Carlo
	PhaseMonteCarloRefine Phase = "monte_carlo_refine"

	// PhaseFinalizing: 정렬, 품질 요약, 시장 국면, 결과 조립
	PhaseFinalizing Phase = "finalizing"

	PhaseDone   Phase = "done"
	PhaseFailed Phase = "failed"
)

// String returns the phase name
func (p Phase) String() string {
	return string(p)
}

// Description returns a short human description of the phase
func (p Phase) Description() string {
	switch p {
	case PhaseInit:
		return "초기화"
	case PhaseFiltering:
		return "유니버스 필터링"
	case PhaseFetching:
		return "데이터 수집"
	case PhaseResolving:
		return "지표 보간/이상치"
	case PhaseScanScoring:
		return "스캔 채점"
	case PhaseSelecting:
		return "후보 선택"
	case PhaseDeepScoring:
		return "심층 채점"
	case PhaseMonteCarloRefine:
		return "몬테카를로 보정"
	case PhaseFinalizing:
		return "결과 확정"
	case PhaseDone:
		return "완료"
	case PhaseFailed:
		return "실패"
	default:
		return "알 수 없음"
	}
}

// IsTerminal reports whether the run has stopped
func (p Phase) IsTerminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// Index returns the position of the phase in the run order, -1 for failed/unknown
func (p Phase) Index() int {
	for i, phase := range AllPhases() {
		if phase == p {
			return i
		}
	}
	return -1
}

// AllPhases returns the happy-path phases in order
func AllPhases() []Phase {
	return []Phase{
		PhaseInit,
		PhaseFiltering,
		PhaseFetching,
		PhaseResolving,
		PhaseScanScoring,
		PhaseSelecting,
		PhaseDeepScoring,
		PhaseMonteCarloRefine,
		PhaseFinalizing,
		PhaseDone,
	}
}

// IsValidPhase checks if a phase string is valid
func IsValidPhase(s string) bool {
	if Phase(s) == PhaseFailed {
		return true
	}
	return Phase(s).Index() >= 0
}
