package brain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/evidence/internal/contracts"
	"github.com/wonny/evidence/internal/fetch"
	"github.com/wonny/evidence/internal/progress"
	"github.com/wonny/evidence/internal/resolver"
	"github.com/wonny/evidence/internal/scoring"
	"github.com/wonny/evidence/internal/scoringconfig"
	"github.com/wonny/evidence/internal/technicals"
	"github.com/wonny/evidence/internal/universe"
	"github.com/wonny/evidence/pkg/logger"
	"github.com/wonny/evidence/pkg/metrics"
)

// ErrEmptyUniverse is returned when filtering leaves nothing to score
var ErrEmptyUniverse = errors.New("no symbols left after filtering")

// Dependencies are the collaborators of a scorer
type Dependencies struct {
	Fetcher    *fetch.Fetcher
	Selector   contracts.Selector
	Classifier contracts.RegimeClassifier // nil → neutral mode
	Progress   contracts.ProgressSink     // nil → no-op
	Store      contracts.ResultStore      // nil → 저장 안 함
	Metrics    *metrics.Recorder          // nil → 기록 안 함
}

// Options holds pipeline settings
type Options struct {
	FetchConcurrency      int     // 기본 4
	ScoreConcurrency      int     // 기본 4
	MonteCarloConcurrency int     // 기본 2
	TopK                  int     // deep 단계 대상 수 (기본 50)
	MonteCarloTopN        int     // Monte Carlo 후보 상한 (기본 30)
	UseBatch              bool    // BatchProvider 사용
	StaleAlertRatio       float64 // 기본 0.10
	Benchmark             string  // 기본 SPY
	BenchmarkDays         int     // 기본 400
}

// DefaultOptions returns default pipeline settings
func DefaultOptions() Options {
	return Options{
		FetchConcurrency:      4,
		ScoreConcurrency:      4,
		MonteCarloConcurrency: 2,
		TopK:                  50,
		MonteCarloTopN:        30,
		StaleAlertRatio:       0.10,
		Benchmark:             "SPY",
		BenchmarkDays:         400,
	}
}

// RunRequest describes one scoring run
type RunRequest struct {
	Universe *universe.Definition
	Config   *scoringconfig.Config // nil → Default()
	Preset   string
	RunID    string    // 비어 있으면 생성
	Now      time.Time // 0 → time.Now()
	Persist  bool
}

// UniverseScorer runs the two-phase scoring pipeline
// ⭐ SSOT: 파이프라인 조율은 여기서만
//
//	init → filtering → fetching → resolving → scan_scoring → selecting
//	     → deep_scoring → monte_carlo_refine → finalizing → done | failed
type UniverseScorer struct {
	deps   Dependencies
	opts   Options
	logger *logger.Logger
}

// NewUniverseScorer creates a scorer
func NewUniverseScorer(deps Dependencies, opts Options, log *logger.Logger) *UniverseScorer {
	if deps.Progress == nil {
		deps.Progress = progress.Nop{}
	}
	def := DefaultOptions()
	if opts.TopK < 1 {
		opts.TopK = def.TopK
	}
	if opts.MonteCarloTopN < 1 {
		opts.MonteCarloTopN = def.MonteCarloTopN
	}
	if opts.StaleAlertRatio <= 0 {
		opts.StaleAlertRatio = def.StaleAlertRatio
	}
	if opts.BenchmarkDays < 1 {
		opts.BenchmarkDays = def.BenchmarkDays
	}
	if opts.ScoreConcurrency < 1 {
		opts.ScoreConcurrency = opts.FetchConcurrency
	}
	return &UniverseScorer{
		deps:   deps,
		opts:   opts,
		logger: log.WithField("module", "universe_scorer"),
	}
}

// run is the mutable state of one Run call
type run struct {
	id        string
	now       time.Time
	cfg       *scoringconfig.Config
	hash      string
	stats     *fetch.Stats
	logger    *logger.Logger
	phase     contracts.Phase
	started   time.Time
	phaseFrom time.Time
	durations map[contracts.Phase]int64

	mu     sync.Mutex
	errors []contracts.SymbolError
}

func (r *run) addError(symbol string, phase contracts.Phase, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, contracts.SymbolErrorFrom(symbol, phase, err))
}

// Run executes the pipeline
// 종목 단위 실패는 errors[] 로 격리, 실행 전제 조건 실패만 PipelineError 로 반환
func (s *UniverseScorer) Run(ctx context.Context, req RunRequest) (*contracts.ScoringResult, error) {
	r, err := s.initRun(req)
	if err != nil {
		return nil, err
	}
	s.enter(r, contracts.PhaseInit)

	r.logger.WithFields(map[string]interface{}{
		"universe":    req.Universe.Universe.Name,
		"members":     req.Universe.Universe.Count(),
		"preset":      req.Preset,
		"config_hash": r.hash,
		"top_k":       s.opts.TopK,
		"batch":       s.opts.UseBatch,
	}).Info("Starting scoring run")

	result, err := s.execute(ctx, r, req)
	if err != nil {
		s.enter(r, contracts.PhaseFailed)
		s.deps.Metrics.RecordRun("failed", 0, 0, 0, 0)
		r.logger.WithError(err).WithField("duration_ms", time.Since(r.started).Milliseconds()).Error("Scoring run failed")
		return nil, err
	}

	if req.Persist && s.deps.Store != nil {
		if err := s.deps.Store.Save(ctx, result); err != nil {
			r.logger.WithError(err).Error("Failed to persist scoring result")
			return result, fmt.Errorf("persist run %s: %w", r.id, err)
		}
	}
	return result, nil
}

func (s *UniverseScorer) initRun(req RunRequest) (*run, error) {
	if req.Universe == nil {
		return nil, contracts.NewConfigurationError("run request", "universe", "required")
	}
	if s.deps.Fetcher == nil || s.deps.Selector == nil {
		return nil, contracts.NewConfigurationError("run request", "dependencies", "fetcher and selector are required")
	}

	cfg := req.Config
	if cfg == nil {
		cfg = scoringconfig.Default()
	}
	if err := scoringconfig.Validate(cfg); err != nil {
		return nil, &contracts.ConfigurationError{Source: "scoring config", Err: err}
	}
	hash, err := scoringconfig.Hash(cfg)
	if err != nil {
		return nil, &contracts.ConfigurationError{Source: "scoring config", Err: err}
	}

	id := req.RunID
	if id == "" {
		id = GenerateRunID()
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	started := time.Now()
	return &run{
		id:        id,
		now:       now,
		cfg:       cfg,
		hash:      hash,
		stats:     fetch.NewStats(s.deps.Metrics),
		logger:    s.logger.WithRun(id),
		started:   started,
		phaseFrom: started,
		durations: make(map[contracts.Phase]int64),
	}, nil
}

// enter closes the current phase and starts the next one
func (s *UniverseScorer) enter(r *run, next contracts.Phase) {
	now := time.Now()
	if r.phase != "" {
		d := now.Sub(r.phaseFrom)
		r.durations[r.phase] = d.Milliseconds()
		s.deps.Metrics.ObservePhase(string(r.phase), d)
	}
	r.phase = next
	r.phaseFrom = now
	s.deps.Progress.OnPhase(r.id, next)
}

func (s *UniverseScorer) execute(ctx context.Context, r *run, req RunRequest) (*contracts.ScoringResult, error) {
	// === Filtering ===
	s.enter(r, contracts.PhaseFiltering)
	members, excluded := req.Universe.Filters.Apply(req.Universe.Universe.Members)
	if len(members) == 0 {
		return nil, contracts.NewPipelineError(contracts.PhaseFiltering, ErrEmptyUniverse)
	}
	r.logger.WithFields(map[string]interface{}{
		"kept":     len(members),
		"excluded": len(excluded),
	}).Info("Filtering completed")

	// === Fetching ===
	s.enter(r, contracts.PhaseFetching)
	raws, outcomes := s.runFetching(ctx, r, members)
	if err := ctx.Err(); err != nil {
		return nil, contracts.NewPipelineError(contracts.PhaseFetching, err)
	}

	// === Resolving ===
	s.enter(r, contracts.PhaseResolving)
	resolved, medians, err := s.runResolving(r, raws, outcomes)
	if err != nil {
		return nil, err
	}

	engine := scoring.NewEngine(r.cfg)

	// === Scan scoring ===
	s.enter(r, contracts.PhaseScanScoring)
	scores := s.runScan(ctx, r, engine, resolved, medians, members)

	// === Selecting ===
	s.enter(r, contracts.PhaseSelecting)
	topK := selectTopK(scores, s.opts.TopK)
	r.logger.WithFields(map[string]interface{}{
		"top_k":      len(topK),
		"candidates": len(scores),
	}).Info("Selecting completed")

	// === Deep scoring ===
	s.enter(r, contracts.PhaseDeepScoring)
	deepCount := s.rescore(ctx, r, engine, contracts.PhaseDeepScoring, topK, resolved, medians, scores, scoring.Deep, s.opts.ScoreConcurrency)

	// === Monte Carlo refine ===
	s.enter(r, contracts.PhaseMonteCarloRefine)
	mcTargets := s.monteCarloTargets(scores)
	mcCount := s.rescore(ctx, r, engine, contracts.PhaseMonteCarloRefine, mcTargets, resolved, medians, scores, scoring.Refine, s.opts.MonteCarloConcurrency)

	if err := ctx.Err(); err != nil {
		return nil, contracts.NewPipelineError(r.phase, err)
	}

	// === Finalizing ===
	s.enter(r, contracts.PhaseFinalizing)
	result := s.finalize(ctx, r, req, scores, resolved, members, excluded, deepCount, mcCount)

	s.enter(r, contracts.PhaseDone)
	result.Metadata.PhaseDurationsMs = r.durations
	result.Metadata.CompletedAt = time.Now().UTC()
	result.Metadata.DurationMs = time.Since(r.started).Milliseconds()

	s.deps.Metrics.RecordRun("done", len(result.Scores), deepCount, mcCount, result.DataQualitySummary.StaleRatio)

	r.logger.WithFields(map[string]interface{}{
		"scored":      len(result.Scores),
		"deep":        deepCount,
		"monte_carlo": mcCount,
		"errors":      len(result.Metadata.Errors),
		"mode":        result.Mode.Label,
		"duration_ms": result.Metadata.DurationMs,
		"hit_ratio":   result.Metadata.FetchStats.HitRatio(),
	}).Info("Scoring run completed")

	return result, nil
}

// runFetching collects raw data; failed symbols keep whatever partial data arrived
func (s *UniverseScorer) runFetching(ctx context.Context, r *run, members []contracts.UniverseMember) ([]*contracts.RawSymbolData, []*fetch.Outcome) {
	symbols := make([]string, len(members))
	for i, m := range members {
		symbols[i] = m.Symbol
	}

	outcomes := make([]*fetch.Outcome, len(symbols))
	errs := make([]error, len(symbols))

	if s.opts.UseBatch {
		bySymbol, failures := s.deps.Fetcher.FetchBatch(ctx, symbols, r.stats)
		for i, sym := range symbols {
			outcomes[i] = bySymbol[sym]
			errs[i] = failures[sym]
		}
		s.deps.Progress.OnProgress(r.id, contracts.PhaseFetching, len(symbols), len(symbols))
	} else {
		for _, res := range s.fetchAll(ctx, r, symbols) {
			outcomes[res.index] = res.outcome
			errs[res.index] = res.err
		}
	}

	raws := make([]*contracts.RawSymbolData, len(symbols))
	failed := 0
	for i, sym := range symbols {
		if outcomes[i] == nil {
			outcomes[i] = &fetch.Outcome{Raw: &contracts.RawSymbolData{Symbol: sym}}
		}
		raws[i] = outcomes[i].Raw
		if errs[i] != nil {
			failed++
			r.addError(sym, contracts.PhaseFetching, errs[i])
			s.deps.Metrics.RecordSymbolError(string(contracts.PhaseFetching))
		}
	}

	snap := r.stats.Snapshot()
	r.logger.WithFields(map[string]interface{}{
		"symbols":           len(symbols),
		"failed":            failed,
		"provider_requests": snap.ProviderRequests,
		"fallback_requests": snap.FallbackRequests,
		"batch_requests":    snap.BatchRequests,
		"hit_ratio":         snap.HitRatio(),
	}).Info("Fetching completed")

	return raws, outcomes
}

func (s *UniverseScorer) runResolving(r *run, raws []*contracts.RawSymbolData, outcomes []*fetch.Outcome) ([]*resolver.Metrics, *resolver.GroupMedians, error) {
	params := r.cfg.Resolver
	medians, err := resolver.BuildMedians(raws, params.MinSampleSize)
	if err != nil {
		return nil, nil, err
	}

	res := resolver.New(params)
	resolved := res.ResolveAll(raws, medians, r.now)
	resolver.DetectOutliers(resolved, params.OutlierSigma, params.MinSampleSize)

	for i, m := range resolved {
		if p := outcomes[i].Provenance(); len(p) > 0 {
			m.DataQuality.Provenance = p
		}
	}

	r.logger.WithFields(map[string]interface{}{
		"resolved":      len(resolved),
		"global_fields": len(medians.Global),
		"sector_groups": len(medians.Sector),
		"min_sample":    params.MinSampleSize,
		"outlier_sigma": params.OutlierSigma,
	}).Info("Resolving completed")

	return resolved, medians, nil
}

// runScan scores every symbol without price targets
func (s *UniverseScorer) runScan(
	ctx context.Context,
	r *run,
	engine *scoring.Engine,
	resolved []*resolver.Metrics,
	medians *resolver.GroupMedians,
	members []contracts.UniverseMember,
) []contracts.SymbolScore {
	scores := make([]contracts.SymbolScore, len(resolved))
	var done atomic.Int64

	forEach(ctx, len(resolved), s.opts.ScoreConcurrency,
		func(i int) error {
			defer func() {
				s.deps.Progress.OnProgress(r.id, contracts.PhaseScanScoring, int(done.Add(1)), len(resolved))
			}()
			score, err := engine.Score(resolved[i], medians, scoring.Scan)
			if err != nil {
				return err
			}
			scores[i] = score
			return nil
		},
		func(i int, err error) {
			r.addError(members[i].Symbol, contracts.PhaseScanScoring, err)
			s.deps.Metrics.RecordSymbolError(string(contracts.PhaseScanScoring))
			scores[i] = scoring.Neutral(members[i].Symbol, "scoring failed; neutral fallback applied", r.cfg.Weights)
		},
	)

	// neutral 레코드에도 유니버스 분류 정보 유지
	neutral := 0
	for i := range scores {
		if scores[i].Sector == "" {
			scores[i].Sector = members[i].Sector
			scores[i].Industry = members[i].Industry
		}
		if scores[i].Name == "" {
			scores[i].Name = members[i].Name
		}
		if isNeutral(&scores[i]) {
			neutral++
		}
	}

	r.logger.WithFields(map[string]interface{}{
		"scored":  len(scores),
		"neutral": neutral,
	}).Info("Scan scoring completed")

	return scores
}

// rescore replaces the scan record of each target index with a deeper pass
func (s *UniverseScorer) rescore(
	ctx context.Context,
	r *run,
	engine *scoring.Engine,
	phase contracts.Phase,
	targets []int,
	resolved []*resolver.Metrics,
	medians *resolver.GroupMedians,
	scores []contracts.SymbolScore,
	opts scoring.Options,
	concurrency int,
) int {
	var done, replaced atomic.Int64

	forEach(ctx, len(targets), concurrency,
		func(n int) error {
			i := targets[n]
			defer func() {
				s.deps.Progress.OnProgress(r.id, phase, int(done.Add(1)), len(targets))
			}()
			if resolved[i].NoData {
				if promote(&scores[i], "deep scoring skipped: no provider data") {
					replaced.Add(1)
				}
				return nil
			}
			score, err := engine.Score(resolved[i], medians, opts)
			if err != nil {
				return err
			}
			// 분류 정보는 scan 레코드 기준 유지
			score.Sector, score.Industry, score.Name = scores[i].Sector, scores[i].Industry, scores[i].Name
			scores[i] = score
			replaced.Add(1)
			return nil
		},
		func(n int, err error) {
			// deep 실패 → scan 점수 유지, 선택 집합 표시는 갱신
			i := targets[n]
			r.addError(scores[i].Symbol, phase, err)
			s.deps.Metrics.RecordSymbolError(string(phase))
			if promote(&scores[i], "deep scoring failed; scan scores kept without price target") {
				replaced.Add(1)
			}
		},
	)

	count := int(replaced.Load())
	r.logger.WithFields(map[string]interface{}{
		"phase":    string(phase),
		"targets":  len(targets),
		"replaced": count,
	}).Info("Rescoring completed")
	return count
}

// promote marks a selected scan record as deep-passed without a price target
// ⭐ SSOT: top-K 안의 레코드는 항상 IsScanOnly=false
func promote(score *contracts.SymbolScore, reason string) bool {
	if !score.IsScanOnly {
		return false
	}
	score.IsScanOnly = false
	score.PriceTarget = nil
	score.DataQuality.Assumptions = append(score.DataQuality.Assumptions, reason)
	return true
}

// monteCarloTargets returns indexes in the published top-N that the price target flagged
func (s *UniverseScorer) monteCarloTargets(scores []contracts.SymbolScore) []int {
	sel := s.deps.Selector.Select(scores)
	top := sel.Top30
	if len(top) > s.opts.MonteCarloTopN {
		top = top[:s.opts.MonteCarloTopN]
	}

	index := make(map[string]int, len(scores))
	for i := range scores {
		index[scores[i].Symbol] = i
	}

	var targets []int
	for _, sym := range top {
		i, ok := index[sym]
		if ok && scores[i].RequiresDeepAnalysis() {
			targets = append(targets, i)
		}
	}
	return targets
}

// finalize assembles the result artifact
func (s *UniverseScorer) finalize(
	ctx context.Context,
	r *run,
	req RunRequest,
	scores []contracts.SymbolScore,
	resolved []*resolver.Metrics,
	members []contracts.UniverseMember,
	excluded []contracts.ExcludedSymbol,
	deepCount, mcCount int,
) *contracts.ScoringResult {
	selection := s.deps.Selector.Select(scores)

	final := make([]contracts.SymbolScore, len(scores))
	copy(final, scores)
	contracts.SortBySymbol(final)

	summary := Summarize(final, s.opts.StaleAlertRatio)
	if summary.StaleAlert {
		r.logger.WithFields(map[string]interface{}{
			"stale_count": summary.StaleCount,
			"stale_ratio": summary.StaleRatio,
			"threshold":   s.opts.StaleAlertRatio,
		}).Warn("Stale fundamentals above alert threshold")
	}

	mode := s.classify(ctx, r, resolved)

	r.mu.Lock()
	errs := append([]contracts.SymbolError{}, r.errors...)
	r.mu.Unlock()
	sortErrors(errs)

	return &contracts.ScoringResult{
		RunID:              r.id,
		Scores:             final,
		Mode:               mode,
		DataQualitySummary: summary,
		Metadata: contracts.RunMetadata{
			Universe:        req.Universe.Universe.Name,
			Preset:          req.Preset,
			ConfigHash:      r.hash,
			StartedAt:       r.started.UTC(),
			UniverseSize:    req.Universe.Universe.Count(),
			Excluded:        excluded,
			ScoredCount:     len(members),
			DeepCount:       deepCount,
			MonteCarloCount: mcCount,
			TopK:            s.opts.TopK,
			Selection:       selection,
			Errors:          errs,
			FetchStats:      r.stats.Snapshot(),
		},
	}
}

// classify runs the regime classifier, falling back to neutral on any failure
func (s *UniverseScorer) classify(ctx context.Context, r *run, resolved []*resolver.Metrics) contracts.MarketMode {
	techs := make([]*contracts.TechnicalMetrics, 0, len(resolved))
	for _, m := range resolved {
		techs = append(techs, m.Technical)
	}
	breadth := technicals.Breadth(techs)

	if s.deps.Classifier == nil {
		mode := contracts.NeutralMode("regime classifier not configured")
		mode.Breadth = breadth
		return mode
	}

	mode, err := func() (contracts.MarketMode, error) {
		candles, err := s.deps.Fetcher.FetchCandles(ctx, s.opts.Benchmark, s.opts.BenchmarkDays, r.stats)
		if err != nil {
			return contracts.MarketMode{}, fmt.Errorf("benchmark candles: %w", err)
		}
		return s.deps.Classifier.Classify(ctx, candles, breadth)
	}()
	if err != nil {
		r.logger.WithError(err).Warn("Regime classification failed, using neutral mode")
		mode = contracts.NeutralMode(err.Error())
		mode.Breadth = breadth
	}
	return mode
}

// selectTopK returns the indexes of the k best scores (total desc, symbol asc)
func selectTopK(scores []contracts.SymbolScore, k int) []int {
	ranked := make([]contracts.SymbolScore, len(scores))
	copy(ranked, scores)
	contracts.SortByRank(ranked)

	index := make(map[string]int, len(scores))
	for i := range scores {
		index[scores[i].Symbol] = i
	}

	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]int, 0, k)
	for _, s := range ranked[:k] {
		out = append(out, index[s.Symbol])
	}
	return out
}

// GenerateRunID generates a unique run ID
func GenerateRunID() string {
	return fmt.Sprintf("run_%s_%s", time.Now().UTC().Format("20060102_150405"), uuid.NewString()[:8])
}
