package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wonny/evidence/internal/brain"
	"github.com/wonny/evidence/internal/contracts"
	"github.com/wonny/evidence/internal/scoringconfig"
	"github.com/wonny/evidence/internal/universe"
	"github.com/wonny/evidence/pkg/config"
	"github.com/wonny/evidence/pkg/logger"
)

// ErrRunInProgress is returned when a scoring run is already active
var ErrRunInProgress = errors.New("scoring run already in progress")

// Runner is the part of the scorer the job needs
type Runner interface {
	Run(ctx context.Context, req brain.RunRequest) (*contracts.ScoringResult, error)
}

// RunOptions overrides the configured defaults for one run
type RunOptions struct {
	UniversePath string   `json:"universe_path,omitempty"`
	Symbols      []string `json:"symbols,omitempty"` // 지정 시 ad-hoc 유니버스
	Preset       string   `json:"preset,omitempty"`
	Persist      *bool    `json:"persist,omitempty"`
}

// ScoringJob runs the daily scoring pipeline
// ⭐ SSOT: 채점 실행 진입점 (cron, API, CLI 공용), 동시에 1개 run 만 허용
type ScoringJob struct {
	runner   Runner
	pipeline config.PipelineConfig
	schedule string
	persist  bool
	logger   *logger.Logger

	running atomic.Bool
	mu      sync.RWMutex
	last    *contracts.ScoringResult
}

// NewScoringJob creates a new scoring job
func NewScoringJob(runner Runner, cfg *config.Config, persist bool, log *logger.Logger) *ScoringJob {
	return &ScoringJob{
		runner:   runner,
		pipeline: cfg.Pipeline,
		schedule: cfg.Scheduler.ScoringSchedule,
		persist:  persist,
		logger:   log.WithField("job", "daily_scoring"),
	}
}

// Name returns the job name
func (j *ScoringJob) Name() string {
	return "daily_scoring"
}

// Schedule returns the cron schedule (weekdays after the US close by default)
func (j *ScoringJob) Schedule() string {
	return j.schedule
}

// Run executes a run with the configured defaults
func (j *ScoringJob) Run(ctx context.Context) error {
	_, err := j.Execute(ctx, RunOptions{})
	return err
}

// Execute runs the pipeline synchronously
func (j *ScoringJob) Execute(ctx context.Context, opts RunOptions) (*contracts.ScoringResult, error) {
	if !j.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer j.running.Store(false)

	req, err := j.prepare(opts)
	if err != nil {
		return nil, err
	}
	return j.execute(ctx, req)
}

// Trigger validates the request and starts the run in the background
// 설정 오류는 즉시 반환, 실행 결과는 Last() 또는 run store 로 확인
func (j *ScoringJob) Trigger(opts RunOptions) (string, error) {
	if !j.running.CompareAndSwap(false, true) {
		return "", ErrRunInProgress
	}

	req, err := j.prepare(opts)
	if err != nil {
		j.running.Store(false)
		return "", err
	}

	go func() {
		defer j.running.Store(false)
		_, _ = j.execute(context.Background(), req)
	}()
	return req.RunID, nil
}

// Running reports whether a run is active
func (j *ScoringJob) Running() bool {
	return j.running.Load()
}

// Last returns the most recent successful result held in memory
func (j *ScoringJob) Last() *contracts.ScoringResult {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.last
}

// prepare loads the universe and scoring config for one run
func (j *ScoringJob) prepare(opts RunOptions) (brain.RunRequest, error) {
	var def *universe.Definition
	if len(opts.Symbols) > 0 {
		def = universe.FromSymbols("adhoc", opts.Symbols)
	} else {
		path := opts.UniversePath
		if path == "" {
			path = j.pipeline.UniversePath
		}
		var err error
		if def, err = universe.Load(path); err != nil {
			return brain.RunRequest{}, err
		}
	}

	cfg, err := scoringconfig.LoadOrDefault(j.pipeline.ScoringConfigPath)
	if err != nil {
		return brain.RunRequest{}, err
	}

	preset := opts.Preset
	if preset == "" {
		preset = j.pipeline.Preset
	}
	if cfg, err = scoringconfig.ApplyPreset(cfg, preset); err != nil {
		return brain.RunRequest{}, err
	}

	persist := j.persist
	if opts.Persist != nil {
		persist = *opts.Persist && j.persist
	}

	return brain.RunRequest{
		Universe: def,
		Config:   cfg,
		Preset:   preset,
		RunID:    brain.GenerateRunID(),
		Persist:  persist,
	}, nil
}

func (j *ScoringJob) execute(ctx context.Context, req brain.RunRequest) (*contracts.ScoringResult, error) {
	start := time.Now()
	j.logger.WithFields(map[string]interface{}{
		"run_id":   req.RunID,
		"universe": req.Universe.Universe.Name,
		"preset":   req.Preset,
	}).Info("Starting scheduled scoring run")

	result, err := j.runner.Run(ctx, req)
	if result != nil {
		j.mu.Lock()
		j.last = result
		j.mu.Unlock()
	}
	if err != nil {
		return result, fmt.Errorf("scoring run %s: %w", req.RunID, err)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":   result.RunID,
		"scored":   len(result.Scores),
		"errors":   len(result.Metadata.Errors),
		"duration": time.Since(start),
		"top5":     result.Metadata.Selection.Top5,
	}).Info("Scoring run finished")
	return result, nil
}
