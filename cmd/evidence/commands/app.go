package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/evidence/internal/brain"
	"github.com/wonny/evidence/internal/contracts"
	"github.com/wonny/evidence/internal/external/finnhub"
	"github.com/wonny/evidence/internal/external/yfinance"
	"github.com/wonny/evidence/internal/fetch"
	"github.com/wonny/evidence/internal/progress"
	"github.com/wonny/evidence/internal/regime"
	"github.com/wonny/evidence/internal/runstore"
	"github.com/wonny/evidence/internal/scheduler/jobs"
	"github.com/wonny/evidence/internal/selection"
	"github.com/wonny/evidence/pkg/config"
	"github.com/wonny/evidence/pkg/database"
	"github.com/wonny/evidence/pkg/httputil"
	"github.com/wonny/evidence/pkg/logger"
	"github.com/wonny/evidence/pkg/metrics"
	"github.com/wonny/evidence/pkg/redis"
)

// app holds the wired runtime shared by every command
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.Recorder
	redis   *redis.Client
	db      *database.DB
	store   runstore.Backend
	memory  *fetch.MemoryCache
	hub     *progress.Hub
	scorer  *brain.UniverseScorer
	job     *jobs.ScoringJob
	closers []func()
}

// appOptions selects optional wiring per command
type appOptions struct {
	withHub bool // websocket progress (api 전용)
}

// newApp loads config and wires providers, cache, store and scorer
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if envOverride != "" {
		cfg.Env = envOverride
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)
	a := &app{cfg: cfg, log: log, metrics: metrics.New()}

	// 3. Redis (optional)
	a.redis, err = redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.closers = append(a.closers, func() { _ = a.redis.Close() })
	if a.redis.Enabled() {
		log.WithFields(map[string]interface{}{
			"addr":   a.redis.Addr(),
			"prefix": a.redis.Prefix(),
		}).Info("Connected to redis")
	}

	// 4. Run store: Postgres when configured, memory otherwise
	var backend runstore.Backend
	db, err := database.New(cfg)
	switch {
	case err == nil:
		a.db = db
		a.closers = append(a.closers, db.Close)
		pg := runstore.New(db, log)
		if err := pg.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
		backend = pg
		log.Info("Connected to database")
	case errors.Is(err, database.ErrDisabled):
		backend = runstore.NewMemoryStore(0)
		log.Warn("DATABASE_URL not set, runs are kept in memory only")
	default:
		a.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a.store = runstore.NewCached(backend, redis.NewCache(a.redis, a.redis.Prefix()), log)

	// 5. Providers + fetcher
	fetcher := a.newFetcher()

	// 6. Progress sinks
	sinks := progress.Fanout{progress.NewLogSink(log, 0)}
	if opts.withHub {
		a.hub = progress.NewHub(log)
		a.closers = append(a.closers, a.hub.Close)
		sinks = append(sinks, a.hub)
	}

	// 7. Scorer + job
	p := cfg.Pipeline
	a.scorer = brain.NewUniverseScorer(brain.Dependencies{
		Fetcher:    fetcher,
		Selector:   selection.NewRanker(selection.DefaultConfig(), log),
		Classifier: regime.NewClassifier(regime.DefaultConfig()),
		Progress:   sinks,
		Store:      a.store,
		Metrics:    a.metrics,
	}, brain.Options{
		FetchConcurrency:      p.FetchConcurrency,
		MonteCarloConcurrency: p.MonteCarloConcurrency,
		TopK:                  p.TopK,
		MonteCarloTopN:        p.MonteCarloTopN,
		UseBatch:              p.UseBatch,
		StaleAlertRatio:       p.StaleAlertRatio,
		Benchmark:             p.Benchmark,
	}, log)
	a.job = jobs.NewScoringJob(a.scorer, cfg, true, log)

	return a, nil
}

// newFetcher wires yfinance (primary) and finnhub (fallback, when keyed)
func (a *app) newFetcher() *fetch.Fetcher {
	cfg := a.cfg
	p := cfg.Pipeline

	primary := yfinance.NewClient(yfinance.Config{
		PythonPath:  cfg.Provider.PythonPath,
		ScriptsDir:  cfg.Provider.ScriptsDir,
		CallTimeout: cfg.Provider.CallTimeout,
	}, a.log)
	a.closers = append(a.closers, func() { _ = primary.Close() })

	var fallback contracts.MarketDataProvider
	if cfg.Provider.FinnhubAPIKey != "" {
		httpClient := httputil.New(cfg, a.log)
		fallback = finnhub.NewClient(httpClient, cfg.Provider.FinnhubBaseURL, cfg.Provider.FinnhubAPIKey, a.log)
	} else {
		a.log.Warn("FINNHUB_API_KEY not set, running without fallback provider")
	}

	// memory 앞단 + Redis 뒷단 (Redis 비활성 시 memory 만 유효)
	a.memory = fetch.NewMemoryCache()
	var cache fetch.Cache = a.memory
	if a.redis.Enabled() {
		cache = fetch.NewTieredCache(a.memory, fetch.NewRedisCache(redis.NewCache(a.redis, a.redis.Prefix())), p.TechnicalTTL)
	}

	throttler := fetch.NewThrottler(p.MinRequestDelay).
		WithDistributed(redis.NewRateLimiter(a.redis, a.redis.Prefix()), redis.ProviderRateLimit(primary.Name(), p.MinRequestDelay))

	return fetch.NewFetcher(primary, fallback, cache, throttler, fetch.Config{
		TTLs: fetch.TTLs{
			Fundamentals: p.FundamentalsTTL,
			Technical:    p.TechnicalTTL,
			Profile:      p.ProfileTTL,
		},
		BatchSize: p.BatchSize,
		Breaker: fetch.BreakerConfig{
			MinRequests:  cfg.Provider.BreakerMinRequests,
			FailureRatio: cfg.Provider.BreakerFailureRatio,
			Window:       cfg.Provider.BreakerWindow,
			Timeout:      cfg.Provider.BreakerTimeout,
		},
	}, a.log)
}

// Close releases resources in reverse order
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
