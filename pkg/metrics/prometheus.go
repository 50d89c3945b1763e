package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder exposes scoring pipeline metrics via Prometheus
// ⭐ SSOT: 메트릭 정의는 여기서만
type Recorder struct {
	registry *prometheus.Registry

	cacheLookups     *prometheus.CounterVec
	providerRequests *prometheus.CounterVec
	symbolErrors     *prometheus.CounterVec
	phaseDuration    *prometheus.HistogramVec
	runsTotal        *prometheus.CounterVec
	lastRunSymbols   *prometheus.GaugeVec
	staleRatio       prometheus.Gauge
}

// New creates a recorder with its own registry
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evidence_cache_lookups_total",
				Help: "Cache lookups per field class and outcome",
			},
			[]string{"class", "outcome"},
		),
		providerRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evidence_provider_requests_total",
				Help: "Outbound market data provider calls",
			},
			[]string{"provider", "method", "status"},
		),
		symbolErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evidence_symbol_errors_total",
				Help: "Per-symbol failures isolated during a run",
			},
			[]string{"phase"},
		),
		phaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "evidence_phase_duration_seconds",
				Help:    "Duration of pipeline phases",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"phase"},
		),
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evidence_runs_total",
				Help: "Scoring runs by final status",
			},
			[]string{"status"},
		),
		lastRunSymbols: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "evidence_last_run_symbols",
				Help: "Symbol counts of the most recent run",
			},
			[]string{"kind"},
		),
		staleRatio: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "evidence_last_run_stale_ratio",
				Help: "Fraction of symbols with stale fundamentals in the most recent run",
			},
		),
	}
}

// RecordCacheLookup records a cache hit or miss for a field class
func (r *Recorder) RecordCacheLookup(class string, hit bool) {
	if r == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	r.cacheLookups.WithLabelValues(class, outcome).Inc()
}

// RecordProviderRequest records one outbound provider call
func (r *Recorder) RecordProviderRequest(provider, method string, err error) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.providerRequests.WithLabelValues(provider, method, status).Inc()
}

// RecordSymbolError records an isolated per-symbol failure
func (r *Recorder) RecordSymbolError(phase string) {
	if r == nil {
		return
	}
	r.symbolErrors.WithLabelValues(phase).Inc()
}

// ObservePhase records how long a pipeline phase took
func (r *Recorder) ObservePhase(phase string, d time.Duration) {
	if r == nil {
		return
	}
	r.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// RecordRun records the outcome of a whole run
func (r *Recorder) RecordRun(status string, scored, deep, monteCarlo int, staleRatio float64) {
	if r == nil {
		return
	}
	r.runsTotal.WithLabelValues(status).Inc()
	r.lastRunSymbols.WithLabelValues("scored").Set(float64(scored))
	r.lastRunSymbols.WithLabelValues("deep").Set(float64(deep))
	r.lastRunSymbols.WithLabelValues("monte_carlo").Set(float64(monteCarlo))
	r.staleRatio.Set(staleRatio)
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
