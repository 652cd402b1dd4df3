// Package observability exposes the prometheus metrics surface.
// A nil *Metrics is valid everywhere: every method no-ops, so tests and
// trimmed-down deployments skip registration entirely.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry          *prometheus.Registry
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	signalsIngested   prometheus.Counter
	accountsScored    prometheus.Counter
	scoringFailures   prometheus.Counter
	recomputeRuns     prometheus.Counter
	recomputeDuration prometheus.Histogram
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	streamClients     prometheus.Gauge
}

// NewMetrics builds the collector set on its own registry, so repeated
// construction (one container per test) never trips duplicate registration.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		signalsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signals_ingested_total",
			Help: "Total behavioral signals accepted into the store.",
		}),
		accountsScored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "accounts_scored_total",
			Help: "Total per-account score computations persisted.",
		}),
		scoringFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scoring_failures_total",
			Help: "Total per-account scoring failures skipped during batches.",
		}),
		recomputeRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recompute_runs_total",
			Help: "Total bulk recompute runs started.",
		}),
		recomputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "recompute_duration_seconds",
			Help:    "Histogram of bulk recompute run durations.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total leaderboard cache hits observed.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total leaderboard cache misses observed.",
		}),
		streamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "event_stream_clients",
			Help: "Currently connected websocket event stream clients.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpDuration,
		m.signalsIngested,
		m.accountsScored,
		m.scoringFailures,
		m.recomputeRuns,
		m.recomputeDuration,
		m.cacheHits,
		m.cacheMisses,
		m.streamClients,
	)

	return m
}

// HTTPRequest records one served request. The route should be the matched
// pattern ("/api/scores/{accountID}"), never the raw path, to keep label
// cardinality bounded.
func (m *Metrics) HTTPRequest(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// Handler serves the registry in the prometheus text exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SignalIngested() {
	if m == nil {
		return
	}
	m.signalsIngested.Inc()
}

func (m *Metrics) AccountScored() {
	if m == nil {
		return
	}
	m.accountsScored.Inc()
}

func (m *Metrics) ScoringFailure() {
	if m == nil {
		return
	}
	m.scoringFailures.Inc()
}

func (m *Metrics) RecomputeRun(duration time.Duration) {
	if m == nil {
		return
	}
	m.recomputeRuns.Inc()
	m.recomputeDuration.Observe(duration.Seconds())
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

func (m *Metrics) StreamClientConnected() {
	if m == nil {
		return
	}
	m.streamClients.Inc()
}

func (m *Metrics) StreamClientDisconnected() {
	if m == nil {
		return
	}
	m.streamClients.Dec()
}
