// Package monitoring exposes Prometheus metrics for fetches, decoding,
// batch jobs and the HTTP surface.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeCached   = "cached"
	OutcomeBlocked  = "blocked"
	OutcomeError    = "error"
	OutcomeFallback = "browser"
)

// Metrics holds all Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Scraper metrics
	FetchesTotal  *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec

	// Decode metrics
	RowsDecoded  *prometheus.CounterVec
	RowsRejected *prometheus.CounterVec

	// Backfill metrics
	BackfillEntities *prometheus.CounterVec
	BackfillFailures *prometheus.CounterVec
	JobsActive       prometheus.Gauge

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
}

// NewMetrics registers every collector on a fresh registry, alongside the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		FetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collegebaseball_fetches_total",
				Help: "Page fetches by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "collegebaseball_fetch_duration_seconds",
				Help:    "Page fetch duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"source"},
		),
		RowsDecoded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collegebaseball_rows_decoded_total",
				Help: "Table rows accepted by the decoder",
			},
			[]string{"kind"},
		),
		RowsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collegebaseball_rows_rejected_total",
				Help: "Table rows rejected by the decoder",
			},
			[]string{"kind", "reason"},
		),
		BackfillEntities: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collegebaseball_backfill_entities_total",
				Help: "Entities processed by backfill jobs",
			},
			[]string{"job_type"},
		),
		BackfillFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collegebaseball_backfill_failures_total",
				Help: "Entities that failed during backfill jobs",
			},
			[]string{"job_type"},
		),
		JobsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "collegebaseball_backfill_jobs_active",
				Help: "Backfill jobs currently running",
			},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collegebaseball_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "collegebaseball_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "collegebaseball_ws_connections",
				Help: "Open WebSocket connections",
			},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordFetch counts one fetch.
func (m *Metrics) RecordFetch(source, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(source, outcome).Inc()
	m.FetchDuration.WithLabelValues(source).Observe(d.Seconds())
}

// RecordDecode counts accepted rows and rejections by reason.
func (m *Metrics) RecordDecode(kind string, accepted int, rejected map[string]int) {
	if m == nil {
		return
	}
	m.RowsDecoded.WithLabelValues(kind).Add(float64(accepted))
	for reason, n := range rejected {
		m.RowsRejected.WithLabelValues(kind, reason).Add(float64(n))
	}
}

// RecordEntity counts one backfill entity.
func (m *Metrics) RecordEntity(jobType string, failed bool) {
	if m == nil {
		return
	}
	m.BackfillEntities.WithLabelValues(jobType).Inc()
	if failed {
		m.BackfillFailures.WithLabelValues(jobType).Inc()
	}
}

// JobStarted and JobFinished track running jobs.
func (m *Metrics) JobStarted() {
	if m != nil {
		m.JobsActive.Inc()
	}
}

func (m *Metrics) JobFinished() {
	if m != nil {
		m.JobsActive.Dec()
	}
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// WSConnected and WSDisconnected track open sockets.
func (m *Metrics) WSConnected() {
	if m != nil {
		m.WSConnections.Inc()
	}
}

func (m *Metrics) WSDisconnected() {
	if m != nil {
		m.WSConnections.Dec()
	}
}
