// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Photometry metrics
	ImagesPhotometered prometheus.Counter
	StarsMeasured      prometheus.Counter
	StarsByStatus      *prometheus.CounterVec
	PhotometryFailures *prometheus.CounterVec

	// Overscan metrics
	OverscanSearches    prometheus.Counter
	OverscanRelaxations prometheus.Histogram

	// Tool metrics
	ToolLatency *prometheus.HistogramVec
	ToolErrors  *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "photometry_lab"
	}

	return &Metrics{
		// Photometry metrics
		ImagesPhotometered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "photometry",
			Name:      "images_total",
			Help:      "Total number of images photometered",
		}),
		StarsMeasured: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "photometry",
			Name:      "stars_measured_total",
			Help:      "Total number of star measurements taken",
		}),
		StarsByStatus: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "photometry",
			Name:      "stars_by_status_total",
			Help:      "Total number of star measurements by magnitude status",
		}, []string{"status"}),
		PhotometryFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "photometry",
			Name:      "failures_total",
			Help:      "Total number of failed image runs by stage",
		}, []string{"stage"}),

		// Overscan metrics
		OverscanSearches: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "overscan",
			Name:      "searches_total",
			Help:      "Total number of stable-region searches",
		}),
		OverscanRelaxations: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "overscan",
			Name:      "relaxations",
			Help:      "Threshold doublings needed per stable-region search",
			Buckets:   []float64{0, 1, 2, 4, 8, 16},
		}),

		// Tool metrics
		ToolLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tools",
			Name:      "latency_seconds",
			Help:      "External tool invocation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		ToolErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tools",
			Name:      "errors_total",
			Help:      "Total number of external tool failures",
		}, []string{"tool"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of the last successful image run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordImage records a completed image run with its per-status star counts.
func (m *Metrics) RecordImage(ok, undefined, saturated int) {
	m.ImagesPhotometered.Inc()
	m.StarsMeasured.Add(float64(ok + undefined + saturated))
	m.StarsByStatus.WithLabelValues("ok").Add(float64(ok))
	m.StarsByStatus.WithLabelValues("undefined").Add(float64(undefined))
	m.StarsByStatus.WithLabelValues("saturated").Add(float64(saturated))
}

// RecordFailure records a failed image run.
func (m *Metrics) RecordFailure(stage string) {
	m.PhotometryFailures.WithLabelValues(stage).Inc()
}

// RecordOverscan records a completed stable-region search.
func (m *Metrics) RecordOverscan(relaxations int) {
	m.OverscanSearches.Inc()
	m.OverscanRelaxations.Observe(float64(relaxations))
}

// RecordToolRun records an external tool invocation.
func (m *Metrics) RecordToolRun(tool string, seconds float64, err error) {
	m.ToolLatency.WithLabelValues(tool).Observe(seconds)
	if err != nil {
		m.ToolErrors.WithLabelValues(tool).Inc()
	}
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordImage records a completed image run on the default instance.
func RecordImage(ok, undefined, saturated int) {
	DefaultMetrics.RecordImage(ok, undefined, saturated)
}

// RecordFailure records a failed image run on the default instance.
func RecordFailure(stage string) {
	DefaultMetrics.RecordFailure(stage)
}

// RecordOverscan records a completed stable-region search on the default instance.
func RecordOverscan(relaxations int) {
	DefaultMetrics.RecordOverscan(relaxations)
}

// RecordToolRun records an external tool invocation on the default instance.
func RecordToolRun(tool string, seconds float64, err error) {
	DefaultMetrics.RecordToolRun(tool, seconds, err)
}

// RecordDBQuery records database query metrics on the default instance.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.RecordDBQuery(database, operation, seconds, err)
}
