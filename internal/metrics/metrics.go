package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the metrics surface the rest of the application sees.
// Implementations must be safe for concurrent use.
type Recorder interface {
	// RecordDecision records one credential check outcome for a source
	// kind. outcome: ok, bad_password, expired, unauthorized,
	// unknown_user.
	RecordDecision(sourceKind, outcome string, duration time.Duration)
	// RecordSourceError records a backend failure for a source kind.
	RecordSourceError(sourceKind string)
	// RecordVaultWrite records an admin write to the local vault.
	RecordVaultWrite(success bool)
}

// Ensure Metrics implements Recorder interface at compile time
var _ Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	DecisionsTotal   *prometheus.CounterVec
	DecisionDuration *prometheus.HistogramVec
	SourceErrors     *prometheus.CounterVec
	VaultWritesTotal *prometheus.CounterVec

	// HTTP Request Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init initializes metrics based on enabled flag
// If enabled=true, returns Prometheus-based Metrics
// If enabled=false, returns NoopMetrics (zero overhead)
// Uses sync.Once to ensure Prometheus metrics are only registered once
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

func initMetrics() *Metrics {
	return &Metrics{
		DecisionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credgate_decisions_total",
				Help: "Total number of credential check decisions",
			},
			[]string{"source", "outcome"},
		),
		DecisionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credgate_decision_duration_seconds",
				Help:    "Credential check duration, including source I/O",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		SourceErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credgate_source_errors_total",
				Help: "Total number of credential source backend failures",
			},
			[]string{"source"},
		),
		VaultWritesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credgate_vault_writes_total",
				Help: "Total number of admin writes to the local vault",
			},
			[]string{"result"},
		),
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credgate_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credgate_http_request_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "credgate_http_requests_in_flight",
				Help: "Number of HTTP requests currently being served",
			},
		),
	}
}

// RecordDecision records one credential check outcome
func (m *Metrics) RecordDecision(sourceKind, outcome string, duration time.Duration) {
	m.DecisionsTotal.WithLabelValues(sourceKind, outcome).Inc()
	m.DecisionDuration.WithLabelValues(sourceKind).Observe(duration.Seconds())
}

// RecordSourceError records a backend failure
func (m *Metrics) RecordSourceError(sourceKind string) {
	m.SourceErrors.WithLabelValues(sourceKind).Inc()
}

// RecordVaultWrite records an admin vault write
func (m *Metrics) RecordVaultWrite(success bool) {
	result := "success"
	if !success {
		result = "error"
	}
	m.VaultWritesTotal.WithLabelValues(result).Inc()
}
