// Package metrics exposes Prometheus metrics for link scans and alerts.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// Namespace is the namespace for all link health metrics.
	Namespace = "linkhealth"
)

// Metrics holds all Prometheus metrics for the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Scan metrics
	LinksScannedTotal  *prometheus.CounterVec
	ProbeDuration      *prometheus.HistogramVec
	ScansTotal         *prometheus.CounterVec
	ScanDuration       prometheus.Histogram
	ScansRejectedTotal *prometheus.CounterVec

	// Alert metrics
	AlertsSentTotal     *prometheus.CounterVec
	AlertFailuresTotal  *prometheus.CounterVec
	ScheduledUsersTotal prometheus.Counter
}

// New creates and registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	m := &Metrics{}

	m.initScanMetrics(factory)
	m.initAlertMetrics(factory)

	return m
}

func (m *Metrics) initScanMetrics(factory promauto.Factory) {
	m.LinksScannedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "scanner",
			Name:      "links_scanned_total",
			Help:      "Total number of links probed, by resulting status",
		},
		[]string{"status"},
	)

	m.ProbeDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "scanner",
			Name:      "probe_duration_seconds",
			Help:      "Duration of link probes in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 9), // 50ms to ~12.8s
		},
		[]string{"method"},
	)

	m.ScansTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "scanner",
			Name:      "scans_total",
			Help:      "Total number of scans run, by kind",
		},
		[]string{"kind"},
	)

	m.ScanDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "scanner",
			Name:      "batch_duration_seconds",
			Help:      "Duration of batch scans in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	m.ScansRejectedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "scanner",
			Name:      "scans_rejected_total",
			Help:      "Total number of scans rejected, by reason",
		},
		[]string{"reason"},
	)

	m.ScheduledUsersTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "schedule",
			Name:      "users_enqueued_total",
			Help:      "Total number of users enqueued by the scheduler",
		},
	)
}

func (m *Metrics) initAlertMetrics(factory promauto.Factory) {
	m.AlertsSentTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "alerts",
			Name:      "sent_total",
			Help:      "Total number of alerts delivered, by type",
		},
		[]string{"type"},
	)

	m.AlertFailuresTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "alerts",
			Name:      "failures_total",
			Help:      "Total number of alerts not delivered, by reason",
		},
		[]string{"reason"},
	)
}

// ObserveProbe records one probe.
func (m *Metrics) ObserveProbe(status, method string, d time.Duration) {
	if m == nil {
		return
	}
	m.LinksScannedTotal.WithLabelValues(status).Inc()
	m.ProbeDuration.WithLabelValues(method).Observe(d.Seconds())
}

// ObserveScan records a finished scan of the given kind ("batch" or "single").
func (m *Metrics) ObserveScan(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues(kind).Inc()
	if kind == "batch" {
		m.ScanDuration.Observe(d.Seconds())
	}
}

// ScanRejected records a scan that did not run.
func (m *Metrics) ScanRejected(reason string) {
	if m == nil {
		return
	}
	m.ScansRejectedTotal.WithLabelValues(reason).Inc()
}

// AlertSent records a delivered alert.
func (m *Metrics) AlertSent(alertType string) {
	if m == nil {
		return
	}
	m.AlertsSentTotal.WithLabelValues(alertType).Inc()
}

// AlertFailed records an alert that was due but not delivered.
func (m *Metrics) AlertFailed(reason string) {
	if m == nil {
		return
	}
	m.AlertFailuresTotal.WithLabelValues(reason).Inc()
}

// UsersEnqueued records users handed to the scan queue by the scheduler.
func (m *Metrics) UsersEnqueued(n int) {
	if m == nil {
		return
	}
	m.ScheduledUsersTotal.Add(float64(n))
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
