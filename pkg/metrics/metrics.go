// Package metrics exposes Prometheus collectors for scan and quiz
// activity. All collectors hang off a private registry so tests can
// create isolated instances.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the service collectors.
type Metrics struct {
	registry *prometheus.Registry

	ScansStarted   prometheus.Counter
	ScansCompleted prometheus.Counter
	ScansFailed    prometheus.Counter
	ScanDuration   prometheus.Histogram
	FindingsTotal  *prometheus.CounterVec
	QuizGenerated  prometheus.Counter
	QuizFailed     prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ScansStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codeclinic_scans_started_total",
			Help: "Scan jobs accepted for processing.",
		}),
		ScansCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codeclinic_scans_completed_total",
			Help: "Scan jobs that finished successfully.",
		}),
		ScansFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codeclinic_scans_failed_total",
			Help: "Scan jobs that ended in failure.",
		}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "codeclinic_scan_duration_seconds",
			Help:    "Wall-clock duration of completed scans.",
			Buckets: []float64{30, 60, 120, 300, 600, 900, 1800},
		}),
		FindingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codeclinic_findings_total",
			Help: "Findings reported, labelled by severity.",
		}, []string{"severity"}),
		QuizGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codeclinic_quiz_generations_total",
			Help: "Successful quiz generation requests.",
		}),
		QuizFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codeclinic_quiz_generation_failures_total",
			Help: "Failed quiz generation requests.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ScansStarted, m.ScansCompleted, m.ScansFailed, m.ScanDuration,
		m.FindingsTotal, m.QuizGenerated, m.QuizFailed,
	)
	return m
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
