package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics covers the polling worker: discovery cycles, per-document
// enrichment outcomes, and audit log merges. It satisfies the poller's
// observer interface.
type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	cycleTotal      *prometheus.CounterVec
	cycleCandidates prometheus.Histogram
	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	auditMergeTotal *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	cycleTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "enrichd",
			Subsystem: "worker",
			Name:      "poll_cycle_total",
			Help:      "Total polling cycles by status.",
		},
		[]string{"service", "status"},
	)
	cycleCandidates := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "enrichd",
			Subsystem: "worker",
			Name:      "poll_cycle_candidates",
			Help:      "Unprocessed documents discovered per cycle.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100, 250},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "enrichd",
			Subsystem: "worker",
			Name:      "document_process_total",
			Help:      "Total processed documents by status.",
		},
		[]string{"service", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "enrichd",
			Subsystem: "worker",
			Name:      "document_process_duration_seconds",
			Help:      "Document processing duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "enrichd",
			Subsystem: "worker",
			Name:      "document_process_in_flight",
			Help:      "Number of in-flight document enrichments.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	auditMergeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "enrichd",
			Subsystem: "worker",
			Name:      "audit_merge_total",
			Help:      "Total audit log merges by outcome.",
		},
		[]string{"service", "outcome"},
	)

	registry.MustRegister(cycleTotal, cycleCandidates, processTotal, processDuration, processInFlight, auditMergeTotal)

	return &WorkerMetrics{
		registry:        registry,
		service:         service,
		cycleTotal:      cycleTotal,
		cycleCandidates: cycleCandidates,
		processTotal:    processTotal,
		processDuration: processDuration,
		processInFlight: processInFlight,
		auditMergeTotal: auditMergeTotal,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) CycleCompleted(candidates int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.cycleTotal.WithLabelValues(m.service, status).Inc()
	if err == nil {
		m.cycleCandidates.Observe(float64(candidates))
	}
}

func (m *WorkerMetrics) DocumentProcessed(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.processTotal.WithLabelValues(m.service, status).Inc()
	m.processDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) DocumentSkipped() {
	m.processTotal.WithLabelValues(m.service, "skipped").Inc()
}

func (m *WorkerMetrics) StartDocument() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishDocument() {
	m.processInFlight.Dec()
}

func (m *WorkerMetrics) RecordAuditMerge(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.auditMergeTotal.WithLabelValues(m.service, outcome).Inc()
}
