package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "firewatch"

// Metrics holds the Prometheus counters, histograms, and gauges for the pipeline.
type Metrics struct {
	RecordsIngested   prometheus.Counter
	RecordsDuplicate  prometheus.Counter
	RecordsDropped    *prometheus.CounterVec // labels: stage={fresh,relevant,already_verified}
	RecordsVerified   prometheus.Counter
	PersistErrors     *prometheus.CounterVec // labels: target={json,report}
	PipelineRunning   prometheus.Gauge
	Runs              *prometheus.CounterVec // labels: outcome={success,error,skipped}
	RunDuration       prometheus.Histogram
	Notifications     *prometheus.CounterVec // labels: outcome={success,error}
	Classifications   *prometheus.CounterVec // labels: op={incident,score}, outcome={yes,no,scored,raw,error}
	ClassifierLatency *prometheus.HistogramVec // labels: op
	ClassifierRetries prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		RecordsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_ingested_total",
			Help:      "New raw records added to the raw store.",
		}),
		RecordsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_duplicate_total",
			Help:      "Harvested records already present in the raw store.",
		}),
		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Candidates removed before classification, by stage.",
		}, []string{"stage"}),
		RecordsVerified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_verified_total",
			Help:      "Verified records appended to the verified store.",
		}),
		PersistErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_errors_total",
			Help:      "Failed writes of verified records, by target.",
		}, []string{"target"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress.",
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete pipeline run.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications sent, by outcome.",
		}, []string{"outcome"}),
		Classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Classifier operations by op and outcome.",
		}, []string{"op", "outcome"}),
		ClassifierLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classifier_duration_seconds",
			Help:      "Classifier operation duration including retries.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"op"}),
		ClassifierRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_retries_total",
			Help:      "Classifier attempts retried after a transient failure.",
		}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RecordsIngested,
		m.RecordsDuplicate,
		m.RecordsDropped,
		m.RecordsVerified,
		m.PersistErrors,
		m.PipelineRunning,
		m.Runs,
		m.RunDuration,
		m.Notifications,
		m.Classifications,
		m.ClassifierLatency,
		m.ClassifierRetries,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid "already
// registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
