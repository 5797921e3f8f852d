package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the forecast pipeline.
type Metrics struct {
	Runs             *prometheus.CounterVec // labels: outcome={success,failed,unchanged}
	PipelineRunning  prometheus.Gauge
	RunDuration      prometheus.Histogram
	LastSuccess      prometheus.Gauge
	ParseErrors      prometheus.Counter
	EntriesProduced  prometheus.Counter
	MessagesProduced prometheus.Counter

	// Source fetch metrics.
	FetchAttempts *prometheus.CounterVec // labels: status={2xx,404,429,5xx,other,error}

	// Upload metrics.
	Uploads *prometheus.CounterVec // labels: backend={gcs,s3}, outcome={success,exists,error}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Runs,
		m.PipelineRunning,
		m.RunDuration,
		m.LastSuccess,
		m.ParseErrors,
		m.EntriesProduced,
		m.MessagesProduced,
		m.FetchAttempts,
		m.Uploads,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kp_etl",
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kp_etl",
			Name:      "pipeline_running",
			Help:      "1 when the scheduler is active, 0 when shut down.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kp_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-parse-save-upload-publish run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kp_etl",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kp_etl",
			Name:      "parse_errors_total",
			Help:      "Forecast documents rejected as malformed.",
		}),
		EntriesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kp_etl",
			Name:      "entries_produced_total",
			Help:      "Forecast entries extracted from parsed documents.",
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kp_etl",
			Name:      "messages_produced_total",
			Help:      "Total messages written to the sink topic.",
		}),
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kp_etl",
			Name:      "fetch_attempts_total",
			Help:      "HTTP requests to the forecast source by status class.",
		}, []string{"status"}),
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kp_etl",
			Name:      "uploads_total",
			Help:      "Object store uploads by backend and outcome.",
		}, []string{"backend", "outcome"}),
	}
}
