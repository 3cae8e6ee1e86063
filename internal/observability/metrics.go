package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "launch_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the shot pipeline.
type Metrics struct {
	RowsRead        prometheus.Counter
	RowsDropped     *prometheus.CounterVec // labels: reason={unknown_club,missing_required}
	FilesSkipped    prometheus.Counter
	FieldsEstimated *prometheus.CounterVec // labels: field
	PipelineRunning prometheus.Gauge

	// Sink metrics.
	ShotsLoaded *prometheus.CounterVec // labels: sink
	LoadErrors  *prometheus.CounterVec // labels: sink

	RunDuration prometheus.Histogram

	// Dataset cache metrics.
	DatasetCache *prometheus.CounterVec // labels: result={hit,miss}

	// Scraper metrics.
	ScrapeItems *prometheus.CounterVec // labels: mode={sessions,rounds,export}, outcome={success,error}
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_read_total",
			Help:      "Total data rows read from session files.",
		}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Rows discarded during cleaning, by reason.",
		}, []string{"reason"}),
		FilesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_skipped_total",
			Help:      "Session files that could not be read.",
		}),
		FieldsEstimated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fields_estimated_total",
			Help:      "Club-delivery fields filled by estimation, by field.",
		}, []string{"field"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is in progress, 0 otherwise.",
		}),
		ShotsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shots_loaded_total",
			Help:      "Cleaned shots written, by sink.",
		}, []string{"sink"}),
		LoadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_errors_total",
			Help:      "Failed batch writes, by sink.",
		}, []string{"sink"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete extract-transform-load run.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		DatasetCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_cache_total",
			Help:      "Cleaned dataset cache lookups by result.",
		}, []string{"result"}),
		ScrapeItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrape_items_total",
			Help:      "Scraped pages or rows by mode and outcome.",
		}, []string{"mode", "outcome"}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RowsRead,
		m.RowsDropped,
		m.FilesSkipped,
		m.FieldsEstimated,
		m.PipelineRunning,
		m.ShotsLoaded,
		m.LoadErrors,
		m.RunDuration,
		m.DatasetCache,
		m.ScrapeItems,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
