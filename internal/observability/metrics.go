package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// collector.
type Metrics struct {
	CollectionRuns     prometheus.Counter
	CollectionFailures prometheus.Counter
	RowsFetched        prometheus.Counter
	DuplicatesRemoved  prometheus.Counter
	PublishErrors      prometheus.Counter
	CollectorRunning   prometheus.Gauge
	DatasetRows        prometheus.Gauge
	OutlierRows        prometheus.Gauge

	FetchDuration prometheus.Histogram
	CleanDuration prometheus.Histogram
}

// NewMetrics creates and registers all collector metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.CollectionRuns,
		m.CollectionFailures,
		m.RowsFetched,
		m.DuplicatesRemoved,
		m.PublishErrors,
		m.CollectorRunning,
		m.DatasetRows,
		m.OutlierRows,
		m.FetchDuration,
		m.CleanDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		CollectionRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "collection_runs_total",
			Help:      "Total collection runs attempted.",
		}),
		CollectionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "collection_failures_total",
			Help:      "Total collection runs that failed.",
		}),
		RowsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "rows_fetched_total",
			Help:      "Total raw forecast rows parsed from AEMET payloads.",
		}),
		DuplicatesRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "duplicates_removed_total",
			Help:      "Total exact-duplicate rows removed during cleaning.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_etl",
			Name:      "publish_errors_total",
			Help:      "Total failures publishing cleaned observations to Kafka.",
		}),
		CollectorRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weather_etl",
			Name:      "collector_running",
			Help:      "1 when the collection loop is active, 0 when shut down.",
		}),
		DatasetRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weather_etl",
			Name:      "dataset_rows",
			Help:      "Rows in the cleaned dataset after the last successful run.",
		}),
		OutlierRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weather_etl",
			Name:      "outlier_rows",
			Help:      "Physically implausible rows flagged in the last cleaned dataset.",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "weather_etl",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of the two-step AEMET fetch.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		CleanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "weather_etl",
			Name:      "clean_duration_seconds",
			Help:      "Duration of the cleaning pipeline over the merged dataset.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}
}
