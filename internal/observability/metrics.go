package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "aq"

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	// Forecast serving.
	ForecastRequests *prometheus.CounterVec // labels: outcome={predicted,absent,unknown_city,error}
	CacheLookups     *prometheus.CounterVec // labels: result={hit,miss}
	CacheComputes    prometheus.Counter
	CacheEpoch       prometheus.Gauge
	PredictDuration  prometheus.Histogram

	// Clustering.
	ClusterRuns     *prometheus.CounterVec // labels: outcome={published,insufficient_data,error}
	ClusterCities   prometheus.Gauge
	ClusterDuration prometheus.Histogram

	// Batch ingestion.
	RowsConsumed            prometheus.Counter
	RowsLoaded              prometheus.Counter
	ParseErrors             prometheus.Counter
	IngestRunning           prometheus.Gauge
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Registry repair.
	GeocodeRequests *prometheus.CounterVec // labels: outcome={success,empty,error}
}

func newMetrics() *Metrics {
	return &Metrics{
		ForecastRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_requests_total",
			Help:      "Forecast queries by outcome.",
		}, []string{"outcome"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_cache_lookups_total",
			Help:      "Prediction cache lookups by result.",
		}, []string{"result"}),
		CacheComputes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_cache_computations_total",
			Help:      "Forecast computations started by the prediction cache.",
		}),
		CacheEpoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "prediction_cache_epoch",
			Help:      "Current prediction cache epoch.",
		}),
		PredictDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_predict_duration_seconds",
			Help:      "Duration of a single model inference.",
			Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
		}),
		ClusterRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cluster_runs_total",
			Help:      "Clustering runs by outcome.",
		}, []string{"outcome"}),
		ClusterCities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cluster_snapshot_cities",
			Help:      "Cities with a tier in the current cluster snapshot.",
		}),
		ClusterDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cluster_run_duration_seconds",
			Help:      "Duration of a clustering run.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10},
		}),
		RowsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_rows_consumed_total",
			Help:      "Reading rows read from the source topic.",
		}),
		RowsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_rows_loaded_total",
			Help:      "Reading rows persisted and appended to the store.",
		}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_parse_errors_total",
			Help:      "Reading rows rejected during parsing.",
		}),
		IngestRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingest_running",
			Help:      "1 when the ingestion loop is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_batch_size",
			Help:      "Number of rows per ingestion batch.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_batch_duration_seconds",
			Help:      "Duration of a complete ingestion batch cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Forward geocoding requests by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ForecastRequests,
		m.CacheLookups,
		m.CacheComputes,
		m.CacheEpoch,
		m.PredictDuration,
		m.ClusterRuns,
		m.ClusterCities,
		m.ClusterDuration,
		m.RowsConsumed,
		m.RowsLoaded,
		m.ParseErrors,
		m.IngestRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.GeocodeRequests,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
