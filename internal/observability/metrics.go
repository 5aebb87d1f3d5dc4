package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the radar pipeline.
type Metrics struct {
	RunsTotal     *prometheus.CounterVec // labels: outcome={success,input_error,upstream_error,error}
	RunsRejected  prometheus.Counter
	RunInProgress prometheus.Gauge

	StageDuration *prometheus.HistogramVec // labels: stage={load,decompress,decode,pointing,coloring,sampling,clustering}
	Points        prometheus.Gauge
	Clusters      prometheus.Gauge

	// Object storage metrics.
	StorageRequests *prometheus.CounterVec   // labels: op={list,fetch}, outcome={success,error}
	StorageDuration *prometheus.HistogramVec // labels: op={list,fetch}
	CacheLookups    *prometheus.CounterVec   // labels: cache={disk,listing}, result={hit,miss}

	ResultsPublished *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RunsTotal,
		m.RunsRejected,
		m.RunInProgress,
		m.StageDuration,
		m.Points,
		m.Clusters,
		m.StorageRequests,
		m.StorageDuration,
		m.CacheLookups,
		m.ResultsPublished,
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
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storm_radar",
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		RunsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storm_radar",
			Name:      "runs_rejected_total",
			Help:      "Run requests rejected because a run was already in progress.",
		}),
		RunInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storm_radar",
			Name:      "run_in_progress",
			Help:      "1 while a scan is being processed, 0 otherwise.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storm_radar",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		Points: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storm_radar",
			Name:      "points",
			Help:      "Points in the most recent result.",
		}),
		Clusters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storm_radar",
			Name:      "clusters",
			Help:      "Clusters in the most recent result.",
		}),
		StorageRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storm_radar",
			Name:      "storage_requests_total",
			Help:      "Object storage requests by operation and outcome.",
		}, []string{"op", "outcome"}),
		StorageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storm_radar",
			Name:      "storage_request_duration_seconds",
			Help:      "Object storage request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"op"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storm_radar",
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache and result.",
		}, []string{"cache", "result"}),
		ResultsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storm_radar",
			Name:      "results_published_total",
			Help:      "Scan result events published to Kafka by outcome.",
		}, []string{"outcome"}),
	}
}
