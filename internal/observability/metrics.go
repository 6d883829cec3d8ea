package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for atlas assembly and remote fetches.
type Metrics struct {
	DatasetsLoaded prometheus.Counter
	DatasetsFailed prometheus.Counter
	JoinedFeatures prometheus.Counter
	PointMarkers   prometheus.Counter
	LoadDuration   prometheus.Histogram
	AtlasLayers    prometheus.Gauge

	// Geometry resolution.
	GeometryFetches *prometheus.CounterVec // labels: outcome={ok,malformed,error}
	SkippedRecords  prometheus.Counter

	// Remote fetches.
	FetchRequests *prometheus.CounterVec   // labels: outcome={success,retry,error}
	FetchCache    *prometheus.CounterVec   // labels: result={hit,miss}
	FetchDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.DatasetsLoaded,
		m.DatasetsFailed,
		m.JoinedFeatures,
		m.PointMarkers,
		m.LoadDuration,
		m.AtlasLayers,
		m.GeometryFetches,
		m.SkippedRecords,
		m.FetchRequests,
		m.FetchCache,
		m.FetchDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests can
// build as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		DatasetsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "plat_risk",
			Name:      "datasets_loaded_total",
			Help:      "Datasets that produced at least one layer.",
		}),
		DatasetsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "plat_risk",
			Name:      "datasets_failed_total",
			Help:      "Datasets whose load or parse failed.",
		}),
		JoinedFeatures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "plat_risk",
			Name:      "joined_features_total",
			Help:      "Features produced by the attribute join.",
		}),
		PointMarkers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "plat_risk",
			Name:      "point_markers_total",
			Help:      "Markers produced by point overlays.",
		}),
		LoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "plat_risk",
			Name:      "atlas_load_duration_seconds",
			Help:      "Duration of a complete atlas load.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		AtlasLayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "plat_risk",
			Name:      "atlas_layers",
			Help:      "Layers in the current atlas snapshot.",
		}),
		GeometryFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plat_risk",
			Name:      "geometry_fetches_total",
			Help:      "Geometry document fetches by outcome.",
		}, []string{"outcome"}),
		SkippedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "plat_risk",
			Name:      "skipped_records_total",
			Help:      "Records not admitted by the include flag.",
		}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plat_risk",
			Name:      "fetch_requests_total",
			Help:      "Remote fetch attempts by outcome.",
		}, []string{"outcome"}),
		FetchCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plat_risk",
			Name:      "fetch_cache_total",
			Help:      "Fetch cache lookups by result.",
		}, []string{"result"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "plat_risk",
			Name:      "fetch_duration_seconds",
			Help:      "Remote fetch duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
		}),
	}
}
