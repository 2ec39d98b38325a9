package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "plat_quake"

// Metrics holds the Prometheus collectors for feed fetching and map composition.
type Metrics struct {
	FeedFetches       *prometheus.CounterVec   // labels: feed={earthquakes,plates}, outcome={success,error}
	FeedFetchDuration *prometheus.HistogramVec // labels: feed
	OverlayFeatures   *prometheus.GaugeVec     // labels: overlay
	ComposerPhase     prometheus.Gauge
	ViewChanges       *prometheus.CounterVec // labels: action
}

// NewMetrics creates all collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer in production.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FeedFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_fetches_total",
			Help:      "GeoJSON feed fetches by feed and outcome.",
		}, []string{"feed", "outcome"}),
		FeedFetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_fetch_duration_seconds",
			Help:      "GeoJSON feed fetch duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}, []string{"feed"}),
		OverlayFeatures: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "overlay_features",
			Help:      "Number of styled features per overlay in the current view.",
		}, []string{"overlay"}),
		ComposerPhase: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "composer_phase",
			Help:      "0 initial, 1 map ready with plates pending, 2 complete.",
		}),
		ViewChanges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "view_changes_total",
			Help:      "Accepted map view changes by action.",
		}, []string{"action"}),
	}
}

// NewMetricsForTesting registers the collectors with a fresh registry to avoid
// "already registered" panics across tests.
func NewMetricsForTesting() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
