package refresh

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the refresh cycle. Registered on the default
// registry and served from /metrics.
var (
	cyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "homegraph_refresh_cycles_total",
		Help: "Refresh cycles by outcome.",
	}, []string{"outcome"})

	fetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "homegraph_history_fetch_failures_total",
		Help: "History fetches that failed, per entity.",
	}, []string{"entity"})

	downsampleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "homegraph_downsample_duration_seconds",
		Help:    "Time spent downsampling one entity's history.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	})

	seriesBroadcasts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "homegraph_series_broadcasts_total",
		Help: "Series updates pushed to dashboards.",
	})
)
