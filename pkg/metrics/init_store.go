package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initStoreMetrics() {
	r.StoreApplyTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "widegraph_store_apply_total",
			Help: "Total number of mutation batches applied to a store backend",
		},
		[]string{"backend", "status"},
	)

	r.StoreApplyDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "widegraph_store_apply_duration_seconds",
			Help:    "Store batch apply duration in seconds",
			Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
		[]string{"backend"},
	)

	r.WALAppendsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "widegraph_store_wal_appends_total",
			Help: "Total number of write-ahead log appends",
		},
	)

	r.WALBytesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "widegraph_store_wal_bytes_total",
			Help: "Total compressed bytes appended to the write-ahead log",
		},
	)
}
