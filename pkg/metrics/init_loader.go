package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initLoaderMetrics() {
	r.LoaderOperationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "widegraph_loader_operations_total",
			Help: "Total number of loader operations",
		},
		[]string{"operation", "status"},
	)

	r.LoaderOperationDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "widegraph_loader_operation_duration_seconds",
			Help:    "Loader operation duration in seconds",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
		[]string{"operation"},
	)

	r.ElementsLoaded = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "widegraph_loader_elements_total",
			Help: "Total number of elements built by the loader",
		},
		[]string{"type"},
	)

	r.IndexEntriesWritten = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "widegraph_loader_index_entries_written_total",
			Help: "Total number of index entry insertions emitted",
		},
	)

	r.IndexEntriesRemoved = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "widegraph_loader_index_entries_removed_total",
			Help: "Total number of index entry retractions emitted",
		},
	)

	r.PropertyNoOpsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "widegraph_loader_property_noops_total",
			Help: "Total number of SetProperty calls skipped because the value was unchanged",
		},
	)

	r.MutationsSubmitted = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "widegraph_batcher_mutations_submitted_total",
			Help: "Total number of mutations submitted to a batcher",
		},
		[]string{"table"},
	)

	r.MutationsFlushed = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "widegraph_batcher_mutations_flushed_total",
			Help: "Total number of mutations durably flushed",
		},
		[]string{"table"},
	)

	r.MutationsFailed = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "widegraph_batcher_mutations_failed_total",
			Help: "Total number of mutations in failed flushes",
		},
		[]string{"table"},
	)

	r.MutationsBuffered = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "widegraph_batcher_mutations_buffered",
			Help: "Mutations currently buffered awaiting flush",
		},
		[]string{"table"},
	)

	r.FlushDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "widegraph_batcher_flush_duration_seconds",
			Help:    "Batch flush duration in seconds",
			Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
		[]string{"table"},
	)

	r.FlushFailures = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "widegraph_batcher_flush_failures_total",
			Help: "Total number of failed batch flushes",
		},
		[]string{"table"},
	)
}
