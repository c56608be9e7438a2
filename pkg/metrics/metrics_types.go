package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the application
type Registry struct {
	// Loader metrics
	LoaderOperationsTotal   *prometheus.CounterVec
	LoaderOperationDuration *prometheus.HistogramVec
	ElementsLoaded          *prometheus.CounterVec
	IndexEntriesWritten     prometheus.Counter
	IndexEntriesRemoved     prometheus.Counter
	PropertyNoOpsTotal      prometheus.Counter

	// Batcher metrics (labelled by table)
	MutationsSubmitted *prometheus.CounterVec
	MutationsFlushed   *prometheus.CounterVec
	MutationsFailed    *prometheus.CounterVec
	MutationsBuffered  *prometheus.GaugeVec
	FlushDuration      *prometheus.HistogramVec
	FlushFailures      *prometheus.CounterVec

	// Store metrics (labelled by backend)
	StoreApplyTotal    *prometheus.CounterVec
	StoreApplyDuration *prometheus.HistogramVec
	WALAppendsTotal    prometheus.Counter
	WALBytesTotal      prometheus.Counter

	// Feed metrics
	FeedPublishedTotal  prometheus.Counter
	FeedPublishFailures prometheus.Counter
	FeedBytesTotal      prometheus.Counter

	registry *prometheus.Registry
	mu       sync.RWMutex
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
	}

	// Initialize all metrics
	r.initLoaderMetrics()
	r.initStoreMetrics()
	r.initFeedMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
