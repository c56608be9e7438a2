package metrics

import (
	"time"
)

// RecordLoaderOperation records one loader call with its duration
func (r *Registry) RecordLoaderOperation(operation, status string, duration time.Duration) {
	r.LoaderOperationsTotal.WithLabelValues(operation, status).Inc()
	r.LoaderOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordStoreApply records one batch apply against a store backend
func (r *Registry) RecordStoreApply(backend, status string, duration time.Duration) {
	r.StoreApplyTotal.WithLabelValues(backend, status).Inc()
	r.StoreApplyDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordWALAppend records one write-ahead log append of n compressed bytes
func (r *Registry) RecordWALAppend(n int) {
	r.WALAppendsTotal.Inc()
	r.WALBytesTotal.Add(float64(n))
}

// RecordFeedPublish records one feed publish of n bytes
func (r *Registry) RecordFeedPublish(n int, err error) {
	if err != nil {
		r.FeedPublishFailures.Inc()
		return
	}
	r.FeedPublishedTotal.Inc()
	r.FeedBytesTotal.Add(float64(n))
}
