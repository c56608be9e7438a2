package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initFeedMetrics() {
	r.FeedPublishedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "widegraph_feed_published_total",
			Help: "Total number of mutation batches published on the feed",
		},
	)

	r.FeedPublishFailures = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "widegraph_feed_publish_failures_total",
			Help: "Total number of failed feed publishes",
		},
	)

	r.FeedBytesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "widegraph_feed_bytes_total",
			Help: "Total bytes published on the feed",
		},
	)
}
