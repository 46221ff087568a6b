package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "murmur_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// DiscussionOps counts discussion operations by type and outcome.
	DiscussionOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_discussion_operations_total",
		Help: "Total discussion operations by operation and outcome",
	}, []string{"operation", "outcome"})

	// ForestBuilds counts comment forest reconstructions.
	ForestBuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "murmur_comment_forest_builds_total",
		Help: "Total number of comment forest reconstructions",
	})

	// ForestCycles counts integrity failures during forest reconstruction.
	ForestCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "murmur_comment_forest_cycles_total",
		Help: "Total number of parent-reference cycles detected while building comment forests",
	})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// RecordDiscussionOp increments the discussion operation counter.
func RecordDiscussionOp(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	DiscussionOps.WithLabelValues(operation, outcome).Inc()
}
