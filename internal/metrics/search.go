package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search pipeline and index Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Total number of search pipeline runs",
		},
		[]string{"outcome"}, // answer / no_results / error
	)

	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "End-to-end search pipeline duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		},
	)

	SearchCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_candidates",
			Help:      "Number of unique candidates handed to generation",
			Buckets:   []float64{0, 1, 3, 5, 10, 15},
		},
	)

	SearchFallbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_fallback_total",
			Help:      "Searches that fell back to generic provider terms",
		},
	)

	RetrievalErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_errors_total",
			Help:      "Similarity searches that failed and were treated as empty",
		},
	)

	IndexChunks = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_chunks",
			Help:      "Number of chunks in the active index",
		},
		[]string{"collection"},
	)

	IndexBuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_builds_total",
			Help:      "Index builds and loads by mode and status",
		},
		[]string{"mode", "status"}, // mode: build / load
	)

	IndexBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "index_build_duration_seconds",
			Help:      "Full index build duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)
)

var searchGroup = newGroup(
	SearchRequestsTotal,
	SearchDuration,
	SearchCandidates,
	SearchFallbackTotal,
	RetrievalErrorsTotal,
	IndexChunks,
	IndexBuildsTotal,
	IndexBuildDuration,
)

// RegisterSearchMetrics registers the search and index metrics with the default registry.
func RegisterSearchMetrics() { searchGroup.register() }
