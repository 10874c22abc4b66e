package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "prestadores"

var (
	labelsProviderModel       = []string{"provider", "model"}
	labelsProviderModelStatus = []string{"provider", "model", "status"}
)

// Embedding provider and cache metrics.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "embedding",
		Name:      "requests_total",
		Help:      "Embedding provider requests by outcome",
	}, labelsProviderModelStatus)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "embedding",
		Name:      "request_duration_seconds",
		Help:      "Successful embedding request latency",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, labelsProviderModel)

	EmbeddingTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "embedding",
		Name:      "tokens_total",
		Help:      "Tokens billed by the embedding provider",
	}, labelsProviderModel)

	EmbeddingErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "embedding",
		Name:      "errors_total",
		Help:      "Embedding failures by kind",
	}, []string{"provider", "model", "error_type"})

	// EmbeddingCacheTotal has label result: hit or miss.
	EmbeddingCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "embedding",
		Name:      "cache_total",
		Help:      "Embedding cache lookups by result",
	}, []string{"result"})
)

var embeddingGroup = newGroup(
	EmbeddingRequestsTotal,
	EmbeddingRequestDuration,
	EmbeddingTokensTotal,
	EmbeddingErrorsTotal,
	EmbeddingCacheTotal,
)

// RegisterEmbeddingMetrics registers the embedding metrics with the default registry.
func RegisterEmbeddingMetrics() { embeddingGroup.register() }
