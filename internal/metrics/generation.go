package metrics

import "github.com/prometheus/client_golang/prometheus"

// Answer generation metrics.
var (
	GenerationRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "generation",
		Name:      "requests_total",
		Help:      "Generation provider requests by outcome",
	}, labelsProviderModelStatus)

	GenerationRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "generation",
		Name:      "request_duration_seconds",
		Help:      "Successful generation latency",
		Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80, 120},
	}, labelsProviderModel)

	// GenerationTokensTotal has label type: prompt or completion.
	GenerationTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "generation",
		Name:      "tokens_total",
		Help:      "Tokens billed by the generation provider",
	}, []string{"provider", "model", "type"})
)

var generationGroup = newGroup(GenerationRequestsTotal, GenerationRequestDuration, GenerationTokensTotal)

// RegisterGenerationMetrics registers the generation metrics with the default registry.
func RegisterGenerationMetrics() { generationGroup.register() }
