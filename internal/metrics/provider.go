package metrics

import "time"

// Provider call statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Embedding failure kinds for the error_type label.
const (
	ErrorTypeAPI           = "api_error"
	ErrorTypeCountMismatch = "count_mismatch"
	ErrorTypeEmptyVector   = "empty_vector"
)

// EmbeddingCall records the outcome of one embedding provider request.
type EmbeddingCall struct {
	Provider string
	Model    string
}

// Succeeded records a successful request; zero tokens are not added.
func (c EmbeddingCall) Succeeded(d time.Duration, totalTokens int) {
	EmbeddingRequestsTotal.WithLabelValues(c.Provider, c.Model, StatusSuccess).Inc()
	EmbeddingRequestDuration.WithLabelValues(c.Provider, c.Model).Observe(d.Seconds())
	if totalTokens > 0 {
		EmbeddingTokensTotal.WithLabelValues(c.Provider, c.Model).Add(float64(totalTokens))
	}
}

// Failed records a failed request of the given kind.
func (c EmbeddingCall) Failed(errorType string) {
	EmbeddingRequestsTotal.WithLabelValues(c.Provider, c.Model, StatusError).Inc()
	EmbeddingErrorsTotal.WithLabelValues(c.Provider, c.Model, errorType).Inc()
}

// GenerationCall records the outcome of one generation provider request.
type GenerationCall struct {
	Provider string
	Model    string
}

// Succeeded records a completed generation and its token usage.
func (c GenerationCall) Succeeded(d time.Duration, promptTokens, completionTokens int) {
	GenerationRequestsTotal.WithLabelValues(c.Provider, c.Model, StatusSuccess).Inc()
	GenerationRequestDuration.WithLabelValues(c.Provider, c.Model).Observe(d.Seconds())
	GenerationTokensTotal.WithLabelValues(c.Provider, c.Model, "prompt").Add(float64(promptTokens))
	GenerationTokensTotal.WithLabelValues(c.Provider, c.Model, "completion").Add(float64(completionTokens))
}

// Failed records a failed or empty generation.
func (c GenerationCall) Failed() {
	GenerationRequestsTotal.WithLabelValues(c.Provider, c.Model, StatusError).Inc()
}
