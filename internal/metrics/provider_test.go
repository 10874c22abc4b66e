package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestEmbeddingCall(t *testing.T) {
	call := EmbeddingCall{Provider: "test-emb", Model: "m1"}

	call.Succeeded(50*time.Millisecond, 12)
	call.Succeeded(10*time.Millisecond, 0)
	call.Failed(ErrorTypeCountMismatch)

	if got := testutil.ToFloat64(EmbeddingRequestsTotal.WithLabelValues("test-emb", "m1", StatusSuccess)); got != 2 {
		t.Errorf("success requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(EmbeddingTokensTotal.WithLabelValues("test-emb", "m1")); got != 12 {
		t.Errorf("tokens = %v, want 12", got)
	}
	if got := testutil.ToFloat64(EmbeddingErrorsTotal.WithLabelValues("test-emb", "m1", ErrorTypeCountMismatch)); got != 1 {
		t.Errorf("count_mismatch errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(EmbeddingRequestsTotal.WithLabelValues("test-emb", "m1", StatusError)); got != 1 {
		t.Errorf("error requests = %v, want 1", got)
	}
}

func TestGenerationCall(t *testing.T) {
	call := GenerationCall{Provider: "test-gen", Model: "m2"}

	call.Succeeded(time.Second, 100, 40)
	call.Failed()

	if got := testutil.ToFloat64(GenerationTokensTotal.WithLabelValues("test-gen", "m2", "prompt")); got != 100 {
		t.Errorf("prompt tokens = %v, want 100", got)
	}
	if got := testutil.ToFloat64(GenerationTokensTotal.WithLabelValues("test-gen", "m2", "completion")); got != 40 {
		t.Errorf("completion tokens = %v, want 40", got)
	}
	if got := testutil.ToFloat64(GenerationRequestsTotal.WithLabelValues("test-gen", "m2", StatusError)); got != 1 {
		t.Errorf("error requests = %v, want 1", got)
	}
}
