package embedding

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/prestadores/internal/domain"
)

type mockEmbedder struct {
	result     domain.EmbeddingResult
	err        error
	batchErr   error
	batchSizes []int
	healthErr  error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return m.result, m.err
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batchSizes = append(m.batchSizes, len(texts))
	if m.batchErr != nil {
		return domain.BatchEmbeddingResult{}, m.batchErr
	}
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = m.result.Embedding
	}
	return domain.BatchEmbeddingResult{
		Embeddings:  embeddings,
		TotalTokens: m.result.TotalTokens * len(texts),
	}, nil
}

func (m *mockEmbedder) HealthCheck(context.Context) error { return m.healthErr }

// singleEmbedder has no batch support.
type singleEmbedder struct{ calls int }

func (s *singleEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	s.calls++
	return domain.EmbeddingResult{Embedding: []float32{1}, TotalTokens: 1}, nil
}

func TestInstrumentedEmbedder_Success(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}, TotalTokens: 5}}
	p := NewInstrumentedEmbedder(inner, "test", "test-model", zap.NewNop())

	result, err := p.Embed(context.Background(), "hola")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.TotalTokens != 5 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestInstrumentedEmbedder_Error(t *testing.T) {
	boom := errors.New("provider down")
	p := NewInstrumentedEmbedder(&mockEmbedder{err: boom}, "test", "test-model", zap.NewNop())

	if _, err := p.Embed(context.Background(), "hola"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
}

func TestBatchEmbed_SplitsIntoSubBatches(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}, TotalTokens: 2}}
	p := NewInstrumentedEmbedder(inner, "test", "test-model", zap.NewNop()).WithMaxBatchSize(2)

	res, err := p.BatchEmbed(context.Background(), []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 5 {
		t.Fatalf("expected 5 embeddings, got %d", len(res.Embeddings))
	}
	if len(inner.batchSizes) != 3 || inner.batchSizes[0] != 2 || inner.batchSizes[2] != 1 {
		t.Errorf("unexpected sub-batch sizes %v", inner.batchSizes)
	}
	if res.TotalTokens != 10 {
		t.Errorf("expected summed tokens 10, got %d", res.TotalTokens)
	}
}

func TestBatchEmbed_FallbackWithoutBatchSupport(t *testing.T) {
	inner := &singleEmbedder{}
	p := NewInstrumentedEmbedder(inner, "test", "test-model", zap.NewNop())

	res, err := p.BatchEmbed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 3 || len(res.Embeddings) != 3 {
		t.Errorf("expected 3 single calls, got %d calls / %d vectors", inner.calls, len(res.Embeddings))
	}
}

func TestBatchEmbed_Error(t *testing.T) {
	boom := errors.New("batch failed")
	p := NewInstrumentedEmbedder(&mockEmbedder{batchErr: boom}, "test", "test-model", zap.NewNop())

	if _, err := p.BatchEmbed(context.Background(), []string{"a"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped batch error, got %v", err)
	}
}

func TestBatchEmbed_Empty(t *testing.T) {
	inner := &mockEmbedder{}
	p := NewInstrumentedEmbedder(inner, "test", "test-model", zap.NewNop())

	res, err := p.BatchEmbed(context.Background(), nil)
	if err != nil || res.Embeddings != nil {
		t.Fatalf("expected empty result, got %+v / %v", res, err)
	}
	if len(inner.batchSizes) != 0 {
		t.Error("inner must not be called for empty input")
	}
}

func TestHealthCheck(t *testing.T) {
	down := errors.New("down")
	if err := NewInstrumentedEmbedder(&mockEmbedder{healthErr: down}, "t", "m", zap.NewNop()).
		HealthCheck(context.Background()); !errors.Is(err, down) {
		t.Errorf("expected proxied health error, got %v", err)
	}
	if err := NewInstrumentedEmbedder(&singleEmbedder{}, "t", "m", zap.NewNop()).
		HealthCheck(context.Background()); err != nil {
		t.Errorf("embedder without health check must report healthy, got %v", err)
	}
}
