package domain

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	result EmbeddingResult
	err    error
	got    []string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	s.got = append(s.got, text)
	return s.result, s.err
}

type stubBatchEmbedder struct {
	stubEmbedder
	batchResult BatchEmbeddingResult
	batchErr    error
	batchTexts  []string
}

func (s *stubBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
	s.batchTexts = texts
	return s.batchResult, s.batchErr
}

func TestInstructionEmbedder_PrependsInstruction(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}}
	emb := NewInstructionEmbedder(inner, "query: ")

	res, err := emb.Embed(context.Background(), "cardiologia")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inner.got) != 1 || inner.got[0] != "query: cardiologia" {
		t.Errorf("expected prefixed text, got %v", inner.got)
	}
	if len(res.Embedding) != 3 {
		t.Errorf("expected 3-element vector, got %d", len(res.Embedding))
	}
}

func TestInstructionEmbedder_ErrorPropagation(t *testing.T) {
	innerErr := errors.New("provider down")
	emb := NewInstructionEmbedder(&stubEmbedder{err: innerErr}, "query: ")

	if _, err := emb.Embed(context.Background(), "x"); !errors.Is(err, innerErr) {
		t.Errorf("expected wrapped inner error, got %v", err)
	}
}

func TestEmbedAll_UsesNativeBatch(t *testing.T) {
	inner := &stubBatchEmbedder{batchResult: BatchEmbeddingResult{
		Embeddings:  [][]float32{{0.1}, {0.2}},
		TotalTokens: 8,
	}}

	res, err := EmbedAll(context.Background(), inner, []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inner.batchTexts) != 2 {
		t.Fatalf("expected batch call with 2 texts, got %v", inner.batchTexts)
	}
	if len(inner.got) != 0 {
		t.Errorf("expected no single Embed calls, got %d", len(inner.got))
	}
	if res.TotalTokens != 8 {
		t.Errorf("expected TotalTokens=8, got %d", res.TotalTokens)
	}
}

func TestEmbedAll_CountMismatch(t *testing.T) {
	inner := &stubBatchEmbedder{batchResult: BatchEmbeddingResult{Embeddings: [][]float32{{0.1}}}}

	_, err := EmbedAll(context.Background(), inner, []string{"a", "b"})
	if !errors.Is(err, ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestEmbedAll_Empty(t *testing.T) {
	inner := &stubEmbedder{}
	res, err := EmbedAll(context.Background(), inner, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 0 || len(inner.got) != 0 {
		t.Errorf("expected no work for empty input, got %v", res)
	}
}

func TestBatchFallback_SumsUsage(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{
		Embedding:    []float32{0.1, 0.2},
		PromptTokens: 5,
		TotalTokens:  5,
	}}
	res, err := BatchFallback(context.Background(), inner, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 3 {
		t.Fatalf("expected 3 embeddings, got %d", len(res.Embeddings))
	}
	if res.TotalTokens != 15 || res.PromptTokens != 15 {
		t.Errorf("expected 15/15 tokens, got %d/%d", res.PromptTokens, res.TotalTokens)
	}
}

func TestInstructionEmbedder_BatchEmbed_FallbackToSingle(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.5}, TotalTokens: 3}}
	emb := NewInstructionEmbedder(inner, "doc: ")

	res, err := emb.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 || res.TotalTokens != 6 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if inner.got[0] != "doc: a" || inner.got[1] != "doc: b" {
		t.Errorf("expected prefixed texts, got %v", inner.got)
	}
}
