package embcache

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/kailas-cloud/prestadores/internal/db"
	"github.com/kailas-cloud/prestadores/internal/domain"
)

// lengthEmbedder returns one-dimensional vectors holding the text length and
// records every batch it receives.
type lengthEmbedder struct {
	tokensPerText int
	err           error
	batches       [][]string
}

func (e *lengthEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if e.err != nil {
		return domain.EmbeddingResult{}, e.err
	}
	return domain.EmbeddingResult{
		Embedding:    []float32{float32(len(text))},
		PromptTokens: e.tokensPerText,
		TotalTokens:  e.tokensPerText,
	}, nil
}

func (e *lengthEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	e.batches = append(e.batches, append([]string(nil), texts...))
	if e.err != nil {
		return domain.BatchEmbeddingResult{}, e.err
	}
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, t := range texts {
		out.Embeddings[i] = []float32{float32(len(t))}
	}
	out.PromptTokens = e.tokensPerText * len(texts)
	out.TotalTokens = e.tokensPerText * len(texts)
	return out, nil
}

// memKV is an in-memory KV store with injectable failures.
type memKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	getErr  error
	setErr  error
	sets    int
	lookups int
}

func newMemKV() *memKV { return &memKV{data: make(map[string][]byte)} }

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

// seed stores vec under the key the cache would use for text.
func (m *memKV) seed(c *CachedEmbedder, text string, vec []float32) {
	m.data[c.key(text)] = encode(vec)
}

const testModel = "text-embedding-3-large"

func newTestCache(t *testing.T, inner domain.Embedder, opts Options) (*CachedEmbedder, *memKV) {
	t.Helper()
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = KeyPrefix("prestadores:", testModel)
	}
	store := newMemKV()
	return New(inner, store, opts), store
}

func keysWithPrefix(m *memKV, prefix string) int {
	n := 0
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			n++
		}
	}
	return n
}
