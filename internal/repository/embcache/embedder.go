// Package embcache caches embedding vectors in a key-value store, keyed by
// model and text, so rebuilds of an unchanged corpus cost no provider tokens.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/prestadores/internal/db"
	"github.com/kailas-cloud/prestadores/internal/domain"
)

const (
	resultHit  = "hit"
	resultMiss = "miss"
)

// kv is the slice of db.KVStore the cache needs.
type kv interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Options configure a CachedEmbedder.
type Options struct {
	// KeyPrefix namespaces the keys; build it with KeyPrefix so it carries the model.
	KeyPrefix string
	// Dimensions, when positive, rejects cached vectors of any other length.
	Dimensions int
	// CacheTotal counts lookups by label "result" (hit/miss). Optional.
	CacheTotal *prometheus.CounterVec
	Logger     *zap.Logger
}

// CachedEmbedder serves embeddings from a key-value store and falls back to
// the wrapped embedder on a miss. Store failures degrade to misses.
type CachedEmbedder struct {
	inner  domain.Embedder
	store  kv
	opts   Options
	logger *zap.Logger
}

// New wraps inner with a cache backed by store.
func New(inner domain.Embedder, store kv, opts Options) *CachedEmbedder {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEmbedder{inner: inner, store: store, opts: opts, logger: logger}
}

// KeyPrefix builds the cache namespace for a storage prefix and model.
func KeyPrefix(storagePrefix, model string) string {
	return storagePrefix + "emb_cache:" + model + ":"
}

// Embed returns a cached embedding or calls the inner embedder.
// A hit reports zero tokens.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.key(text)
	if vec, ok := c.lookup(ctx, key); ok {
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	res, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}
	c.write(ctx, key, res.Embedding)
	return res, nil
}

// BatchEmbed serves hits from the cache and sends each distinct miss to the
// inner embedder once, in a single batch. Output order matches texts.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}

	// pending maps a missed key to the positions waiting for it.
	pending := make(map[string][]int)
	var missKeys, missTexts []string

	for i, text := range texts {
		key := c.key(text)
		if waiting, seen := pending[key]; seen {
			pending[key] = append(waiting, i)
			continue
		}
		if vec, ok := c.lookup(ctx, key); ok {
			out.Embeddings[i] = vec
			continue
		}
		pending[key] = []int{i}
		missKeys = append(missKeys, key)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	res, err := domain.EmbedAll(ctx, c.inner, missTexts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("embed %d uncached texts: %w", len(missTexts), err)
	}

	for j, key := range missKeys {
		vec := res.Embeddings[j]
		for _, i := range pending[key] {
			out.Embeddings[i] = vec
		}
		c.write(ctx, key, vec)
	}
	out.PromptTokens = res.PromptTokens
	out.TotalTokens = res.TotalTokens
	return out, nil
}

func (c *CachedEmbedder) key(text string) string {
	h := sha256.Sum256([]byte(text))
	return c.opts.KeyPrefix + hex.EncodeToString(h[:])
}

// lookup reads and decodes a cached vector and records the outcome.
func (c *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	vec, err := c.read(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("embedding cache read failed", zap.String("key", key), zap.Error(err))
		}
		c.count(resultMiss)
		return nil, false
	}
	c.count(resultHit)
	return vec, true
}

func (c *CachedEmbedder) read(ctx context.Context, key string) ([]float32, error) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, db.ErrKeyNotFound
	}
	vec, err := decode(data)
	if err != nil {
		return nil, err
	}
	if c.opts.Dimensions > 0 && len(vec) != c.opts.Dimensions {
		return nil, fmt.Errorf("cached vector has %d dims, want %d", len(vec), c.opts.Dimensions)
	}
	return vec, nil
}

func (c *CachedEmbedder) write(ctx context.Context, key string, vec []float32) {
	if err := c.store.Set(ctx, key, encode(vec)); err != nil {
		c.logger.Warn("embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *CachedEmbedder) count(result string) {
	if c.opts.CacheTotal != nil {
		c.opts.CacheTotal.WithLabelValues(result).Inc()
	}
}

// encode stores a vector as little-endian float32s.
func encode(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decode(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("corrupt cache entry: %d bytes is not a whole number of float32s", len(data))
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return v, nil
}
