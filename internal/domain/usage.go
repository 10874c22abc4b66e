package domain

import (
	"context"
	"sync/atomic"
)

type usageKey struct{}

// Usage collects the provider tokens spent on a single request.
// The handler puts a pointer into the context before calling the service;
// retrieval and generation add to it, possibly from several goroutines.
type Usage struct {
	embeddingTokens  atomic.Int64
	generationTokens atomic.Int64
	embedded         atomic.Bool
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *Usage) {
	u := &Usage{}
	return context.WithValue(ctx, usageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *Usage {
	u, _ := ctx.Value(usageKey{}).(*Usage)
	return u
}

// AddEmbeddingTokens records an embedding call. A cache hit counts as a call with 0 tokens.
func (u *Usage) AddEmbeddingTokens(n int) {
	if u != nil {
		u.embeddingTokens.Add(int64(n))
		u.embedded.Store(true)
	}
}

// AddGenerationTokens records tokens spent writing the answer.
func (u *Usage) AddGenerationTokens(n int) {
	if u != nil {
		u.generationTokens.Add(int64(n))
	}
}

// EmbeddingTokens returns the embedding tokens recorded so far.
func (u *Usage) EmbeddingTokens() int {
	if u == nil {
		return 0
	}
	return int(u.embeddingTokens.Load())
}

// GenerationTokens returns the generation tokens recorded so far.
func (u *Usage) GenerationTokens() int {
	if u == nil {
		return 0
	}
	return int(u.generationTokens.Load())
}

// Embedded reports whether any embedding call was recorded.
func (u *Usage) Embedded() bool {
	return u != nil && u.embedded.Load()
}
