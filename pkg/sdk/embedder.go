package prestadores

import "context"

// Embedder turns a text into a vector. Corpus chunks and search queries go
// through the same Embedder, with different instruction prefixes.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder is optional. When the Embedder passed to WithEmbedder also
// implements it, indexing sends chunks in batches instead of one by one.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// EmbeddingResult is one vector and the tokens it cost.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult holds one vector per input text, in input order.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// Generator writes the answer for a fully rendered prompt.
//
// Embedders and generators may also implement
//
//	HealthCheck(ctx context.Context) error
//
// to be included in Client.Health.
type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float32) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string, temperature float32) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string, temperature float32) (string, error) {
	return f(ctx, prompt, temperature)
}
