package domain

import "context"

// GenerationRequest is a single-turn prompt for a text generation backend.
type GenerationRequest struct {
	Prompt      string
	Temperature float32
}

// GenerationResult carries the generated text and token usage.
type GenerationResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Generator produces text from a prompt. Implementations are stateless.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error)
}
