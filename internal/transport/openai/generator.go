package openai

import (
	"context"
	"fmt"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/prestadores/internal/domain"
	"github.com/kailas-cloud/prestadores/internal/metrics"
)

// Generator answers single-turn prompts through the chat completions API.
type Generator struct {
	client   *openai.Client
	model    string
	user     string
	provider string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewGenerator creates an OpenAI-compatible chat generator.
func NewGenerator(cfg *Config) *Generator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		client:   newClient(cfg),
		model:    cfg.Model,
		user:     cfg.User,
		provider: cfg.Provider,
		timeout:  cfg.Timeout,
		logger:   logger,
	}
}

// Model returns the configured chat model.
func (g *Generator) Model() string { return g.model }

// Generate implements domain.Generator.
func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: wireTemperature(req.Temperature),
		User:        g.user,
	})
	duration := time.Since(start)

	call := metrics.GenerationCall{Provider: g.provider, Model: g.model}
	if err != nil {
		call.Failed()
		g.logger.Warn("chat completion failed", zap.String("model", g.model), zap.Error(err))
		return domain.GenerationResult{}, parseAPIError(err, domain.ErrGenerationProviderError)
	}
	if len(resp.Choices) == 0 {
		call.Failed()
		return domain.GenerationResult{}, fmt.Errorf("empty completion response: %w", domain.ErrGenerationProviderError)
	}

	call.Succeeded(duration, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	return domain.GenerationResult{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

// wireTemperature keeps a zero temperature on the wire. The request field is
// omitempty, so 0 would be dropped and the API default used instead.
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

// HealthCheck verifies API availability via ListModels.
func (g *Generator) HealthCheck(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
