// Package gemini adapts the Gemini API to the domain embedder and generator.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/kailas-cloud/prestadores/internal/domain"
	"github.com/kailas-cloud/prestadores/internal/metrics"
)

const providerName = "gemini"

// Config holds the Gemini settings shared by the embedder and the generator.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Timeout    time.Duration
	Logger     *zap.Logger
}

// NewClient creates a Gemini API client. BaseURL overrides the public endpoint.
func NewClient(ctx context.Context, cfg *Config) (*genai.Client, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return client, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

func wrapError(err error, sentinel error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("gemini API error %d: %s: %w", apiErr.Code, apiErr.Message, sentinel)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("gemini request timed out: %w", sentinel)
	}
	return fmt.Errorf("gemini request failed: %v: %w", err, sentinel)
}

// Generator answers single-turn prompts with GenerateContent.
type Generator struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewGenerator wraps an existing client.
func NewGenerator(client *genai.Client, cfg *Config) *Generator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{client: client, model: cfg.Model, timeout: cfg.Timeout, logger: logger}
}

// Model returns the configured model name.
func (g *Generator) Model() string { return g.model }

// Generate implements domain.Generator.
func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt),
		&genai.GenerateContentConfig{Temperature: genai.Ptr(req.Temperature)})
	duration := time.Since(start)

	call := metrics.GenerationCall{Provider: providerName, Model: g.model}
	if err != nil {
		call.Failed()
		g.logger.Warn("gemini generation failed", zap.String("model", g.model), zap.Error(err))
		return domain.GenerationResult{}, wrapError(err, domain.ErrGenerationProviderError)
	}

	text := resp.Text()
	if text == "" {
		call.Failed()
		return domain.GenerationResult{}, fmt.Errorf("empty gemini response: %w", domain.ErrGenerationProviderError)
	}

	out := domain.GenerationResult{Text: text}
	if u := resp.UsageMetadata; u != nil {
		out.PromptTokens = int(u.PromptTokenCount)
		out.CompletionTokens = int(u.CandidatesTokenCount)
		out.TotalTokens = int(u.TotalTokenCount)
	}

	call.Succeeded(duration, out.PromptTokens, out.CompletionTokens)

	return out, nil
}

// HealthCheck fetches the configured model's metadata.
func (g *Generator) HealthCheck(ctx context.Context) error {
	if _, err := g.client.Models.Get(ctx, g.model, nil); err != nil {
		return fmt.Errorf("get model %s: %w", g.model, err)
	}
	return nil
}

// Embedder vectorizes texts with EmbedContent.
type Embedder struct {
	client     *genai.Client
	model      string
	dimensions int
	timeout    time.Duration
	logger     *zap.Logger
}

// NewEmbedder wraps an existing client.
func NewEmbedder(client *genai.Client, cfg *Config) *Embedder {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{
		client:     client,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		timeout:    cfg.Timeout,
		logger:     logger,
	}
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: res.Embeddings[0]}, nil
}

// BatchEmbed implements domain.BatchEmbedder. The Gemini API reports no token usage for embeddings.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	ctx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	var cfg *genai.EmbedContentConfig
	if e.dimensions > 0 {
		cfg = &genai.EmbedContentConfig{OutputDimensionality: genai.Ptr(int32(e.dimensions))}
	}

	start := time.Now()
	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, cfg)
	duration := time.Since(start)

	call := metrics.EmbeddingCall{Provider: providerName, Model: e.model}
	if err != nil {
		call.Failed(metrics.ErrorTypeAPI)
		e.logger.Warn("gemini embedding failed", zap.String("model", e.model), zap.Error(err))
		return domain.BatchEmbeddingResult{}, wrapError(err, domain.ErrEmbeddingProviderError)
	}
	if len(resp.Embeddings) != len(texts) {
		call.Failed(metrics.ErrorTypeCountMismatch)
		return domain.BatchEmbeddingResult{}, fmt.Errorf("got %d embeddings for %d texts: %w",
			len(resp.Embeddings), len(texts), domain.ErrEmbeddingProviderError)
	}

	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(resp.Embeddings))}
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			call.Failed(metrics.ErrorTypeEmptyVector)
			return domain.BatchEmbeddingResult{}, fmt.Errorf("empty embedding at %d: %w", i, domain.ErrEmbeddingProviderError)
		}
		out.Embeddings[i] = emb.Values
	}

	// The embed API reports no token usage.
	call.Succeeded(duration, 0)
	return out, nil
}

// HealthCheck fetches the embedding model's metadata.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.Models.Get(ctx, e.model, nil); err != nil {
		return fmt.Errorf("get model %s: %w", e.model, err)
	}
	return nil
}
