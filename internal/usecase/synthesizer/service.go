// Package synthesizer writes the final answer from a bounded candidate set.
package synthesizer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/prestadores/internal/domain"
)

// DefaultTemperature is used when the caller does not configure one.
const DefaultTemperature float32 = 0.3

// Answer is the generated text and the documents it was grounded on.
type Answer struct {
	Text    string
	Sources []domain.Document
}

// Config tunes generation.
type Config struct {
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// Service calls the generator with the search prompt.
type Service struct {
	generator domain.Generator
	cfg       Config
	logger    *zap.Logger
}

// New creates a synthesizer. cfg.Model is only used to label errors.
func New(generator domain.Generator, cfg Config, logger *zap.Logger) *Service {
	return &Service{generator: generator, cfg: cfg, logger: logger}
}

// Synthesize answers question from candidates only. Empty candidates return
// NoResults without calling the generator.
func (s *Service) Synthesize(ctx context.Context, question string, candidates []domain.Document) (Answer, error) {
	if len(candidates) == 0 {
		return Answer{Text: NoResults}, nil
	}

	contents := make([]string, len(candidates))
	for i, d := range candidates {
		contents[i] = d.Content
	}

	prompt, err := BuildPrompt(question, contents)
	if err != nil {
		return Answer{}, &domain.GenerationError{Model: s.cfg.Model, Err: fmt.Errorf("render prompt: %w", err)}
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := s.generator.Generate(ctx, domain.GenerationRequest{
		Prompt:      prompt,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return Answer{}, &domain.GenerationError{Model: s.cfg.Model, Err: err}
	}
	domain.UsageFromContext(ctx).AddGenerationTokens(res.TotalTokens)

	s.logger.Debug("Answer generated",
		zap.String("model", s.cfg.Model),
		zap.Int("candidates", len(candidates)),
		zap.Int("total_tokens", res.TotalTokens),
		zap.Duration("duration", time.Since(start)),
	)

	return Answer{Text: res.Text, Sources: candidates}, nil
}
