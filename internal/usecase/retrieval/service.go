// Package retrieval runs similarity searches against the chunk index.
package retrieval

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/prestadores/internal/domain"
	"github.com/kailas-cloud/prestadores/internal/metrics"
)

// DefaultK is the number of documents returned when k is not positive.
const DefaultK = 10

// Repository searches stored chunks by vector.
type Repository interface {
	Search(ctx context.Context, collection string, vector []float32, k int) ([]domain.ScoredDocument, error)
}

// Service embeds a query text and returns the closest documents.
type Service struct {
	repo       Repository
	embedder   domain.Embedder
	collection string
	timeout    time.Duration
	logger     *zap.Logger
}

// New creates a retrieval service over collection. timeout bounds each search; zero disables it.
func New(repo Repository, embedder domain.Embedder, collection string, timeout time.Duration, logger *zap.Logger) *Service {
	return &Service{
		repo:       repo,
		embedder:   embedder,
		collection: collection,
		timeout:    timeout,
		logger:     logger,
	}
}

// Search returns at most k documents ordered by descending similarity.
// Failures are logged as *domain.RetrievalError and yield an empty result.
func (s *Service) Search(ctx context.Context, text string, k int) []domain.Document {
	docs, err := s.search(ctx, text, k)
	if err != nil {
		metrics.RetrievalErrorsTotal.Inc()
		s.logger.Warn("Retrieval failed",
			zap.String("query", text),
			zap.String("collection", s.collection),
			zap.Error(&domain.RetrievalError{Query: text, Err: err}),
		)
		return []domain.Document{}
	}
	return docs
}

func (s *Service) search(ctx context.Context, text string, k int) ([]domain.Document, error) {
	if k <= 0 {
		k = DefaultK
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	emb, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped into RetrievalError by Search
	}
	domain.UsageFromContext(ctx).AddEmbeddingTokens(emb.TotalTokens)

	scored, err := s.repo.Search(ctx, s.collection, emb.Embedding, k)
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped into RetrievalError by Search
	}

	if len(scored) > k {
		scored = scored[:k]
	}
	docs := make([]domain.Document, len(scored))
	for i, sd := range scored {
		docs[i] = sd.Document
	}
	return docs, nil
}
