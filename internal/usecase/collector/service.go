// Package collector gathers deduplicated candidates across query variants.
package collector

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/prestadores/internal/domain"
	"github.com/kailas-cloud/prestadores/internal/metrics"
)

// DefaultMaxCandidates bounds the candidate set.
const DefaultMaxCandidates = 15

// FallbackTerms are queried in order when no variant returns anything.
var FallbackTerms = []string{"prestadores de salud", "médicos", "especialistas", "doctores"}

// Retriever returns documents for one query text. It never fails.
type Retriever interface {
	Search(ctx context.Context, text string, k int) []domain.Document
}

// Config tunes the collector.
type Config struct {
	K             int
	MaxCandidates int
	// Concurrency above 1 retrieves variants in parallel.
	Concurrency int
}

// Candidates is the bounded, ordered candidate set for one query.
type Candidates struct {
	Documents    []domain.Document
	UsedFallback bool
	// Term is the generic term that produced the documents when UsedFallback is set.
	Term string
}

// Service merges variant results.
type Service struct {
	retriever Retriever
	cfg       Config
	logger    *zap.Logger
}

// New creates a collector.
func New(retriever Retriever, cfg Config, logger *zap.Logger) *Service {
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = DefaultMaxCandidates
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Service{retriever: retriever, cfg: cfg, logger: logger}
}

// Collect retrieves every variant and merges the results in variant order,
// keeping the first occurrence of each dedup key, up to the cap. With no
// results at all it tries the generic fallback terms.
func (s *Service) Collect(ctx context.Context, variants []string) Candidates {
	var docs []domain.Document
	if s.cfg.Concurrency > 1 && len(variants) > 1 {
		docs = s.collectConcurrent(ctx, variants)
	} else {
		docs = s.collectSequential(ctx, variants)
	}

	if len(docs) > 0 {
		metrics.SearchCandidates.Observe(float64(len(docs)))
		return Candidates{Documents: docs}
	}

	for _, term := range FallbackTerms {
		found := s.retriever.Search(ctx, term, s.cfg.K)
		if len(found) == 0 {
			continue
		}
		m := newMerger(s.cfg.MaxCandidates)
		m.add(found)
		metrics.SearchFallbackTotal.Inc()
		metrics.SearchCandidates.Observe(float64(len(m.docs)))
		s.logger.Info("No variant matched, using generic term",
			zap.Strings("variants", variants),
			zap.String("term", term),
			zap.Int("candidates", len(m.docs)),
		)
		return Candidates{Documents: m.docs, UsedFallback: true, Term: term}
	}

	metrics.SearchCandidates.Observe(0)
	return Candidates{}
}

func (s *Service) collectSequential(ctx context.Context, variants []string) []domain.Document {
	m := newMerger(s.cfg.MaxCandidates)
	for _, v := range variants {
		if m.full() {
			break
		}
		m.add(s.retriever.Search(ctx, v, s.cfg.K))
	}
	return m.docs
}

// collectConcurrent retrieves all variants in parallel; merging still follows variant order.
func (s *Service) collectConcurrent(ctx context.Context, variants []string) []domain.Document {
	results := make([][]domain.Document, len(variants))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, v := range variants {
		g.Go(func() error {
			results[i] = s.retriever.Search(gctx, v, s.cfg.K)
			return nil
		})
	}
	_ = g.Wait() // retrieval never fails

	m := newMerger(s.cfg.MaxCandidates)
	for _, r := range results {
		if m.full() {
			break
		}
		m.add(r)
	}
	return m.docs
}

type merger struct {
	limit int
	seen  map[string]struct{}
	docs  []domain.Document
}

func newMerger(limit int) *merger {
	return &merger{limit: limit, seen: make(map[string]struct{})}
}

func (m *merger) full() bool { return len(m.docs) >= m.limit }

func (m *merger) add(docs []domain.Document) {
	for _, d := range docs {
		if m.full() {
			return
		}
		key := d.DedupKey()
		if _, ok := m.seen[key]; ok {
			continue
		}
		m.seen[key] = struct{}{}
		m.docs = append(m.docs, d)
	}
}
