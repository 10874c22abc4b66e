// Package search is the never-failing entry point: plan, collect, synthesize.
package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/prestadores/internal/domain"
	"github.com/kailas-cloud/prestadores/internal/domain/query"
	"github.com/kailas-cloud/prestadores/internal/metrics"
	"github.com/kailas-cloud/prestadores/internal/usecase/indexing"
)

// ErrorPrefix starts every failed search answer.
const ErrorPrefix = "Error en búsqueda: "

// Search outcomes recorded in metrics.
const (
	outcomeAnswer    = "answer"
	outcomeNoResults = "no_results"
	outcomeError     = "error"
)

// Config names the corpus and the collection it is indexed into.
type Config struct {
	Source      string
	Collection  string
	ForceReload bool
}

// Result is a search answer with the details behind it.
type Result struct {
	Answer       string
	Sources      []domain.Document
	Variants     []string
	UsedFallback bool
	Err          error
}

// Service owns the application context for searching: it is built once and shared.
type Service struct {
	indexer     Indexer
	planner     Planner
	collector   Collector
	synthesizer Synthesizer
	cfg         Config
	logger      *zap.Logger

	once    sync.Once
	initErr error

	// mu lets searches run together while a reindex waits for them.
	mu    sync.RWMutex
	index *indexing.Index
}

// New creates the search service. Nothing is indexed until Init.
func New(
	indexer Indexer, planner Planner, collector Collector, synth Synthesizer,
	cfg Config, logger *zap.Logger,
) *Service {
	return &Service{
		indexer:     indexer,
		planner:     planner,
		collector:   collector,
		synthesizer: synth,
		cfg:         cfg,
		logger:      logger,
	}
}

// Init prepares the index at most once. A failure is kept and returned by every later call.
func (s *Service) Init(ctx context.Context) error {
	s.once.Do(func() {
		idx, err := s.indexer.Setup(ctx, s.cfg.Source, s.cfg.Collection, s.cfg.ForceReload)
		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			s.initErr = err
			s.logger.Error("Search service initialization failed", zap.Error(err))
			return
		}
		s.index = idx
		s.logger.Info("Search service initialized",
			zap.String("collection", idx.Collection),
			zap.Int("chunks", idx.Chunks),
		)
	})
	return s.initErr
}

// Search returns the answer text for raw. It never fails: errors come back
// as "Error en búsqueda: <cause>".
func (s *Service) Search(ctx context.Context, raw any) string {
	return s.SearchDetailed(ctx, raw).Answer
}

// SearchDetailed is Search with the sources, variants and error kept.
func (s *Service) SearchDetailed(ctx context.Context, raw any) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Search panicked", zap.Any("panic", r), zap.Stack("stack"))
			res = s.failed(res, fmt.Errorf("%v", r))
		}
		metrics.SearchDuration.Observe(time.Since(start).Seconds())
	}()

	if err := s.Init(ctx); err != nil {
		return s.failed(res, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	plan := s.planner.Plan(raw)
	res.Variants = plan.Variants

	cands := s.collector.Collect(ctx, plan.Variants)
	res.UsedFallback = cands.UsedFallback

	ans, err := s.synthesizer.Synthesize(ctx, plan.Question, cands.Documents)
	if err != nil {
		return s.failed(res, err)
	}

	res.Answer = ans.Text
	res.Sources = ans.Sources

	outcome := outcomeAnswer
	if len(cands.Documents) == 0 {
		outcome = outcomeNoResults
	}
	metrics.SearchRequestsTotal.WithLabelValues(outcome).Inc()
	s.logger.Debug("Search completed",
		zap.String("query_kind", queryKind(plan.Query)),
		zap.Strings("variants", plan.Variants),
		zap.String("parse_outcome", plan.Outcome.String()),
		zap.Int("candidates", len(cands.Documents)),
		zap.Bool("fallback", cands.UsedFallback),
	)

	return res
}

func queryKind(q query.Query) string {
	switch q.(type) {
	case query.Structured:
		return "structured"
	case query.FreeText:
		return "free_text"
	default:
		return "unknown"
	}
}

func (s *Service) failed(res Result, err error) Result {
	metrics.SearchRequestsTotal.WithLabelValues(outcomeError).Inc()
	s.logger.Warn("Search failed", zap.Error(err))
	res.Answer = ErrorPrefix + err.Error()
	res.Sources = nil
	res.Err = err
	return res
}

// Reindex rebuilds the index from the source, waiting for in-flight searches.
// On failure whatever the store still holds stays in use.
func (s *Service) Reindex(ctx context.Context) (*indexing.Index, error) {
	if err := s.Init(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrNotInitialized, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.indexer.Setup(ctx, s.cfg.Source, s.cfg.Collection, true)
	if err != nil {
		if prev, lerr := s.indexer.Load(ctx, s.cfg.Collection); lerr == nil {
			s.index = prev
		}
		s.logger.Error("Reindex failed", zap.Error(err))
		return nil, fmt.Errorf("reindex: %w", err)
	}

	s.index = idx
	s.logger.Info("Reindexed", zap.String("collection", idx.Collection), zap.Int("chunks", idx.Chunks))
	return idx, nil
}

// Index returns the current index handle, or ErrNotInitialized before a successful Init.
func (s *Service) Index() (indexing.Index, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		if s.initErr != nil {
			return indexing.Index{}, fmt.Errorf("%w: %w", domain.ErrNotInitialized, s.initErr)
		}
		return indexing.Index{}, domain.ErrNotInitialized
	}
	return *s.index, nil
}
