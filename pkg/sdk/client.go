package prestadores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/prestadores/internal/db"
	dbRedis "github.com/kailas-cloud/prestadores/internal/db/redis"
	dbSQLite "github.com/kailas-cloud/prestadores/internal/db/sqlite"
	"github.com/kailas-cloud/prestadores/internal/domain"
	"github.com/kailas-cloud/prestadores/internal/repository/chunk"
	"github.com/kailas-cloud/prestadores/internal/repository/record"
	"github.com/kailas-cloud/prestadores/internal/usecase/collector"
	healthuc "github.com/kailas-cloud/prestadores/internal/usecase/health"
	"github.com/kailas-cloud/prestadores/internal/usecase/indexing"
	"github.com/kailas-cloud/prestadores/internal/usecase/planner"
	"github.com/kailas-cloud/prestadores/internal/usecase/retrieval"
	searchuc "github.com/kailas-cloud/prestadores/internal/usecase/search"
	"github.com/kailas-cloud/prestadores/internal/usecase/synthesizer"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultCollection       = "rag_collection"
	defaultKeyPrefix        = "prestadores:"
	defaultTemperature      = float32(0.3)
)

// Internal interfaces for substitution in tests.
type searchUseCase interface {
	Init(ctx context.Context) error
	SearchDetailed(ctx context.Context, raw any) searchuc.Result
	Reindex(ctx context.Context) (*indexing.Index, error)
	Index() (indexing.Index, error)
}

type chunkCounter interface {
	Count(ctx context.Context, collection string) (int, error)
}

// Client is the prestadores SDK entry point.
type Client struct {
	store   db.VectorStore
	search  searchUseCase
	chunks  chunkCounter
	health  healthUseCase
	backend string
	obs     *observer
}

// New creates a Client, connects to the store and prepares the index for
// source, an .xlsx or .csv file. The provided context bounds the readiness
// check and the initial indexing.
func New(ctx context.Context, source string, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		collection:  defaultCollection,
		forceReload: true,
		keyPrefix:   defaultKeyPrefix,
		temperature: defaultTemperature,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.driver == "" {
		return nil, errors.New("prestadores: index store required (use WithSQLite or WithRedis)")
	}
	if cfg.embedder == nil {
		return nil, errors.New("prestadores: embedder required (use WithEmbedder)")
	}
	if cfg.generator == nil {
		return nil, errors.New("prestadores: generator required (use WithGenerator)")
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("prestadores: store not ready: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		store.Close()
		return nil, err
	}

	c := wireClient(store, source, cfg, obs)

	op := c.obs.begin("init")
	err = c.search.Init(ctx)
	op.done(err, "source", source)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("prestadores: init: %w", err)
	}
	return c, nil
}

func createStore(cfg *clientConfig) (db.VectorStore, error) {
	switch cfg.driver {
	case driverSQLite:
		s, err := dbSQLite.NewStore(cfg.dir)
		if err != nil {
			return nil, fmt.Errorf("prestadores: create sqlite store: %w", err)
		}
		return s, nil
	case driverRedis:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:     cfg.addrs,
			Password:  cfg.password,
			KeyPrefix: cfg.keyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("prestadores: create redis store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("prestadores: unknown driver %q", cfg.driver)
	}
}

func wireClient(store db.VectorStore, source string, cfg *clientConfig, obs *observer) *Client {
	logger := cfg.zapLogger
	if logger == nil {
		logger = zap.NewNop()
	}

	emb := adaptEmbedder(cfg.embedder)
	chunkRepo := chunk.New(store)

	indexSvc := indexing.New(record.New(), chunkRepo, emb, indexing.Config{
		ChunkSize:    cfg.chunkSize,
		ChunkOverlap: cfg.chunkOverlap,
	}, logger)
	retrievalSvc := retrieval.New(chunkRepo, emb, cfg.collection, 0, logger)
	collectorSvc := collector.New(retrievalSvc, collector.Config{
		K:             cfg.k,
		MaxCandidates: cfg.maxCandidates,
		Concurrency:   cfg.concurrency,
	}, logger)
	synthSvc := synthesizer.New(&generatorAdapter{inner: cfg.generator}, synthesizer.Config{
		Temperature: cfg.temperature,
	}, logger)

	searchSvc := searchuc.New(indexSvc, planner.New(logger), collectorSvc, synthSvc, searchuc.Config{
		Source:      source,
		Collection:  cfg.collection,
		ForceReload: cfg.forceReload,
	}, logger)

	return &Client{
		store:   store,
		search:  searchSvc,
		chunks:  chunkRepo,
		health:  healthuc.New(store, healthOf(cfg.embedder), healthOf(cfg.generator)),
		backend: cfg.driver,
		obs:     obs,
	}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks store connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	op := c.obs.begin("ping")
	defer func() { op.done(err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Search answers question, a free-text string or a map with a
// "medical_specialty" entry. It never fails; see Ask for the details.
func (c *Client) Search(ctx context.Context, question any) string {
	return c.Ask(ctx, question).Text
}

// Ask is Search with the sources, query variants and error cause kept.
func (c *Client) Ask(ctx context.Context, question any) Answer {
	op := c.obs.begin("search")
	res := c.search.SearchDetailed(ctx, question)
	switch {
	case res.Err != nil:
		op.finish(statusError, res.Err)
	case len(res.Sources) == 0:
		op.finish(statusNoResults, nil, "fallback", res.UsedFallback)
	default:
		op.finish(statusOK, nil, "sources", len(res.Sources), "fallback", res.UsedFallback)
	}

	sources := make([]Source, len(res.Sources))
	for i, d := range res.Sources {
		sources[i] = Source{
			Content:  d.Content,
			File:     d.Metadata.Source,
			RowIndex: d.Metadata.RowIndex,
			FileType: d.Metadata.FileType,
		}
	}
	return Answer{
		Text:         res.Answer,
		Sources:      sources,
		Variants:     res.Variants,
		UsedFallback: res.UsedFallback,
		Err:          res.Err,
	}
}

// Reindex rebuilds the index from the source. On failure the previous
// index stays in use.
func (c *Client) Reindex(ctx context.Context) (stats Stats, err error) {
	op := c.obs.begin("reindex")
	defer func() { op.done(err, "chunks", stats.Chunks) }()

	idx, err := c.search.Reindex(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("reindex: %w", err)
	}
	return Stats{Collection: idx.Collection, Backend: c.backend, Chunks: idx.Chunks}, nil
}

// Stats reports the collection and its live chunk count.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	idx, err := c.search.Index()
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	n, err := c.chunks.Count(ctx, idx.Collection)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return Stats{Collection: idx.Collection, Backend: c.backend, Chunks: n}, nil
}

// adaptEmbedder picks the batch-capable adapter when the caller's embedder
// supports batching, so domain.EmbedAll only sees BatchEmbed when it is real.
func adaptEmbedder(e Embedder) domain.Embedder {
	base := &embedderAdapter{inner: e}
	if be, ok := e.(BatchEmbedder); ok {
		return &batchEmbedderAdapter{embedderAdapter: base, batch: be}
	}
	return base
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

type batchEmbedderAdapter struct {
	*embedderAdapter
	batch BatchEmbedder
}

func (a *batchEmbedderAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	r, err := a.batch.BatchEmbed(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   r.Embeddings,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// generatorAdapter wraps public Generator to satisfy internal domain.Generator.
type generatorAdapter struct {
	inner Generator
}

func (a *generatorAdapter) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	text, err := a.inner.Generate(ctx, req.Prompt, req.Temperature)
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("generate: %w", err)
	}
	return domain.GenerationResult{Text: text}, nil
}
