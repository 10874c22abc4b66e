// Package indexing splits, embeds and persists the provider corpus.
package indexing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/zap"

	"github.com/kailas-cloud/prestadores/internal/db"
	"github.com/kailas-cloud/prestadores/internal/domain"
	"github.com/kailas-cloud/prestadores/internal/metrics"
)

// Defaults for the splitter and the embedding pipeline.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
	DefaultBatchSize    = 64
	DefaultWorkers      = 4
)

// Build modes recorded in index metrics.
const (
	modeBuild = "build"
	modeLoad  = "load"
)

var errUnknownDimension = errors.New("embedding dimension unknown: set embedding.dimensions")

// Config tunes chunking and embedding.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
	Workers      int
	// Dimensions is used to create the collection when there is nothing to embed.
	Dimensions int
}

func (c *Config) applyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	c.ChunkOverlap = max(c.ChunkOverlap, 0)
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
}

// Index is a handle to a persisted collection.
type Index struct {
	Collection string
	Chunks     int
}

// Service builds and reattaches vector indexes.
type Service struct {
	loader   Loader
	repo     Repository
	embedder domain.Embedder
	splitter textsplitter.RecursiveCharacter
	cfg      Config
	logger   *zap.Logger
}

// New creates an indexing service.
func New(loader Loader, repo Repository, embedder domain.Embedder, cfg Config, logger *zap.Logger) *Service {
	cfg.applyDefaults()
	return &Service{
		loader:   loader,
		repo:     repo,
		embedder: embedder,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		),
		cfg:    cfg,
		logger: logger,
	}
}

// Setup returns a ready index for collection. Unless forceReload is set it
// first tries to reattach; a failed reattach is logged and rebuilt from source.
// Data load and build failures are returned unchanged.
func (s *Service) Setup(ctx context.Context, source, collection string, forceReload bool) (*Index, error) {
	if !forceReload {
		idx, err := s.Load(ctx, collection)
		if err == nil {
			return idx, nil
		}
		s.logger.Warn("Could not load existing index, rebuilding",
			zap.String("collection", collection),
			zap.Error(err),
		)
	}

	docs, err := s.loader.Load(source)
	if err != nil {
		return nil, err //nolint:wrapcheck // already a *domain.DataLoadError
	}
	s.logger.Info("Corpus loaded",
		zap.String("source", source),
		zap.Int("documents", len(docs)),
	)

	return s.Build(ctx, docs, collection)
}

// Load reattaches to an existing collection without embedding anything.
func (s *Service) Load(ctx context.Context, collection string) (*Index, error) {
	ok, err := s.repo.Exists(ctx, collection)
	if err == nil && !ok {
		err = db.ErrCollectionNotFound
	}
	if err != nil {
		metrics.IndexBuildsTotal.WithLabelValues(modeLoad, "error").Inc()
		return nil, &domain.IndexLoadError{Collection: collection, Err: err}
	}

	n, err := s.repo.Count(ctx, collection)
	if err != nil {
		metrics.IndexBuildsTotal.WithLabelValues(modeLoad, "error").Inc()
		return nil, &domain.IndexLoadError{Collection: collection, Err: err}
	}

	metrics.IndexBuildsTotal.WithLabelValues(modeLoad, "success").Inc()
	metrics.IndexChunks.WithLabelValues(collection).Set(float64(n))
	s.logger.Info("Existing index loaded",
		zap.String("collection", collection),
		zap.Int("chunks", n),
	)

	return &Index{Collection: collection, Chunks: n}, nil
}

// Build splits and embeds docs, then replaces collection with the result.
// An empty corpus yields a valid empty collection. Cancelling ctx aborts the
// build only while embedding; the reset and save run to completion.
func (s *Service) Build(ctx context.Context, docs []domain.Document, collection string) (*Index, error) {
	start := time.Now()

	idx, err := s.build(ctx, docs, collection)
	metrics.IndexBuildDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.IndexBuildsTotal.WithLabelValues(modeBuild, "error").Inc()
		s.logger.Error("Index build failed",
			zap.String("collection", collection),
			zap.String("db_op", db.OpOf(err)),
			zap.Error(err),
		)
		return nil, &domain.IndexBuildError{Collection: collection, Err: err}
	}

	metrics.IndexBuildsTotal.WithLabelValues(modeBuild, "success").Inc()
	metrics.IndexChunks.WithLabelValues(collection).Set(float64(idx.Chunks))
	s.logger.Info("Index built",
		zap.String("collection", collection),
		zap.Int("documents", len(docs)),
		zap.Int("chunks", idx.Chunks),
		zap.Duration("duration", time.Since(start)),
	)

	return idx, nil
}

func (s *Service) build(ctx context.Context, docs []domain.Document, collection string) (*Index, error) {
	chunks, err := s.Split(collection, docs)
	if err != nil {
		return nil, err
	}

	if err := s.embed(ctx, chunks); err != nil {
		return nil, err
	}

	dim := s.cfg.Dimensions
	if len(chunks) > 0 {
		dim = len(chunks[0].Vector)
	}
	if dim <= 0 {
		return nil, errUnknownDimension
	}

	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // cancelled before the collection was touched
	}

	// Once the collection is reset, a cancelled caller must not leave it half filled.
	persistCtx := context.WithoutCancel(ctx)

	if err := s.repo.Reset(persistCtx, collection, dim); err != nil {
		return nil, fmt.Errorf("reset collection: %w", err)
	}

	for offset := 0; offset < len(chunks); offset += s.cfg.BatchSize {
		end := min(offset+s.cfg.BatchSize, len(chunks))
		if err := s.repo.Save(persistCtx, collection, chunks[offset:end]); err != nil {
			return nil, fmt.Errorf("save chunks %d-%d: %w", offset, end, err)
		}
	}

	return &Index{Collection: collection, Chunks: len(chunks)}, nil
}

// Split cuts every document into overlapping chunks. Chunks inherit their
// document's metadata and get IDs stable across rebuilds of the same corpus.
func (s *Service) Split(collection string, docs []domain.Document) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, doc := range docs {
		parts, err := s.splitter.SplitText(doc.Content)
		if err != nil {
			return nil, fmt.Errorf("split row %d: %w", doc.Metadata.RowIndex, err)
		}
		for n, part := range parts {
			if part == "" {
				continue
			}
			chunks = append(chunks, domain.Chunk{
				ID:       ChunkID(collection, doc.Metadata.RowIndex, n),
				Document: domain.Document{Content: part, Metadata: doc.Metadata},
			})
		}
	}
	return chunks, nil
}

// ChunkID derives a deterministic UUID from the collection, row and chunk number.
func ChunkID(collection string, row, n int) string {
	name := fmt.Sprintf("%s/%d/%d", collection, row, n)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// embed fills chunk vectors, one batch per pool task.
func (s *Service) embed(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	parent := ctx
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	pool, err := ants.NewPool(s.cfg.Workers, ants.WithPanicHandler(func(p any) {
		fail(fmt.Errorf("embedding worker panic: %v", p))
	}))
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	for offset := 0; offset < len(chunks); offset += s.cfg.BatchSize {
		batch := chunks[offset:min(offset+s.cfg.BatchSize, len(chunks))]

		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			if err := s.embedBatch(ctx, batch); err != nil {
				fail(fmt.Errorf("embed chunks at %d: %w", offset, err))
			}
		})
		if submitErr != nil {
			wg.Done()
			fail(fmt.Errorf("submit embedding task: %w", submitErr))
			break
		}
	}

	wg.Wait()
	if firstErr != nil {
		return firstErr
	}
	return parent.Err() //nolint:wrapcheck // skipped batches have no vectors
}

func (s *Service) embedBatch(ctx context.Context, batch []domain.Chunk) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Document.Content
	}

	res, err := domain.EmbedAll(ctx, s.embedder, texts)
	if err != nil {
		return err //nolint:wrapcheck // wrapped by caller with the batch offset
	}

	for i := range batch {
		batch[i].Vector = res.Embeddings[i]
	}
	return nil
}
