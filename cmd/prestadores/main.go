package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/prestadores/internal/config"
	"github.com/kailas-cloud/prestadores/internal/db"
	dbChroma "github.com/kailas-cloud/prestadores/internal/db/chroma"
	dbMilvus "github.com/kailas-cloud/prestadores/internal/db/milvus"
	dbRedis "github.com/kailas-cloud/prestadores/internal/db/redis"
	dbSQLite "github.com/kailas-cloud/prestadores/internal/db/sqlite"
	"github.com/kailas-cloud/prestadores/internal/domain"
	logpkg "github.com/kailas-cloud/prestadores/internal/logger"
	"github.com/kailas-cloud/prestadores/internal/metrics"
	"github.com/kailas-cloud/prestadores/internal/repository/chunk"
	"github.com/kailas-cloud/prestadores/internal/repository/embcache"
	"github.com/kailas-cloud/prestadores/internal/repository/record"
	chiTransport "github.com/kailas-cloud/prestadores/internal/transport/chi"
	geminiTransport "github.com/kailas-cloud/prestadores/internal/transport/gemini"
	openaiTransport "github.com/kailas-cloud/prestadores/internal/transport/openai"
	"github.com/kailas-cloud/prestadores/internal/usecase/collector"
	embeddinguc "github.com/kailas-cloud/prestadores/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/prestadores/internal/usecase/health"
	"github.com/kailas-cloud/prestadores/internal/usecase/indexing"
	"github.com/kailas-cloud/prestadores/internal/usecase/planner"
	"github.com/kailas-cloud/prestadores/internal/usecase/retrieval"
	searchuc "github.com/kailas-cloud/prestadores/internal/usecase/search"
	"github.com/kailas-cloud/prestadores/internal/usecase/synthesizer"
	"github.com/kailas-cloud/prestadores/internal/version"
	"github.com/kailas-cloud/prestadores/internal/watcher"
)

func main() {
	question := flag.String("query", "", "answer a single question and exit")
	showVersion := flag.Bool("version", false, "print the build version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, logpkg.Options{
		Level:   cfg.Logging.Level,
		Service: "prestadores",
		Version: version.Version,
	})
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting prestadores search service",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("backend", cfg.Index.Backend),
		zap.String("collection", cfg.Index.Collection),
		zap.String("data_path", cfg.Data.Path),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterGenerationMetrics()
	metrics.RegisterSearchMetrics()
	metrics.RegisterHTTPMetrics()

	ctx := context.Background()

	store, cache, closeStores, err := openStores(&cfg)
	if err != nil {
		logger.Fatal("Failed to create index store", zap.Error(err))
	}
	defer closeStores()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Index store not ready", zap.Error(err))
	}
	logger.Info("Connected to index store", zap.String("backend", cfg.Index.Backend))

	baseEmbedder, err := newBaseEmbedder(ctx, &cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create embedding provider", zap.Error(err))
	}
	docEmbedder := buildEmbedder(&cfg, baseEmbedder, cache, cfg.Embedding.DocumentInstruction, logger)
	queryEmbedder := buildEmbedder(&cfg, baseEmbedder, cache, cfg.Embedding.QueryInstruction, logger)
	logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cache", cache != nil),
	)

	generator, err := newGenerator(ctx, &cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create generation provider", zap.Error(err))
	}

	chunkRepo := chunk.New(store)

	indexSvc := indexing.New(record.New(), chunkRepo, docEmbedder, indexing.Config{
		ChunkSize:    cfg.Index.ChunkSize,
		ChunkOverlap: cfg.Index.ChunkOverlap,
		BatchSize:    cfg.Index.BatchSize,
		Workers:      cfg.Index.Workers,
		Dimensions:   cfg.Embedding.Dimensions,
	}, logger)
	retrievalSvc := retrieval.New(chunkRepo, queryEmbedder, cfg.Index.Collection, cfg.Retrieval.Timeout(), logger)
	collectorSvc := collector.New(retrievalSvc, collector.Config{
		K:             cfg.Retrieval.K,
		MaxCandidates: cfg.Retrieval.MaxCandidates,
		Concurrency:   cfg.Retrieval.Concurrency,
	}, logger)
	synthSvc := synthesizer.New(generator, synthesizer.Config{
		Model:       cfg.Generation.Model,
		Temperature: cfg.Generation.TemperatureValue(),
		Timeout:     cfg.Generation.Timeout(),
	}, logger)

	searchSvc := searchuc.New(indexSvc, planner.New(logger), collectorSvc, synthSvc, searchuc.Config{
		Source:      cfg.Data.Path,
		Collection:  cfg.Index.Collection,
		ForceReload: cfg.Index.ShouldForceReload(),
	}, logger)

	if err := searchSvc.Init(ctx); err != nil {
		logger.Fatal("Failed to initialize search service", zap.Error(err))
	}

	if *question != "" {
		fmt.Println(searchSvc.Search(ctx, *question))
		return
	}

	healthSvc := healthuc.New(store, baseEmbedder, generator)
	server := chiTransport.NewServer(searchSvc, chunkRepo, healthSvc, cfg.Index.Backend, logger)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Data.Watch {
		w := watcher.New(cfg.Data.Path, time.Duration(cfg.Data.WatchDebounceMS)*time.Millisecond, searchSvc, logger)
		go func() {
			if err := w.Run(runCtx); err != nil {
				logger.Error("Data watcher stopped", zap.Error(err))
			}
		}()
	}

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(cfg.Auth.APIKeys),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-runCtx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// openStores opens the vector store for the configured backend and the
// key-value store backing the embedding cache. Chroma and Milvus have no
// key-value side, so their cache lives in a SQLite file under the persist path.
func openStores(cfg *config.Config) (db.VectorStore, db.KVStore, func(), error) {
	switch cfg.Index.Backend {
	case config.BackendSQLite:
		s, err := dbSQLite.NewStore(cfg.Index.PersistPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("sqlite store: %w", err)
		}
		return s, s, s.Close, nil
	case config.BackendRedis:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:     cfg.Database.Addrs,
			Password:  cfg.Database.Password,
			KeyPrefix: cfg.Storage.KeyPrefix,
			CacheTTL:  time.Duration(cfg.Database.CacheTTLSec) * time.Second,

			TagFields:     []string{chunk.FieldSource, chunk.FieldFileType},
			NumericFields: []string{chunk.FieldRowIndex},
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("redis store: %w", err)
		}
		return s, s, s.Close, nil
	case config.BackendChroma, config.BackendMilvus:
		var vs db.VectorStore
		var err error
		if cfg.Index.Backend == config.BackendChroma {
			vs, err = dbChroma.NewStore(dbChroma.Config{BaseURL: cfg.Chroma.BaseURL})
		} else {
			vs, err = dbMilvus.NewStore(dbMilvus.Config{
				Address:  cfg.Milvus.Address,
				Username: cfg.Milvus.Username,
				Password: cfg.Milvus.Password,
				Database: cfg.Milvus.Database,
				Timeout:  time.Duration(cfg.Database.ReadinessTimeout) * time.Second,
			})
		}
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%s store: %w", cfg.Index.Backend, err)
		}
		kv, err := dbSQLite.NewStore(filepath.Join(cfg.Index.PersistPath, "cache"))
		if err != nil {
			vs.Close()
			return nil, nil, nil, fmt.Errorf("embedding cache store: %w", err)
		}
		return vs, kv, func() { vs.Close(); kv.Close() }, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown backend %q", cfg.Index.Backend)
	}
}

// embeddingProvider is the raw provider: it embeds in batches and reports health.
type embeddingProvider interface {
	domain.Embedder
	domain.BatchEmbedder
	domain.HealthChecker
}

func newBaseEmbedder(ctx context.Context, cfg *config.Config, logger *zap.Logger) (embeddingProvider, error) {
	ec := cfg.Embedding
	switch ec.Provider {
	case config.ProviderGemini:
		gcfg := &geminiTransport.Config{
			APIKey:     ec.APIKey,
			BaseURL:    ec.BaseURL,
			Model:      ec.Model,
			Dimensions: ec.Dimensions,
			Timeout:    ec.Timeout(),
			Logger:     logger,
		}
		client, err := geminiTransport.NewClient(ctx, gcfg)
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		return geminiTransport.NewEmbedder(client, gcfg), nil
	default:
		return openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:     ec.APIKey,
			BaseURL:    ec.BaseURL,
			Model:      ec.Model,
			Dimensions: ec.Dimensions,
			Provider:   ec.Provider,
			Timeout:    ec.Timeout(),
			Logger:     logger,
		}), nil
	}
}

// generationProvider is a generator that reports health.
type generationProvider interface {
	domain.Generator
	domain.HealthChecker
}

func newGenerator(ctx context.Context, cfg *config.Config, logger *zap.Logger) (generationProvider, error) {
	gc := cfg.Generation
	switch gc.Provider {
	case config.ProviderGemini:
		gcfg := &geminiTransport.Config{
			APIKey:  gc.APIKey,
			BaseURL: gc.BaseURL,
			Model:   gc.Model,
			Timeout: gc.Timeout(),
			Logger:  logger,
		}
		client, err := geminiTransport.NewClient(ctx, gcfg)
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		return geminiTransport.NewGenerator(client, gcfg), nil
	default:
		return openaiTransport.NewGenerator(&openaiTransport.Config{
			APIKey:   gc.APIKey,
			BaseURL:  gc.BaseURL,
			Model:    gc.Model,
			Provider: gc.Provider,
			Timeout:  gc.Timeout(),
			Logger:   logger,
		}), nil
	}
}

// buildEmbedder assembles the decorator chain: provider -> Cached -> Instrumented -> Instruction
func buildEmbedder(
	cfg *config.Config,
	base embeddingProvider,
	cache db.KVStore,
	instruction string,
	logger *zap.Logger,
) domain.Embedder {
	var embedder domain.Embedder = base
	if cache != nil && cfg.Embedding.CacheEnabled() {
		embedder = embcache.New(base, cache, embcache.Options{
			KeyPrefix:  embcache.KeyPrefix(cfg.Storage.KeyPrefix, cfg.Embedding.Model),
			Dimensions: cfg.Embedding.Dimensions,
			CacheTotal: metrics.EmbeddingCacheTotal,
			Logger:     logger,
		})
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Embedding.Provider, cfg.Embedding.Model, logger)

	// Instruction prefix is outermost so the cache key includes it.
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}
	return embedder
}
