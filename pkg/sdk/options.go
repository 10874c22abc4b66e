package prestadores

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

const (
	driverSQLite = "sqlite"
	driverRedis  = "redis"
)

type clientConfig struct {
	driver    string
	dir       string
	addrs     []string
	password  string
	keyPrefix string

	embedder  Embedder
	generator Generator

	collection    string
	forceReload   bool
	chunkSize     int
	chunkOverlap  int
	k             int
	maxCandidates int
	concurrency   int
	temperature   float32

	logger     *slog.Logger
	zapLogger  *zap.Logger
	metricsReg prometheus.Registerer
}

// WithSQLite keeps the index in a SQLite file under dir.
func WithSQLite(dir string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverSQLite
		c.dir = dir
	})
}

// WithRedis configures the client to keep the index in Redis 8+.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverRedis
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithKeyPrefix namespaces Redis keys. Default: "prestadores:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithEmbedder sets the text embedding provider. Required.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithGenerator sets the answer generation provider. Required.
func WithGenerator(g Generator) Option {
	return optionFunc(func(c *clientConfig) {
		c.generator = g
	})
}

// WithCollection names the index collection. Default: "rag_collection".
func WithCollection(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.collection = name
	})
}

// WithReuseIndex loads an existing collection instead of rebuilding it from
// the source on startup.
func WithReuseIndex() Option {
	return optionFunc(func(c *clientConfig) {
		c.forceReload = false
	})
}

// WithChunking sets the chunk size and overlap in characters.
// Defaults: 1000 and 100.
func WithChunking(size, overlap int) Option {
	return optionFunc(func(c *clientConfig) {
		c.chunkSize = size
		c.chunkOverlap = overlap
	})
}

// WithRetrieval sets the neighbours fetched per query variant and the
// candidate cap passed to the generator. Defaults: 10 and 15.
func WithRetrieval(k, maxCandidates int) Option {
	return optionFunc(func(c *clientConfig) {
		c.k = k
		c.maxCandidates = maxCandidates
	})
}

// WithConcurrency retrieves up to n query variants in parallel. Default: 1.
func WithConcurrency(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.concurrency = n
	})
}

// WithTemperature sets the generation temperature. Default: 0.3.
func WithTemperature(t float32) Option {
	return optionFunc(func(c *clientConfig) {
		c.temperature = t
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithZapLogger receives the pipeline's internal logs. Default: discarded.
func WithZapLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.zapLogger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
