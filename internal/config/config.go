package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Index backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendChroma = "chroma"
	BackendMilvus = "milvus"
)

// Model providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Defaults for the bundled sample dataset, the index and the model pair.
const (
	DefaultDataPath       = "datasets/dataset_ejemplo.xlsx"
	DefaultCollection     = "rag_collection"
	DefaultPersistPath    = "./chroma_db"
	DefaultChunkSize      = 1000
	DefaultChunkOverlap   = 100
	DefaultSearchK        = 10
	DefaultMaxCandidates  = 15
	DefaultTemperature    = float32(0.3)
	DefaultEmbeddingModel = "text-embedding-3-large"
	DefaultLLMModel       = "gpt-3.5-turbo"
)

// embeddingDims maps known embedding models to their native dimensions.
var embeddingDims = map[string]int{
	"text-embedding-3-large": 3072,
	"text-embedding-3-small": 1536,
	"text-embedding-ada-002": 1536,
	"text-embedding-004":     768,
	"gemini-embedding-001":   3072,
}

// Config holds the service configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Data       DataConfig       `yaml:"data"`
	Index      IndexConfig      `yaml:"index"`
	Database   DatabaseConfig   `yaml:"database"`
	Chroma     ChromaConfig     `yaml:"chroma"`
	Milvus     MilvusConfig     `yaml:"milvus"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DataConfig points at the tabular provider corpus.
type DataConfig struct {
	Path            string `yaml:"path"`
	Watch           bool   `yaml:"watch"`
	WatchDebounceMS int    `yaml:"watch_debounce_ms"`
}

// IndexConfig controls chunking and the persisted vector index.
type IndexConfig struct {
	Backend      string `yaml:"backend"` // sqlite, redis, chroma, milvus
	Collection   string `yaml:"collection"`
	PersistPath  string `yaml:"persist_path"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"` // 0 means default, negative disables overlap
	ForceReload  *bool  `yaml:"force_reload"`  // nil means true
	BatchSize    int    `yaml:"batch_size"`
	Workers      int    `yaml:"workers"`
}

// DatabaseConfig holds Redis connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	CacheTTLSec      int      `yaml:"cache_ttl_sec"` // embedding cache expiry; 0 never expires
}

// ChromaConfig holds Chroma server settings.
type ChromaConfig struct {
	BaseURL string `yaml:"base_url"`
}

// MilvusConfig holds Milvus connection settings.
type MilvusConfig struct {
	Address  string `yaml:"address"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// StorageConfig holds key layout settings for key-value backends.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider            string `yaml:"provider"`
	APIKey              string `yaml:"api_key"`
	BaseURL             string `yaml:"base_url"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	TimeoutSec          int    `yaml:"timeout_sec"`
	Cache               *bool  `yaml:"cache"` // nil means true
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
}

// GenerationConfig holds chat/completion provider settings.
type GenerationConfig struct {
	Provider    string   `yaml:"provider"`
	APIKey      string   `yaml:"api_key"`
	BaseURL     string   `yaml:"base_url"`
	Model       string   `yaml:"model"`
	Temperature *float32 `yaml:"temperature"` // nil means 0.3
	TimeoutSec  int      `yaml:"timeout_sec"`
}

// RetrievalConfig holds similarity search and candidate collection settings.
type RetrievalConfig struct {
	K             int `yaml:"k"`
	MaxCandidates int `yaml:"max_candidates"`
	Concurrency   int `yaml:"concurrency"`
	TimeoutSec    int `yaml:"timeout_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory, when present, is loaded into the
// process environment first.
func Load(env string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands env variables in data, decodes it, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 180 // must outlast a generation call
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Data.Path == "" {
		c.Data.Path = DefaultDataPath
	}
	if c.Data.WatchDebounceMS <= 0 {
		c.Data.WatchDebounceMS = 500
	}

	if c.Index.Backend == "" {
		c.Index.Backend = BackendSQLite
	}
	if c.Index.Collection == "" {
		c.Index.Collection = DefaultCollection
	}
	if c.Index.PersistPath == "" {
		c.Index.PersistPath = DefaultPersistPath
	}
	if c.Index.ChunkSize <= 0 {
		c.Index.ChunkSize = DefaultChunkSize
	}
	if c.Index.ChunkOverlap == 0 {
		c.Index.ChunkOverlap = DefaultChunkOverlap
	}
	if c.Index.ForceReload == nil {
		c.Index.ForceReload = boolPtr(true)
	}
	if c.Index.BatchSize <= 0 {
		c.Index.BatchSize = 64
	}
	if c.Index.Workers <= 0 {
		c.Index.Workers = 4
	}

	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Chroma.BaseURL == "" {
		c.Chroma.BaseURL = "http://localhost:8000"
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "prestadores:"
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = ProviderOpenAI
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = DefaultEmbeddingModel
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = embeddingDims[c.Embedding.Model]
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}
	if c.Embedding.Cache == nil {
		c.Embedding.Cache = boolPtr(true)
	}

	if c.Generation.Provider == "" {
		c.Generation.Provider = ProviderOpenAI
	}
	if c.Generation.Model == "" {
		c.Generation.Model = DefaultLLMModel
	}
	if c.Generation.Temperature == nil {
		t := DefaultTemperature
		c.Generation.Temperature = &t
	}
	if c.Generation.TimeoutSec <= 0 {
		c.Generation.TimeoutSec = 120
	}

	if c.Retrieval.K <= 0 {
		c.Retrieval.K = DefaultSearchK
	}
	if c.Retrieval.MaxCandidates <= 0 {
		c.Retrieval.MaxCandidates = DefaultMaxCandidates
	}
	if c.Retrieval.Concurrency <= 0 {
		c.Retrieval.Concurrency = 1
	}
	if c.Retrieval.TimeoutSec <= 0 {
		c.Retrieval.TimeoutSec = 30
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Index.Backend {
	case BackendSQLite, BackendChroma:
	case BackendRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for the redis backend")
		}
	case BackendMilvus:
		if c.Milvus.Address == "" {
			return fmt.Errorf("milvus.address is required for the milvus backend")
		}
	default:
		return fmt.Errorf("index.backend must be one of sqlite, redis, chroma, milvus, got %q", c.Index.Backend)
	}

	if c.Index.ChunkOverlap >= c.Index.ChunkSize {
		return fmt.Errorf("index.chunk_overlap (%d) must be smaller than index.chunk_size (%d)",
			c.Index.ChunkOverlap, c.Index.ChunkSize)
	}

	if err := validateProvider("embedding.provider", c.Embedding.Provider); err != nil {
		return err
	}
	if err := validateProvider("generation.provider", c.Generation.Provider); err != nil {
		return err
	}

	if t := *c.Generation.Temperature; t < 0 || t > 2 {
		return fmt.Errorf("generation.temperature must be between 0 and 2, got %g", t)
	}

	return nil
}

// ShouldForceReload reports whether the index is rebuilt at startup.
func (c *IndexConfig) ShouldForceReload() bool {
	return c.ForceReload == nil || *c.ForceReload
}

// CacheEnabled reports whether embeddings are cached.
func (c *EmbeddingConfig) CacheEnabled() bool {
	return c.Cache == nil || *c.Cache
}

// Timeout returns the per-call embedding timeout.
func (c *EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// Timeout returns the per-call generation timeout.
func (c *GenerationConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// TemperatureValue returns the configured temperature, or the default when unset.
func (c *GenerationConfig) TemperatureValue() float32 {
	if c.Temperature == nil {
		return DefaultTemperature
	}
	return *c.Temperature
}

// Timeout returns the per-query retrieval timeout.
func (c *RetrievalConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

func validateProvider(field, p string) error {
	switch p {
	case ProviderOpenAI, ProviderGemini:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", field, ProviderOpenAI, ProviderGemini, p)
	}
}

func boolPtr(b bool) *bool { return &b }

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// envVarRegex matches ${VAR} and ${VAR:-default}.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
