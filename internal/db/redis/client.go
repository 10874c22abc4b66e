package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/prestadores/internal/db"
)

// Compile-time checks: Store is both an index backend and a key-value store.
var (
	_ db.VectorStore = (*Store)(nil)
	_ db.KVStore     = (*Store)(nil)
)

const backendName = "redis"

// Config holds connection parameters for a Redis store.
type Config struct {
	Addrs     []string
	Username  string
	Password  string
	DB        int
	KeyPrefix string        // prepended to every chunk key, e.g. "prestadores:"
	CacheTTL  time.Duration // expiry for key-value entries; 0 keeps them forever

	// TagFields and NumericFields are chunk metadata added to the FT index.
	TagFields     []string
	NumericFields []string
}

// Store implements db.VectorStore and db.KVStore via rueidis for Redis 8+.
type Store struct {
	client rueidis.Client
	prefix string
	kvTTL  time.Duration

	tagFields     []string
	numericFields []string
}

// NewStore creates a Redis store via rueidis.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Store{
		client:        client,
		prefix:        cfg.KeyPrefix,
		kvTTL:         cfg.CacheTTL,
		tagFields:     cfg.TagFields,
		numericFields: cfg.NumericFields,
	}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// keyPrefix is the hash key prefix of every chunk in a collection.
func (s *Store) keyPrefix(collection string) string {
	return s.prefix + collection + ":"
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// isRedisErr checks if err is a Redis server error containing substr (case-insensitive).
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}

// isUnknownIndex matches both the FT.INFO/FT.DROPINDEX and the FT.SEARCH wording.
func isUnknownIndex(err error) bool {
	return isRedisErr(err, "unknown index name") || isRedisErr(err, "no such index")
}
