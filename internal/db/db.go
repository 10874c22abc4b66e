package db

import (
	"context"
	"time"
)

// VectorStore is the facade every index backend implements.
//
//nolint:interfacebloat // facade by design -- consumers use narrow sub-interfaces (ISP)
type VectorStore interface {
	Pinger
	CollectionManager
	Writer
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// CollectionManager provides collection lifecycle operations.
// DropCollection on a missing collection is a no-op.
type CollectionManager interface {
	EnsureCollection(ctx context.Context, name string, dim int) error
	DropCollection(ctx context.Context, name string) error
	CollectionExists(ctx context.Context, name string) (bool, error)
	Count(ctx context.Context, name string) (int, error)
}

// Record is a single chunk as persisted by a backend.
type Record struct {
	ID      string
	Content string
	Fields  map[string]string
	Vector  []float32
}

// Writer stores chunk records, replacing any with the same ID.
type Writer interface {
	Upsert(ctx context.Context, collection string, records []Record) error
}

// Searcher provides vector similarity search over a collection.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
}
