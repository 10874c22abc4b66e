// Package milvus stores chunk collections in Milvus via the v2 Go client.
package milvus

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/kailas-cloud/prestadores/internal/db"
)

var _ db.VectorStore = (*Store)(nil)

// Column names of a chunk collection.
const backendName = "milvus"

const (
	fieldID      = "id"
	fieldVector  = "embedding"
	fieldContent = "content"
	fieldMeta    = "fields"
)

const (
	maxIDLen      = 64
	maxContentLen = 65535
	maxMetaLen    = 8192
)

// Config holds Milvus connection settings.
type Config struct {
	Address  string
	Username string
	Password string
	Database string
	Timeout  time.Duration
}

// Store implements db.VectorStore on a Milvus server.
type Store struct {
	client *milvusclient.Client
}

// NewStore connects to Milvus.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("address is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Store{client: c}, nil
}

// Ping lists collections as a liveness probe.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.ListCollections(ctx, milvusclient.NewListCollectionOption()); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// WaitForReady polls Ping until Milvus responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for milvus: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// Close closes the client connection.
func (s *Store) Close() {
	_ = s.client.Close(context.Background())
}

// EnsureCollection creates, indexes and loads a collection if it does not exist.
func (s *Store) EnsureCollection(ctx context.Context, name string, dim int) error {
	if !db.IsValidIdentifier(name) {
		return &db.Error{Backend: backendName, Op: db.OpEnsure, Err: fmt.Errorf("invalid collection name %q", name)}
	}

	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := s.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(name, chunkSchema(name, dim))); err != nil {
		return &db.Error{Backend: backendName, Op: db.OpEnsure, Err: fmt.Errorf("create collection: %w", err)}
	}

	idx := index.NewHNSWIndex(entity.COSINE, db.DefaultHNSW.M, db.DefaultHNSW.EFConstruction)
	idxTask, err := s.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(name, fieldVector, idx))
	if err != nil {
		return &db.Error{Backend: backendName, Op: db.OpEnsure, Err: fmt.Errorf("create index: %w", err)}
	}
	if err := idxTask.Await(ctx); err != nil {
		return &db.Error{Backend: backendName, Op: db.OpEnsure, Err: fmt.Errorf("wait for index: %w", err)}
	}

	loadTask, err := s.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(name))
	if err != nil {
		return &db.Error{Backend: backendName, Op: db.OpEnsure, Err: fmt.Errorf("load collection: %w", err)}
	}
	if err := loadTask.Await(ctx); err != nil {
		return &db.Error{Backend: backendName, Op: db.OpEnsure, Err: fmt.Errorf("wait for load: %w", err)}
	}
	return nil
}

func chunkSchema(name string, dim int) *entity.Schema {
	return entity.NewSchema().
		WithName(name).
		WithDescription("provider chunks").
		WithField(entity.NewField().
			WithName(fieldID).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(maxIDLen).
			WithIsPrimaryKey(true)).
		WithField(entity.NewField().
			WithName(fieldVector).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(dim))).
		WithField(entity.NewField().
			WithName(fieldContent).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(maxContentLen)).
		WithField(entity.NewField().
			WithName(fieldMeta).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(maxMetaLen))
}

// DropCollection drops the collection; a missing collection is not an error.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	exists, err := s.CollectionExists(ctx, name)
	if err != nil || !exists {
		return err
	}
	if err := s.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(name)); err != nil {
		return &db.Error{Backend: backendName, Op: db.OpDrop, Err: err}
	}
	return nil
}

// CollectionExists reports whether the collection is defined.
func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return false, &db.Error{Backend: backendName, Op: db.OpExists, Err: err}
	}
	return exists, nil
}

// Count returns the collection row count from its statistics.
func (s *Store) Count(ctx context.Context, name string) (int, error) {
	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, db.ErrCollectionNotFound
	}

	stats, err := s.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(name))
	if err != nil {
		return 0, &db.Error{Backend: backendName, Op: db.OpCount, Err: err}
	}
	return parseRowCount(stats)
}

func parseRowCount(stats map[string]string) (int, error) {
	val, ok := stats["row_count"]
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("parse row_count %q: %w", val, err)
	}
	return n, nil
}

// Upsert writes records column-wise and flushes so they are searchable immediately.
func (s *Store) Upsert(ctx context.Context, collection string, records []db.Record) error {
	if len(records) == 0 {
		return nil
	}

	ids, contents, metas, vectors, err := toColumns(records)
	if err != nil {
		return &db.Error{Backend: backendName, Op: db.OpUpsert, Err: err}
	}

	opt := milvusclient.NewColumnBasedInsertOption(collection,
		column.NewColumnVarChar(fieldID, ids),
		column.NewColumnVarChar(fieldContent, contents),
		column.NewColumnVarChar(fieldMeta, metas),
		column.NewColumnFloatVector(fieldVector, len(vectors[0]), vectors),
	)
	if _, err := s.client.Upsert(ctx, opt); err != nil {
		return &db.Error{Backend: backendName, Op: db.OpUpsert, Err: err}
	}

	flushTask, err := s.client.Flush(ctx, milvusclient.NewFlushOption(collection))
	if err != nil {
		return &db.Error{Backend: backendName, Op: db.OpUpsert, Err: fmt.Errorf("flush: %w", err)}
	}
	if err := flushTask.Await(ctx); err != nil {
		return &db.Error{Backend: backendName, Op: db.OpUpsert, Err: fmt.Errorf("wait for flush: %w", err)}
	}
	return nil
}

func toColumns(records []db.Record) (ids, contents, metas []string, vectors [][]float32, err error) {
	ids = make([]string, len(records))
	contents = make([]string, len(records))
	metas = make([]string, len(records))
	vectors = make([][]float32, len(records))

	dim := len(records[0].Vector)
	for i := range records {
		r := &records[i]
		if len(r.Vector) != dim || dim == 0 {
			return nil, nil, nil, nil, fmt.Errorf("chunk %s: vector has %d dims, want %d", r.ID, len(r.Vector), dim)
		}
		raw, err := json.Marshal(r.Fields)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("chunk %s: %w", r.ID, err)
		}
		ids[i] = r.ID
		contents[i] = r.Content
		metas[i] = string(raw)
		vectors[i] = r.Vector
	}
	return ids, contents, metas, vectors, nil
}

// SearchKNN runs an ANN search on the vector field. COSINE scores are similarities.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.Collection == "" {
		return nil, fmt.Errorf("collection is required")
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	exists, err := s.CollectionExists(ctx, q.Collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, db.ErrCollectionNotFound
	}

	results, err := s.client.Search(ctx, milvusclient.NewSearchOption(
		q.Collection,
		q.K,
		[]entity.Vector{entity.FloatVector(q.Vector)},
	).WithANNSField(fieldVector).
		WithSearchParam("ef", "64").
		WithOutputFields(fieldContent, fieldMeta))
	if err != nil {
		return nil, &db.Error{Backend: backendName, Op: db.OpQuery, Err: err}
	}
	if len(results) == 0 {
		return &db.SearchResult{}, nil
	}

	rs := results[0]
	entries := make([]db.SearchEntry, rs.ResultCount)
	for i := range entries {
		entries[i].Score = float64(rs.Scores[i])
	}
	if idCol, ok := rs.IDs.(*column.ColumnVarChar); ok {
		for i, id := range idCol.Data() {
			if i < len(entries) {
				entries[i].ID = id
			}
		}
	}
	for _, field := range rs.Fields {
		col, ok := field.(*column.ColumnVarChar)
		if !ok {
			continue
		}
		for i, v := range col.Data() {
			if i >= len(entries) {
				break
			}
			switch col.Name() {
			case fieldContent:
				entries[i].Content = v
			case fieldMeta:
				entries[i].Fields = decodeFields(v, q.ReturnFields)
			}
		}
	}

	return &db.SearchResult{Total: len(entries), Entries: entries}, nil
}

func decodeFields(raw string, keep []string) map[string]string {
	var all map[string]string
	if err := json.Unmarshal([]byte(raw), &all); err != nil {
		return map[string]string{}
	}
	if len(keep) == 0 {
		return all
	}
	out := make(map[string]string, len(keep))
	for _, k := range keep {
		if v, ok := all[k]; ok {
			out[k] = v
		}
	}
	return out
}
