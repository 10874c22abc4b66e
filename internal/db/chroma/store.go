// Package chroma stores chunk collections in a Chroma server through the v2 HTTP API.
package chroma

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"

	"github.com/kailas-cloud/prestadores/internal/db"
)

var _ db.VectorStore = (*Store)(nil)

const backendName = "chroma"

// Config holds Chroma connection settings.
type Config struct {
	BaseURL string
}

// Store implements db.VectorStore, one Chroma collection per index collection.
type Store struct {
	client chromago.Client

	mu          sync.Mutex
	collections map[string]chromago.Collection
}

// NewStore creates a Chroma HTTP client.
func NewStore(cfg Config) (*Store, error) {
	opts := []chromago.ClientOption{}
	if cfg.BaseURL != "" {
		opts = append(opts, chromago.WithBaseURL(cfg.BaseURL))
	}
	client, err := chromago.NewHTTPClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create chroma client: %w", err)
	}
	return &Store{client: client, collections: make(map[string]chromago.Collection)}, nil
}

// Ping checks the server heartbeat.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	return nil
}

// WaitForReady polls the heartbeat until the server responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for chroma: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// Close releases the HTTP client.
func (s *Store) Close() {
	_ = s.client.Close()
}

// EnsureCollection gets or creates a cosine-space collection.
func (s *Store) EnsureCollection(ctx context.Context, name string, dim int) error {
	if !db.IsValidIdentifier(name) {
		return &db.Error{Backend: backendName, Op: db.OpEnsure, Err: fmt.Errorf("invalid collection name %q", name)}
	}

	coll, err := s.client.GetOrCreateCollection(ctx, name,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("hnsw:space", "cosine"),
				chromago.NewIntAttribute("dimension", int64(dim)),
				chromago.NewStringAttribute("created_by", "prestadores"),
			),
		),
	)
	if err != nil {
		return &db.Error{Backend: backendName, Op: db.OpEnsure, Err: err}
	}

	s.mu.Lock()
	s.collections[name] = coll
	s.mu.Unlock()
	return nil
}

// DropCollection deletes the collection; a missing collection is not an error.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	delete(s.collections, name)
	s.mu.Unlock()

	if err := s.client.DeleteCollection(ctx, name); err != nil && !isNotFound(err) {
		return &db.Error{Backend: backendName, Op: db.OpDrop, Err: err}
	}
	return nil
}

// CollectionExists reports whether the server knows the collection.
func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	_, err := s.collection(ctx, name)
	if errors.Is(err, db.ErrCollectionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Count returns the number of chunks in the collection.
func (s *Store) Count(ctx context.Context, name string) (int, error) {
	coll, err := s.collection(ctx, name)
	if err != nil {
		return 0, err
	}
	n, err := coll.Count(ctx)
	if err != nil {
		return 0, &db.Error{Backend: backendName, Op: db.OpCount, Err: err}
	}
	return n, nil
}

// Upsert writes records with their precomputed embeddings.
func (s *Store) Upsert(ctx context.Context, collection string, records []db.Record) error {
	if len(records) == 0 {
		return nil
	}
	coll, err := s.collection(ctx, collection)
	if err != nil {
		return err
	}

	ids := make([]chromago.DocumentID, len(records))
	texts := make([]string, len(records))
	embs := make([]embeddings.Embedding, len(records))
	metas := make([]chromago.DocumentMetadata, len(records))
	for i := range records {
		r := &records[i]
		ids[i] = chromago.DocumentID(r.ID)
		texts[i] = r.Content
		embs[i] = embeddings.NewEmbeddingFromFloat32(r.Vector)
		metas[i] = toMetadata(r.Fields)
	}

	err = coll.Upsert(ctx,
		chromago.WithIDs(ids...),
		chromago.WithTexts(texts...),
		chromago.WithEmbeddings(embs...),
		chromago.WithMetadatas(metas...),
	)
	if err != nil {
		return &db.Error{Backend: backendName, Op: db.OpUpsert, Err: err}
	}
	return nil
}

// SearchKNN queries by embedding; cosine distance is converted to similarity.
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

	coll, err := s.collection(ctx, q.Collection)
	if err != nil {
		return nil, err
	}

	results, err := coll.Query(ctx,
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(q.Vector)),
		chromago.WithNResults(q.K),
	)
	if err != nil {
		return nil, &db.Error{Backend: backendName, Op: db.OpQuery, Err: err}
	}

	idGroups := results.GetIDGroups()
	docGroups := results.GetDocumentsGroups()
	metaGroups := results.GetMetadatasGroups()
	distGroups := results.GetDistancesGroups()
	if len(docGroups) == 0 {
		return &db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, len(docGroups[0]))
	for i, doc := range docGroups[0] {
		e := db.SearchEntry{Content: doc.ContentString()}
		if len(idGroups) > 0 && i < len(idGroups[0]) {
			e.ID = string(idGroups[0][i])
		}
		if len(metaGroups) > 0 && i < len(metaGroups[0]) {
			e.Fields = project(fromMetadata(metaGroups[0][i]), q.ReturnFields)
		}
		if len(distGroups) > 0 && i < len(distGroups[0]) {
			e.Score = 1 - float64(distGroups[0][i])
		}
		entries = append(entries, e)
	}

	return &db.SearchResult{Total: len(entries), Entries: entries}, nil
}

func (s *Store) collection(ctx context.Context, name string) (chromago.Collection, error) {
	s.mu.Lock()
	coll, ok := s.collections[name]
	s.mu.Unlock()
	if ok {
		return coll, nil
	}

	coll, err := s.client.GetCollection(ctx, name)
	if err != nil {
		if isNotFound(err) {
			return nil, db.ErrCollectionNotFound
		}
		return nil, &db.Error{Backend: backendName, Op: db.OpExists, Err: err}
	}

	s.mu.Lock()
	s.collections[name] = coll
	s.mu.Unlock()
	return coll, nil
}

func toMetadata(fields map[string]string) chromago.DocumentMetadata {
	attrs := make([]*chromago.MetaAttribute, 0, len(fields))
	for k, v := range fields {
		attrs = append(attrs, chromago.NewStringAttribute(k, v))
	}
	return chromago.NewDocumentMetadata(attrs...)
}

// fromMetadata flattens document metadata to strings. DocumentMetadata has no
// public accessor for all keys, so it goes through its JSON form.
func fromMetadata(meta chromago.DocumentMetadata) map[string]string {
	if meta == nil {
		return map[string]string{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return map[string]string{}
	}
	return flatten(raw)
}

func flatten(raw []byte) map[string]string {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}

func project(fields map[string]string, keep []string) map[string]string {
	if len(keep) == 0 {
		return fields
	}
	out := make(map[string]string, len(keep))
	for _, k := range keep {
		if v, ok := fields[k]; ok {
			out[k] = v
		}
	}
	return out
}

func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "does not exist") || strings.Contains(msg, "not found")
}
