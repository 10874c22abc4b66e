// Package chunk persists embedded chunks in a vector store and reads them back as documents.
package chunk

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/prestadores/internal/db"
	"github.com/kailas-cloud/prestadores/internal/domain"
)

// Metadata field names stored next to every chunk.
const (
	FieldSource   = "source"
	FieldRowIndex = "row_index"
	FieldFileType = "file_type"
)

var returnFields = []string{FieldSource, FieldRowIndex, FieldFileType}

// ErrInvalidCollection is returned for collection names a backend cannot store.
var ErrInvalidCollection = errors.New("invalid collection name")

// store is the consumer interface for chunk persistence (ISP).
type store interface {
	db.CollectionManager
	db.Writer
	db.Searcher
}

// Repo implements the indexing and retrieval repositories.
type Repo struct {
	store store
}

// New creates a chunk repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Reset drops the collection and recreates it empty with the given dimension.
func (r *Repo) Reset(ctx context.Context, collection string, dim int) error {
	if err := validate(collection); err != nil {
		return err
	}
	if err := r.store.DropCollection(ctx, collection); err != nil {
		return fmt.Errorf("drop collection %s: %w", collection, err)
	}
	if err := r.store.EnsureCollection(ctx, collection, dim); err != nil {
		return fmt.Errorf("create collection %s: %w", collection, err)
	}
	return nil
}

// Exists reports whether the collection is present in the store.
func (r *Repo) Exists(ctx context.Context, collection string) (bool, error) {
	if err := validate(collection); err != nil {
		return false, err
	}
	ok, err := r.store.CollectionExists(ctx, collection)
	if err != nil {
		return false, fmt.Errorf("collection exists %s: %w", collection, err)
	}
	return ok, nil
}

// Count returns the number of chunks stored in the collection.
func (r *Repo) Count(ctx context.Context, collection string) (int, error) {
	n, err := r.store.Count(ctx, collection)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

// Save upserts embedded chunks. Chunks without a vector are rejected.
func (r *Repo) Save(ctx context.Context, collection string, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	records := make([]db.Record, len(chunks))
	for i, c := range chunks {
		if len(c.Vector) == 0 {
			return fmt.Errorf("chunk %s has no vector", c.ID)
		}
		records[i] = toRecord(c)
	}

	if err := r.store.Upsert(ctx, collection, records); err != nil {
		return fmt.Errorf("upsert %d chunks into %s: %w", len(records), collection, err)
	}
	return nil
}

// Search returns up to k documents closest to vector, most similar first.
func (r *Repo) Search(
	ctx context.Context, collection string, vector []float32, k int,
) ([]domain.ScoredDocument, error) {
	q := &db.KNNQuery{
		Collection:   collection,
		Vector:       vector,
		K:            k,
		ReturnFields: returnFields,
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w", collection, err)
	}

	return parseResults(sr), nil
}

func validate(collection string) error {
	if !db.IsValidIdentifier(collection) {
		return fmt.Errorf("%q: %w", collection, ErrInvalidCollection)
	}
	return nil
}

func toRecord(c domain.Chunk) db.Record {
	md := c.Document.Metadata
	return db.Record{
		ID:      c.ID,
		Content: c.Document.Content,
		Vector:  c.Vector,
		Fields: map[string]string{
			FieldSource:   md.Source,
			FieldRowIndex: strconv.Itoa(md.RowIndex),
			FieldFileType: md.FileType,
		},
	}
}

// parseResults converts db.SearchResult into scored documents, keeping store order.
func parseResults(sr *db.SearchResult) []domain.ScoredDocument {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}

	docs := make([]domain.ScoredDocument, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		docs = append(docs, domain.ScoredDocument{
			Document: domain.Document{
				Content:  entry.Content,
				Metadata: parseMetadata(entry.Fields),
			},
			Score: entry.Score,
		})
	}
	return docs
}

// parseMetadata tolerates missing fields; a missing or malformed row index reads as -1.
func parseMetadata(fields map[string]string) domain.Metadata {
	md := domain.Metadata{
		Source:   fields[FieldSource],
		FileType: fields[FieldFileType],
		RowIndex: -1,
	}
	if v, ok := fields[FieldRowIndex]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			md.RowIndex = n
		}
	}
	return md
}
