package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/prestadores/internal/db"
)

// Hash field names of a stored chunk.
const (
	fieldContent = "content"
	fieldVector  = "vector"
	fieldScore   = "__vector_score"
)

// EnsureCollection creates the FT index for a collection if it does not exist.
func (s *Store) EnsureCollection(ctx context.Context, name string, dim int) error {
	schema := db.NewChunkSchema(name, s.keyPrefix(name), dim).WithMetadata(s.tagFields, s.numericFields)
	if err := schema.Validate(); err != nil {
		return &db.Error{Backend: backendName, Op: db.OpEnsure, Err: err}
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(buildCreateArgs(schema)...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return nil
		}
		return &db.Error{Backend: backendName, Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

// DropCollection removes the FT index and, with DD, every chunk hash under it.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(name, "DD").Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isUnknownIndex(err) {
			return nil
		}
		return &db.Error{Backend: backendName, Op: db.OpDropIndex, Err: err}
	}
	return nil
}

// CollectionExists probes index existence via FT.INFO; "unknown index name" means absent.
func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isUnknownIndex(err) {
			return false, nil
		}
		return false, &db.Error{Backend: backendName, Op: db.OpIndexInfo, Err: err}
	}
	return true, nil
}

// Count returns the number of indexed chunks via FT.SEARCH with LIMIT 0 0.
func (s *Store) Count(ctx context.Context, name string) (int, error) {
	cmd := s.b().Arbitrary("FT.SEARCH").Args(name, "*", "LIMIT", "0", "0").Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isUnknownIndex(err) {
			return 0, db.ErrCollectionNotFound
		}
		return 0, &db.Error{Backend: backendName, Op: db.OpSearch, Err: err}
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse count: %w", err)
	}
	return int(total), nil
}

// buildCreateArgs renders a validated schema as FT.CREATE arguments:
//
//	<name> ON HASH PREFIX 1 <prefix> SCHEMA content TEXT [<tag> TAG]... [<num> NUMERIC]...
//	  vector VECTOR HNSW 10 TYPE FLOAT32 DIM <d> DISTANCE_METRIC COSINE M <m> EF_CONSTRUCTION <ef>
func buildCreateArgs(schema db.ChunkSchema) []string {
	args := []string{schema.Collection, "ON", "HASH"}
	if schema.KeyPrefix != "" {
		args = append(args, "PREFIX", "1", schema.KeyPrefix)
	}

	args = append(args, "SCHEMA", fieldContent, "TEXT")
	for _, f := range schema.Tags {
		args = append(args, f, "TAG")
	}
	for _, f := range schema.Numerics {
		args = append(args, f, "NUMERIC")
	}

	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(schema.Dim),
		"DISTANCE_METRIC", "COSINE",
		"M", strconv.Itoa(schema.HNSW.M),
		"EF_CONSTRUCTION", strconv.Itoa(schema.HNSW.EFConstruction),
	}
	args = append(args, fieldVector, "VECTOR", "HNSW", strconv.Itoa(len(attrs)))
	return append(args, attrs...)
}
