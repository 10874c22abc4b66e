package db

import (
	"errors"
	"fmt"
)

// HNSW graph parameters shared by the backends that build an ANN index.
type HNSW struct {
	M              int // max neighbours per node
	EFConstruction int // candidate list size while building
}

// DefaultHNSW is used for chunk collections unless a backend overrides it.
var DefaultHNSW = HNSW{M: 16, EFConstruction: 200}

// ChunkSchema describes the index a backend keeps over a chunk collection:
// full-text content, a cosine vector and the metadata fields worth filtering on.
type ChunkSchema struct {
	Collection string
	KeyPrefix  string
	Dim        int
	Tags       []string // exact-match metadata, e.g. source file
	Numerics   []string // range-filterable metadata, e.g. row index
	HNSW       HNSW
}

// NewChunkSchema returns a schema with the default HNSW parameters.
func NewChunkSchema(collection, keyPrefix string, dim int) ChunkSchema {
	return ChunkSchema{Collection: collection, KeyPrefix: keyPrefix, Dim: dim, HNSW: DefaultHNSW}
}

// WithMetadata adds indexed metadata fields.
func (s ChunkSchema) WithMetadata(tags, numerics []string) ChunkSchema {
	s.Tags = append(append([]string(nil), s.Tags...), tags...)
	s.Numerics = append(append([]string(nil), s.Numerics...), numerics...)
	return s
}

// Validate checks the collection name, the dimension and that no metadata
// field is declared twice.
func (s ChunkSchema) Validate() error {
	if !IsValidIdentifier(s.Collection) {
		return fmt.Errorf("invalid collection name %q", s.Collection)
	}
	if s.Dim <= 0 {
		return errors.New("dimension must be positive")
	}
	if s.HNSW.M <= 0 || s.HNSW.EFConstruction <= 0 {
		return errors.New("HNSW parameters must be positive")
	}

	seen := make(map[string]struct{}, len(s.Tags)+len(s.Numerics))
	for _, f := range append(append([]string(nil), s.Tags...), s.Numerics...) {
		if !IsValidIdentifier(f) {
			return fmt.Errorf("invalid metadata field %q", f)
		}
		if _, dup := seen[f]; dup {
			return fmt.Errorf("duplicate metadata field %q", f)
		}
		seen[f] = struct{}{}
	}
	return nil
}

// IsValidIdentifier returns true if s matches [a-zA-Z0-9_:-]+.
// Collection names are checked with it before they reach any backend.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		isSpecial := r == '_' || r == ':' || r == '-'
		if !isAlpha && !isDigit && !isSpecial {
			return false
		}
	}
	return true
}
