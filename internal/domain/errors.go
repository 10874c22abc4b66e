package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDataLoad signals an unreadable or malformed source corpus.
	ErrDataLoad = errors.New("data load failed")
	// ErrIndexBuild signals a failure to build the vector index.
	ErrIndexBuild = errors.New("index build failed")
	// ErrIndexLoad signals a failure to reattach to a persisted index.
	ErrIndexLoad = errors.New("index load failed")
	// ErrRetrieval signals a failed similarity search.
	ErrRetrieval = errors.New("retrieval failed")
	// ErrGeneration signals a failed generation call.
	ErrGeneration = errors.New("generation failed")
	// ErrQueryParse signals a structured-looking query that could not be parsed.
	ErrQueryParse = errors.New("query parse failed")

	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrGenerationProviderError signals a generation provider failure.
	ErrGenerationProviderError = errors.New("generation provider error")
	// ErrNotInitialized signals use of the search service before a successful init.
	ErrNotInitialized = errors.New("search service not initialized")
)

// DataLoadError wraps a source read or parse failure with the source path.
type DataLoadError struct {
	Path string
	Err  error
}

func (e *DataLoadError) Error() string {
	return fmt.Sprintf("error cargando archivo %s: %v", e.Path, e.Err)
}

func (e *DataLoadError) Unwrap() error { return e.Err }

// Is matches ErrDataLoad.
func (e *DataLoadError) Is(target error) bool { return target == ErrDataLoad }

// IndexBuildError wraps a failure while building a collection.
type IndexBuildError struct {
	Collection string
	Err        error
}

func (e *IndexBuildError) Error() string {
	return fmt.Sprintf("error creando vectorstore %q: %v", e.Collection, e.Err)
}

func (e *IndexBuildError) Unwrap() error { return e.Err }

// Is matches ErrIndexBuild.
func (e *IndexBuildError) Is(target error) bool { return target == ErrIndexBuild }

// IndexLoadError wraps a failure while reattaching to a persisted collection.
// Callers recover from it by rebuilding.
type IndexLoadError struct {
	Collection string
	Err        error
}

func (e *IndexLoadError) Error() string {
	return fmt.Sprintf("error cargando vectorstore existente %q: %v", e.Collection, e.Err)
}

func (e *IndexLoadError) Unwrap() error { return e.Err }

// Is matches ErrIndexLoad.
func (e *IndexLoadError) Is(target error) bool { return target == ErrIndexLoad }

// RetrievalError wraps a failed similarity search for one query text.
type RetrievalError struct {
	Query string
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval %q: %v", e.Query, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// Is matches ErrRetrieval.
func (e *RetrievalError) Is(target error) bool { return target == ErrRetrieval }

// GenerationError wraps a failed generation call.
type GenerationError struct {
	Model string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation (%s): %v", e.Model, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Is matches ErrGeneration.
func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }

// QueryParseError wraps a JSON decode failure of a brace-delimited query.
// It never leaves the query planner.
type QueryParseError struct {
	Input string
	Err   error
}

func (e *QueryParseError) Error() string {
	return fmt.Sprintf("error procesando JSON: %v", e.Err)
}

func (e *QueryParseError) Unwrap() error { return e.Err }

// Is matches ErrQueryParse.
func (e *QueryParseError) Is(target error) bool { return target == ErrQueryParse }
