package prestadores

import "github.com/kailas-cloud/prestadores/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrDataLoad               = domain.ErrDataLoad
	ErrIndexBuild             = domain.ErrIndexBuild
	ErrIndexLoad              = domain.ErrIndexLoad
	ErrRetrieval              = domain.ErrRetrieval
	ErrGeneration             = domain.ErrGeneration
	ErrNotInitialized         = domain.ErrNotInitialized
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
)
