package indexing

import (
	"context"

	"github.com/kailas-cloud/prestadores/internal/domain"
)

// Loader reads the source corpus.
type Loader interface {
	Load(path string) ([]domain.Document, error)
}

// Repository persists chunks under a collection name.
type Repository interface {
	Reset(ctx context.Context, collection string, dim int) error
	Exists(ctx context.Context, collection string) (bool, error)
	Count(ctx context.Context, collection string) (int, error)
	Save(ctx context.Context, collection string, chunks []domain.Chunk) error
}
