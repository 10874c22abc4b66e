package chunk

import (
	"context"
	"testing"

	"github.com/kailas-cloud/prestadores/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	ensureFn func(ctx context.Context, name string, dim int) error
	dropFn   func(ctx context.Context, name string) error
	existsFn func(ctx context.Context, name string) (bool, error)
	countFn  func(ctx context.Context, name string) (int, error)
	upsertFn func(ctx context.Context, collection string, records []db.Record) error
	searchFn func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)

	calls []string
}

func (m *mockStore) EnsureCollection(ctx context.Context, name string, dim int) error {
	m.calls = append(m.calls, "ensure")
	if m.ensureFn != nil {
		return m.ensureFn(ctx, name, dim)
	}
	return nil
}

func (m *mockStore) DropCollection(ctx context.Context, name string) error {
	m.calls = append(m.calls, "drop")
	if m.dropFn != nil {
		return m.dropFn(ctx, name)
	}
	return nil
}

func (m *mockStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, name)
	}
	return true, nil
}

func (m *mockStore) Count(ctx context.Context, name string) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, name)
	}
	return 0, nil
}

func (m *mockStore) Upsert(ctx context.Context, collection string, records []db.Record) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, collection, records)
	}
	return nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms), ms
}
