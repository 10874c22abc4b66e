package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/prestadores/internal/db"
)

// Get retrieves a cached value. A missing or expired key is db.ErrKeyNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.do(ctx, s.b().Get().Key(key).Build()).AsBytes()
	switch {
	case err == nil:
		return data, nil
	case rueidis.IsRedisNil(err):
		return nil, db.ErrKeyNotFound
	default:
		return nil, &db.Error{Backend: backendName, Op: db.OpGet, Err: err}
	}
}

// Set stores a value. With a cache TTL configured the key expires after it,
// otherwise it is kept until the keyspace is flushed.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	cmd := s.b().Set().Key(key).Value(rueidis.BinaryString(value)).Build()
	if s.kvTTL > 0 {
		cmd = s.b().Set().Key(key).Value(rueidis.BinaryString(value)).Ex(s.kvTTL).Build()
	}
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Backend: backendName, Op: db.OpSet, Err: err}
	}
	return nil
}
