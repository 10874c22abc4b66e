// Package sqlite is the embedded index backend: collections, chunks and the
// key-value cache live in one SQLite file under the persist directory.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/kailas-cloud/prestadores/internal/db"
)

const backendName = "sqlite"

// FileName is the database file created inside the persist directory.
const FileName = "index.db"

// Compile-time checks.
var (
	_ db.VectorStore = (*Store)(nil)
	_ db.KVStore     = (*Store)(nil)
)

const schema = `
CREATE TABLE IF NOT EXISTS collections (
	name       TEXT PRIMARY KEY,
	dim        INTEGER NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS chunks (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	content    TEXT NOT NULL,
	fields     TEXT NOT NULL,
	vector     BLOB NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);
`

// Store implements db.VectorStore and db.KVStore on SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the index database inside dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating persist directory: %w", err)
	}

	dbPath := filepath.Join(dir, FileName)

	// WAL mode so readers are not blocked by a rebuild.
	sqlDB, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: sqlDB}, nil
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// WaitForReady pings once; an embedded database is either usable or broken.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() {
	_ = s.db.Close()
}

// EnsureCollection registers a collection with its vector dimension.
func (s *Store) EnsureCollection(ctx context.Context, name string, dim int) error {
	if !db.IsValidIdentifier(name) {
		return &db.Error{Backend: backendName, Op: db.OpEnsure, Err: fmt.Errorf("invalid collection name %q", name)}
	}
	if dim <= 0 {
		return &db.Error{Backend: backendName, Op: db.OpEnsure, Err: errors.New("dimension must be positive")}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (name, dim) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`, name, dim)
	if err != nil {
		return &db.Error{Backend: backendName, Op: db.OpEnsure, Err: err}
	}
	return nil
}

// DropCollection deletes a collection and all its chunks.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &db.Error{Backend: backendName, Op: db.OpDrop, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE collection = ?`, name); err != nil {
		return &db.Error{Backend: backendName, Op: db.OpDrop, Err: err}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name); err != nil {
		return &db.Error{Backend: backendName, Op: db.OpDrop, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &db.Error{Backend: backendName, Op: db.OpDrop, Err: err}
	}
	return nil
}

// CollectionExists reports whether the collection was created.
func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	_, err := s.dimension(ctx, db.OpExists, name)
	if errors.Is(err, db.ErrCollectionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Count returns the number of chunks in a collection.
func (s *Store) Count(ctx context.Context, name string) (int, error) {
	if _, err := s.dimension(ctx, db.OpCount, name); err != nil {
		return 0, err
	}
	var n int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE collection = ?`, name)
	if err := row.Scan(&n); err != nil {
		return 0, &db.Error{Backend: backendName, Op: db.OpCount, Err: err}
	}
	return n, nil
}

// Upsert writes records in one transaction, replacing chunks with the same ID.
func (s *Store) Upsert(ctx context.Context, collection string, records []db.Record) error {
	if len(records) == 0 {
		return nil
	}

	dim, err := s.dimension(ctx, db.OpUpsert, collection)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &db.Error{Backend: backendName, Op: db.OpUpsert, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (collection, id, content, fields, vector) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			content = excluded.content,
			fields  = excluded.fields,
			vector  = excluded.vector
	`)
	if err != nil {
		return &db.Error{Backend: backendName, Op: db.OpUpsert, Err: err}
	}
	defer func() { _ = stmt.Close() }()

	for i := range records {
		r := &records[i]
		if len(r.Vector) != dim {
			return &db.Error{Backend: backendName, Op: db.OpUpsert, Err: fmt.Errorf("chunk %s: vector has %d dims, collection expects %d",
				r.ID, len(r.Vector), dim)}
		}
		fields, err := json.Marshal(r.Fields)
		if err != nil {
			return &db.Error{Backend: backendName, Op: db.OpUpsert, Err: fmt.Errorf("chunk %s: %w", r.ID, err)}
		}
		if _, err := stmt.ExecContext(ctx, collection, r.ID, r.Content, string(fields), encodeVector(r.Vector)); err != nil {
			return &db.Error{Backend: backendName, Op: db.OpUpsert, Err: fmt.Errorf("chunk %s: %w", r.ID, err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &db.Error{Backend: backendName, Op: db.OpUpsert, Err: err}
	}
	return nil
}

// SearchKNN scores every chunk of the collection by cosine similarity and
// returns the top K.
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
	if _, err := s.dimension(ctx, db.OpQuery, q.Collection); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, fields, vector FROM chunks WHERE collection = ?`, q.Collection)
	if err != nil {
		return nil, &db.Error{Backend: backendName, Op: db.OpQuery, Err: err}
	}
	defer func() { _ = rows.Close() }()

	var entries []db.SearchEntry
	for rows.Next() {
		var (
			e          db.SearchEntry
			fieldsJSON string
			blob       []byte
		)
		if err := rows.Scan(&e.ID, &e.Content, &fieldsJSON, &blob); err != nil {
			return nil, &db.Error{Backend: backendName, Op: db.OpQuery, Err: err}
		}
		if err := json.Unmarshal([]byte(fieldsJSON), &e.Fields); err != nil {
			return nil, &db.Error{Backend: backendName, Op: db.OpQuery, Err: fmt.Errorf("chunk %s fields: %w", e.ID, err)}
		}
		e.Fields = project(e.Fields, q.ReturnFields)
		e.Score = cosine(q.Vector, decodeVector(blob))
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Backend: backendName, Op: db.OpQuery, Err: err}
	}

	total := len(entries)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	if len(entries) > q.K {
		entries = entries[:q.K]
	}

	return &db.SearchResult{Total: total, Entries: entries}, nil
}

// Get retrieves a value by key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, &db.Error{Backend: backendName, Op: db.OpGet, Err: err}
	}
	return v, nil
}

// Set stores a value at the given key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return &db.Error{Backend: backendName, Op: db.OpSet, Err: err}
	}
	return nil
}

// dimension reads the collection's vector size; failures are labelled with op.
func (s *Store) dimension(ctx context.Context, op, name string) (int, error) {
	var dim int
	err := s.db.QueryRowContext(ctx, `SELECT dim FROM collections WHERE name = ?`, name).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, db.ErrCollectionNotFound
	}
	if err != nil {
		return 0, &db.Error{Backend: backendName, Op: op, Err: err}
	}
	return dim, nil
}

// project keeps only the requested fields; nil keeps all.
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

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// encodeVector converts a []float32 to a little-endian blob.
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v
}
