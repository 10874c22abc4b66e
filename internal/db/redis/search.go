package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/prestadores/internal/db"
)

// Upsert stores chunk records as hashes in a single DoMulti round-trip.
// HSET overwrites existing fields, so a repeated ID replaces the chunk.
func (s *Store) Upsert(ctx context.Context, collection string, records []db.Record) error {
	if len(records) == 0 {
		return nil
	}

	prefix := s.keyPrefix(collection)
	cmds := make([]rueidis.Completed, len(records))
	for i := range records {
		r := &records[i]
		cmd := s.b().Hset().Key(prefix+r.ID).FieldValue().
			FieldValue(fieldContent, r.Content).
			FieldValue(fieldVector, vectorToBytes(r.Vector))
		for k, v := range r.Fields {
			cmd = cmd.FieldValue(k, v)
		}
		cmds[i] = cmd.Build()
	}

	results := s.client.DoMulti(ctx, cmds...)
	for i, res := range results {
		if err := res.Error(); err != nil {
			return &db.Error{Backend: backendName, Op: db.OpHSet, Err: fmt.Errorf("chunk %s: %w", records[i].ID, err)}
		}
	}
	return nil
}

// SearchKNN runs a KNN vector similarity search via FT.SEARCH.
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

	queryStr := fmt.Sprintf("*=>[KNN %d @%s $BLOB]", q.K, fieldVector)
	args := []string{q.Collection, queryStr}

	ret := append([]string{fieldContent, fieldScore}, q.ReturnFields...)
	args = append(args, "RETURN", strconv.Itoa(len(ret)))
	args = append(args, ret...)

	args = append(args,
		"SORTBY", fieldScore,
		"PARAMS", "2", "BLOB", vectorToBytes(q.Vector),
		"LIMIT", "0", strconv.Itoa(q.K),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isUnknownIndex(err) {
			return nil, db.ErrCollectionNotFound
		}
		return nil, &db.Error{Backend: backendName, Op: db.OpSearch, Err: err}
	}

	return parseKNNResult(raw, s.keyPrefix(q.Collection))
}

func parseKNNResult(raw []rueidis.RedisMessage, keyPrefix string) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, len(raw)/2)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		m := parseFieldPairs(fields)
		entry := db.SearchEntry{
			ID:      strings.TrimPrefix(key, keyPrefix),
			Content: m[fieldContent],
			Fields:  m,
		}
		delete(m, fieldContent)

		if scoreStr, ok := m[fieldScore]; ok {
			if d, err := strconv.ParseFloat(scoreStr, 64); err == nil {
				entry.Score = 1.0 - d // cosine distance to similarity
			}
			delete(m, fieldScore)
		}

		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(a, b int) bool { return entries[a].Score > entries[b].Score })

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
