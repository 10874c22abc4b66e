package redis

import (
	"time"

	"github.com/redis/rueidis"
)

// NewStoreForTest creates a Store with the provided rueidis client (test-only).
func NewStoreForTest(c rueidis.Client, keyPrefix string) *Store {
	return &Store{client: c, prefix: keyPrefix}
}

// NewStoreWithTTLForTest is NewStoreForTest with a key-value expiry (test-only).
func NewStoreWithTTLForTest(c rueidis.Client, keyPrefix string, ttl time.Duration) *Store {
	return &Store{client: c, prefix: keyPrefix, kvTTL: ttl}
}
