package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrKeyNotFound        = errors.New("db: key not found")
	ErrCollectionNotFound = errors.New("db: collection not found")
)

// Operation names carried by Error. Redis reports the raw command.
const (
	OpCreateIndex = "FT.CREATE"
	OpDropIndex   = "FT.DROPINDEX"
	OpIndexInfo   = "FT.INFO"
	OpSearch      = "FT.SEARCH"
	OpHSet        = "HSET"
	OpGet         = "GET"
	OpSet         = "SET"

	OpEnsure = "ensure_collection"
	OpDrop   = "drop_collection"
	OpExists = "collection_exists"
	OpCount  = "count"
	OpUpsert = "upsert"
	OpQuery  = "search"
)

// Error is a backend failure annotated with where it happened. It renders
// as "<backend> <op>: <cause>"; Backend may be empty.
type Error struct {
	Backend string
	Op      string
	Err     error
}

func (e *Error) Error() string {
	if e.Backend == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Backend + " " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// OpOf returns the operation of the first Error in err's chain, or "".
func OpOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}
