package db

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	Collection   string
	Vector       []float32
	K            int
	ReturnFields []string // metadata fields to return; content is always returned
}

// SearchResult is the output of a search operation, ordered by descending score.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single chunk hit from a search. Score is a similarity
// where larger means closer.
type SearchEntry struct {
	ID      string
	Content string
	Score   float64
	Fields  map[string]string
}
