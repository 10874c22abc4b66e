package domain

import "strconv"

// dedupPrefixLen is the number of leading content characters in a dedup key.
const dedupPrefixLen = 100

// File types recorded in document metadata.
const (
	FileTypeExcel = "excel"
	FileTypeCSV   = "csv"
)

// Metadata describes where a document came from. Chunks inherit it unchanged.
type Metadata struct {
	Source   string `json:"source"`
	RowIndex int    `json:"row_index"`
	FileType string `json:"file_type"`
}

// Document is one provider record flattened to text, or a chunk of one.
type Document struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// Chunk is a bounded slice of a Document ready to be embedded and stored.
type Chunk struct {
	ID       string
	Document Document
	Vector   []float32
}

// ScoredDocument is a retrieved document with its similarity score (higher is closer).
type ScoredDocument struct {
	Document
	Score float64 `json:"score"`
}

// DedupKey returns the candidate identity: row index, a dash, and the first
// 100 characters of content. Distinct rows with identical leading text and
// repeated rows with different indexes are not told apart.
func (d Document) DedupKey() string {
	prefix := d.Content
	if r := []rune(prefix); len(r) > dedupPrefixLen {
		prefix = string(r[:dedupPrefixLen])
	}
	return strconv.Itoa(d.Metadata.RowIndex) + "-" + prefix
}
