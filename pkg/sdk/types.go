package prestadores

// Source is a provider record an answer was written from.
type Source struct {
	Content  string
	File     string
	RowIndex int
	FileType string
}

// Answer is a search answer with the details behind it.
type Answer struct {
	Text         string
	Sources      []Source
	Variants     []string
	UsedFallback bool
	// Err is the cause when Text is an error answer.
	Err error
}

// Stats describes the current index.
type Stats struct {
	Collection string
	Backend    string
	Chunks     int
}
