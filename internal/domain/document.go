package domain

import "time"

// Document is an ingested news article. Immutable once ingested; re-ingesting
// under the same ID supersedes the previous version.
type Document struct {
	ID          string
	Title       string
	Text        string
	PublishedAt time.Time
	Provider    string
	Categories  []string
	URL         string
}

// Chunk is a contiguous span of a document, the unit of embedding and
// retrieval. Start/End are rune offsets into the source text; adjacent chunks
// may overlap by a configured window, and the union of all ranges covers the
// whole document.
type Chunk struct {
	ID         string // <documentID>-<ordinal>
	DocumentID string
	Ordinal    int
	Text       string
	Start      int
	End        int
	TokenCount int // rough estimate, used for prompt budgeting
}
