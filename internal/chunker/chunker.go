// Package chunker splits article text into overlapping passages sized for the
// embedding model's context window.
package chunker

import (
	"fmt"
	"strings"

	"github.com/ainova/newsrag/internal/domain"
)

// DefaultChunkSize is the default number of runes per chunk.
const DefaultChunkSize = 500

// DefaultOverlap is the default number of overlapping runes between adjacent chunks.
const DefaultOverlap = 50

// Chunker splits documents into chunks. Chunking is deterministic: the same
// text and configuration always yield the same boundaries, so re-ingestion is
// idempotent.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in runes.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between adjacent chunks in runes.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Overlap must leave room for forward progress.
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}

	return c
}

// Chunk splits the document text into overlapping chunks. Boundaries prefer
// paragraph and sentence breaks; a hard rune limit applies only when no break
// exists in the second half of the window. The union of [Start,End) ranges
// covers the whole text.
func (c *Chunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, fmt.Errorf("%w: document %q has no text", domain.ErrInvalidDocument, doc.ID)
	}
	if doc.ID == "" {
		return nil, fmt.Errorf("%w: missing document id", domain.ErrInvalidDocument)
	}

	runes := []rune(doc.Text)
	var chunks []domain.Chunk

	start := 0
	for {
		end := start + c.chunkSize
		last := end >= len(runes)
		if last {
			end = len(runes)
		} else if cut := c.boundaryBefore(runes, start, end); cut > 0 {
			end = cut
		}

		ord := len(chunks)
		text := string(runes[start:end])
		chunks = append(chunks, domain.Chunk{
			ID:         fmt.Sprintf("%s-%d", doc.ID, ord),
			DocumentID: doc.ID,
			Ordinal:    ord,
			Text:       text,
			Start:      start,
			End:        end,
			TokenCount: EstimateTokens(text),
		})

		if last {
			return chunks, nil
		}

		next := end - c.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
}

// boundaryBefore finds the rune offset just after the last paragraph or
// sentence break inside (start+chunkSize/2, end]. Returns 0 when no break
// exists there, which makes the caller fall back to the hard limit.
func (c *Chunker) boundaryBefore(runes []rune, start, end int) int {
	minEnd := start + c.chunkSize/2

	// Paragraph break wins over a sentence break.
	for i := end; i > minEnd; i-- {
		if runes[i-1] == '\n' {
			return i
		}
	}
	for i := end; i > minEnd; i-- {
		switch runes[i-1] {
		case '.', '!', '?':
			return i
		}
	}
	return 0
}

// EstimateTokens roughly estimates the token count of text. Korean news text
// runs close to one token per syllable block, so runes/2 is a conservative
// middle ground between Korean and Latin scripts.
func EstimateTokens(text string) int {
	n := len([]rune(text))
	if n == 0 {
		return 0
	}
	return n/2 + 1
}
