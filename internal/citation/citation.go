// Package citation resolves [기사 refN] markers in generated text against the
// retrieval result that produced the prompt.
package citation

import (
	"regexp"

	"github.com/ainova/newsrag/internal/domain"
)

// markerPattern matches the citation marker the prompt instructs the model to
// emit. The format is a wire contract shared with the prompt builder.
var markerPattern = regexp.MustCompile(`\[기사 (ref\d+)\]`)

const excerptRunes = 120

// Resolve scans text for citation markers and binds each distinct reference
// ID to its source chunk. IDs absent from the retrieval result are reported
// as hallucinated; the text itself is never rewritten. Used citations keep
// first-occurrence order.
func Resolve(text string, rr domain.RetrievalResult) domain.CitationSet {
	var set domain.CitationSet
	seen := make(map[string]bool)

	for _, m := range markerPattern.FindAllStringSubmatch(text, -1) {
		refID := m[1]
		if seen[refID] {
			continue
		}
		seen[refID] = true

		ref, ok := rr.ByRef(refID)
		if !ok {
			set.Hallucinated = append(set.Hallucinated, refID)
			continue
		}
		set.Used = append(set.Used, domain.Citation{
			RefID:       ref.RefID,
			ChunkID:     ref.Chunk.ID,
			DocumentID:  ref.Chunk.DocumentID,
			Title:       ref.Title,
			Provider:    ref.Provider,
			URL:         ref.URL,
			PublishedAt: ref.PublishedAt,
			Excerpt:     excerpt(ref.Chunk.Text),
		})
	}
	return set
}

func excerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= excerptRunes {
		return text
	}
	return string(runes[:excerptRunes]) + "…"
}
