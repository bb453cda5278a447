package domain

import (
	"fmt"
	"time"
)

// RefPrefix is the prefix of per-request reference IDs (ref1, ref2, ...).
const RefPrefix = "ref"

// Filters restricts a vector index query by metadata. Zero values mean "no
// restriction" for the corresponding field.
type Filters struct {
	DateFrom   time.Time
	DateTo     time.Time
	Providers  []string
	Categories []string
}

// Validate rejects contradictory filters.
func (f Filters) Validate() error {
	if !f.DateFrom.IsZero() && !f.DateTo.IsZero() && f.DateTo.Before(f.DateFrom) {
		return fmt.Errorf("%w: date_to before date_from", ErrInvalidFilter)
	}
	return nil
}

// Reference is one retrieved chunk with its per-request reference ID.
// Reference IDs are unique within one RetrievalResult and never renumbered
// after assignment; they carry no meaning across requests.
type Reference struct {
	RefID       string
	Chunk       Chunk
	Score       float64
	Title       string
	Provider    string
	URL         string
	PublishedAt time.Time
}

// RetrievalResult is the ranked outcome of one retrieval, owned by a single
// in-flight request.
type RetrievalResult struct {
	Query      string
	References []Reference
}

// ByRef returns the reference with the given ID, if present.
func (r RetrievalResult) ByRef(refID string) (Reference, bool) {
	for _, ref := range r.References {
		if ref.RefID == refID {
			return ref, true
		}
	}
	return Reference{}, false
}

// RefIDs returns the reference IDs in rank order.
func (r RetrievalResult) RefIDs() []string {
	ids := make([]string, len(r.References))
	for i, ref := range r.References {
		ids[i] = ref.RefID
	}
	return ids
}
