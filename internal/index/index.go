// Package index defines the vector index contract shared by all backends:
// chunk vectors plus article metadata, nearest-neighbor queries with metadata
// filters, and a deterministic ordering policy.
package index

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/ainova/newsrag/internal/domain"
)

// ScoreEpsilon is the floating-point tolerance inside which two similarity
// scores count as tied.
const ScoreEpsilon = 1e-6

// Record is one indexed chunk with its vector and article metadata.
type Record struct {
	Chunk       domain.Chunk
	Vector      []float32
	Model       string
	Title       string
	Provider    string
	URL         string
	Categories  []string
	PublishedAt time.Time
}

// Candidate is one query hit with its similarity score.
type Candidate struct {
	Record
	Score float64
}

// Index stores chunk vectors and answers nearest-neighbor queries. Upsert is
// idempotent and replaces atomically; Delete removes every chunk of a
// document; Query returns up to k candidates ordered by the package ordering
// policy. An empty index yields an empty result, and k larger than the
// candidate count yields all candidates. Implementations record the embedding
// model identity and reject mismatched upserts with domain.ErrModelMismatch.
type Index interface {
	Upsert(ctx context.Context, rec Record) error
	Delete(ctx context.Context, documentID string) error
	Query(ctx context.Context, vector []float32, k int, f domain.Filters) ([]Candidate, error)
}

// Sort orders candidates by similarity score descending; scores tied within
// ScoreEpsilon break by publication date (newer first), then chunk ID
// ascending. Deterministic ordering keeps retrieval reproducible.
func Sort(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		si, sj := cands[i].Score, cands[j].Score
		if math.Abs(si-sj) > ScoreEpsilon {
			return si > sj
		}
		if !cands[i].PublishedAt.Equal(cands[j].PublishedAt) {
			return cands[i].PublishedAt.After(cands[j].PublishedAt)
		}
		return cands[i].Chunk.ID < cands[j].Chunk.ID
	})
}

// CosineSimilarity computes the cosine similarity of two vectors. Mismatched
// lengths or zero vectors yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Matches reports whether a record passes the metadata filters.
func Matches(rec Record, f domain.Filters) bool {
	if !f.DateFrom.IsZero() && rec.PublishedAt.Before(f.DateFrom) {
		return false
	}
	if !f.DateTo.IsZero() && rec.PublishedAt.After(f.DateTo) {
		return false
	}
	if len(f.Providers) > 0 && !contains(f.Providers, rec.Provider) {
		return false
	}
	if len(f.Categories) > 0 && !intersects(f.Categories, rec.Categories) {
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, s := range a {
		if contains(b, s) {
			return true
		}
	}
	return false
}
