// Package memory provides an in-process vector index backed by a map and
// exhaustive cosine scan. It is the default backend for local development and
// tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/ainova/newsrag/internal/domain"
	"github.com/ainova/newsrag/internal/index"
)

// Index is a thread-safe in-memory vector index.
type Index struct {
	mu      sync.RWMutex
	records map[string]index.Record // chunk ID -> record
	byDoc   map[string][]string     // document ID -> chunk IDs
	model   string
	dims    int
}

// New creates an empty in-memory index.
func New() *Index {
	return &Index{
		records: make(map[string]index.Record),
		byDoc:   make(map[string][]string),
	}
}

// Upsert inserts or replaces the record for its chunk ID. The first upsert
// pins the embedding model identity; later upserts with a different model or
// dimensionality fail with domain.ErrModelMismatch.
func (ix *Index) Upsert(_ context.Context, rec index.Record) error {
	if rec.Chunk.ID == "" {
		return fmt.Errorf("%w: record has no chunk id", domain.ErrInvalidDocument)
	}
	if len(rec.Vector) == 0 {
		return fmt.Errorf("%w: record %s has no vector", domain.ErrInvalidDocument, rec.Chunk.ID)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.model == "" {
		ix.model = rec.Model
		ix.dims = len(rec.Vector)
	} else if rec.Model != ix.model || len(rec.Vector) != ix.dims {
		return fmt.Errorf("%w: index holds %s/%d vectors, got %s/%d",
			domain.ErrModelMismatch, ix.model, ix.dims, rec.Model, len(rec.Vector))
	}

	if _, exists := ix.records[rec.Chunk.ID]; !exists {
		ix.byDoc[rec.Chunk.DocumentID] = append(ix.byDoc[rec.Chunk.DocumentID], rec.Chunk.ID)
	}
	ix.records[rec.Chunk.ID] = rec
	return nil
}

// Delete removes every chunk of the document. Deleting an unknown document is
// a no-op.
func (ix *Index) Delete(_ context.Context, documentID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, chunkID := range ix.byDoc[documentID] {
		delete(ix.records, chunkID)
	}
	delete(ix.byDoc, documentID)
	return nil
}

// Query scans all records passing the filters, scores them by cosine
// similarity, and returns up to k candidates in deterministic order.
func (ix *Index) Query(_ context.Context, vector []float32, k int, f domain.Filters) ([]index.Candidate, error) {
	if k <= 0 {
		return nil, nil
	}

	ix.mu.RLock()
	cands := make([]index.Candidate, 0, len(ix.records))
	for _, rec := range ix.records {
		if !index.Matches(rec, f) {
			continue
		}
		cands = append(cands, index.Candidate{
			Record: rec,
			Score:  index.CosineSimilarity(vector, rec.Vector),
		})
	}
	ix.mu.RUnlock()

	index.Sort(cands)
	if len(cands) > k {
		cands = cands[:k]
	}
	return cands, nil
}

// Len reports the number of indexed chunks.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.records)
}
