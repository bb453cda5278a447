// Package ingest writes documents into the vector index: clean the text,
// chunk it, embed the chunks in batches, and upsert the records. Batches run
// with bounded parallelism.
package ingest

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ainova/newsrag/internal/chunker"
	"github.com/ainova/newsrag/internal/domain"
	"github.com/ainova/newsrag/internal/index"
	"github.com/ainova/newsrag/internal/logger"
	"github.com/ainova/newsrag/internal/metrics"
)

// MinContentRunes is the shortest cleaned text worth indexing. Stubs below
// this length embed into noise and pollute retrieval.
const MinContentRunes = 30

// Config bounds embedding batch size and concurrency.
type Config struct {
	BatchSize   int
	Parallelism int
}

// Service ingests and removes documents.
type Service struct {
	chunker  *chunker.Chunker
	embedder domain.BatchEmbedder
	index    index.Index
	cfg      Config
}

// New creates an ingest service.
func New(c *chunker.Chunker, e domain.BatchEmbedder, ix index.Index, cfg Config) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	return &Service{chunker: c, embedder: e, index: ix, cfg: cfg}
}

// Ingest indexes the document and returns the number of chunks written.
// Re-ingesting an existing document replaces it: stale chunks from a previous
// version are removed first so a shrunk document leaves no orphans.
func (s *Service) Ingest(ctx context.Context, doc domain.Document) (int, error) {
	doc.Text = CleanText(doc.Text)
	if n := len([]rune(doc.Text)); n < MinContentRunes {
		return 0, fmt.Errorf("%w: document %q has only %d runes of content", domain.ErrInvalidDocument, doc.ID, n)
	}

	chunks, err := s.chunker.Chunk(doc)
	if err != nil {
		return 0, err
	}

	if err := s.index.Delete(ctx, doc.ID); err != nil {
		return 0, fmt.Errorf("remove stale chunks of %s: %w", doc.ID, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)

	for start := 0; start < len(chunks); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(chunks))
		batch := chunks[start:end]

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, ch := range batch {
				texts[i] = ch.Text
			}

			res, err := s.embedder.BatchEmbed(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed batch: %w", err)
			}
			if len(res.Vectors) != len(batch) {
				return fmt.Errorf("embed batch: got %d vectors for %d chunks", len(res.Vectors), len(batch))
			}

			for i, ch := range batch {
				rec := index.Record{
					Chunk:       ch,
					Vector:      res.Vectors[i],
					Model:       res.Model,
					Title:       doc.Title,
					Provider:    doc.Provider,
					URL:         doc.URL,
					Categories:  doc.Categories,
					PublishedAt: doc.PublishedAt,
				}
				if err := s.index.Upsert(gctx, rec); err != nil {
					return fmt.Errorf("upsert chunk %s: %w", ch.ID, err)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	metrics.ChunksIndexedTotal.Add(float64(len(chunks)))
	logger.FromContext(ctx).Info("document ingested",
		zap.String("document_id", doc.ID),
		zap.Int("chunks", len(chunks)),
	)
	return len(chunks), nil
}

// Delete removes every chunk of the document from the index.
func (s *Service) Delete(ctx context.Context, documentID string) error {
	if documentID == "" {
		return fmt.Errorf("%w: missing document id", domain.ErrInvalidDocument)
	}
	return s.index.Delete(ctx, documentID)
}

var (
	spaceRuns   = regexp.MustCompile(`[ \t\x{00A0}]+`)
	newlineRuns = regexp.MustCompile(`\n{3,}`)
)

// CleanText normalizes article text before chunking: collapse runs of spaces
// and tabs, cap blank lines at one, trim the edges. Chunk offsets refer to the
// cleaned text.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = spaceRuns.ReplaceAllString(text, " ")
	text = newlineRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
