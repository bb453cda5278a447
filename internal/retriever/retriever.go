// Package retriever turns a user query into a ranked, deduplicated set of
// passages: embed the query, search the vector index with an oversampled k,
// re-rank by recency and provider preference, cap chunks per document, and
// assign sequential reference IDs.
package retriever

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ainova/newsrag/internal/domain"
	"github.com/ainova/newsrag/internal/index"
	"github.com/ainova/newsrag/internal/logger"
)

// Config tunes ranking behavior.
type Config struct {
	K                  int     // final result size
	PerDocumentCap     int     // max chunks per source document, 0 disables the cap
	Oversample         int     // index query fetches K*Oversample candidates
	RecencyWeight      float64 // additive weight of the recency bonus, 0 disables
	RecencyHalfLifeDay float64 // article age at which the recency bonus halves
	PreferredProviders []string
	ProviderBoost      float64 // additive bonus for preferred providers
}

// Retriever runs the retrieval stage of the pipeline.
type Retriever struct {
	embedder domain.Embedder
	index    index.Index
	cfg      Config
	now      func() time.Time
}

// New creates a retriever. K and Oversample fall back to sane values when
// unset.
func New(embedder domain.Embedder, ix index.Index, cfg Config) *Retriever {
	if cfg.K <= 0 {
		cfg.K = 5
	}
	if cfg.Oversample <= 0 {
		cfg.Oversample = 3
	}
	if cfg.RecencyHalfLifeDay <= 0 {
		cfg.RecencyHalfLifeDay = 30
	}
	return &Retriever{embedder: embedder, index: ix, cfg: cfg, now: time.Now}
}

// Retrieve embeds the query and returns up to k ranked references. k <= 0
// falls back to the configured default.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, filters domain.Filters) (domain.RetrievalResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.RetrievalResult{}, domain.ErrEmptyQuery
	}
	if err := filters.Validate(); err != nil {
		return domain.RetrievalResult{}, err
	}
	if k <= 0 {
		k = r.cfg.K
	}

	emb, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return domain.RetrievalResult{}, fmt.Errorf("embed query: %w", err)
	}

	cands, err := r.index.Query(ctx, emb.Vector, k*r.cfg.Oversample, filters)
	if err != nil {
		return domain.RetrievalResult{}, fmt.Errorf("index query: %w", err)
	}

	ranked := r.rerank(cands)
	capped := r.capPerDocument(ranked)
	if len(capped) > k {
		capped = capped[:k]
	}

	refs := make([]domain.Reference, len(capped))
	for i, c := range capped {
		refs[i] = domain.Reference{
			RefID:       fmt.Sprintf("%s%d", domain.RefPrefix, i+1),
			Chunk:       c.Chunk,
			Score:       c.Score,
			Title:       c.Title,
			Provider:    c.Provider,
			URL:         c.URL,
			PublishedAt: c.PublishedAt,
		}
	}

	logger.FromContext(ctx).Debug("retrieval complete",
		zap.String("query", query),
		zap.Int("candidates", len(cands)),
		zap.Int("references", len(refs)),
	)

	return domain.RetrievalResult{Query: query, References: refs}, nil
}

// rerank adds recency and provider bonuses to the similarity score and
// re-sorts. Sorting is stable, so candidates with equal adjusted scores keep
// the index ordering policy.
func (r *Retriever) rerank(cands []index.Candidate) []index.Candidate {
	if r.cfg.RecencyWeight == 0 && r.cfg.ProviderBoost == 0 {
		return cands
	}

	now := r.now()
	adjusted := make([]index.Candidate, len(cands))
	copy(adjusted, cands)

	for i := range adjusted {
		adjusted[i].Score += r.recencyBonus(now, adjusted[i].PublishedAt)
		if r.isPreferred(adjusted[i].Provider) {
			adjusted[i].Score += r.cfg.ProviderBoost
		}
	}

	sort.SliceStable(adjusted, func(i, j int) bool {
		return adjusted[i].Score > adjusted[j].Score
	})
	return adjusted
}

// recencyBonus decays exponentially with article age, halving every
// RecencyHalfLifeDay days. Articles without a publication date get no bonus.
func (r *Retriever) recencyBonus(now time.Time, published time.Time) float64 {
	if r.cfg.RecencyWeight == 0 || published.IsZero() {
		return 0
	}
	ageDays := now.Sub(published).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return r.cfg.RecencyWeight * math.Exp2(-ageDays/r.cfg.RecencyHalfLifeDay)
}

func (r *Retriever) isPreferred(provider string) bool {
	for _, p := range r.cfg.PreferredProviders {
		if p == provider {
			return true
		}
	}
	return false
}

// capPerDocument keeps at most PerDocumentCap chunks per source document,
// preserving rank order.
func (r *Retriever) capPerDocument(cands []index.Candidate) []index.Candidate {
	if r.cfg.PerDocumentCap <= 0 {
		return cands
	}

	counts := make(map[string]int)
	out := make([]index.Candidate, 0, len(cands))
	for _, c := range cands {
		if counts[c.Chunk.DocumentID] >= r.cfg.PerDocumentCap {
			continue
		}
		counts[c.Chunk.DocumentID]++
		out = append(out, c)
	}
	return out
}
