// Package redisidx implements the vector index on Redis 8+ using RediSearch
// HNSW vector fields via rueidis.
package redisidx

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/rueidis"

	"github.com/ainova/newsrag/internal/domain"
	"github.com/ainova/newsrag/internal/index"
)

var _ index.Index = (*Store)(nil)

// Config holds connection and schema parameters for the Redis index.
type Config struct {
	Addrs       []string
	Username    string
	Password    string
	DB          int
	KeyPrefix   string // e.g. "newsrag:"
	Model       string
	Dims        int
	M           int // HNSW M
	EFConstruct int // HNSW EF_CONSTRUCTION
}

// Store is a Redis-backed vector index. Chunks live in hashes under
// <prefix>chunk:<chunkID>; the embedding model identity lives in
// <prefix>meta and guards against mixed-model writes.
type Store struct {
	client rueidis.Client
	cfg    Config

	mu        sync.Mutex
	metaKnown bool
}

// NewStore connects to Redis and returns the index store.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	if cfg.Dims <= 0 {
		return nil, fmt.Errorf("vector dims must be positive")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "newsrag:"
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Store{client: client, cfg: cfg}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until Redis responds or the timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for redis: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

func (s *Store) indexName() string {
	return s.cfg.KeyPrefix + "chunks"
}

func (s *Store) chunkKey(chunkID string) string {
	return s.cfg.KeyPrefix + "chunk:" + chunkID
}

func (s *Store) metaKey() string {
	return s.cfg.KeyPrefix + "meta"
}

// EnsureIndex creates the FT index if it does not exist yet.
func (s *Store) EnsureIndex(ctx context.Context) error {
	args := []string{
		s.indexName(),
		"ON", "HASH",
		"PREFIX", "1", s.cfg.KeyPrefix + "chunk:",
		"SCHEMA",
		"document", "TAG",
		"provider", "TAG",
		"category", "TAG",
		"published", "NUMERIC",
		"vector", "VECTOR", "HNSW", "10",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(s.cfg.Dims),
		"DISTANCE_METRIC", "COSINE",
		"M", strconv.Itoa(s.cfg.M),
		"EF_CONSTRUCTION", strconv.Itoa(s.cfg.EFConstruct),
	}

	cmd := s.client.B().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return nil
		}
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// ensureModel pins the embedding model identity on first write and rejects
// mismatched writes afterwards.
func (s *Store) ensureModel(ctx context.Context, model string, dims int) error {
	if model != s.cfg.Model || dims != s.cfg.Dims {
		return fmt.Errorf("%w: store configured for %s/%d, got %s/%d",
			domain.ErrModelMismatch, s.cfg.Model, s.cfg.Dims, model, dims)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metaKnown {
		return nil
	}

	cmd := s.client.B().Hgetall().Key(s.metaKey()).Build()
	m, err := s.client.Do(ctx, cmd).AsStrMap()
	if err != nil {
		return fmt.Errorf("read index meta: %w", err)
	}

	if len(m) == 0 {
		set := s.client.B().Hset().Key(s.metaKey()).
			FieldValue().
			FieldValue("model", model).
			FieldValue("dims", strconv.Itoa(dims)).
			Build()
		if err := s.client.Do(ctx, set).Error(); err != nil {
			return fmt.Errorf("write index meta: %w", err)
		}
		s.metaKnown = true
		return nil
	}

	if m["model"] != model || m["dims"] != strconv.Itoa(dims) {
		return fmt.Errorf("%w: index holds %s/%s vectors, got %s/%d",
			domain.ErrModelMismatch, m["model"], m["dims"], model, dims)
	}
	s.metaKnown = true
	return nil
}

// Upsert writes the chunk hash. HSET on an existing key replaces the listed
// fields atomically, so repeated upserts converge on the latest record.
func (s *Store) Upsert(ctx context.Context, rec index.Record) error {
	if rec.Chunk.ID == "" {
		return fmt.Errorf("%w: record has no chunk id", domain.ErrInvalidDocument)
	}
	if err := s.ensureModel(ctx, rec.Model, len(rec.Vector)); err != nil {
		return err
	}

	cmd := s.client.B().Hset().Key(s.chunkKey(rec.Chunk.ID)).
		FieldValue().
		FieldValue("document", rec.Chunk.DocumentID).
		FieldValue("ordinal", strconv.Itoa(rec.Chunk.Ordinal)).
		FieldValue("text", rec.Chunk.Text).
		FieldValue("title", rec.Title).
		FieldValue("provider", rec.Provider).
		FieldValue("category", strings.Join(rec.Categories, ",")).
		FieldValue("url", rec.URL).
		FieldValue("published", strconv.FormatInt(rec.PublishedAt.Unix(), 10)).
		FieldValue("vector", vectorToBytes(rec.Vector)).
		Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("upsert chunk %s: %w", rec.Chunk.ID, err)
	}
	return nil
}

// Delete removes every chunk hash belonging to the document.
func (s *Store) Delete(ctx context.Context, documentID string) error {
	query := buildTagFilter("document", documentID)
	cmd := s.client.B().Arbitrary("FT.SEARCH").
		Args(s.indexName(), query, "NOCONTENT", "LIMIT", "0", "10000", "DIALECT", "2").
		Build()
	raw, err := s.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return fmt.Errorf("find chunks of %s: %w", documentID, err)
	}
	if len(raw) < 2 {
		return nil
	}

	// NOCONTENT reply: [total, key1, key2, ...]
	cmds := make([]rueidis.Completed, 0, len(raw)-1)
	for _, msg := range raw[1:] {
		key, err := msg.ToString()
		if err != nil {
			continue
		}
		cmds = append(cmds, s.client.B().Del().Key(key).Build())
	}
	for _, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return fmt.Errorf("delete chunks of %s: %w", documentID, err)
		}
	}
	return nil
}

// Query runs a KNN search with optional metadata pre-filters and re-sorts the
// hits client-side so ordering matches the in-memory backend exactly.
func (s *Store) Query(ctx context.Context, vector []float32, k int, f domain.Filters) ([]index.Candidate, error) {
	if k <= 0 {
		return nil, nil
	}
	if len(vector) != s.cfg.Dims {
		return nil, fmt.Errorf("%w: query vector has %d dims, index expects %d",
			domain.ErrModelMismatch, len(vector), s.cfg.Dims)
	}

	queryStr := buildKNNQuery(k, f)
	cmd := s.client.B().Arbitrary("FT.SEARCH").
		Args(s.indexName(), queryStr,
			"SORTBY", "__vector_score",
			"LIMIT", "0", strconv.Itoa(k),
			"PARAMS", "2", "BLOB", vectorToBytes(vector),
			"DIALECT", "2").
		Build()
	raw, err := s.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}

	cands, err := parseKNNResult(raw)
	if err != nil {
		return nil, err
	}
	for i := range cands {
		cands[i].Model = s.cfg.Model
	}
	index.Sort(cands)
	return cands, nil
}

func buildKNNQuery(k int, f domain.Filters) string {
	filterStr := buildFilter(f)
	knn := fmt.Sprintf("[KNN %d @vector $BLOB]", k)
	if filterStr == "" {
		return "*=>" + knn
	}
	return fmt.Sprintf("(%s)=>%s", filterStr, knn)
}

// buildFilter translates metadata filters into an FT.SEARCH pre-filter.
func buildFilter(f domain.Filters) string {
	var parts []string

	if !f.DateFrom.IsZero() || !f.DateTo.IsZero() {
		minBound := "-inf"
		maxBound := "+inf"
		if !f.DateFrom.IsZero() {
			minBound = strconv.FormatInt(f.DateFrom.Unix(), 10)
		}
		if !f.DateTo.IsZero() {
			maxBound = strconv.FormatInt(f.DateTo.Unix(), 10)
		}
		parts = append(parts, fmt.Sprintf("@published:[%s %s]", minBound, maxBound))
	}

	if group := buildTagGroup("provider", f.Providers); group != "" {
		parts = append(parts, group)
	}
	if group := buildTagGroup("category", f.Categories); group != "" {
		parts = append(parts, group)
	}

	return strings.Join(parts, " ")
}

func buildTagGroup(key string, values []string) string {
	switch len(values) {
	case 0:
		return ""
	case 1:
		return buildTagFilter(key, values[0])
	default:
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = buildTagFilter(key, v)
		}
		return "(" + strings.Join(parts, " | ") + ")"
	}
}

func buildTagFilter(key, value string) string {
	return fmt.Sprintf("@%s:{%s}", key, tagEscaper.Replace(value))
}

// parseKNNResult decodes the RESP2 FT.SEARCH reply.
// 2-stride: [total, key1, fields1, key2, fields2, ...]
func parseKNNResult(raw []rueidis.RedisMessage) ([]index.Candidate, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	cands := make([]index.Candidate, 0, total)
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fieldMsgs, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		fields := parseFieldPairs(fieldMsgs)

		cand := candidateFromFields(key, fields)
		if scoreStr, ok := fields["__vector_score"]; ok {
			if dist, err := strconv.ParseFloat(scoreStr, 64); err == nil {
				cand.Score = max(0, 1.0-dist) // cosine distance → similarity, clamped to [0,1]
			}
		}
		cands = append(cands, cand)
	}
	return cands, nil
}

func candidateFromFields(key string, fields map[string]string) index.Candidate {
	chunkID := key
	if idx := strings.LastIndex(key, "chunk:"); idx >= 0 {
		chunkID = key[idx+len("chunk:"):]
	}

	ordinal, _ := strconv.Atoi(fields["ordinal"])
	published := time.Time{}
	if unix, err := strconv.ParseInt(fields["published"], 10, 64); err == nil {
		published = time.Unix(unix, 0).UTC()
	}

	var categories []string
	if fields["category"] != "" {
		categories = strings.Split(fields["category"], ",")
	}

	return index.Candidate{
		Record: index.Record{
			Chunk: domain.Chunk{
				ID:         chunkID,
				DocumentID: fields["document"],
				Ordinal:    ordinal,
				Text:       fields["text"],
			},
			Title:       fields["title"],
			Provider:    fields["provider"],
			URL:         fields["url"],
			Categories:  categories,
			PublishedAt: published,
		},
	}
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// isRedisErr checks if err is a Redis server error containing substr (case-insensitive).
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
)
