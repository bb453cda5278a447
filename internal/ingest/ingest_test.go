package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ainova/newsrag/internal/chunker"
	"github.com/ainova/newsrag/internal/domain"
	"github.com/ainova/newsrag/internal/index"
)

type fakeBatchEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return domain.BatchEmbeddingResult{}, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0}
	}
	return domain.BatchEmbeddingResult{Vectors: vectors, Model: "text-embedding-3-small"}, nil
}

type fakeIndex struct {
	mu       sync.Mutex
	records  map[string]index.Record
	deleted  []string
	upsertEr error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{records: make(map[string]index.Record)}
}

func (f *fakeIndex) Upsert(_ context.Context, rec index.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertEr != nil {
		return f.upsertEr
	}
	f.records[rec.Chunk.ID] = rec
	return nil
}

func (f *fakeIndex) Delete(_ context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, documentID)
	for id, rec := range f.records {
		if rec.Chunk.DocumentID == documentID {
			delete(f.records, id)
		}
	}
	return nil
}

func (f *fakeIndex) Query(context.Context, []float32, int, domain.Filters) ([]index.Candidate, error) {
	return nil, nil
}

func doc(id, text string) domain.Document {
	return domain.Document{
		ID:          id,
		Title:       "제목 " + id,
		Text:        text,
		Provider:    "yonhap",
		PublishedAt: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestIngest_WritesAllChunks(t *testing.T) {
	ix := newFakeIndex()
	emb := &fakeBatchEmbedder{}
	svc := New(chunker.New(chunker.WithChunkSize(100), chunker.WithOverlap(10)), emb, ix, Config{BatchSize: 2})

	n, err := svc.Ingest(context.Background(), doc("news1", strings.Repeat("기사 본문입니다. ", 60)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n < 2 {
		t.Fatalf("expected multiple chunks, got %d", n)
	}
	if len(ix.records) != n {
		t.Errorf("index holds %d records, want %d", len(ix.records), n)
	}
	if emb.calls != (n+1)/2 {
		t.Errorf("embedder called %d times for %d chunks with batch size 2", emb.calls, n)
	}

	for _, rec := range ix.records {
		if rec.Title != "제목 news1" || rec.Provider != "yonhap" {
			t.Errorf("metadata not carried onto record: %+v", rec)
		}
		if rec.Model != "text-embedding-3-small" {
			t.Errorf("model identity missing: %q", rec.Model)
		}
	}
}

func TestIngest_SupersedesPreviousVersion(t *testing.T) {
	ix := newFakeIndex()
	svc := New(chunker.New(chunker.WithChunkSize(100), chunker.WithOverlap(10)), &fakeBatchEmbedder{}, ix, Config{})

	long := strings.Repeat("긴 본문. ", 100)
	if _, err := svc.Ingest(context.Background(), doc("news1", long)); err != nil {
		t.Fatalf("first ingest: %v", err)
	}

	n, err := svc.Ingest(context.Background(), doc("news1", "짧아진 본문입니다. 새 판은 한 덩어리로 충분히 담길 만큼만 남겼습니다."))
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 chunk, got %d", n)
	}
	if len(ix.records) != 1 {
		t.Errorf("index holds %d records after shrink, want 1 (stale chunks left behind)", len(ix.records))
	}
}

func TestIngest_EmptyDocument(t *testing.T) {
	svc := New(chunker.New(), &fakeBatchEmbedder{}, newFakeIndex(), Config{})

	_, err := svc.Ingest(context.Background(), doc("news1", "   "))
	if !errors.Is(err, domain.ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
}

func TestIngest_EmbedderFailure(t *testing.T) {
	svc := New(chunker.New(), &fakeBatchEmbedder{err: domain.ErrEmbeddingUnavailable}, newFakeIndex(), Config{})

	_, err := svc.Ingest(context.Background(), doc("news1", strings.Repeat("본문입니다. ", 5)))
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}

func TestIngest_SkipsShortContent(t *testing.T) {
	ix := newFakeIndex()
	svc := New(chunker.New(), &fakeBatchEmbedder{}, ix, Config{})

	_, err := svc.Ingest(context.Background(), doc("news1", "짧은 속보."))
	if !errors.Is(err, domain.ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
	if len(ix.records) != 0 {
		t.Errorf("short document must not reach the index, got %d records", len(ix.records))
	}
}

func TestDelete_RequiresID(t *testing.T) {
	svc := New(chunker.New(), &fakeBatchEmbedder{}, newFakeIndex(), Config{})

	if err := svc.Delete(context.Background(), ""); !errors.Is(err, domain.ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
}

func TestCleanText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"space runs", "단어   사이\t공백", "단어 사이 공백"},
		{"blank line cap", "문단1\n\n\n\n문단2", "문단1\n\n문단2"},
		{"crlf", "줄1\r\n줄2", "줄1\n줄2"},
		{"trim", "  본문  ", "본문"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CleanText(tc.in); got != tc.want {
				t.Errorf("CleanText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
