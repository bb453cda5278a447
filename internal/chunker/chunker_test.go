package chunker

import (
	"errors"
	"strings"
	"testing"

	"github.com/ainova/newsrag/internal/domain"
)

func TestChunk_EmptyDocument(t *testing.T) {
	c := New()

	for _, text := range []string{"", "   \n\t  "} {
		_, err := c.Chunk(domain.Document{ID: "d1", Text: text})
		if !errors.Is(err, domain.ErrInvalidDocument) {
			t.Errorf("text %q: expected ErrInvalidDocument, got %v", text, err)
		}
	}
}

func TestChunk_MissingDocumentID(t *testing.T) {
	c := New()

	_, err := c.Chunk(domain.Document{Text: "some article body"})
	if !errors.Is(err, domain.ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
}

func TestChunk_ShortDocumentSingleChunk(t *testing.T) {
	c := New(WithChunkSize(400), WithOverlap(50))

	chunks, err := c.Chunk(domain.Document{ID: "d1", Text: "short article"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].ID != "d1-0" {
		t.Errorf("chunk id = %q, want d1-0", chunks[0].ID)
	}
	if chunks[0].Start != 0 || chunks[0].End != len([]rune("short article")) {
		t.Errorf("span = [%d,%d), want full text", chunks[0].Start, chunks[0].End)
	}
}

// A 1,200-rune article with chunk_size=400 and overlap=50 splits into 4
// chunks overlapping by 50 runes at each boundary.
func TestChunk_OverlapWindows(t *testing.T) {
	c := New(WithChunkSize(400), WithOverlap(50))
	text := strings.Repeat("가", 1200) // no sentence breaks: hard limits apply

	chunks, err := c.Chunk(domain.Document{ID: "news42", Text: text})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(chunks))
	}

	wantSpans := [][2]int{{0, 400}, {350, 750}, {700, 1100}, {1050, 1200}}
	for i, ch := range chunks {
		if ch.Start != wantSpans[i][0] || ch.End != wantSpans[i][1] {
			t.Errorf("chunk %d span = [%d,%d), want [%d,%d)",
				i, ch.Start, ch.End, wantSpans[i][0], wantSpans[i][1])
		}
		if ch.Ordinal != i {
			t.Errorf("chunk %d ordinal = %d", i, ch.Ordinal)
		}
	}

	for i := 1; i < len(chunks); i++ {
		overlap := chunks[i-1].End - chunks[i].Start
		if overlap != 50 {
			t.Errorf("overlap between chunk %d and %d = %d, want 50", i-1, i, overlap)
		}
	}
}

func TestChunk_PrefersSentenceBoundary(t *testing.T) {
	c := New(WithChunkSize(100), WithOverlap(10))

	// One sentence ends at rune 80, well inside the second half of the window.
	text := strings.Repeat("a", 79) + "." + strings.Repeat("b", 120)

	chunks, err := c.Chunk(domain.Document{ID: "d1", Text: text})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunks[0].End != 80 {
		t.Errorf("first chunk end = %d, want 80 (after the period)", chunks[0].End)
	}
}

func TestChunk_PrefersParagraphOverSentence(t *testing.T) {
	c := New(WithChunkSize(100), WithOverlap(10))

	// Sentence break at 90, paragraph break at 70: the paragraph break wins
	// even though the sentence break is closer to the limit.
	text := strings.Repeat("a", 69) + "\n" + strings.Repeat("b", 19) + "." + strings.Repeat("c", 120)

	chunks, err := c.Chunk(domain.Document{ID: "d1", Text: text})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunks[0].End != 70 {
		t.Errorf("first chunk end = %d, want 70 (after the newline)", chunks[0].End)
	}
}

func TestChunk_Coverage(t *testing.T) {
	c := New(WithChunkSize(64), WithOverlap(16))
	text := strings.Repeat("뉴스 기사 본문입니다. ", 100)
	runes := len([]rune(text))

	chunks, err := c.Chunk(domain.Document{ID: "d1", Text: text})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	covered := make([]bool, runes)
	for _, ch := range chunks {
		if ch.Start < 0 || ch.End > runes || ch.Start >= ch.End {
			t.Fatalf("invalid span [%d,%d)", ch.Start, ch.End)
		}
		for i := ch.Start; i < ch.End; i++ {
			covered[i] = true
		}
	}
	for i, ok := range covered {
		if !ok {
			t.Fatalf("rune %d not covered by any chunk", i)
		}
	}
}

func TestChunk_Deterministic(t *testing.T) {
	c := New(WithChunkSize(120), WithOverlap(20))
	doc := domain.Document{ID: "d1", Text: strings.Repeat("문장입니다. 다음 문장. ", 60)}

	a, err := c.Chunk(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := c.Chunk(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("chunk %d differs between runs:\n%+v\n%+v", i, a[i], b[i])
		}
	}
}

func TestChunk_TextMatchesSpan(t *testing.T) {
	c := New(WithChunkSize(50), WithOverlap(5))
	text := "첫 문단입니다.\n둘째 문단은 조금 더 깁니다. 문장이 이어집니다.\n셋째 문단." + strings.Repeat(" 추가 내용.", 20)
	runes := []rune(text)

	chunks, err := c.Chunk(domain.Document{ID: "d1", Text: text})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, ch := range chunks {
		if ch.Text != string(runes[ch.Start:ch.End]) {
			t.Errorf("chunk %s text does not match its [%d,%d) span", ch.ID, ch.Start, ch.End)
		}
	}
}
