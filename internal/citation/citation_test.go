package citation

import (
	"strings"
	"testing"
	"time"

	"github.com/ainova/newsrag/internal/domain"
)

func retrieval(refIDs ...string) domain.RetrievalResult {
	rr := domain.RetrievalResult{Query: "질문"}
	for i, id := range refIDs {
		rr.References = append(rr.References, domain.Reference{
			RefID: id,
			Chunk: domain.Chunk{
				ID:         "doc" + id + "-0",
				DocumentID: "doc" + id,
				Text:       "기사 본문 " + id,
			},
			Title:       "제목 " + id,
			Provider:    "yonhap",
			URL:         "https://example.com/" + id,
			PublishedAt: time.Date(2025, 6, 1+i, 0, 0, 0, 0, time.UTC),
		})
	}
	return rr
}

func TestResolve_ValidAndHallucinated(t *testing.T) {
	rr := retrieval("ref1", "ref2")
	text := "수출이 증가했다 [기사 ref1]. 다만 일부 전망은 다르다 [기사 ref9]."

	set := Resolve(text, rr)

	if len(set.Used) != 1 || set.Used[0].RefID != "ref1" {
		t.Errorf("used = %+v, want single ref1", set.Used)
	}
	if len(set.Hallucinated) != 1 || set.Hallucinated[0] != "ref9" {
		t.Errorf("hallucinated = %v, want [ref9]", set.Hallucinated)
	}
	if set.Used[0].DocumentID != "docref1" || set.Used[0].ChunkID != "docref1-0" {
		t.Errorf("citation binding wrong: %+v", set.Used[0])
	}
}

func TestResolve_NoMarkers(t *testing.T) {
	set := Resolve("마커 없는 일반 답변입니다.", retrieval("ref1"))

	if len(set.Used) != 0 || len(set.Hallucinated) != 0 {
		t.Errorf("expected empty set, got %+v", set)
	}
}

func TestResolve_DeduplicatesRepeatedMarkers(t *testing.T) {
	rr := retrieval("ref1")
	text := "먼저 [기사 ref1] 그리고 다시 [기사 ref1] 또 [기사 ref1]."

	set := Resolve(text, rr)

	if len(set.Used) != 1 {
		t.Errorf("repeated marker produced %d citations, want 1", len(set.Used))
	}
}

func TestResolve_KeepsFirstOccurrenceOrder(t *testing.T) {
	rr := retrieval("ref1", "ref2", "ref3")
	text := "[기사 ref3] 다음 [기사 ref1] 마지막 [기사 ref2]"

	set := Resolve(text, rr)

	want := []string{"ref3", "ref1", "ref2"}
	if len(set.Used) != len(want) {
		t.Fatalf("got %d citations, want %d", len(set.Used), len(want))
	}
	for i, c := range set.Used {
		if c.RefID != want[i] {
			t.Errorf("citation %d = %s, want %s", i, c.RefID, want[i])
		}
	}
}

func TestResolve_IgnoresMalformedMarkers(t *testing.T) {
	rr := retrieval("ref1")
	text := "[기사 1] [기사ref1] [ref1] [기사 refX] 진짜는 여기 [기사 ref1]"

	set := Resolve(text, rr)

	if len(set.Used) != 1 || set.Used[0].RefID != "ref1" {
		t.Errorf("used = %+v, want single ref1", set.Used)
	}
	if len(set.Hallucinated) != 0 {
		t.Errorf("malformed markers flagged as hallucinated: %v", set.Hallucinated)
	}
}

func TestResolve_ExcerptTruncated(t *testing.T) {
	rr := domain.RetrievalResult{
		Query: "질문",
		References: []domain.Reference{{
			RefID: "ref1",
			Chunk: domain.Chunk{ID: "a-0", DocumentID: "a", Text: strings.Repeat("가", 500)},
		}},
	}

	set := Resolve("[기사 ref1]", rr)

	if got := len([]rune(set.Used[0].Excerpt)); got > excerptRunes+1 {
		t.Errorf("excerpt length = %d runes, want <= %d", got, excerptRunes+1)
	}
}
