package generate

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ainova/newsrag/internal/domain"
	"github.com/ainova/newsrag/internal/index"
	"github.com/ainova/newsrag/internal/prompt"
	"github.com/ainova/newsrag/internal/retriever"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Vector: []float32{1, 0}, Model: "text-embedding-3-small"}, nil
}

type fakeIndex struct {
	cands []index.Candidate
}

func (f *fakeIndex) Upsert(context.Context, index.Record) error { return nil }
func (f *fakeIndex) Delete(context.Context, string) error      { return nil }
func (f *fakeIndex) Query(_ context.Context, _ []float32, k int, _ domain.Filters) ([]index.Candidate, error) {
	if len(f.cands) > k {
		return f.cands[:k], nil
	}
	return f.cands, nil
}

type fakeStream struct {
	deltas []string
	err    error // returned after deltas are exhausted instead of io.EOF
	pos    int
	closed bool
}

func (s *fakeStream) Recv() (string, error) {
	if s.pos >= len(s.deltas) {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	d := s.deltas[s.pos]
	s.pos++
	return d, nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type fakeGenerator struct {
	completion  domain.Completion
	completeErr error
	stream      *fakeStream
	streamErr   error
}

func (g *fakeGenerator) Complete(_ context.Context, _ domain.Prompt) (domain.Completion, error) {
	if g.completeErr != nil {
		return domain.Completion{}, g.completeErr
	}
	return g.completion, nil
}

func (g *fakeGenerator) Stream(_ context.Context, _ domain.Prompt) (domain.TokenStream, error) {
	if g.streamErr != nil {
		return nil, g.streamErr
	}
	return g.stream, nil
}

func newOrchestrator(t *testing.T, gen domain.Generator) *Orchestrator {
	t.Helper()
	ix := &fakeIndex{cands: []index.Candidate{
		{
			Record: index.Record{
				Chunk:       domain.Chunk{ID: "news1-0", DocumentID: "news1", Text: "반도체 수출 증가 기사 본문"},
				Title:       "반도체 수출 증가",
				Provider:    "yonhap",
				PublishedAt: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
			},
			Score: 0.9,
		},
		{
			Record: index.Record{
				Chunk:       domain.Chunk{ID: "news2-0", DocumentID: "news2", Text: "메모리 가격 반등 기사 본문"},
				Title:       "메모리 가격 반등",
				Provider:    "chosun",
				PublishedAt: time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC),
			},
			Score: 0.8,
		},
	}}
	r := retriever.New(fakeEmbedder{}, ix, retriever.Config{K: 5})
	return New(r, prompt.New(prompt.Config{}), gen)
}

func TestRun_Blocking(t *testing.T) {
	gen := &fakeGenerator{completion: domain.Completion{
		Text:         "수출이 증가했다 [기사 ref1]. 가격도 반등했다 [기사 ref2].",
		Model:        "gpt-4o-mini",
		PromptTokens: 200,
		OutputTokens: 40,
	}}
	o := newOrchestrator(t, gen)

	result, err := o.Run(context.Background(), Request{Task: domain.TaskAnswer, Query: "반도체 동향"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Citations.Used) != 2 {
		t.Errorf("used citations = %d, want 2", len(result.Citations.Used))
	}
	if len(result.Citations.Hallucinated) != 0 {
		t.Errorf("hallucinated = %v, want none", result.Citations.Hallucinated)
	}
	if result.ArticleCount != 2 {
		t.Errorf("article count = %d, want 2", result.ArticleCount)
	}
	if result.Model != "gpt-4o-mini" || result.OutputTokens != 40 {
		t.Errorf("usage not carried: %+v", result)
	}
}

func TestRun_EmptyQuery(t *testing.T) {
	o := newOrchestrator(t, &fakeGenerator{})

	_, err := o.Run(context.Background(), Request{Task: domain.TaskAnswer, Query: "  "})
	if !errors.Is(err, domain.ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestRun_StructuredParsing(t *testing.T) {
	gen := &fakeGenerator{completion: domain.Completion{
		Text: "```json\n{\"title\": \"이슈 요약\", \"summary\": \"핵심 요약 본문 [기사 ref1]\", \"key_points\": [\"포인트1\", \"포인트2\"]}\n```",
	}}
	o := newOrchestrator(t, gen)

	result, err := o.Run(context.Background(), Request{
		Task:    domain.TaskSummarize,
		Variant: domain.SummaryIssue,
		Query:   "반도체 이슈",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Structured.Title != "이슈 요약" {
		t.Errorf("structured title = %q", result.Structured.Title)
	}
	if len(result.Structured.KeyPoints) != 2 {
		t.Errorf("key points = %v", result.Structured.KeyPoints)
	}
	if result.Text != "핵심 요약 본문 [기사 ref1]" {
		t.Errorf("text not replaced by parsed summary: %q", result.Text)
	}
	if len(result.Citations.Used) != 1 {
		t.Errorf("citations = %+v", result.Citations)
	}
}

func TestRun_MalformedJSONDegradesToText(t *testing.T) {
	raw := "{\"title\": broken json"
	o := newOrchestrator(t, &fakeGenerator{completion: domain.Completion{Text: raw}})

	result, err := o.Run(context.Background(), Request{
		Task:    domain.TaskSummarize,
		Variant: domain.SummaryIssue,
		Query:   "주제",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != raw {
		t.Errorf("text = %q, want raw output", result.Text)
	}
	if result.Structured.Title != "" || len(result.Structured.KeyPoints) != 0 {
		t.Errorf("structured fields should stay empty: %+v", result.Structured)
	}
}

func TestRunStream_EventSequence(t *testing.T) {
	stream := &fakeStream{deltas: []string{"수출이 ", "증가했다 ", "[기사 ref1]"}}
	o := newOrchestrator(t, &fakeGenerator{stream: stream})

	var events []domain.Event
	for e := range o.RunStream(context.Background(), Request{Task: domain.TaskAnswer, Query: "반도체"}) {
		events = append(events, e)
	}

	var progress, chunks, terminals int
	var text string
	for i, e := range events {
		switch e.Kind {
		case domain.EventProgress:
			progress++
		case domain.EventChunk:
			chunks++
			text += e.Delta
		case domain.EventResult, domain.EventError:
			terminals++
			if i != len(events)-1 {
				t.Error("terminal event is not last")
			}
		}
	}

	if progress != 3 {
		t.Errorf("progress events = %d, want 3", progress)
	}
	if chunks != 3 || text != "수출이 증가했다 [기사 ref1]" {
		t.Errorf("chunks = %d, text = %q", chunks, text)
	}
	if terminals != 1 {
		t.Fatalf("terminal events = %d, want exactly 1", terminals)
	}

	final := events[len(events)-1]
	if final.Kind != domain.EventResult || final.Result == nil {
		t.Fatalf("final event = %+v, want result", final)
	}
	if len(final.Result.Citations.Used) != 1 {
		t.Errorf("result citations = %+v", final.Result.Citations)
	}
	if !stream.closed {
		t.Error("token stream not closed")
	}
}

func TestRunStream_ProviderErrorMidStream(t *testing.T) {
	stream := &fakeStream{deltas: []string{"일부 "}, err: errors.New("connection reset")}
	o := newOrchestrator(t, &fakeGenerator{stream: stream})

	var events []domain.Event
	for e := range o.RunStream(context.Background(), Request{Task: domain.TaskAnswer, Query: "반도체"}) {
		events = append(events, e)
	}

	final := events[len(events)-1]
	if final.Kind != domain.EventError {
		t.Fatalf("final event = %+v, want error", final)
	}
	for _, e := range events {
		if e.Kind == domain.EventResult {
			t.Error("result event emitted after stream failure")
		}
	}
	if !stream.closed {
		t.Error("token stream not closed after failure")
	}
}

func TestRunStream_RetrievalFailure(t *testing.T) {
	o := newOrchestrator(t, &fakeGenerator{})

	var events []domain.Event
	for e := range o.RunStream(context.Background(), Request{Task: domain.TaskAnswer, Query: ""}) {
		events = append(events, e)
	}

	if len(events) == 0 {
		t.Fatal("no events emitted")
	}
	final := events[len(events)-1]
	if final.Kind != domain.EventError || final.Message == "" {
		t.Fatalf("final event = %+v, want error with message", final)
	}
}

func TestRunStream_Cancellation(t *testing.T) {
	// A stream that never ends on its own.
	stream := &fakeStream{deltas: make([]string, 10000)}
	for i := range stream.deltas {
		stream.deltas[i] = "토큰 "
	}
	o := newOrchestrator(t, &fakeGenerator{stream: stream})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := o.RunStream(ctx, Request{Task: domain.TaskAnswer, Query: "반도체"})

	received := 0
	for e := range events {
		received++
		if received == 5 {
			cancel()
		}
		if e.Kind == domain.EventResult {
			t.Error("result event emitted after cancellation")
		}
	}
	if received == 0 {
		t.Error("no events before cancellation")
	}
}

func TestRunStream_OpenStreamFailure(t *testing.T) {
	o := newOrchestrator(t, &fakeGenerator{streamErr: domain.ErrGenerationUnavailable})

	var final domain.Event
	for e := range o.RunStream(context.Background(), Request{Task: domain.TaskAnswer, Query: "반도체"}) {
		final = e
	}
	if final.Kind != domain.EventError {
		t.Fatalf("final event = %+v, want error", final)
	}
}
