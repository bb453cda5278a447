// Package generate orchestrates one generation request end to end: retrieve,
// build the prompt, call the LLM, resolve citations. Blocking and streaming
// modes share the same pipeline stages.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ainova/newsrag/internal/citation"
	"github.com/ainova/newsrag/internal/domain"
	"github.com/ainova/newsrag/internal/logger"
	"github.com/ainova/newsrag/internal/metrics"
	"github.com/ainova/newsrag/internal/prompt"
	"github.com/ainova/newsrag/internal/retriever"
)

// Request is one generation request.
type Request struct {
	Task    domain.TaskType
	Variant domain.SummaryVariant
	Query   string
	K       int
	Filters domain.Filters
}

// Orchestrator runs the RAG pipeline. One instance serves all requests;
// per-request state lives on the stack of Run or RunStream.
type Orchestrator struct {
	retriever *retriever.Retriever
	prompts   *prompt.Builder
	generator domain.Generator
	now       func() time.Time
}

// New creates an orchestrator.
func New(r *retriever.Retriever, b *prompt.Builder, g domain.Generator) *Orchestrator {
	return &Orchestrator{retriever: r, prompts: b, generator: g, now: time.Now}
}

// Run executes the pipeline in blocking mode and returns the full result.
func (o *Orchestrator) Run(ctx context.Context, req Request) (domain.GenerationResult, error) {
	start := o.now()
	if req.Task == "" {
		req.Task = DetectTask(req.Query)
	}

	rr, p, err := o.prepare(ctx, req)
	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(string(req.Task), "blocking", "error").Inc()
		return domain.GenerationResult{}, err
	}

	completion, err := o.generator.Complete(ctx, p)
	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(string(req.Task), "blocking", "error").Inc()
		return domain.GenerationResult{}, fmt.Errorf("generate: %w", err)
	}

	result := o.finalize(ctx, req, rr, completion)
	metrics.GenerationRequestsTotal.WithLabelValues(string(req.Task), "blocking", "ok").Inc()
	metrics.GenerationDuration.WithLabelValues(string(req.Task), "blocking").Observe(o.now().Sub(start).Seconds())
	return result, nil
}

// RunStream executes the pipeline in streaming mode. The returned channel
// delivers progress events, text deltas, and exactly one terminal event, then
// closes. Cancelling ctx stops the stream; no result event follows a
// cancellation.
func (o *Orchestrator) RunStream(ctx context.Context, req Request) <-chan domain.Event {
	events := make(chan domain.Event)
	go func() {
		defer close(events)
		o.stream(ctx, req, events)
	}()
	return events
}

func (o *Orchestrator) stream(ctx context.Context, req Request, events chan<- domain.Event) {
	start := o.now()
	if req.Task == "" {
		req.Task = DetectTask(req.Query)
	}

	fail := func(err error) {
		metrics.GenerationRequestsTotal.WithLabelValues(string(req.Task), "stream", "error").Inc()
		emit(ctx, events, domain.Event{
			Kind:    domain.EventError,
			Step:    string(domain.StateFailed),
			Message: err.Error(),
		})
	}

	if !emit(ctx, events, progressEvent(domain.StateRetrieving, 10)) {
		return
	}
	rr, err := o.retriever.Retrieve(ctx, req.Query, req.K, req.Filters)
	if err != nil {
		fail(err)
		return
	}

	if !emit(ctx, events, progressEvent(domain.StatePrompting, 30)) {
		return
	}
	p, err := o.prompts.Build(req.Task, req.Variant, rr)
	if err != nil {
		fail(err)
		return
	}

	if !emit(ctx, events, progressEvent(domain.StateGenerating, 40)) {
		return
	}
	stream, err := o.generator.Stream(ctx, p)
	if err != nil {
		fail(fmt.Errorf("open stream: %w", err))
		return
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fail(fmt.Errorf("%w: %v", domain.ErrStreamInterrupted, err))
			return
		}
		sb.WriteString(delta)
		if !emit(ctx, events, domain.Event{Kind: domain.EventChunk, Delta: delta}) {
			return
		}
	}

	result := o.finalize(ctx, req, rr, domain.Completion{Text: sb.String()})
	metrics.GenerationRequestsTotal.WithLabelValues(string(req.Task), "stream", "ok").Inc()
	metrics.GenerationDuration.WithLabelValues(string(req.Task), "stream").Observe(o.now().Sub(start).Seconds())
	emit(ctx, events, domain.Event{
		Kind:   domain.EventResult,
		Step:   string(domain.StateDone),
		Result: &result,
	})
}

// emit delivers the event unless the context is already cancelled. A false
// return means the consumer is gone and the pipeline must stop.
func emit(ctx context.Context, events chan<- domain.Event, e domain.Event) bool {
	select {
	case events <- e:
		return true
	case <-ctx.Done():
		return false
	}
}

func progressEvent(state domain.StreamState, percent int) domain.Event {
	return domain.Event{Kind: domain.EventProgress, Step: string(state), Percent: percent}
}

func (o *Orchestrator) prepare(ctx context.Context, req Request) (domain.RetrievalResult, domain.Prompt, error) {
	rr, err := o.retriever.Retrieve(ctx, req.Query, req.K, req.Filters)
	if err != nil {
		return domain.RetrievalResult{}, domain.Prompt{}, err
	}
	p, err := o.prompts.Build(req.Task, req.Variant, rr)
	if err != nil {
		return domain.RetrievalResult{}, domain.Prompt{}, err
	}
	return rr, p, nil
}

// finalize resolves citations and structured fields from the completed text.
func (o *Orchestrator) finalize(ctx context.Context, req Request, rr domain.RetrievalResult, c domain.Completion) domain.GenerationResult {
	citations := citation.Resolve(c.Text, rr)
	if n := len(citations.Hallucinated); n > 0 {
		metrics.HallucinatedCitationsTotal.Add(float64(n))
		logger.FromContext(ctx).Warn("hallucinated citations in generated text",
			zap.Strings("ref_ids", citations.Hallucinated),
			zap.String("task", string(req.Task)),
		)
	}

	text := c.Text
	structured := parseStructured(c.Text)
	if structured.Summary != "" {
		text = structured.Summary
	}

	docs := make(map[string]bool)
	for _, ref := range rr.References {
		docs[ref.Chunk.DocumentID] = true
	}

	return domain.GenerationResult{
		Task:         req.Task,
		Text:         text,
		Structured:   structured.Structured,
		Citations:    citations,
		Model:        c.Model,
		GeneratedAt:  o.now(),
		ArticleCount: len(docs),
		PromptTokens: c.PromptTokens,
		OutputTokens: c.OutputTokens,
	}
}

type structuredEnvelope struct {
	domain.Structured
	Summary string `json:"summary"`
}

// parseStructured extracts the JSON object from generated text. Parsing is
// tolerant: models wrap JSON in prose or code fences, so the slice between
// the first '{' and the last '}' is tried; on failure the result degrades to
// text-only.
func parseStructured(text string) structuredEnvelope {
	var env structuredEnvelope

	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first < 0 || last <= first {
		return structuredEnvelope{}
	}
	if err := json.Unmarshal([]byte(text[first:last+1]), &env); err != nil {
		return structuredEnvelope{}
	}
	return env
}
