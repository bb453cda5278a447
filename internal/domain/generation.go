package domain

import (
	"context"
	"time"
)

// TaskType selects the instruction template for a generation request.
type TaskType string

const (
	TaskAnswer    TaskType = "answer"
	TaskSummarize TaskType = "summarize"
	TaskTimeline  TaskType = "timeline"
	TaskReport    TaskType = "report"
)

// SummaryVariant refines TaskSummarize: issue-, quote-, or data-centric.
type SummaryVariant string

const (
	SummaryIssue SummaryVariant = "issue"
	SummaryQuote SummaryVariant = "quote"
	SummaryData  SummaryVariant = "data"
)

// Passage is one retrieved chunk as it appears in a prompt, tagged with the
// reference ID the model must cite.
type Passage struct {
	RefID       string
	Title       string
	Text        string
	Provider    string
	PublishedAt time.Time
}

// Prompt is the assembled instruction and context for one LLM call. Prompts
// are transient, built per request, never persisted.
type Prompt struct {
	Task     TaskType
	Variant  SummaryVariant
	System   string
	User     string
	Query    string
	Passages []Passage
}

// Completion is the raw outcome of a blocking LLM call.
type Completion struct {
	Text         string
	Model        string
	PromptTokens int
	OutputTokens int
}

// TokenStream delivers incremental text deltas from a streaming LLM call.
// Recv returns io.EOF after the final delta; any other error means the stream
// was interrupted. Close releases the underlying connection.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// Generator is the LLM provider contract.
type Generator interface {
	Complete(ctx context.Context, p Prompt) (Completion, error)
	Stream(ctx context.Context, p Prompt) (TokenStream, error)
}

// Citation binds a reference ID cited in generated text to its source chunk.
type Citation struct {
	RefID       string
	ChunkID     string
	DocumentID  string
	Title       string
	Provider    string
	URL         string
	PublishedAt time.Time
	Excerpt     string
}

// CitationSet is the outcome of citation resolution over generated text.
// Hallucinated lists marker IDs that do not exist in the originating
// retrieval result; they are flagged, never removed from the text.
type CitationSet struct {
	Used         []Citation
	Hallucinated []string
}

// ByRef maps used citations by reference ID.
func (c CitationSet) ByRef() map[string]Citation {
	m := make(map[string]Citation, len(c.Used))
	for _, cit := range c.Used {
		m[cit.RefID] = cit
	}
	return m
}

// Quote is a key statement attributed to a speaker (quote-centric summaries).
type Quote struct {
	Source string `json:"source"`
	Quote  string `json:"quote"`
}

// Figure is a key numeric finding (data-centric summaries).
type Figure struct {
	Metric  string `json:"metric"`
	Value   string `json:"value"`
	Context string `json:"context"`
}

// TimelineEntry is one dated event in a generated timeline.
type TimelineEntry struct {
	Date    string `json:"date"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// Structured holds the optional structured fields extracted from generated
// text. Parsing is tolerant: when extraction fails the result degrades to
// text-only and every field here stays empty.
type Structured struct {
	Title     string          `json:"title,omitempty"`
	KeyPoints []string        `json:"key_points,omitempty"`
	Keywords  []string        `json:"keywords,omitempty"`
	Quotes    []Quote         `json:"key_quotes,omitempty"`
	Figures   []Figure        `json:"key_data,omitempty"`
	Timeline  []TimelineEntry `json:"timeline,omitempty"`
}

// GenerationResult is the final outcome of one generation request. Created at
// the end of the request and returned to the caller; the core does not
// persist it.
type GenerationResult struct {
	Task         TaskType
	Text         string
	Structured   Structured
	Citations    CitationSet
	Model        string
	GeneratedAt  time.Time
	ArticleCount int
	PromptTokens int
	OutputTokens int
}
