package httpapi

import (
	"fmt"
	"time"

	"github.com/ainova/newsrag/internal/domain"
	"github.com/ainova/newsrag/internal/generate"
)

// generateRequest is the wire form of a generation request, shared by the
// query, summarize, timeline, and report endpoints.
type generateRequest struct {
	Query   string          `json:"query"`
	Variant string          `json:"variant,omitempty"`
	K       int             `json:"k,omitempty"`
	Filters *filtersRequest `json:"filters,omitempty"`
	Options *optionsRequest `json:"options,omitempty"`
}

type filtersRequest struct {
	DateFrom   string   `json:"date_from,omitempty"`
	DateTo     string   `json:"date_to,omitempty"`
	Providers  []string `json:"providers,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

type optionsRequest struct {
	Stream bool `json:"stream,omitempty"`
}

func (r generateRequest) toDomain(task domain.TaskType) (generate.Request, error) {
	req := generate.Request{
		Task:  task,
		Query: r.Query,
		K:     r.K,
	}

	if task == domain.TaskSummarize {
		switch v := domain.SummaryVariant(r.Variant); v {
		case "", domain.SummaryIssue:
			req.Variant = domain.SummaryIssue
		case domain.SummaryQuote, domain.SummaryData:
			req.Variant = v
		default:
			return generate.Request{}, fmt.Errorf("variant must be one of issue, quote, data; got %q", r.Variant)
		}
	}

	if r.Filters != nil {
		f, err := r.Filters.toDomain()
		if err != nil {
			return generate.Request{}, err
		}
		req.Filters = f
	}
	return req, nil
}

func (f filtersRequest) toDomain() (domain.Filters, error) {
	out := domain.Filters{
		Providers:  f.Providers,
		Categories: f.Categories,
	}

	var err error
	if f.DateFrom != "" {
		if out.DateFrom, err = parseDate(f.DateFrom); err != nil {
			return domain.Filters{}, fmt.Errorf("date_from: %w", err)
		}
	}
	if f.DateTo != "" {
		if out.DateTo, err = parseDate(f.DateTo); err != nil {
			return domain.Filters{}, fmt.Errorf("date_to: %w", err)
		}
	}
	return out, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected RFC3339 or YYYY-MM-DD, got %q", s)
	}
	return t, nil
}

type upsertDocumentRequest struct {
	Title       string   `json:"title"`
	Text        string   `json:"text"`
	PublishedAt string   `json:"published_at,omitempty"`
	Provider    string   `json:"provider,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	URL         string   `json:"url,omitempty"`
}

func (r upsertDocumentRequest) toDomain(id string) (domain.Document, error) {
	doc := domain.Document{
		ID:         id,
		Title:      r.Title,
		Text:       r.Text,
		Provider:   r.Provider,
		Categories: r.Categories,
		URL:        r.URL,
	}
	if r.PublishedAt != "" {
		t, err := parseDate(r.PublishedAt)
		if err != nil {
			return domain.Document{}, fmt.Errorf("published_at: %w", err)
		}
		doc.PublishedAt = t
	}
	return doc, nil
}

type upsertDocumentResponse struct {
	ID     string `json:"id"`
	Chunks int    `json:"chunks"`
}

type generateResponse struct {
	Task         string             `json:"task"`
	Text         string             `json:"text"`
	Structured   *domain.Structured `json:"structured,omitempty"`
	Citations    citationsResponse  `json:"citations"`
	Model        string             `json:"model,omitempty"`
	GeneratedAt  time.Time          `json:"generated_at"`
	ArticleCount int                `json:"article_count"`
	Usage        usageResponse      `json:"usage"`
}

type citationsResponse struct {
	Used         []citationResponse `json:"used"`
	Hallucinated []string           `json:"hallucinated,omitempty"`
}

type citationResponse struct {
	RefID       string `json:"ref_id"`
	DocumentID  string `json:"document_id"`
	ChunkID     string `json:"chunk_id"`
	Title       string `json:"title,omitempty"`
	Provider    string `json:"provider,omitempty"`
	URL         string `json:"url,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
	Excerpt     string `json:"excerpt,omitempty"`
}

type usageResponse struct {
	PromptTokens int `json:"prompt_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func generationToWire(res domain.GenerationResult) generateResponse {
	out := generateResponse{
		Task:         string(res.Task),
		Text:         res.Text,
		Citations:    citationsToWire(res.Citations),
		Model:        res.Model,
		GeneratedAt:  res.GeneratedAt,
		ArticleCount: res.ArticleCount,
		Usage: usageResponse{
			PromptTokens: res.PromptTokens,
			OutputTokens: res.OutputTokens,
		},
	}
	if !structuredEmpty(res.Structured) {
		s := res.Structured
		out.Structured = &s
	}
	return out
}

func structuredEmpty(s domain.Structured) bool {
	return s.Title == "" &&
		len(s.KeyPoints) == 0 &&
		len(s.Keywords) == 0 &&
		len(s.Quotes) == 0 &&
		len(s.Figures) == 0 &&
		len(s.Timeline) == 0
}

func citationsToWire(set domain.CitationSet) citationsResponse {
	out := citationsResponse{
		Used:         make([]citationResponse, len(set.Used)),
		Hallucinated: set.Hallucinated,
	}
	for i, c := range set.Used {
		wire := citationResponse{
			RefID:      c.RefID,
			DocumentID: c.DocumentID,
			ChunkID:    c.ChunkID,
			Title:      c.Title,
			Provider:   c.Provider,
			URL:        c.URL,
			Excerpt:    c.Excerpt,
		}
		if !c.PublishedAt.IsZero() {
			wire.PublishedAt = c.PublishedAt.Format(time.RFC3339)
		}
		out.Used[i] = wire
	}
	return out
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
