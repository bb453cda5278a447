package sdk

import "time"

// QueryRequest is the request body of the generation endpoints.
type QueryRequest struct {
	Query   string   `json:"query"`
	Variant string   `json:"variant,omitempty"` // summarize only: issue, quote, data
	K       int      `json:"k,omitempty"`
	Filters *Filters `json:"filters,omitempty"`
}

// Filters restricts retrieval by article metadata.
type Filters struct {
	DateFrom   string   `json:"date_from,omitempty"` // RFC3339 or YYYY-MM-DD
	DateTo     string   `json:"date_to,omitempty"`
	Providers  []string `json:"providers,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// Document is the ingestion request body.
type Document struct {
	Title       string   `json:"title"`
	Text        string   `json:"text"`
	PublishedAt string   `json:"published_at,omitempty"`
	Provider    string   `json:"provider,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	URL         string   `json:"url,omitempty"`
}

// GenerateResult is the outcome of a generation request.
type GenerateResult struct {
	Task         string      `json:"task"`
	Text         string      `json:"text"`
	Structured   *Structured `json:"structured,omitempty"`
	Citations    Citations   `json:"citations"`
	Model        string      `json:"model,omitempty"`
	GeneratedAt  time.Time   `json:"generated_at"`
	ArticleCount int         `json:"article_count"`
	Usage        Usage       `json:"usage"`
}

// Structured holds optional structured fields parsed from the generation.
type Structured struct {
	Title     string          `json:"title,omitempty"`
	KeyPoints []string        `json:"key_points,omitempty"`
	Keywords  []string        `json:"keywords,omitempty"`
	Quotes    []Quote         `json:"key_quotes,omitempty"`
	Figures   []Figure        `json:"key_data,omitempty"`
	Timeline  []TimelineEntry `json:"timeline,omitempty"`
}

// Quote is a key statement attributed to a speaker.
type Quote struct {
	Source string `json:"source"`
	Quote  string `json:"quote"`
}

// Figure is a key numeric finding.
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

// Citations binds cited reference IDs to their sources.
type Citations struct {
	Used         []Citation `json:"used"`
	Hallucinated []string   `json:"hallucinated,omitempty"`
}

// Citation is one resolved source reference.
type Citation struct {
	RefID       string `json:"ref_id"`
	DocumentID  string `json:"document_id"`
	ChunkID     string `json:"chunk_id"`
	Title       string `json:"title,omitempty"`
	Provider    string `json:"provider,omitempty"`
	URL         string `json:"url,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
	Excerpt     string `json:"excerpt,omitempty"`
}

// Usage reports token consumption of one request.
type Usage struct {
	PromptTokens int `json:"prompt_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// HealthStatus is the /health response.
type HealthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Event is one element of a streaming generation.
type Event struct {
	Type     string          `json:"type"` // progress, chunk, result, error
	StreamID string          `json:"stream_id"`
	Step     string          `json:"step,omitempty"`
	Percent  int             `json:"percent,omitempty"`
	Delta    string          `json:"delta,omitempty"`
	Result   *GenerateResult `json:"result,omitempty"`
	Message  string          `json:"message,omitempty"`
}
