package domain

import "context"

// Embedder vectorizes a single text.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes multiple texts in one provider call. Vectors are
// returned in input order, one per text.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the vector, the identity of the model that produced
// it, and token usage.
type EmbeddingResult struct {
	Vector       []float32
	Model        string
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult carries vectors in input order plus aggregate usage.
type BatchEmbeddingResult struct {
	Vectors      [][]float32
	Model        string
	PromptTokens int
	TotalTokens  int
}
