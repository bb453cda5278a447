// Package openai adapts the OpenAI API to the domain embedding and
// generation contracts.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"

	"github.com/ainova/newsrag/internal/domain"
	"github.com/ainova/newsrag/internal/metrics"
)

// EmbedderConfig holds embedding client settings.
type EmbedderConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	MaxRetries int
	RetryBase  time.Duration
}

// Embedder vectorizes text via the OpenAI embeddings API. Transient failures
// (429, 5xx, network) are retried with exponential backoff.
type Embedder struct {
	client *openai.Client
	cfg    EmbedderConfig
}

var (
	_ domain.Embedder      = (*Embedder)(nil)
	_ domain.BatchEmbedder = (*Embedder)(nil)
	_ domain.HealthChecker = (*Embedder)(nil)
)

// NewEmbedder creates an embedder.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 200 * time.Millisecond
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Embedder{client: openai.NewClientWithConfig(clientCfg), cfg: cfg}, nil
}

// Model returns the configured model name.
func (e *Embedder) Model() string {
	return e.cfg.Model
}

// Embed vectorizes a single text.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	batch, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Vector:       batch.Vectors[0],
		Model:        batch.Model,
		PromptTokens: batch.PromptTokens,
		TotalTokens:  batch.TotalTokens,
	}, nil
}

// BatchEmbed vectorizes texts in one API call. Vectors come back in input
// order, one per text.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("%w: no texts to embed", domain.ErrInvalidDocument)
	}

	start := time.Now()
	var resp openai.EmbeddingResponse

	op := func() error {
		var err error
		resp, err = e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input:      texts,
			Model:      openai.EmbeddingModel(e.cfg.Model),
			Dimensions: e.cfg.Dimensions,
		})
		if err != nil && !isTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.cfg.RetryBase
	err := backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(e.cfg.MaxRetries)), ctx))
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.cfg.Model, "error").Inc()
		return domain.BatchEmbeddingResult{}, wrapEmbedErr(err)
	}

	if len(resp.Data) != len(texts) {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.cfg.Model, "error").Inc()
		return domain.BatchEmbeddingResult{}, fmt.Errorf("%w: got %d embeddings for %d texts",
			domain.ErrEmbeddingUnavailable, len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		vectors[d.Index] = d.Embedding
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.cfg.Model, "ok").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.cfg.Model).Observe(time.Since(start).Seconds())
	metrics.EmbeddingTokensTotal.WithLabelValues(e.cfg.Model, "prompt").Add(float64(resp.Usage.PromptTokens))

	return domain.BatchEmbeddingResult{
		Vectors:      vectors,
		Model:        e.cfg.Model,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck embeds a short probe text to verify provider availability.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	_, err := e.Embed(ctx, "ping")
	return err
}

func wrapEmbedErr(err error) error {
	if isRateLimited(err) {
		return fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
}

func isRateLimited(err error) bool {
	var apiErr *openai.APIError
	return errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 429
}

// isTransient reports whether the call is worth retrying: rate limits, server
// errors, and network failures.
func isTransient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
