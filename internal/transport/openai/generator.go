package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ainova/newsrag/internal/domain"
)

// GeneratorConfig holds chat completion client settings.
type GeneratorConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	// RequestTimeout bounds a whole completion, including the full
	// streamed response. Zero means no bound.
	RequestTimeout time.Duration
}

// Generator runs chat completions against the OpenAI API in blocking and
// streaming modes.
type Generator struct {
	client *openai.Client
	cfg    GeneratorConfig
}

var _ domain.Generator = (*Generator)(nil)

// NewGenerator creates a generator.
func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Generator{client: openai.NewClientWithConfig(clientCfg), cfg: cfg}, nil
}

func (g *Generator) request(p domain.Prompt) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: p.User},
		},
	}
}

func (g *Generator) deadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.cfg.RequestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.cfg.RequestTimeout)
}

// Complete runs a blocking chat completion.
func (g *Generator) Complete(ctx context.Context, p domain.Prompt) (domain.Completion, error) {
	ctx, cancel := g.deadline(ctx)
	defer cancel()

	resp, err := g.client.CreateChatCompletion(ctx, g.request(p))
	if err != nil {
		return domain.Completion{}, wrapGenerateErr(err)
	}
	if len(resp.Choices) == 0 {
		return domain.Completion{}, fmt.Errorf("%w: empty response", domain.ErrGenerationUnavailable)
	}

	return domain.Completion{
		Text:         resp.Choices[0].Message.Content,
		Model:        resp.Model,
		PromptTokens: resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// Stream opens a streaming chat completion.
func (g *Generator) Stream(ctx context.Context, p domain.Prompt) (domain.TokenStream, error) {
	req := g.request(p)
	req.Stream = true

	ctx, cancel := g.deadline(ctx)
	stream, err := g.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		cancel()
		return nil, wrapGenerateErr(err)
	}
	return &tokenStream{stream: stream, cancel: cancel}, nil
}

// tokenStream adapts the SDK stream to domain.TokenStream.
type tokenStream struct {
	stream *openai.ChatCompletionStream
	cancel context.CancelFunc
}

// Recv returns the next non-empty text delta, io.EOF at normal end, and
// ErrStreamInterrupted on transport failure.
func (t *tokenStream) Recv() (string, error) {
	for {
		resp, err := t.stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrStreamInterrupted, err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
}

func (t *tokenStream) Close() error {
	t.cancel()
	return t.stream.Close()
}

func wrapGenerateErr(err error) error {
	if isRateLimited(err) {
		return fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrGenerationUnavailable, err)
}
