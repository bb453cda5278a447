package domain

import "errors"

var (
	// ErrInvalidDocument signals an empty or otherwise unusable document.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrEmptyQuery signals an empty query string.
	ErrEmptyQuery = errors.New("empty query")
	// ErrInvalidFilter signals an unparseable or contradictory filter.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrModelMismatch signals a vector whose model identity or dimension
	// does not match what the index was created with.
	ErrModelMismatch = errors.New("embedding model mismatch")

	// ErrEmbeddingUnavailable signals an embedding provider failure after
	// the retry budget is exhausted.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	// ErrGenerationUnavailable signals an LLM provider failure.
	ErrGenerationUnavailable = errors.New("generation provider unavailable")
	// ErrStreamInterrupted signals a provider disconnect mid-stream.
	ErrStreamInterrupted = errors.New("generation stream interrupted")
	// ErrRateLimited signals a rate limit hit at a provider.
	ErrRateLimited = errors.New("rate limited")
)
