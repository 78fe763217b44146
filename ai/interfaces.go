package ai

import (
	"context"

	"github.com/poiesic/articlevec/core"
)

// Embedder turns text into fixed-dimension vectors.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// An empty input returns an empty result, not an error.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the length of every vector this embedder produces.
	Dimension() int
}

// KeywordExtractor pulls the most important terms out of a text.
type KeywordExtractor interface {
	// ExtractKeywords returns at most topK keywords ordered by descending
	// score, ties in encounter order. Empty or all-stopword text yields an
	// empty result. topK <= 0 is rejected with core.ErrInvalidTopK.
	ExtractKeywords(ctx context.Context, text string, topK int) (core.KeywordScores, error)
}

// AIProvider bundles the model-backed capabilities of the service.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// KeywordExtractor returns the keyword extraction service.
	// The returned KeywordExtractor is safe for concurrent use.
	KeywordExtractor() KeywordExtractor

	// ModelVersion identifies the extraction and embedding configuration.
	// It is stored with every vector to detect stale rows.
	ModelVersion() string

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
