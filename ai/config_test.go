package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/articlevec/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "ko-sroberta-multitask", cfg.EmbeddingModel)
	assert.Equal(t, 768, cfg.Dimension)
	assert.Equal(t, StrategyTFIDF, cfg.KeywordStrategy)
	assert.Equal(t, 10, cfg.TopK)
	require.NoError(t, cfg.Validate())
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("with options", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingHost("http://embed:8080/v1"),
			WithEmbeddingModel("text-embedding-3-small"),
			WithAPIKey("secret"),
			WithDimension(384),
			WithBatchSize(8),
			WithKeywordStrategy(StrategyFrequency),
			WithTopK(5),
		)

		assert.Equal(t, "http://embed:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
		assert.Equal(t, "secret", cfg.APIKey)
		assert.Equal(t, 384, cfg.Dimension)
		assert.Equal(t, 8, cfg.BatchSize)
		assert.Equal(t, StrategyFrequency, cfg.KeywordStrategy)
		assert.Equal(t, 5, cfg.TopK)
	})
}

func TestConfig_Normalize(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string
	}{
		{"already has suffix", "http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"missing suffix", "http://localhost:11434", "http://localhost:11434/v1"},
		{"trailing slash", "http://localhost:11434/", "http://localhost:11434/v1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig(WithEmbeddingHost(tt.host), WithAPIKey(""))
			cfg.Normalize()
			assert.Equal(t, tt.want, cfg.EmbeddingHost)
			assert.Equal(t, "none", cfg.APIKey)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opt     ConfigOption
		wantErr string
	}{
		{"empty host", WithEmbeddingHost(""), "EmbeddingHost"},
		{"empty model", WithEmbeddingModel(""), "EmbeddingModel"},
		{"zero dimension", WithDimension(0), "Dimension"},
		{"zero batch size", WithBatchSize(0), "BatchSize"},
		{"zero top k", WithTopK(0), "TopK"},
		{"unknown strategy", WithKeywordStrategy("bm25"), "unknown keyword strategy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewConfig(tt.opt).Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Version(t *testing.T) {
	cfg := NewConfig(WithKeywordStrategy(StrategyFrequency), WithEmbeddingModel("m"), WithDimension(4))
	assert.Equal(t, "frequency/m/4", cfg.Version())

	cfg.ModelVersion = "v2"
	assert.Equal(t, "v2", cfg.Version())
}

func TestUnavailable(t *testing.T) {
	ctx := context.Background()
	reason := errors.New("tfidf model missing")
	provider := Unavailable(reason)

	_, err := provider.Embedder().EmbedText(ctx, "경제")
	assert.ErrorIs(t, err, core.ErrServiceNotReady)
	assert.ErrorIs(t, err, reason)

	_, err = provider.Embedder().EmbedTexts(ctx, []string{"경제"})
	assert.ErrorIs(t, err, core.ErrServiceNotReady)

	_, err = provider.KeywordExtractor().ExtractKeywords(ctx, "경제", 10)
	assert.ErrorIs(t, err, core.ErrServiceNotReady)

	assert.Empty(t, provider.ModelVersion())
	assert.NoError(t, provider.Close())

	_, err = Unavailable(nil).Embedder().EmbedText(ctx, "x")
	assert.ErrorIs(t, err, core.ErrServiceNotReady)
}
