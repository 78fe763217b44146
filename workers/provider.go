package workers

import (
	"context"

	"github.com/poiesic/articlevec/ai"
	"github.com/poiesic/articlevec/core"
)

// PooledProvider runs every embedding and keyword extraction call of the
// wrapped provider on a Pool.
type PooledProvider struct {
	provider  ai.AIProvider
	embedder  *pooledEmbedder
	extractor *pooledExtractor
}

var _ ai.AIProvider = (*PooledProvider)(nil)

// NewPooledProvider wraps provider. The pool is owned by the caller.
func NewPooledProvider(provider ai.AIProvider, pool *Pool) *PooledProvider {
	return &PooledProvider{
		provider:  provider,
		embedder:  &pooledEmbedder{embedder: provider.Embedder(), pool: pool},
		extractor: &pooledExtractor{extractor: provider.KeywordExtractor(), pool: pool},
	}
}

func (p *PooledProvider) Embedder() ai.Embedder {
	return p.embedder
}

func (p *PooledProvider) KeywordExtractor() ai.KeywordExtractor {
	return p.extractor
}

func (p *PooledProvider) ModelVersion() string {
	return p.provider.ModelVersion()
}

// Close closes the wrapped provider.
func (p *PooledProvider) Close() error {
	return p.provider.Close()
}

type pooledEmbedder struct {
	embedder ai.Embedder
	pool     *Pool
}

func (e *pooledEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := e.pool.Do(ctx, func() error {
		var err error
		vec, err = e.embedder.EmbedText(ctx, text)
		return err
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

func (e *pooledEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	var vecs [][]float32
	err := e.pool.Do(ctx, func() error {
		var err error
		vecs, err = e.embedder.EmbedTexts(ctx, texts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return vecs, nil
}

func (e *pooledEmbedder) Dimension() int {
	return e.embedder.Dimension()
}

type pooledExtractor struct {
	extractor ai.KeywordExtractor
	pool      *Pool
}

func (x *pooledExtractor) ExtractKeywords(ctx context.Context, text string, topK int) (core.KeywordScores, error) {
	var scores core.KeywordScores
	err := x.pool.Do(ctx, func() error {
		var err error
		scores, err = x.extractor.ExtractKeywords(ctx, text, topK)
		return err
	})
	if err != nil {
		return nil, err
	}
	return scores, nil
}
