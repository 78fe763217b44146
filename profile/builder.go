package profile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/articlevec/ai"
	"github.com/poiesic/articlevec/core"
	"github.com/poiesic/articlevec/nlp"
	"github.com/poiesic/articlevec/storage"
	"github.com/poiesic/articlevec/vector"
)

// Builder aggregates interactions into a profile vector.
type Builder struct {
	vectors  storage.ArticleVectorRepository
	provider ai.AIProvider
	weights  ActionWeights
	logger   *slog.Logger
}

// NewBuilder creates a Builder. Nil weights mean DefaultActionWeights and a
// nil logger means slog.Default().
func NewBuilder(vectors storage.ArticleVectorRepository, provider ai.AIProvider, weights ActionWeights, logger *slog.Logger) (*Builder, error) {
	if vectors == nil {
		return nil, ErrVectorRepositoryRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}
	if weights == nil {
		weights = DefaultActionWeights()
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		vectors:  vectors,
		provider: provider,
		weights:  weights,
		logger:   logger.With("component", "profile-builder"),
	}, nil
}

// resolution is one weighted interaction waiting for its vector.
type resolution struct {
	index   int
	weight  float64
	keyword string
	article core.ID
}

// BuildProfile resolves every interaction to a vector and aggregates them
// weighted by action. ok is false when nothing resolved to a usable vector;
// that is not an error. Errors are reserved for failures of the embedder or
// the store.
//
// Keyword interactions are embedded together in one call and article
// interactions are fetched together in one read.
func (b *Builder) BuildProfile(ctx context.Context, interactions []core.Interaction) (vec []float32, ok bool, err error) {
	dim := b.provider.Embedder().Dimension()

	pending := make([]resolution, 0, len(interactions))
	var keywords []string
	var articleIDs []core.ID
	for i, in := range interactions {
		weight := b.weights.Weight(in.Action)
		if weight <= 0 {
			b.logger.Debug("skipping interaction with unweighted action", "index", i, "action", in.Action)
			continue
		}
		r := resolution{index: i, weight: weight}
		switch {
		case in.Keyword != "":
			r.keyword = nlp.Normalize(in.Keyword)
			if r.keyword == "" {
				b.logger.Debug("skipping blank keyword interaction", "index", i)
				continue
			}
			keywords = append(keywords, r.keyword)
		case in.ArticleID > 0:
			r.article = in.ArticleID
			articleIDs = append(articleIDs, in.ArticleID)
		default:
			continue
		}
		pending = append(pending, r)
	}
	if len(pending) == 0 {
		return nil, false, nil
	}

	embedded := make(map[string][]float32, len(keywords))
	if len(keywords) > 0 {
		embeddings, err := b.provider.Embedder().EmbedTexts(ctx, keywords)
		if err != nil {
			return nil, false, fmt.Errorf("embed interaction keywords: %w", err)
		}
		if len(embeddings) != len(keywords) {
			return nil, false, fmt.Errorf("embedding result mismatch. expected %d, received %d", len(keywords), len(embeddings))
		}
		for i, kw := range keywords {
			embedded[kw] = embeddings[i]
		}
	}

	var stored map[core.ID]*core.ArticleVector
	if len(articleIDs) > 0 {
		stored, err = b.vectors.GetArticleVectors(ctx, articleIDs...)
		if err != nil {
			return nil, false, fmt.Errorf("load article vectors: %w", err)
		}
	}

	items := make([]vector.Weighted, 0, len(pending))
	for _, r := range pending {
		var v []float32
		if r.keyword != "" {
			v = embedded[r.keyword]
		} else if av, found := stored[r.article]; found {
			v = av.RepresentativeVector
		}

		switch {
		case v == nil:
			b.logger.Warn("interaction did not resolve to a vector", "index", r.index, "article_id", r.article)
			continue
		case len(v) != dim:
			b.logger.Warn("interaction vector has wrong dimension", "index", r.index, "expected", dim, "got", len(v))
			continue
		case vector.IsZero(v):
			b.logger.Debug("interaction resolved to the zero vector", "index", r.index)
			continue
		}
		items = append(items, vector.Weighted{Vector: v, Weight: r.weight})
	}
	if len(items) == 0 {
		return nil, false, nil
	}

	vec = vector.Aggregate(dim, items)
	if vector.IsZero(vec) {
		b.logger.Warn("interaction vectors cancelled out", "count", len(items))
		return nil, false, nil
	}
	return vec, true, nil
}
