package vectorize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/articlevec/ai"
	"github.com/poiesic/articlevec/core"
	"github.com/poiesic/articlevec/nlp"
	"github.com/poiesic/articlevec/storage"
	"github.com/poiesic/articlevec/vector"
)

// Config holds configuration for vectorization.
type Config struct {
	// TopK is the maximum number of keywords embedded per article
	TopK int

	// MaxRetries is the maximum number of attempts for an embedding call
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// ReportInterval is how often to report progress (number of articles)
	ReportInterval int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		TopK:           10,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
		ReportInterval: 10,
	}
}

// TextVectors is the keyword-level representation of one text.
type TextVectors struct {
	Keywords       core.KeywordScores   `json:"keywords"`
	KeywordVectors map[string][]float32 `json:"keyword_vectors"`
	Representative []float32            `json:"representative_vector"`
}

// Vectorizer turns article summaries into stored ArticleVectors.
type Vectorizer struct {
	articles storage.ArticleRepository
	vectors  storage.ArticleVectorRepository
	provider ai.AIProvider
	config   *Config
	progress io.Writer
	logger   *slog.Logger
}

// Option configures a Vectorizer.
type Option func(*Vectorizer) error

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Vectorizer) error {
		if logger == nil {
			logger = slog.Default()
		}
		v.logger = logger
		return nil
	}
}

// WithProgress reports batch progress to w.
func WithProgress(w io.Writer) Option {
	return func(v *Vectorizer) error {
		v.progress = w
		return nil
	}
}

// NewVectorizer creates a Vectorizer. A nil config uses DefaultConfig.
func NewVectorizer(
	articles storage.ArticleRepository,
	vectors storage.ArticleVectorRepository,
	provider ai.AIProvider,
	config *Config,
	opts ...Option,
) (*Vectorizer, error) {
	if articles == nil {
		return nil, ErrArticleRepositoryRequired
	}
	if vectors == nil {
		return nil, ErrVectorRepositoryRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxRetries <= 0 {
		return nil, ErrInvalidMaxAttempts
	}
	if config.TopK <= 0 {
		return nil, core.Invalid(core.ErrInvalidTopK)
	}

	v := &Vectorizer{
		articles: articles,
		vectors:  vectors,
		provider: provider,
		config:   config,
		logger:   slog.Default().With("component", "vectorizer"),
	}
	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// VectorizeText extracts the keywords of text, embeds each of them and
// aggregates the embeddings weighted by keyword score. Nothing is stored.
// A text without keywords yields empty maps and the zero vector.
func (v *Vectorizer) VectorizeText(ctx context.Context, text string) (*TextVectors, error) {
	dim := v.provider.Embedder().Dimension()
	source := nlp.StripMarkup(text)

	scores, err := v.provider.KeywordExtractor().ExtractKeywords(ctx, source, v.config.TopK)
	if err != nil {
		return nil, fmt.Errorf("extract keywords: %w", err)
	}
	if len(scores) == 0 {
		return &TextVectors{
			Keywords:       core.KeywordScores{},
			KeywordVectors: map[string][]float32{},
			Representative: vector.Zero(dim),
		}, nil
	}

	keywords := scores.Keywords()
	embeddings, err := v.embed(ctx, keywords)
	if err != nil {
		return nil, err
	}

	keywordVectors := make(map[string][]float32, len(keywords))
	items := make([]vector.Weighted, len(keywords))
	for i, kw := range keywords {
		keywordVectors[kw] = embeddings[i]
		items[i] = vector.Weighted{Vector: embeddings[i], Weight: scores[i].Score}
	}

	return &TextVectors{
		Keywords:       scores,
		KeywordVectors: keywordVectors,
		Representative: vector.Aggregate(dim, items),
	}, nil
}

// embed calls the embedder with retries and checks the shape of the result.
func (v *Vectorizer) embed(ctx context.Context, texts []string) ([][]float32, error) {
	dim := v.provider.Embedder().Dimension()

	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = v.provider.Embedder().EmbedTexts(ctx, texts)
		return err
	}, v.config.MaxRetries, v.config.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("embed keywords: %w", err)
	}

	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding result mismatch. expected %d, received %d", len(texts), len(embeddings))
	}
	for i, e := range embeddings {
		if err := core.ValidateVector(e, dim); err != nil {
			return nil, fmt.Errorf("embedding of %q: %w", texts[i], err)
		}
	}
	return embeddings, nil
}

// VectorizeArticle vectorizes and stores one article. Without force, an
// article whose stored vector has the current model version and was built
// from the same summary is left alone and skipped is true.
func (v *Vectorizer) VectorizeArticle(ctx context.Context, id core.ID, force bool) (skipped bool, err error) {
	article, err := v.articles.GetArticle(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, fmt.Errorf("%w: %d", core.ErrArticleNotFound, id)
		}
		return false, err
	}

	source := nlp.StripMarkup(article.Summary)
	hash := core.ContentHash(source)
	version := v.provider.ModelVersion()

	if !force {
		existing, err := v.vectors.GetArticleVector(ctx, id)
		if err == nil && existing.ModelVersion == version && existing.SourceHash == hash {
			return true, nil
		}
	}

	tv, err := v.VectorizeText(ctx, source)
	if err != nil {
		return false, err
	}

	_, err = v.vectors.UpsertArticleVector(ctx, &core.ArticleVector{
		ArticleID:            id,
		KeywordScores:        tv.Keywords,
		KeywordVectors:       tv.KeywordVectors,
		RepresentativeVector: tv.Representative,
		ModelVersion:         version,
		SourceHash:           hash,
	})
	if err != nil {
		return false, err
	}
	return false, nil
}

// VectorizeBatch vectorizes articles one at a time. A failing id is
// recorded in the result and does not stop the batch. Duplicate ids are
// processed once. If ctx ends, the remaining ids are reported as failed and
// ctx.Err() is returned along with the partial result.
func (v *Vectorizer) VectorizeBatch(ctx context.Context, ids []core.ID, force bool) (*core.BatchResult, error) {
	if err := core.ValidateIDs(ids); err != nil {
		return nil, err
	}
	ids = dedupe(ids)

	result := &core.BatchResult{Failed: []core.ID{}}
	var tracker *ProgressTracker
	if v.progress != nil {
		tracker = NewProgressTracker(v.progress, len(ids), v.config.ReportInterval)
		tracker.Start()
		defer tracker.Finish()
	}

	v.logger.Info("vectorizing articles", "count", len(ids), "force", force)
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			for _, rest := range ids[i:] {
				result.Failed = append(result.Failed, rest)
				result.Errors = append(result.Errors, core.ItemError{ID: rest, Err: err})
			}
			v.logger.Warn("vectorization interrupted", "remaining", len(ids)-i, "err", err)
			return result, err
		}

		skipped, err := v.VectorizeArticle(ctx, id, force)
		switch {
		case err != nil:
			v.logger.Warn("failed to vectorize article", "article_id", id, "err", err)
			result.Failed = append(result.Failed, id)
			result.Errors = append(result.Errors, core.ItemError{ID: id, Err: err})
		case skipped:
			result.Processed++
			result.Skipped = append(result.Skipped, id)
		default:
			result.Processed++
		}

		if tracker != nil {
			tracker.Increment(1)
		}
	}

	v.logger.Info("vectorization finished",
		"processed", result.Processed, "skipped", len(result.Skipped), "failed", len(result.Failed))
	return result, nil
}

// Sweep vectorizes up to limit articles returned by ListMissing. The listed
// ids are always re-embedded.
func (v *Vectorizer) Sweep(ctx context.Context, limit int, force bool) (*core.BatchResult, error) {
	ids, err := v.vectors.ListMissing(ctx, limit, force)
	if err != nil {
		return nil, fmt.Errorf("list missing: %w", err)
	}
	if len(ids) == 0 {
		return &core.BatchResult{Failed: []core.ID{}}, nil
	}
	return v.VectorizeBatch(ctx, ids, true)
}

// Migrate re-vectorizes up to limit stored rows that were produced by a
// different model version or whose payload is in a legacy or unreadable shape.
func (v *Vectorizer) Migrate(ctx context.Context, limit int) (*core.BatchResult, error) {
	ids, err := v.vectors.ListStale(ctx, v.provider.ModelVersion(), limit)
	if err != nil {
		return nil, fmt.Errorf("list stale: %w", err)
	}
	if len(ids) == 0 {
		return &core.BatchResult{Failed: []core.ID{}}, nil
	}
	v.logger.Info("migrating stale article vectors", "count", len(ids), "model_version", v.provider.ModelVersion())
	return v.VectorizeBatch(ctx, ids, true)
}

func dedupe(ids []core.ID) []core.ID {
	seen := make(map[core.ID]struct{}, len(ids))
	out := make([]core.ID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
