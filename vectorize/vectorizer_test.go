package vectorize

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/poiesic/articlevec/ai/mock"
	"github.com/poiesic/articlevec/core"
	"github.com/poiesic/articlevec/nlp"
	"github.com/poiesic/articlevec/storage"
	badgerstore "github.com/poiesic/articlevec/storage/badger"
	"github.com/poiesic/articlevec/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDim = 8

type fixture struct {
	stores     *storage.Stores
	provider   *mock.MockProvider
	embedder   *mock.MockEmbedder
	vectorizer *Vectorizer
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	stores, err := badgerstore.NewMemoryStores(testDim)
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	embedder := mock.NewMockEmbedder(testDim)
	provider := mock.NewMockProviderWithServices(embedder, nlp.NewFrequencyExtractor(nlp.DefaultStopwords()))

	config := DefaultConfig()
	config.RetryDelay = time.Millisecond
	v, err := NewVectorizer(stores.Articles, stores.ArticleVectors, provider, config, opts...)
	require.NoError(t, err)

	return &fixture{stores: stores, provider: provider, embedder: embedder, vectorizer: v}
}

func (f *fixture) saveArticles(t *testing.T, articles ...*core.Article) {
	t.Helper()
	require.NoError(t, f.stores.Articles.SaveArticles(context.Background(), articles...))
}

func TestNewVectorizer_Validation(t *testing.T) {
	stores, err := badgerstore.NewMemoryStores(testDim)
	require.NoError(t, err)
	defer stores.Close()
	provider := mock.NewMockProvider(testDim)

	_, err = NewVectorizer(nil, stores.ArticleVectors, provider, nil)
	assert.ErrorIs(t, err, ErrArticleRepositoryRequired)

	_, err = NewVectorizer(stores.Articles, nil, provider, nil)
	assert.ErrorIs(t, err, ErrVectorRepositoryRequired)

	_, err = NewVectorizer(stores.Articles, stores.ArticleVectors, nil, nil)
	assert.ErrorIs(t, err, ErrProviderRequired)

	_, err = NewVectorizer(stores.Articles, stores.ArticleVectors, provider, &Config{TopK: 10})
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)

	_, err = NewVectorizer(stores.Articles, stores.ArticleVectors, provider, &Config{MaxRetries: 1})
	assert.ErrorIs(t, err, core.ErrInvalidTopK)

	v, err := NewVectorizer(stores.Articles, stores.ArticleVectors, provider, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), v.config)
}

func TestVectorizeText(t *testing.T) {
	f := newFixture(t)

	tv, err := f.vectorizer.VectorizeText(context.Background(), "경제 성장률이 둔화되고 있다")
	require.NoError(t, err)

	assert.NotEmpty(t, tv.Keywords)
	assert.LessOrEqual(t, len(tv.Keywords), 10)
	assert.Contains(t, tv.Keywords.Keywords(), "경제")
	assert.NotContains(t, tv.Keywords.Keywords(), "있다")
	assert.Len(t, tv.KeywordVectors, len(tv.Keywords))
	for _, kw := range tv.Keywords.Keywords() {
		assert.Equal(t, mock.Vector(kw, testDim), tv.KeywordVectors[kw])
	}

	require.Len(t, tv.Representative, testDim)
	assert.InDelta(t, 1.0, vector.Norm(tv.Representative), 1e-5)
	assert.Equal(t, 1, f.embedder.CallCount(), "keywords are embedded in one call")
}

func TestVectorizeText_Empty(t *testing.T) {
	f := newFixture(t)

	for _, text := range []string{"", "   ", "<p></p>", "있다"} {
		tv, err := f.vectorizer.VectorizeText(context.Background(), text)
		require.NoError(t, err, "text %q", text)
		assert.Empty(t, tv.Keywords)
		assert.NotNil(t, tv.Keywords)
		assert.Empty(t, tv.KeywordVectors)
		assert.NotNil(t, tv.KeywordVectors)
		assert.Equal(t, vector.Zero(testDim), tv.Representative)
	}
	assert.Equal(t, 0, f.embedder.CallCount())
}

func TestVectorizeText_StripsMarkup(t *testing.T) {
	f := newFixture(t)

	tv, err := f.vectorizer.VectorizeText(context.Background(), "<div class=\"lead\">반도체 수출 반도체</div>")
	require.NoError(t, err)
	assert.Equal(t, []string{"반도체", "수출"}, tv.Keywords.Keywords())
	assert.NotContains(t, f.embedder.Texts(), "class")
}

func TestVectorizeText_EmbeddingErrors(t *testing.T) {
	t.Run("wrong count", func(t *testing.T) {
		f := newFixture(t)
		f.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			return [][]float32{mock.Vector("x", testDim)}, nil
		}
		_, err := f.vectorizer.VectorizeText(context.Background(), "경제 성장률 둔화")
		assert.ErrorContains(t, err, "embedding result mismatch")
	})

	t.Run("wrong dimension", func(t *testing.T) {
		f := newFixture(t)
		f.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			out := make([][]float32, len(texts))
			for i := range texts {
				out[i] = []float32{1, 0}
			}
			return out, nil
		}
		_, err := f.vectorizer.VectorizeText(context.Background(), "경제 성장률")
		assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	})

	t.Run("not finite", func(t *testing.T) {
		f := newFixture(t)
		f.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			out := make([][]float32, len(texts))
			for i := range texts {
				out[i] = vector.Zero(testDim)
				out[i][0] = float32(math.NaN())
			}
			return out, nil
		}
		_, err := f.vectorizer.VectorizeText(context.Background(), "경제")
		assert.ErrorContains(t, err, "not finite")
	})
}

func TestVectorizeText_RetriesTransientErrors(t *testing.T) {
	f := newFixture(t)
	calls := 0
	f.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("connection reset")
		}
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.Vector(text, testDim)
		}
		return out, nil
	}

	tv, err := f.vectorizer.VectorizeText(context.Background(), "경제 성장률")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, tv.KeywordVectors, 2)
}

func TestVectorizeArticle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveArticles(t, &core.Article{ID: 1, Title: "성장률", Summary: "경제 성장률이 둔화되고 있다"})

	skipped, err := f.vectorizer.VectorizeArticle(ctx, 1, false)
	require.NoError(t, err)
	assert.False(t, skipped)

	stored, err := f.stores.ArticleVectors.GetArticleVector(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, mock.Version, stored.ModelVersion)
	assert.Equal(t, core.ContentHash("경제 성장률이 둔화되고 있다"), stored.SourceHash)
	assert.NotEmpty(t, stored.KeywordScores)
	assert.InDelta(t, 1.0, vector.Norm(stored.RepresentativeVector), 1e-5)

	t.Run("unchanged summary is skipped", func(t *testing.T) {
		f.embedder.Reset()
		skipped, err := f.vectorizer.VectorizeArticle(ctx, 1, false)
		require.NoError(t, err)
		assert.True(t, skipped)
		assert.Equal(t, 0, f.embedder.CallCount())
	})

	t.Run("force re-embeds", func(t *testing.T) {
		f.embedder.Reset()
		skipped, err := f.vectorizer.VectorizeArticle(ctx, 1, true)
		require.NoError(t, err)
		assert.False(t, skipped)
		assert.Equal(t, 1, f.embedder.CallCount())
	})

	t.Run("changed summary re-embeds", func(t *testing.T) {
		f.saveArticles(t, &core.Article{ID: 1, Summary: "물가 상승률 확대"})
		skipped, err := f.vectorizer.VectorizeArticle(ctx, 1, false)
		require.NoError(t, err)
		assert.False(t, skipped)

		stored, err := f.stores.ArticleVectors.GetArticleVector(ctx, 1)
		require.NoError(t, err)
		assert.Contains(t, stored.KeywordScores.Keywords(), "물가")
	})
}

func TestVectorizeArticle_EmptySummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveArticles(t, &core.Article{ID: 2, Title: "empty"})

	_, err := f.vectorizer.VectorizeArticle(ctx, 2, false)
	require.NoError(t, err)

	stored, err := f.stores.ArticleVectors.GetArticleVector(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, stored.KeywordScores)
	assert.Empty(t, stored.KeywordVectors)
	assert.Equal(t, vector.Zero(testDim), stored.RepresentativeVector)
	assert.Equal(t, 0, f.embedder.CallCount())
}

func TestVectorizeArticle_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.vectorizer.VectorizeArticle(context.Background(), 999, false)
	assert.ErrorIs(t, err, core.ErrArticleNotFound)
}

func TestVectorizeBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveArticles(t,
		&core.Article{ID: 1, Summary: "경제 성장률이 둔화되고 있다"},
		&core.Article{ID: 2, Summary: "반도체 수출이 늘었다"},
	)

	result, err := f.vectorizer.VectorizeBatch(ctx, []core.ID{1, 2, 999}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, []core.ID{999}, result.Failed)
	assert.Empty(t, result.Skipped)
	require.Len(t, result.Errors, 1)
	assert.ErrorIs(t, result.Errors[0], core.ErrArticleNotFound)

	count, err := f.stores.ArticleVectors.CountArticleVectors(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	t.Run("second run skips unchanged articles", func(t *testing.T) {
		result, err := f.vectorizer.VectorizeBatch(ctx, []core.ID{1, 2}, false)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Processed)
		assert.Equal(t, []core.ID{1, 2}, result.Skipped)
		assert.Empty(t, result.Failed)
	})

	t.Run("duplicates processed once", func(t *testing.T) {
		f.embedder.Reset()
		result, err := f.vectorizer.VectorizeBatch(ctx, []core.ID{1, 1, 2, 1}, true)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Processed)
		assert.Equal(t, 2, f.embedder.CallCount())
	})
}

func TestVectorizeBatch_InvalidIDs(t *testing.T) {
	f := newFixture(t)

	_, err := f.vectorizer.VectorizeBatch(context.Background(), nil, false)
	assert.ErrorIs(t, err, core.ErrNoIDs)

	_, err = f.vectorizer.VectorizeBatch(context.Background(), []core.ID{1, -2}, false)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestVectorizeBatch_ContextCanceled(t *testing.T) {
	f := newFixture(t)
	f.saveArticles(t,
		&core.Article{ID: 1, Summary: "경제"},
		&core.Article{ID: 2, Summary: "물가"},
		&core.Article{ID: 3, Summary: "환율"},
	)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	f.embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return [][]float32{mock.Vector(texts[0], testDim)}, nil
	}

	result, err := f.vectorizer.VectorizeBatch(ctx, []core.ID{1, 2, 3}, false)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, []core.ID{2, 3}, result.Failed)
}

func TestVectorizeBatch_Progress(t *testing.T) {
	var buf bytes.Buffer
	f := newFixture(t, WithProgress(&buf))
	f.saveArticles(t, &core.Article{ID: 1, Summary: "경제"}, &core.Article{ID: 2, Summary: "물가"})

	_, err := f.vectorizer.VectorizeBatch(context.Background(), []core.ID{1, 2}, false)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Vectorized: 2/2")
}

func TestSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	f.saveArticles(t,
		&core.Article{ID: 1, Summary: "경제", CreatedAt: now.Add(-2 * time.Hour)},
		&core.Article{ID: 2, Summary: "물가", CreatedAt: now.Add(-time.Hour)},
		&core.Article{ID: 3, Summary: "환율", CreatedAt: now},
	)
	_, err := f.vectorizer.VectorizeArticle(ctx, 1, false)
	require.NoError(t, err)

	result, err := f.vectorizer.Sweep(ctx, 10, false)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Empty(t, result.Failed)

	result, err = f.vectorizer.Sweep(ctx, 10, false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)

	_, err = f.vectorizer.Sweep(ctx, 0, false)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestMigrate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveArticles(t, &core.Article{ID: 1, Summary: "경제"}, &core.Article{ID: 2, Summary: "물가"})

	_, err := f.vectorizer.VectorizeArticle(ctx, 1, false)
	require.NoError(t, err)
	_, err = f.stores.ArticleVectors.UpsertArticleVector(ctx, &core.ArticleVector{
		ArticleID:            2,
		KeywordScores:        core.KeywordScores{},
		KeywordVectors:       map[string][]float32{},
		RepresentativeVector: vector.Zero(testDim),
		ModelVersion:         "legacy/v0",
	})
	require.NoError(t, err)

	result, err := f.vectorizer.Migrate(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)

	stored, err := f.stores.ArticleVectors.GetArticleVector(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, mock.Version, stored.ModelVersion)
	assert.Equal(t, []string{"물가"}, stored.KeywordScores.Keywords())

	result, err = f.vectorizer.Migrate(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
}
