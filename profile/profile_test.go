package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/articlevec/ai/mock"
	"github.com/poiesic/articlevec/core"
	"github.com/poiesic/articlevec/storage"
	"github.com/poiesic/articlevec/storage/badger"
	"github.com/poiesic/articlevec/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dim = 3

type fixture struct {
	stores      *storage.Stores
	provider    *mock.MockProvider
	recommender *Recommender
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	stores, err := badger.NewMemoryStores(dim)
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	provider := mock.NewMockProvider(dim)
	r, err := NewRecommender(stores.UserVectors, stores.ArticleVectors, provider, opts...)
	require.NoError(t, err)
	return &fixture{stores: stores, provider: provider, recommender: r}
}

func (f *fixture) storeVector(t *testing.T, id core.ID, vec []float32) {
	t.Helper()
	_, err := f.stores.ArticleVectors.UpsertArticleVector(context.Background(), &core.ArticleVector{
		ArticleID:            id,
		KeywordScores:        core.KeywordScores{},
		KeywordVectors:       map[string][]float32{},
		RepresentativeVector: vec,
		ModelVersion:         mock.Version,
	})
	require.NoError(t, err)
}

func TestDefaultActionWeights(t *testing.T) {
	w := DefaultActionWeights()
	assert.Equal(t, 1.5, w.Weight(core.ActionScrap))
	assert.Equal(t, 1.0, w.Weight(core.ActionClick))
	assert.Equal(t, 0.8, w.Weight(core.ActionSearch))
	assert.Equal(t, 0.0, w.Weight("share"))
	assert.NoError(t, w.Validate())
	assert.Error(t, ActionWeights{core.ActionClick: -1}.Validate())
}

func TestNewRecommender(t *testing.T) {
	stores, err := badger.NewMemoryStores(dim)
	require.NoError(t, err)
	defer stores.Close()
	provider := mock.NewMockProvider(dim)

	_, err = NewRecommender(nil, stores.ArticleVectors, provider)
	assert.Equal(t, ErrUserRepositoryRequired, err)

	_, err = NewRecommender(stores.UserVectors, nil, provider)
	assert.Equal(t, ErrVectorRepositoryRequired, err)

	_, err = NewRecommender(stores.UserVectors, stores.ArticleVectors, nil)
	assert.Equal(t, ErrProviderRequired, err)

	_, err = NewRecommender(stores.UserVectors, stores.ArticleVectors, provider, WithFeedThreshold(1.5))
	assert.ErrorIs(t, err, core.ErrInvalidThreshold)

	_, err = NewRecommender(stores.UserVectors, stores.ArticleVectors, provider,
		WithActionWeights(ActionWeights{core.ActionScrap: -2}))
	assert.Error(t, err)

	r, err := NewRecommender(stores.UserVectors, stores.ArticleVectors, provider, WithLogger(nil))
	require.NoError(t, err)
	assert.NotNil(t, r.Builder())
}

func TestBuildProfile_ScrapOutweighsClick(t *testing.T) {
	f := newFixture(t)
	f.storeVector(t, 1, []float32{1, 0, 0})
	f.storeVector(t, 2, []float32{0, 1, 0})

	vec, ok, err := f.recommender.Builder().BuildProfile(context.Background(), []core.Interaction{
		{Action: core.ActionScrap, ArticleID: 1},
		{Action: core.ActionClick, ArticleID: 2},
	})
	require.NoError(t, err)
	require.True(t, ok)

	assert.InDelta(t, 1.0, vector.Norm(vec), 1e-6)
	toFirst := vector.Cosine(vec, []float32{1, 0, 0})
	toSecond := vector.Cosine(vec, []float32{0, 1, 0})
	assert.Greater(t, toFirst, toSecond)
	// 0.6 and 0.4 after weight normalization
	assert.InDelta(t, 0.6/0.4, toFirst/toSecond, 1e-5)
}

func TestBuildProfile_KeywordsEmbeddedInOneCall(t *testing.T) {
	f := newFixture(t)
	f.storeVector(t, 1, []float32{0, 0, 1})
	embedder := f.provider.GetMockEmbedder()

	vec, ok, err := f.recommender.Builder().BuildProfile(context.Background(), []core.Interaction{
		{Action: core.ActionSearch, Keyword: " 반도체! "},
		{Action: core.ActionSearch, Keyword: "환율"},
		{Action: core.ActionClick, ArticleID: 1},
	})
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, vec, dim)
	assert.Equal(t, 1, embedder.CallCount())
	assert.Equal(t, []string{"반도체", "환율"}, embedder.Texts())
}

func TestBuildProfile_SkipsUnusableInteractions(t *testing.T) {
	f := newFixture(t)
	f.storeVector(t, 1, []float32{1, 0, 0})
	f.storeVector(t, 2, []float32{0, 0, 0})
	builder := f.recommender.Builder()
	ctx := context.Background()

	t.Run("only the resolvable one counts", func(t *testing.T) {
		vec, ok, err := builder.BuildProfile(ctx, []core.Interaction{
			{Action: core.ActionScrap, ArticleID: 1},
			{Action: core.ActionClick, ArticleID: 2},   // zero vector
			{Action: core.ActionClick, ArticleID: 404}, // no vector
			{Action: "share", ArticleID: 1},            // unweighted
		})
		require.NoError(t, err)
		require.True(t, ok)
		assert.InDeltaSlice(t, []float32{1, 0, 0}, vec, 1e-6)
	})

	t.Run("nothing resolves", func(t *testing.T) {
		vec, ok, err := builder.BuildProfile(ctx, []core.Interaction{
			{Action: core.ActionClick, ArticleID: 2},
			{Action: core.ActionClick, ArticleID: 404},
			{Action: "share", Keyword: "경제"},
		})
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, vec)
	})

	t.Run("opposite vectors cancel out", func(t *testing.T) {
		f.storeVector(t, 3, []float32{-1, 0, 0})
		_, ok, err := builder.BuildProfile(ctx, []core.Interaction{
			{Action: core.ActionClick, ArticleID: 1},
			{Action: core.ActionClick, ArticleID: 3},
		})
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestBuildProfile_SkipsWrongDimension(t *testing.T) {
	f := newFixture(t)
	embedder := f.provider.GetMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1, 0}}, nil
	}

	_, ok, err := f.recommender.Builder().BuildProfile(context.Background(), []core.Interaction{
		{Action: core.ActionSearch, Keyword: "경제"},
	})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBuildProfile_EmbedderFailure(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("embedding server down")
	f.provider.GetMockEmbedder().EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, boom
	}

	_, _, err := f.recommender.Builder().BuildProfile(context.Background(), []core.Interaction{
		{Action: core.ActionSearch, Keyword: "경제"},
	})
	assert.ErrorIs(t, err, boom)
}

func TestUpdateUserProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.storeVector(t, 1, []float32{1, 0, 0})
	f.storeVector(t, 2, []float32{0, 1, 0})

	stored, err := f.recommender.UpdateUserProfile(ctx, 7, []core.Interaction{
		{Action: core.ActionScrap, ArticleID: 1},
		{Action: core.ActionClick, ArticleID: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, core.ID(7), stored.UserID)
	assert.Equal(t, mock.Version, stored.ModelVersion)

	got, err := f.stores.UserVectors.GetUserVector(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, stored.Vector, got.Vector)

	t.Run("unresolvable update keeps the old profile", func(t *testing.T) {
		_, err := f.recommender.UpdateUserProfile(ctx, 7, []core.Interaction{
			{Action: core.ActionClick, ArticleID: 404},
		})
		assert.ErrorIs(t, err, core.ErrNoResolvableInteractions)
		assert.NotErrorIs(t, err, core.ErrValidation)

		again, err := f.stores.UserVectors.GetUserVector(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, got.Vector, again.Vector)
	})
}

func TestUpdateUserProfile_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name         string
		userID       core.ID
		interactions []core.Interaction
		want         error
	}{
		{"zero user", 0, []core.Interaction{{Action: core.ActionClick, ArticleID: 1}}, core.ErrInvalidID},
		{"no interactions", 1, nil, core.ErrNoInteractions},
		{"keyword blank after normalization", 1, []core.Interaction{{Action: core.ActionSearch, Keyword: "?!"}}, core.ErrEmptyKeyword},
		{"no target", 1, []core.Interaction{{Action: core.ActionClick}}, core.ErrMissingTarget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.recommender.UpdateUserProfile(ctx, tt.userID, tt.interactions)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, core.ErrValidation)
		})
	}
	assert.Equal(t, 0, f.provider.GetMockEmbedder().CallCount())
}

func TestGetFeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.storeVector(t, 1, []float32{1, 0, 0})
	f.storeVector(t, 2, []float32{0, 1, 0})
	f.storeVector(t, 3, []float32{-1, 0, 0})
	f.storeVector(t, 4, []float32{0.9, 0.1, 0})

	_, err := f.recommender.UpdateUserProfile(ctx, 7, []core.Interaction{
		{Action: core.ActionScrap, ArticleID: 1},
	})
	require.NoError(t, err)

	items, total, err := f.recommender.GetFeed(ctx, 7, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, total, "the opposite article falls below the zero threshold")
	require.Len(t, items, 3)
	assert.Equal(t, core.ID(1), items[0].ArticleID)
	assert.InDelta(t, 1.0, items[0].Score, 1e-6)
	assert.Equal(t, core.ID(4), items[1].ArticleID)
	assert.Equal(t, core.ID(2), items[2].ArticleID)
	assert.InDelta(t, 0.0, items[2].Score, 1e-6)

	items, total, err = f.recommender.GetFeed(ctx, 7, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 1)
	assert.Equal(t, core.ID(2), items[0].ArticleID)

	items, _, err = f.recommender.GetFeed(ctx, 7, 5, 2)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestGetFeed_Threshold(t *testing.T) {
	f := newFixture(t, WithFeedThreshold(0.5))
	ctx := context.Background()
	f.storeVector(t, 1, []float32{1, 0, 0})
	f.storeVector(t, 2, []float32{0, 1, 0})

	_, err := f.recommender.UpdateUserProfile(ctx, 7, []core.Interaction{{Action: core.ActionClick, ArticleID: 1}})
	require.NoError(t, err)

	items, total, err := f.recommender.GetFeed(ctx, 7, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, core.ID(1), items[0].ArticleID)
}

func TestGetFeed_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.recommender.GetFeed(ctx, 99, 0, 10)
	assert.ErrorIs(t, err, core.ErrProfileNotFound)

	_, _, err = f.recommender.GetFeed(ctx, 0, 0, 10)
	assert.ErrorIs(t, err, core.ErrInvalidID)

	_, _, err = f.recommender.GetFeed(ctx, 1, -1, 10)
	assert.ErrorIs(t, err, core.ErrInvalidPage)

	_, _, err = f.recommender.GetFeed(ctx, 1, 0, 51)
	assert.ErrorIs(t, err, core.ErrInvalidSize)
}
