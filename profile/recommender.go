package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/poiesic/articlevec/ai"
	"github.com/poiesic/articlevec/core"
	"github.com/poiesic/articlevec/nlp"
	"github.com/poiesic/articlevec/rank"
	"github.com/poiesic/articlevec/storage"
)

// Recommender stores user profiles and ranks articles against them.
type Recommender struct {
	users         storage.UserVectorRepository
	vectors       storage.ArticleVectorRepository
	provider      ai.AIProvider
	weights       ActionWeights
	feedThreshold float64
	builder       *Builder
	logger        *slog.Logger
}

// Option configures a Recommender.
type Option func(*Recommender) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recommender) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithActionWeights replaces the default action weights.
func WithActionWeights(weights ActionWeights) Option {
	return func(r *Recommender) error {
		if err := weights.Validate(); err != nil {
			return err
		}
		r.weights = weights
		return nil
	}
}

// WithFeedThreshold sets the minimum similarity of a feed item. Default is 0.
func WithFeedThreshold(threshold float64) Option {
	return func(r *Recommender) error {
		if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
			return core.Invalid(core.ErrInvalidThreshold)
		}
		r.feedThreshold = threshold
		return nil
	}
}

// NewRecommender creates a Recommender.
func NewRecommender(
	users storage.UserVectorRepository,
	vectors storage.ArticleVectorRepository,
	provider ai.AIProvider,
	opts ...Option,
) (*Recommender, error) {
	if users == nil {
		return nil, ErrUserRepositoryRequired
	}
	if vectors == nil {
		return nil, ErrVectorRepositoryRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}

	r := &Recommender{
		users:    users,
		vectors:  vectors,
		provider: provider,
		weights:  DefaultActionWeights(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	builder, err := NewBuilder(vectors, provider, r.weights, r.logger)
	if err != nil {
		return nil, err
	}
	r.builder = builder
	r.logger = r.logger.With("component", "recommender")
	return r, nil
}

// Builder returns the profile builder used by the recommender.
func (r *Recommender) Builder() *Builder {
	return r.builder
}

// UpdateUserProfile rebuilds the profile of userID from interactions and
// stores it. When no interaction resolves to a usable vector the stored
// profile is left untouched and core.ErrNoResolvableInteractions is returned.
func (r *Recommender) UpdateUserProfile(ctx context.Context, userID core.ID, interactions []core.Interaction) (*core.UserVector, error) {
	if err := core.ValidateInteractions(userID, interactions); err != nil {
		return nil, err
	}
	for i, in := range interactions {
		if in.Keyword != "" && nlp.Normalize(in.Keyword) == "" {
			return nil, core.Invalid(fmt.Errorf("interaction %d: %w", i, core.ErrEmptyKeyword))
		}
	}

	vec, ok, err := r.builder.BuildProfile(ctx, interactions)
	if err != nil {
		return nil, err
	}
	if !ok {
		r.logger.Info("profile update rejected", "user_id", userID, "interactions", len(interactions))
		return nil, fmt.Errorf("%w: user %d", core.ErrNoResolvableInteractions, userID)
	}

	stored, err := r.users.UpsertUserVector(ctx, &core.UserVector{
		UserID:       userID,
		Vector:       vec,
		ModelVersion: r.provider.ModelVersion(),
	})
	if err != nil {
		return nil, err
	}
	r.logger.Debug("profile updated", "user_id", userID, "interactions", len(interactions))
	return stored, nil
}

// GetFeed ranks every vectorized article against the stored profile of
// userID and returns one page plus the total number of articles at or above
// the feed threshold.
func (r *Recommender) GetFeed(ctx context.Context, userID core.ID, page, size int) ([]core.FeedItem, int, error) {
	if userID <= 0 {
		return nil, 0, core.Invalid(fmt.Errorf("%w: user %d", core.ErrInvalidID, userID))
	}
	if err := core.ValidatePagination(page, size); err != nil {
		return nil, 0, err
	}

	profile, err := r.users.GetUserVector(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, 0, fmt.Errorf("%w: user %d", core.ErrProfileNotFound, userID)
		}
		return nil, 0, err
	}
	if dim := r.provider.Embedder().Dimension(); len(profile.Vector) != dim {
		r.logger.Warn("stored profile has wrong dimension", "user_id", userID, "expected", dim, "got", len(profile.Vector))
		return nil, 0, fmt.Errorf("%w: user %d: %w", core.ErrProfileNotFound, userID, core.ErrDimensionMismatch)
	}

	candidates, err := r.vectors.Representatives(ctx)
	if err != nil {
		return nil, 0, err
	}
	total, scored := rank.Rank(profile.Vector, candidates, r.feedThreshold, page, size)

	items := make([]core.FeedItem, len(scored))
	for i, s := range scored {
		items[i] = core.FeedItem{ArticleID: s.ID, Score: s.Score}
	}
	return items, total, nil
}
