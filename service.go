package articlevec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poiesic/articlevec/ai"
	"github.com/poiesic/articlevec/core"
	"github.com/poiesic/articlevec/profile"
	"github.com/poiesic/articlevec/search"
	"github.com/poiesic/articlevec/storage"
	"github.com/poiesic/articlevec/vectorize"
	"github.com/poiesic/articlevec/workers"
)

var (
	// ErrStoresRequired is returned when NewService gets no stores.
	ErrStoresRequired = errors.New("stores required")

	// ErrProviderFactoryRequired is returned when NewService gets no provider factory.
	ErrProviderFactoryRequired = errors.New("provider factory required")

	errNotInitialized = errors.New("models are not loaded yet")
)

// warmupText is embedded once during Initialize to prove the embedder works.
const warmupText = "경제"

// ProviderFactory loads the embedding and keyword models. It runs during
// Initialize and may read the stores, for example to fetch stopwords.
type ProviderFactory func(ctx context.Context, stores *storage.Stores) (ai.AIProvider, error)

// Health status values.
const (
	StatusInitializing = "initializing"
	StatusReady        = "ready"
	StatusDegraded     = "degraded"
)

// Health describes the readiness of the service.
type Health struct {
	Status       string `json:"status"`
	ModelVersion string `json:"model_version,omitempty"`
	Error        string `json:"error,omitempty"`
}

// engines is the set of components built around one loaded provider. It is
// replaced as a whole and never mutated. Calls hold mu for reading while they
// use it; retiring takes mu for writing before the provider is closed.
type engines struct {
	provider    ai.AIProvider
	vectorizer  *vectorize.Vectorizer
	searcher    *search.Searcher
	recommender *profile.Recommender
	degraded    error

	mu      sync.RWMutex
	retired bool
}

// Service is the semantic search and recommendation service. Operations that
// need the models fail with core.ErrServiceNotReady until Initialize succeeds.
type Service struct {
	stores      *storage.Stores
	factory     ProviderFactory
	pool        *workers.Pool
	ownsPool    bool
	poolSize    int
	vecConfig   *vectorize.Config
	queryMode   search.QueryMode
	weights     profile.ActionWeights
	feedThresh  float64
	progress    io.Writer
	warmup      bool
	engines     atomic.Pointer[engines]
	initMu      sync.Mutex
	lastInitErr error
	retiring    sync.WaitGroup
	base        *slog.Logger
	logger      *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service) error

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithProviderFactory sets how models are loaded. Required.
func WithProviderFactory(factory ProviderFactory) ServiceOption {
	return func(s *Service) error {
		s.factory = factory
		return nil
	}
}

// WithPool runs model calls on pool. The caller keeps ownership of it.
func WithPool(pool *workers.Pool) ServiceOption {
	return func(s *Service) error {
		s.pool = pool
		return nil
	}
}

// WithPoolSize sets the size of the pool the service creates when WithPool
// is not given.
func WithPoolSize(size int) ServiceOption {
	return func(s *Service) error {
		s.poolSize = size
		return nil
	}
}

// WithVectorizeConfig sets the vectorizer configuration.
func WithVectorizeConfig(config *vectorize.Config) ServiceOption {
	return func(s *Service) error {
		s.vecConfig = config
		return nil
	}
}

// WithQueryMode sets how search queries are vectorized.
func WithQueryMode(mode search.QueryMode) ServiceOption {
	return func(s *Service) error {
		m, err := search.ParseQueryMode(string(mode))
		if err != nil {
			return err
		}
		s.queryMode = m
		return nil
	}
}

// WithActionWeights sets the profile action weights.
func WithActionWeights(weights profile.ActionWeights) ServiceOption {
	return func(s *Service) error {
		if err := weights.Validate(); err != nil {
			return err
		}
		s.weights = weights
		return nil
	}
}

// WithFeedThreshold sets the minimum similarity of a feed item.
func WithFeedThreshold(threshold float64) ServiceOption {
	return func(s *Service) error {
		s.feedThresh = threshold
		return nil
	}
}

// WithProgress reports batch vectorization progress to w.
func WithProgress(w io.Writer) ServiceOption {
	return func(s *Service) error {
		s.progress = w
		return nil
	}
}

// WithWarmup controls whether Initialize checks the models. Default is true.
func WithWarmup(enabled bool) ServiceOption {
	return func(s *Service) error {
		s.warmup = enabled
		return nil
	}
}

// NewService creates a Service over stores. The service owns the stores and
// closes them in Close. Models are not loaded until Initialize.
func NewService(stores *storage.Stores, opts ...ServiceOption) (*Service, error) {
	if stores == nil {
		return nil, ErrStoresRequired
	}
	s := &Service{
		stores:      stores,
		poolSize:    workers.DefaultSize,
		vecConfig:   vectorize.DefaultConfig(),
		queryMode:   search.ModeSentence,
		weights:     profile.DefaultActionWeights(),
		warmup:      true,
		lastInitErr: errNotInitialized,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.factory == nil {
		return nil, ErrProviderFactoryRequired
	}
	if s.pool == nil {
		pool, err := workers.NewPool(s.poolSize, workers.WithLogger(s.logger.With("component", "workers")))
		if err != nil {
			return nil, err
		}
		s.pool = pool
		s.ownsPool = true
	}
	s.base = s.logger
	s.logger = s.logger.With("component", "service")
	return s, nil
}

// Initialize loads the models and makes the service ready. It may be called
// again to reload them. Calls already running keep the previous provider,
// which is closed in the background once they have all returned.
func (s *Service) Initialize(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	e, err := s.load(ctx)
	if err != nil {
		s.lastInitErr = err
		s.logger.Error("model initialization failed", "err", err)
		return fmt.Errorf("%w: %w", core.ErrServiceNotReady, err)
	}
	s.lastInitErr = nil

	if old := s.engines.Swap(e); old != nil {
		s.retiring.Add(1)
		go func() {
			defer s.retiring.Done()
			if err := retire(old); err != nil {
				s.logger.Warn("error closing previous provider", "err", err)
			}
		}()
	}
	s.logger.Info("models loaded", "model_version", e.provider.ModelVersion(), "degraded", e.degraded != nil)
	return nil
}

// InitializeWithRetry calls Initialize until it succeeds or ctx ends,
// waiting interval between attempts.
func (s *Service) InitializeWithRetry(ctx context.Context, interval time.Duration) error {
	for {
		err := s.Initialize(ctx)
		if err == nil {
			return nil
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *Service) load(ctx context.Context) (*engines, error) {
	raw, err := s.factory(ctx, s.stores)
	if err != nil {
		return nil, fmt.Errorf("load models: %w", err)
	}
	provider := workers.NewPooledProvider(raw, s.pool)

	var degraded error
	if s.warmup {
		if err := checkEmbedder(ctx, provider); err != nil {
			raw.Close()
			return nil, err
		}
		if _, err := provider.KeywordExtractor().ExtractKeywords(ctx, warmupText, 1); err != nil {
			if !errors.Is(err, core.ErrServiceNotReady) {
				raw.Close()
				return nil, fmt.Errorf("keyword extractor warmup: %w", err)
			}
			s.logger.Warn("keyword extraction unavailable", "err", err)
			degraded = err
		}
	}

	vecOpts := []vectorize.Option{vectorize.WithLogger(s.base.With("component", "vectorizer"))}
	if s.progress != nil {
		vecOpts = append(vecOpts, vectorize.WithProgress(s.progress))
	}
	vectorizer, err := vectorize.NewVectorizer(s.stores.Articles, s.stores.ArticleVectors, provider, s.vecConfig, vecOpts...)
	if err != nil {
		raw.Close()
		return nil, err
	}

	searcher, err := search.NewSearcher(s.stores.Articles, s.stores.ArticleVectors, provider,
		search.WithLogger(s.base.With("component", "searcher")),
		search.WithQueryMode(s.queryMode),
		search.WithTopK(s.vecConfig.TopK),
	)
	if err != nil {
		raw.Close()
		return nil, err
	}

	recommender, err := profile.NewRecommender(s.stores.UserVectors, s.stores.ArticleVectors, provider,
		profile.WithLogger(s.base),
		profile.WithActionWeights(s.weights),
		profile.WithFeedThreshold(s.feedThresh),
	)
	if err != nil {
		raw.Close()
		return nil, err
	}

	return &engines{
		provider:    provider,
		vectorizer:  vectorizer,
		searcher:    searcher,
		recommender: recommender,
		degraded:    degraded,
	}, nil
}

func checkEmbedder(ctx context.Context, provider ai.AIProvider) error {
	embedder := provider.Embedder()
	vec, err := embedder.EmbedText(ctx, warmupText)
	if err != nil {
		return fmt.Errorf("embedder warmup: %w", err)
	}
	if err := core.ValidateVector(vec, embedder.Dimension()); err != nil {
		return fmt.Errorf("embedder warmup: %w", err)
	}
	return nil
}

// acquire returns the loaded engines and a release func, or a not-ready
// error. The engines stay open until release is called.
func (s *Service) acquire() (*engines, func(), error) {
	for {
		e := s.engines.Load()
		if e == nil {
			return nil, nil, s.notReady()
		}
		e.mu.RLock()
		if !e.retired {
			return e, e.mu.RUnlock, nil
		}
		// swapped out while we waited; the replacement is already loaded
		e.mu.RUnlock()
	}
}

// retire waits for every call holding e, then closes its provider.
func retire(e *engines) error {
	e.mu.Lock()
	e.retired = true
	e.mu.Unlock()
	return e.provider.Close()
}

func (s *Service) notReady() error {
	s.initMu.Lock()
	reason := s.lastInitErr
	s.initMu.Unlock()
	if reason == nil {
		reason = errNotInitialized
	}
	return fmt.Errorf("%w: %w", core.ErrServiceNotReady, reason)
}

// Ready reports whether the models are loaded.
func (s *Service) Ready() bool {
	return s.engines.Load() != nil
}

// Health reports readiness and the last initialization error.
func (s *Service) Health() Health {
	if e := s.engines.Load(); e != nil {
		h := Health{Status: StatusReady, ModelVersion: e.provider.ModelVersion()}
		if e.degraded != nil {
			h.Status = StatusDegraded
			h.Error = e.degraded.Error()
		}
		return h
	}
	s.initMu.Lock()
	defer s.initMu.Unlock()
	h := Health{Status: StatusInitializing}
	if s.lastInitErr != nil && !errors.Is(s.lastInitErr, errNotInitialized) {
		h.Error = s.lastInitErr.Error()
	}
	return h
}

// Provider returns the loaded provider, or a stand-in whose every call
// fails with core.ErrServiceNotReady.
func (s *Service) Provider() ai.AIProvider {
	if e := s.engines.Load(); e != nil {
		return e.provider
	}
	s.initMu.Lock()
	defer s.initMu.Unlock()
	return ai.Unavailable(s.lastInitErr)
}

// Stores returns the repositories the service runs on.
func (s *Service) Stores() *storage.Stores {
	return s.stores
}

// VectorizeBatch vectorizes and stores the given articles. Per-article
// failures are reported in the result and do not fail the call.
func (s *Service) VectorizeBatch(ctx context.Context, ids []core.ID, force bool) (*core.BatchResult, error) {
	if err := core.ValidateIDs(ids); err != nil {
		return nil, err
	}
	e, release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return e.vectorizer.VectorizeBatch(ctx, ids, force)
}

// VectorizeText returns the keyword vectors of text without storing them.
func (s *Service) VectorizeText(ctx context.Context, text string) (*vectorize.TextVectors, error) {
	if strings.TrimSpace(text) == "" {
		return nil, core.Invalid(core.ErrEmptyQuery)
	}
	e, release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return e.vectorizer.VectorizeText(ctx, text)
}

// ArticleVector returns the stored vector of one article.
func (s *Service) ArticleVector(ctx context.Context, id core.ID) (*core.ArticleVector, error) {
	if id <= 0 {
		return nil, core.Invalid(fmt.Errorf("%w: got %d", core.ErrInvalidID, id))
	}
	v, err := s.stores.ArticleVectors.GetArticleVector(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: no vector for article %d", core.ErrArticleNotFound, id)
	}
	return v, err
}

// SearchBySimilarity ranks articles against a free-text query.
func (s *Service) SearchBySimilarity(ctx context.Context, q core.SearchQuery) (*core.SearchPage, error) {
	if err := core.ValidateSearchQuery(q); err != nil {
		return nil, err
	}
	e, release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return e.searcher.Search(ctx, q)
}

// SearchWithMonitor is SearchBySimilarity reporting each search stage to
// monitor.
func (s *Service) SearchWithMonitor(ctx context.Context, q core.SearchQuery, monitor search.SearchMonitor) (*core.SearchPage, error) {
	if err := core.ValidateSearchQuery(q); err != nil {
		return nil, err
	}
	e, release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return e.searcher.SearchWithMonitor(ctx, q, monitor)
}

// UpdateUserProfile rebuilds and stores the profile of userID.
func (s *Service) UpdateUserProfile(ctx context.Context, userID core.ID, interactions []core.Interaction) (*core.UserVector, error) {
	if err := core.ValidateInteractions(userID, interactions); err != nil {
		return nil, err
	}
	e, release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return e.recommender.UpdateUserProfile(ctx, userID, interactions)
}

// GetFeed returns one page of articles ranked against the profile of userID
// and the total number of matching articles.
func (s *Service) GetFeed(ctx context.Context, userID core.ID, page, size int) ([]core.FeedItem, int, error) {
	if userID <= 0 {
		return nil, 0, core.Invalid(fmt.Errorf("%w: user %d", core.ErrInvalidID, userID))
	}
	if err := core.ValidatePagination(page, size); err != nil {
		return nil, 0, err
	}
	e, release, err := s.acquire()
	if err != nil {
		return nil, 0, err
	}
	defer release()
	return e.recommender.GetFeed(ctx, userID, page, size)
}

// Sweep vectorizes up to limit articles that have no vector yet, newest
// first. With force every article is a candidate.
func (s *Service) Sweep(ctx context.Context, limit int, force bool) (*core.BatchResult, error) {
	e, release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return e.vectorizer.Sweep(ctx, limit, force)
}

// Migrate re-vectorizes up to limit rows left by another model version or
// stored in a legacy shape.
func (s *Service) Migrate(ctx context.Context, limit int) (*core.BatchResult, error) {
	e, release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return e.vectorizer.Migrate(ctx, limit)
}

// Stats reports vector coverage of the article corpus.
func (s *Service) Stats(ctx context.Context) (*core.Stats, error) {
	total, err := s.stores.Articles.CountArticles(ctx, time.Time{})
	if err != nil {
		return nil, err
	}
	vectorized, err := s.stores.ArticleVectors.CountArticleVectors(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := s.stores.Articles.CountArticles(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}

	stats := &core.Stats{
		TotalArticles:      total,
		VectorizedArticles: vectorized,
		RecentArticles:     recent,
	}
	if total > 0 {
		stats.CoveragePercent = float64(vectorized) / float64(total) * 100
	}
	if e := s.engines.Load(); e != nil {
		stats.ModelVersion = e.provider.ModelVersion()
	}
	return stats, nil
}

// Close releases the provider, the worker pool when the service created it,
// and the stores.
func (s *Service) Close() error {
	var errs []error
	if e := s.engines.Swap(nil); e != nil {
		if err := retire(e); err != nil {
			s.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	s.retiring.Wait()
	if s.ownsPool {
		s.pool.Release()
	}
	if err := s.stores.Close(); err != nil {
		s.logger.Error("error closing stores", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
