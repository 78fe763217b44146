package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/articlevec/ai"
	"github.com/poiesic/articlevec/core"
	"github.com/poiesic/articlevec/nlp"
	"github.com/poiesic/articlevec/rank"
	"github.com/poiesic/articlevec/storage"
	"github.com/poiesic/articlevec/vector"
)

// QueryMode selects how a query becomes a vector.
type QueryMode string

const (
	// ModeSentence embeds the normalized query as one string.
	ModeSentence QueryMode = "sentence"

	// ModeKeywords embeds the query keywords and aggregates them weighted by
	// score, the same way article vectors are built.
	ModeKeywords QueryMode = "keywords"
)

// resultKeywords is the number of stored keywords attached to each hit.
const resultKeywords = 5

// ParseQueryMode converts s to a QueryMode. The empty string means ModeSentence.
func ParseQueryMode(s string) (QueryMode, error) {
	switch QueryMode(s) {
	case "", ModeSentence:
		return ModeSentence, nil
	case ModeKeywords:
		return ModeKeywords, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownQueryMode, s)
}

// Searcher ranks stored article vectors against free-text queries.
type Searcher struct {
	articles storage.ArticleRepository
	vectors  storage.ArticleVectorRepository
	provider ai.AIProvider
	mode     QueryMode
	topK     int
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithQueryMode sets how queries are vectorized. Default is ModeSentence.
func WithQueryMode(mode QueryMode) Option {
	return func(s *Searcher) error {
		m, err := ParseQueryMode(string(mode))
		if err != nil {
			return err
		}
		s.mode = m
		return nil
	}
}

// WithTopK sets how many query keywords ModeKeywords embeds. Default is 10.
func WithTopK(k int) Option {
	return func(s *Searcher) error {
		if k <= 0 {
			return core.Invalid(core.ErrInvalidTopK)
		}
		s.topK = k
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	articles storage.ArticleRepository,
	vectors storage.ArticleVectorRepository,
	provider ai.AIProvider,
	opts ...Option,
) (*Searcher, error) {
	if articles == nil {
		return nil, ErrArticleRepositoryRequired
	}
	if vectors == nil {
		return nil, ErrVectorRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Searcher{
		articles: articles,
		vectors:  vectors,
		provider: provider,
		mode:     ModeSentence,
		topK:     10,
		logger:   slog.Default().With("component", "searcher"),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Mode reports the configured query mode.
func (s *Searcher) Mode() QueryMode {
	return s.mode
}

// Search returns one page of articles similar to q.Text plus the total
// number of articles scoring at or above q.Threshold.
func (s *Searcher) Search(ctx context.Context, q core.SearchQuery) (*core.SearchPage, error) {
	return s.SearchWithMonitor(ctx, q, nil)
}

// SearchWithMonitor is Search with a monitor receiving a callback at each
// stage of the search.
func (s *Searcher) SearchWithMonitor(ctx context.Context, q core.SearchQuery, monitor SearchMonitor) (*core.SearchPage, error) {
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if err := core.ValidateSearchQuery(q); err != nil {
		return nil, err
	}
	monitor.Start(q)

	normalized := nlp.Normalize(q.Text)
	if normalized == "" {
		return nil, core.Invalid(core.ErrEmptyQuery)
	}

	// 1. Vectorize the query
	query, queryKeywords, err := s.queryVector(ctx, normalized)
	if err != nil {
		s.logger.Error("error vectorizing query", "query", normalized, "err", err)
		return nil, err
	}
	monitor.AfterQueryVector(s.mode, normalized)

	// 2. Scan every stored representative vector
	candidates, err := s.vectors.Representatives(ctx)
	if err != nil {
		s.logger.Error("error loading candidate vectors", "err", err)
		return nil, err
	}
	monitor.AfterCandidateScan(len(candidates))

	// 3. Rank and cut the requested page
	total, scored := rank.Rank(query, candidates, q.Threshold, q.Page, q.Size)
	monitor.AfterRanking(total, scored)

	// 4. Hydrate the page
	results, err := s.hydrate(ctx, scored, queryKeywords, monitor)
	if err != nil {
		return nil, err
	}

	page := &core.SearchPage{Total: total, Results: results}
	monitor.Finish(page)
	s.logger.Debug("search finished", "query", normalized, "total", total, "returned", len(results))
	return page, nil
}

// QueryVector turns already normalized text into a query vector using the
// configured mode. ModeKeywords falls back to the whole text when no keyword
// can be extracted.
func (s *Searcher) QueryVector(ctx context.Context, normalized string) ([]float32, error) {
	vec, _, err := s.queryVector(ctx, normalized)
	return vec, err
}

// queryVector also returns the query keywords when the vector was built
// from them.
func (s *Searcher) queryVector(ctx context.Context, normalized string) ([]float32, []string, error) {
	embedder := s.provider.Embedder()

	if s.mode == ModeKeywords {
		vec, keywords, err := s.keywordVector(ctx, normalized)
		if err != nil {
			return nil, nil, err
		}
		if vec != nil {
			return vec, keywords, nil
		}
		s.logger.Debug("no query keywords, embedding whole text", "query", normalized)
	}

	vec, err := embedder.EmbedText(ctx, normalized)
	if err != nil {
		return nil, nil, fmt.Errorf("embed query: %w", err)
	}
	if err := core.ValidateVector(vec, embedder.Dimension()); err != nil {
		return nil, nil, fmt.Errorf("embed query: %w", err)
	}
	return vec, nil, nil
}

// keywordVector returns a nil vector when text yields no usable keyword.
func (s *Searcher) keywordVector(ctx context.Context, text string) ([]float32, []string, error) {
	embedder := s.provider.Embedder()
	dim := embedder.Dimension()

	scores, err := s.provider.KeywordExtractor().ExtractKeywords(ctx, text, s.topK)
	if err != nil {
		return nil, nil, fmt.Errorf("extract query keywords: %w", err)
	}
	if len(scores) == 0 {
		return nil, nil, nil
	}

	keywords := scores.Keywords()
	embeddings, err := embedder.EmbedTexts(ctx, keywords)
	if err != nil {
		return nil, nil, fmt.Errorf("embed query keywords: %w", err)
	}
	if len(embeddings) != len(scores) {
		return nil, nil, fmt.Errorf("embedding result mismatch. expected %d, received %d", len(scores), len(embeddings))
	}

	items := make([]vector.Weighted, 0, len(scores))
	for i, e := range embeddings {
		if err := core.ValidateVector(e, dim); err != nil {
			return nil, nil, fmt.Errorf("embed query keyword %q: %w", scores[i].Keyword, err)
		}
		items = append(items, vector.Weighted{Vector: e, Weight: scores[i].Score})
	}

	vec := vector.Aggregate(dim, items)
	if vector.IsZero(vec) {
		return nil, nil, nil
	}
	return vec, keywords, nil
}

// hydrate attaches article metadata and stored keywords to scored ids. An id
// whose article is gone keeps its slot with empty metadata. Common keywords
// are computed only when queryKeywords is non-nil.
func (s *Searcher) hydrate(ctx context.Context, scored []core.Scored, queryKeywords []string, monitor SearchMonitor) ([]*core.SearchResult, error) {
	results := make([]*core.SearchResult, 0, len(scored))
	if len(scored) == 0 {
		return results, nil
	}

	ids := make([]core.ID, len(scored))
	for i, sc := range scored {
		ids[i] = sc.ID
	}
	articles, err := s.articles.GetArticles(ctx, ids...)
	if err != nil {
		s.logger.Error("error retrieving articles", "count", len(ids), "err", err)
		return nil, err
	}
	vectors, err := s.vectors.GetArticleVectors(ctx, ids...)
	if err != nil {
		s.logger.Error("error retrieving article keywords", "count", len(ids), "err", err)
		return nil, err
	}

	for _, sc := range scored {
		result := &core.SearchResult{ArticleID: sc.ID, Score: sc.Score}
		if a, ok := articles[sc.ID]; ok {
			result.Title = a.Title
			result.Summary = a.Summary
			result.PublishedAt = a.PublishedAt
		} else {
			s.logger.Warn("article vector without article", "article_id", sc.ID)
			monitor.MissingArticle(sc.ID)
		}
		result.Keywords = []string{}
		if v, ok := vectors[sc.ID]; ok {
			result.Keywords = v.KeywordScores.Top(resultKeywords).Keywords()
			if queryKeywords != nil {
				result.CommonKeywords = commonKeywords(queryKeywords, v.KeywordScores)
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// commonKeywords returns the query keywords present in stored, in query order.
func commonKeywords(query []string, stored core.KeywordScores) []string {
	common := []string{}
	for _, kw := range query {
		if _, ok := stored.Score(kw); ok {
			common = append(common, kw)
		}
	}
	return common
}
