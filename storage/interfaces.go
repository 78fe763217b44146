package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/poiesic/articlevec/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close releases repository resources. The shared backend is closed separately.
	Close() error
}

// ArticleRepository reads the external article entity.
type ArticleRepository interface {
	Repository

	// SaveArticles inserts or replaces articles by id.
	// Sets CreatedAt if not already set.
	SaveArticles(ctx context.Context, articles ...*core.Article) error

	// GetArticle retrieves a single article by ID.
	// Returns ErrNotFound if the article doesn't exist.
	GetArticle(ctx context.Context, id core.ID) (*core.Article, error)

	// GetArticles retrieves multiple articles by their IDs.
	// Missing ids are simply absent from the result.
	GetArticles(ctx context.Context, ids ...core.ID) (map[core.ID]*core.Article, error)

	// ListSummaries returns the summary of every article, the corpus for
	// fitting TF-IDF.
	ListSummaries(ctx context.Context) ([]string, error)

	// CountArticles counts articles created at or after since.
	// A zero since counts every article.
	CountArticles(ctx context.Context, since time.Time) (int, error)
}

// ArticleVectorRepository stores one ArticleVector per article.
type ArticleVectorRepository interface {
	Repository

	// UpsertArticleVector writes v, replacing any existing row for the same
	// article. CreatedAt is kept from the first write, UpdatedAt advances on
	// every write. Vectors whose dimension differs from the repository's
	// dimension are rejected. Returns the stored record.
	UpsertArticleVector(ctx context.Context, v *core.ArticleVector) (*core.ArticleVector, error)

	// GetArticleVector retrieves the vector of one article.
	// Returns ErrNotFound if none is stored.
	GetArticleVector(ctx context.Context, id core.ID) (*core.ArticleVector, error)

	// GetArticleVectors retrieves vectors for multiple articles.
	// Missing or unreadable rows are absent from the result.
	GetArticleVectors(ctx context.Context, ids ...core.ID) (map[core.ID]*core.ArticleVector, error)

	// ListMissing returns up to limit article ids, most recently created
	// first. Unless force is set, only articles without a stored vector are
	// listed.
	ListMissing(ctx context.Context, limit int, force bool) ([]core.ID, error)

	// ListStale returns up to limit ids of stored vectors whose model version
	// differs from modelVersion or whose payload cannot be decoded.
	ListStale(ctx context.Context, modelVersion string, limit int) ([]core.ID, error)

	// Representatives returns every stored representative vector. Rows
	// without one, or with an unreadable one, are skipped and logged.
	Representatives(ctx context.Context) ([]core.Candidate, error)

	// CountArticleVectors counts stored article vectors.
	CountArticleVectors(ctx context.Context) (int, error)
}

// UserVectorRepository stores one UserVector per user.
type UserVectorRepository interface {
	Repository

	// UpsertUserVector writes v, replacing any existing row for the same user.
	// Vectors whose dimension differs from the repository's dimension are
	// rejected. Returns the stored record.
	UpsertUserVector(ctx context.Context, v *core.UserVector) (*core.UserVector, error)

	// GetUserVector retrieves a user's profile vector.
	// Returns ErrNotFound if none is stored.
	GetUserVector(ctx context.Context, id core.ID) (*core.UserVector, error)
}

// StopwordSource is implemented by stores that keep a stopword table.
type StopwordSource interface {
	Stopwords(ctx context.Context) ([]string, error)
}

// Stores groups the repositories of one backend.
type Stores struct {
	Articles       ArticleRepository
	ArticleVectors ArticleVectorRepository
	UserVectors    UserVectorRepository

	// Stopwords is nil when the backend keeps no stopword table.
	Stopwords StopwordSource

	// Backend is closed after the repositories.
	Backend io.Closer
}

// Close closes every repository and then the backend.
func (s *Stores) Close() error {
	var errs []error
	for _, r := range []Repository{s.Articles, s.ArticleVectors, s.UserVectors} {
		if r != nil {
			errs = append(errs, r.Close())
		}
	}
	if s.Backend != nil {
		errs = append(errs, s.Backend.Close())
	}
	return errors.Join(errs...)
}
