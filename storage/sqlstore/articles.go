package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/articlevec/core"
	"github.com/poiesic/articlevec/storage"
)

// ArticleRepository implements storage.ArticleRepository over the articles table.
type ArticleRepository struct {
	db *DB
}

var _ storage.ArticleRepository = (*ArticleRepository)(nil)

// Close is a no-op; the pool is closed with the DB.
func (r *ArticleRepository) Close() error {
	return nil
}

// SaveArticles inserts or replaces articles. A zero CreatedAt keeps the
// stored value, or is set to now for new rows.
func (r *ArticleRepository) SaveArticles(ctx context.Context, articles ...*core.Article) error {
	for _, a := range articles {
		if a == nil || a.ID <= 0 {
			return core.Invalid(core.ErrInvalidID)
		}
	}
	query := r.db.dialect.upsert("articles", "article_id",
		[]string{"article_id", "title", "summary", "published_at", "created_at"},
		[]string{"title", "summary", "published_at", "created_at"})
	lookup := "SELECT created_at FROM articles WHERE article_id = ?" + r.db.dialect.forUpdate()

	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		for _, article := range articles {
			if article.CreatedAt.IsZero() {
				var raw any
				err := tx.QueryRowContext(ctx, lookup, int64(article.ID)).Scan(&raw)
				switch {
				case errors.Is(err, sql.ErrNoRows):
					article.CreatedAt = time.Now().UTC()
				case err != nil:
					return err
				default:
					created, err := asTime(raw)
					if err != nil {
						return err
					}
					article.CreatedAt = created
				}
			}
			article.CreatedAt = article.CreatedAt.UTC().Truncate(time.Microsecond)

			if _, err := tx.ExecContext(ctx, query,
				int64(article.ID), article.Title, article.Summary,
				nullTime(article.PublishedAt), formatTime(article.CreatedAt),
			); err != nil {
				return fmt.Errorf("save article %d: %w", article.ID, err)
			}
		}
		return nil
	})
}

const articleColumns = "article_id, title, summary, published_at, created_at"

func scanArticle(row interface{ Scan(...any) error }) (*core.Article, error) {
	var (
		a                  core.Article
		summary            sql.NullString
		published, created any
	)
	if err := row.Scan(&a.ID, &a.Title, &summary, &published, &created); err != nil {
		return nil, err
	}
	a.Summary = summary.String
	var err error
	if a.PublishedAt, err = asTime(published); err != nil {
		return nil, err
	}
	if a.CreatedAt, err = asTime(created); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetArticle retrieves a single article by ID.
func (r *ArticleRepository) GetArticle(ctx context.Context, id core.ID) (*core.Article, error) {
	row := r.db.conn.QueryRowContext(ctx, "SELECT "+articleColumns+" FROM articles WHERE article_id = ?", int64(id))
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("article %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, r.db.classify(err)
	}
	return a, nil
}

// GetArticles retrieves multiple articles by their IDs.
func (r *ArticleRepository) GetArticles(ctx context.Context, ids ...core.ID) (map[core.ID]*core.Article, error) {
	result := make(map[core.ID]*core.Article, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := "SELECT " + articleColumns + " FROM articles WHERE article_id IN (" + placeholders(len(ids)) + ")"
	rows, err := r.db.conn.QueryContext(ctx, query, idArgs(ids)...)
	if err != nil {
		return nil, r.db.classify(err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			r.db.logger.Warn("skipping unreadable article", "err", err)
			continue
		}
		result[a.ID] = a
	}
	return result, r.db.classify(rows.Err())
}

// ListSummaries returns every non-empty summary in id order.
func (r *ArticleRepository) ListSummaries(ctx context.Context) ([]string, error) {
	rows, err := r.db.conn.QueryContext(ctx,
		"SELECT summary FROM articles WHERE summary IS NOT NULL AND summary <> '' ORDER BY article_id")
	if err != nil {
		return nil, r.db.classify(err)
	}
	defer rows.Close()

	var summaries []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, r.db.classify(rows.Err())
}

// CountArticles counts articles created at or after since.
func (r *ArticleRepository) CountArticles(ctx context.Context, since time.Time) (int, error) {
	var (
		count int
		err   error
	)
	if since.IsZero() {
		err = r.db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles").Scan(&count)
	} else {
		err = r.db.conn.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM articles WHERE created_at >= ?", formatTime(since)).Scan(&count)
	}
	return count, r.db.classify(err)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func idArgs(ids []core.ID) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = int64(id)
	}
	return args
}
