package badger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/articlevec/core"
	"github.com/poiesic/articlevec/storage"
)

// articleBatchSize bounds the articles written per transaction.
const articleBatchSize = 500

// ArticleRepository implements storage.ArticleRepository for BadgerDB.
type ArticleRepository struct {
	backend *Backend
}

var _ storage.ArticleRepository = (*ArticleRepository)(nil)

// NewArticleRepository creates a new ArticleRepository.
func NewArticleRepository(backend *Backend) (*ArticleRepository, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	return &ArticleRepository{backend: backend}, nil
}

// Close is a no-op; the backend is closed separately.
func (r *ArticleRepository) Close() error {
	return nil
}

// SaveArticles inserts or replaces articles and keeps the date index current.
func (r *ArticleRepository) SaveArticles(ctx context.Context, articles ...*core.Article) error {
	for _, a := range articles {
		if a == nil || a.ID <= 0 {
			return core.Invalid(core.ErrInvalidID)
		}
	}
	for chunk := range slices.Chunk(articles, articleBatchSize) {
		err := r.backend.WithTxContext(ctx, func(tx *badger.Txn) error {
			for _, article := range chunk {
				key := makeArticleKey(article.ID)
				old, err := readArticle(tx, key)
				if err != nil && !isUnreadable(err) {
					return err
				}

				if article.CreatedAt.IsZero() {
					if old != nil {
						article.CreatedAt = old.CreatedAt
					} else {
						article.CreatedAt = time.Now().UTC()
					}
				}
				article.CreatedAt = article.CreatedAt.UTC().Truncate(time.Microsecond)

				if err := tx.Set(key, storage.MarshalArticle(article)); err != nil {
					return err
				}

				// Move the date index entry if the creation time changed
				if old != nil && !old.CreatedAt.Equal(article.CreatedAt) {
					if err := tx.Delete(makeArticleDateKey(old.CreatedAt, old.ID)); err != nil {
						return err
					}
				}
				if err := tx.Set(makeArticleDateKey(article.CreatedAt, article.ID), storage.MarshalID(article.ID)); err != nil {
					return err
				}
			}
			return tx.Commit()
		}, true)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetArticle retrieves a single article by ID.
func (r *ArticleRepository) GetArticle(ctx context.Context, id core.ID) (*core.Article, error) {
	var result *core.Article
	err := r.backend.WithTxContext(ctx, func(tx *badger.Txn) error {
		var err error
		result, err = readArticle(tx, makeArticleKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("article %d: %w", id, storage.ErrNotFound)
		}
		return nil
	}, false)
	return result, err
}

// GetArticles retrieves multiple articles by their IDs.
func (r *ArticleRepository) GetArticles(ctx context.Context, ids ...core.ID) (map[core.ID]*core.Article, error) {
	result := make(map[core.ID]*core.Article, len(ids))
	err := r.backend.WithTxContext(ctx, func(tx *badger.Txn) error {
		for _, id := range ids {
			article, err := readArticle(tx, makeArticleKey(id))
			if err != nil {
				if isUnreadable(err) {
					r.backend.logger.Warn("skipping unreadable article", "article_id", id, "err", err)
					continue
				}
				return err
			}
			if article != nil {
				result[id] = article
			}
		}
		return nil
	}, false)
	return result, err
}

// ListSummaries returns the summary of every article in id order.
func (r *ArticleRepository) ListSummaries(ctx context.Context) ([]string, error) {
	var summaries []string
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return r.backend.scanPrefix(ctx, tx, []byte(articlePrefix), true, func(_ []byte, item *badger.Item) error {
			return item.Value(func(val []byte) error {
				article, err := storage.UnmarshalArticle(val)
				if err != nil {
					r.backend.logger.Warn("skipping unreadable article", "key", string(item.Key()), "err", err)
					return nil
				}
				summaries = append(summaries, article.Summary)
				return nil
			})
		})
	}, false)
	return summaries, err
}

// CountArticles counts articles created at or after since.
func (r *ArticleRepository) CountArticles(ctx context.Context, since time.Time) (int, error) {
	count := 0
	err := r.backend.WithTxContext(ctx, func(tx *badger.Txn) error {
		if since.IsZero() {
			return r.backend.scanPrefix(ctx, tx, []byte(articlePrefix), false, func([]byte, *badger.Item) error {
				count++
				return nil
			})
		}

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(articleDatePrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Seek(makePartialArticleDateKey(since)); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// readArticle reads an article from the transaction.
func readArticle(tx *badger.Txn, key []byte) (*core.Article, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var article *core.Article
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		article, unmarshalErr = storage.UnmarshalArticle(val)
		return unmarshalErr
	})
	return article, err
}
