package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/articlevec/core"
	"github.com/poiesic/articlevec/storage"
)

// ArticleVectorRepository implements storage.ArticleVectorRepository for BadgerDB.
type ArticleVectorRepository struct {
	backend *Backend
	dim     int
}

var _ storage.ArticleVectorRepository = (*ArticleVectorRepository)(nil)

// NewArticleVectorRepository creates a repository storing vectors of length dim.
func NewArticleVectorRepository(backend *Backend, dim int) (*ArticleVectorRepository, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", storage.ErrInvalidQuery, dim)
	}
	return &ArticleVectorRepository{backend: backend, dim: dim}, nil
}

// Close is a no-op; the backend is closed separately.
func (r *ArticleVectorRepository) Close() error {
	return nil
}

// UpsertArticleVector writes v, keeping CreatedAt from the first write.
func (r *ArticleVectorRepository) UpsertArticleVector(ctx context.Context, v *core.ArticleVector) (*core.ArticleVector, error) {
	if err := core.ValidateArticleVector(v, r.dim); err != nil {
		return nil, err
	}
	stored := *v

	err := r.backend.WithTxContext(ctx, func(tx *badger.Txn) error {
		key := makeArticleVectorKey(v.ArticleID)
		old, err := readArticleVector(tx, key)
		if err != nil && !isUnreadable(err) {
			return err
		}

		now := time.Now().UTC().Truncate(time.Microsecond)
		stored.CreatedAt = now
		stored.UpdatedAt = now
		if old != nil {
			stored.CreatedAt = old.CreatedAt
			if !now.After(old.UpdatedAt) {
				stored.UpdatedAt = old.UpdatedAt.Add(time.Microsecond)
			}
		}

		if err := tx.Set(key, storage.MarshalArticleVector(&stored)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// GetArticleVector retrieves the vector of one article.
func (r *ArticleVectorRepository) GetArticleVector(ctx context.Context, id core.ID) (*core.ArticleVector, error) {
	var result *core.ArticleVector
	err := r.backend.WithTxContext(ctx, func(tx *badger.Txn) error {
		var err error
		result, err = readArticleVector(tx, makeArticleVectorKey(id))
		if err != nil {
			return fmt.Errorf("article vector %d: %w", id, err)
		}
		if result == nil {
			return fmt.Errorf("article vector %d: %w", id, storage.ErrNotFound)
		}
		return nil
	}, false)
	return result, err
}

// GetArticleVectors retrieves vectors for multiple articles, skipping
// unreadable rows.
func (r *ArticleVectorRepository) GetArticleVectors(ctx context.Context, ids ...core.ID) (map[core.ID]*core.ArticleVector, error) {
	result := make(map[core.ID]*core.ArticleVector, len(ids))
	err := r.backend.WithTxContext(ctx, func(tx *badger.Txn) error {
		for _, id := range ids {
			v, err := readArticleVector(tx, makeArticleVectorKey(id))
			if err != nil {
				if isUnreadable(err) {
					r.backend.logger.Warn("skipping unreadable article vector", "article_id", id, "err", err)
					continue
				}
				return err
			}
			if v != nil {
				result[id] = v
			}
		}
		return nil
	}, false)
	return result, err
}

// ListMissing walks the creation date index newest first.
func (r *ArticleVectorRepository) ListMissing(ctx context.Context, limit int, force bool) ([]core.ID, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", storage.ErrInvalidQuery, limit)
	}

	var ids []core.ID
	err := r.backend.WithTxContext(ctx, func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		prefix := []byte(articleDatePrefix)
		for iter.Seek(lastArticleDateKey()); iter.ValidForPrefix(prefix) && len(ids) < limit; iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			id, ok := idFromSuffix(iter.Item().Key())
			if !ok {
				continue
			}
			if !force {
				_, err := tx.Get(makeArticleVectorKey(id))
				if err == nil {
					continue
				}
				if err != badger.ErrKeyNotFound {
					return err
				}
			}
			ids = append(ids, id)
		}
		return nil
	}, false)
	return ids, err
}

// ListStale returns ids of vectors from another model version or with an
// undecodable payload, in id order.
func (r *ArticleVectorRepository) ListStale(ctx context.Context, modelVersion string, limit int) ([]core.ID, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", storage.ErrInvalidQuery, limit)
	}

	var ids []core.ID
	errDone := errors.New("done")
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return r.backend.scanPrefix(ctx, tx, []byte(articleVectorPrefix), true, func(suffix []byte, item *badger.Item) error {
			id, ok := idFromSuffix(suffix)
			if !ok {
				return nil
			}
			stale := false
			err := item.Value(func(val []byte) error {
				v, err := storage.UnmarshalArticleVector(val)
				stale = err != nil || v.ModelVersion != modelVersion
				return nil
			})
			if err != nil {
				return err
			}
			if stale {
				ids = append(ids, id)
				if len(ids) >= limit {
					return errDone
				}
			}
			return nil
		})
	}, false)
	if errors.Is(err, errDone) {
		err = nil
	}
	return ids, err
}

// Representatives returns every usable representative vector in id order.
func (r *ArticleVectorRepository) Representatives(ctx context.Context) ([]core.Candidate, error) {
	var candidates []core.Candidate
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return r.backend.scanPrefix(ctx, tx, []byte(articleVectorPrefix), true, func(suffix []byte, item *badger.Item) error {
			return item.Value(func(val []byte) error {
				v, err := storage.UnmarshalArticleVector(val)
				if err != nil {
					id, _ := idFromSuffix(suffix)
					r.backend.logger.Warn("skipping unreadable article vector", "article_id", id, "err", err)
					return nil
				}
				if v.RepresentativeVector == nil {
					return nil
				}
				if len(v.RepresentativeVector) != r.dim {
					r.backend.logger.Warn("skipping article vector with wrong dimension",
						"article_id", v.ArticleID, "expected", r.dim, "got", len(v.RepresentativeVector))
					return nil
				}
				candidates = append(candidates, core.Candidate{ID: v.ArticleID, Vector: v.RepresentativeVector})
				return nil
			})
		})
	}, false)
	return candidates, err
}

// CountArticleVectors counts stored article vectors.
func (r *ArticleVectorRepository) CountArticleVectors(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return r.backend.scanPrefix(ctx, tx, []byte(articleVectorPrefix), false, func([]byte, *badger.Item) error {
			count++
			return nil
		})
	}, false)
	return count, err
}

func isUnreadable(err error) bool {
	return errors.Is(err, storage.ErrSerializationFailed) ||
		errors.Is(err, storage.ErrLegacyShape) ||
		errors.Is(err, storage.ErrUnsupportedSchema)
}

// readArticleVector reads an article vector from the transaction.
func readArticleVector(tx *badger.Txn, key []byte) (*core.ArticleVector, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var v *core.ArticleVector
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		v, unmarshalErr = storage.UnmarshalArticleVector(val)
		return unmarshalErr
	})
	return v, err
}

// UserVectorRepository implements storage.UserVectorRepository for BadgerDB.
type UserVectorRepository struct {
	backend *Backend
	dim     int
}

var _ storage.UserVectorRepository = (*UserVectorRepository)(nil)

// NewUserVectorRepository creates a repository storing vectors of length dim.
func NewUserVectorRepository(backend *Backend, dim int) (*UserVectorRepository, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", storage.ErrInvalidQuery, dim)
	}
	return &UserVectorRepository{backend: backend, dim: dim}, nil
}

// Close is a no-op; the backend is closed separately.
func (r *UserVectorRepository) Close() error {
	return nil
}

// UpsertUserVector replaces the profile of v.UserID.
func (r *UserVectorRepository) UpsertUserVector(ctx context.Context, v *core.UserVector) (*core.UserVector, error) {
	if err := core.ValidateUserVector(v, r.dim); err != nil {
		return nil, err
	}
	stored := *v

	err := r.backend.WithTxContext(ctx, func(tx *badger.Txn) error {
		key := makeUserVectorKey(v.UserID)
		old, err := readUserVector(tx, key)
		if err != nil && !isUnreadable(err) {
			return err
		}

		stored.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
		if old != nil && !stored.UpdatedAt.After(old.UpdatedAt) {
			stored.UpdatedAt = old.UpdatedAt.Add(time.Microsecond)
		}

		if err := tx.Set(key, storage.MarshalUserVector(&stored)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// GetUserVector retrieves a user's profile vector.
func (r *UserVectorRepository) GetUserVector(ctx context.Context, id core.ID) (*core.UserVector, error) {
	var result *core.UserVector
	err := r.backend.WithTxContext(ctx, func(tx *badger.Txn) error {
		var err error
		result, err = readUserVector(tx, makeUserVectorKey(id))
		if err != nil {
			return fmt.Errorf("user vector %d: %w", id, err)
		}
		if result == nil {
			return fmt.Errorf("user vector %d: %w", id, storage.ErrNotFound)
		}
		return nil
	}, false)
	return result, err
}

func readUserVector(tx *badger.Txn, key []byte) (*core.UserVector, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var v *core.UserVector
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		v, unmarshalErr = storage.UnmarshalUserVector(val)
		return unmarshalErr
	})
	return v, err
}
