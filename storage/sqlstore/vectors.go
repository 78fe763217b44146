package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/articlevec/core"
	"github.com/poiesic/articlevec/storage"
)

// ArticleVectorRepository implements storage.ArticleVectorRepository over the
// article_semantic_vectors table.
type ArticleVectorRepository struct {
	db  *DB
	dim int
}

var _ storage.ArticleVectorRepository = (*ArticleVectorRepository)(nil)

// Close is a no-op; the pool is closed with the DB.
func (r *ArticleVectorRepository) Close() error {
	return nil
}

const articleVectorColumns = "article_id, vector, keywords, representative_vector, model_version, source_hash, created_at, updated_at"

type articleVectorRow struct {
	id                    core.ID
	vector, keywords, rep sql.NullString
	modelVersion          string
	sourceHash            int64
	createdAt, updatedAt  any
}

func (row *articleVectorRow) scan(s interface{ Scan(...any) error }) error {
	return s.Scan(&row.id, &row.vector, &row.keywords, &row.rep, &row.modelVersion, &row.sourceHash, &row.createdAt, &row.updatedAt)
}

// decode turns the JSON columns into an ArticleVector. A NULL
// representative_vector decodes to an absent vector.
func (row *articleVectorRow) decode() (*core.ArticleVector, error) {
	vectors, err := storage.UnmarshalKeywordVectors([]byte(row.vector.String))
	if err != nil {
		return nil, err
	}
	keywords, err := storage.UnmarshalKeywordScores([]byte(row.keywords.String))
	if err != nil {
		return nil, err
	}
	rep, err := storage.UnmarshalVector([]byte(row.rep.String))
	if err != nil {
		return nil, err
	}
	created, err := asTime(row.createdAt)
	if err != nil {
		return nil, err
	}
	updated, err := asTime(row.updatedAt)
	if err != nil {
		return nil, err
	}
	return &core.ArticleVector{
		ArticleID:            row.id,
		KeywordScores:        keywords,
		KeywordVectors:       vectors,
		RepresentativeVector: rep,
		ModelVersion:         row.modelVersion,
		SourceHash:           uint64(row.sourceHash),
		CreatedAt:            created,
		UpdatedAt:            updated,
	}, nil
}

// UpsertArticleVector writes v, keeping created_at from the first write and
// moving updated_at strictly forward.
func (r *ArticleVectorRepository) UpsertArticleVector(ctx context.Context, v *core.ArticleVector) (*core.ArticleVector, error) {
	if err := core.ValidateArticleVector(v, r.dim); err != nil {
		return nil, err
	}
	vectors, err := storage.MarshalKeywordVectors(v.KeywordVectors)
	if err != nil {
		return nil, err
	}
	keywords, err := storage.MarshalKeywordScores(v.KeywordScores)
	if err != nil {
		return nil, err
	}
	rep, err := storage.MarshalVector(v.RepresentativeVector)
	if err != nil {
		return nil, err
	}

	stored := *v
	query := r.db.dialect.upsert("article_semantic_vectors", "article_id",
		[]string{"article_id", "vector", "keywords", "representative_vector", "model_version", "source_hash", "created_at", "updated_at"},
		[]string{"vector", "keywords", "representative_vector", "model_version", "source_hash", "updated_at"})
	lookup := "SELECT created_at, updated_at FROM article_semantic_vectors WHERE article_id = ?" + r.db.dialect.forUpdate()

	err = r.db.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC().Truncate(time.Microsecond)
		stored.CreatedAt, stored.UpdatedAt = now, now

		var rawCreated, rawUpdated any
		err := tx.QueryRowContext(ctx, lookup, int64(v.ArticleID)).Scan(&rawCreated, &rawUpdated)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return err
		default:
			created, err := asTime(rawCreated)
			if err != nil {
				return err
			}
			previous, err := asTime(rawUpdated)
			if err != nil {
				return err
			}
			stored.CreatedAt = created
			if !now.After(previous) {
				stored.UpdatedAt = previous.Add(time.Microsecond)
			}
		}

		var repArg any
		if rep != nil {
			repArg = string(rep)
		}
		_, err = tx.ExecContext(ctx, query,
			int64(stored.ArticleID), string(vectors), string(keywords), repArg,
			stored.ModelVersion, int64(stored.SourceHash),
			formatTime(stored.CreatedAt), formatTime(stored.UpdatedAt),
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("upsert article vector %d: %w", v.ArticleID, err)
	}
	return &stored, nil
}

// GetArticleVector retrieves the vector of one article.
func (r *ArticleVectorRepository) GetArticleVector(ctx context.Context, id core.ID) (*core.ArticleVector, error) {
	var row articleVectorRow
	err := row.scan(r.db.conn.QueryRowContext(ctx,
		"SELECT "+articleVectorColumns+" FROM article_semantic_vectors WHERE article_id = ?", int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("article vector %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, r.db.classify(err)
	}
	v, err := row.decode()
	if err != nil {
		return nil, fmt.Errorf("article vector %d: %w", id, err)
	}
	return v, nil
}

// GetArticleVectors retrieves vectors for multiple articles, skipping
// unreadable rows.
func (r *ArticleVectorRepository) GetArticleVectors(ctx context.Context, ids ...core.ID) (map[core.ID]*core.ArticleVector, error) {
	result := make(map[core.ID]*core.ArticleVector, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	rows, err := r.db.conn.QueryContext(ctx,
		"SELECT "+articleVectorColumns+" FROM article_semantic_vectors WHERE article_id IN ("+placeholders(len(ids))+")",
		idArgs(ids)...)
	if err != nil {
		return nil, r.db.classify(err)
	}
	defer rows.Close()

	for rows.Next() {
		var row articleVectorRow
		if err := row.scan(rows); err != nil {
			return nil, err
		}
		v, err := row.decode()
		if err != nil {
			r.db.logger.Warn("skipping unreadable article vector", "article_id", row.id, "err", err)
			continue
		}
		result[v.ArticleID] = v
	}
	return result, r.db.classify(rows.Err())
}

// ListMissing returns article ids newest first, optionally only those
// without a stored vector.
func (r *ArticleVectorRepository) ListMissing(ctx context.Context, limit int, force bool) ([]core.ID, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", storage.ErrInvalidQuery, limit)
	}
	query := `SELECT a.article_id FROM articles a
		LEFT JOIN article_semantic_vectors v ON v.article_id = a.article_id
		WHERE v.article_id IS NULL
		ORDER BY a.created_at DESC, a.article_id DESC LIMIT ?`
	if force {
		query = `SELECT article_id FROM articles ORDER BY created_at DESC, article_id DESC LIMIT ?`
	}
	return r.queryIDs(ctx, query, limit)
}

// ListStale returns ids of vectors from another model version or with an
// undecodable payload, in id order.
func (r *ArticleVectorRepository) ListStale(ctx context.Context, modelVersion string, limit int) ([]core.ID, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", storage.ErrInvalidQuery, limit)
	}
	rows, err := r.db.conn.QueryContext(ctx,
		"SELECT "+articleVectorColumns+" FROM article_semantic_vectors ORDER BY article_id")
	if err != nil {
		return nil, r.db.classify(err)
	}
	defer rows.Close()

	var ids []core.ID
	for rows.Next() && len(ids) < limit {
		var row articleVectorRow
		if err := row.scan(rows); err != nil {
			return nil, err
		}
		if row.modelVersion != modelVersion {
			ids = append(ids, row.id)
			continue
		}
		if _, err := row.decode(); err != nil {
			ids = append(ids, row.id)
		}
	}
	return ids, r.db.classify(rows.Err())
}

// Representatives returns every usable representative vector in id order.
func (r *ArticleVectorRepository) Representatives(ctx context.Context) ([]core.Candidate, error) {
	rows, err := r.db.conn.QueryContext(ctx,
		"SELECT article_id, representative_vector FROM article_semantic_vectors WHERE representative_vector IS NOT NULL ORDER BY article_id")
	if err != nil {
		return nil, r.db.classify(err)
	}
	defer rows.Close()

	var candidates []core.Candidate
	for rows.Next() {
		var (
			id  core.ID
			raw sql.NullString
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		vec, err := storage.UnmarshalVector([]byte(raw.String))
		if err != nil {
			r.db.logger.Warn("skipping unreadable representative vector", "article_id", id, "err", err)
			continue
		}
		if vec == nil {
			continue
		}
		if len(vec) != r.dim {
			r.db.logger.Warn("skipping article vector with wrong dimension", "article_id", id, "expected", r.dim, "got", len(vec))
			continue
		}
		candidates = append(candidates, core.Candidate{ID: id, Vector: vec})
	}
	return candidates, r.db.classify(rows.Err())
}

// CountArticleVectors counts stored article vectors.
func (r *ArticleVectorRepository) CountArticleVectors(ctx context.Context) (int, error) {
	var count int
	err := r.db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM article_semantic_vectors").Scan(&count)
	return count, r.db.classify(err)
}

func (r *ArticleVectorRepository) queryIDs(ctx context.Context, query string, args ...any) ([]core.ID, error) {
	rows, err := r.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.db.classify(err)
	}
	defer rows.Close()

	var ids []core.ID
	for rows.Next() {
		var id core.ID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, r.db.classify(rows.Err())
}

// UserVectorRepository implements storage.UserVectorRepository over the
// user_vectors table.
type UserVectorRepository struct {
	db  *DB
	dim int
}

var _ storage.UserVectorRepository = (*UserVectorRepository)(nil)

// Close is a no-op; the pool is closed with the DB.
func (r *UserVectorRepository) Close() error {
	return nil
}

// UpsertUserVector replaces the profile of v.UserID.
func (r *UserVectorRepository) UpsertUserVector(ctx context.Context, v *core.UserVector) (*core.UserVector, error) {
	if err := core.ValidateUserVector(v, r.dim); err != nil {
		return nil, err
	}
	data, err := storage.MarshalVector(v.Vector)
	if err != nil {
		return nil, err
	}

	stored := *v
	query := r.db.dialect.upsert("user_vectors", "user_id",
		[]string{"user_id", "vector", "model_version", "updated_at"},
		[]string{"vector", "model_version", "updated_at"})
	lookup := "SELECT updated_at FROM user_vectors WHERE user_id = ?" + r.db.dialect.forUpdate()

	err = r.db.withTx(ctx, func(tx *sql.Tx) error {
		stored.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)

		var raw any
		err := tx.QueryRowContext(ctx, lookup, int64(v.UserID)).Scan(&raw)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return err
		default:
			previous, err := asTime(raw)
			if err != nil {
				return err
			}
			if !stored.UpdatedAt.After(previous) {
				stored.UpdatedAt = previous.Add(time.Microsecond)
			}
		}

		_, err = tx.ExecContext(ctx, query, int64(stored.UserID), string(data), stored.ModelVersion, formatTime(stored.UpdatedAt))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("upsert user vector %d: %w", v.UserID, err)
	}
	return &stored, nil
}

// GetUserVector retrieves a user's profile vector.
func (r *UserVectorRepository) GetUserVector(ctx context.Context, id core.ID) (*core.UserVector, error) {
	var (
		raw     sql.NullString
		version string
		updated any
	)
	err := r.db.conn.QueryRowContext(ctx,
		"SELECT vector, model_version, updated_at FROM user_vectors WHERE user_id = ?", int64(id)).
		Scan(&raw, &version, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user vector %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, r.db.classify(err)
	}

	vec, err := storage.UnmarshalVector([]byte(raw.String))
	if err != nil {
		return nil, fmt.Errorf("user vector %d: %w", id, err)
	}
	if vec == nil {
		return nil, fmt.Errorf("user vector %d: %w", id, storage.ErrNotFound)
	}
	updatedAt, err := asTime(updated)
	if err != nil {
		return nil, fmt.Errorf("user vector %d: %w", id, err)
	}
	return &core.UserVector{UserID: id, Vector: vec, ModelVersion: version, UpdatedAt: updatedAt}, nil
}

// StopwordRepository reads and fills the stopwords table.
type StopwordRepository struct {
	db *DB
}

var _ storage.StopwordSource = (*StopwordRepository)(nil)

// Stopwords returns every word in the table.
func (r *StopwordRepository) Stopwords(ctx context.Context) ([]string, error) {
	rows, err := r.db.conn.QueryContext(ctx, "SELECT word FROM stopwords ORDER BY word")
	if err != nil {
		return nil, r.db.classify(err)
	}
	defer rows.Close()

	var words []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, err
		}
		words = append(words, w)
	}
	return words, r.db.classify(rows.Err())
}

// AddStopwords inserts words that are not already present.
func (r *StopwordRepository) AddStopwords(ctx context.Context, words ...string) error {
	query := r.db.dialect.insertIgnore("stopwords", "word")
	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		for _, w := range words {
			if w == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, query, w); err != nil {
				return err
			}
		}
		return nil
	})
}
