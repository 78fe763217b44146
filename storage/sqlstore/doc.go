// Package sqlstore implements the storage repositories over a relational
// database shared with the article service.
//
// Two dialects are supported. MySQL is the production database, reached
// through github.com/go-sql-driver/mysql. SQLite, through the pure-Go
// modernc.org/sqlite driver, serves local runs and tests. Both use the same
// tables:
//
//	articles(article_id, title, summary, published_at, created_at)
//	article_semantic_vectors(article_id, vector, keywords, representative_vector,
//	                         model_version, source_hash, created_at, updated_at)
//	user_vectors(user_id, vector, model_version, updated_at)
//	stopwords(word)
//
// Vector columns hold JSON text in the format defined by package storage.
// Rows whose payload cannot be decoded are skipped with a warning by bulk
// reads and reported by ListStale so they can be re-vectorized.
package sqlstore
