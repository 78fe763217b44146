package sqlstore

import (
	"fmt"
	"strings"
)

// Dialect names a supported SQL database.
type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite"
)

// ParseDialect parses a driver name. "sqlite3" is accepted as SQLite.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mysql":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unsupported sql driver %q", name)
	}
}

// driverName is the database/sql driver registered for the dialect.
func (d Dialect) driverName() string {
	return string(d)
}

func (d Dialect) schema() []string {
	if d == MySQL {
		return []string{
			`CREATE TABLE IF NOT EXISTS articles (
				article_id BIGINT NOT NULL PRIMARY KEY,
				title VARCHAR(512) NOT NULL DEFAULT '',
				summary TEXT NULL,
				published_at DATETIME(6) NULL,
				created_at DATETIME(6) NOT NULL,
				INDEX idx_articles_created_at (created_at, article_id)
			) DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS article_semantic_vectors (
				article_id BIGINT NOT NULL PRIMARY KEY,
				vector LONGTEXT NULL,
				keywords LONGTEXT NULL,
				representative_vector LONGTEXT NULL,
				model_version VARCHAR(128) NOT NULL DEFAULT '',
				source_hash BIGINT NOT NULL DEFAULT 0,
				created_at DATETIME(6) NOT NULL,
				updated_at DATETIME(6) NOT NULL
			) DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS user_vectors (
				user_id BIGINT NOT NULL PRIMARY KEY,
				vector LONGTEXT NULL,
				model_version VARCHAR(128) NOT NULL DEFAULT '',
				updated_at DATETIME(6) NOT NULL
			) DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS stopwords (
				word VARCHAR(64) NOT NULL PRIMARY KEY
			) DEFAULT CHARSET=utf8mb4`,
		}
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS articles (
			article_id INTEGER PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			summary TEXT,
			published_at TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_created_at ON articles(created_at, article_id)`,
		`CREATE TABLE IF NOT EXISTS article_semantic_vectors (
			article_id INTEGER PRIMARY KEY,
			vector TEXT,
			keywords TEXT,
			representative_vector TEXT,
			model_version TEXT NOT NULL DEFAULT '',
			source_hash INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_vectors (
			user_id INTEGER PRIMARY KEY,
			vector TEXT,
			model_version TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS stopwords (
			word TEXT PRIMARY KEY
		)`,
	}
}

// upsert builds an insert that replaces the listed update columns when the
// key column already exists.
func (d Dialect) upsert(table, key string, columns, update []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), placeholders)

	sets := make([]string, len(update))
	for i, col := range update {
		if d == MySQL {
			sets[i] = fmt.Sprintf("%s = VALUES(%s)", col, col)
		} else {
			sets[i] = fmt.Sprintf("%s = excluded.%s", col, col)
		}
	}
	if d == MySQL {
		fmt.Fprintf(&b, " ON DUPLICATE KEY UPDATE %s", strings.Join(sets, ", "))
	} else {
		fmt.Fprintf(&b, " ON CONFLICT(%s) DO UPDATE SET %s", key, strings.Join(sets, ", "))
	}
	return b.String()
}

// forUpdate is appended to reads that precede a write in the same
// transaction. SQLite serializes writers on its own.
func (d Dialect) forUpdate() string {
	if d == MySQL {
		return " FOR UPDATE"
	}
	return ""
}

// insertIgnore inserts a row unless its key exists.
func (d Dialect) insertIgnore(table, column string) string {
	if d == MySQL {
		return fmt.Sprintf("INSERT IGNORE INTO %s (%s) VALUES (?)", table, column)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (?) ON CONFLICT(%s) DO NOTHING", table, column, column)
}
