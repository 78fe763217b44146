package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/poiesic/articlevec/core"
	"github.com/poiesic/articlevec/storage"
	_ "modernc.org/sqlite"
)

// Config holds connection settings.
type Config struct {
	Dialect Dialect

	// MySQL
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SQLite database file.
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN returns the data source name for the configured dialect.
func (c Config) DSN() (string, error) {
	switch c.Dialect {
	case MySQL:
		mc := mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
		mc.DBName = c.Name
		mc.ParseTime = true
		mc.Loc = time.UTC
		mc.Params = map[string]string{"charset": "utf8mb4"}
		return mc.FormatDSN(), nil
	case SQLite:
		if c.Path == "" {
			return "", errors.New("sqlite path is required")
		}
		return c.Path, nil
	default:
		return "", fmt.Errorf("unsupported sql dialect %q", c.Dialect)
	}
}

// DB wraps the database connection shared by the repositories.
type DB struct {
	conn    *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// OpenDB connects to the database and verifies the connection.
func OpenDB(ctx context.Context, cfg Config) (*DB, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open(cfg.Dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", core.ErrStorageUnavailable, err)
	}

	if cfg.Dialect == SQLite {
		// One writer at a time; WAL lets readers proceed alongside it.
		conn.SetMaxOpenConns(1)
	} else {
		maxOpen := cfg.MaxOpenConns
		if maxOpen <= 0 {
			maxOpen = 20
		}
		maxIdle := cfg.MaxIdleConns
		if maxIdle <= 0 {
			maxIdle = 5
		}
		lifetime := cfg.ConnMaxLifetime
		if lifetime <= 0 {
			lifetime = time.Hour
		}
		conn.SetMaxOpenConns(maxOpen)
		conn.SetMaxIdleConns(maxIdle)
		conn.SetConnMaxLifetime(lifetime)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: ping database: %w", core.ErrStorageUnavailable, err)
	}

	if cfg.Dialect == SQLite {
		for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000"} {
			if _, err := conn.ExecContext(ctx, pragma); err != nil {
				conn.Close()
				return nil, fmt.Errorf("%s: %w", pragma, err)
			}
		}
	}

	return &DB{
		conn:    conn,
		dialect: cfg.Dialect,
		logger:  slog.Default().With("component", "sqlstore", "dialect", string(cfg.Dialect)),
	}, nil
}

// Migrate creates missing tables and indexes.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range db.dialect.schema() {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", db.classify(err))
		}
	}
	return nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Open connects, creates the schema if needed and returns the repositories
// over one connection pool. dim is the vector dimension enforced on writes.
func Open(ctx context.Context, cfg Config, dim int) (*storage.Stores, error) {
	db, err := OpenDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return NewStores(db, dim)
}

// NewStores returns the repositories backed by db.
func NewStores(db *DB, dim int) (*storage.Stores, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", storage.ErrInvalidQuery, dim)
	}
	return &storage.Stores{
		Articles:       &ArticleRepository{db: db},
		ArticleVectors: &ArticleVectorRepository{db: db, dim: dim},
		UserVectors:    &UserVectorRepository{db: db, dim: dim},
		Stopwords:      &StopwordRepository{db: db},
		Backend:        db,
	}, nil
}

// withTx runs fn in a transaction, committing when fn succeeds.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return db.classify(err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return db.classify(err)
	}
	return db.classify(tx.Commit())
}

// classify marks connection-level failures as storage unavailability.
func (db *DB) classify(err error) error {
	if err == nil || errors.Is(err, core.ErrStorageUnavailable) {
		return err
	}
	if err.Error() == "sql: database is closed" {
		return fmt.Errorf("%w: %w", storage.ErrStorageClosed, err)
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, mysql.ErrInvalidConn) ||
		errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
	}
	return err
}
