package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"
)

// Config holds database configuration.
type Config struct {
	// URL is the PostgreSQL connection string. Empty selects SQLite.
	URL string
	// SQLitePath defaults to ~/.occusafe/occusafe.db.
	SQLitePath string
	MaxConns   int
}

// Handle is an open database. Exactly one of SQL or Pool is set, matching Driver.
type Handle struct {
	Driver Driver
	SQL    *sql.DB
	Pool   *pgxpool.Pool
}

// Open connects to the backend selected by cfg.URL.
func Open(ctx context.Context, cfg Config) (*Handle, error) {
	switch driver := DetectDriver(cfg.URL); driver {
	case DriverPostgres:
		pool, err := OpenPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &Handle{Driver: driver, Pool: pool}, nil
	case DriverSQLite:
		path := cfg.SQLitePath
		if path == "" && cfg.URL != "" {
			path = strings.TrimPrefix(cfg.URL, "sqlite://")
		}
		db, err := OpenSQLite(ctx, path)
		if err != nil {
			return nil, err
		}
		return &Handle{Driver: driver, SQL: db}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// Ping verifies the connection is still alive.
func (h *Handle) Ping(ctx context.Context) error {
	if h.Pool != nil {
		return h.Pool.Ping(ctx)
	}
	return h.SQL.PingContext(ctx)
}

// Close releases the underlying connection.
func (h *Handle) Close() error {
	if h.Pool != nil {
		h.Pool.Close()
		return nil
	}
	if h.SQL != nil {
		return h.SQL.Close()
	}
	return nil
}

// DefaultSQLitePath returns the default SQLite database path.
func DefaultSQLitePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".occusafe", "occusafe.db")
}

// OpenSQLite opens a SQLite file (created if missing) with WAL and a busy timeout.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		path = DefaultSQLitePath()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn := path + sep + "_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	return db, nil
}

// OpenPostgres creates a pgx pool and verifies it with a ping.
func OpenPostgres(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is required for PostgreSQL")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 && cfg.MaxConns <= 1<<15 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}
