// Package migrations embeds the schema for both backends.
// Every statement is idempotent, so Run is safe on each start-up.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

// upFiles lists dir's *.up.sql files in lexical order.
func upFiles(dir string) ([]string, error) {
	entries, err := fs.ReadDir(files, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, dir+"/"+e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func apply(ctx context.Context, dir string, exec func(ctx context.Context, stmt string) error) error {
	names, err := upFiles(dir)
	if err != nil {
		return err
	}
	for _, name := range names {
		body, err := files.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if err := exec(ctx, string(body)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", name, err)
		}
	}
	return nil
}

// RunSQLite applies the SQLite schema.
func RunSQLite(ctx context.Context, db *sql.DB) error {
	return apply(ctx, "sqlite", func(ctx context.Context, stmt string) error {
		_, err := db.ExecContext(ctx, stmt)
		return err
	})
}

// postgresLockID is the advisory lock key held while the schema is applied.
const postgresLockID int64 = 0x6f63637573616665

// RunPostgres applies the PostgreSQL schema. Concurrent callers wait on an
// advisory lock so two instances never race on the same CREATE statements.
func RunPostgres(ctx context.Context, pool *pgxpool.Pool) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire migration connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, postgresLockID); err != nil {
		return fmt.Errorf("failed to take migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, postgresLockID)
	}()

	return apply(ctx, "postgres", func(ctx context.Context, stmt string) error {
		_, err := conn.Exec(ctx, stmt)
		return err
	})
}
