package persistence

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func openLedger(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`CREATE TABLE ledger (org TEXT PRIMARY KEY, tier TEXT NOT NULL)`)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func countRows(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM ledger`).Scan(&n))
	return n
}

func TestSQLiteUnitOfWork_CommitPersists(t *testing.T) {
	db := openLedger(t)
	uow := NewSQLiteUnitOfWork(db)

	txCtx, err := uow.Begin(context.Background())
	require.NoError(t, err)

	_, err = SQLiteExecutor(txCtx, db).ExecContext(txCtx, `INSERT INTO ledger VALUES ('acme', 'premium')`)
	require.NoError(t, err)
	require.NoError(t, uow.Commit(txCtx))

	assert.Equal(t, 1, countRows(t, db))
}

func TestSQLiteUnitOfWork_RollbackDiscards(t *testing.T) {
	db := openLedger(t)
	uow := NewSQLiteUnitOfWork(db)

	txCtx, err := uow.Begin(context.Background())
	require.NoError(t, err)

	_, err = SQLiteExecutor(txCtx, db).ExecContext(txCtx, `INSERT INTO ledger VALUES ('acme', 'premium')`)
	require.NoError(t, err)
	require.NoError(t, uow.Rollback(txCtx))

	assert.Equal(t, 0, countRows(t, db))
}

func TestSQLiteUnitOfWork_NestedBeginJoinsOuter(t *testing.T) {
	db := openLedger(t)
	uow := NewSQLiteUnitOfWork(db)

	outer, err := uow.Begin(context.Background())
	require.NoError(t, err)
	inner, err := uow.Begin(outer)
	require.NoError(t, err)

	outerInfo, _ := SQLiteTxInfoFromContext(outer)
	innerInfo, ok := SQLiteTxInfoFromContext(inner)
	require.True(t, ok)
	assert.Same(t, outerInfo.Tx, innerInfo.Tx)
	assert.False(t, innerInfo.Owned)

	_, err = SQLiteExecutor(inner, db).ExecContext(inner, `INSERT INTO ledger VALUES ('acme', 'basic')`)
	require.NoError(t, err)

	// inner commit is a no-op; outer rollback discards everything
	require.NoError(t, uow.Commit(inner))
	require.NoError(t, uow.Rollback(outer))
	assert.Equal(t, 0, countRows(t, db))
}

func TestSQLiteUnitOfWork_NoTransaction(t *testing.T) {
	uow := NewSQLiteUnitOfWork(openLedger(t))

	assert.ErrorIs(t, uow.Commit(context.Background()), ErrNoTransaction)
	assert.ErrorIs(t, uow.Rollback(context.Background()), ErrNoTransaction)
}

func TestSQLiteExecutor_FallsBackToDB(t *testing.T) {
	db := openLedger(t)
	assert.Same(t, db, SQLiteExecutor(context.Background(), db))
}

func TestSQLiteUnitOfWork_RollbackAfterCommitIsNoop(t *testing.T) {
	db := openLedger(t)
	uow := NewSQLiteUnitOfWork(db)

	txCtx, err := uow.Begin(context.Background())
	require.NoError(t, err)
	_, err = SQLiteExecutor(txCtx, db).ExecContext(txCtx, `INSERT INTO ledger VALUES ('acme', 'enterprise')`)
	require.NoError(t, err)
	require.NoError(t, uow.Commit(txCtx))

	assert.NoError(t, uow.Rollback(txCtx))
	assert.Equal(t, 1, countRows(t, db))
}
