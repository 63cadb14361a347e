package persistence

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTx satisfies pgx.Tx; only Commit and Rollback are exercised.
type stubTx struct {
	pgx.Tx
	committed  int
	rolledBack int
}

func (s *stubTx) Commit(context.Context) error   { s.committed++; return nil }
func (s *stubTx) Rollback(context.Context) error { s.rolledBack++; return nil }

func TestTxInfoFromContext(t *testing.T) {
	_, ok := TxInfoFromContext(context.Background())
	assert.False(t, ok)

	tx := &stubTx{}
	info, ok := TxInfoFromContext(WithTx(context.Background(), tx, true))
	require.True(t, ok)
	assert.Same(t, tx, info.Tx)
	assert.True(t, info.Owned)

	_, ok = TxInfoFromContext(WithTx(context.Background(), nil, true))
	assert.False(t, ok)
}

func TestExecutor_PrefersTransaction(t *testing.T) {
	tx := &stubTx{}
	assert.Same(t, tx, Executor(WithTx(context.Background(), tx, true), nil))
}

func TestPostgresUnitOfWork_OwnershipRules(t *testing.T) {
	uow := NewPostgresUnitOfWork(nil)
	tx := &stubTx{}
	outer := WithTx(context.Background(), tx, true)

	// joining an existing transaction never touches the pool
	inner, err := uow.Begin(outer)
	require.NoError(t, err)

	require.NoError(t, uow.Commit(inner))
	require.NoError(t, uow.Rollback(inner))
	assert.Zero(t, tx.committed)
	assert.Zero(t, tx.rolledBack)

	require.NoError(t, uow.Commit(outer))
	assert.Equal(t, 1, tx.committed)

	assert.ErrorIs(t, uow.Commit(context.Background()), ErrNoTransaction)
}
