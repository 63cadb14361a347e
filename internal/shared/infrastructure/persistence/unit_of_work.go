package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresUnitOfWork opens pgx transactions and threads them through ctx.
// A nested Begin joins the outer transaction; only the outermost scope commits.
type PostgresUnitOfWork struct {
	pool *pgxpool.Pool
}

func NewPostgresUnitOfWork(pool *pgxpool.Pool) *PostgresUnitOfWork {
	return &PostgresUnitOfWork{pool: pool}
}

func (u *PostgresUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	if info, ok := TxInfoFromContext(ctx); ok {
		return WithTx(ctx, info.Tx, false), nil
	}
	tx, err := u.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return WithTx(ctx, tx, true), nil
}

func (u *PostgresUnitOfWork) Commit(ctx context.Context) error {
	info, err := ownedTx(ctx)
	if err != nil || info == nil {
		return err
	}
	if err := info.Tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Rollback after a successful or failed Commit is a no-op.
func (u *PostgresUnitOfWork) Rollback(ctx context.Context) error {
	info, err := ownedTx(ctx)
	if err != nil || info == nil {
		return err
	}
	if err := info.Tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}

// ownedTx returns nil info for a joined transaction.
func ownedTx(ctx context.Context) (*TxInfo, error) {
	info, ok := TxInfoFromContext(ctx)
	if !ok {
		return nil, ErrNoTransaction
	}
	if !info.Owned {
		return nil, nil
	}
	return &info, nil
}
