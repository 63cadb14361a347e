package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/occusafe/occusafe/internal/shared/infrastructure/persistence"
)

const pgInsert = `
	INSERT INTO outbox (event_id, aggregate_type, aggregate_id, routing_key, payload, metadata, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id`

const pgSelectColumns = `
	SELECT id, event_id, aggregate_type, aggregate_id, routing_key, payload, metadata,
	       created_at, published_at, next_retry_at, retry_count, last_error,
	       dead_lettered_at, dead_letter_reason
	FROM outbox`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Save(ctx context.Context, msg *Message) error {
	return r.insert(ctx, persistence.Executor(ctx, r.pool), msg)
}

// SaveBatch joins the caller's transaction or opens its own.
func (r *PostgresRepository) SaveBatch(ctx context.Context, msgs []*Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if info, ok := persistence.TxInfoFromContext(ctx); ok {
		return r.insertAll(ctx, info.Tx, msgs)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := r.insertAll(ctx, tx, msgs); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PostgresRepository) insertAll(ctx context.Context, exec persistence.DBExecutor, msgs []*Message) error {
	for _, msg := range msgs {
		if err := r.insert(ctx, exec, msg); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepository) insert(ctx context.Context, exec persistence.DBExecutor, msg *Message) error {
	err := exec.QueryRow(ctx, pgInsert,
		msg.EventID, msg.AggregateType, msg.AggregateID, msg.RoutingKey,
		msg.Payload, msg.Metadata, msg.CreatedAt,
	).Scan(&msg.ID)
	if err != nil {
		return fmt.Errorf("insert outbox %s: %w", msg.RoutingKey, err)
	}
	return nil
}

func (r *PostgresRepository) GetUnpublished(ctx context.Context, limit int) ([]*Message, error) {
	rows, err := r.pool.Query(ctx, pgSelectColumns+`
		WHERE published_at IS NULL
		  AND dead_lettered_at IS NULL
		  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
		ORDER BY created_at, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPgMessages(rows)
}

func (r *PostgresRepository) MarkPublished(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE outbox SET published_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *PostgresRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE outbox
		SET retry_count = retry_count + 1, last_error = $2, next_retry_at = $3
		WHERE id = $1`, id, errMsg, nextRetryAt)
	return err
}

func (r *PostgresRepository) MarkDead(ctx context.Context, id int64, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE outbox
		SET retry_count = retry_count + 1, dead_lettered_at = NOW(), dead_letter_reason = $2
		WHERE id = $1`, id, reason)
	return err
}

func (r *PostgresRepository) DeleteOld(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM outbox
		WHERE published_at IS NOT NULL AND published_at < $1`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM outbox WHERE published_at IS NULL AND dead_lettered_at IS NULL`).Scan(&n)
	return n, err
}

func scanPgMessages(rows pgx.Rows) ([]*Message, error) {
	var out []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(
			&m.ID, &m.EventID, &m.AggregateType, &m.AggregateID, &m.RoutingKey, &m.Payload, &m.Metadata,
			&m.CreatedAt, &m.PublishedAt, &m.NextRetryAt, &m.RetryCount, &m.LastError,
			&m.DeadLetteredAt, &m.DeadLetterReason,
		); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
