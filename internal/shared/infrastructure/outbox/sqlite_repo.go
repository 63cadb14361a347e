package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/occusafe/occusafe/internal/shared/infrastructure/persistence"
)

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Save(ctx context.Context, msg *Message) error {
	return r.insert(ctx, persistence.SQLiteExecutor(ctx, r.db), msg)
}

// SaveBatch joins the caller's transaction or opens its own.
func (r *SQLiteRepository) SaveBatch(ctx context.Context, msgs []*Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if info, ok := persistence.SQLiteTxInfoFromContext(ctx); ok {
		for _, m := range msgs {
			if err := r.insert(ctx, info.Tx, m); err != nil {
				return err
			}
		}
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, m := range msgs {
		if err := r.insert(ctx, tx, m); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) insert(ctx context.Context, exec persistence.SQLExecutor, msg *Message) error {
	res, err := exec.ExecContext(ctx, `
		INSERT INTO outbox (event_id, aggregate_type, aggregate_id, routing_key, payload, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.EventID.String(), msg.AggregateType, msg.AggregateID.String(), msg.RoutingKey,
		string(msg.Payload), string(msg.Metadata), persistence.FormatSQLiteTime(msg.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert outbox %s: %w", msg.RoutingKey, err)
	}
	msg.ID, err = res.LastInsertId()
	return err
}

func (r *SQLiteRepository) GetUnpublished(ctx context.Context, limit int) ([]*Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_id, aggregate_type, aggregate_id, routing_key, payload, metadata,
		       created_at, published_at, next_retry_at, retry_count, last_error,
		       dead_lettered_at, dead_letter_reason
		FROM outbox
		WHERE published_at IS NULL
		  AND dead_lettered_at IS NULL
		  AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY created_at, id
		LIMIT ?`, persistence.FormatSQLiteTime(time.Now()), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		m, err := scanSQLiteMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanSQLiteMessage(rows *sql.Rows) (*Message, error) {
	var (
		m                             Message
		eventID, aggregateID, created string
		payload                       string
		metadata                      sql.NullString
		published, nextRetry, dead    sql.NullString
		lastErr, deadReason           sql.NullString
	)
	if err := rows.Scan(&m.ID, &eventID, &m.AggregateType, &aggregateID, &m.RoutingKey, &payload, &metadata,
		&created, &published, &nextRetry, &m.RetryCount, &lastErr, &dead, &deadReason); err != nil {
		return nil, err
	}

	var err error
	if m.EventID, err = uuid.Parse(eventID); err != nil {
		return nil, fmt.Errorf("outbox %d event_id: %w", m.ID, err)
	}
	if m.AggregateID, err = uuid.Parse(aggregateID); err != nil {
		return nil, fmt.Errorf("outbox %d aggregate_id: %w", m.ID, err)
	}
	if m.CreatedAt, err = persistence.ParseSQLiteTime(created); err != nil {
		return nil, fmt.Errorf("outbox %d created_at: %w", m.ID, err)
	}
	if m.PublishedAt, err = persistence.ParseNullSQLiteTime(published); err != nil {
		return nil, err
	}
	if m.NextRetryAt, err = persistence.ParseNullSQLiteTime(nextRetry); err != nil {
		return nil, err
	}
	if m.DeadLetteredAt, err = persistence.ParseNullSQLiteTime(dead); err != nil {
		return nil, err
	}

	m.Payload = []byte(payload)
	if metadata.Valid {
		m.Metadata = []byte(metadata.String)
	}
	if lastErr.Valid {
		m.LastError = &lastErr.String
	}
	if deadReason.Valid {
		m.DeadLetterReason = &deadReason.String
	}
	return &m, nil
}

func (r *SQLiteRepository) MarkPublished(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE outbox SET published_at = ? WHERE id = ?`, persistence.FormatSQLiteTime(time.Now()), id)
	return err
}

func (r *SQLiteRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE outbox SET retry_count = retry_count + 1, last_error = ?, next_retry_at = ?
		WHERE id = ?`, errMsg, persistence.FormatSQLiteTime(nextRetryAt), id)
	return err
}

func (r *SQLiteRepository) MarkDead(ctx context.Context, id int64, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE outbox SET retry_count = retry_count + 1, dead_lettered_at = ?, dead_letter_reason = ?
		WHERE id = ?`, persistence.FormatSQLiteTime(time.Now()), reason, id)
	return err
}

func (r *SQLiteRepository) DeleteOld(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < ?`,
		persistence.FormatSQLiteTime(time.Now().Add(-olderThan)))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM outbox WHERE published_at IS NULL AND dead_lettered_at IS NULL`).Scan(&n)
	return n, err
}
