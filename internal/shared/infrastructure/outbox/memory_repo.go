package outbox

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository keeps messages in a slice. Transactions in ctx are ignored.
type InMemoryRepository struct {
	mu       sync.Mutex
	messages []*Message
	nextID   int64
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{nextID: 1}
}

func (r *InMemoryRepository) Save(_ context.Context, msg *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg.ID = r.nextID
	r.nextID++
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	r.messages = append(r.messages, msg)
	return nil
}

func (r *InMemoryRepository) SaveBatch(ctx context.Context, msgs []*Message) error {
	for _, m := range msgs {
		if err := r.Save(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (r *InMemoryRepository) GetUnpublished(_ context.Context, limit int) ([]*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var out []*Message
	for _, m := range r.messages {
		if len(out) >= limit {
			break
		}
		if m.PublishedAt != nil || m.DeadLetteredAt != nil {
			continue
		}
		if m.NextRetryAt != nil && m.NextRetryAt.After(now) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *InMemoryRepository) update(id int64, fn func(*Message)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id {
			fn(m)
			return
		}
	}
}

func (r *InMemoryRepository) MarkPublished(_ context.Context, id int64) error {
	now := time.Now()
	r.update(id, func(m *Message) { m.PublishedAt = &now })
	return nil
}

func (r *InMemoryRepository) MarkFailed(_ context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	r.update(id, func(m *Message) {
		m.RetryCount++
		m.LastError = &errMsg
		m.NextRetryAt = &nextRetryAt
	})
	return nil
}

func (r *InMemoryRepository) MarkDead(_ context.Context, id int64, reason string) error {
	now := time.Now()
	r.update(id, func(m *Message) {
		m.RetryCount++
		m.DeadLetteredAt = &now
		m.DeadLetterReason = &reason
	})
	return nil
}

func (r *InMemoryRepository) DeleteOld(_ context.Context, olderThan time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	kept := r.messages[:0]
	var removed int64
	for _, m := range r.messages {
		if m.PublishedAt != nil && m.PublishedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	r.messages = kept
	return removed, nil
}

func (r *InMemoryRepository) CountPending(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.messages {
		if m.PublishedAt == nil && m.DeadLetteredAt == nil {
			n++
		}
	}
	return n, nil
}

// All returns a snapshot of every stored message.
func (r *InMemoryRepository) All() []*Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Message(nil), r.messages...)
}
