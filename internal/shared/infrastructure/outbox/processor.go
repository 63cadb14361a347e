package outbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/occusafe/occusafe/internal/shared/infrastructure/eventbus"
	"github.com/occusafe/occusafe/pkg/observability"
)

// ProcessorConfig tunes polling, retries and retention.
type ProcessorConfig struct {
	PollInterval     time.Duration
	BatchSize        int
	MaxRetries       int
	RetryBackoffBase time.Duration
	RetryBackoffMax  time.Duration
	CleanupInterval  time.Duration
	Retention        time.Duration
}

func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PollInterval:     500 * time.Millisecond,
		BatchSize:        100,
		MaxRetries:       5,
		RetryBackoffBase: time.Second,
		RetryBackoffMax:  time.Minute,
		CleanupInterval:  time.Hour,
		Retention:        7 * 24 * time.Hour,
	}
}

// Stats is a snapshot of processor activity since start.
type Stats struct {
	Running         bool
	Published       uint64
	Failed          uint64
	Dead            uint64
	LagSeconds      float64
	LastError       string
	LastErrorAt     *time.Time
	LastProcessedAt *time.Time
}

// Processor relays outbox rows to a Publisher.
type Processor struct {
	repo      Repository
	publisher eventbus.Publisher
	config    ProcessorConfig
	logger    *slog.Logger
	metrics   observability.Metrics

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup

	statsMu sync.Mutex
	stats   Stats
}

func NewProcessor(repo Repository, publisher eventbus.Publisher, config ProcessorConfig, logger *slog.Logger, metrics observability.Metrics) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Processor{
		repo:      repo,
		publisher: publisher,
		config:    config,
		logger:    logger.With("component", "outbox"),
		metrics:   metrics,
	}
}

// Start launches the poll loop. Calling Start on a running processor does nothing.
func (p *Processor) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.stop = make(chan struct{})

	p.wg.Add(1)
	go p.run(ctx, p.stop)

	p.logger.Info("outbox processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize,
		"max_retries", p.config.MaxRetries,
	)
}

// Stop waits for the in-flight batch to finish.
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stop)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("outbox processor stopped")
}

func (p *Processor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Processor) run(ctx context.Context, stop <-chan struct{}) {
	defer p.wg.Done()

	poll := time.NewTicker(p.config.PollInterval)
	defer poll.Stop()

	cleanupEvery := p.config.CleanupInterval
	if cleanupEvery <= 0 {
		cleanupEvery = time.Hour
	}
	cleanup := time.NewTicker(cleanupEvery)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-poll.C:
			if err := p.ProcessOnce(ctx); err != nil {
				p.logger.Error("failed to process outbox batch", "error", err)
			}
		case <-cleanup.C:
			if _, err := p.Cleanup(ctx); err != nil {
				p.logger.Error("outbox cleanup failed", "error", err)
			}
		}
	}
}

// ProcessOnce publishes one batch. Publish failures are recorded per message, not returned.
func (p *Processor) ProcessOnce(ctx context.Context) error {
	msgs, err := p.repo.GetUnpublished(ctx, p.config.BatchSize)
	if err != nil {
		p.recordError(err)
		return err
	}
	p.recordLag(msgs)

	for _, msg := range msgs {
		env := msg.Envelope()
		if err := p.publisher.Publish(ctx, env); err != nil {
			p.handleFailure(ctx, msg, env, err)
			continue
		}
		if err := p.repo.MarkPublished(ctx, msg.ID); err != nil {
			p.logger.Error("failed to mark message as published", "id", msg.ID, "event_id", msg.EventID, "error", err)
			continue
		}
		p.bump(func(s *Stats) { s.Published++ })
		p.metrics.Counter(observability.MetricOutboxPublished, 1, observability.T("routing_key", msg.RoutingKey))
	}
	return nil
}

func (p *Processor) handleFailure(ctx context.Context, msg *Message, env eventbus.Envelope, cause error) {
	p.logger.Warn("failed to publish message",
		"id", msg.ID,
		"routing_key", msg.RoutingKey,
		"event_id", msg.EventID,
		"correlation_id", env.Metadata.CorrelationID,
		"retry_count", msg.RetryCount,
		"error", cause,
	)
	p.recordError(cause)

	if p.shouldDeadLetter(msg) {
		p.bump(func(s *Stats) { s.Dead++ })
		p.metrics.Counter(observability.MetricOutboxDeadLettered, 1, observability.T("routing_key", msg.RoutingKey))
		if err := p.repo.MarkDead(ctx, msg.ID, cause.Error()); err != nil {
			p.logger.Error("failed to dead-letter message", "id", msg.ID, "error", err)
		}
		return
	}

	p.bump(func(s *Stats) { s.Failed++ })
	p.metrics.Counter(observability.MetricOutboxFailed, 1, observability.T("routing_key", msg.RoutingKey))
	next := time.Now().Add(p.retryBackoff(msg.RetryCount + 1))
	if err := p.repo.MarkFailed(ctx, msg.ID, cause.Error(), next); err != nil {
		p.logger.Error("failed to mark message as failed", "id", msg.ID, "error", err)
	}
}

func (p *Processor) shouldDeadLetter(msg *Message) bool {
	return p.config.MaxRetries <= 0 || msg.RetryCount+1 >= p.config.MaxRetries
}

// retryBackoff doubles from the base per attempt, capped at the max.
func (p *Processor) retryBackoff(attempt int) time.Duration {
	base := p.config.RetryBackoffBase
	if base <= 0 {
		base = time.Second
	}
	ceiling := p.config.RetryBackoffMax
	if ceiling <= 0 {
		ceiling = time.Minute
	}

	backoff := base
	for i := 1; i < attempt && backoff < ceiling; i++ {
		backoff *= 2
	}
	return min(backoff, ceiling)
}

// Cleanup deletes published messages past the retention window.
func (p *Processor) Cleanup(ctx context.Context) (int64, error) {
	retention := p.config.Retention
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	n, err := p.repo.DeleteOld(ctx, retention)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		p.logger.Info("deleted published outbox messages", "count", n)
	}
	return n, nil
}

func (p *Processor) Stats() Stats {
	p.statsMu.Lock()
	s := p.stats
	p.statsMu.Unlock()
	s.Running = p.IsRunning()
	return s
}

func (p *Processor) bump(fn func(*Stats)) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	fn(&p.stats)
}

func (p *Processor) recordError(err error) {
	now := time.Now()
	p.bump(func(s *Stats) {
		s.LastError = err.Error()
		s.LastErrorAt = &now
	})
}

func (p *Processor) recordLag(msgs []*Message) {
	now := time.Now()
	lag := 0.0
	if len(msgs) > 0 {
		oldest := msgs[0].CreatedAt
		for _, m := range msgs[1:] {
			if m.CreatedAt.Before(oldest) {
				oldest = m.CreatedAt
			}
		}
		lag = now.Sub(oldest).Seconds()
	}
	p.bump(func(s *Stats) {
		s.LastProcessedAt = &now
		s.LagSeconds = lag
	})
	p.metrics.Gauge(observability.MetricOutboxLagSeconds, lag)
}
