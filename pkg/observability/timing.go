package observability

import (
	"log/slog"
	"time"
)

// Timer measures one operation and reports it to a logger and metrics sink.
type Timer struct {
	operation string
	start     time.Time
	logger    *slog.Logger
	metrics   Metrics
	tags      []Tag
}

func StartTimer(operation string) *Timer {
	return &Timer{operation: operation, start: time.Now()}
}

func (t *Timer) WithLogger(logger *slog.Logger) *Timer {
	t.logger = logger
	return t
}

func (t *Timer) WithMetrics(metrics Metrics) *Timer {
	t.metrics = metrics
	return t
}

func (t *Timer) WithTags(tags ...Tag) *Timer {
	t.tags = append(t.tags, tags...)
	return t
}

// Stop records success.
func (t *Timer) Stop() time.Duration {
	return t.StopWithError(nil)
}

// StopWithError records the duration, counting err as a failure when non-nil.
func (t *Timer) StopWithError(err error) time.Duration {
	d := time.Since(t.start)

	if t.logger != nil {
		if err != nil {
			t.logger.Warn("operation failed", "operation", t.operation, "duration_ms", d.Milliseconds(), "error", err)
		} else {
			t.logger.Debug("operation completed", "operation", t.operation, "duration_ms", d.Milliseconds())
		}
	}

	if t.metrics != nil {
		tags := append(append([]Tag(nil), t.tags...), T("operation", t.operation))
		t.metrics.Timing(MetricOperationDuration, d, tags...)
		t.metrics.Counter(MetricOperationTotal, 1, tags...)
		if err != nil {
			t.metrics.Counter(MetricOperationErrors, 1, tags...)
		}
	}
	return d
}
