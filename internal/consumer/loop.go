package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/BogdanMod/lego-bot-sub002/internal/infrastructure/redis"
	"github.com/BogdanMod/lego-bot-sub002/internal/processor"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "worker_events_processed_total",
		Help: "The total number of successfully processed events",
	})
	retryAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "worker_event_retries_total",
		Help: "The total number of per-event retry attempts",
	})
	batchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "worker_batch_errors_total",
		Help: "The total number of failed batch claims",
	})
	processingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "worker_processing_duration_seconds",
		Help:    "Time taken to process one event",
		Buckets: []float64{0.1, 0.5, 1, 2, 5},
	})
)

// Stream is the slice of the stream client the loop drives.
type Stream interface {
	EnsureGroup(ctx context.Context) error
	Claim(ctx context.Context, count int, block time.Duration) ([]redis.Entry, error)
	Ack(ctx context.Context, id string) error
}

// Processor reports a typed outcome for one attempt on one entry.
type Processor interface {
	Process(ctx context.Context, streamID string, values map[string]interface{}) processor.Outcome
}

// DeadLetterRouter records an entry that exhausted its retry budget.
type DeadLetterRouter interface {
	Route(ctx context.Context, entryID string, fields map[string]interface{}, cause error)
}

type Config struct {
	BatchSize       int
	Block           time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	BatchErrorPause time.Duration
	DrainTimeout    time.Duration

	// FailFastPermanent dead-letters permanently failing events on the first
	// attempt instead of burning the retry budget on them. Off by default to
	// keep the historical behavior of the pipeline.
	FailFastPermanent bool
}

// Loop claims batches for one consumer identity and drives every claimed
// entry to a terminal state: acked after success, or dead-lettered and then
// acked after the retry budget runs out. A poison entry never stalls the
// group.
type Loop struct {
	stream     Stream
	processor  Processor
	deadLetter DeadLetterRouter
	cfg        Config
	logger     *slog.Logger
}

func New(stream Stream, proc Processor, deadLetter DeadLetterRouter, cfg Config, logger *slog.Logger) *Loop {
	return &Loop{
		stream:     stream,
		processor:  proc,
		deadLetter: deadLetter,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run blocks until ctx is cancelled. Claim errors never stop the loop: a
// missing group is recreated, anything else pauses the loop briefly and it
// tries again. Only a failed initial group creation is returned.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.stream.EnsureGroup(ctx); err != nil {
		return err
	}

	l.logger.Info("consumer loop started", "batch_size", l.cfg.BatchSize, "max_retries", l.cfg.MaxRetries)

	for {
		if ctx.Err() != nil {
			l.logger.Info("consumer loop stopped")
			return nil
		}

		entries, err := l.stream.Claim(ctx, l.cfg.BatchSize, l.cfg.Block)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info("consumer loop stopped")
				return nil
			}
			if redis.IsNoGroup(err) {
				l.logger.Warn("consumer group missing, recreating", "error", err)
				if err := l.stream.EnsureGroup(ctx); err != nil {
					l.logger.Error("failed to recreate consumer group", "error", err)
					l.pause(ctx, l.cfg.BatchErrorPause)
				}
				continue
			}
			batchErrors.Inc()
			l.logger.Error("failed to claim batch", "error", err)
			l.pause(ctx, l.cfg.BatchErrorPause)
			continue
		}

		for _, entry := range entries {
			if ctx.Err() != nil {
				// Untouched entries stay in the pending list for reclaim by
				// another consumer.
				l.logger.Info("consumer loop stopped mid-batch")
				return nil
			}
			l.handleEntry(ctx, entry)
		}
	}
}

// handleEntry runs the per-entry retry machine. It always reaches a terminal
// state, even across shutdown: the work context is detached from loop
// cancellation and bounded by the drain timeout, so an in-flight entry is
// acked or dead-lettered rather than abandoned mid-attempt.
func (l *Loop) handleEntry(ctx context.Context, entry redis.Entry) {
	workCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.DrainTimeout)
	defer cancel()

	started := time.Now()

	var out processor.Outcome
	for attempt := 1; attempt <= l.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(attempt-1) * l.cfg.RetryBackoff
			retryAttempts.Inc()
			l.logger.Info("retrying event", "entry_id", entry.ID, "attempt", attempt, "max", l.cfg.MaxRetries, "backoff", backoff)
			if !l.pause(workCtx, backoff) {
				break
			}
		}

		out = l.processor.Process(workCtx, entry.ID, entry.Values)
		if out.Success() {
			processingDuration.Observe(time.Since(started).Seconds())
			eventsProcessed.Inc()
			l.ack(workCtx, entry.ID)
			return
		}

		l.logger.Error("processing failed", "entry_id", entry.ID, "attempt", attempt, "error", out.Err)

		if out.Permanent && l.cfg.FailFastPermanent {
			l.logger.Info("permanent failure, skipping retries", "entry_id", entry.ID)
			break
		}
	}

	l.deadLetter.Route(workCtx, entry.ID, entry.Values, out.Err)
	l.ack(workCtx, entry.ID)
}

// ack is unconditional once an entry reached a terminal state. A failed ack
// only means redelivery later; processing is idempotent.
func (l *Loop) ack(ctx context.Context, id string) {
	if err := l.stream.Ack(ctx, id); err != nil {
		l.logger.Error("failed to ack entry", "entry_id", id, "error", err)
	}
}

// pause sleeps for d or until ctx is done, reporting whether the full
// duration elapsed.
func (l *Loop) pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
