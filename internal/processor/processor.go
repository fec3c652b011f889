package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BogdanMod/lego-bot-sub002/internal/domain/event"
	"github.com/BogdanMod/lego-bot-sub002/internal/infrastructure/postgres"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var notifyFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "worker_notify_failures_total",
	Help: "The total number of failed live-update publishes",
})

// Outcome is the typed result of one processing attempt. A nil Err means the
// entity store and ledger mutations committed. Permanent marks failures that
// no retry can fix (e.g. an event with no bot id); whether they are still
// retried is the consumer loop's policy, not ours.
type Outcome struct {
	Err       error
	Permanent bool
}

func (o Outcome) Success() bool { return o.Err == nil }

type EntityStore interface {
	Touch(ctx context.Context, entityType event.EntityType, botID, entityID string, at time.Time) error
}

type Ledger interface {
	MarkProcessed(ctx context.Context, botID, eventID string, at time.Time) error
}

type Notifier interface {
	Publish(ctx context.Context, note event.Notification) error
}

// Processor applies one decoded event's side effects: entity touch and
// ledger advance in a single transaction, then a best-effort live-update
// publish.
type Processor struct {
	tx       postgres.Transactor
	entities EntityStore
	ledger   Ledger
	notifier Notifier
	logger   *slog.Logger
}

func New(tx postgres.Transactor, entities EntityStore, ledger Ledger, notifier Notifier, logger *slog.Logger) *Processor {
	return &Processor{
		tx:       tx,
		entities: entities,
		ledger:   ledger,
		notifier: notifier,
		logger:   logger,
	}
}

// Process handles one claimed stream entry. The database transaction is the
// commit point; the notification publish after it never fails the attempt.
func (p *Processor) Process(ctx context.Context, streamID string, values map[string]interface{}) Outcome {
	ev, err := event.Decode(streamID, values)
	if err != nil {
		return Outcome{Err: err, Permanent: true}
	}

	now := time.Now().UTC()

	err = p.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		// Unknown entity types have no table and are skipped, not rejected:
		// new event kinds roll out upstream before the worker learns them.
		if ev.EntityType.Table() != "" && ev.EntityID != "" {
			if err := p.entities.Touch(ctx, ev.EntityType, ev.BotID, ev.EntityID, now); err != nil {
				return fmt.Errorf("entity update: %w", err)
			}
		}

		if err := p.ledger.MarkProcessed(ctx, ev.BotID, ev.EventID, now); err != nil {
			return fmt.Errorf("ledger update: %w", err)
		}

		return nil
	})
	if err != nil {
		return Outcome{Err: err}
	}

	note := event.Notification{
		EventID:     ev.EventID,
		Type:        ev.Type,
		EntityType:  ev.EntityType,
		EntityID:    ev.EntityID,
		BotID:       ev.BotID,
		ProcessedAt: now,
	}
	if err := p.notifier.Publish(ctx, note); err != nil {
		// Best effort: dashboards fall back to polling.
		notifyFailures.Inc()
		p.logger.Warn("failed to publish notification", "bot_id", ev.BotID, "event_id", ev.EventID, "error", err)
	}

	return Outcome{}
}
