package deadletter

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrorCode is the fixed code stamped on every dead-letter record.
const ErrorCode = "PROCESSING_FAILED"

var deadLettered = promauto.NewCounter(prometheus.CounterOpts{
	Name: "worker_events_dead_lettered_total",
	Help: "The total number of events routed to the dead-letter stream",
})

type Appender interface {
	Append(ctx context.Context, stream string, values map[string]interface{}) (string, error)
}

// Router records events that exhausted their retries on a parallel stream so
// the consumer group never stalls on a poison entry. The original fields are
// passed through unchanged for offline inspection and replay.
type Router struct {
	stream         string
	originalStream string
	appender       Appender
	logger         *slog.Logger
}

func New(stream, originalStream string, appender Appender, logger *slog.Logger) *Router {
	return &Router{
		stream:         stream,
		originalStream: originalStream,
		appender:       appender,
		logger:         logger,
	}
}

// Route appends one failure record. The append itself is best effort: a
// broken dead-letter stream must not keep the caller from acknowledging the
// original entry, so errors are logged and swallowed.
func (r *Router) Route(ctx context.Context, entryID string, fields map[string]interface{}, cause error) {
	values := make(map[string]interface{}, len(fields)+5)
	for k, v := range fields {
		values[k] = v
	}
	values["original_event_id"] = entryID
	values["original_stream"] = r.originalStream
	values["error_code"] = ErrorCode
	values["error_message"] = cause.Error()
	values["failed_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	id, err := r.appender.Append(ctx, r.stream, values)
	if err != nil {
		r.logger.Error("failed to append dead-letter record", "entry_id", entryID, "error", err)
		return
	}

	deadLettered.Inc()
	r.logger.Info("event dead-lettered", "entry_id", entryID, "dead_letter_id", id, "cause", cause.Error())
}
