package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerRepository tracks ingestion status in the bot_events table, one row
// per business event keyed by (bot_id, id).
type LedgerRepository struct {
	pool *pgxpool.Pool
}

func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// MarkProcessed stamps processed_at and advances status from new to
// in_progress. Status never regresses: rows already past new keep their
// status, only the timestamp moves.
func (r *LedgerRepository) MarkProcessed(ctx context.Context, botID, eventID string, at time.Time) error {
	const sql = `
		UPDATE bot_events
		SET processed_at = $3,
		    status = CASE WHEN status = 'new' THEN 'in_progress' ELSE status END
		WHERE bot_id = $1 AND id = $2
	`

	var executor interface {
		Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	} = r.pool

	if tx := GetTx(ctx); tx != nil {
		executor = tx
	}

	if _, err := executor.Exec(ctx, sql, botID, eventID, at); err != nil {
		return fmt.Errorf("mark event processed (%s, %s): %w", botID, eventID, err)
	}

	return nil
}
