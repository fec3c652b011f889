package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/BogdanMod/lego-bot-sub002/internal/domain/event"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EntityRepository touches the per-bot business entity a processed event
// refers to. All four entity tables share the (bot_id, id) key shape.
type EntityRepository struct {
	pool *pgxpool.Pool
}

func NewEntityRepository(pool *pgxpool.Pool) *EntityRepository {
	return &EntityRepository{pool: pool}
}

// Touch refreshes updated_at for the entity row. The table name comes from
// the EntityType whitelist, never from event data. A missing row is not an
// error: the update is idempotent and the entity may have been deleted by
// the dashboard since the event was emitted.
func (r *EntityRepository) Touch(ctx context.Context, entityType event.EntityType, botID, entityID string, at time.Time) error {
	table := entityType.Table()
	if table == "" {
		return fmt.Errorf("no table for entity type %q", entityType)
	}

	sql := fmt.Sprintf(`UPDATE %s SET updated_at = $3 WHERE bot_id = $1 AND id = $2`, table)

	var executor interface {
		Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	} = r.pool

	if tx := GetTx(ctx); tx != nil {
		executor = tx
	}

	if _, err := executor.Exec(ctx, sql, botID, entityID, at); err != nil {
		return fmt.Errorf("touch %s (%s, %s): %w", table, botID, entityID, err)
	}

	return nil
}
