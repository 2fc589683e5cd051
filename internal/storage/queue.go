package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/openmuse/aesthete/internal/core/domain"
)

// ClaimDirtyBatch atomically claims up to limit dirty items for one worker,
// highest priority first, oldest first within a priority. Claimed markers
// are deleted; rows locked by a concurrent claimer are skipped rather than
// waited on, so two workers never receive the same item and never block
// each other. An empty queue returns an empty batch.
func (db *DB) ClaimDirtyBatch(ctx context.Context, limit int) ([]domain.DirtyItem, error) {
	rows, err := db.Pool.Query(ctx, `
		WITH picked AS (
			SELECT item_id
			FROM dirty_items
			ORDER BY priority DESC, first_seen_at
			FOR UPDATE SKIP LOCKED
			LIMIT $1
		)
		DELETE FROM dirty_items d
		USING picked
		WHERE d.item_id = picked.item_id
		RETURNING d.item_id, d.priority, d.first_seen_at, d.last_event_at
	`, safeIntToInt32(limit))
	if err != nil {
		return nil, fmt.Errorf("claim dirty batch: %w", err)
	}
	defer rows.Close()

	var batch []domain.DirtyItem

	for rows.Next() {
		var (
			item        domain.DirtyItem
			itemID      pgtype.UUID
			firstSeen   pgtype.Timestamptz
			lastEventAt pgtype.Timestamptz
		)

		if err := rows.Scan(&itemID, &item.Priority, &firstSeen, &lastEventAt); err != nil {
			return nil, fmt.Errorf("scan dirty item: %w", err)
		}

		item.ItemID = fromUUID(itemID)
		item.FirstSeenAt = fromTimestamptz(firstSeen)
		item.LastEventAt = fromTimestamptz(lastEventAt)

		batch = append(batch, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dirty batch: %w", err)
	}

	return batch, nil
}

// MarkDirty re-inserts a dirty marker outside any event write. Used when a
// claimed item could not be processed and must be retried on a later cycle.
func (db *DB) MarkDirty(ctx context.Context, itemID string, priority int16) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO dirty_items (item_id, priority)
		VALUES ($1, $2)
		ON CONFLICT (item_id) DO UPDATE
		SET priority = GREATEST(dirty_items.priority, EXCLUDED.priority),
			last_event_at = now()
	`, toUUID(itemID), priority)
	if err != nil {
		return fmt.Errorf("mark item dirty: %w", err)
	}

	return nil
}

// RequeueUnmarkedItems re-marks items that have events newer than since
// beyond their checkpoints but no dirty marker. This catches items orphaned
// by a worker that died between claiming and committing. Requeued markers
// get the lowest priority; the backlog they represent is by definition
// stale.
func (db *DB) RequeueUnmarkedItems(ctx context.Context, priority int16, since time.Time) (int64, error) {
	var total int64

	statements := []string{
		`INSERT INTO dirty_items (item_id, priority)
		 SELECT DISTINCT e.item_a, $1::smallint FROM pairwise_events e
		 LEFT JOIN item_stats s ON s.item_id = e.item_a
		 WHERE e.created_at > $2 AND e.id > COALESCE(s.last_pairwise_id, 0)
		 ON CONFLICT (item_id) DO NOTHING`,
		`INSERT INTO dirty_items (item_id, priority)
		 SELECT DISTINCT e.item_b, $1::smallint FROM pairwise_events e
		 LEFT JOIN item_stats s ON s.item_id = e.item_b
		 WHERE e.created_at > $2 AND e.id > COALESCE(s.last_pairwise_id, 0)
		 ON CONFLICT (item_id) DO NOTHING`,
		`INSERT INTO dirty_items (item_id, priority)
		 SELECT DISTINCT e.item_id, $1::smallint FROM rating_events e
		 LEFT JOIN item_stats s ON s.item_id = e.item_id
		 WHERE e.created_at > $2 AND e.id > COALESCE(s.last_rating_id, 0)
		 ON CONFLICT (item_id) DO NOTHING`,
		`INSERT INTO dirty_items (item_id, priority)
		 SELECT DISTINCT e.item_id, $1::smallint FROM favorite_events e
		 LEFT JOIN item_stats s ON s.item_id = e.item_id
		 WHERE e.created_at > $2 AND e.id > COALESCE(s.last_favorite_id, 0)
		 ON CONFLICT (item_id) DO NOTHING`,
	}

	for _, stmt := range statements {
		tag, err := db.Pool.Exec(ctx, stmt, priority, toTimestamptz(since))
		if err != nil {
			return total, fmt.Errorf("requeue unmarked items: %w", err)
		}

		total += tag.RowsAffected()
	}

	return total, nil
}
