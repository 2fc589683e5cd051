package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/openmuse/aesthete/internal/core/domain"
	"github.com/openmuse/aesthete/internal/rank"
)

// AppendPairwise appends one pairwise comparison and dirty-marks both items
// in a single transaction. The rater row is created lazily with neutral
// calibration. Returns the event's stream id.
func (db *DB) AppendPairwise(ctx context.Context, ev domain.PairwiseEvent, priority int16) (int64, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin append pairwise: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx) //nolint:errcheck // best-effort rollback
	}()

	if err = ensureRater(ctx, tx, ev.RaterID); err != nil {
		return 0, err
	}

	var id int64

	err = tx.QueryRow(ctx, `
		INSERT INTO pairwise_events (rater_id, item_a, item_b, winner, item_a_rating, item_b_rating, weight_class)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, toUUID(ev.RaterID), toUUID(ev.ItemA), toUUID(ev.ItemB), toUUID(ev.Winner),
		ev.ItemARating, ev.ItemBRating, string(ev.Class)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert pairwise event: %w", err)
	}

	if err = markDirtyTx(ctx, tx, ev.ItemA, priority); err != nil {
		return 0, err
	}

	if err = markDirtyTx(ctx, tx, ev.ItemB, priority); err != nil {
		return 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit append pairwise: %w", err)
	}

	return id, nil
}

// AppendRating appends one slider rating, folds it into the rater's online
// calibration, and dirty-marks the item, all in a single transaction. The
// rater row is locked for the fold so concurrent ratings from the same
// rater serialize.
func (db *DB) AppendRating(ctx context.Context, ev domain.RatingEvent, priority int16) (int64, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin append rating: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx) //nolint:errcheck // best-effort rollback
	}()

	if err = ensureRater(ctx, tx, ev.RaterID); err != nil {
		return 0, err
	}

	var cal rank.Calibration

	err = tx.QueryRow(ctx, `
		SELECT rating_mean, rating_m2, rating_samples
		FROM raters
		WHERE id = $1
		FOR UPDATE
	`, toUUID(ev.RaterID)).Scan(&cal.Mean, &cal.M2, &cal.Samples)
	if err != nil {
		return 0, fmt.Errorf("lock rater calibration: %w", err)
	}

	cal = cal.Observe(ev.RawScore)

	_, err = tx.Exec(ctx, `
		UPDATE raters
		SET rating_mean = $2, rating_m2 = $3, rating_samples = $4, updated_at = now()
		WHERE id = $1
	`, toUUID(ev.RaterID), cal.Mean, cal.M2, cal.Samples)
	if err != nil {
		return 0, fmt.Errorf("update rater calibration: %w", err)
	}

	var id int64

	err = tx.QueryRow(ctx, `
		INSERT INTO rating_events (rater_id, item_id, raw_score)
		VALUES ($1, $2, $3)
		RETURNING id
	`, toUUID(ev.RaterID), toUUID(ev.ItemID), ev.RawScore).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert rating event: %w", err)
	}

	if err = markDirtyTx(ctx, tx, ev.ItemID, priority); err != nil {
		return 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit append rating: %w", err)
	}

	return id, nil
}

// AppendFavorite appends one favorite mark and dirty-marks the item in a
// single transaction.
func (db *DB) AppendFavorite(ctx context.Context, ev domain.FavoriteEvent, priority int16) (int64, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin append favorite: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx) //nolint:errcheck // best-effort rollback
	}()

	if err = ensureRater(ctx, tx, ev.RaterID); err != nil {
		return 0, err
	}

	var id int64

	err = tx.QueryRow(ctx, `
		INSERT INTO favorite_events (rater_id, item_id)
		VALUES ($1, $2)
		RETURNING id
	`, toUUID(ev.RaterID), toUUID(ev.ItemID)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert favorite event: %w", err)
	}

	if err = markDirtyTx(ctx, tx, ev.ItemID, priority); err != nil {
		return 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit append favorite: %w", err)
	}

	return id, nil
}

func ensureRater(ctx context.Context, tx pgx.Tx, raterID string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO raters (id) VALUES ($1)
		ON CONFLICT (id) DO NOTHING
	`, toUUID(raterID))
	if err != nil {
		return fmt.Errorf("ensure rater: %w", err)
	}

	return nil
}

func markDirtyTx(ctx context.Context, tx pgx.Tx, itemID string, priority int16) error {
	_, err := tx.Exec(ctx, `
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
