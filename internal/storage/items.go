package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/openmuse/aesthete/internal/core/domain"
)

// GetOrCreateItemStats returns the item's accumulator row, creating it with
// the given priors on first touch. Both statements are idempotent, so no
// transaction is needed.
func (db *DB) GetOrCreateItemStats(ctx context.Context, itemID string, priorMean, priorUncertainty float64) (domain.ItemStats, error) {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO item_stats (item_id, rating_mean, rating_uncertainty)
		VALUES ($1, $2, $3)
		ON CONFLICT (item_id) DO NOTHING
	`, toUUID(itemID), priorMean, priorUncertainty)
	if err != nil {
		return domain.ItemStats{}, fmt.Errorf("create item stats: %w", err)
	}

	var (
		st        domain.ItemStats
		id        pgtype.UUID
		updatedAt pgtype.Timestamptz
	)

	err = db.Pool.QueryRow(ctx, `
		SELECT item_id, rating_mean, rating_uncertainty,
			last_pairwise_id, last_rating_id, last_favorite_id,
			sum_weighted_rating, sum_weight, sum_favorite_weight,
			total_pairwise, total_ratings, total_favorites, updated_at
		FROM item_stats
		WHERE item_id = $1
	`, toUUID(itemID)).Scan(
		&id, &st.RatingMean, &st.RatingUncertainty,
		&st.LastPairwiseID, &st.LastRatingID, &st.LastFavoriteID,
		&st.SumWeightedRating, &st.SumWeight, &st.SumFavoriteWeight,
		&st.TotalPairwise, &st.TotalRatings, &st.TotalFavorites, &updatedAt,
	)
	if err != nil {
		return domain.ItemStats{}, fmt.Errorf("get item stats: %w", err)
	}

	st.ItemID = fromUUID(id)
	st.UpdatedAt = fromTimestamptz(updatedAt)

	return st, nil
}

// UpdateItemStatsGuarded persists a folded accumulator row in one atomic
// statement, guarded on the checkpoints the fold started from. A false
// return means another worker advanced the row first and nothing was
// written; the caller re-marks the item and moves on.
func (db *DB) UpdateItemStatsGuarded(ctx context.Context, prev, next domain.ItemStats) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE item_stats
		SET rating_mean = $2, rating_uncertainty = $3,
			last_pairwise_id = $4, last_rating_id = $5, last_favorite_id = $6,
			sum_weighted_rating = $7, sum_weight = $8, sum_favorite_weight = $9,
			total_pairwise = $10, total_ratings = $11, total_favorites = $12,
			updated_at = now()
		WHERE item_id = $1
			AND last_pairwise_id = $13
			AND last_rating_id = $14
			AND last_favorite_id = $15
	`, toUUID(next.ItemID), next.RatingMean, next.RatingUncertainty,
		next.LastPairwiseID, next.LastRatingID, next.LastFavoriteID,
		next.SumWeightedRating, next.SumWeight, next.SumFavoriteWeight,
		next.TotalPairwise, next.TotalRatings, next.TotalFavorites,
		prev.LastPairwiseID, prev.LastRatingID, prev.LastFavoriteID)
	if err != nil {
		return false, fmt.Errorf("update item stats: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// PairwiseEventsAfter returns the item's pairwise events with id beyond the
// checkpoint in ascending id order, capped at limit.
func (db *DB) PairwiseEventsAfter(ctx context.Context, itemID string, afterID int64, limit int) ([]domain.PairwiseEvent, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, rater_id, item_a, item_b, winner,
			item_a_rating, item_b_rating, weight_class, created_at
		FROM pairwise_events
		WHERE (item_a = $1 OR item_b = $1) AND id > $2
		ORDER BY id
		LIMIT $3
	`, toUUID(itemID), afterID, safeIntToInt32(limit))
	if err != nil {
		return nil, fmt.Errorf("fetch pairwise events: %w", err)
	}
	defer rows.Close()

	var events []domain.PairwiseEvent

	for rows.Next() {
		var (
			ev                            domain.PairwiseEvent
			raterID, itemA, itemB, winner pgtype.UUID
			class                         string
			createdAt                     pgtype.Timestamptz
		)

		err := rows.Scan(&ev.ID, &raterID, &itemA, &itemB, &winner,
			&ev.ItemARating, &ev.ItemBRating, &class, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan pairwise event: %w", err)
		}

		ev.RaterID = fromUUID(raterID)
		ev.ItemA = fromUUID(itemA)
		ev.ItemB = fromUUID(itemB)
		ev.Winner = fromUUID(winner)
		ev.Class = domain.WeightClass(class)
		ev.CreatedAt = fromTimestamptz(createdAt)

		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pairwise events: %w", err)
	}

	return events, nil
}

// RatingEventsAfter returns the item's rating events with id beyond the
// checkpoint in ascending id order, capped at limit.
func (db *DB) RatingEventsAfter(ctx context.Context, itemID string, afterID int64, limit int) ([]domain.RatingEvent, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, rater_id, item_id, raw_score, created_at
		FROM rating_events
		WHERE item_id = $1 AND id > $2
		ORDER BY id
		LIMIT $3
	`, toUUID(itemID), afterID, safeIntToInt32(limit))
	if err != nil {
		return nil, fmt.Errorf("fetch rating events: %w", err)
	}
	defer rows.Close()

	var events []domain.RatingEvent

	for rows.Next() {
		var (
			ev            domain.RatingEvent
			raterID, item pgtype.UUID
			createdAt     pgtype.Timestamptz
		)

		if err := rows.Scan(&ev.ID, &raterID, &item, &ev.RawScore, &createdAt); err != nil {
			return nil, fmt.Errorf("scan rating event: %w", err)
		}

		ev.RaterID = fromUUID(raterID)
		ev.ItemID = fromUUID(item)
		ev.CreatedAt = fromTimestamptz(createdAt)

		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rating events: %w", err)
	}

	return events, nil
}

// FavoriteEventsAfter returns the item's favorite events with id beyond the
// checkpoint in ascending id order, capped at limit.
func (db *DB) FavoriteEventsAfter(ctx context.Context, itemID string, afterID int64, limit int) ([]domain.FavoriteEvent, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, rater_id, item_id, created_at
		FROM favorite_events
		WHERE item_id = $1 AND id > $2
		ORDER BY id
		LIMIT $3
	`, toUUID(itemID), afterID, safeIntToInt32(limit))
	if err != nil {
		return nil, fmt.Errorf("fetch favorite events: %w", err)
	}
	defer rows.Close()

	var events []domain.FavoriteEvent

	for rows.Next() {
		var (
			ev            domain.FavoriteEvent
			raterID, item pgtype.UUID
			createdAt     pgtype.Timestamptz
		)

		if err := rows.Scan(&ev.ID, &raterID, &item, &createdAt); err != nil {
			return nil, fmt.Errorf("scan favorite event: %w", err)
		}

		ev.RaterID = fromUUID(raterID)
		ev.ItemID = fromUUID(item)
		ev.CreatedAt = fromTimestamptz(createdAt)

		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate favorite events: %w", err)
	}

	return events, nil
}

// PruneFoldedEvents deletes events older than cutoff that every relevant
// item has already folded. Events still beyond a checkpoint are kept so the
// accumulators remain replayable.
func (db *DB) PruneFoldedEvents(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64

	statements := []string{
		`DELETE FROM pairwise_events e
		 WHERE e.created_at < $1
			AND EXISTS (SELECT 1 FROM item_stats sa WHERE sa.item_id = e.item_a AND sa.last_pairwise_id >= e.id)
			AND EXISTS (SELECT 1 FROM item_stats sb WHERE sb.item_id = e.item_b AND sb.last_pairwise_id >= e.id)`,
		`DELETE FROM rating_events e
		 WHERE e.created_at < $1
			AND EXISTS (SELECT 1 FROM item_stats s WHERE s.item_id = e.item_id AND s.last_rating_id >= e.id)`,
		`DELETE FROM favorite_events e
		 WHERE e.created_at < $1
			AND EXISTS (SELECT 1 FROM item_stats s WHERE s.item_id = e.item_id AND s.last_favorite_id >= e.id)`,
	}

	for _, stmt := range statements {
		tag, err := db.Pool.Exec(ctx, stmt, toTimestamptz(cutoff))
		if err != nil {
			return total, fmt.Errorf("prune folded events: %w", err)
		}

		total += tag.RowsAffected()
	}

	return total, nil
}
