package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/openmuse/aesthete/internal/core/domain"
)

// SettledVote pairs the current rating means of a settled pairwise vote's
// winner and loser, for agreement scoring.
type SettledVote struct {
	WinnerMean float64
	LoserMean  float64
}

// GetRater returns one rater's calibration and reliability state, or nil if
// the rater has never submitted anything.
func (db *DB) GetRater(ctx context.Context, raterID string) (*domain.Rater, error) {
	var (
		r         domain.Rater
		id        pgtype.UUID
		relAt     pgtype.Timestamptz
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)

	err := db.Pool.QueryRow(ctx, `
		SELECT id, rating_mean, rating_m2, rating_samples,
			reliability, reliability_samples, reliability_updated_at,
			created_at, updated_at
		FROM raters
		WHERE id = $1
	`, toUUID(raterID)).Scan(
		&id, &r.RatingMean, &r.RatingM2, &r.RatingSamples,
		&r.Reliability, &r.ReliabilitySamples, &relAt,
		&createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil //nolint:nilnil // nil,nil indicates an unknown rater
		}

		return nil, fmt.Errorf("get rater: %w", err)
	}

	r.ID = fromUUID(id)
	r.ReliabilityUpdatedAt = fromTimestamptz(relAt)
	r.CreatedAt = fromTimestamptz(createdAt)
	r.UpdatedAt = fromTimestamptz(updatedAt)

	return &r, nil
}

// GetRaters returns calibration and reliability state for a set of raters,
// keyed by rater id. Unknown ids are simply absent from the map.
func (db *DB) GetRaters(ctx context.Context, raterIDs []string) (map[string]domain.Rater, error) {
	if len(raterIDs) == 0 {
		return map[string]domain.Rater{}, nil
	}

	ids := make([]pgtype.UUID, 0, len(raterIDs))
	for _, raterID := range raterIDs {
		ids = append(ids, toUUID(raterID))
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT id, rating_mean, rating_m2, rating_samples,
			reliability, reliability_samples, reliability_updated_at,
			created_at, updated_at
		FROM raters
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("get raters: %w", err)
	}
	defer rows.Close()

	raters := make(map[string]domain.Rater, len(raterIDs))

	for rows.Next() {
		var (
			r         domain.Rater
			id        pgtype.UUID
			relAt     pgtype.Timestamptz
			createdAt pgtype.Timestamptz
			updatedAt pgtype.Timestamptz
		)

		err := rows.Scan(&id, &r.RatingMean, &r.RatingM2, &r.RatingSamples,
			&r.Reliability, &r.ReliabilitySamples, &relAt,
			&createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan rater: %w", err)
		}

		r.ID = fromUUID(id)
		r.ReliabilityUpdatedAt = fromTimestamptz(relAt)
		r.CreatedAt = fromTimestamptz(createdAt)
		r.UpdatedAt = fromTimestamptz(updatedAt)

		raters[r.ID] = r
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raters: %w", err)
	}

	return raters, nil
}

// UpdateRaterReliability persists a recalibrated reliability value with the
// settled sample count it was computed from.
func (db *DB) UpdateRaterReliability(ctx context.Context, raterID string, reliability float64, samples int) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE raters
		SET reliability = $2, reliability_samples = $3,
			reliability_updated_at = now(), updated_at = now()
		WHERE id = $1
	`, toUUID(raterID), reliability, safeIntToInt32(samples))
	if err != nil {
		return fmt.Errorf("update rater reliability: %w", err)
	}

	return nil
}

// RatersDueRecalibration returns raters with at least minVotes pairwise
// votes settled before settledBefore whose reliability has not been
// recalibrated since updatedBefore.
func (db *DB) RatersDueRecalibration(ctx context.Context, updatedBefore, settledBefore time.Time, minVotes, limit int) ([]string, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT e.rater_id
		FROM pairwise_events e
		JOIN raters r ON r.id = e.rater_id
		WHERE e.created_at < $1
			AND (r.reliability_updated_at IS NULL OR r.reliability_updated_at < $2)
		GROUP BY e.rater_id
		HAVING count(*) >= $3
		ORDER BY count(*) DESC
		LIMIT $4
	`, toTimestamptz(settledBefore), toTimestamptz(updatedBefore),
		safeIntToInt32(minVotes), safeIntToInt32(limit))
	if err != nil {
		return nil, fmt.Errorf("raters due recalibration: %w", err)
	}
	defer rows.Close()

	var raterIDs []string

	for rows.Next() {
		var id pgtype.UUID

		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan rater id: %w", err)
		}

		raterIDs = append(raterIDs, fromUUID(id))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rater ids: %w", err)
	}

	return raterIDs, nil
}

// SettledVotes returns the rater's most recent settled pairwise votes with
// the current rating means of each vote's winner and loser. Votes on items
// that have no stats row yet are skipped by the joins.
func (db *DB) SettledVotes(ctx context.Context, raterID string, settledBefore time.Time, limit int) ([]SettledVote, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT
			CASE WHEN e.winner = e.item_a THEN sa.rating_mean ELSE sb.rating_mean END,
			CASE WHEN e.winner = e.item_a THEN sb.rating_mean ELSE sa.rating_mean END
		FROM pairwise_events e
		JOIN item_stats sa ON sa.item_id = e.item_a
		JOIN item_stats sb ON sb.item_id = e.item_b
		WHERE e.rater_id = $1 AND e.created_at < $2
		ORDER BY e.created_at DESC
		LIMIT $3
	`, toUUID(raterID), toTimestamptz(settledBefore), safeIntToInt32(limit))
	if err != nil {
		return nil, fmt.Errorf("settled votes: %w", err)
	}
	defer rows.Close()

	var votes []SettledVote

	for rows.Next() {
		var v SettledVote

		if err := rows.Scan(&v.WinnerMean, &v.LoserMean); err != nil {
			return nil, fmt.Errorf("scan settled vote: %w", err)
		}

		votes = append(votes, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settled votes: %w", err)
	}

	return votes, nil
}
