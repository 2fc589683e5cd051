package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/openmuse/aesthete/internal/core/domain"
)

// Leaderboard query bounds.
const (
	DefaultLeaderboardLimit = 50
	MaxLeaderboardLimit     = 500
)

// GetPublishedScore returns the item's published row, or nil if the item
// has never been published.
func (db *DB) GetPublishedScore(ctx context.Context, itemID string) (*domain.PublishedScore, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT item_id, score, confidence, provisional,
			rating_component, signal_component, favorite_component, reliability_factor,
			rating_mean, rating_uncertainty, updated_at
		FROM published_scores
		WHERE item_id = $1
	`, toUUID(itemID))

	ps, err := scanPublishedScore(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil //nolint:nilnil // nil,nil indicates a never-published item
		}

		return nil, fmt.Errorf("get published score: %w", err)
	}

	return &ps, nil
}

// UpsertPublishedScore writes the derived score row for an item. Debounce
// decisions happen in the publisher before this is called; the write itself
// is unconditional, last writer wins.
func (db *DB) UpsertPublishedScore(ctx context.Context, ps domain.PublishedScore) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO published_scores (item_id, score, confidence, provisional,
			rating_component, signal_component, favorite_component, reliability_factor,
			rating_mean, rating_uncertainty, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (item_id) DO UPDATE
		SET score = EXCLUDED.score,
			confidence = EXCLUDED.confidence,
			provisional = EXCLUDED.provisional,
			rating_component = EXCLUDED.rating_component,
			signal_component = EXCLUDED.signal_component,
			favorite_component = EXCLUDED.favorite_component,
			reliability_factor = EXCLUDED.reliability_factor,
			rating_mean = EXCLUDED.rating_mean,
			rating_uncertainty = EXCLUDED.rating_uncertainty,
			updated_at = now()
	`, toUUID(ps.ItemID), ps.Score, ps.Confidence, ps.Provisional,
		ps.RatingComponent, ps.SignalComponent, ps.FavoriteComponent, ps.ReliabilityFactor,
		ps.RatingMean, ps.RatingUncertainty)
	if err != nil {
		return fmt.Errorf("upsert published score: %w", err)
	}

	return nil
}

// Leaderboard returns non-provisional published scores ordered best first,
// with item id as a stable tiebreak. The limit is clamped to sane bounds.
func (db *DB) Leaderboard(ctx context.Context, limit, offset int) ([]domain.PublishedScore, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}

	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}

	if offset < 0 {
		offset = 0
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT item_id, score, confidence, provisional,
			rating_component, signal_component, favorite_component, reliability_factor,
			rating_mean, rating_uncertainty, updated_at
		FROM published_scores
		WHERE NOT provisional
		ORDER BY score DESC, item_id
		LIMIT $1 OFFSET $2
	`, safeIntToInt32(limit), safeIntToInt32(offset))
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	var scores []domain.PublishedScore

	for rows.Next() {
		ps, err := scanPublishedScore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}

		scores = append(scores, ps)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard: %w", err)
	}

	return scores, nil
}

func scanPublishedScore(row pgx.Row) (domain.PublishedScore, error) {
	var (
		ps        domain.PublishedScore
		id        pgtype.UUID
		updatedAt pgtype.Timestamptz
	)

	err := row.Scan(&id, &ps.Score, &ps.Confidence, &ps.Provisional,
		&ps.RatingComponent, &ps.SignalComponent, &ps.FavoriteComponent, &ps.ReliabilityFactor,
		&ps.RatingMean, &ps.RatingUncertainty, &updatedAt)
	if err != nil {
		return domain.PublishedScore{}, err
	}

	ps.ItemID = fromUUID(id)
	ps.UpdatedAt = fromTimestamptz(updatedAt)

	return ps, nil
}
