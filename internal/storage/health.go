package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/openmuse/aesthete/internal/core/domain"
)

// PipelineHealth returns queue depth, the age of the oldest dirty marker
// and published/provisional counts in one round trip.
func (db *DB) PipelineHealth(ctx context.Context) (domain.PipelineHealth, error) {
	var (
		h      domain.PipelineHealth
		oldest pgtype.Timestamptz
	)

	err := db.Pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM dirty_items),
			(SELECT min(first_seen_at) FROM dirty_items),
			(SELECT count(*) FROM published_scores WHERE NOT provisional),
			(SELECT count(*) FROM published_scores WHERE provisional)
	`).Scan(&h.DirtyCount, &oldest, &h.PublishedCount, &h.ProvisionalCount)
	if err != nil {
		return domain.PipelineHealth{}, fmt.Errorf("pipeline health: %w", err)
	}

	if oldest.Valid {
		h.OldestDirtyAge = time.Since(oldest.Time)
	}

	return h, nil
}
