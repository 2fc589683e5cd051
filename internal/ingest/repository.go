package ingest

import (
	"context"

	"github.com/openmuse/aesthete/internal/core/domain"
	db "github.com/openmuse/aesthete/internal/storage"
)

// Repository defines the storage operations required by the Recorder.
// Each append commits the event, the lazy rater upsert, and the dirty
// marking atomically.
type Repository interface {
	AppendPairwise(ctx context.Context, ev domain.PairwiseEvent, priority int16) (int64, error)
	AppendRating(ctx context.Context, ev domain.RatingEvent, priority int16) (int64, error)
	AppendFavorite(ctx context.Context, ev domain.FavoriteEvent, priority int16) (int64, error)
}

// Compile-time assertion that *db.DB implements Repository.
var _ Repository = (*db.DB)(nil)
