package updater

import (
	"context"
	"time"

	"github.com/openmuse/aesthete/internal/core/domain"
	db "github.com/openmuse/aesthete/internal/storage"
)

// Repository defines the storage operations required by the Worker.
type Repository interface {
	// Dirty queue
	ClaimDirtyBatch(ctx context.Context, limit int) ([]domain.DirtyItem, error)
	MarkDirty(ctx context.Context, itemID string, priority int16) error
	RequeueUnmarkedItems(ctx context.Context, priority int16, since time.Time) (int64, error)

	// Item stats and event slices
	GetOrCreateItemStats(ctx context.Context, itemID string, priorMean, priorUncertainty float64) (domain.ItemStats, error)
	UpdateItemStatsGuarded(ctx context.Context, prev, next domain.ItemStats) (bool, error)
	PairwiseEventsAfter(ctx context.Context, itemID string, afterID int64, limit int) ([]domain.PairwiseEvent, error)
	RatingEventsAfter(ctx context.Context, itemID string, afterID int64, limit int) ([]domain.RatingEvent, error)
	FavoriteEventsAfter(ctx context.Context, itemID string, afterID int64, limit int) ([]domain.FavoriteEvent, error)
	PruneFoldedEvents(ctx context.Context, cutoff time.Time) (int64, error)

	// Rater snapshots
	GetRaters(ctx context.Context, raterIDs []string) (map[string]domain.Rater, error)

	// Publishing
	GetPublishedScore(ctx context.Context, itemID string) (*domain.PublishedScore, error)
	UpsertPublishedScore(ctx context.Context, ps domain.PublishedScore) error

	// Health
	PipelineHealth(ctx context.Context) (domain.PipelineHealth, error)
}

// Compile-time assertion that *db.DB implements Repository.
var _ Repository = (*db.DB)(nil)
