package recalibrate

import (
	"context"
	"time"

	"github.com/openmuse/aesthete/internal/core/domain"
	db "github.com/openmuse/aesthete/internal/storage"
)

// Repository defines the storage operations required by the Worker.
type Repository interface {
	TryAdvisoryLock(ctx context.Context, lockID int64) (release func(), acquired bool, err error)
	RatersDueRecalibration(ctx context.Context, updatedBefore, settledBefore time.Time, minVotes, limit int) ([]string, error)
	SettledVotes(ctx context.Context, raterID string, settledBefore time.Time, limit int) ([]db.SettledVote, error)
	GetRater(ctx context.Context, raterID string) (*domain.Rater, error)
	UpdateRaterReliability(ctx context.Context, raterID string, reliability float64, samples int) error
}

// Compile-time assertion that *db.DB implements Repository.
var _ Repository = (*db.DB)(nil)
