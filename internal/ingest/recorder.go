// Package ingest is the write API for the three feedback streams. The
// voting collaborator hands it raw votes; it validates them, computes the
// dirty-queue priority, and appends through the storage layer.
package ingest

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openmuse/aesthete/internal/core/domain"
	apperrors "github.com/openmuse/aesthete/internal/core/errors"
	"github.com/openmuse/aesthete/internal/platform/observability"
	"github.com/openmuse/aesthete/internal/rank"
)

// Log field constants.
const (
	logFieldRater = "rater_id"
	logFieldItem  = "item_id"
	logFieldEvent = "event_id"
)

// PairwiseVote is one head-to-head choice as submitted by the collaborator.
// ItemARating and ItemBRating are the rating snapshots the matchup was
// served with.
type PairwiseVote struct {
	RaterID     string
	ItemA       string
	ItemB       string
	Winner      string
	ItemARating float64
	ItemBRating float64
	Class       domain.WeightClass
}

// RatingVote is one absolute 0-100 slider judgement.
type RatingVote struct {
	RaterID  string
	ItemID   string
	RawScore float64
}

// FavoriteVote is one favorite mark.
type FavoriteVote struct {
	RaterID string
	ItemID  string
}

// Recorder validates and appends incoming votes.
type Recorder struct {
	db     Repository
	logger *zerolog.Logger
}

// NewRecorder creates a new vote recorder.
func NewRecorder(database Repository, logger *zerolog.Logger) *Recorder {
	return &Recorder{
		db:     database,
		logger: logger,
	}
}

// RecordPairwise appends one pairwise comparison. An empty weight class
// defaults to normal. Returns the new event's stream id.
func (r *Recorder) RecordPairwise(ctx context.Context, vote PairwiseVote) (int64, error) {
	if err := validateUUIDs(vote.RaterID, vote.ItemA, vote.ItemB, vote.Winner); err != nil {
		return 0, err
	}

	if vote.ItemA == vote.ItemB {
		return 0, fmt.Errorf("items %s vs %s: %w", vote.ItemA, vote.ItemB, apperrors.ErrSelfComparison)
	}

	if vote.Winner != vote.ItemA && vote.Winner != vote.ItemB {
		return 0, fmt.Errorf("winner %s: %w", vote.Winner, apperrors.ErrWinnerNotInPair)
	}

	if !isFinite(vote.ItemARating) || !isFinite(vote.ItemBRating) {
		return 0, fmt.Errorf("snapshots %v/%v: %w", vote.ItemARating, vote.ItemBRating, apperrors.ErrSnapshotNotFinite)
	}

	class := vote.Class
	if class == "" {
		class = domain.WeightClassNormal
	}

	if !class.Valid() {
		return 0, fmt.Errorf("class %q: %w", class, apperrors.ErrUnknownWeightClass)
	}

	ev := domain.PairwiseEvent{
		RaterID:     vote.RaterID,
		ItemA:       vote.ItemA,
		ItemB:       vote.ItemB,
		Winner:      vote.Winner,
		ItemARating: vote.ItemARating,
		ItemBRating: vote.ItemBRating,
		Class:       class,
	}

	id, err := r.db.AppendPairwise(ctx, ev, rank.EventPriority(domain.StreamPairwise, class))
	if err != nil {
		return 0, fmt.Errorf("append pairwise vote: %w", err)
	}

	observability.EventsIngested.WithLabelValues(string(domain.StreamPairwise)).Inc()
	r.logger.Debug().
		Str(logFieldRater, vote.RaterID).
		Int64(logFieldEvent, id).
		Str("winner", vote.Winner).
		Msg("recorded pairwise vote")

	return id, nil
}

// RecordRating appends one slider rating and folds it into the rater's
// online calibration. Returns the new event's stream id.
func (r *Recorder) RecordRating(ctx context.Context, vote RatingVote) (int64, error) {
	if err := validateUUIDs(vote.RaterID, vote.ItemID); err != nil {
		return 0, err
	}

	if math.IsNaN(vote.RawScore) || vote.RawScore < 0 || vote.RawScore > 100 {
		return 0, fmt.Errorf("raw score %v: %w", vote.RawScore, apperrors.ErrScoreOutOfRange)
	}

	ev := domain.RatingEvent{
		RaterID:  vote.RaterID,
		ItemID:   vote.ItemID,
		RawScore: vote.RawScore,
	}

	id, err := r.db.AppendRating(ctx, ev, rank.EventPriority(domain.StreamRating, ""))
	if err != nil {
		return 0, fmt.Errorf("append rating vote: %w", err)
	}

	observability.EventsIngested.WithLabelValues(string(domain.StreamRating)).Inc()
	r.logger.Debug().
		Str(logFieldRater, vote.RaterID).
		Str(logFieldItem, vote.ItemID).
		Int64(logFieldEvent, id).
		Msg("recorded rating vote")

	return id, nil
}

// RecordFavorite appends one favorite mark. Repeat favorites from the same
// rater are accepted; the saturating favorite component bounds their pull.
func (r *Recorder) RecordFavorite(ctx context.Context, vote FavoriteVote) (int64, error) {
	if err := validateUUIDs(vote.RaterID, vote.ItemID); err != nil {
		return 0, err
	}

	ev := domain.FavoriteEvent{
		RaterID: vote.RaterID,
		ItemID:  vote.ItemID,
	}

	id, err := r.db.AppendFavorite(ctx, ev, rank.EventPriority(domain.StreamFavorite, ""))
	if err != nil {
		return 0, fmt.Errorf("append favorite vote: %w", err)
	}

	observability.EventsIngested.WithLabelValues(string(domain.StreamFavorite)).Inc()
	r.logger.Debug().
		Str(logFieldRater, vote.RaterID).
		Str(logFieldItem, vote.ItemID).
		Int64(logFieldEvent, id).
		Msg("recorded favorite")

	return id, nil
}

func validateUUIDs(ids ...string) error {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return fmt.Errorf("%q: %w", id, apperrors.ErrInvalidID)
		}
	}

	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
