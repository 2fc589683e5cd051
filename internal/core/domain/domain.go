package domain

import "time"

// WeightClass distinguishes normal pairwise votes from boosted ones
// (curated duels, featured drops) that carry roughly double weight.
type WeightClass string

// Weight class constants.
const (
	WeightClassNormal  WeightClass = "normal"
	WeightClassBoosted WeightClass = "boosted"
)

// Valid reports whether the weight class is one the engine knows.
func (w WeightClass) Valid() bool {
	return w == WeightClassNormal || w == WeightClassBoosted
}

// Stream identifies one of the three append-only event streams.
type Stream string

// Stream constants.
const (
	StreamPairwise Stream = "pairwise"
	StreamRating   Stream = "rating"
	StreamFavorite Stream = "favorite"
)

// PairwiseEvent is one head-to-head comparison between two items.
// ItemARating and ItemBRating are the rating snapshots captured when the
// matchup was served; folds always use these, never live ratings.
type PairwiseEvent struct {
	ID          int64
	RaterID     string
	ItemA       string
	ItemB       string
	Winner      string
	ItemARating float64
	ItemBRating float64
	Class       WeightClass
	CreatedAt   time.Time
}

// Opponent returns the frozen snapshot rating of the item facing itemID,
// and whether itemID won the comparison.
func (e PairwiseEvent) Opponent(itemID string) (snapshot float64, won bool) {
	if itemID == e.ItemA {
		return e.ItemBRating, e.Winner == e.ItemA
	}

	return e.ItemARating, e.Winner == e.ItemB
}

// RatingEvent is one absolute judgement on the 0-100 slider.
type RatingEvent struct {
	ID        int64
	RaterID   string
	ItemID    string
	RawScore  float64
	CreatedAt time.Time
}

// FavoriteEvent is one favorite mark.
type FavoriteEvent struct {
	ID        int64
	RaterID   string
	ItemID    string
	CreatedAt time.Time
}

// Rater holds per-rater calibration and reliability state.
// RatingMean, RatingM2 and RatingSamples form a Welford accumulator over
// the rater's own raw scores; Reliability is a bounded weight multiplier
// applied to everything the rater submits.
type Rater struct {
	ID                   string
	RatingMean           float64
	RatingM2             float64
	RatingSamples        int
	Reliability          float64
	ReliabilitySamples   int
	ReliabilityUpdatedAt time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ItemStats is the per-item incremental accumulator row. Checkpoints record
// the highest folded event id per stream; events at or below a checkpoint
// are never folded again.
type ItemStats struct {
	ItemID            string
	RatingMean        float64
	RatingUncertainty float64
	LastPairwiseID    int64
	LastRatingID      int64
	LastFavoriteID    int64
	SumWeightedRating float64
	SumWeight         float64
	SumFavoriteWeight float64
	TotalPairwise     int
	TotalRatings      int
	TotalFavorites    int
	UpdatedAt         time.Time
}

// DirtyItem is one row of the deduplicating dirty set.
type DirtyItem struct {
	ItemID      string
	Priority    int16
	FirstSeenAt time.Time
	LastEventAt time.Time
}

// PublishedScore is the consumer-facing score row with its component
// breakdown. Provisional rows are persisted but excluded from leaderboards.
type PublishedScore struct {
	ItemID            string
	Score             float64
	Confidence        float64
	Provisional       bool
	RatingComponent   float64
	SignalComponent   float64
	FavoriteComponent float64
	ReliabilityFactor float64
	RatingMean        float64
	RatingUncertainty float64
	UpdatedAt         time.Time
}

// PipelineHealth is a point-in-time snapshot of queue and publish state.
type PipelineHealth struct {
	DirtyCount       int
	OldestDirtyAge   time.Duration
	PublishedCount   int
	ProvisionalCount int
}
