package rank

import (
	"math"

	"github.com/openmuse/aesthete/internal/core/domain"
)

// scaleMidpoint is the neutral center of the published 0-100 scale.
// Components with no evidence sit exactly here so that absence of a signal
// never reads as a negative one.
const scaleMidpoint = 50.0

// Derived is the publishable view computed from an item's accumulators.
type Derived struct {
	Score             float64
	Confidence        float64
	Provisional       bool
	RatingComponent   float64
	SignalComponent   float64
	FavoriteComponent float64
	ReliabilityFactor float64
}

// Derive computes the published view of one item from its persisted stats.
func (c Config) Derive(st domain.ItemStats) Derived {
	d := Derived{
		RatingComponent:   c.scaleRating(st.RatingMean),
		SignalComponent:   scaleMidpoint,
		FavoriteComponent: c.favoriteComponent(st.SumFavoriteWeight),
		ReliabilityFactor: 1,
	}

	if st.SumWeight > 0 {
		d.SignalComponent = clamp(st.SumWeightedRating/st.SumWeight, 0, 100)
	}

	if n := st.TotalRatings + st.TotalFavorites; n > 0 {
		d.ReliabilityFactor = (st.SumWeight + st.SumFavoriteWeight) / float64(n)
	}

	d.Score = clamp(
		c.RatingWeight*d.RatingComponent+
			c.SignalWeight*d.SignalComponent+
			c.FavoriteWeight*d.FavoriteComponent,
		0, 100)

	d.Confidence = c.confidence(st)
	d.Provisional = d.Confidence < c.MinConfidence

	return d
}

// ShouldPublish reports whether a derived view must be written over the
// previously published row. Nil means the item has never been published.
// Writes are suppressed while the score wobbles within the delta threshold
// and the provisional flag holds steady.
func (c Config) ShouldPublish(prev *domain.PublishedScore, next Derived) bool {
	if prev == nil {
		return true
	}

	if prev.Provisional != next.Provisional {
		return true
	}

	return math.Abs(prev.Score-next.Score) > c.MinScoreDelta
}

// scaleRating maps the internal rating scale linearly onto 0-100, with the
// prior mean landing on the midpoint.
func (c Config) scaleRating(mean float64) float64 {
	return clamp((mean-c.MinRating)/(c.MaxRating-c.MinRating)*100, 0, 100)
}

// favoriteComponent saturates from the midpoint toward 100 as reliability-
// weighted favorites accumulate. The first favorites move it most; no count
// ever reaches 100.
func (c Config) favoriteComponent(sumFavoriteWeight float64) float64 {
	if sumFavoriteWeight <= 0 {
		return scaleMidpoint
	}

	return scaleMidpoint + scaleMidpoint*sumFavoriteWeight/(sumFavoriteWeight+c.FavoriteSaturation)
}

// confidence saturates toward (never reaching) 100 as weighted evidence
// accumulates across all three streams. Every folded event adds positive
// evidence, so confidence never decreases.
func (c Config) confidence(st domain.ItemStats) float64 {
	evidence := float64(st.TotalPairwise) + st.SumWeight + st.SumFavoriteWeight

	return 100 * evidence / (evidence + c.HalfEvidence)
}
