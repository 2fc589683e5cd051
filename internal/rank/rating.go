package rank

import (
	"math"

	"github.com/openmuse/aesthete/internal/core/domain"
)

// ExpectedOutcome returns the probability that a rating beats an opponent
// under the logistic Elo curve. Equal ratings give 0.5.
func ExpectedOutcome(rating, opponent float64) float64 {
	return 1.0 / (1.0 + math.Pow(10.0, (opponent-rating)/400.0))
}

// ApplyPairwise folds one pairwise outcome into an item's (mean, uncertainty)
// pair. The opponent rating is the snapshot frozen at vote time, so folding
// the same events always moves the mean by the same amounts regardless of
// what happened to the opponent since.
func (c Config) ApplyPairwise(mean, uncertainty, opponentSnapshot float64, won bool, class domain.WeightClass) (float64, float64) {
	expected := ExpectedOutcome(mean, opponentSnapshot)

	actual := 0.0
	if won {
		actual = 1.0
	}

	mean += c.BaseStep * c.VoteWeight(class) * (actual - expected)
	mean = clamp(mean, c.MinRating, c.MaxRating)

	uncertainty = math.Max(c.UncertaintyFloor, uncertainty*c.UncertaintyDecay)

	return mean, uncertainty
}
