package rank

import "github.com/openmuse/aesthete/internal/core/domain"

// Dirty-queue priorities. A marker keeps the highest priority of any event
// that touched it since the last claim.
const (
	PriorityPairwise        int16 = 1
	PriorityRating          int16 = 2
	PriorityPairwiseBoosted int16 = 3
	PriorityFavorite        int16 = 4
)

// EventPriority returns the dirty-queue priority for one event: favorites
// beat boosted pairwise votes, which beat slider ratings, which beat normal
// pairwise votes.
func EventPriority(stream domain.Stream, class domain.WeightClass) int16 {
	switch stream {
	case domain.StreamFavorite:
		return PriorityFavorite
	case domain.StreamRating:
		return PriorityRating
	case domain.StreamPairwise:
		if class == domain.WeightClassBoosted {
			return PriorityPairwiseBoosted
		}

		return PriorityPairwise
	}

	return PriorityPairwise
}

// VoteWeight returns the fold weight of a pairwise vote class. Boosted
// votes count roughly double.
func (c Config) VoteWeight(class domain.WeightClass) float64 {
	if class == domain.WeightClassBoosted {
		return c.BoostFactor
	}

	return 1
}
