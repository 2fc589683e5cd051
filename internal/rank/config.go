// Package rank implements the scoring math of the aesthetic-ranking engine:
// pairwise rating folds against frozen opponent snapshots, per-rater
// calibration of raw slider scores, and the blended published score with its
// confidence measure. Everything here is pure; persistence lives in storage.
package rank

import (
	"fmt"
	"math"
)

// Config carries every tunable of the scoring pipeline. It is built once at
// startup, passed explicitly to the pure functions, and never mutated.
// Version identifies the parameter set in logs so published scores can be
// traced back to the knobs that produced them.
type Config struct {
	Version string

	// Pairwise fold.
	PriorMean        float64
	PriorUncertainty float64
	BaseStep         float64
	BoostFactor      float64
	UncertaintyDecay float64
	UncertaintyFloor float64
	MinRating        float64
	MaxRating        float64

	// Rater calibration.
	DefaultStd float64
	StdFloor   float64
	Spread     float64

	// Rater reliability bounds.
	ReliabilityMin        float64
	ReliabilityMax        float64
	ReliabilityStep       float64
	ReliabilityMinSamples int

	// Publishing.
	RatingWeight       float64
	SignalWeight       float64
	FavoriteWeight     float64
	FavoriteSaturation float64
	HalfEvidence       float64
	MinConfidence      float64
	MinScoreDelta      float64
}

// DefaultConfig returns the production parameter set.
func DefaultConfig() Config {
	return Config{
		Version:               "v1",
		PriorMean:             1200,
		PriorUncertainty:      350,
		BaseStep:              32,
		BoostFactor:           2,
		UncertaintyDecay:      0.97,
		UncertaintyFloor:      60,
		MinRating:             400,
		MaxRating:             2000,
		DefaultStd:            20,
		StdFloor:              5,
		Spread:                20,
		ReliabilityMin:        0.1,
		ReliabilityMax:        2.0,
		ReliabilityStep:       0.25,
		ReliabilityMinSamples: 10,
		RatingWeight:          0.45,
		SignalWeight:          0.35,
		FavoriteWeight:        0.20,
		FavoriteSaturation:    5,
		HalfEvidence:          20,
		MinConfidence:         25,
		MinScoreDelta:         0.5,
	}
}

// Validate rejects parameter sets that would make the fold diverge or
// divide by zero.
func (c Config) Validate() error {
	if c.BaseStep <= 0 {
		return fmt.Errorf("base step must be positive, got %v", c.BaseStep)
	}

	if c.BoostFactor < 1 {
		return fmt.Errorf("boost factor must be >= 1, got %v", c.BoostFactor)
	}

	if c.UncertaintyDecay <= 0 || c.UncertaintyDecay > 1 {
		return fmt.Errorf("uncertainty decay must be in (0,1], got %v", c.UncertaintyDecay)
	}

	if c.UncertaintyFloor <= 0 || c.UncertaintyFloor > c.PriorUncertainty {
		return fmt.Errorf("uncertainty floor must be in (0,%v], got %v", c.PriorUncertainty, c.UncertaintyFloor)
	}

	if c.MinRating >= c.MaxRating {
		return fmt.Errorf("rating bounds inverted: [%v,%v]", c.MinRating, c.MaxRating)
	}

	if c.PriorMean < c.MinRating || c.PriorMean > c.MaxRating {
		return fmt.Errorf("prior mean %v outside rating bounds [%v,%v]", c.PriorMean, c.MinRating, c.MaxRating)
	}

	if c.StdFloor <= 0 || c.DefaultStd < c.StdFloor {
		return fmt.Errorf("calibration std floor %v and default %v are inconsistent", c.StdFloor, c.DefaultStd)
	}

	if c.Spread <= 0 {
		return fmt.Errorf("calibration spread must be positive, got %v", c.Spread)
	}

	if c.ReliabilityMin <= 0 || c.ReliabilityMin >= 1 || c.ReliabilityMax <= 1 {
		return fmt.Errorf("reliability bounds [%v,%v] must straddle the neutral 1.0", c.ReliabilityMin, c.ReliabilityMax)
	}

	if c.ReliabilityStep <= 0 || c.ReliabilityStep > 1 {
		return fmt.Errorf("reliability step must be in (0,1], got %v", c.ReliabilityStep)
	}

	if c.ReliabilityMinSamples < 1 {
		return fmt.Errorf("reliability min samples must be at least 1, got %v", c.ReliabilityMinSamples)
	}

	sum := c.RatingWeight + c.SignalWeight + c.FavoriteWeight
	if math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("component weights must sum to 1, got %v", sum)
	}

	if c.RatingWeight < 0 || c.SignalWeight < 0 || c.FavoriteWeight < 0 {
		return fmt.Errorf("component weights must be non-negative")
	}

	if c.FavoriteSaturation <= 0 {
		return fmt.Errorf("favorite saturation must be positive, got %v", c.FavoriteSaturation)
	}

	if c.HalfEvidence <= 0 {
		return fmt.Errorf("half evidence must be positive, got %v", c.HalfEvidence)
	}

	if c.MinConfidence < 0 || c.MinConfidence >= 100 {
		return fmt.Errorf("minimum confidence must be in [0,100), got %v", c.MinConfidence)
	}

	if c.MinScoreDelta < 0 {
		return fmt.Errorf("minimum score delta must be non-negative, got %v", c.MinScoreDelta)
	}

	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
