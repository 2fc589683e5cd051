package rank

import "math"

// Calibration is a rater's online rating distribution, accumulated with
// Welford's method so mean and variance stay exact over a single pass.
type Calibration struct {
	Mean    float64
	M2      float64
	Samples int
}

// Observe folds one raw score into the accumulator and returns the updated
// calibration.
func (cal Calibration) Observe(raw float64) Calibration {
	cal.Samples++
	delta := raw - cal.Mean
	cal.Mean += delta / float64(cal.Samples)
	cal.M2 += delta * (raw - cal.Mean)

	return cal
}

// Std returns the rater's sample standard deviation. Raters with fewer than
// two samples have no defined variance and get the default spread; raters
// who always submit the same score get the floor instead of a zero that
// would blow up normalization.
func (cal Calibration) Std(cfg Config) float64 {
	if cal.Samples < 2 {
		return cfg.DefaultStd
	}

	return math.Max(cfg.StdFloor, math.Sqrt(cal.M2/float64(cal.Samples-1)))
}

// Normalize maps a raw 0-100 score onto the global scale through the rater's
// personal distribution: z-score against their mean and deviation,
// re-centered at the scale midpoint, clamped. A chronically generous rater's
// 80 and a harsh rater's 40 can land on the same normalized value.
func (cal Calibration) Normalize(raw float64, cfg Config) float64 {
	z := (raw - cal.Mean) / cal.Std(cfg)

	return clamp(scaleMidpoint+z*cfg.Spread, 0, 100)
}

// ClampReliability bounds a reliability value to the configured range.
func (c Config) ClampReliability(rel float64) float64 {
	return clamp(rel, c.ReliabilityMin, c.ReliabilityMax)
}

// NudgeReliability moves a rater's reliability one step toward the target
// implied by their agreement rate with settled outcomes. Agreement 0.5 is
// chance level and targets the neutral 1.0; perfect agreement targets the
// upper bound, systematic disagreement the floor.
func (c Config) NudgeReliability(current, agreement float64) float64 {
	target := c.ClampReliability(2 * agreement)

	return c.ClampReliability(current + c.ReliabilityStep*(target-current))
}
