package rank

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalibrationObserve(t *testing.T) {
	cal := Calibration{Mean: 50}

	for _, raw := range []float64{20, 40, 40, 40, 50, 50, 70, 90} {
		cal = cal.Observe(raw)
	}

	assert.Equal(t, 8, cal.Samples)
	assert.InDelta(t, 50.0, cal.Mean, 1e-9)

	// Sample variance 3200/7, well above the std floor.
	assert.InDelta(t, math.Sqrt(3200.0/7.0), cal.Std(DefaultConfig()), 1e-9)
}

func TestCalibrationStdFallbacks(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		cal  Calibration
		want float64
	}{
		{"no samples", Calibration{Mean: 50}, cfg.DefaultStd},
		{"one sample", Calibration{Mean: 80, Samples: 1}, cfg.DefaultStd},
		{"degenerate variance", Calibration{Mean: 70, M2: 0, Samples: 40}, cfg.StdFloor},
		{"variance below floor", Calibration{Mean: 5, M2: 32, Samples: 8}, cfg.StdFloor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.cal.Std(cfg), 1e-9)
		})
	}
}

func TestNormalize(t *testing.T) {
	cfg := DefaultConfig()

	// An 80 from a rater who averages 60 with std 10 is two deviations
	// above their norm.
	cal := Calibration{Mean: 60, M2: 100, Samples: 2}

	assert.InDelta(t, 90, cal.Normalize(80, cfg), 1e-9)
	assert.InDelta(t, 50, cal.Normalize(60, cfg), 1e-9)
	assert.InDelta(t, 30, cal.Normalize(50, cfg), 1e-9)
}

func TestNormalizeClamps(t *testing.T) {
	cfg := DefaultConfig()
	cal := Calibration{Mean: 50, M2: 25, Samples: 2}

	assert.Equal(t, 100.0, cal.Normalize(100, cfg))
	assert.Equal(t, 0.0, cal.Normalize(0, cfg))
}

func TestNormalizeColdStart(t *testing.T) {
	cfg := DefaultConfig()

	// A fresh rater's first score carries no information about their
	// tendencies yet, so it normalizes to the midpoint.
	cal := Calibration{Mean: 50}.Observe(93)

	assert.InDelta(t, 50, cal.Normalize(93, cfg), 1e-9)
}

func TestNudgeReliability(t *testing.T) {
	cfg := DefaultConfig()

	// Chance-level agreement leaves neutral raters neutral.
	assert.InDelta(t, 1.0, cfg.NudgeReliability(1.0, 0.5), 1e-9)

	// Strong agreement pulls upward, one bounded step at a time.
	up := cfg.NudgeReliability(1.0, 1.0)
	assert.Greater(t, up, 1.0)
	assert.LessOrEqual(t, up, cfg.ReliabilityMax)

	// Systematic disagreement decays toward the floor, never below.
	rel := 1.0
	for i := 0; i < 100; i++ {
		rel = cfg.NudgeReliability(rel, 0)
	}

	assert.InDelta(t, cfg.ReliabilityMin, rel, 1e-6)
}

func TestClampReliability(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, cfg.ReliabilityMin, cfg.ClampReliability(0))
	assert.Equal(t, cfg.ReliabilityMax, cfg.ClampReliability(7))
	assert.Equal(t, 1.3, cfg.ClampReliability(1.3))
}
