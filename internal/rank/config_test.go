package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidateRejectsBrokenConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero base step", func(c *Config) { c.BaseStep = 0 }},
		{"boost below one", func(c *Config) { c.BoostFactor = 0.5 }},
		{"decay above one", func(c *Config) { c.UncertaintyDecay = 1.5 }},
		{"zero uncertainty floor", func(c *Config) { c.UncertaintyFloor = 0 }},
		{"inverted rating bounds", func(c *Config) { c.MinRating, c.MaxRating = 2000, 400 }},
		{"prior outside bounds", func(c *Config) { c.PriorMean = 100 }},
		{"std default below floor", func(c *Config) { c.DefaultStd = 1 }},
		{"zero spread", func(c *Config) { c.Spread = 0 }},
		{"reliability floor above neutral", func(c *Config) { c.ReliabilityMin = 1.5 }},
		{"zero reliability step", func(c *Config) { c.ReliabilityStep = 0 }},
		{"zero reliability min samples", func(c *Config) { c.ReliabilityMinSamples = 0 }},
		{"weights not summing to one", func(c *Config) { c.FavoriteWeight = 0.5 }},
		{"zero favorite saturation", func(c *Config) { c.FavoriteSaturation = 0 }},
		{"zero half evidence", func(c *Config) { c.HalfEvidence = 0 }},
		{"confidence threshold at cap", func(c *Config) { c.MinConfidence = 100 }},
		{"negative score delta", func(c *Config) { c.MinScoreDelta = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			assert.Error(t, cfg.Validate())
		})
	}
}
