package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/openmuse/aesthete/internal/rank"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"local"`
	PostgresDSN string `env:"POSTGRES_DSN,required"`
	HealthPort  int    `env:"HEALTH_PORT" envDefault:"8080"`

	// Database pool
	DBMaxConnections    int32         `env:"DB_MAX_CONNECTIONS" envDefault:"25"`
	DBMinConnections    int32         `env:"DB_MIN_CONNECTIONS" envDefault:"5"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`

	// Stats updater workers
	WorkerCount        int           `env:"WORKER_COUNT" envDefault:"2"`
	WorkerBatchSize    int           `env:"WORKER_BATCH_SIZE" envDefault:"25"`
	WorkerPollInterval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"2s"`
	EventFetchLimit    int           `env:"EVENT_FETCH_LIMIT" envDefault:"500"`
	ReconcileInterval  time.Duration `env:"RECONCILE_INTERVAL" envDefault:"5m"`
	ReconcileLookback  time.Duration `env:"RECONCILE_LOOKBACK" envDefault:"24h"`
	RetentionDays      int           `env:"RETENTION_DAYS" envDefault:"0"`

	// Reliability recalibration
	RecalibrateInterval     time.Duration `env:"RECALIBRATE_INTERVAL" envDefault:"6h"`
	RecalibrateSettleWindow time.Duration `env:"RECALIBRATE_SETTLE_WINDOW" envDefault:"72h"`
	RecalibrateBatch        int           `env:"RECALIBRATE_BATCH" envDefault:"200"`
	RecalibrateVoteSample   int           `env:"RECALIBRATE_VOTE_SAMPLE" envDefault:"200"`
	RecalibrateRPS          float64       `env:"RECALIBRATE_RPS" envDefault:"20"`

	// Scoring parameters
	ScoringVersion         string  `env:"SCORING_VERSION" envDefault:"v1"`
	RatingPriorMean        float64 `env:"RATING_PRIOR_MEAN" envDefault:"1200"`
	RatingPriorUncertainty float64 `env:"RATING_PRIOR_UNCERTAINTY" envDefault:"350"`
	RatingBaseStep         float64 `env:"RATING_BASE_STEP" envDefault:"32"`
	RatingBoostFactor      float64 `env:"RATING_BOOST_FACTOR" envDefault:"2"`
	RatingUncertaintyDecay float64 `env:"RATING_UNCERTAINTY_DECAY" envDefault:"0.97"`
	RatingUncertaintyFloor float64 `env:"RATING_UNCERTAINTY_FLOOR" envDefault:"60"`
	RatingScaleMin         float64 `env:"RATING_SCALE_MIN" envDefault:"400"`
	RatingScaleMax         float64 `env:"RATING_SCALE_MAX" envDefault:"2000"`
	CalibrationDefaultStd  float64 `env:"CALIBRATION_DEFAULT_STD" envDefault:"20"`
	CalibrationStdFloor    float64 `env:"CALIBRATION_STD_FLOOR" envDefault:"5"`
	CalibrationSpread      float64 `env:"CALIBRATION_SPREAD" envDefault:"20"`
	ReliabilityMin         float64 `env:"RELIABILITY_MIN" envDefault:"0.1"`
	ReliabilityMax         float64 `env:"RELIABILITY_MAX" envDefault:"2.0"`
	ReliabilityStep        float64 `env:"RELIABILITY_STEP" envDefault:"0.25"`
	ReliabilityMinSamples  int     `env:"RELIABILITY_MIN_SAMPLES" envDefault:"10"`
	ScoreRatingWeight      float64 `env:"SCORE_RATING_WEIGHT" envDefault:"0.45"`
	ScoreSignalWeight      float64 `env:"SCORE_SIGNAL_WEIGHT" envDefault:"0.35"`
	ScoreFavoriteWeight    float64 `env:"SCORE_FAVORITE_WEIGHT" envDefault:"0.20"`
	FavoriteSaturation     float64 `env:"FAVORITE_SATURATION" envDefault:"5"`
	ConfidenceHalfEvidence float64 `env:"CONFIDENCE_HALF_EVIDENCE" envDefault:"20"`
	PublishMinConfidence   float64 `env:"PUBLISH_MIN_CONFIDENCE" envDefault:"25"`
	PublishMinDelta        float64 `env:"PUBLISH_MIN_DELTA" envDefault:"0.5"`
}

func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	return cfg, nil
}

// Scoring assembles the versioned scoring parameter set handed to the pure
// rating math. Callers validate it once at startup.
func (c *Config) Scoring() rank.Config {
	return rank.Config{
		Version:               c.ScoringVersion,
		PriorMean:             c.RatingPriorMean,
		PriorUncertainty:      c.RatingPriorUncertainty,
		BaseStep:              c.RatingBaseStep,
		BoostFactor:           c.RatingBoostFactor,
		UncertaintyDecay:      c.RatingUncertaintyDecay,
		UncertaintyFloor:      c.RatingUncertaintyFloor,
		MinRating:             c.RatingScaleMin,
		MaxRating:             c.RatingScaleMax,
		DefaultStd:            c.CalibrationDefaultStd,
		StdFloor:              c.CalibrationStdFloor,
		Spread:                c.CalibrationSpread,
		ReliabilityMin:        c.ReliabilityMin,
		ReliabilityMax:        c.ReliabilityMax,
		ReliabilityStep:       c.ReliabilityStep,
		ReliabilityMinSamples: c.ReliabilityMinSamples,
		RatingWeight:          c.ScoreRatingWeight,
		SignalWeight:          c.ScoreSignalWeight,
		FavoriteWeight:        c.ScoreFavoriteWeight,
		FavoriteSaturation:    c.FavoriteSaturation,
		HalfEvidence:          c.ConfidenceHalfEvidence,
		MinConfidence:         c.PublishMinConfidence,
		MinScoreDelta:         c.PublishMinDelta,
	}
}

// Retention returns the event retention cutoff duration, or false when
// pruning is disabled.
func (c *Config) Retention() (time.Duration, bool) {
	if c.RetentionDays <= 0 {
		return 0, false
	}

	return time.Duration(c.RetentionDays) * 24 * time.Hour, true
}
