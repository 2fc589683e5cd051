// Package recalibrate periodically re-derives rater reliability from each
// rater's agreement with settled pairwise outcomes. Sweeps are serialized
// across instances with an advisory lock and paced with a rate limiter so a
// large backlog of raters cannot starve the scoring workers.
package recalibrate

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/openmuse/aesthete/internal/platform/config"
	"github.com/openmuse/aesthete/internal/platform/observability"
	"github.com/openmuse/aesthete/internal/platform/worker"
	"github.com/openmuse/aesthete/internal/rank"
	db "github.com/openmuse/aesthete/internal/storage"
)

const (
	logFieldRater = "rater_id"
	logFieldCount = "count"
)

// Worker runs the periodic reliability recalibration sweep.
type Worker struct {
	cfg     *config.Config
	scoring rank.Config
	db      Repository
	limiter *rate.Limiter
	logger  *zerolog.Logger
}

// NewWorker creates a recalibration worker.
func NewWorker(cfg *config.Config, database Repository, logger *zerolog.Logger) *Worker {
	limit := rate.Limit(cfg.RecalibrateRPS)
	if limit <= 0 {
		limit = rate.Inf
	}

	return &Worker{
		cfg:     cfg,
		scoring: cfg.Scoring(),
		db:      database,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Run starts the recalibration ticker and blocks until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	//nolint:wrapcheck // loop errors are already wrapped with the worker name
	return worker.SingleTickerLoop(ctx, worker.SingleTickerConfig{
		Name:       "reliability recalibrator",
		Interval:   w.cfg.RecalibrateInterval,
		OnTick:     w.sweep,
		RunOnStart: true,
		Logger:     w.logger,
	})
}

// sweep recalibrates one batch of due raters. Only one instance sweeps at a
// time; the others skip the tick.
func (w *Worker) sweep(ctx context.Context) {
	release, acquired, err := w.db.TryAdvisoryLock(ctx, db.RecalibrationLockID)
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to acquire recalibration lock")

		return
	}

	if !acquired {
		w.logger.Debug().Msg("recalibration running elsewhere, skipping sweep")

		return
	}
	defer release()

	now := time.Now()

	raterIDs, err := w.db.RatersDueRecalibration(ctx,
		now.Add(-w.cfg.RecalibrateInterval),
		now.Add(-w.cfg.RecalibrateSettleWindow),
		w.scoring.ReliabilityMinSamples,
		w.cfg.RecalibrateBatch)
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to list raters due recalibration")

		return
	}

	if len(raterIDs) == 0 {
		return
	}

	recalibrated := 0

	for _, raterID := range raterIDs {
		if err := w.limiter.Wait(ctx); err != nil {
			w.logger.Debug().Err(err).Msg("recalibration sweep interrupted")

			return
		}

		if err := w.recalibrateRater(ctx, raterID, now); err != nil {
			w.logger.Error().Err(err).Str(logFieldRater, raterID).Msg("failed to recalibrate rater")

			continue
		}

		recalibrated++
	}

	w.logger.Info().Int(logFieldCount, recalibrated).Msg("recalibration sweep finished")
}

// recalibrateRater nudges one rater's reliability toward the target implied
// by their agreement with settled outcomes.
func (w *Worker) recalibrateRater(ctx context.Context, raterID string, now time.Time) error {
	rater, err := w.db.GetRater(ctx, raterID)
	if err != nil {
		return fmt.Errorf("get rater: %w", err)
	}

	if rater == nil {
		return nil
	}

	votes, err := w.db.SettledVotes(ctx, raterID,
		now.Add(-w.cfg.RecalibrateSettleWindow), w.cfg.RecalibrateVoteSample)
	if err != nil {
		return fmt.Errorf("settled votes: %w", err)
	}

	if len(votes) < w.scoring.ReliabilityMinSamples {
		return nil
	}

	agreement := agreementRate(votes)
	next := w.scoring.NudgeReliability(rater.Reliability, agreement)

	if err := w.db.UpdateRaterReliability(ctx, raterID, next, len(votes)); err != nil {
		return fmt.Errorf("update reliability: %w", err)
	}

	observability.RaterAgreement.Observe(agreement)
	observability.RatersRecalibrated.Inc()

	w.logger.Debug().
		Str(logFieldRater, raterID).
		Float64("agreement", agreement).
		Float64("reliability", next).
		Msg("recalibrated rater")

	return nil
}

// agreementRate is the fraction of votes whose winner currently outranks the
// loser. Ties count as disagreement.
func agreementRate(votes []db.SettledVote) float64 {
	agreed := 0

	for _, v := range votes {
		if v.WinnerMean > v.LoserMean {
			agreed++
		}
	}

	return float64(agreed) / float64(len(votes))
}
