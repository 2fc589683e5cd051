// Package app provides the main application bootstrap and runtime orchestration.
//
// The App type wires together all dependencies and exposes methods to run
// different operational modes:
//
//   - Worker mode: dirty-queue claimers that fold events into item stats and
//     publish scores, plus the reliability recalibrator
//   - Recalibrate mode: standalone reliability sweep for split deployments
//   - HTTP mode: standalone health, metrics and leaderboard server
//
// Each mode can be run independently or combined based on deployment needs.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/openmuse/aesthete/internal/leaderboard"
	"github.com/openmuse/aesthete/internal/platform/config"
	"github.com/openmuse/aesthete/internal/platform/observability"
	"github.com/openmuse/aesthete/internal/process/recalibrate"
	"github.com/openmuse/aesthete/internal/process/updater"
	db "github.com/openmuse/aesthete/internal/storage"
)

const logFieldWorker = "worker"

// App holds the application dependencies and provides methods to run different modes.
type App struct {
	cfg      *config.Config
	database *db.DB
	logger   *zerolog.Logger
}

// New creates a new App instance with the given dependencies.
func New(cfg *config.Config, database *db.DB, logger *zerolog.Logger) *App {
	return &App{
		cfg:      cfg,
		database: database,
		logger:   logger,
	}
}

// StartHealthServer starts the health check and metrics server with the
// read-only leaderboard API mounted.
func (a *App) StartHealthServer(ctx context.Context) error {
	api := leaderboard.NewHandler(a.database, a.logger)

	srv := observability.NewServerWithAPI(a.database, a.cfg.HealthPort, api, a.logger)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("health server start: %w", err)
	}

	return nil
}

// RunHTTP runs the HTTP-only mode serving health checks, metrics and the
// leaderboard API. This mode is designed for zero-downtime deployments with
// RollingUpdate strategy.
func (a *App) RunHTTP(ctx context.Context) error {
	a.logger.Info().Msg("Starting HTTP-only mode")

	return a.StartHealthServer(ctx)
}

// RunWorker runs the worker mode: WorkerCount stats updaters sharing the
// dirty queue, plus the reliability recalibrator. The recalibration advisory
// lock keeps replicated deployments from sweeping twice.
func (a *App) RunWorker(ctx context.Context) error {
	count := a.cfg.WorkerCount
	if count < 1 {
		count = 1
	}

	a.logger.Info().Int("workers", count).Msg("Starting worker mode")

	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < count; i++ {
		id := i

		g.Go(func() error {
			return a.runUpdater(ctx, id)
		})
	}

	g.Go(func() error {
		return a.runRecalibrator(ctx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("worker mode: %w", err)
	}

	return nil
}

// RunRecalibrate runs the reliability recalibration sweep on its own.
func (a *App) RunRecalibrate(ctx context.Context) error {
	a.logger.Info().Msg("Starting recalibrate mode")

	return a.runRecalibrator(ctx)
}

func (a *App) runUpdater(ctx context.Context, id int) error {
	logger := a.logger.With().Int(logFieldWorker, id).Logger()
	w := updater.NewWorker(a.cfg, a.database, &logger)

	if err := w.Run(ctx); err != nil {
		return fmt.Errorf("updater %d: %w", id, err)
	}

	return nil
}

func (a *App) runRecalibrator(ctx context.Context) error {
	w := recalibrate.NewWorker(a.cfg, a.database, a.logger)

	if err := w.Run(ctx); err != nil {
		return fmt.Errorf("recalibrator: %w", err)
	}

	return nil
}
