package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/openmuse/aesthete/internal/app"
	"github.com/openmuse/aesthete/internal/platform/config"
	db "github.com/openmuse/aesthete/internal/storage"
)

const (
	modeWorker      = "worker"
	modeRecalibrate = "recalibrate"
	modeHTTP        = "http"
)

func main() {
	mode := flag.String("mode", "", "Service mode (worker, recalibrate, http)")

	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := newLogger(cfg.AppEnv)

	if err := cfg.Scoring().Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid scoring parameters")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poolOpts := db.PoolOptions{
		MaxConns:          cfg.DBMaxConnections,
		MinConns:          cfg.DBMinConnections,
		MaxConnIdleTime:   cfg.DBMaxConnIdleTime,
		MaxConnLifetime:   cfg.DBMaxConnLifetime,
		HealthCheckPeriod: cfg.DBHealthCheckPeriod,
	}

	database, err := db.NewWithOptions(ctx, cfg.PostgresDSN, poolOpts, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	application := app.New(cfg, database, &logger)

	// HTTP mode serves in the foreground; the other modes get the health
	// server in the background.
	if *mode != modeHTTP {
		go func() {
			if err := application.StartHealthServer(ctx); err != nil {
				logger.Error().Err(err).Msg("health check server error")
			}
		}()
	}

	if err := runMode(ctx, application, *mode); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("application stopped")
			return
		}

		logger.Fatal().Err(err).Msg("application error")
	}
}

func newLogger(appEnv string) zerolog.Logger {
	if appEnv == "local" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func runMode(ctx context.Context, application *app.App, mode string) error {
	switch mode {
	case modeWorker:
		return application.RunWorker(ctx)
	case modeRecalibrate:
		return application.RunRecalibrate(ctx)
	case modeHTTP:
		return application.RunHTTP(ctx)
	default:
		log.Fatalf("Usage: %s --mode=[worker|recalibrate|http]", os.Args[0])

		return nil
	}
}
