package config

import (
	"os"
	"testing"
	"time"
)

// Test environment variable keys.
const (
	testEnvPostgresDSN = "POSTGRES_DSN"
)

// Test values.
const (
	testPostgresDSN = "postgres://localhost/test"
	testErrLoad     = "Load() error = %v"
	testDefaultEnv  = "local"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()

	t.Setenv(testEnvPostgresDSN, testPostgresDSN)
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv(testEnvPostgresDSN)

	_, err := Load()
	if err == nil {
		t.Error("expected error for missing required env vars")
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf(testErrLoad, err)
	}

	if cfg.PostgresDSN != testPostgresDSN {
		t.Errorf("PostgresDSN = %q, want %q", cfg.PostgresDSN, testPostgresDSN)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnvVars(t)

	// Explicitly unset variables that might be in .env to test actual defaults
	os.Unsetenv("APP_ENV")
	os.Unsetenv("HEALTH_PORT")
	os.Unsetenv("WORKER_COUNT")
	os.Unsetenv("WORKER_BATCH_SIZE")
	os.Unsetenv("WORKER_POLL_INTERVAL")
	os.Unsetenv("RECALIBRATE_INTERVAL")
	os.Unsetenv("RETENTION_DAYS")

	cfg, err := Load()
	if err != nil {
		t.Fatalf(testErrLoad, err)
	}

	if cfg.AppEnv != testDefaultEnv {
		t.Errorf("AppEnv default = %q, want %q", cfg.AppEnv, testDefaultEnv)
	}

	if cfg.HealthPort != 8080 {
		t.Errorf("HealthPort default = %d, want %d", cfg.HealthPort, 8080)
	}

	if cfg.WorkerCount != 2 {
		t.Errorf("WorkerCount default = %d, want %d", cfg.WorkerCount, 2)
	}

	if cfg.WorkerBatchSize != 25 {
		t.Errorf("WorkerBatchSize default = %d, want %d", cfg.WorkerBatchSize, 25)
	}

	if cfg.WorkerPollInterval != 2*time.Second {
		t.Errorf("WorkerPollInterval default = %v, want %v", cfg.WorkerPollInterval, 2*time.Second)
	}

	if cfg.RecalibrateInterval != 6*time.Hour {
		t.Errorf("RecalibrateInterval default = %v, want %v", cfg.RecalibrateInterval, 6*time.Hour)
	}

	if _, enabled := cfg.Retention(); enabled {
		t.Error("Retention should be disabled by default")
	}
}

func TestScoringDefaultsAreValid(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf(testErrLoad, err)
	}

	scoring := cfg.Scoring()
	if err := scoring.Validate(); err != nil {
		t.Fatalf("Scoring().Validate() error = %v", err)
	}

	if scoring.PriorMean != 1200 {
		t.Errorf("PriorMean default = %v, want %v", scoring.PriorMean, 1200.0)
	}

	if scoring.MinScoreDelta != 0.5 {
		t.Errorf("MinScoreDelta default = %v, want %v", scoring.MinScoreDelta, 0.5)
	}
}

func TestRetention(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("RETENTION_DAYS", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf(testErrLoad, err)
	}

	cutoff, enabled := cfg.Retention()
	if !enabled {
		t.Fatal("Retention should be enabled for RETENTION_DAYS=30")
	}

	if cutoff != 30*24*time.Hour {
		t.Errorf("Retention cutoff = %v, want %v", cutoff, 30*24*time.Hour)
	}
}
