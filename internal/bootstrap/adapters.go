package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/esg-pipeline/config"
	"github.com/target/esg-pipeline/internal/adapters/jobrunner"
	"github.com/target/esg-pipeline/internal/adapters/reaper"
	"github.com/target/esg-pipeline/internal/domain/model"
)

// EsgRunnerConfig contains what the analysis job runner needs.
type EsgRunnerConfig struct {
	Services *ServiceContainer
	Config   config.EsgRunnerConfig
	Logger   *slog.Logger
}

// RunEsgRunner pulls analysis jobs until ctx is done.
func RunEsgRunner(ctx context.Context, cfg EsgRunnerConfig) error {
	if cfg.Services == nil || cfg.Services.Worker == nil || cfg.Services.Jobs == nil {
		return errors.New("esg runner requires the job service and analysis worker")
	}
	runner, err := jobrunner.NewRunner(jobrunner.RunnerOptions{
		Jobs:           cfg.Services.Jobs,
		Processor:      cfg.Services.Worker,
		Concurrency:    cfg.Config.Concurrency,
		JobTimeout:     cfg.Config.QueueTimeout,
		PersistTimeout: cfg.Config.PersistTimeout,
		PollInterval:   cfg.Config.PollInterval,
		Logger:         cfg.Logger,
		Metrics:        cfg.Services.Observability.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create %s runner: %w", model.JobTypeEsgAnalysis, err)
	}
	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run %s runner: %w", model.JobTypeEsgAnalysis, err)
	}
	return nil
}

// ReaperConfig contains configuration for the reaper.
type ReaperConfig struct {
	DB       *sql.DB
	Services *ServiceContainer
	Config   config.ReaperConfig
	Logger   *slog.Logger
}

// RunReaper starts the reaper service.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	if cfg.Services == nil {
		return errors.New("reaper requires the service container")
	}
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		DB:          cfg.DB,
		Config:      cfg.Config,
		Broadcaster: cfg.Services.Broadcaster,
		Jobs:        cfg.Services.Jobs,
		Logger:      cfg.Logger,
		Metrics:     cfg.Services.Observability.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}
	return runner.Run(ctx)
}

// RunStatusRelay feeds updates published by any process into the local hub.
func RunStatusRelay(ctx context.Context, services *ServiceContainer) error {
	if services == nil || services.Relay == nil {
		return nil
	}
	return services.Relay.Run(ctx, services.Hub.Deliver)
}
