// Package reaper runs the queue reaper against the database.
package reaper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/esg-pipeline/config"
	"github.com/target/esg-pipeline/internal/core"
	"github.com/target/esg-pipeline/internal/data"
	"github.com/target/esg-pipeline/internal/observability/statsd"
	"github.com/target/esg-pipeline/internal/service"
)

// Runner owns a ReaperService wired to the database.
type Runner struct {
	reaper *service.ReaperService
	logger *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	DB          *sql.DB
	Config      config.ReaperConfig
	Broadcaster core.StatusBroadcaster
	// Jobs reports expired jobs to the failure notifier. Optional.
	Jobs    *service.JobService
	Logger  *slog.Logger
	Metrics statsd.Sink

	// Optional overrides for tests.
	Repo     core.ReaperRepository
	Analyses core.AnalysisRepository
}

// NewRunner creates a new reaper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.DB == nil && (opts.Repo == nil || opts.Analyses == nil) {
		return nil, errors.New("database connection is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	repo := opts.Repo
	if repo == nil {
		repo = data.NewJobRepo(opts.DB, data.RepoConfig{})
	}
	analyses := opts.Analyses
	if analyses == nil {
		analyses = data.NewAnalysisRepo(opts.DB)
	}

	svcOpts := service.ReaperServiceOptions{
		Repo:        repo,
		Analyses:    analyses,
		Broadcaster: opts.Broadcaster,
		Config:      opts.Config,
		Logger:      opts.Logger,
		Metrics:     opts.Metrics,
	}
	if opts.Jobs != nil {
		svcOpts.Jobs = opts.Jobs
	}
	reaper, err := service.NewReaperService(svcOpts)
	if err != nil {
		return nil, fmt.Errorf("wire reaper service: %w", err)
	}

	return &Runner{reaper: reaper, logger: opts.Logger}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting reaper runner")
	return r.reaper.Run(ctx)
}
