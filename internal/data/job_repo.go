package data

import (
	"database/sql"
	"log/slog"

	apperrors "github.com/target/esg-pipeline/internal/errors"
)

var (
	// ErrJobNotFound is returned when a job is not found.
	ErrJobNotFound error = apperrors.NotFound("job not found")
	// ErrJobNotRetryable is returned when re-driving a job that has not failed.
	ErrJobNotRetryable error = apperrors.Conflict("job is not in failed status")
)

// RepoConfig holds configuration options for the job repository.
type RepoConfig struct {
	// RetryDelaySeconds is the backoff before a failed delivery is retried.
	RetryDelaySeconds int
	Logger            *slog.Logger
	TimeProvider      TimeProvider
}

// JobRepo is the PostgreSQL job queue.
type JobRepo struct {
	DB           *sql.DB
	cfg          RepoConfig
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRepo creates a new JobRepo instance with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &JobRepo{
		DB:           db,
		cfg:          cfg,
		timeProvider: tp,
		logger:       logger.With("component", "job_repo"),
	}
}

const jobColumns = `
  id,
  type,
  status,
  priority,
  payload,
  progress,
  result,
  remove_on_complete,
  scheduled_at,
  started_at,
  completed_at,
  retry_count,
  max_retries,
  last_error,
  lease_expires_at,
  created_at,
  updated_at
`

// jobChannel is the LISTEN/NOTIFY channel for new jobs of a type.
func jobChannel(jobType string) string {
	return "job_added_" + jobType
}
