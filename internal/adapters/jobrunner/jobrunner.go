// Package jobrunner runs ESG analysis jobs with a bounded worker pool.
package jobrunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/target/esg-pipeline/internal/domain/model"
	obserrors "github.com/target/esg-pipeline/internal/observability/errors"
	"github.com/target/esg-pipeline/internal/observability/metrics"
	"github.com/target/esg-pipeline/internal/observability/statsd"
	"github.com/target/esg-pipeline/internal/service"
)

const (
	defaultJobTimeout     = 40 * time.Minute
	defaultPersistTimeout = 30 * time.Second
	componentLabel        = "esg_runner"
)

// Processor executes one job and returns its result document.
type Processor interface {
	Process(ctx context.Context, job *model.Job) ([]byte, error)
}

// Queue is the part of the job service the runner drives.
type Queue interface {
	ReserveNext(ctx context.Context, jobType model.JobType) (*model.Job, error)
	Subscribe(jobType model.JobType) (func(), <-chan struct{})
	Complete(ctx context.Context, id string, result []byte) (bool, error)
	Fail(ctx context.Context, job *model.Job, errMsg string, details service.JobFailureDetails) (bool, error)
}

// RunnerOptions configures the job runner.
type RunnerOptions struct {
	Jobs      Queue     // Required
	Processor Processor // Required

	// Concurrency is the number of workers; defaults to 1.
	Concurrency int
	// JobTimeout bounds one job end to end; defaults to the 40m queue timeout.
	JobTimeout time.Duration
	// PersistTimeout bounds the complete/fail write after a job returns.
	PersistTimeout time.Duration
	// PollInterval wakes idle workers without a notification. Zero disables it.
	PollInterval time.Duration

	Logger  *slog.Logger
	Metrics statsd.Sink
}

// Runner pulls ESG analysis jobs and hands them to the processor.
type Runner struct {
	jobs           Queue
	processor      Processor
	workers        int
	jobTimeout     time.Duration
	persistTimeout time.Duration
	pollInterval   time.Duration
	logger         *slog.Logger
	metrics        statsd.Sink
}

// NewRunner constructs a job runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Jobs == nil {
		return nil, errors.New("job queue is required")
	}
	if opts.Processor == nil {
		return nil, errors.New("job processor is required")
	}

	r := &Runner{
		jobs:           opts.Jobs,
		processor:      opts.Processor,
		workers:        max(opts.Concurrency, 1),
		jobTimeout:     opts.JobTimeout,
		persistTimeout: opts.PersistTimeout,
		pollInterval:   opts.PollInterval,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
	}
	if r.jobTimeout <= 0 {
		r.jobTimeout = defaultJobTimeout
	}
	if r.persistTimeout <= 0 {
		r.persistTimeout = defaultPersistTimeout
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With("component", componentLabel)
	return r, nil
}

// Run starts the workers and processes jobs until ctx is cancelled. The
// first worker error stops the others and is returned.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting job runner",
		"type", model.JobTypeEsgAnalysis,
		"workers", r.workers,
		"job_timeout", r.jobTimeout,
	)

	unsub, notify := r.jobs.Subscribe(model.JobTypeEsgAnalysis)
	defer unsub()

	g, gctx := errgroup.WithContext(ctx)
	for range r.workers {
		g.Go(func() error {
			return r.workerLoop(gctx, notify)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return ctx.Err()
}

func (r *Runner) workerLoop(ctx context.Context, notify <-chan struct{}) error {
	for ctx.Err() == nil {
		job, err := r.jobs.ReserveNext(ctx, model.JobTypeEsgAnalysis)
		switch {
		case err == nil:
			r.processJob(ctx, job)
		case errors.Is(err, model.ErrNoJobsAvailable):
			if !r.waitForWork(ctx, notify) {
				return nil
			}
		case ctx.Err() != nil:
			return nil
		default:
			return fmt.Errorf("reserve next: %w", err)
		}
	}
	return nil
}

func (r *Runner) waitForWork(ctx context.Context, notify <-chan struct{}) bool {
	var poll <-chan time.Time
	if r.pollInterval > 0 {
		t := time.NewTimer(r.pollInterval)
		defer t.Stop()
		poll = t.C
	}
	select {
	case <-ctx.Done():
		return false
	case _, ok := <-notify:
		// A closed channel means the listener stopped; fall back to polling.
		if !ok && poll == nil {
			<-ctx.Done()
			return false
		}
		return true
	case <-poll:
		return true
	}
}

func (r *Runner) processJob(ctx context.Context, job *model.Job) {
	start := time.Now()
	emit := func(transition, result string, err error) {
		metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
			JobType:    string(job.Type),
			Transition: transition,
			Result:     result,
			Duration:   time.Since(start),
			Err:        err,
		})
	}
	emit("reserved", metrics.ResultSuccess, nil)

	jobCtx, cancel := context.WithTimeout(ctx, r.jobTimeout)
	result, err := r.processor.Process(jobCtx, job)
	cancel()

	// The outcome is known; record it even when shutdown has begun.
	persistCtx, cancelPersist := context.WithTimeout(context.WithoutCancel(ctx), r.persistTimeout)
	defer cancelPersist()

	if err != nil {
		if _, ferr := r.jobs.Fail(persistCtx, job, err.Error(), failureDetails(err)); ferr != nil {
			r.logger.ErrorContext(ctx, "fail job error", "job_id", job.ID, "error", ferr, "original_error", err)
		}
		emit("failed", metrics.ResultError, err)
		return
	}

	completed, cerr := r.jobs.Complete(persistCtx, job.ID, result)
	switch {
	case cerr != nil:
		r.logger.ErrorContext(ctx, "complete job error", "job_id", job.ID, "error", cerr)
		emit("completed", metrics.ResultError, cerr)
	case completed:
		emit("completed", metrics.ResultSuccess, nil)
	default:
		emit("completed", metrics.ResultNoop, nil)
	}
}

func failureDetails(err error) service.JobFailureDetails {
	var details service.JobFailureDetails
	var jobErr *service.JobError
	if errors.As(err, &jobErr) {
		details = jobErr.Details
	}
	details.ErrorClass = obserrors.Classify(err)
	if details.Metadata == nil {
		details.Metadata = map[string]string{}
	}
	details.Metadata["component"] = componentLabel
	return details
}
