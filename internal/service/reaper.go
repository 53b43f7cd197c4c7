package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/esg-pipeline/config"
	"github.com/target/esg-pipeline/internal/core"
	"github.com/target/esg-pipeline/internal/domain/model"
	obserrors "github.com/target/esg-pipeline/internal/observability/errors"
	"github.com/target/esg-pipeline/internal/observability/metrics"
	"github.com/target/esg-pipeline/internal/observability/statsd"
)

// expiredJobNotifier reports jobs failed for exceeding the queue timeout.
// JobService implements it.
type expiredJobNotifier interface {
	NotifyExpired(ctx context.Context, job *model.Job, details JobFailureDetails)
}

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Repo        core.ReaperRepository   // Required: reaper repository
	Analyses    core.AnalysisRepository // Required: forces orphaned records to FAILED
	Broadcaster core.StatusBroadcaster  // Required
	Jobs        expiredJobNotifier      // Optional: failure notifications for expired jobs
	Config      config.ReaperConfig     // Required: reaper configuration
	Logger      *slog.Logger            // Optional: structured logger
	Metrics     statsd.Sink             // Optional: metrics sink (StatsD-compatible)
	Now         func() time.Time        // Optional: clock for tests
}

// ReaperService enforces the queue hard timeout and keeps the queue tidy.
//
// Each pass:
//   - fails running jobs whose lease expired and forces their analysis to FAILED
//   - fails pending jobs nobody picked up
//   - forces PROCESSING analyses without a pending or running job to FAILED
//   - deletes old completed and failed jobs
type ReaperService struct {
	repo        core.ReaperRepository
	analyses    core.AnalysisRepository
	broadcaster core.StatusBroadcaster
	jobs        expiredJobNotifier
	config      config.ReaperConfig
	logger      *slog.Logger
	metrics     statsd.Sink
	now         func() time.Time
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	switch {
	case opts.Repo == nil:
		return nil, errors.New("ReaperRepository is required")
	case opts.Analyses == nil:
		return nil, errors.New("AnalysisRepository is required")
	case opts.Broadcaster == nil:
		return nil, errors.New("StatusBroadcaster is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "reaper_service")
	logger.Debug("ReaperService initialized",
		"interval", opts.Config.Interval,
		"pending_max_age", opts.Config.PendingMaxAge,
		"stale_processing_age", opts.Config.StaleProcessingAge,
	)

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &ReaperService{
		repo:        opts.Repo,
		analyses:    opts.Analyses,
		broadcaster: opts.Broadcaster,
		jobs:        opts.Jobs,
		config:      opts.Config,
		logger:      logger,
		metrics:     opts.Metrics,
		now:         now,
	}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)

	// Spread instances that start together.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if err := s.RunOnce(ctx); err != nil {
		s.logCleanupError(ctx, err, "initial cleanup")
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logCleanupError(ctx, err, "cleanup")
			}
		}
	}
}

// waitWithJitter sleeps a random delay up to 10% of the interval.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter))) // #nosec G115 - bounded by maxJitter

	t := time.NewTimer(jitter)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

type cleanupStep struct {
	operation string
	fn        func(context.Context) (int64, error)
}

type cleanupOutcome struct {
	operation string
	count     int64
	err       error
}

// RunOnce performs one reaper pass. Steps run in order and a failing step
// does not stop the others.
func (s *ReaperService) RunOnce(ctx context.Context) error {
	start := time.Now()
	steps := []cleanupStep{
		{operation: "fail_expired", fn: s.failExpiredLeases},
		{operation: "fail_pending", fn: s.failStalePendingJobs},
		{operation: "fail_stale_processing", fn: s.failStaleProcessing},
		{operation: "delete_completed", fn: s.deleteOldJobs(model.JobStatusCompleted, s.config.CompletedMaxAge)},
		{operation: "delete_failed", fn: s.deleteOldJobs(model.JobStatusFailed, s.config.FailedMaxAge)},
	}

	var (
		errs        []error
		allCanceled = true
		outcomes    = make([]cleanupOutcome, 0, len(steps))
	)
	for _, step := range steps {
		count, err := step.fn(ctx)
		outcomes = append(outcomes, cleanupOutcome{
			operation: step.operation,
			count:     count,
			err:       suppressContextCancellation(err),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.operation, err))
			allCanceled = allCanceled && isContextCancellation(err)
		}
	}

	s.emitCleanupMetrics(outcomes, time.Since(start))

	if len(errs) == 0 {
		return nil
	}
	joined := errors.Join(errs...)
	if allCanceled {
		return context.Canceled
	}
	return fmt.Errorf("cleanup failed: %w", joined)
}

// failExpiredLeases fails running jobs past the queue hard timeout. The
// analysis each one pinned is forced from PROCESSING to FAILED and
// broadcast.
func (s *ReaperService) failExpiredLeases(ctx context.Context) (int64, error) {
	var total int64
	for {
		jobs, err := s.repo.FailExpiredLeases(ctx, s.config.BatchSize)
		if err != nil {
			return total, err
		}
		if len(jobs) == 0 {
			break
		}
		total += int64(len(jobs))

		for _, job := range jobs {
			s.finalizeExpired(ctx, job)
		}
		if len(jobs) < s.config.BatchSize {
			break
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}

	if total > 0 {
		s.logger.WarnContext(ctx, "failed jobs past the queue timeout", "count", total)
	}
	return total, nil
}

func (s *ReaperService) finalizeExpired(ctx context.Context, job *model.Job) {
	details := JobFailureDetails{ErrorClass: "queue_timeout"}
	payload, err := model.DecodeEsgJobPayload(job.Payload)
	if err != nil {
		s.logger.WarnContext(ctx, "expired job has no usable payload", "job_id", job.ID, "error", err)
	} else {
		details.AnalysisID = payload.AnalysisID
		details.OrganizationID = payload.Organization.ID
		details.OrganizationName = payload.Organization.Name
		if _, err := s.forceFailed(ctx, payload.AnalysisID); err != nil {
			s.logger.ErrorContext(ctx, "force expired analysis FAILED", "job_id", job.ID, "analysis_id", payload.AnalysisID, "error", err)
		}
	}
	if s.jobs != nil {
		s.jobs.NotifyExpired(ctx, job, details)
	}
}

// failStaleProcessing forces analyses stuck in PROCESSING to FAILED. Records
// still referenced by a pending or running job are left to the queue.
func (s *ReaperService) failStaleProcessing(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.config.StaleProcessingAge)
	stale, err := s.analyses.FindStaleProcessing(ctx, cutoff, s.config.BatchSize)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, rec := range stale {
		swapped, err := s.forceFailed(ctx, rec.ID)
		if err != nil {
			return total, err
		}
		if swapped {
			total++
		}
	}
	if total > 0 {
		s.logger.WarnContext(ctx, "forced stale analyses to FAILED", "count", total, "max_age", s.config.StaleProcessingAge)
	}
	return total, nil
}

func (s *ReaperService) forceFailed(ctx context.Context, analysisID string) (bool, error) {
	rec, swapped, err := s.analyses.CompareAndSetStatus(ctx, core.CompareAndSetStatusParams{
		ID:   analysisID,
		From: model.AnalysisStatusProcessing,
		To:   model.AnalysisStatusFailed,
	})
	if err != nil || !swapped {
		return false, err
	}
	s.broadcaster.Publish(ctx, rec.Snapshot())
	metrics.EmitAnalysisOutcome(s.metrics, string(model.AnalysisStatusFailed))
	return true, nil
}

// failStalePendingJobs marks pending jobs older than the configured max age
// as failed, batch by batch.
func (s *ReaperService) failStalePendingJobs(ctx context.Context) (int64, error) {
	total, err := drainBatches(ctx, func(ctx context.Context) (int64, error) {
		return s.repo.FailStalePendingJobs(ctx, s.config.PendingMaxAge, s.config.BatchSize)
	})
	if total > 0 {
		s.logger.InfoContext(ctx, "failed stale pending jobs", "count", total, "max_age", s.config.PendingMaxAge)
	}
	return total, err
}

func (s *ReaperService) deleteOldJobs(status model.JobStatus, maxAge time.Duration) func(context.Context) (int64, error) {
	return func(ctx context.Context) (int64, error) {
		total, err := drainBatches(ctx, func(ctx context.Context) (int64, error) {
			return s.repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{
				Status:    status,
				MaxAge:    maxAge,
				BatchSize: s.config.BatchSize,
			})
		})
		if total > 0 {
			s.logger.InfoContext(ctx, "deleted old jobs", "status", status, "count", total, "max_age", maxAge)
		}
		return total, err
	}
}

// drainBatches repeats batch until it affects no rows.
func drainBatches(ctx context.Context, batch func(context.Context) (int64, error)) (int64, error) {
	var total int64
	for {
		count, err := batch(ctx)
		if err != nil {
			return total, err
		}
		total += count
		if count == 0 {
			return total, nil
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}
}

func (s *ReaperService) emitCleanupMetrics(outcomes []cleanupOutcome, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}

	var (
		total    int64
		firstErr error
	)
	for _, o := range outcomes {
		total += o.count
		if firstErr == nil {
			firstErr = o.err
		}
	}

	tags := map[string]string{"result": resultFor(total, firstErr)}
	if firstErr != nil {
		if class := obserrors.Classify(firstErr); class != "" {
			tags["error_class"] = class
		}
	}
	s.metrics.Count("reaper.cleanup", 1, tags)
	if elapsed > 0 {
		s.metrics.Timing("reaper.cleanup_duration", elapsed, metrics.CloneTags(tags))
	}

	for _, o := range outcomes {
		opTags := map[string]string{
			"operation": o.operation,
			"result":    resultFor(o.count, o.err),
		}
		if o.err != nil {
			if class := obserrors.Classify(o.err); class != "" {
				opTags["error_class"] = class
			}
		}
		s.metrics.Count("reaper.cleanup_operation", 1, opTags)
		if o.err == nil && o.count > 0 {
			s.metrics.Count("reaper.jobs_processed", o.count, metrics.CloneTags(opTags))
		}
	}

	if firstErr == nil {
		s.metrics.Gauge("reaper.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}

func resultFor(count int64, err error) string {
	switch {
	case err != nil:
		return metrics.ResultError
	case count == 0:
		return metrics.ResultNoop
	default:
		return metrics.ResultSuccess
	}
}

func (s *ReaperService) logCleanupError(ctx context.Context, err error, label string) {
	if isContextCancellation(err) {
		s.logger.DebugContext(ctx, label+" cancelled by context", "error", err)
		return
	}
	s.logger.ErrorContext(ctx, label+" failed", "error", err)
}

func isContextCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
