package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/target/esg-pipeline/internal/core"
	domainjob "github.com/target/esg-pipeline/internal/domain/job"
	"github.com/target/esg-pipeline/internal/domain/model"
	apperrors "github.com/target/esg-pipeline/internal/errors"
	"github.com/target/esg-pipeline/internal/observability/notify"
	"github.com/target/esg-pipeline/internal/service/failurenotifier"
)

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Repo            core.JobRepository        // Required: job repository
	LeasePolicy     *domainjob.LeasePolicy    // Required: lease = queue hard timeout
	Logger          *slog.Logger              // Optional: structured logger
	FailureNotifier *failurenotifier.Service  // Optional: terminal failure fan-out
	Notifier        domainjob.Notifier        // Optional: custom job availability notifier
	NotifierOptions domainjob.NotifierOptions // Optional: configure default notifier behaviour
}

// JobService is the queue facade used by the producer, the runner and the
// HTTP status endpoint.
type JobService struct {
	repo            core.JobRepository
	leasePolicy     *domainjob.LeasePolicy
	notifier        domainjob.Notifier
	logger          *slog.Logger
	failureNotifier *failurenotifier.Service
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.LeasePolicy == nil {
		return nil, errors.New("LeasePolicy is required")
	}

	notifier := opts.Notifier
	if notifier == nil {
		options := opts.NotifierOptions
		if options.Waiter == nil {
			options.Waiter = opts.Repo
		}
		var err error
		notifier, err = domainjob.NewNotifier(options)
		if err != nil {
			return nil, fmt.Errorf("create job notifier: %w", err)
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "job_service")
	logger.Debug("JobService initialized", "queue_timeout", opts.LeasePolicy.HardTimeout())

	return &JobService{
		repo:            opts.Repo,
		leasePolicy:     opts.LeasePolicy,
		notifier:        notifier,
		logger:          logger,
		failureNotifier: opts.FailureNotifier,
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

// LeaseSeconds is the lease placed on every reserved or enqueued job.
func (s *JobService) LeaseSeconds() int {
	return s.leasePolicy.Resolve(0).Seconds
}

// ReserveNext leases the next due job of jobType for the queue hard timeout.
// It returns model.ErrNoJobsAvailable when the queue is empty.
func (s *JobService) ReserveNext(ctx context.Context, jobType model.JobType) (*model.Job, error) {
	decision := s.leasePolicy.Resolve(0)
	job, err := s.repo.ReserveNext(ctx, jobType, decision.Seconds)
	if err != nil {
		if errors.Is(err, model.ErrNoJobsAvailable) {
			return nil, err
		}
		return nil, fmt.Errorf("reserve next job: %w", err)
	}
	s.logger.DebugContext(ctx, "job reserved",
		"job_id", job.ID,
		"type", jobType,
		"lease_seconds", decision.Seconds,
	)
	return job, nil
}

// Subscribe creates a subscription for job notifications of the given type.
// Returns an unsubscribe function and a channel that receives notifications.
func (s *JobService) Subscribe(jobType model.JobType) (func(), <-chan struct{}) {
	return s.notifier.Subscribe(jobType)
}

// Kick wakes idle local workers of jobType.
func (s *JobService) Kick(jobType model.JobType) {
	s.notifier.Kick(jobType)
}

// StopAllListeners stops every notification listener.
func (s *JobService) StopAllListeners() {
	s.notifier.StopAll()
}

// ReportProgress records progress (0-100) on a running job. A job that is no
// longer running is ignored.
func (s *JobService) ReportProgress(ctx context.Context, id string, progress int) error {
	progress = min(max(progress, 0), 100)
	if _, err := s.repo.UpdateProgress(ctx, id, progress); err != nil {
		return fmt.Errorf("update progress of job %s: %w", id, err)
	}
	return nil
}

// Complete marks a running job completed with result. Jobs enqueued with
// remove-on-complete are deleted instead.
func (s *JobService) Complete(ctx context.Context, id string, result []byte) (bool, error) {
	completed, err := s.repo.Complete(ctx, core.CompleteJobParams{JobID: id, Result: result})
	if err != nil {
		return false, fmt.Errorf("complete job %s: %w", id, err)
	}
	if completed {
		s.logger.DebugContext(ctx, "job completed", "job_id", id)
	}
	return completed, nil
}

// JobFailureDetails captures optional context for failure notifications.
type JobFailureDetails struct {
	AnalysisID       string
	OrganizationID   string
	OrganizationName string
	ErrorClass       string
	Metadata         map[string]string
}

// Fail records a failed delivery of job. When the delivery budget is spent
// the job fails terminally and the failure notifier is told.
func (s *JobService) Fail(ctx context.Context, job *model.Job, errMsg string, details JobFailureDetails) (bool, error) {
	if job == nil {
		return false, errors.New("job is required")
	}
	if errMsg == "" {
		return false, errors.New("error message required")
	}

	failed, err := s.repo.Fail(ctx, job.ID, errMsg)
	if err != nil {
		return false, fmt.Errorf("fail job %s: %w", job.ID, err)
	}
	if !failed {
		return false, nil
	}

	terminal := job.RetryCount+1 >= job.MaxRetries
	s.logger.DebugContext(ctx, "job failed", "job_id", job.ID, "terminal", terminal, "error", errMsg)
	if terminal && s.failureNotifier.Enabled() {
		s.failureNotifier.NotifyJobFailure(ctx, buildJobFailurePayload(job, errMsg, details))
	}
	return true, nil
}

// NotifyExpired reports a job the reaper failed after its lease expired.
func (s *JobService) NotifyExpired(ctx context.Context, job *model.Job, details JobFailureDetails) {
	if job == nil || !s.failureNotifier.Enabled() {
		return
	}
	msg := "job exceeded queue timeout"
	if job.LastError != nil {
		msg = *job.LastError
	}
	s.failureNotifier.NotifyJobFailure(ctx, buildJobFailurePayload(job, msg, details))
}

func buildJobFailurePayload(job *model.Job, errMsg string, details JobFailureDetails) notify.JobFailurePayload {
	metadata := map[string]string{
		"retry_count": strconv.Itoa(job.RetryCount + 1),
		"max_retries": strconv.Itoa(job.MaxRetries),
		"priority":    strconv.Itoa(job.Priority),
	}
	for k, v := range details.Metadata {
		if k != "" && v != "" {
			metadata[k] = v
		}
	}
	if details.ErrorClass != "" {
		metadata["error_class"] = details.ErrorClass
	}

	return notify.JobFailurePayload{
		JobID:            job.ID,
		JobType:          string(job.Type),
		AnalysisID:       details.AnalysisID,
		OrganizationID:   details.OrganizationID,
		OrganizationName: details.OrganizationName,
		Error:            errMsg,
		ErrorClass:       details.ErrorClass,
		Severity:         notify.SeverityCritical,
		OccurredAt:       time.Now(),
		Metadata:         metadata,
	}
}

// GetJobStatus returns the queue view of a job. An unknown or removed job
// reports not_found rather than an error.
func (s *JobService) GetJobStatus(ctx context.Context, id string) (*model.JobStatusView, error) {
	job, err := s.repo.GetByID(ctx, id)
	if apperrors.IsNotFound(err) {
		return &model.JobStatusView{Status: model.QueueStateNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}

	view := &model.JobStatusView{
		Status:   model.QueueStateFor(job.Status),
		Progress: job.Progress,
		Result:   job.Result,
	}
	if job.Status == model.JobStatusFailed {
		view.FailedReason = job.LastError
	}
	return view, nil
}

// GetByID returns a job by its ID.
func (s *JobService) GetByID(ctx context.Context, id string) (*model.Job, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job by id %s: %w", id, err)
	}
	return job, nil
}

// List returns jobs for the operator view, newest first.
func (s *JobService) List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error) {
	jobs, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// Retry re-drives a failed job.
func (s *JobService) Retry(ctx context.Context, id string) (*model.Job, error) {
	job, err := s.repo.Retry(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("retry job %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "job re-driven by operator", "job_id", id)
	s.notifier.Kick(job.Type)
	return job, nil
}

// Stats returns statistics about jobs of the given type in different states.
func (s *JobService) Stats(ctx context.Context, jobType model.JobType) (*model.JobStats, error) {
	stats, err := s.repo.Stats(ctx, jobType)
	if err != nil {
		return nil, fmt.Errorf("get job stats for type %s: %w", jobType, err)
	}
	return stats, nil
}
