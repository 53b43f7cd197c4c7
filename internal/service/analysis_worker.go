package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/esg-pipeline/internal/core"
	"github.com/target/esg-pipeline/internal/domain/analysis"
	"github.com/target/esg-pipeline/internal/domain/model"
	apperrors "github.com/target/esg-pipeline/internal/errors"
	"github.com/target/esg-pipeline/internal/observability/metrics"
	"github.com/target/esg-pipeline/internal/observability/statsd"
)

const (
	defaultCallTimeout    = 30 * time.Minute
	defaultPersistTimeout = 30 * time.Second

	progressStarted   = 10
	progressPersisted = 90
	progressDone      = 100
)

// progressReporter records job progress. JobService implements it.
type progressReporter interface {
	ReportProgress(ctx context.Context, id string, progress int) error
}

// artifactDecoder turns the base64 artifact of a response into bytes.
type artifactDecoder func(string) ([]byte, error)

// AnalysisWorkerOptions groups dependencies for AnalysisWorker.
type AnalysisWorkerOptions struct {
	Client      core.AnalysisClient      // Required
	Analyses    core.AnalysisRepository  // Required
	Results     core.EsgResultRepository // Required
	Broadcaster core.StatusBroadcaster   // Required
	Progress    progressReporter         // Optional
	Artifacts   core.ArtifactStore       // Optional: rendered report storage
	// DecodeArtifact is required when Artifacts is set.
	DecodeArtifact artifactDecoder

	// CallTimeout is the deadline of one attempt. Zero selects 30m.
	CallTimeout time.Duration
	// MaxAttempts is the total number of attempts, at least 1.
	MaxAttempts int
	RetryDelay  time.Duration
	// PersistTimeout bounds the writes that follow a finished call.
	PersistTimeout time.Duration

	Metrics statsd.Sink
	Logger  *slog.Logger
}

// AnalysisWorker runs one analysis job: it calls the external service,
// stores the document and moves the pinned analysis record to its terminal
// status.
type AnalysisWorker struct {
	client         core.AnalysisClient
	analyses       core.AnalysisRepository
	results        core.EsgResultRepository
	broadcaster    core.StatusBroadcaster
	progress       progressReporter
	artifacts      core.ArtifactStore
	decodeArtifact artifactDecoder

	callTimeout    time.Duration
	maxAttempts    int
	retryDelay     time.Duration
	persistTimeout time.Duration

	metrics statsd.Sink
	logger  *slog.Logger
}

// NewAnalysisWorker constructs an AnalysisWorker.
func NewAnalysisWorker(opts AnalysisWorkerOptions) (*AnalysisWorker, error) {
	switch {
	case opts.Client == nil:
		return nil, errors.New("analysis client is required")
	case opts.Analyses == nil:
		return nil, errors.New("analysis repository is required")
	case opts.Results == nil:
		return nil, errors.New("result repository is required")
	case opts.Broadcaster == nil:
		return nil, errors.New("status broadcaster is required")
	case opts.Artifacts != nil && opts.DecodeArtifact == nil:
		return nil, errors.New("artifact decoder is required with an artifact store")
	}

	w := &AnalysisWorker{
		client:         opts.Client,
		analyses:       opts.Analyses,
		results:        opts.Results,
		broadcaster:    opts.Broadcaster,
		progress:       opts.Progress,
		artifacts:      opts.Artifacts,
		decodeArtifact: opts.DecodeArtifact,
		callTimeout:    opts.CallTimeout,
		maxAttempts:    max(opts.MaxAttempts, 1),
		retryDelay:     max(opts.RetryDelay, 0),
		persistTimeout: opts.PersistTimeout,
		metrics:        opts.Metrics,
		logger:         opts.Logger,
	}
	if w.callTimeout <= 0 {
		w.callTimeout = defaultCallTimeout
	}
	if w.persistTimeout <= 0 {
		w.persistTimeout = defaultPersistTimeout
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	w.logger = w.logger.With("component", "analysis_worker")
	return w, nil
}

// JobError is a failed analysis job together with what the failure
// notification needs to know about it.
type JobError struct {
	Details JobFailureDetails
	Err     error
}

func (e *JobError) Error() string { return e.Err.Error() }

func (e *JobError) Unwrap() error { return e.Err }

// analysisJobResult is stored as the job result.
type analysisJobResult struct {
	AnalysisID    string               `json:"analysisId"`
	Status        model.AnalysisStatus `json:"status"`
	FailedPrompts []string             `json:"failedPrompts,omitempty"`
	Artifact      string               `json:"artifact,omitempty"`
}

// Process runs job and returns its result document. On any failure after
// the payload was decoded the pinned record is forced to FAILED (when still
// PROCESSING) and broadcast before the error is returned as *JobError.
func (w *AnalysisWorker) Process(ctx context.Context, job *model.Job) ([]byte, error) {
	payload, err := model.DecodeEsgJobPayload(job.Payload)
	if err != nil {
		return nil, &JobError{Err: apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid analysis job payload")}
	}
	details := JobFailureDetails{
		AnalysisID:       payload.AnalysisID,
		OrganizationID:   payload.Organization.ID,
		OrganizationName: payload.Organization.Name,
	}
	logger := w.logger.With("job_id", job.ID, "analysis_id", payload.AnalysisID, "organization_id", payload.Organization.ID)

	w.reportProgress(ctx, job.ID, progressStarted)

	resp, err := w.call(ctx, logger, model.AnalysisRequestFor(payload.Organization))
	if err != nil {
		return nil, w.failAnalysis(ctx, logger, payload.AnalysisID, details, err)
	}
	status := analysis.NormalizeExternalStatus(resp.Status)

	// The call's outcome is known; the writes below must not be lost to a
	// shutdown that arrives now.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.persistTimeout)
	defer cancel()

	if _, err := w.results.ReplaceForOrganization(persistCtx, payload.Organization.ID, resp.Document()); err != nil {
		err = apperrors.Wrap(err, apperrors.ErrCodeInternal, "persist analysis result")
		return nil, w.failAnalysis(persistCtx, logger, payload.AnalysisID, details, err)
	}
	w.reportProgress(persistCtx, job.ID, progressPersisted)

	result := analysisJobResult{
		AnalysisID:    payload.AnalysisID,
		Status:        status,
		FailedPrompts: resp.FailedPrompts,
		Artifact:      w.saveArtifact(persistCtx, logger, resp),
	}

	rec, swapped, err := w.analyses.CompareAndSetStatus(persistCtx, core.CompareAndSetStatusParams{
		ID:   payload.AnalysisID,
		From: model.AnalysisStatusProcessing,
		To:   status,
	})
	if err != nil {
		err = apperrors.Wrap(err, apperrors.ErrCodeInternal, "finalize analysis status")
		return nil, w.failAnalysis(persistCtx, logger, payload.AnalysisID, details, err)
	}
	if swapped {
		w.broadcaster.Publish(persistCtx, rec.Snapshot())
		metrics.EmitAnalysisOutcome(w.metrics, string(status))
		logger.InfoContext(ctx, "analysis finished", "status", status, "failed_prompts", len(resp.FailedPrompts))
	} else {
		logger.WarnContext(ctx, "analysis left PROCESSING before the job finished; status not changed", "status", status)
	}

	w.reportProgress(persistCtx, job.ID, progressDone)

	out, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode job result: %w", err)
	}
	return out, nil
}

// call runs the bounded retry loop. Each attempt gets its own deadline; the
// delay between attempts is abandoned when ctx ends.
func (w *AnalysisWorker) call(ctx context.Context, logger *slog.Logger, req model.AnalysisRequest) (*model.AnalysisResponse, error) {
	var lastErr error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, w.callTimeout)
		started := time.Now()
		resp, err := w.client.Analyze(attemptCtx, req)
		cancel()

		metrics.EmitExternalCall(w.metrics, metrics.ExternalCallMetric{
			Attempt:  attempt,
			Duration: time.Since(started),
			Err:      err,
		})
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if attempt == w.maxAttempts || !retryable(err) || ctx.Err() != nil {
			break
		}
		logger.WarnContext(ctx, "analysis call failed, retrying",
			"attempt", attempt,
			"max_attempts", w.maxAttempts,
			"delay", w.retryDelay,
			"error", err,
		)
		if err := sleepCtx(ctx, w.retryDelay); err != nil {
			return nil, fmt.Errorf("analysis retry interrupted: %w", errors.Join(lastErr, err))
		}
	}
	return nil, lastErr
}

// failAnalysis forces the pinned record from PROCESSING to FAILED and
// broadcasts it, then returns cause as *JobError.
func (w *AnalysisWorker) failAnalysis(ctx context.Context, logger *slog.Logger, analysisID string, details JobFailureDetails, cause error) error {
	logger.ErrorContext(ctx, "analysis job failed", "error", cause)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.persistTimeout)
	defer cancel()

	rec, swapped, err := w.analyses.CompareAndSetStatus(ctx, core.CompareAndSetStatusParams{
		ID:   analysisID,
		From: model.AnalysisStatusProcessing,
		To:   model.AnalysisStatusFailed,
	})
	switch {
	case err != nil:
		logger.ErrorContext(ctx, "force analysis FAILED", "error", err)
	case swapped:
		w.broadcaster.Publish(ctx, rec.Snapshot())
		metrics.EmitAnalysisOutcome(w.metrics, string(model.AnalysisStatusFailed))
	default:
		logger.InfoContext(ctx, "analysis already terminal; not forced to FAILED")
	}
	return &JobError{Details: details, Err: cause}
}

// saveArtifact stores the rendered report. Failures are logged; the report
// is optional.
func (w *AnalysisWorker) saveArtifact(ctx context.Context, logger *slog.Logger, resp *model.AnalysisResponse) string {
	if w.artifacts == nil || !resp.HasArtifact() {
		return ""
	}
	data, err := w.decodeArtifact(resp.PdfBase64)
	if err != nil {
		logger.WarnContext(ctx, "discarding undecodable artifact", "error", err)
		return ""
	}
	location, err := w.artifacts.Save(ctx, resp.Filename, data)
	if err != nil {
		logger.WarnContext(ctx, "save artifact", "error", err)
		return ""
	}
	logger.InfoContext(ctx, "artifact saved", "location", location, "bytes", len(data))
	return location
}

func (w *AnalysisWorker) reportProgress(ctx context.Context, jobID string, progress int) {
	if w.progress == nil {
		return
	}
	if err := w.progress.ReportProgress(ctx, jobID, progress); err != nil {
		w.logger.WarnContext(ctx, "report progress", "job_id", jobID, "progress", progress, "error", err)
	}
}

func retryable(err error) bool {
	var r interface{ Retryable() bool }
	return errors.As(err, &r) && r.Retryable()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
