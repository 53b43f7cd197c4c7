package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/esg-pipeline/internal/core"
	"github.com/target/esg-pipeline/internal/domain/analysis"
	"github.com/target/esg-pipeline/internal/domain/model"
	apperrors "github.com/target/esg-pipeline/internal/errors"
)

// analysisJobMaxRetries is the delivery budget of an analysis job. Retries of
// the external call happen inside the worker, never by redelivery.
const analysisJobMaxRetries = 1

// jobKicker wakes local workers after an enqueue.
type jobKicker interface {
	Kick(jobType model.JobType)
}

// AnalysisProducerOptions groups dependencies for AnalysisProducer.
type AnalysisProducerOptions struct {
	Tx            core.Transactor             // Required
	Analyses      core.AnalysisRepository     // Required
	Organizations core.OrganizationRepository // Required
	Jobs          core.JobRepositoryTx        // Required
	Broadcaster   core.StatusBroadcaster      // Optional: PROCESSING snapshot after commit
	Kicker        jobKicker                   // Optional: wakes local workers
	Priority      int
	Logger        *slog.Logger
}

// AnalysisProducer moves an organization's latest analysis to PROCESSING and
// enqueues the job that will finalize it, in one transaction.
type AnalysisProducer struct {
	tx            core.Transactor
	analyses      core.AnalysisRepository
	organizations core.OrganizationRepository
	jobs          core.JobRepositoryTx
	broadcaster   core.StatusBroadcaster
	kicker        jobKicker
	priority      int
	logger        *slog.Logger
}

var _ core.EsgJobProducer = (*AnalysisProducer)(nil)

// NewAnalysisProducer constructs an AnalysisProducer.
func NewAnalysisProducer(opts AnalysisProducerOptions) (*AnalysisProducer, error) {
	switch {
	case opts.Tx == nil:
		return nil, errors.New("transactor is required")
	case opts.Analyses == nil:
		return nil, errors.New("analysis repository is required")
	case opts.Organizations == nil:
		return nil, errors.New("organization repository is required")
	case opts.Jobs == nil:
		return nil, errors.New("job repository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisProducer{
		tx:            opts.Tx,
		analyses:      opts.Analyses,
		organizations: opts.Organizations,
		jobs:          opts.Jobs,
		broadcaster:   opts.Broadcaster,
		kicker:        opts.Kicker,
		priority:      opts.Priority,
		logger:        logger.With("component", "analysis_producer"),
	}, nil
}

// CreateJob enqueues an analysis job for the organization's latest record.
// It returns a not found error when the organization has no record and a
// conflict when the record is already PROCESSING.
func (p *AnalysisProducer) CreateJob(ctx context.Context, organizationID string) (*model.CreateJobResult, error) {
	if organizationID == "" {
		return nil, apperrors.ValidationField("organizationId", "organization id is required")
	}

	var (
		record *model.Analysis
		job    *model.Job
	)
	err := p.tx.WithTx(ctx, func(tx *sql.Tx) error {
		latest, err := p.analyses.LockLatestByOrganizationTx(ctx, tx, organizationID)
		if err != nil {
			return fmt.Errorf("lock latest analysis: %w", err)
		}
		if latest.Status == model.AnalysisStatusProcessing {
			return apperrors.Conflictf("analysis %s is already processing", latest.ID)
		}
		if err := analysis.Transition(latest.Status, model.AnalysisStatusProcessing); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeConflict, "analysis cannot start")
		}

		org, err := p.organizations.GetByIDTx(ctx, tx, organizationID)
		if err != nil {
			return fmt.Errorf("load organization: %w", err)
		}

		record, err = p.analyses.SetStatusTx(ctx, tx, latest.ID, model.AnalysisStatusProcessing)
		if err != nil {
			return fmt.Errorf("mark analysis processing: %w", err)
		}

		payload, err := json.Marshal(model.EsgJobPayload{
			Organization: org.Descriptor(),
			AnalysisID:   latest.ID,
		})
		if err != nil {
			return fmt.Errorf("encode job payload: %w", err)
		}
		job, err = p.jobs.CreateInTx(ctx, tx, &model.CreateJobRequest{
			Type:             model.JobTypeEsgAnalysis,
			Payload:          payload,
			Priority:         p.priority,
			MaxRetries:       analysisJobMaxRetries,
			RemoveOnComplete: true,
		})
		if err != nil {
			return fmt.Errorf("enqueue analysis job: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.InfoContext(ctx, "analysis job enqueued",
		"job_id", job.ID,
		"analysis_id", record.ID,
		"organization_id", organizationID,
	)
	if p.broadcaster != nil {
		p.broadcaster.Publish(ctx, record.Snapshot())
	}
	if p.kicker != nil {
		p.kicker.Kick(model.JobTypeEsgAnalysis)
	}

	return &model.CreateJobResult{
		JobID:      job.ID,
		AnalysisID: record.ID,
		Status:     model.AnalysisStatusProcessing,
	}, nil
}
