package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/esg-pipeline/internal/core"
	"github.com/target/esg-pipeline/internal/domain/model"
	apperrors "github.com/target/esg-pipeline/internal/errors"
)

// AnalysisServiceOptions groups dependencies for AnalysisService.
type AnalysisServiceOptions struct {
	Analyses    core.AnalysisRepository  // Required
	Results     core.EsgResultRepository // Required
	Broadcaster core.StatusBroadcaster   // Optional
	Logger      *slog.Logger
}

// AnalysisService serves analysis records to clients recovering from missed
// broadcasts, and applies the operator status changes.
type AnalysisService struct {
	analyses    core.AnalysisRepository
	results     core.EsgResultRepository
	broadcaster core.StatusBroadcaster
	logger      *slog.Logger
}

// NewAnalysisService constructs an AnalysisService.
func NewAnalysisService(opts AnalysisServiceOptions) (*AnalysisService, error) {
	if opts.Analyses == nil {
		return nil, errors.New("analysis repository is required")
	}
	if opts.Results == nil {
		return nil, errors.New("result repository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisService{
		analyses:    opts.Analyses,
		results:     opts.Results,
		broadcaster: opts.Broadcaster,
		logger:      logger.With("component", "analysis_service"),
	}, nil
}

// GetByID returns one analysis record.
func (s *AnalysisService) GetByID(ctx context.Context, id string) (*model.Analysis, error) {
	rec, err := s.analyses.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get analysis %s: %w", id, err)
	}
	return rec, nil
}

// Latest returns the organization's most recently created record.
func (s *AnalysisService) Latest(ctx context.Context, organizationID string) (*model.Analysis, error) {
	rec, err := s.analyses.FindLatestByOrganization(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("latest analysis of %s: %w", organizationID, err)
	}
	return rec, nil
}

// LatestResult returns the organization's stored analysis document.
func (s *AnalysisService) LatestResult(ctx context.Context, organizationID string) (*model.EsgAnalysisResult, error) {
	res, err := s.results.GetLatestByOrganization(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("latest result of %s: %w", organizationID, err)
	}
	return res, nil
}

// SetPaymentStatus sets the payment status of a record and broadcasts it.
func (s *AnalysisService) SetPaymentStatus(ctx context.Context, id string, status model.PaymentStatus) (*model.Analysis, error) {
	if !status.Valid() {
		return nil, apperrors.ValidationField("paymentStatus", fmt.Sprintf("invalid payment status %q", status))
	}
	rec, err := s.analyses.SetPaymentStatus(ctx, id, status)
	if err != nil {
		return nil, fmt.Errorf("set payment status of %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "payment status set", "analysis_id", id, "payment_status", status)
	s.publish(ctx, rec)
	return rec, nil
}

// MarkSent records that the report was sent to the organization.
func (s *AnalysisService) MarkSent(ctx context.Context, id string) (*model.Analysis, error) {
	rec, err := s.analyses.SetShippingStatus(ctx, id, model.ShippingStatusSent)
	if err != nil {
		return nil, fmt.Errorf("mark analysis %s sent: %w", id, err)
	}
	s.logger.InfoContext(ctx, "analysis marked sent", "analysis_id", id)
	s.publish(ctx, rec)
	return rec, nil
}

func (s *AnalysisService) publish(ctx context.Context, rec *model.Analysis) {
	if s.broadcaster != nil {
		s.broadcaster.Publish(ctx, rec.Snapshot())
	}
}
