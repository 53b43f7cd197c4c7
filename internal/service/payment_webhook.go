package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/esg-pipeline/internal/core"
	"github.com/target/esg-pipeline/internal/domain/model"
	"github.com/target/esg-pipeline/internal/domain/webhook"
	apperrors "github.com/target/esg-pipeline/internal/errors"
	"github.com/target/esg-pipeline/internal/observability/metrics"
	"github.com/target/esg-pipeline/internal/observability/statsd"
)

// defaultOrganizationName addresses the confirmation email when the
// organization has no name.
const defaultOrganizationName = "tu organización"

// WebhookOutcome describes what a delivery did.
type WebhookOutcome string

const (
	WebhookOutcomeIgnored     WebhookOutcome = "ignored"
	WebhookOutcomeNotApproved WebhookOutcome = "not_approved"
	WebhookOutcomeProcessed   WebhookOutcome = "processed"
	WebhookOutcomeInFlight    WebhookOutcome = "in_flight"
	WebhookOutcomeRejected    WebhookOutcome = "rejected"
)

// PaymentNotification is one signed delivery from the payment gateway.
type PaymentNotification struct {
	Event webhook.Event
	// BodyErr is the body decode failure, reported only after the
	// signature has been verified.
	BodyErr error
	// SignedID is the payment id the signature covers (query id, then query
	// data.id, then body data.id). It is the only id that gets processed.
	SignedID        string
	RequestID       string
	SignatureHeader string
}

// bodyMismatch reports whether the body names a payment other than the
// signed one.
func (n PaymentNotification) bodyMismatch() bool {
	id := n.Event.DataID()
	return id != "" && id != n.SignedID
}

// PaymentWebhookServiceOptions groups dependencies for PaymentWebhookService.
type PaymentWebhookServiceOptions struct {
	Verifier      *webhook.Verifier           // Required
	Tx            core.Transactor             // Required
	Payments      core.PaymentRepository      // Required
	Analyses      core.AnalysisRepository     // Required
	Organizations core.OrganizationRepository // Required
	Gateway       core.PaymentGateway         // Required
	Producer      core.EsgJobProducer         // Required
	Mailer        core.Mailer                 // Optional
	Broadcaster   core.StatusBroadcaster      // Optional
	// Lock collapses concurrent deliveries of one payment. Optional.
	Lock        core.InFlightLock
	InFlightTTL time.Duration

	Metrics statsd.Sink
	Logger  *slog.Logger
}

// PaymentWebhookService turns an approved payment into a recorded payment,
// a paid analysis record and an enqueued analysis job.
type PaymentWebhookService struct {
	verifier      *webhook.Verifier
	tx            core.Transactor
	payments      core.PaymentRepository
	analyses      core.AnalysisRepository
	organizations core.OrganizationRepository
	gateway       core.PaymentGateway
	producer      core.EsgJobProducer
	mailer        core.Mailer
	broadcaster   core.StatusBroadcaster
	lock          core.InFlightLock
	inFlightTTL   time.Duration
	metrics       statsd.Sink
	logger        *slog.Logger
}

// NewPaymentWebhookService constructs a PaymentWebhookService.
func NewPaymentWebhookService(opts PaymentWebhookServiceOptions) (*PaymentWebhookService, error) {
	switch {
	case opts.Verifier == nil:
		return nil, errors.New("signature verifier is required")
	case opts.Tx == nil:
		return nil, errors.New("transactor is required")
	case opts.Payments == nil:
		return nil, errors.New("payment repository is required")
	case opts.Analyses == nil:
		return nil, errors.New("analysis repository is required")
	case opts.Organizations == nil:
		return nil, errors.New("organization repository is required")
	case opts.Gateway == nil:
		return nil, errors.New("payment gateway is required")
	case opts.Producer == nil:
		return nil, errors.New("job producer is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentWebhookService{
		verifier:      opts.Verifier,
		tx:            opts.Tx,
		payments:      opts.Payments,
		analyses:      opts.Analyses,
		organizations: opts.Organizations,
		gateway:       opts.Gateway,
		producer:      opts.Producer,
		mailer:        opts.Mailer,
		broadcaster:   opts.Broadcaster,
		lock:          opts.Lock,
		inFlightTTL:   opts.InFlightTTL,
		metrics:       opts.Metrics,
		logger:        logger.With("component", "payment_webhook"),
	}, nil
}

// approvedPayment is what the transaction hands to the post-commit steps.
type approvedPayment struct {
	details      *model.PaymentDetails
	organization *model.Organization
	analysis     *model.Analysis
}

// Handle verifies and processes one delivery. Signature failures are
// Unauthorized, an already recorded payment is DuplicatePayment, and a
// missing organization or analysis record is NotFound. Failures of the
// post-commit job enqueue and email are logged and never returned.
func (s *PaymentWebhookService) Handle(ctx context.Context, n PaymentNotification) (outcome WebhookOutcome, err error) {
	defer func() {
		metrics.EmitWebhook(s.metrics, string(outcome), err)
	}()

	if verr := s.verifier.Verify(webhook.Input{
		PaymentID:       n.SignedID,
		RequestID:       n.RequestID,
		SignatureHeader: n.SignatureHeader,
	}); verr != nil {
		s.logger.WarnContext(ctx, "rejecting webhook", "payment_id", n.SignedID, "request_id", n.RequestID, "error", verr)
		return WebhookOutcomeRejected, apperrors.Wrap(verr, apperrors.ErrCodeUnauthorized, "invalid webhook signature")
	}

	if n.BodyErr != nil {
		return WebhookOutcomeRejected, apperrors.Wrap(n.BodyErr, apperrors.ErrCodeValidation, "invalid notification body")
	}
	if n.bodyMismatch() {
		s.logger.WarnContext(ctx, "rejecting webhook with unsigned payment id",
			"payment_id", n.SignedID, "body_payment_id", n.Event.DataID(), "request_id", n.RequestID)
		return WebhookOutcomeRejected, apperrors.Unauthorized("notification body names a payment the signature does not cover")
	}

	if !n.Event.IsPayment() {
		s.logger.InfoContext(ctx, "ignoring non-payment webhook", "type", n.Event.Kind())
		return WebhookOutcomeIgnored, nil
	}

	paymentID := n.SignedID
	logger := s.logger.With("payment_id", paymentID)

	release, held := s.acquire(ctx, logger, paymentID)
	if !held {
		logger.InfoContext(ctx, "payment already being processed by another delivery")
		return WebhookOutcomeInFlight, apperrors.DuplicatePayment(paymentID)
	}
	defer release()

	var approved *approvedPayment
	err = s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		var txErr error
		approved, txErr = s.recordPayment(ctx, tx, logger, paymentID)
		return txErr
	})
	if err != nil {
		logger.WarnContext(ctx, "webhook processing failed", "error", err)
		return WebhookOutcomeRejected, err
	}
	if approved == nil {
		return WebhookOutcomeNotApproved, nil
	}

	logger.InfoContext(ctx, "payment recorded",
		"organization_id", approved.organization.ID,
		"analysis_id", approved.analysis.ID,
	)
	if s.broadcaster != nil {
		s.broadcaster.Publish(ctx, approved.analysis.Snapshot())
	}
	s.enqueueAnalysis(ctx, logger, approved.organization.ID)
	s.sendConfirmation(ctx, logger, approved)
	return WebhookOutcomeProcessed, nil
}

// recordPayment is the atomic unit: duplicate check, gateway lookup,
// approval check, payment insert and payment status update. It returns nil
// for a payment that is not approved.
func (s *PaymentWebhookService) recordPayment(ctx context.Context, tx *sql.Tx, logger *slog.Logger, paymentID string) (*approvedPayment, error) {
	exists, err := s.payments.ExistsByPaymentIDTx(ctx, tx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("check duplicate payment: %w", err)
	}
	if exists {
		return nil, apperrors.DuplicatePayment(paymentID)
	}

	details, err := s.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("fetch payment details: %w", err)
	}
	if !details.Approved() {
		logger.InfoContext(ctx, "payment not approved", "status", details.Status)
		return nil, nil //nolint:nilnil // not approved is an acknowledged no-op
	}

	var userID *string
	if details.UserID != "" {
		userID = &details.UserID
	}
	if _, err := s.payments.CreateTx(ctx, tx, &model.CreatePaymentRequest{
		PaymentID: paymentID,
		Data:      details.Raw,
		UserID:    userID,
	}); err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}

	if details.OrganizationID == "" {
		return nil, apperrors.NotFoundf("payment %s names no organization", paymentID)
	}
	org, err := s.organizations.GetByIDTx(ctx, tx, details.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("load organization: %w", err)
	}
	latest, err := s.analyses.LockLatestByOrganizationTx(ctx, tx, org.ID)
	if err != nil {
		return nil, fmt.Errorf("lock latest analysis: %w", err)
	}
	updated, err := s.analyses.SetPaymentStatusTx(ctx, tx, latest.ID, model.PaymentStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("mark analysis paid: %w", err)
	}
	return &approvedPayment{details: details, organization: org, analysis: updated}, nil
}

// acquire takes the in-flight lock for paymentID. A lock backend failure is
// logged and processing continues; the unique payment id still guards.
func (s *PaymentWebhookService) acquire(ctx context.Context, logger *slog.Logger, paymentID string) (func(), bool) {
	noop := func() {}
	if s.lock == nil || s.inFlightTTL <= 0 {
		return noop, true
	}
	key := "payment:" + paymentID
	token, ok, err := s.lock.Acquire(ctx, key, s.inFlightTTL)
	if err != nil {
		logger.WarnContext(ctx, "in-flight lock unavailable", "error", err)
		return noop, true
	}
	if !ok {
		return noop, false
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.lock.Release(releaseCtx, key, token); err != nil {
			logger.WarnContext(ctx, "release in-flight lock", "error", err)
		}
	}, true
}

func (s *PaymentWebhookService) enqueueAnalysis(ctx context.Context, logger *slog.Logger, organizationID string) {
	res, err := s.producer.CreateJob(ctx, organizationID)
	if err != nil {
		logger.ErrorContext(ctx, "enqueue analysis after payment", "organization_id", organizationID, "error", err)
		return
	}
	logger.InfoContext(ctx, "analysis enqueued after payment", "job_id", res.JobID, "analysis_id", res.AnalysisID)
}

func (s *PaymentWebhookService) sendConfirmation(ctx context.Context, logger *slog.Logger, p *approvedPayment) {
	if s.mailer == nil {
		return
	}
	to := p.organization.ContactEmail()
	if to == "" {
		logger.WarnContext(ctx, "no contact email for payment confirmation", "organization_id", p.organization.ID)
		return
	}
	name := p.organization.Name
	if name == "" {
		name = defaultOrganizationName
	}
	amount := p.details.TransactionAmount
	msg := model.PaymentConfirmation{
		To:               to,
		OrganizationName: name,
		PlanName:         p.details.Description,
	}
	if amount > 0 {
		msg.Amount = &amount
	}
	if err := s.mailer.SendPaymentConfirmation(ctx, msg); err != nil {
		logger.ErrorContext(ctx, "send payment confirmation", "organization_id", p.organization.ID, "error", err)
	}
}
