package core

import (
	"context"
	"time"

	"github.com/target/esg-pipeline/internal/domain/model"
)

// Outbound ports implemented by internal/adapters and internal/realtime.

// StatusBroadcaster pushes analysis snapshots to connected observers.
// Delivery is at-most-once and never blocks the caller on slow observers.
type StatusBroadcaster interface {
	Publish(ctx context.Context, update model.StatusUpdate)
}

// InFlightLock is a short-lived exclusive lock keyed by an arbitrary string.
type InFlightLock interface {
	// Acquire returns a token and true when the lock was taken.
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	// Release drops the lock if it is still held with token.
	Release(ctx context.Context, key, token string) error
}

// AnalysisClient calls the external analysis service.
type AnalysisClient interface {
	Analyze(ctx context.Context, req model.AnalysisRequest) (*model.AnalysisResponse, error)
}

// PaymentGateway reads payments from the payment provider.
type PaymentGateway interface {
	GetPayment(ctx context.Context, paymentID string) (*model.PaymentDetails, error)
	Health(ctx context.Context) model.GatewayHealth
}

// Mailer sends transactional email.
type Mailer interface {
	SendPaymentConfirmation(ctx context.Context, msg model.PaymentConfirmation) error
}

// ArtifactStore persists rendered report files.
type ArtifactStore interface {
	// Save writes data under a sanitized form of name and returns its location.
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// EsgJobProducer enqueues analysis jobs.
type EsgJobProducer interface {
	CreateJob(ctx context.Context, organizationID string) (*model.CreateJobResult, error)
}
