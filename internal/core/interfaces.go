package core

import (
	"context"
	"database/sql"
	"time"

	"github.com/target/esg-pipeline/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// Services depend on these interfaces; internal/data provides the PostgreSQL implementations.
// Methods suffixed with Tx run inside a caller-owned transaction obtained from Transactor.

// Transactor runs fn inside a single database transaction. fn's error rolls
// the transaction back; a nil return commits it.
type Transactor interface {
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// JobRepository defines the interface for job queue operations.
type JobRepository interface {
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	ReserveNext(ctx context.Context, jobType model.JobType, leaseSeconds int) (*model.Job, error)
	WaitForNotification(ctx context.Context, jobType model.JobType) error
	Heartbeat(ctx context.Context, jobID string, leaseSeconds int) (bool, error)
	UpdateProgress(ctx context.Context, jobID string, progress int) (bool, error)
	Complete(ctx context.Context, params CompleteJobParams) (bool, error)
	Fail(ctx context.Context, id, errMsg string) (bool, error)
	Retry(ctx context.Context, id string) (*model.Job, error)
	Stats(ctx context.Context, jobType model.JobType) (*model.JobStats, error)
	List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error)
}

// JobRepositoryTx defines transactional job creation support.
type JobRepositoryTx interface {
	CreateInTx(ctx context.Context, tx *sql.Tx, req *model.CreateJobRequest) (*model.Job, error)
}

// CompleteJobParams groups parameters for JobRepository.Complete.
type CompleteJobParams struct {
	JobID  string
	Result []byte
}

// ReaperRepository defines queue housekeeping operations.
type ReaperRepository interface {
	// FailExpiredLeases fails running jobs whose lease (the queue hard
	// timeout) has passed and returns them.
	FailExpiredLeases(ctx context.Context, batchSize int) ([]*model.Job, error)
	FailStalePendingJobs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)
	DeleteOldJobs(ctx context.Context, params DeleteOldJobsParams) (int64, error)
}

// DeleteOldJobsParams groups parameters for DeleteOldJobs.
type DeleteOldJobsParams struct {
	Status    model.JobStatus
	MaxAge    time.Duration
	BatchSize int
}

// AnalysisRepository defines operations on analysis records.
type AnalysisRepository interface {
	Create(ctx context.Context, req *model.CreateAnalysisRequest) (*model.Analysis, error)
	GetByID(ctx context.Context, id string) (*model.Analysis, error)
	// FindLatestByOrganization returns the record with the greatest created_at.
	FindLatestByOrganization(ctx context.Context, organizationID string) (*model.Analysis, error)
	// LockLatestByOrganizationTx selects the latest record FOR UPDATE.
	LockLatestByOrganizationTx(ctx context.Context, tx *sql.Tx, organizationID string) (*model.Analysis, error)
	SetStatusTx(ctx context.Context, tx *sql.Tx, id string, status model.AnalysisStatus) (*model.Analysis, error)
	SetPaymentStatusTx(ctx context.Context, tx *sql.Tx, id string, status model.PaymentStatus) (*model.Analysis, error)
	// CompareAndSetStatus moves id from one status to another. It returns
	// (nil, false, nil) when the record is no longer in from.
	CompareAndSetStatus(ctx context.Context, params CompareAndSetStatusParams) (*model.Analysis, bool, error)
	SetPaymentStatus(ctx context.Context, id string, status model.PaymentStatus) (*model.Analysis, error)
	SetShippingStatus(ctx context.Context, id string, status model.ShippingStatus) (*model.Analysis, error)
	// FindStaleProcessing returns PROCESSING records not updated since olderThan.
	FindStaleProcessing(ctx context.Context, olderThan time.Time, limit int) ([]*model.Analysis, error)
}

// CompareAndSetStatusParams groups parameters for CompareAndSetStatus.
type CompareAndSetStatusParams struct {
	ID   string
	From model.AnalysisStatus
	To   model.AnalysisStatus
}

// EsgResultRepository defines operations on stored analysis documents.
type EsgResultRepository interface {
	// ReplaceForOrganization removes every stored result of the organization
	// and inserts doc, atomically.
	ReplaceForOrganization(ctx context.Context, organizationID string, doc []byte) (*model.EsgAnalysisResult, error)
	GetLatestByOrganization(ctx context.Context, organizationID string) (*model.EsgAnalysisResult, error)
}

// PaymentRepository defines operations on processed payments.
type PaymentRepository interface {
	ExistsByPaymentIDTx(ctx context.Context, tx *sql.Tx, paymentID string) (bool, error)
	CreateTx(ctx context.Context, tx *sql.Tx, req *model.CreatePaymentRequest) (*model.PaymentRecord, error)
	GetByPaymentID(ctx context.Context, paymentID string) (*model.PaymentRecord, error)
}

// OrganizationRepository defines operations on organizations.
type OrganizationRepository interface {
	Create(ctx context.Context, req *model.CreateOrganizationRequest) (*model.Organization, error)
	GetByID(ctx context.Context, id string) (*model.Organization, error)
	GetByIDTx(ctx context.Context, tx *sql.Tx, id string) (*model.Organization, error)
}
