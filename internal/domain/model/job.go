// Package model defines the core data types shared by the ESG pipeline's
// repositories, services and transports.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobType represents the type of job to be executed.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobType string

// JobStatus represents the current status of a job row.
type JobStatus string

const (
	// JobTypeEsgAnalysis runs the external ESG analysis for one analysis record.
	JobTypeEsgAnalysis JobType = "esg_analysis"

	// JobStatusPending indicates a job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates a job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates a job has finished successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates a job has failed to complete.
	JobStatusFailed JobStatus = "failed"
)

// UnmarshalText implements encoding.TextUnmarshaler for JobType to allow env and flag parsing.
func (t *JobType) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	jt := JobType(v)
	if jt.Valid() {
		*t = jt
		return nil
	}
	return fmt.Errorf("invalid JobType: %q", v)
}

// ErrNoJobsAvailable is returned when no jobs are available for reservation.
var ErrNoJobsAvailable = errors.New("no jobs available")

// Valid returns true if the JobType is valid.
func (t JobType) Valid() bool {
	return t == JobTypeEsgAnalysis
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// Job represents a queued unit of work.
type Job struct {
	ID               string          `json:"id"                         yaml:"id" db:"id"`
	Type             JobType         `json:"type"                       yaml:"type" db:"type"`
	Status           JobStatus       `json:"status"                     yaml:"status" db:"status"`
	Priority         int             `json:"priority"                   yaml:"priority" db:"priority"`
	Payload          json.RawMessage `json:"payload"                    yaml:"-" db:"payload"`
	Progress         int             `json:"progress"                   yaml:"progress" db:"progress"`
	Result           json.RawMessage `json:"result,omitempty"           yaml:"-" db:"result"`
	RemoveOnComplete bool            `json:"remove_on_complete"         yaml:"remove_on_complete" db:"remove_on_complete"`
	ScheduledAt      time.Time       `json:"scheduled_at"               yaml:"scheduled_at" db:"scheduled_at"`
	StartedAt        *time.Time      `json:"started_at,omitempty"       yaml:"started_at,omitempty" db:"started_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"     yaml:"completed_at,omitempty" db:"completed_at"`
	RetryCount       int             `json:"retry_count"                yaml:"retry_count" db:"retry_count"`
	MaxRetries       int             `json:"max_retries"                yaml:"max_retries" db:"max_retries"`
	LastError        *string         `json:"last_error,omitempty"       yaml:"last_error,omitempty" db:"last_error"`
	LeaseExpiresAt   *time.Time      `json:"lease_expires_at,omitempty" yaml:"lease_expires_at,omitempty" db:"lease_expires_at"`
	CreatedAt        time.Time       `json:"created_at"                 yaml:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"                 yaml:"updated_at" db:"updated_at"`
}

// CreateJobRequest represents a request to create a new job.
type CreateJobRequest struct {
	Type     JobType         `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Priority int             `json:"priority,omitempty"`
	// MaxRetries is the total number of deliveries; 1 means a single attempt.
	MaxRetries       int        `json:"max_retries"`
	RemoveOnComplete bool       `json:"remove_on_complete,omitempty"`
	ScheduledAt      *time.Time `json:"scheduled_at,omitempty"`
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if !r.Type.Valid() {
		return errors.New("invalid job type")
	}
	if len(r.Payload) == 0 {
		return errors.New("payload is required")
	}
	if !json.Valid(r.Payload) {
		return errors.New("payload must be valid JSON")
	}
	if r.Priority < 0 || r.Priority > 100 {
		return errors.New("priority must be between 0 and 100")
	}
	if r.MaxRetries < 1 {
		return errors.New("max retries must be >= 1")
	}
	return nil
}

// JobStats represents statistics about jobs in different states.
type JobStats struct {
	Pending   int `json:"pending"   yaml:"pending"`
	Running   int `json:"running"   yaml:"running"`
	Completed int `json:"completed" yaml:"completed"`
	Failed    int `json:"failed"    yaml:"failed"`
}

// JobListOptions groups parameters for listing jobs (operator view).
type JobListOptions struct {
	Status *JobStatus
	Type   *JobType
	Limit  int
	Offset int
}

// QueueState is the externally visible lifecycle of a queued job.
type QueueState string

const (
	QueueStateWaiting   QueueState = "waiting"
	QueueStateActive    QueueState = "active"
	QueueStateCompleted QueueState = "completed"
	QueueStateFailed    QueueState = "failed"
	QueueStateNotFound  QueueState = "not_found"
)

// QueueStateFor maps a stored job status to its queue state.
func QueueStateFor(s JobStatus) QueueState {
	switch s {
	case JobStatusPending:
		return QueueStateWaiting
	case JobStatusRunning:
		return QueueStateActive
	case JobStatusCompleted:
		return QueueStateCompleted
	case JobStatusFailed:
		return QueueStateFailed
	default:
		return QueueStateNotFound
	}
}

// JobStatusView is the GetJobStatus response.
type JobStatusView struct {
	Status       QueueState      `json:"status"                 yaml:"status"`
	Progress     int             `json:"progress"               yaml:"progress"`
	Result       json.RawMessage `json:"result,omitempty"       yaml:"-"`
	FailedReason *string         `json:"failedReason,omitempty" yaml:"failedReason,omitempty"`
}

// CreateJobResult is returned by the analysis job producer.
type CreateJobResult struct {
	JobID      string         `json:"jobId"      yaml:"jobId"`
	AnalysisID string         `json:"analysisId" yaml:"analysisId"`
	Status     AnalysisStatus `json:"status"     yaml:"status"`
}
