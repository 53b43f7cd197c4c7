// Package testutil provides database, Redis and fixture helpers for ESG pipeline tests.
package testutil

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/target/esg-pipeline/internal/domain/model"
)

// JobRequestBuilder provides a fluent interface for building CreateJobRequest objects for testing.
type JobRequestBuilder struct {
	req *model.CreateJobRequest
}

// NewJobRequest returns a builder for a single-attempt esg_analysis job with
// a random analysis id.
func NewJobRequest() *JobRequestBuilder {
	payload := model.EsgJobPayload{
		Organization: model.OrganizationDescriptor{ID: uuid.NewString(), Name: "Acme"},
		AnalysisID:   uuid.NewString(),
	}
	raw, _ := json.Marshal(payload)
	return &JobRequestBuilder{
		req: &model.CreateJobRequest{
			Type:       model.JobTypeEsgAnalysis,
			Priority:   50,
			Payload:    raw,
			MaxRetries: 1,
		},
	}
}

func (b *JobRequestBuilder) WithPriority(priority int) *JobRequestBuilder {
	b.req.Priority = priority
	return b
}

// WithPayload replaces the payload with the encoding of p.
func (b *JobRequestBuilder) WithPayload(p model.EsgJobPayload) *JobRequestBuilder {
	raw, _ := json.Marshal(p)
	b.req.Payload = raw
	return b
}

func (b *JobRequestBuilder) WithScheduledAt(scheduledAt time.Time) *JobRequestBuilder {
	b.req.ScheduledAt = &scheduledAt
	return b
}

func (b *JobRequestBuilder) WithMaxRetries(maxRetries int) *JobRequestBuilder {
	b.req.MaxRetries = maxRetries
	return b
}

func (b *JobRequestBuilder) RemoveOnComplete() *JobRequestBuilder {
	b.req.RemoveOnComplete = true
	return b
}

// Build returns the constructed CreateJobRequest.
func (b *JobRequestBuilder) Build() *model.CreateJobRequest {
	return b.req
}

// SeedOrganization inserts an organization and returns its id.
func SeedOrganization(t TestingTB, db *sql.DB, name string) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var id string
	err := db.QueryRowContext(ctx, `
		INSERT INTO organizations (name, country, website, industry, document, email)
		VALUES ($1, 'AR', 'https://example.com', 'energy', '30-00000000-0', $2)
		RETURNING id
	`, name, "contact@example.com").Scan(&id)
	if err != nil {
		t.Fatalf("Failed to seed organization: %v", err)
	}
	return id
}

// AnalysisSeed describes an analysis row to insert.
type AnalysisSeed struct {
	OrganizationID string
	Status         model.AnalysisStatus
	PaymentStatus  model.PaymentStatus
	CreatedAt      time.Time
}

// SeedAnalysis inserts an analysis record and returns its id. Zero fields
// default to PENDING/PENDING/now.
func SeedAnalysis(t TestingTB, db *sql.DB, seed AnalysisSeed) string {
	t.Helper()

	if seed.Status == "" {
		seed.Status = model.AnalysisStatusPending
	}
	if seed.PaymentStatus == "" {
		seed.PaymentStatus = model.PaymentStatusPending
	}
	if seed.CreatedAt.IsZero() {
		seed.CreatedAt = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var id string
	err := db.QueryRowContext(ctx, `
		INSERT INTO analysis (organization_id, status, payment_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id
	`, seed.OrganizationID, seed.Status, seed.PaymentStatus, seed.CreatedAt).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to seed analysis: %v", err)
	}
	return id
}

// AnalysisStatusOf reads the current status of an analysis record.
func AnalysisStatusOf(t TestingTB, db *sql.DB, id string) model.AnalysisStatus {
	t.Helper()

	var status string
	if err := db.QueryRowContext(context.Background(), `SELECT status FROM analysis WHERE id = $1`, id).Scan(&status); err != nil {
		t.Fatalf("Failed to read analysis status: %v", err)
	}
	return model.AnalysisStatus(status)
}

// CountRows returns the number of rows in table matching an optional where clause.
func CountRows(t TestingTB, db *sql.DB, table, where string, args ...any) int {
	t.Helper()

	query := "SELECT count(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}
	var n int
	if err := db.QueryRowContext(context.Background(), query, args...).Scan(&n); err != nil {
		t.Fatalf("Failed to count %s: %v", table, err)
	}
	return n
}
