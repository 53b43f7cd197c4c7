package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/target/esg-pipeline/internal/core"
	"github.com/target/esg-pipeline/internal/data/pgxutil"
	"github.com/target/esg-pipeline/internal/domain/model"
)

const analysisColumns = `id, organization_id, status, payment_status, shipping_status,
	discount_id, discount_percentage, created_at, updated_at`

// Latest record of an organization: greatest created_at, id breaks ties.
const latestAnalysisOrder = `ORDER BY created_at DESC, id DESC LIMIT 1`

// AnalysisRepo provides database operations for analysis records.
type AnalysisRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewAnalysisRepo creates a new AnalysisRepo.
func NewAnalysisRepo(db *sql.DB) *AnalysisRepo {
	return &AnalysisRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewAnalysisRepoWithTimeProvider creates a new AnalysisRepo with a custom clock (useful for tests).
func NewAnalysisRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *AnalysisRepo {
	return &AnalysisRepo{DB: db, timeProvider: tp}
}

// Create inserts a PENDING analysis record.
func (r *AnalysisRepo) Create(ctx context.Context, req *model.CreateAnalysisRequest) (*model.Analysis, error) {
	if req == nil || req.OrganizationID == "" {
		return nil, errors.New("organization id is required")
	}

	now := r.timeProvider.Now().UTC()
	return r.queryOne(ctx, `
		INSERT INTO analysis (organization_id, status, payment_status, shipping_status,
			discount_id, discount_percentage, created_at, updated_at)
		VALUES ($1, 'PENDING', 'PENDING', 'NOT_SENT', $2, $3, $4, $4)
		RETURNING `+analysisColumns,
		req.OrganizationID, req.DiscountID, req.DiscountPercentage, now)
}

// GetByID retrieves an analysis record by ID.
func (r *AnalysisRepo) GetByID(ctx context.Context, id string) (*model.Analysis, error) {
	return r.queryOne(ctx, `SELECT `+analysisColumns+` FROM analysis WHERE id = $1`, id)
}

// FindLatestByOrganization returns the organization's most recently created record.
func (r *AnalysisRepo) FindLatestByOrganization(ctx context.Context, organizationID string) (*model.Analysis, error) {
	return r.queryOne(ctx, `SELECT `+analysisColumns+` FROM analysis
		WHERE organization_id = $1 `+latestAnalysisOrder, organizationID)
}

// LockLatestByOrganizationTx selects the latest record FOR UPDATE so that
// concurrent producers for the same organization serialize on it.
func (r *AnalysisRepo) LockLatestByOrganizationTx(ctx context.Context, tx *sql.Tx, organizationID string) (*model.Analysis, error) {
	if tx == nil {
		return nil, ErrTxRequired
	}
	return scanAnalysisRow(tx.QueryRowContext(ctx, `SELECT `+analysisColumns+` FROM analysis
		WHERE organization_id = $1 `+latestAnalysisOrder+` FOR UPDATE`, organizationID))
}

// SetStatusTx sets the status unconditionally within tx.
func (r *AnalysisRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, id string, status model.AnalysisStatus) (*model.Analysis, error) {
	if tx == nil {
		return nil, ErrTxRequired
	}
	if !status.Valid() {
		return nil, fmt.Errorf("invalid analysis status: %q", status)
	}
	return scanAnalysisRow(tx.QueryRowContext(ctx, `UPDATE analysis SET status = $2, updated_at = $3
		WHERE id = $1 RETURNING `+analysisColumns, id, string(status), r.timeProvider.Now().UTC()))
}

// SetPaymentStatusTx sets the payment status within tx. The analysis status is not touched.
func (r *AnalysisRepo) SetPaymentStatusTx(ctx context.Context, tx *sql.Tx, id string, status model.PaymentStatus) (*model.Analysis, error) {
	if tx == nil {
		return nil, ErrTxRequired
	}
	if !status.Valid() {
		return nil, fmt.Errorf("invalid payment status: %q", status)
	}
	return scanAnalysisRow(tx.QueryRowContext(ctx, `UPDATE analysis SET payment_status = $2, updated_at = $3
		WHERE id = $1 RETURNING `+analysisColumns, id, string(status), r.timeProvider.Now().UTC()))
}

// CompareAndSetStatus moves a record from params.From to params.To. A record
// that is missing or no longer in From yields (nil, false, nil).
func (r *AnalysisRepo) CompareAndSetStatus(ctx context.Context, params core.CompareAndSetStatusParams) (*model.Analysis, bool, error) {
	if !params.From.Valid() || !params.To.Valid() {
		return nil, false, fmt.Errorf("invalid status transition %q -> %q", params.From, params.To)
	}
	a, err := r.queryOne(ctx, `UPDATE analysis SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2 RETURNING `+analysisColumns,
		params.ID, string(params.From), string(params.To), r.timeProvider.Now().UTC())
	if errors.Is(err, ErrAnalysisNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return a, true, nil
}

// SetPaymentStatus sets the payment status outside a caller transaction.
func (r *AnalysisRepo) SetPaymentStatus(ctx context.Context, id string, status model.PaymentStatus) (*model.Analysis, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid payment status: %q", status)
	}
	return r.queryOne(ctx, `UPDATE analysis SET payment_status = $2, updated_at = $3
		WHERE id = $1 RETURNING `+analysisColumns, id, string(status), r.timeProvider.Now().UTC())
}

// SetShippingStatus records whether the report was sent.
func (r *AnalysisRepo) SetShippingStatus(ctx context.Context, id string, status model.ShippingStatus) (*model.Analysis, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid shipping status: %q", status)
	}
	return r.queryOne(ctx, `UPDATE analysis SET shipping_status = $2, updated_at = $3
		WHERE id = $1 RETURNING `+analysisColumns, id, string(status), r.timeProvider.Now().UTC())
}

// FindStaleProcessing returns PROCESSING records not updated since olderThan,
// oldest first. Records with a pending or running job are skipped: the queue
// still owns them.
func (r *AnalysisRepo) FindStaleProcessing(ctx context.Context, olderThan time.Time, limit int) ([]*model.Analysis, error) {
	if limit <= 0 {
		limit = 100
	}

	var rowsOut []model.Analysis
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+analysisColumns+` FROM analysis
			WHERE status = 'PROCESSING' AND updated_at < $1
			  AND NOT EXISTS (
				SELECT 1 FROM jobs
				WHERE jobs.status IN ('pending', 'running')
				  AND jobs.payload->>'analysis_id' = analysis.id::text
			  )
			ORDER BY updated_at ASC LIMIT $2`, olderThan.UTC(), limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Analysis])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to find stale analyses: %w", err)
	}

	res := make([]*model.Analysis, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

func (r *AnalysisRepo) queryOne(ctx context.Context, query string, args ...any) (*model.Analysis, error) {
	var out model.Analysis
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Analysis])
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAnalysisNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("analysis query: %w", err)
	}
	return &out, nil
}

func scanAnalysisRow(row rowScanner) (*model.Analysis, error) {
	var (
		a          model.Analysis
		discountID sql.NullString
		discount   sql.NullFloat64
	)
	err := row.Scan(&a.ID, &a.OrganizationID, &a.Status, &a.PaymentStatus, &a.ShippingStatus,
		&discountID, &discount, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAnalysisNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan analysis: %w", err)
	}
	a.DiscountID = nullString(discountID)
	if discount.Valid {
		v := discount.Float64
		a.DiscountPercentage = &v
	}
	return &a, nil
}
