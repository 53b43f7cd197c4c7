package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/target/esg-pipeline/internal/domain/model"
	apperrors "github.com/target/esg-pipeline/internal/errors"
)

const paymentColumns = `id, payment_id, data, user_id, created_at`

// PaymentRepo persists processed gateway payments. payment_id is unique and
// is the webhook idempotency key.
type PaymentRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(db *sql.DB) *PaymentRepo {
	return &PaymentRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// ExistsByPaymentIDTx reports whether the payment was already recorded.
func (r *PaymentRepo) ExistsByPaymentIDTx(ctx context.Context, tx *sql.Tx, paymentID string) (bool, error) {
	if tx == nil {
		return false, ErrTxRequired
	}
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM payments WHERE payment_id = $1)`, paymentID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check payment: %w", err)
	}
	return exists, nil
}

// CreateTx inserts a payment within tx. A second insert of the same
// payment_id fails with a DuplicatePayment AppError.
func (r *PaymentRepo) CreateTx(ctx context.Context, tx *sql.Tx, req *model.CreatePaymentRequest) (*model.PaymentRecord, error) {
	if tx == nil {
		return nil, ErrTxRequired
	}
	if req == nil || strings.TrimSpace(req.PaymentID) == "" {
		return nil, errors.New("payment id is required")
	}
	data := req.Data
	if len(data) == 0 {
		data = []byte(`{}`)
	}

	rec, err := scanPayment(tx.QueryRowContext(ctx, `
		INSERT INTO payments (payment_id, data, user_id, created_at)
		VALUES ($1, $2::jsonb, $3, $4)
		RETURNING `+paymentColumns,
		req.PaymentID, string(data), req.UserID, r.timeProvider.Now().UTC()))
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return rec, nil
}

// GetByPaymentID returns the stored payment for a gateway payment id.
func (r *PaymentRepo) GetByPaymentID(ctx context.Context, paymentID string) (*model.PaymentRecord, error) {
	rec, err := scanPayment(r.DB.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE payment_id = $1`, paymentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return rec, nil
}

func scanPayment(row rowScanner) (*model.PaymentRecord, error) {
	var (
		rec    model.PaymentRecord
		raw    []byte
		userID sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.PaymentID, &raw, &userID, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.Data = cloneJSON(raw)
	rec.UserID = nullString(userID)
	return &rec, nil
}
