package model

import (
	"encoding/json"
	"time"
)

// PaymentRecord is one processed payment event. PaymentID is the idempotency key.
type PaymentRecord struct {
	ID        string          `json:"id"        db:"id"`
	PaymentID string          `json:"paymentId" db:"payment_id"`
	Data      json.RawMessage `json:"data"      db:"data"`
	UserID    *string         `json:"userId"    db:"user_id"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
}

// CreatePaymentRequest persists an approved payment.
type CreatePaymentRequest struct {
	PaymentID string
	Data      json.RawMessage
	UserID    *string
}

// GatewayPaymentStatusApproved is the only gateway status that triggers work.
const GatewayPaymentStatusApproved = "approved"

// PaymentDetails is the payment gateway's view of a payment.
type PaymentDetails struct {
	ID                string
	Status            string
	UserID            string
	OrganizationID    string
	TransactionAmount float64
	Description       string
	// Raw is the gateway document, stored verbatim on the payment record.
	Raw json.RawMessage
}

// Approved reports whether the gateway approved the payment.
func (p *PaymentDetails) Approved() bool {
	return p.Status == GatewayPaymentStatusApproved
}
