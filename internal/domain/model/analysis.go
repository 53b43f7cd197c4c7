package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// AnalysisStatus is the lifecycle state of an analysis record.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type AnalysisStatus string

const (
	AnalysisStatusPending    AnalysisStatus = "PENDING"
	AnalysisStatusProcessing AnalysisStatus = "PROCESSING"
	AnalysisStatusCompleted  AnalysisStatus = "COMPLETED"
	AnalysisStatusIncomplete AnalysisStatus = "INCOMPLETE"
	AnalysisStatusFailed     AnalysisStatus = "FAILED"
)

// Valid returns true if the status is one of the known values.
func (s AnalysisStatus) Valid() bool {
	switch s {
	case AnalysisStatusPending, AnalysisStatusProcessing, AnalysisStatusCompleted,
		AnalysisStatusIncomplete, AnalysisStatusFailed:
		return true
	default:
		return false
	}
}

// UnmarshalText accepts any casing and rejects unknown values.
func (s *AnalysisStatus) UnmarshalText(text []byte) error {
	v := AnalysisStatus(strings.ToUpper(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid analysis status: %q", string(text))
	}
	*s = v
	return nil
}

// PaymentStatus is the payment state of an analysis record.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
)

// Valid returns true if the status is one of the known values.
func (s PaymentStatus) Valid() bool {
	return s == PaymentStatusPending || s == PaymentStatusCompleted
}

// UnmarshalText accepts any casing and rejects unknown values.
func (s *PaymentStatus) UnmarshalText(text []byte) error {
	v := PaymentStatus(strings.ToUpper(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid payment status: %q", string(text))
	}
	*s = v
	return nil
}

// ShippingStatus records whether the report was sent to the organization.
type ShippingStatus string

const (
	ShippingStatusSent    ShippingStatus = "SENT"
	ShippingStatusNotSent ShippingStatus = "NOT_SENT"
)

// Valid returns true if the status is one of the known values.
func (s ShippingStatus) Valid() bool {
	return s == ShippingStatusSent || s == ShippingStatusNotSent
}

// Analysis is one generation attempt for an organization.
type Analysis struct {
	ID                 string         `json:"id"                           yaml:"id"                           db:"id"`
	OrganizationID     string         `json:"organizationId"               yaml:"organizationId"               db:"organization_id"`
	Status             AnalysisStatus `json:"status"                       yaml:"status"                       db:"status"`
	PaymentStatus      PaymentStatus  `json:"paymentStatus"                yaml:"paymentStatus"                db:"payment_status"`
	ShippingStatus     ShippingStatus `json:"shippingStatus"               yaml:"shippingStatus"               db:"shipping_status"`
	DiscountID         *string        `json:"discountId,omitempty"         yaml:"discountId,omitempty"         db:"discount_id"`
	DiscountPercentage *float64       `json:"discountPercentage,omitempty" yaml:"discountPercentage,omitempty" db:"discount_percentage"`
	CreatedAt          time.Time      `json:"createdAt"                    yaml:"createdAt"                    db:"created_at"`
	UpdatedAt          time.Time      `json:"updatedAt"                    yaml:"updatedAt"                    db:"updated_at"`
}

// Snapshot converts the record into a broadcastable status update.
func (a *Analysis) Snapshot() StatusUpdate {
	u := StatusUpdate{
		AnalysisID:     a.ID,
		OrganizationID: a.OrganizationID,
		Status:         a.Status,
	}
	if a.PaymentStatus != "" {
		ps := a.PaymentStatus
		u.PaymentStatus = &ps
	}
	if a.ShippingStatus != "" {
		ss := a.ShippingStatus
		u.ShippingStatus = &ss
	}
	return u
}

// CreateAnalysisRequest seeds a new PENDING analysis record.
type CreateAnalysisRequest struct {
	OrganizationID     string
	DiscountID         *string
	DiscountPercentage *float64
}

// StatusUpdate is the point-in-time snapshot published on the realtime channel.
type StatusUpdate struct {
	AnalysisID     string          `json:"analysisId"`
	OrganizationID string          `json:"organizationId"`
	Status         AnalysisStatus  `json:"status"`
	PaymentStatus  *PaymentStatus  `json:"paymentStatus"`
	ShippingStatus *ShippingStatus `json:"shippingStatus"`
}

// EsgAnalysisResult is the stored analysis document of an organization.
type EsgAnalysisResult struct {
	ID             string          `json:"id"             db:"id"`
	OrganizationID string          `json:"organizationId" db:"organization_id"`
	AnalysisJSON   json.RawMessage `json:"analysisJson"   db:"analysis_json"`
	CreatedAt      time.Time       `json:"createdAt"      db:"created_at"`
	UpdatedAt      time.Time       `json:"updatedAt"      db:"updated_at"`
}
