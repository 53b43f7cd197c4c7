package httpx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/target/esg-pipeline/internal/domain/model"
	apperrors "github.com/target/esg-pipeline/internal/errors"
)

// AnalysisReader serves analysis records and applies operator status changes.
type AnalysisReader interface {
	GetByID(ctx context.Context, id string) (*model.Analysis, error)
	Latest(ctx context.Context, organizationID string) (*model.Analysis, error)
	LatestResult(ctx context.Context, organizationID string) (*model.EsgAnalysisResult, error)
	SetPaymentStatus(ctx context.Context, id string, status model.PaymentStatus) (*model.Analysis, error)
	MarkSent(ctx context.Context, id string) (*model.Analysis, error)
}

// AnalysisHandlers let clients pull records they may have missed on the
// realtime channel.
type AnalysisHandlers struct {
	Svc    AnalysisReader
	Logger *slog.Logger
}

// Get returns one analysis record.
func (h *AnalysisHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !validID(w, r, h.Logger, "id", id) {
		return
	}
	rec, err := h.Svc.GetByID(r.Context(), id)
	h.respond(w, r, rec, err)
}

// Latest returns the organization's most recently created record.
func (h *AnalysisHandlers) Latest(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !validID(w, r, h.Logger, "id", id) {
		return
	}
	rec, err := h.Svc.Latest(r.Context(), id)
	h.respond(w, r, rec, err)
}

// LatestResult returns the organization's stored analysis document.
func (h *AnalysisHandlers) LatestResult(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !validID(w, r, h.Logger, "id", id) {
		return
	}
	res, err := h.Svc.LatestResult(r.Context(), id)
	h.respond(w, r, res, err)
}

type paymentStatusRequest struct {
	PaymentStatus model.PaymentStatus `json:"paymentStatus"`
}

// SetPaymentStatus lets an operator set a record's payment status.
func (h *AnalysisHandlers) SetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !validID(w, r, h.Logger, "id", id) {
		return
	}
	var req paymentStatusRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	rec, err := h.Svc.SetPaymentStatus(r.Context(), id, req.PaymentStatus)
	h.respond(w, r, rec, err)
}

// MarkSent records that the report was delivered.
func (h *AnalysisHandlers) MarkSent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !validID(w, r, h.Logger, "id", id) {
		return
	}
	rec, err := h.Svc.MarkSent(r.Context(), id)
	h.respond(w, r, rec, err)
}

func (h *AnalysisHandlers) respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		writeAppError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, v)
}

// validID rejects ids that are not uuids with a 400.
func validID(w http.ResponseWriter, r *http.Request, logger *slog.Logger, field, id string) bool {
	if err := uuid.Validate(id); err != nil {
		writeAppError(w, r, logger, apperrors.ValidationField(field, field+" must be a uuid"))
		return false
	}
	return true
}
