package httpx

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/target/esg-pipeline/internal/domain/webhook"
	"github.com/target/esg-pipeline/internal/service"
)

const (
	maxWebhookBodyBytes = 1 << 20

	headerSignature  = "x-signature"
	headerGatewayReq = "x-request-id"
)

// PaymentWebhookProcessor handles one verified-or-not gateway delivery.
type PaymentWebhookProcessor interface {
	Handle(ctx context.Context, n service.PaymentNotification) (service.WebhookOutcome, error)
}

// WebhookHandlers serve the payment gateway notification endpoint.
type WebhookHandlers struct {
	Svc    PaymentWebhookProcessor
	Logger *slog.Logger
}

type webhookResponse struct {
	Status service.WebhookOutcome `json:"status"`
}

// Payment handles a gateway notification. It answers 401 for an invalid
// signature, 400 for a duplicate delivery, 404 when the payment names no
// known organization or analysis, and 200 otherwise.
func (h *WebhookHandlers) Payment(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, ErrorParams{Code: http.StatusRequestEntityTooLarge, ErrCode: "body_too_large", Err: err})
			return
		}
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_body", Err: err})
		return
	}

	// The signature is checked before a bad body is reported, so an
	// unsigned request never sees a validation error.
	ev, decodeErr := webhook.DecodeEvent(body)
	signedEvent := &ev
	if decodeErr != nil {
		signedEvent = nil
	}

	outcome, err := h.Svc.Handle(r.Context(), service.PaymentNotification{
		Event:           ev,
		BodyErr:         decodeErr,
		SignedID:        webhook.ResolvePaymentID(r.URL.Query(), signedEvent),
		RequestID:       r.Header.Get(headerGatewayReq),
		SignatureHeader: r.Header.Get(headerSignature),
	})
	if err != nil {
		writeAppError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, webhookResponse{Status: outcome})
}
