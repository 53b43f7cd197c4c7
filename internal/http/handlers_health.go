package httpx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/esg-pipeline/internal/domain/model"
)

const (
	healthResponse   = `{"status":"ok"}`
	unhealthyPayload = `{"status":"unavailable"}`
	healthPingBudget = 2 * time.Second
)

// Pinger checks a backing store.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// GatewayHealthChecker reports payment gateway configuration and reachability.
type GatewayHealthChecker interface {
	Health(ctx context.Context) model.GatewayHealth
}

// HealthHandlers serve liveness and the gateway check.
type HealthHandlers struct {
	DB      Pinger // Optional
	Gateway GatewayHealthChecker
	Logger  *slog.Logger
}

// Liveness returns 200 when the process is up and the database answers.
func (h *HealthHandlers) Liveness(w http.ResponseWriter, r *http.Request) {
	body := healthResponse
	status := http.StatusOK
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingBudget)
		defer cancel()
		if err := h.DB.PingContext(ctx); err != nil {
			h.Logger.WarnContext(r.Context(), "health check database ping failed", "error", err)
			body = unhealthyPayload
			status = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, body); err != nil {
		// Nothing more to do if the client connection is gone.
		return
	}
}

// GatewayStatus reports whether the gateway credentials are configured and the
// gateway API answers. Secret values are never echoed, only their length.
func (h *HealthHandlers) GatewayStatus(w http.ResponseWriter, r *http.Request) {
	if h.Gateway == nil {
		WriteJSON(w, http.StatusServiceUnavailable, model.GatewayHealth{Error: "payment gateway not configured"})
		return
	}
	WriteJSON(w, http.StatusOK, h.Gateway.Health(r.Context()))
}
