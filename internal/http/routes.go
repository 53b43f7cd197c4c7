package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/target/esg-pipeline/internal/core"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Webhook   PaymentWebhookProcessor // Required
	Producer  core.EsgJobProducer     // Required
	Jobs      JobStatusReader         // Required
	Analyses  AnalysisReader          // Required
	Hub       StatusSubscriber        // Required
	Gateway   GatewayHealthChecker    // Optional
	DB        Pinger                  // Optional: health check ping
	Heartbeat time.Duration           // SSE heartbeat; zero selects 25s
	Logger    *slog.Logger            // Optional
}

// NewRouter creates the HTTP router wrapped in the request id, logging and
// panic recovery middleware.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")

	mux := http.NewServeMux()

	webhooks := &WebhookHandlers{Svc: services.Webhook, Logger: logger}
	jobs := &JobHandlers{Producer: services.Producer, Status: services.Jobs, Logger: logger}
	analyses := &AnalysisHandlers{Svc: services.Analyses, Logger: logger}
	stream := &StreamHandlers{Hub: services.Hub, Heartbeat: services.Heartbeat, Logger: logger}
	health := &HealthHandlers{DB: services.DB, Gateway: services.Gateway, Logger: logger}

	registerWebhookRoutes(mux, webhooks)
	registerJobRoutes(mux, jobs)
	registerAnalysisRoutes(mux, analyses)
	mux.HandleFunc("GET /analysis-status/stream", stream.Stream)
	mux.HandleFunc("GET /healthz", health.Liveness)
	mux.HandleFunc("HEAD /healthz", health.Liveness)
	mux.HandleFunc("POST /mercadopago/health", health.GatewayStatus)

	return Chain(mux, RequestID(), Recover(logger), Logging(logger))
}

func registerWebhookRoutes(mux *http.ServeMux, h *WebhookHandlers) {
	mux.HandleFunc("POST /webhooks/payment", h.Payment)
	// Path the gateway is configured with in existing deployments.
	mux.HandleFunc("POST /mercadopago/webhook", h.Payment)
}

func registerJobRoutes(mux *http.ServeMux, h *JobHandlers) {
	mux.HandleFunc("POST /esg-jobs", h.CreateJob)
	mux.HandleFunc("GET /esg-jobs/{id}/status", h.GetJobStatus)
}

func registerAnalysisRoutes(mux *http.ServeMux, h *AnalysisHandlers) {
	mux.HandleFunc("GET /analyses/{id}", h.Get)
	mux.HandleFunc("PATCH /analyses/{id}/payment-status", h.SetPaymentStatus)
	mux.HandleFunc("PATCH /analyses/{id}/shipping", h.MarkSent)
	mux.HandleFunc("GET /organizations/{id}/analyses/latest", h.Latest)
	mux.HandleFunc("GET /organizations/{id}/esg-analysis", h.LatestResult)
}
