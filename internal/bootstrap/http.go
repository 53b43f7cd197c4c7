package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/netutil"

	"github.com/target/esg-pipeline/config"
	httpx "github.com/target/esg-pipeline/internal/http"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	HTTP     config.HTTPConfig
	Services *ServiceContainer
	DB       httpx.Pinger
	Logger   *slog.Logger
}

// BuildHTTPHandler assembles the router from the service container.
func BuildHTTPHandler(cfg *HTTPServerConfig) (http.Handler, error) {
	s := cfg.Services
	if s == nil || s.Webhook == nil || s.Producer == nil || s.Jobs == nil || s.Analyses == nil || s.Hub == nil {
		return nil, errors.New("http server requires the webhook, producer, job, analysis and hub services")
	}
	rs := httpx.RouterServices{
		Webhook:   s.Webhook,
		Producer:  s.Producer,
		Jobs:      s.Jobs,
		Analyses:  s.Analyses,
		Hub:       s.Hub,
		DB:        cfg.DB,
		Heartbeat: cfg.HTTP.StreamHeartbeat,
		Logger:    cfg.Logger,
	}
	if s.Gateway != nil {
		rs.Gateway = s.Gateway
	}
	return httpx.NewRouter(rs), nil
}

// StartHTTPServer binds the listener and serves in the background. Serve
// errors other than a clean shutdown are passed to onErr.
func StartHTTPServer(cfg *HTTPServerConfig, onErr func(error)) (*http.Server, error) {
	if cfg == nil {
		return nil, errors.New("http server config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	handler, err := BuildHTTPHandler(cfg)
	if err != nil {
		return nil, err
	}

	addr := cfg.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	// Stream subscribers hold connections open; the cap bounds them.
	ln = netutil.LimitListener(ln, cfg.HTTP.MaxConnections)

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	go func() {
		logger.Info("starting HTTP server", "addr", ln.Addr().String(), "max_connections", cfg.HTTP.MaxConnections)
		if serveErr := server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", serveErr)
			if onErr != nil {
				onErr(fmt.Errorf("http server: %w", serveErr))
			}
		}
	}()

	return server, nil
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context  context.Context
	Server   *http.Server
	Services *ServiceContainer
	Logger   *slog.Logger
}

// ShutdownHTTPServer stops accepting requests and waits for in-flight ones.
// The hub is closed first so open status streams end.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("shutting down HTTP server")

	if cfg.Services != nil {
		if cfg.Services.Jobs != nil {
			cfg.Services.Jobs.StopAllListeners()
		}
		if cfg.Services.Hub != nil {
			cfg.Services.Hub.Close()
		}
	}

	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if err := cfg.Server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	logger.Info("HTTP server stopped")
	return nil
}
