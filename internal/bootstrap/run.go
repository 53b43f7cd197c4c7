package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/target/esg-pipeline/config"
)

// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
const shutdownWaitTimeout = 15 * time.Second

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services *ServiceContainer
	DB       *sql.DB
	Logger   *slog.Logger
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	name string
	done <-chan struct{}
}

func buildBackgroundServices(cfg *ServiceOrchestrationConfig, logger *slog.Logger) []backgroundService {
	services := []backgroundService{
		{
			mode: config.ServiceModeEsgRunner,
			name: "esg runner",
			start: func(ctx context.Context) error {
				return RunEsgRunner(ctx, EsgRunnerConfig{
					Services: cfg.Services,
					Config:   cfg.Config.EsgRunner,
					Logger:   logger,
				})
			},
		},
		{
			mode: config.ServiceModeReaper,
			name: "reaper",
			start: func(ctx context.Context) error {
				return RunReaper(ctx, ReaperConfig{
					DB:       cfg.DB,
					Services: cfg.Services,
					Config:   cfg.Config.Reaper,
					Logger:   logger,
				})
			},
		},
	}
	if cfg.Services.Relay != nil {
		// Only processes serving the stream need the redis subscription.
		services = append(services, backgroundService{
			mode: config.ServiceModeHTTP,
			name: "status relay",
			start: func(ctx context.Context) error {
				return RunStatusRelay(ctx, cfg.Services)
			},
		})
	}
	return services
}

// launchBackground runs descriptor when its mode is enabled. The returned
// channel closes when it stops; nil means it was not started.
func launchBackground(
	ctx context.Context,
	enabled map[config.ServiceMode]bool,
	errCh chan<- error,
	logger *slog.Logger,
	descriptor backgroundService,
) <-chan struct{} {
	if !enabled[descriptor.mode] {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			reportServiceError(ctx, errCh, logger, fmt.Errorf("%s failed: %w", descriptor.name, err))
		}
	}()
	logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	return done
}

// reportServiceError never blocks: a full channel already holds an error
// that will stop the process.
func reportServiceError(ctx context.Context, errCh chan<- error, logger *slog.Logger, err error) {
	select {
	case errCh <- err:
	case <-ctx.Done():
	default:
		logger.WarnContext(ctx, "dropping background service error", "error", err)
	}
}

// RunServicesWithShutdown starts all enabled services and blocks until a
// shutdown signal arrives, ctx is done or a service fails.
func RunServicesWithShutdown(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil || cfg.Services == nil {
		return errors.New("service orchestration config is incomplete")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	serviceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	backgrounds := buildBackgroundServices(cfg, logger)
	errCh := make(chan error, errorChannelBufferSize(len(backgrounds)))

	var server *http.Server
	if enabled[config.ServiceModeHTTP] {
		server, err = StartHTTPServer(&HTTPServerConfig{
			HTTP:     cfg.Config.HTTP,
			Services: cfg.Services,
			DB:       cfg.DB,
			Logger:   logger,
		}, func(err error) { reportServiceError(serviceCtx, errCh, logger, err) })
		if err != nil {
			return err
		}
	}

	handles := make([]backgroundServiceHandle, 0, len(backgrounds))
	for _, svc := range backgrounds {
		if done := launchBackground(serviceCtx, enabled, errCh, logger, svc); done != nil {
			handles = append(handles, backgroundServiceHandle{name: svc.name, done: done})
		}
	}

	return waitForShutdown(shutdownConfig{
		ctx:         serviceCtx,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  server,
		services:    cfg.Services,
		logger:      logger,
		backgrounds: handles,
	})
}

// errorChannelBufferSize leaves room for every background service plus the
// HTTP server.
func errorChannelBufferSize(backgrounds int) int {
	return max(backgrounds, 0) + 1
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	services    *ServiceContainer
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
	// signals overrides the OS signal channel (tests).
	signals <-chan os.Signal
}

// waitForShutdown waits for a shutdown signal, parent cancellation or a
// service error, then stops everything.
func waitForShutdown(cfg shutdownConfig) error {
	quit := cfg.signals
	if quit == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(ch)
		quit = ch
	}

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel()
		return gracefulStop(cfg)
	case <-cfg.ctx.Done():
		cfg.logger.Info("context done, shutting down services...")
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel()
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop stops the HTTP server and waits for background services.
// The service context is already canceled, so the shutdown deadline is
// derived from a fresh context.
func gracefulStop(cfg shutdownConfig) error {
	if cfg.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWaitTimeout)
		defer cancel()

		if err := ShutdownHTTPServer(ShutdownConfig{
			Context:  shutdownCtx,
			Server:   cfg.httpServer,
			Services: cfg.services,
			Logger:   cfg.logger,
		}); err != nil {
			return err
		}
	}

	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}
	return nil
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
