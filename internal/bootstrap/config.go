package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/target/esg-pipeline/config"
)

// InitLogger installs the JSON startup logger used until configuration is loaded.
func InitLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}

// ConfigureLogger replaces the default logger with one honouring LOG_LEVEL.
// Development mode logs human readable text.
func ConfigureLogger(cfg *config.AppConfig) *slog.Logger {
	return configureLogger(os.Stdout, cfg)
}

func configureLogger(w io.Writer, cfg *config.AppConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLogLevel(cfg.LogLevel)}
	var handler slog.Handler = slog.NewJSONHandler(w, opts)
	if cfg.IsDev {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler).With("app", "esgpipeline")
	slog.SetDefault(logger)
	return logger
}

// ParseLogLevel maps a LOG_LEVEL value to a slog level. Unknown values select info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoadConfig loads configuration from environment variables, reading a .env
// file first when one exists.
func LoadConfig() (config.AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// ValidateServiceConfig checks the service selection and the settings each
// selected service cannot run without.
func ValidateServiceConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("service config is required")
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("invalid service configuration: %w", err)
	}
	if len(services) == 0 {
		return errors.New("no services enabled")
	}

	var errs []error
	if services[config.ServiceModeHTTP] {
		if cfg.Webhook.Secret == "" {
			errs = append(errs, errors.New("MERCADOPAGO_WEBHOOK_SECRET_KEY is required by the http service"))
		}
		if cfg.PaymentGateway.AccessToken == "" {
			errs = append(errs, errors.New("MERCADOPAGO_ACCESS_TOKEN is required by the http service"))
		}
	}
	if services[config.ServiceModeEsgRunner] && cfg.AnalysisClient.URL == "" {
		errs = append(errs, errors.New("ANALYSIS_API_URL is required by the esg-runner service"))
	}
	return errors.Join(errs...)
}

// GetEnabledServices returns the enabled service names in a stable order.
func GetEnabledServices(cfg *config.AppConfig) []string {
	if cfg == nil {
		return []string{}
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		// Validation reports the error.
		return []string{}
	}

	names := make([]string, 0, len(services))
	for _, mode := range config.ValidServiceModes() {
		if services[mode] {
			names = append(names, string(mode))
		}
	}
	return names
}

// NeedsRedis reports whether any enabled feature uses redis.
func NeedsRedis(cfg *config.AppConfig) bool {
	if cfg == nil {
		return false
	}
	if cfg.Broadcast.UseRedis {
		return true
	}
	return cfg.IsHTTPServerEnabled() && cfg.Webhook.InFlightTTL > 0
}
