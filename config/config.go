package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - database.go: Database and Redis configuration
//   - http.go: HTTP server configuration
//   - integrations.go: Payment gateway, analysis service, mail and artifact configuration
//   - services.go: Service mode and worker configuration
type AppConfig struct {
	// IsDev controls development mode behavior (text logs, relaxed defaults).
	// Set DEV=true or APP_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Service mode configuration
	Services string `env:"SERVICES" envDefault:"http"`

	Webhook        WebhookConfig
	PaymentGateway PaymentGatewayConfig `envPrefix:"MERCADOPAGO_"`
	AnalysisClient AnalysisClientConfig `envPrefix:"ANALYSIS_API_"`
	Mail           MailConfig           `envPrefix:"RESEND_"`
	Broadcast      BroadcastConfig
	Artifacts      ArtifactConfig

	// ESG analysis job runner configuration
	EsgRunner EsgRunnerConfig

	// Reaper configuration
	Reaper ReaperConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Postgres.Sanitize()
	c.HTTP.Sanitize()
	c.Webhook.Sanitize()
	c.PaymentGateway.Sanitize()
	c.AnalysisClient.Sanitize()
	c.Mail.Sanitize()
	c.Broadcast.Sanitize()
	c.Artifacts.Sanitize()

	// The queue hard timeout depends on the analysis call budget and the stale
	// PROCESSING sweep depends on the queue timeout, so order matters here.
	c.EsgRunner.Sanitize(c.AnalysisClient.CallBudget())
	c.Reaper.Sanitize(c.EsgRunner.QueueTimeout)
	c.Observability.Sanitize()

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.detectDevMode()
}

// detectDevMode checks both DEV and APP_ENV environment variables.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		appEnv := strings.ToLower(os.Getenv("APP_ENV"))
		c.IsDev = appEnv == "development" || appEnv == "dev"
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	return c.isEnabled(ServiceModeHTTP)
}

// IsEsgRunnerEnabled returns true if the ESG analysis job runner is enabled.
func (c *AppConfig) IsEsgRunnerEnabled() bool {
	return c.isEnabled(ServiceModeEsgRunner)
}

// IsReaperEnabled returns true if the reaper service is enabled.
func (c *AppConfig) IsReaperEnabled() bool {
	return c.isEnabled(ServiceModeReaper)
}

func (c *AppConfig) isEnabled(mode ServiceMode) bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[mode]
}
