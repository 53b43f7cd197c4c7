package config

import (
	"strings"
	"time"
)

// WebhookConfig contains inbound payment webhook settings.
type WebhookConfig struct {
	// Secret is the shared HMAC secret configured on the payment gateway.
	Secret string `env:"MERCADOPAGO_WEBHOOK_SECRET_KEY"`

	// InFlightTTL bounds the redis lock that collapses concurrent deliveries
	// of the same payment id. Zero disables the lock.
	InFlightTTL time.Duration `env:"WEBHOOK_INFLIGHT_TTL" envDefault:"30s"`
}

// Sanitize trims the secret; gateways paste it with stray whitespace.
func (w *WebhookConfig) Sanitize() {
	w.Secret = strings.TrimSpace(w.Secret)
	if w.InFlightTTL < 0 {
		w.InFlightTTL = 0
	}
}

const (
	defaultUserIDExpr = "metadata.user_id"
	defaultOrgIDExpr  = "additional_info.items[0].id"
	defaultMailFrom   = "no-reply@adaptianow.com"
)

// PaymentGatewayConfig configures the MercadoPago payments API client.
type PaymentGatewayConfig struct {
	BaseURL     string        `env:"BASE_URL"      envDefault:"https://api.mercadopago.com"`
	AccessToken string        `env:"ACCESS_TOKEN"`
	Timeout     time.Duration `env:"TIMEOUT"       envDefault:"10s"`

	// UserIDExpr and OrgIDExpr are JMESPath expressions evaluated against the
	// payment detail document.
	UserIDExpr string `env:"USER_ID_EXPR" envDefault:"metadata.user_id"`
	OrgIDExpr  string `env:"ORG_ID_EXPR"  envDefault:"additional_info.items[0].id"`
}

// Sanitize normalises gateway configuration values.
func (p *PaymentGatewayConfig) Sanitize() {
	p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	p.AccessToken = strings.TrimSpace(p.AccessToken)
	if p.Timeout <= 0 {
		p.Timeout = 10 * time.Second
	}
	if strings.TrimSpace(p.UserIDExpr) == "" {
		p.UserIDExpr = defaultUserIDExpr
	}
	if strings.TrimSpace(p.OrgIDExpr) == "" {
		p.OrgIDExpr = defaultOrgIDExpr
	}
}

// AnalysisClientConfig configures the external ESG analysis service client.
type AnalysisClientConfig struct {
	URL string `env:"URL" envDefault:"http://localhost:8000"`

	// Timeout is the hard deadline of a single call attempt.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30m"`

	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int           `env:"MAX_ATTEMPTS" envDefault:"1"`
	RetryDelay  time.Duration `env:"RETRY_DELAY"  envDefault:"60s"`

	// MaxResponseBytes bounds the decoded response body.
	MaxResponseBytes int64 `env:"MAX_RESPONSE_BYTES" envDefault:"67108864"`

	// Optional OAuth2 client-credentials grant for the analysis service.
	OAuthTokenURL     string   `env:"OAUTH_TOKEN_URL"`
	OAuthClientID     string   `env:"OAUTH_CLIENT_ID"`
	OAuthClientSecret string   `env:"OAUTH_CLIENT_SECRET"`
	OAuthScopes       []string `env:"OAUTH_SCOPES"`
}

// Sanitize applies guardrails to analysis client configuration values.
func (a *AnalysisClientConfig) Sanitize() {
	a.URL = strings.TrimRight(strings.TrimSpace(a.URL), "/")
	if a.Timeout < time.Second {
		a.Timeout = time.Second
	}
	if a.MaxAttempts < 1 {
		a.MaxAttempts = 1
	}
	if a.MaxAttempts > 5 {
		a.MaxAttempts = 5
	}
	if a.RetryDelay < 0 {
		a.RetryDelay = 0
	}
	if a.MaxResponseBytes < 1024 {
		a.MaxResponseBytes = 1024
	}
}

// OAuthEnabled reports whether client-credentials auth is fully configured.
func (a *AnalysisClientConfig) OAuthEnabled() bool {
	return a.OAuthTokenURL != "" && a.OAuthClientID != "" && a.OAuthClientSecret != ""
}

// CallBudget is the worst-case wall time of one analysis call including retries.
func (a *AnalysisClientConfig) CallBudget() time.Duration {
	attempts := a.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return time.Duration(attempts)*a.Timeout + time.Duration(attempts-1)*a.RetryDelay
}

// MailConfig configures the Resend email API used for payment confirmations.
type MailConfig struct {
	APIKey  string        `env:"API_KEY"`
	From    string        `env:"FROM"     envDefault:"no-reply@adaptianow.com"`
	BaseURL string        `env:"BASE_URL" envDefault:"https://api.resend.com"`
	Timeout time.Duration `env:"TIMEOUT"  envDefault:"10s"`

	// CopyTo receives a copy of every confirmation email.
	CopyTo string `env:"COPY_TO"`

	// DashboardURL is the frontend origin linked from the email.
	DashboardURL string `env:"DASHBOARD_URL" envDefault:"http://localhost:3000"`
}

// Sanitize normalises mail configuration values.
func (m *MailConfig) Sanitize() {
	m.APIKey = strings.TrimSpace(m.APIKey)
	m.BaseURL = strings.TrimRight(strings.TrimSpace(m.BaseURL), "/")
	m.CopyTo = strings.TrimSpace(m.CopyTo)
	m.DashboardURL = strings.TrimRight(strings.TrimSpace(m.DashboardURL), "/")
	if strings.TrimSpace(m.From) == "" {
		m.From = defaultMailFrom
	}
	if m.Timeout <= 0 {
		m.Timeout = 10 * time.Second
	}
}

// Enabled reports whether outbound mail is configured.
func (m *MailConfig) Enabled() bool {
	return m.APIKey != ""
}

// BroadcastConfig configures the realtime status channel.
type BroadcastConfig struct {
	// Channel is the redis pub/sub channel shared by all processes.
	Channel string `env:"BROADCAST_CHANNEL" envDefault:"analysis-status"`

	// UseRedis relays updates through redis so that worker processes and
	// HTTP processes share one logical channel.
	UseRedis bool `env:"BROADCAST_USE_REDIS" envDefault:"true"`

	// SubscriberBuffer is the per-subscriber queue length; full queues drop updates.
	SubscriberBuffer int `env:"BROADCAST_SUBSCRIBER_BUFFER" envDefault:"16"`
}

// Sanitize applies guardrails to broadcast configuration values.
func (b *BroadcastConfig) Sanitize() {
	if b.Channel = strings.TrimSpace(b.Channel); b.Channel == "" {
		b.Channel = "analysis-status"
	}
	if b.SubscriberBuffer < 1 {
		b.SubscriberBuffer = 1
	}
}

// ArtifactConfig configures where rendered report artifacts are stored.
type ArtifactConfig struct {
	Dir string `env:"ARTIFACT_DIR" envDefault:"./tmp"`
}

// Sanitize normalises artifact configuration values.
func (a *ArtifactConfig) Sanitize() {
	if a.Dir = strings.TrimSpace(a.Dir); a.Dir == "" {
		a.Dir = "./tmp"
	}
}
