package config

import (
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:  "single service - http",
			input: "http",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP: true,
			},
		},
		{
			name:  "single service - esg-runner",
			input: "esg-runner",
			expected: map[ServiceMode]bool{
				ServiceModeEsgRunner: true,
			},
		},
		{
			name:  "all services with spaces",
			input: " http , esg-runner , reaper ",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:      true,
				ServiceModeEsgRunner: true,
				ServiceModeReaper:    true,
			},
		},
		{
			name:  "duplicate services",
			input: "http,http,reaper",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:   true,
				ServiceModeReaper: true,
			},
		},
		{
			name:        "empty string",
			input:       "",
			expectError: true,
		},
		{
			name:        "only spaces and commas",
			input:       " , , ",
			expectError: true,
		},
		{
			name:        "mixed valid and invalid",
			input:       "http,esg-runner,scheduler",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseServices(tt.input)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if len(result) != len(tt.expected) {
				t.Errorf("expected %d services, got %d", len(tt.expected), len(result))
				return
			}

			for service, expected := range tt.expected {
				if result[service] != expected {
					t.Errorf("expected service %s to be %v, got %v", service, expected, result[service])
				}
			}
		})
	}
}

func TestConfig_ServiceEnabledMethods(t *testing.T) {
	tests := []struct {
		name           string
		services       string
		expectedHTTP   bool
		expectedRunner bool
		expectedReaper bool
	}{
		{name: "http only", services: "http", expectedHTTP: true},
		{name: "runner only", services: "esg-runner", expectedRunner: true},
		{name: "all", services: "http,esg-runner,reaper", expectedHTTP: true, expectedRunner: true, expectedReaper: true},
		{name: "invalid disables everything", services: "invalid-service"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := AppConfig{Services: tt.services}

			if cfg.IsHTTPServerEnabled() != tt.expectedHTTP {
				t.Errorf("IsHTTPServerEnabled(): expected %v, got %v", tt.expectedHTTP, cfg.IsHTTPServerEnabled())
			}
			if cfg.IsEsgRunnerEnabled() != tt.expectedRunner {
				t.Errorf("IsEsgRunnerEnabled(): expected %v, got %v", tt.expectedRunner, cfg.IsEsgRunnerEnabled())
			}
			if cfg.IsReaperEnabled() != tt.expectedReaper {
				t.Errorf("IsReaperEnabled(): expected %v, got %v", tt.expectedReaper, cfg.IsReaperEnabled())
			}
		})
	}
}

func TestValidServiceModes(t *testing.T) {
	modes := ValidServiceModes()
	expected := []ServiceMode{ServiceModeHTTP, ServiceModeEsgRunner, ServiceModeReaper}

	if len(modes) != len(expected) {
		t.Fatalf("expected %d service modes, got %d", len(expected), len(modes))
	}
	for i, mode := range modes {
		if mode != expected[i] {
			t.Errorf("expected service mode %s at index %d, got %s", expected[i], i, mode)
		}
	}
}

func TestAppConfig_ParseDefaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.AnalysisClient.Timeout != 30*time.Minute {
		t.Errorf("expected 30m analysis timeout, got %v", cfg.AnalysisClient.Timeout)
	}
	if cfg.AnalysisClient.MaxAttempts != 1 {
		t.Errorf("expected a single attempt, got %d", cfg.AnalysisClient.MaxAttempts)
	}
	if cfg.EsgRunner.QueueTimeout != 40*time.Minute {
		t.Errorf("expected 40m queue timeout, got %v", cfg.EsgRunner.QueueTimeout)
	}
	if cfg.PaymentGateway.UserIDExpr != "metadata.user_id" {
		t.Errorf("unexpected user id expression %q", cfg.PaymentGateway.UserIDExpr)
	}
	if cfg.Mail.From != "no-reply@adaptianow.com" {
		t.Errorf("unexpected mail sender %q", cfg.Mail.From)
	}
	if cfg.Broadcast.Channel != "analysis-status" {
		t.Errorf("unexpected broadcast channel %q", cfg.Broadcast.Channel)
	}
}

func TestAppConfig_ParseIntegrationEnv(t *testing.T) {
	t.Setenv("MERCADOPAGO_WEBHOOK_SECRET_KEY", "  s3cret \n")
	t.Setenv("MERCADOPAGO_ACCESS_TOKEN", "APP_USR-token")
	t.Setenv("MERCADOPAGO_BASE_URL", "https://gateway.example.com/")
	t.Setenv("ANALYSIS_API_URL", "http://analysis:8000/")
	t.Setenv("ANALYSIS_API_MAX_ATTEMPTS", "2")
	t.Setenv("ANALYSIS_API_RETRY_DELAY", "1m")
	t.Setenv("RESEND_API_KEY", "re_123")
	t.Setenv("SERVICES", "http,esg-runner")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Webhook.Secret != "s3cret" {
		t.Errorf("expected trimmed secret, got %q", cfg.Webhook.Secret)
	}
	if cfg.PaymentGateway.BaseURL != "https://gateway.example.com" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.PaymentGateway.BaseURL)
	}
	if cfg.AnalysisClient.URL != "http://analysis:8000" {
		t.Errorf("unexpected analysis url %q", cfg.AnalysisClient.URL)
	}
	if !cfg.Mail.Enabled() {
		t.Error("expected mail to be enabled with an api key")
	}
	// 2 attempts of 30m plus one 1m delay leave no room under 40m.
	want := 61*time.Minute + minQueueTimeoutMargin
	if cfg.EsgRunner.QueueTimeout != want {
		t.Errorf("expected queue timeout raised to %v, got %v", want, cfg.EsgRunner.QueueTimeout)
	}
	// The stale sweep must outlast a job that waited and then ran to its timeout.
	if floor := cfg.EsgRunner.QueueTimeout + cfg.Reaper.PendingMaxAge; cfg.Reaper.StaleProcessingAge <= floor {
		t.Errorf("stale processing age %v must exceed %v", cfg.Reaper.StaleProcessingAge, floor)
	}
}

func TestReaperConfig_SanitizeFollowsQueueTimeout(t *testing.T) {
	cfg := ReaperConfig{
		Interval:           time.Minute,
		PendingMaxAge:      time.Hour,
		StaleProcessingAge: 45 * time.Minute,
		BatchSize:          100,
	}
	cfg.Sanitize(66 * time.Minute)

	if want := 66*time.Minute + time.Hour + time.Minute; cfg.StaleProcessingAge != want {
		t.Errorf("expected stale processing age raised to %v, got %v", want, cfg.StaleProcessingAge)
	}

	cfg.StaleProcessingAge = 4 * time.Hour
	cfg.Sanitize(66 * time.Minute)
	if cfg.StaleProcessingAge != 4*time.Hour {
		t.Errorf("expected longer stale processing age kept, got %v", cfg.StaleProcessingAge)
	}
}

func TestAnalysisClientConfig_CallBudget(t *testing.T) {
	cfg := AnalysisClientConfig{Timeout: 10 * time.Minute, MaxAttempts: 3, RetryDelay: time.Minute}
	if got := cfg.CallBudget(); got != 32*time.Minute {
		t.Fatalf("expected 32m budget, got %v", got)
	}

	cfg = AnalysisClientConfig{Timeout: time.Minute}
	if got := cfg.CallBudget(); got != time.Minute {
		t.Fatalf("expected zero attempts to count as one, got %v", got)
	}
}

func TestEsgRunnerConfig_Sanitize(t *testing.T) {
	cfg := EsgRunnerConfig{Concurrency: 0, QueueTimeout: 40 * time.Minute, PersistTimeout: 0, Priority: 500}
	cfg.Sanitize(30 * time.Minute)

	if cfg.Concurrency != 1 {
		t.Errorf("expected concurrency clamped to 1, got %d", cfg.Concurrency)
	}
	if cfg.QueueTimeout != 40*time.Minute {
		t.Errorf("expected queue timeout kept, got %v", cfg.QueueTimeout)
	}
	if cfg.PersistTimeout != time.Second {
		t.Errorf("expected persist timeout floor, got %v", cfg.PersistTimeout)
	}
	if cfg.Priority != 100 {
		t.Errorf("expected priority clamped to 100, got %d", cfg.Priority)
	}

	cfg = EsgRunnerConfig{QueueTimeout: time.Minute}
	cfg.Sanitize(30 * time.Minute)
	if cfg.QueueTimeout <= 30*time.Minute {
		t.Errorf("queue timeout must exceed the call budget, got %v", cfg.QueueTimeout)
	}
}

func TestReaperConfig_Sanitize(t *testing.T) {
	cfg := ReaperConfig{BatchSize: 50000}
	cfg.Sanitize(0)

	if cfg.Interval != 10*time.Second {
		t.Errorf("expected interval floor, got %v", cfg.Interval)
	}
	if want := 5*time.Minute + 5*time.Minute + 10*time.Second; cfg.StaleProcessingAge != want {
		t.Errorf("expected stale processing floor %v, got %v", want, cfg.StaleProcessingAge)
	}
	if cfg.BatchSize != 10000 {
		t.Errorf("expected batch size clamped, got %d", cfg.BatchSize)
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " ",
	}

	cfg.Sanitize()

	if cfg.Enabled {
		t.Fatalf("expected enabled to be false when address is empty")
	}

	cfg = ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " statsd:1234 ",
		Namespace:     ".custom.",
	}

	cfg.Sanitize()

	if !cfg.IsEnabled() {
		t.Fatalf("expected metrics to remain enabled")
	}
	if cfg.StatsdAddress != "statsd:1234" {
		t.Fatalf("expected address to be trimmed, got %q", cfg.StatsdAddress)
	}
	if cfg.Namespace != "custom" {
		t.Fatalf("expected namespace dots trimmed, got %q", cfg.Namespace)
	}
}

func TestObservabilityNotificationsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityNotificationsConfig{
		Enabled:    true,
		Timeout:    0,
		RetryLimit: -1,
		Slack: SlackNotificationConfig{
			Enabled:    true,
			WebhookURL: " ",
			Channel:    "  ",
			Username:   "",
		},
		PagerDuty: PagerDutyNotificationConfig{
			Enabled:    true,
			RoutingKey: " ",
			Source:     "",
			Component:  "",
		},
	}

	cfg.Sanitize()

	if cfg.Timeout <= 0 {
		t.Fatalf("expected timeout to fall back to default, got %v", cfg.Timeout)
	}
	if cfg.RetryLimit < 0 {
		t.Fatalf("expected retry limit to be clamped to >= 0, got %d", cfg.RetryLimit)
	}
	if cfg.Slack.Enabled {
		t.Fatal("expected slack to be disabled without a webhook url")
	}
	if cfg.PagerDuty.Enabled {
		t.Fatal("expected pagerduty to be disabled without a routing key")
	}
	if cfg.PagerDuty.Source != "esgpipeline" {
		t.Fatalf("expected pagerduty source default, got %q", cfg.PagerDuty.Source)
	}

	// Disabled top-level should disable child sinks.
	cfg = ObservabilityNotificationsConfig{
		Enabled: false,
		Slack: SlackNotificationConfig{
			Enabled:    true,
			WebhookURL: "https://hooks.slack.com/services/test",
		},
		PagerDuty: PagerDutyNotificationConfig{
			Enabled:    true,
			RoutingKey: "abc",
		},
	}
	cfg.Sanitize()

	if cfg.Slack.Enabled {
		t.Fatal("expected slack to be disabled when top-level notifications disabled")
	}
	if cfg.PagerDuty.Enabled {
		t.Fatal("expected pagerduty to be disabled when top-level notifications disabled")
	}
}
