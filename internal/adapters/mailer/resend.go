// Package mailer sends transactional email through the Resend HTTP API.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/target/esg-pipeline/internal/core"
	"github.com/target/esg-pipeline/internal/domain/model"
)

const (
	DefaultBaseURL = "https://api.resend.com"
	DefaultFrom    = "no-reply@adaptianow.com"
)

// Config configures the Resend mailer.
type Config struct {
	APIKey  string
	BaseURL string
	From    string
	// CopyTo is added as a second recipient of every message.
	CopyTo string
	// DashboardURL is linked from the confirmation email.
	DashboardURL string
	Timeout      time.Duration
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// Resend is a Mailer backed by the Resend API.
type Resend struct {
	endpoint     string
	from         string
	copyTo       string
	dashboardURL string
	hc           *http.Client
	logger       *slog.Logger
}

// New returns a Resend mailer, or a Noop mailer when no API key is configured.
func New(cfg Config) (core.Mailer, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return Noop{Logger: logger.With("component", "mailer")}, nil
	}
	m, err := NewResend(key, cfg)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// NewResend builds a Resend mailer with the given API key.
func NewResend(apiKey string, cfg Config) (*Resend, error) {
	if apiKey == "" {
		return nil, errors.New("resend api key is required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		from = DefaultFrom
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	transport := cfg.HTTPClient
	if transport == nil {
		transport = &http.Client{Timeout: timeout}
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, transport)
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiKey, TokenType: "Bearer"}))
	hc.Timeout = timeout

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Resend{
		endpoint:     base + "/emails",
		from:         from,
		copyTo:       strings.TrimSpace(cfg.CopyTo),
		dashboardURL: strings.TrimRight(strings.TrimSpace(cfg.DashboardURL), "/"),
		hc:           hc,
		logger:       logger.With("component", "mailer"),
	}, nil
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// SendPaymentConfirmation emails the payment confirmation.
func (m *Resend) SendPaymentConfirmation(ctx context.Context, msg model.PaymentConfirmation) error {
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return errors.New("recipient is required")
	}

	var body bytes.Buffer
	if err := confirmationTmpl.Execute(&body, confirmationView{
		OrganizationName: msg.OrganizationName,
		PlanName:         msg.PlanName,
		Amount:           formatAmount(msg.Amount),
		DashboardURL:     m.dashboardURL + "/dashboard",
	}); err != nil {
		return fmt.Errorf("render confirmation email: %w", err)
	}

	recipients := []string{to}
	if m.copyTo != "" && !strings.EqualFold(m.copyTo, to) {
		recipients = append(recipients, m.copyTo)
	}
	return m.send(ctx, sendRequest{
		From:    m.from,
		To:      recipients,
		Subject: "Confirmación de pago - " + msg.OrganizationName,
		HTML:    body.String(),
	})
}

func (m *Resend) send(ctx context.Context, payload sendRequest) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.hc.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("resend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	m.logger.InfoContext(ctx, "email sent", "subject", payload.Subject, "recipients", len(payload.To))
	return nil
}

func formatAmount(amount *float64) string {
	if amount == nil {
		return ""
	}
	return fmt.Sprintf("USD %.2f", *amount)
}

// Noop discards email; used when Resend is not configured.
type Noop struct {
	Logger *slog.Logger
}

// SendPaymentConfirmation logs and drops the message.
func (n Noop) SendPaymentConfirmation(ctx context.Context, msg model.PaymentConfirmation) error {
	if n.Logger != nil {
		n.Logger.DebugContext(ctx, "mailer disabled, dropping payment confirmation", "organization", msg.OrganizationName)
	}
	return nil
}
