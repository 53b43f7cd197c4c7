// Package slack posts job failure notifications to a Slack incoming webhook.
package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/target/esg-pipeline/internal/observability/notify"
)

// Config captures the subset of Slack webhook behaviour we need.
type Config struct {
	WebhookURL string
	Channel    string
	Username   string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	// AnalysisURLPrefix links the analysis id to an operator page when set.
	AnalysisURLPrefix string
}

// Client delivers job failure notifications to a Slack webhook.
type Client struct {
	poster         notify.Poster
	channel        string
	username       string
	analysisPrefix string
}

// NewClient builds a Slack webhook client.
func NewClient(cfg Config) (*Client, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("slack webhook url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		poster: notify.Poster{
			Name:     "slack webhook",
			Endpoint: webhookURL,
			Retries:  max(cfg.RetryLimit, 0),
			Client:   hc,
		},
		channel:        strings.TrimSpace(cfg.Channel),
		username:       notify.Fallback(strings.TrimSpace(cfg.Username), "esg-pipeline"),
		analysisPrefix: strings.TrimSpace(cfg.AnalysisURLPrefix),
	}, nil
}

// SendJobFailure posts a formatted message to Slack.
func (c *Client) SendJobFailure(ctx context.Context, payload notify.JobFailurePayload) error {
	body, err := json.Marshal(c.formatMessage(payload))
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}
	return c.poster.Post(ctx, body)
}

type message struct {
	Text     string `json:"text"`
	Username string `json:"username"`
	Channel  string `json:"channel,omitempty"`
}

func (c *Client) formatMessage(payload notify.JobFailurePayload) message {
	var b strings.Builder

	b.WriteString("*ESG analysis failed*")
	if payload.JobID != "" {
		fmt.Fprintf(&b, " `%s`", payload.JobID)
	}
	if payload.JobType != "" {
		fmt.Fprintf(&b, " (%s)", payload.JobType)
	}
	b.WriteByte('\n')

	field(&b, "Severity", notify.Fallback(payload.Severity, notify.SeverityCritical))
	field(&b, "Organization", organizationValue(payload.OrganizationID, payload.OrganizationName))
	field(&b, "Analysis", c.analysisValue(payload.AnalysisID))
	field(&b, "Error class", payload.ErrorClass)
	field(&b, "Error", escape(payload.Error))

	if len(payload.Metadata) > 0 {
		b.WriteString("• Metadata:\n")
		keys := make([]string, 0, len(payload.Metadata))
		for k := range payload.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "    • %s: %s\n", k, escape(payload.Metadata[k]))
		}
	}

	ts := payload.OccurredAt
	if ts.IsZero() {
		ts = time.Now()
	}
	b.WriteString("• Timestamp: ")
	b.WriteString(ts.UTC().Format(time.RFC3339))

	return message{Text: b.String(), Username: c.username, Channel: c.channel}
}

func field(b *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(b, "• %s: %s\n", label, value)
}

func organizationValue(id, name string) string {
	id, name = escape(strings.TrimSpace(id)), escape(strings.TrimSpace(name))
	switch {
	case name != "" && id != "":
		return fmt.Sprintf("%s (%s)", name, id)
	case name != "":
		return name
	default:
		return id
	}
}

func (c *Client) analysisValue(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if link := c.analysisLink(id); link != "" {
		return fmt.Sprintf("<%s|%s>", link, escape(id))
	}
	return escape(id)
}

func (c *Client) analysisLink(id string) string {
	if c.analysisPrefix == "" {
		return ""
	}
	u, err := url.Parse(c.analysisPrefix)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	link, err := url.JoinPath(u.String(), id)
	if err != nil {
		return ""
	}
	return link
}

var slackEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escape(value string) string {
	return slackEscaper.Replace(value)
}
