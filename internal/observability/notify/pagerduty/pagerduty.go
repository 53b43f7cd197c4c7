// Package pagerduty raises job failure incidents through the Events API v2.
package pagerduty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/target/esg-pipeline/internal/observability/notify"
)

// APIEndpoint is the PagerDuty Events API v2 ingest URL.
const APIEndpoint = "https://events.pagerduty.com/v2/enqueue"

// Config captures runtime configuration for the PagerDuty sink.
type Config struct {
	RoutingKey string
	Source     string
	Component  string
	// Endpoint overrides APIEndpoint.
	Endpoint   string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
}

// Client publishes events via PagerDuty's Events API v2.
type Client struct {
	routingKey string
	source     string
	component  string
	poster     notify.Poster
}

// NewClient constructs a PagerDuty events client. A routing key is required.
func NewClient(cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.RoutingKey)
	if key == "" {
		return nil, errors.New("pagerduty routing key is required")
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
		routingKey: key,
		source:     notify.Fallback(strings.TrimSpace(cfg.Source), "esg-pipeline"),
		component:  notify.Fallback(strings.TrimSpace(cfg.Component), "esg-runner"),
		poster: notify.Poster{
			Name:     "pagerduty api",
			Endpoint: notify.Fallback(strings.TrimSpace(cfg.Endpoint), APIEndpoint),
			Retries:  max(cfg.RetryLimit, 0),
			Client:   hc,
		},
	}, nil
}

// SendJobFailure submits a trigger event to PagerDuty.
func (c *Client) SendJobFailure(ctx context.Context, payload notify.JobFailurePayload) error {
	body, err := json.Marshal(c.buildEvent(payload))
	if err != nil {
		return fmt.Errorf("encode pagerduty payload: %w", err)
	}
	return c.poster.Post(ctx, body)
}

type event struct {
	RoutingKey  string       `json:"routing_key"`
	EventAction string       `json:"event_action"`
	DedupKey    string       `json:"dedup_key"`
	Payload     eventPayload `json:"payload"`
}

type eventPayload struct {
	Summary       string            `json:"summary"`
	Severity      string            `json:"severity"`
	Source        string            `json:"source"`
	Component     string            `json:"component"`
	Timestamp     string            `json:"timestamp"`
	CustomDetails map[string]string `json:"custom_details"`
}

func (c *Client) buildEvent(payload notify.JobFailurePayload) event {
	occurredAt := payload.OccurredAt.UTC()
	if payload.OccurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	details := map[string]string{
		"job_id":          payload.JobID,
		"job_type":        payload.JobType,
		"analysis_id":     payload.AnalysisID,
		"organization_id": payload.OrganizationID,
		"error":           payload.Error,
		"error_class":     payload.ErrorClass,
	}
	for k, v := range payload.Metadata {
		if _, exists := details[k]; !exists {
			details[k] = v
		}
	}

	// One incident per analysis record; repeated failures of it are grouped.
	dedup := notify.Fallback(payload.AnalysisID, payload.JobID)

	return event{
		RoutingKey:  c.routingKey,
		EventAction: "trigger",
		DedupKey:    "esg-analysis:" + dedup,
		Payload: eventPayload{
			Summary: fmt.Sprintf("ESG analysis %s for %s failed",
				notify.Fallback(payload.AnalysisID, "unknown"),
				notify.Fallback(payload.OrganizationName, notify.Fallback(payload.OrganizationID, "unknown"))),
			Severity:      notify.Fallback(strings.ToLower(payload.Severity), notify.SeverityCritical),
			Source:        c.source,
			Component:     c.component,
			Timestamp:     occurredAt.Format(time.RFC3339),
			CustomDetails: details,
		},
	}
}
