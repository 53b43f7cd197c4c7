// Package notify defines the failure notification payload and the HTTP
// delivery shared by its sinks.
package notify

import (
	"context"
	"time"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// JobFailurePayload describes one terminally failed analysis job.
type JobFailurePayload struct {
	JobID            string
	JobType          string
	AnalysisID       string
	OrganizationID   string
	OrganizationName string
	Error            string
	ErrorClass       string
	Severity         string
	OccurredAt       time.Time
	Metadata         map[string]string
}

// Sink describes a destination capable of consuming job failure notifications.
type Sink interface {
	SendJobFailure(ctx context.Context, payload JobFailurePayload) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, payload JobFailurePayload) error

// SendJobFailure implements the Sink interface.
func (f SinkFunc) SendJobFailure(ctx context.Context, payload JobFailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}

// Fallback returns value, or fallback when value is blank.
func Fallback(value, fallback string) string {
	for _, r := range value {
		if r != ' ' && r != '\t' && r != '\n' {
			return value
		}
	}
	return fallback
}
