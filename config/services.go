package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP server (webhook, job control, status stream).
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeEsgRunner runs the ESG analysis job workers.
	ServiceModeEsgRunner ServiceMode = "esg-runner"
	// ServiceModeReaper runs the job reaper for cleanup and hard timeouts.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeEsgRunner,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	for _, part := range strings.Split(servicesStr, ",") {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeEsgRunner, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, esg-runner, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// minQueueTimeoutMargin is the slack the worker keeps between its own call
// deadline and the queue hard timeout so the failure path can still run.
const minQueueTimeoutMargin = 5 * time.Minute

// EsgRunnerConfig contains ESG analysis job runner configuration.
type EsgRunnerConfig struct {
	// Concurrency is the number of worker goroutines.
	Concurrency int `env:"ESG_RUNNER_CONCURRENCY" envDefault:"2"`

	// QueueTimeout is the queue-level hard timeout of an analysis job. It is
	// used as the job lease and must exceed the analysis call budget.
	QueueTimeout time.Duration `env:"ESG_RUNNER_QUEUE_TIMEOUT" envDefault:"40m"`

	// PersistTimeout bounds result persistence after the external call returned.
	PersistTimeout time.Duration `env:"ESG_RUNNER_PERSIST_TIMEOUT" envDefault:"30s"`

	// Priority assigned to newly enqueued analysis jobs.
	Priority int `env:"ESG_RUNNER_PRIORITY" envDefault:"0"`

	// PollInterval wakes idle workers when a queue notification was missed.
	PollInterval time.Duration `env:"ESG_RUNNER_POLL_INTERVAL" envDefault:"30s"`
}

// Sanitize applies guardrails to runner configuration values. callBudget is
// the worst-case duration of the analysis call including retries.
func (e *EsgRunnerConfig) Sanitize(callBudget time.Duration) {
	if e.Concurrency < 1 {
		e.Concurrency = 1
	}
	if e.PersistTimeout < time.Second {
		e.PersistTimeout = time.Second
	}
	if floor := callBudget + minQueueTimeoutMargin; e.QueueTimeout < floor {
		e.QueueTimeout = floor
	}
	if e.Priority < 0 {
		e.Priority = 0
	}
	if e.Priority > 100 {
		e.Priority = 100
	}
	if e.PollInterval < 0 {
		e.PollInterval = 0
	}
}

// ReaperConfig contains job reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"1m"`

	// PendingMaxAge is the maximum age for pending jobs before they are marked as failed.
	PendingMaxAge time.Duration `env:"REAPER_PENDING_MAX_AGE" envDefault:"1h"`

	// CompletedMaxAge is the maximum age for completed jobs before deletion.
	// Analysis jobs are removed on success; this covers jobs enqueued without that option.
	CompletedMaxAge time.Duration `env:"REAPER_COMPLETED_MAX_AGE" envDefault:"168h"` // 7 days

	// FailedMaxAge is the maximum age for failed jobs before deletion.
	// Failed jobs are kept for operator inspection.
	FailedMaxAge time.Duration `env:"REAPER_FAILED_MAX_AGE" envDefault:"720h"` // 30 days

	// StaleProcessingAge is how long an analysis may stay PROCESSING without a
	// pending or running job before it is forced to FAILED. It never drops to
	// the point where a queued job could still be waiting or running.
	StaleProcessingAge time.Duration `env:"REAPER_STALE_PROCESSING_AGE" envDefault:"2h"`

	// BatchSize is the maximum number of rows to process per operation.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values. queueTimeout is
// the sanitized hard timeout of an analysis job.
func (r *ReaperConfig) Sanitize(queueTimeout time.Duration) {
	// Enforce minimum intervals to prevent excessive database load
	if r.Interval < 10*time.Second {
		r.Interval = 10 * time.Second
	}
	if r.PendingMaxAge < 5*time.Minute {
		r.PendingMaxAge = 5 * time.Minute
	}
	if r.CompletedMaxAge < 1*time.Hour {
		r.CompletedMaxAge = 1 * time.Hour
	}
	if r.FailedMaxAge < 1*time.Hour {
		r.FailedMaxAge = 1 * time.Hour
	}
	if r.StaleProcessingAge < 5*time.Minute {
		r.StaleProcessingAge = 5 * time.Minute
	}
	// A job may wait PendingMaxAge and then hold its lease for queueTimeout;
	// one more tick lets the job sweep expire it first.
	if floor := queueTimeout + r.PendingMaxAge + r.Interval; r.StaleProcessingAge < floor {
		r.StaleProcessingAge = floor
	}

	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
