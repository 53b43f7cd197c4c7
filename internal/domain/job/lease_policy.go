package job

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrInvalidHardTimeout indicates the queue hard timeout is not positive.
	ErrInvalidHardTimeout = errors.New("queue hard timeout must be positive")
	// ErrLeaseBelowBudget indicates the lease would expire before the worker's
	// own deadline, letting the reaper race a live attempt.
	ErrLeaseBelowBudget = errors.New("queue hard timeout must exceed the worker call budget")
)

// LeaseSource identifies how a lease duration was resolved.
type LeaseSource string

const (
	LeaseSourceExplicit LeaseSource = "explicit"
	LeaseSourceDefault  LeaseSource = "default"
	LeaseSourceClamped  LeaseSource = "clamped"
)

// LeasePolicy resolves the lease placed on a reserved job. A job's lease is
// its queue hard timeout: once it passes the reaper fails the job, so the
// lease always stays above the worker's total call budget.
type LeasePolicy struct {
	hardTimeout time.Duration
	callBudget  time.Duration
}

// NewLeasePolicy builds a policy. callBudget may be zero when unknown.
func NewLeasePolicy(hardTimeout, callBudget time.Duration) (*LeasePolicy, error) {
	if hardTimeout <= 0 {
		return nil, ErrInvalidHardTimeout
	}
	if callBudget > 0 && hardTimeout <= callBudget {
		return nil, fmt.Errorf("%w: timeout %s, budget %s", ErrLeaseBelowBudget, hardTimeout, callBudget)
	}
	return &LeasePolicy{hardTimeout: hardTimeout, callBudget: callBudget}, nil
}

// HardTimeout returns the configured queue hard timeout.
func (p *LeasePolicy) HardTimeout() time.Duration {
	if p == nil {
		return 0
	}
	return p.hardTimeout
}

// LeaseDecision is the outcome of resolving a lease request.
type LeaseDecision struct {
	Seconds   int
	Source    LeaseSource
	Requested time.Duration
}

// Duration returns the decided lease as a duration.
func (d LeaseDecision) Duration() time.Duration {
	return time.Duration(d.Seconds) * time.Second
}

func (d LeaseDecision) UsedDefault() bool { return d.Source == LeaseSourceDefault }

func (d LeaseDecision) Clamped() bool { return d.Source == LeaseSourceClamped }

// Resolve turns a requested lease into whole seconds. Zero selects the hard
// timeout; a request at or below the call budget is raised to the hard
// timeout.
func (p *LeasePolicy) Resolve(request time.Duration) LeaseDecision {
	decision := LeaseDecision{Requested: request}
	if p == nil {
		decision.Source = LeaseSourceDefault
		return decision
	}

	switch {
	case request == 0:
		decision.Seconds = toSeconds(p.hardTimeout)
		decision.Source = LeaseSourceDefault
	case request < 0, p.callBudget > 0 && request <= p.callBudget:
		decision.Seconds = toSeconds(p.hardTimeout)
		decision.Source = LeaseSourceClamped
	default:
		decision.Seconds = toSeconds(request)
		decision.Source = LeaseSourceExplicit
		if request < time.Second {
			decision.Source = LeaseSourceClamped
		}
	}
	return decision
}

func toSeconds(d time.Duration) int {
	seconds := int64(d / time.Second)
	if seconds <= 0 {
		return 1
	}
	if seconds > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(seconds)
}
