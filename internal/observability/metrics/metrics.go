// Package metrics emits the pipeline's StatsD metrics with consistent names
// and tags.
package metrics

import (
	"time"

	obserrors "github.com/target/esg-pipeline/internal/observability/errors"
	"github.com/target/esg-pipeline/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// JobMetric captures details about a job lifecycle event for metric emission.
type JobMetric struct {
	JobType    string
	Transition string
	Result     string
	Duration   time.Duration
	Err        error
}

// EmitJobLifecycle emits job.transition and, when timed, job.duration.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}
	tags := withErrorClass(map[string]string{
		"job_type":   in.JobType,
		"transition": in.Transition,
		"result":     in.Result,
	}, in.Result, in.Err)

	sink.Count("job.transition", 1, tags)
	if in.Duration > 0 {
		sink.Timing("job.duration", in.Duration, CloneTags(tags))
	}
}

// EmitWebhook counts one webhook delivery by outcome.
func EmitWebhook(sink statsd.Sink, outcome string, err error) {
	if sink == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	sink.Count("webhook.delivery", 1, withErrorClass(map[string]string{
		"outcome": outcome,
		"result":  result,
	}, result, err))
}

// ExternalCallMetric describes one attempt against the analysis service.
type ExternalCallMetric struct {
	Attempt  int
	Duration time.Duration
	Err      error
}

// EmitExternalCall times one analysis service attempt.
func EmitExternalCall(sink statsd.Sink, in ExternalCallMetric) {
	if sink == nil {
		return
	}
	result := ResultSuccess
	if in.Err != nil {
		result = ResultError
	}
	tags := withErrorClass(map[string]string{"result": result}, result, in.Err)
	sink.Count("analysis.call", 1, tags)
	if in.Duration > 0 {
		sink.Timing("analysis.call_duration", in.Duration, CloneTags(tags))
	}
}

// EmitAnalysisOutcome counts terminal analysis statuses.
func EmitAnalysisOutcome(sink statsd.Sink, status string) {
	if sink == nil {
		return
	}
	sink.Count("analysis.outcome", 1, map[string]string{"status": status})
}

func withErrorClass(tags map[string]string, result string, err error) map[string]string {
	if err != nil && result == ResultError {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}
	return tags
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
