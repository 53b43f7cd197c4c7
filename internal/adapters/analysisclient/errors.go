package analysisclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// Kind classifies a failed call.
type Kind string

const (
	KindTransport Kind = "transport"
	KindTimeout   Kind = "timeout"
	KindCanceled  Kind = "canceled"
	KindStatus    Kind = "status"
	KindDecode    Kind = "decode"
)

// CallError is a failed call to the analysis service.
type CallError struct {
	Kind       Kind
	StatusCode int
	Body       string
	Elapsed    time.Duration
	Err        error
}

func (e *CallError) Error() string {
	switch e.Kind {
	case KindStatus:
		if e.Body != "" {
			return fmt.Sprintf("analysis service returned %d: %s", e.StatusCode, e.Body)
		}
		return fmt.Sprintf("analysis service returned %d", e.StatusCode)
	case KindTimeout:
		return fmt.Sprintf("analysis service call timed out after %s", e.Elapsed.Round(time.Millisecond))
	default:
		if e.Err != nil {
			return fmt.Sprintf("analysis service %s error: %v", e.Kind, e.Err)
		}
		return fmt.Sprintf("analysis service %s error", e.Kind)
	}
}

func (e *CallError) Unwrap() error { return e.Err }

// ErrorClass labels the failure for metrics.
func (e *CallError) ErrorClass() string { return "analysis_" + string(e.Kind) }

// Timeout reports whether the call hit its deadline.
func (e *CallError) Timeout() bool { return e.Kind == KindTimeout }

// Retryable reports whether another attempt may succeed within the attempt
// budget. Each attempt has its own deadline, so a timeout is retryable;
// cancellation is not.
func (e *CallError) Retryable() bool {
	switch e.Kind {
	case KindTransport, KindTimeout:
		return true
	case KindStatus:
		return e.StatusCode >= http.StatusInternalServerError ||
			e.StatusCode == http.StatusTooManyRequests ||
			e.StatusCode == http.StatusRequestTimeout
	case KindCanceled, KindDecode:
		return false
	default:
		return false
	}
}

// IsRetryable reports whether err is a retryable *CallError.
func IsRetryable(err error) bool {
	var ce *CallError
	return errors.As(err, &ce) && ce.Retryable()
}

// contextWithClient hands hc to the oauth2 token and request transports.
func contextWithClient(hc *http.Client) context.Context {
	return context.WithValue(context.Background(), oauth2.HTTPClient, hc)
}
