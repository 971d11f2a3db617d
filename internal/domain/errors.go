package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMissingInput    = errors.New("missing input image")
	ErrQuotaExhausted  = errors.New("quota exhausted")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrJobInFlight     = errors.New("another job is already in flight")
	ErrJobNotFound     = errors.New("job not found")
	ErrResultNotReady  = errors.New("result not ready")
)

// TransportError wraps a network-level failure reaching the inference backend
// (DNS, TLS, connection reset, deadline). Retrying is a reasonable remedy.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("inference backend unreachable: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// InferenceError means the backend was reachable but produced no usable
// output. Retrying with the same inputs is unlikely to help.
type InferenceError struct {
	Reason string
}

func (e *InferenceError) Error() string {
	return "inference failed: " + e.Reason
}

// DownstreamError means generation succeeded but the resolved output URL
// could not be downloaded. Status is the HTTP status of the refusal, or zero
// when the fetch never got a response; either way the remedy is re-fetching,
// not regenerating, and a placeholder image must never be substituted.
type DownstreamError struct {
	Status int
	URL    string
	Err    error
}

func (e *DownstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("result fetch failed: %s unreachable: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("result fetch failed: http %d from %s", e.Status, e.URL)
}

func (e *DownstreamError) Unwrap() error { return e.Err }

// FailureKind maps an orchestration error onto the stable taxonomy used for
// usage events, metrics labels and the HTTP error surface.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingInput):
		return "missing_input"
	case errors.Is(err, ErrQuotaExhausted):
		return "quota_exhausted"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrJobInFlight):
		return "job_in_flight"
	}
	var transport *TransportError
	if errors.As(err, &transport) {
		return "transport"
	}
	var inference *InferenceError
	if errors.As(err, &inference) {
		return "inference_failure"
	}
	var downstream *DownstreamError
	if errors.As(err, &downstream) {
		return "downstream_fetch"
	}
	return "internal"
}
