package synthcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/unkn0wn-root/synthcache/engine"
)

var (
	// ErrInvalidRequest is returned by Normalize for input the engine must
	// never see (empty text).
	ErrInvalidRequest = errors.New("synthcache: invalid request")

	// ErrClosed is returned by Resolve after Close.
	ErrClosed = errors.New("synthcache: coordinator closed")
)

// Reason classifies an engine failure.
type Reason string

const (
	ReasonTimeout       Reason = "timeout"
	ReasonUnavailable   Reason = "unavailable"
	ReasonFailed        Reason = "failed"
	ReasonInvalidOutput Reason = "invalid_output"
)

// EngineError is a failed synthesis job. Every caller attached to the job
// receives the same *EngineError.
type EngineError struct {
	Fingerprint string
	Model       string
	Speaker     *string
	Reason      Reason
	Err         error
}

func (e *EngineError) Error() string {
	spk := "<none>"
	if e.Speaker != nil {
		spk = fmt.Sprintf("%q", *e.Speaker)
	}
	return fmt.Sprintf("synthesize %s (model=%s speaker=%s): %s: %v",
		e.Fingerprint, e.Model, spk, e.Reason, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// Public returns a message safe to show a client. Engine output (stderr,
// tracebacks, sidecar bodies) never leaks through it.
func (e *EngineError) Public() string {
	switch e.Reason {
	case ReasonTimeout:
		return "synthesis timed out"
	case ReasonUnavailable:
		return "synthesis engine unavailable"
	case ReasonInvalidOutput:
		return "synthesis engine returned invalid audio"
	}
	if errors.Is(e.Err, engine.ErrUnknownModel) {
		return fmt.Sprintf("unknown model %q", e.Model)
	}
	return "synthesis failed"
}

// CacheIOError is a store failure on the request path.
type CacheIOError struct {
	Fingerprint string
	Op          string // "exists", "read", "write"
	Err         error
}

func (e *CacheIOError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Fingerprint, e.Err)
}

func (e *CacheIOError) Unwrap() error { return e.Err }

func (e *CacheIOError) Public() string { return "cache unavailable" }

func classify(err error) Reason {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, engine.ErrUnavailable):
		return ReasonUnavailable
	case errors.Is(err, engine.ErrInvalidOutput):
		return ReasonInvalidOutput
	default:
		return ReasonFailed
	}
}
