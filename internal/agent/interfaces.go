package agent

import (
	"context"
	"errors"
)

// AIClient sends one opaque prompt to a generation endpoint and returns the
// generated text.
type AIClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ErrNoEndpoint is returned when no candidate model answers the canary probe.
var ErrNoEndpoint = errors.New("no endpoint available")

// PermanentError marks a failure that will not resolve with retries.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var permanent *PermanentError
	return !errors.As(err, &permanent)
}
