package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/vampirenirmal/alphaaudio/internal/agent"
)

// =============================================================================
// Predefined Error Values
// =============================================================================

var (
	// ErrNoEndpoint is returned when no candidate model answered the canary probe.
	ErrNoEndpoint   = agent.ErrNoEndpoint
	ErrUnknownStage = errors.New("unknown stage")
	ErrInvalidInput = errors.New("invalid input")
	ErrEmptyOutput  = errors.New("generation returned empty text")
)

// =============================================================================
// Core Error Types
// =============================================================================

// StageError reports a failed generation call for one stage. Stages after
// the failed one in the same run are not attempted.
type StageError struct {
	Stage     Stage
	Operation string
	Cause     error
	Timestamp time.Time
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Stage, e.Operation, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// NewStageError creates a new StageError with timestamp
func NewStageError(stage Stage, operation string, cause error) *StageError {
	return &StageError{
		Stage:     stage,
		Operation: operation,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

// ValidationError represents rejected user input.
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s (value: %v)", e.Field, e.Message, e.Value)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// =============================================================================
// Error Classification Functions
// =============================================================================

// IsEndpointUnavailable reports a failed model selection. The caller shows a
// blocking notice and does not start the pipeline.
func IsEndpointUnavailable(err error) bool {
	return errors.Is(err, ErrNoEndpoint)
}

// IsStageFailure reports a generation failure after an endpoint was secured.
func IsStageFailure(err error) bool {
	var stageErr *StageError
	return errors.As(err, &stageErr)
}

// FailedStage returns the stage that failed, if any.
func FailedStage(err error) (Stage, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage, true
	}
	return "", false
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}
