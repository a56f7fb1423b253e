package core

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for comparison using errors.Is()
// These are generic errors that can be wrapped with additional context
var (
	// Configuration errors - raised only at construction
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingConfiguration = errors.New("missing required configuration")

	// LLM transport and provider errors
	ErrTransport = errors.New("llm transport failure")
	ErrProvider  = errors.New("llm provider returned malformed response")

	// Routing errors
	ErrNoProjectsEnabled = errors.New("no projects enabled")
	ErrProjectNotFound   = errors.New("project not found")

	// Orchestration errors
	ErrAnalysisFailed = errors.New("orchestration analysis failed")

	// Cache errors
	ErrInvalidationDisabled = errors.New("advanced invalidation disabled")

	// Operation errors
	ErrTimeout         = errors.New("operation timeout")
	ErrContextCanceled = errors.New("context canceled")
)

// CoreError provides structured error information with context.
// It implements the error interface and supports error wrapping.
type CoreError struct {
	Op      string // Operation that failed (e.g., "router.Route")
	Kind    string // Error kind (e.g., "routing", "config", "provider")
	ID      string // Optional ID of the entity involved
	Message string // Human-readable message
	Err     error  // Underlying error for wrapping
}

// Error returns the string representation of the error
func (e *CoreError) Error() string {
	if e.Op != "" && e.Err != nil {
		if e.ID != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.ID, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

// Unwrap returns the underlying error for use with errors.Is/As
func (e *CoreError) Unwrap() error {
	return e.Err
}

// NewCoreError creates a new CoreError
func NewCoreError(op, kind string, err error) *CoreError {
	return &CoreError{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// IsConfigurationError checks if an error is configuration-related
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrMissingConfiguration)
}

// IsRetryable checks if an error is retryable.
// Retryable errors are typically transient network issues.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrTimeout)
}
