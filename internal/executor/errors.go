package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SnippetError represents a failure to run a snippet at all, as opposed to an
// error raised by the snippet's own code (which is captured in the result).
type SnippetError struct {
	SnippetID string    // Snippet that could not be run
	Message   string    // Human-readable error message
	Err       error     // Underlying error (optional)
	Timestamp time.Time // When the error occurred
}

// NewSnippetError creates a new SnippetError with the current timestamp.
func NewSnippetError(id, msg string, err error) *SnippetError {
	return &SnippetError{
		SnippetID: id,
		Message:   msg,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface for SnippetError.
func (e *SnippetError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("snippet %s: %s", e.SnippetID, e.Message))
	if e.Err != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Err))
	}
	return sb.String()
}

// Unwrap returns the underlying error for error wrapping support.
func (e *SnippetError) Unwrap() error {
	return e.Err
}

// TimeoutError reports a snippet that did not finish within its time budget.
type TimeoutError struct {
	SnippetID string        // Snippet that timed out
	Budget    time.Duration // Budget that was exceeded
	Context   string        // What was still running (optional)
	Timestamp time.Time     // When the timeout occurred
}

// NewTimeoutError creates a new TimeoutError with the current timestamp.
func NewTimeoutError(id string, budget time.Duration) *TimeoutError {
	return &TimeoutError{
		SnippetID: id,
		Budget:    budget,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface for TimeoutError.
func (e *TimeoutError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("snippet %s: timeout after %v", e.SnippetID, e.Budget))
	if e.Context != "" {
		sb.WriteString(fmt.Sprintf(" (%s)", e.Context))
	}
	return sb.String()
}

// Unwrap returns context.DeadlineExceeded to support error wrapping.
func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// CancelledError reports a snippet stopped by run-wide cancellation.
type CancelledError struct {
	SnippetID string // Snippet that was stopped, or never started
	Cause     error  // Cancellation cause from the context, if known
}

// NewCancelledError creates a CancelledError carrying ctx's cancellation cause.
func NewCancelledError(id string, ctx context.Context) *CancelledError {
	e := &CancelledError{SnippetID: id}
	if ctx != nil {
		e.Cause = context.Cause(ctx)
	}
	return e
}

// Error implements the error interface for CancelledError.
func (e *CancelledError) Error() string {
	if e.Cause != nil && !errors.Is(e.Cause, context.Canceled) {
		return fmt.Sprintf("snippet %s: cancelled: %v", e.SnippetID, e.Cause)
	}
	return fmt.Sprintf("snippet %s: cancelled", e.SnippetID)
}

// Unwrap returns context.Canceled so callers can match on it.
func (e *CancelledError) Unwrap() error {
	return context.Canceled
}

// IsSnippetError checks if the error is or wraps a SnippetError.
func IsSnippetError(err error) bool {
	if err == nil {
		return false
	}
	var se *SnippetError
	return errors.As(err, &se)
}

// IsTimeoutError checks if the error is or wraps a TimeoutError or context.DeadlineExceeded.
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	var te *TimeoutError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsCancelledError checks if the error is or wraps a CancelledError or context.Canceled.
func IsCancelledError(err error) bool {
	if err == nil {
		return false
	}
	var ce *CancelledError
	if errors.As(err, &ce) {
		return true
	}
	return errors.Is(err, context.Canceled)
}
