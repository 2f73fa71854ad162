package models

import (
	"fmt"
	"time"
)

// ExecutionStatus describes how far a snippet run got.
type ExecutionStatus string

const (
	// StatusCompleted means the source ran and every deferred task drained.
	StatusCompleted ExecutionStatus = "completed"
	// StatusIncomplete means the time budget elapsed before the run finished.
	StatusIncomplete ExecutionStatus = "incomplete"
	// StatusCancelled means the run-wide cancellation signal stopped the run.
	StatusCancelled ExecutionStatus = "cancelled"
)

// RaisedError describes an uncaught error raised by snippet code.
type RaisedError struct {
	Kind    string // Error name, e.g. "TypeError", "SyntaxError"
	Message string // Error message without the kind prefix
}

// String renders the error as "Kind: Message".
func (e *RaisedError) String() string {
	if e == nil {
		return ""
	}
	if e.Kind == "" {
		return e.Message
	}
	if e.Message == "" {
		return e.Kind
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ExecutionResult captures the observable outcome of running one snippet.
// It is created fresh per run and handed to the comparator afterwards.
type ExecutionResult struct {
	SnippetID    string          // Snippet that produced this result
	Output       []string        // Captured output lines, in call order
	RaisedError  *RaisedError    // Uncaught error, nil when none was raised
	Duration     time.Duration   // Wall-clock time spent running
	Status       ExecutionStatus // completed, incomplete or cancelled
	PendingTasks int             // Deferred tasks still queued when the run stopped
}

// DurationMs returns the run duration in whole milliseconds.
func (r ExecutionResult) DurationMs() int64 {
	return r.Duration.Milliseconds()
}

// Completed reports whether the run finished within its budget.
func (r ExecutionResult) Completed() bool {
	return r.Status == "" || r.Status == StatusCompleted
}
