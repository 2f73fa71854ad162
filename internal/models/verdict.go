package models

import (
	"fmt"
	"time"
)

// Outcome classifies a verdict for reporting.
type Outcome string

const (
	OutcomePassed     Outcome = "passed"
	OutcomeFailed     Outcome = "failed"
	OutcomeIncomplete Outcome = "incomplete"
	OutcomeCancelled  Outcome = "cancelled"
)

// MismatchKind describes how an expected line and an actual line differ.
type MismatchKind string

const (
	// MismatchChanged means both lines exist but differ.
	MismatchChanged MismatchKind = "changed"
	// MismatchMissing means an expected line has no captured counterpart.
	MismatchMissing MismatchKind = "missing"
	// MismatchExtra means a captured line has no expected counterpart.
	MismatchExtra MismatchKind = "extra"
)

// Mismatch is one differing line between expected and actual output.
// Line is 1-based.
type Mismatch struct {
	Line     int          `json:"line"`
	Kind     MismatchKind `json:"kind"`
	Expected string       `json:"expected"`
	Actual   string       `json:"actual"`
}

// String renders the mismatch for human consumption.
func (m Mismatch) String() string {
	switch m.Kind {
	case MismatchMissing:
		return fmt.Sprintf("line %d: expected %q, got nothing", m.Line, m.Expected)
	case MismatchExtra:
		return fmt.Sprintf("line %d: unexpected %q", m.Line, m.Actual)
	default:
		return fmt.Sprintf("line %d: expected %q, got %q", m.Line, m.Expected, m.Actual)
	}
}

// Verdict is the pass/fail outcome of comparing one snippet's output.
// A Verdict is never mutated after the comparator creates it.
type Verdict struct {
	SnippetID string        `json:"snippet_id"`
	Topic     string        `json:"topic"`
	Index     int           `json:"index"`
	Passed    bool          `json:"passed"`
	Outcome   Outcome       `json:"outcome"`
	Diff      []Mismatch    `json:"diff,omitempty"`
	Detail    string        `json:"detail,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"-"`
}

// DurationMs returns the verdict's execution duration in milliseconds.
func (v Verdict) DurationMs() int64 {
	return v.Duration.Milliseconds()
}
