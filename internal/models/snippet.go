package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultLanguage is the language assumed when a snippet does not declare one.
const DefaultLanguage = "javascript"

// MatchMode controls how expected output lines are compared with captured lines.
type MatchMode string

const (
	// MatchExact requires every captured line to equal its expected line.
	MatchExact MatchMode = "exact"
	// MatchPattern treats '*' in expected lines as a wildcard for any run of characters.
	MatchPattern MatchMode = "pattern"
)

// ParseMatchMode converts a catalog value into a MatchMode.
// An empty value maps to MatchExact.
func ParseMatchMode(s string) (MatchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(MatchExact), "strict":
		return MatchExact, nil
	case string(MatchPattern), "glob":
		return MatchPattern, nil
	default:
		return "", fmt.Errorf("unknown match mode %q (expected exact or pattern)", s)
	}
}

// Snippet is a single named example with its source and expected output.
// Snippets are immutable once loaded into a catalog.
type Snippet struct {
	ID             string        // Unique identifier within the catalog
	Topic          string        // Topic the snippet demonstrates (e.g. "closures")
	Language       string        // Evaluation language, DefaultLanguage when empty
	Source         string        // Source text executed by the executor
	ExpectedOutput []string      // Expected console lines, in order
	AllowError     bool          // Snippet is expected to raise an uncaught error
	Match          MatchMode     // Comparison mode for expected output
	Description    string        // Free-form explanation from the catalog
	Timeout        time.Duration // Per-snippet time budget, zero uses the run default
	SourceFile     string        // Catalog file the snippet was loaded from
	Index          int           // Position in catalog order
}

// Validate checks that the snippet carries the fields required to run it.
func (s *Snippet) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return errors.New("snippet id is required")
	}
	if strings.TrimSpace(s.Source) == "" {
		return errors.New("snippet source is required")
	}
	if s.Timeout < 0 {
		return fmt.Errorf("snippet timeout must be >= 0, got %v", s.Timeout)
	}
	return nil
}

// EffectiveLanguage returns the snippet language, falling back to DefaultLanguage.
func (s *Snippet) EffectiveLanguage() string {
	if s.Language == "" {
		return DefaultLanguage
	}
	return strings.ToLower(s.Language)
}

// EffectiveMatch returns the snippet match mode, falling back to MatchExact.
func (s *Snippet) EffectiveMatch() MatchMode {
	if s.Match == "" {
		return MatchExact
	}
	return s.Match
}

// TimeoutOr returns the snippet's own timeout when set, otherwise fallback.
func (s *Snippet) TimeoutOr(fallback time.Duration) time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return fallback
}
