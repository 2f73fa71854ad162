package catalog

import (
	"errors"
	"fmt"
)

// ErrCatalog is matched by every error that makes a catalog unusable.
// Callers treat it as fatal to the run.
var ErrCatalog = errors.New("catalog error")

// ErrNotFound is matched by NotFoundError.
var ErrNotFound = errors.New("snippet not found")

// DuplicateIDError is returned when two snippets share an id.
type DuplicateIDError struct {
	ID         string
	FirstFile  string // File that defined the id first (may be empty)
	SecondFile string // File that redefined it (may be empty)
}

func (e *DuplicateIDError) Error() string {
	if e.FirstFile != "" || e.SecondFile != "" {
		return fmt.Sprintf("duplicate snippet id %q (defined in %s and %s)", e.ID, orInline(e.FirstFile), orInline(e.SecondFile))
	}
	return fmt.Sprintf("duplicate snippet id %q", e.ID)
}

// Is reports catalog errors as ErrCatalog.
func (e *DuplicateIDError) Is(target error) bool {
	return target == ErrCatalog
}

// MalformedSnippetError is returned when a catalog entry cannot form a valid snippet.
type MalformedSnippetError struct {
	ID         string // Snippet id, may be empty when the id itself is missing
	Position   int    // 1-based position of the entry within its source
	SourceFile string
	Reason     string
}

func (e *MalformedSnippetError) Error() string {
	where := fmt.Sprintf("entry %d", e.Position)
	if e.ID != "" {
		where = fmt.Sprintf("snippet %q", e.ID)
	}
	if e.SourceFile != "" {
		where = fmt.Sprintf("%s in %s", where, e.SourceFile)
	}
	return fmt.Sprintf("malformed %s: %s", where, e.Reason)
}

// Is reports catalog errors as ErrCatalog.
func (e *MalformedSnippetError) Is(target error) bool {
	return target == ErrCatalog
}

// NotFoundError is returned by Store.Get for unknown ids.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("snippet %q not found", e.ID)
}

// Is reports NotFoundError as ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ParseError wraps a failure to decode a catalog source.
type ParseError struct {
	SourceFile string
	Err        error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse catalog %s: %v", orInline(e.SourceFile), e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is reports parse failures as ErrCatalog.
func (e *ParseError) Is(target error) bool {
	return target == ErrCatalog
}

func orInline(path string) string {
	if path == "" {
		return "<inline>"
	}
	return path
}
