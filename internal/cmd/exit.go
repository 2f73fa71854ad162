package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/harrison/snippetcheck/internal/catalog"
)

// Process exit codes.
const (
	ExitOK     = 0 // every snippet passed
	ExitFailed = 1 // at least one snippet failed
	ExitUsage  = 2 // catalog, configuration or usage error
)

// ExitError carries the exit code a command failure maps to.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// usageError wraps err as a code 2 failure.
func usageError(err error) error {
	return &ExitError{Code: ExitUsage, Err: err}
}

// ExitCode returns the process exit code for err. Catalog errors and
// unclassified command errors (bad flags, missing args) map to ExitUsage.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitUsage
}

// Execute runs the root command with args and returns the process exit code.
// Errors other than a plain failing run are printed to stderr.
func Execute(args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	code := ExitCode(err)
	if err != nil && !errors.Is(err, errSnippetsFailed) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return code
}

// errSnippetsFailed marks a run whose report was already printed.
var errSnippetsFailed = errors.New("one or more snippets failed")

// isCatalogError reports whether err makes the catalog unusable.
func isCatalogError(err error) bool {
	return errors.Is(err, catalog.ErrCatalog)
}
