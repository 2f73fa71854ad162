package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for snippetcheck
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snippetcheck",
		Short: "Run JavaScript tutorial snippets and check their console output",
		Long: `snippetcheck loads catalogs of JavaScript snippets (Markdown or YAML),
runs each one in its own isolated evaluation context and compares the
captured console output with the output the catalog expects.

Timers, promises and intervals run against a virtual clock, so output
that depends on the event loop is reproducible.

Exit codes: 0 all snippets passed, 1 a snippet failed, 2 catalog or
configuration error.`,
		Version: Version,
		// Errors are printed once by Execute with their exit code
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewListCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}
