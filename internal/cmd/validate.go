package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewValidateCommand creates and returns the validate subcommand
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <catalog-path>...",
		Short: "Check that catalog files load without running any snippet",
		Long: `Parse catalog files or directories and check for:
  - Malformed snippets (missing id, topic or source)
  - Duplicate snippet ids across every given path
  - Unsupported file formats and unreadable files

Exit code: 0 if the catalog is valid, 2 if errors found`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateCatalog(args, cmd.OutOrStdout())
		},
	}

	return cmd
}

// validateCatalog loads paths and prints a one-line summary on success.
func validateCatalog(paths []string, output io.Writer) error {
	store, err := loadCatalog(paths)
	if err != nil {
		return err
	}

	topics := store.Topics()
	fmt.Fprintf(output, "Catalog valid: %s in %s\n",
		countNoun(store.Len(), "snippet"), countNoun(len(topics), "topic"))
	return nil
}

func countNoun(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
