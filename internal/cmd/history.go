package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/snippetcheck/internal/history"
	"github.com/harrison/snippetcheck/internal/models"
)

type historyOptions struct {
	limit      int
	snippetID  string
	dbPath     string
	configPath string
	stats      bool
}

// NewHistoryCommand creates the 'snippetcheck history' command
func NewHistoryCommand() *cobra.Command {
	opts := &historyOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs or one snippet's outcome history",
		Long: `Display run history from the history database:
  - Without flags: the most recent runs with their pass counts
  - --snippet ID: every recorded outcome of one snippet
  - --stats: per-snippet pass rates, least reliable first`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistory(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of rows to show (0 = all)")
	cmd.Flags().StringVar(&opts.snippetID, "snippet", "", "Show the outcome history of this snippet")
	cmd.Flags().BoolVar(&opts.stats, "stats", false, "Show per-snippet pass rates")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "Path to the history database (default from config)")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to config file (default .snippetcheck/config.yaml)")

	return cmd
}

func showHistory(ctx context.Context, w io.Writer, opts *historyOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.snippetID != "" && opts.stats {
		return usageError(fmt.Errorf("--snippet and --stats cannot be combined"))
	}

	dbPath := opts.dbPath
	if dbPath == "" {
		cfg, projectDir, err := loadConfig(opts.configPath)
		if err != nil {
			return err
		}
		cfg.Resolve(projectDir)
		dbPath = cfg.History.DBPath
	}

	if dbPath != ":memory:" {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			fmt.Fprintln(w, "No run history found")
			fmt.Fprintf(w, "Database path: %s\n", dbPath)
			return nil
		}
	}

	store, err := history.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()

	switch {
	case opts.snippetID != "":
		return printSnippetHistory(ctx, w, store, opts.snippetID, opts.limit)
	case opts.stats:
		return printSnippetStats(ctx, w, store, opts.limit)
	default:
		return printRuns(ctx, w, store, opts.limit)
	}
}

func printRuns(ctx context.Context, w io.Writer, store *history.Store, limit int) error {
	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No run history found")
		return nil
	}

	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Fprintf(w, "=== Recent Runs ===\n\n")
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %s  ", r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.RunID)
		rateColor(r.Passed, r.Total).Fprintf(w, "%d/%d passed", r.Passed, r.Total)
		if r.Incomplete > 0 {
			fmt.Fprintf(w, ", %d incomplete", r.Incomplete)
		}
		if r.Cancelled > 0 {
			fmt.Fprintf(w, ", %d cancelled", r.Cancelled)
		}
		fmt.Fprintf(w, "  (%s)", r.Duration)
		if r.Catalog != "" {
			fmt.Fprintf(w, "  %s", r.Catalog)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func printSnippetHistory(ctx context.Context, w io.Writer, store *history.Store, snippetID string, limit int) error {
	records, err := store.SnippetHistory(ctx, snippetID, limit)
	if err != nil {
		return fmt.Errorf("snippet history: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintf(w, "No recorded runs for snippet %q\n", snippetID)
		return nil
	}

	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Fprintf(w, "=== History for %s (%s) ===\n\n", snippetID, records[0].Topic)
	for _, rec := range records {
		fmt.Fprintf(w, "%s  %s  ", rec.StartedAt.Local().Format("2006-01-02 15:04:05"), rec.RunID)
		outcomeColor(rec.Outcome).Fprintf(w, "%s", rec.Outcome)
		fmt.Fprintf(w, "  (%s)\n", rec.Duration)
		if rec.Error != "" {
			fmt.Fprintf(w, "    error: %s\n", rec.Error)
		}
	}
	return nil
}

func printSnippetStats(ctx context.Context, w io.Writer, store *history.Store, limit int) error {
	stats, err := store.GetSnippetStats(ctx, limit)
	if err != nil {
		return fmt.Errorf("snippet stats: %w", err)
	}
	if len(stats) == 0 {
		fmt.Fprintln(w, "No run history found")
		return nil
	}

	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Fprintf(w, "=== Snippet Pass Rates ===\n\n")
	for _, st := range stats {
		fmt.Fprintf(w, "  %-30s ", st.SnippetID)
		rateColor(st.Passed, st.Runs).Fprintf(w, "%5.1f%%", st.PassRate()*100)
		fmt.Fprintf(w, "  %d/%d runs  last: %s\n", st.Passed, st.Runs, st.LastOutcome)
	}
	return nil
}

// rateColor picks green at 70% and above, yellow from 40%, red below.
func rateColor(passed, total int) *color.Color {
	rate := 0.0
	if total > 0 {
		rate = float64(passed) / float64(total) * 100
	}
	switch {
	case rate >= 70:
		return color.New(color.FgGreen)
	case rate >= 40:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

func outcomeColor(o models.Outcome) *color.Color {
	switch o {
	case models.OutcomePassed:
		return color.New(color.FgGreen)
	case models.OutcomeIncomplete, models.OutcomeCancelled:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}
