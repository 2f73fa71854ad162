package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/snippetcheck/internal/config"
	"github.com/harrison/snippetcheck/internal/executor"
	"github.com/harrison/snippetcheck/internal/history"
	"github.com/harrison/snippetcheck/internal/logger"
	"github.com/harrison/snippetcheck/internal/models"
	"github.com/harrison/snippetcheck/internal/observability"
	"github.com/harrison/snippetcheck/internal/report"
)

// runOptions holds the run command's flag values.
type runOptions struct {
	topic      string
	parallel   int
	timeoutMS  int
	runTimeout time.Duration
	configPath string
	jsonPath   string
	verbose    bool
	logDir     string
	logLevel   string
	noHistory  bool
	color      string
	seed       int64
}

// NewRunCommand creates and returns the run subcommand
func NewRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <catalog-path>...",
		Short: "Run catalog snippets and check their output",
		Long: `Load one or more catalog files or directories, run every snippet in an
isolated evaluation context and compare its console output with the
expected output.

Snippets run one at a time in catalog order unless --parallel is given.
Per-snippet timeouts in the catalog override --timeout-ms.

Configuration is read from .snippetcheck/config.yaml in the project
directory (or --config); command line flags take precedence.

Exit code: 0 if every snippet passed, 1 if any failed, 2 on catalog or
configuration errors`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalog(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.topic, "topic", "", "Only run snippets of this topic")
	cmd.Flags().IntVarP(&opts.parallel, "parallel", "p", 1, "Maximum number of snippets run concurrently")
	cmd.Flags().IntVar(&opts.timeoutMS, "timeout-ms", 0, "Default per-snippet time budget in milliseconds")
	cmd.Flags().DurationVar(&opts.runTimeout, "run-timeout", 0, "Cancel the whole run after this long (e.g. 2m)")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to config file (default .snippetcheck/config.yaml)")
	cmd.Flags().StringVar(&opts.jsonPath, "json", "", "Also write the report as JSON to this path")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "List passing snippets and full diffs")
	cmd.Flags().StringVar(&opts.logDir, "log-dir", "", "Directory for run logs (empty string disables file logs)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Console log level: trace, debug, info, warn, error")
	cmd.Flags().BoolVar(&opts.noHistory, "no-history", false, "Do not record this run in the history database")
	cmd.Flags().StringVar(&opts.color, "color", "", "Color output: auto, always or never")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "Seed for Math.random in every snippet")

	return cmd
}

// overrides collects the flags explicitly set on the command line.
func (o *runOptions) overrides(cmd *cobra.Command) config.FlagOverrides {
	var f config.FlagOverrides
	flags := cmd.Flags()
	if flags.Changed("parallel") {
		f.Parallel = &o.parallel
	}
	if flags.Changed("timeout-ms") {
		d := time.Duration(o.timeoutMS) * time.Millisecond
		f.Timeout = &d
	}
	if flags.Changed("run-timeout") {
		f.RunTimeout = &o.runTimeout
	}
	if flags.Changed("log-level") {
		f.LogLevel = &o.logLevel
	} else if o.verbose {
		level := "debug"
		f.LogLevel = &level
	}
	if flags.Changed("log-dir") {
		f.LogDir = &o.logDir
	}
	if flags.Changed("color") {
		f.Color = &o.color
	}
	if flags.Changed("no-history") {
		f.NoHistory = &o.noHistory
	}
	return f
}

func runCatalog(cmd *cobra.Command, paths []string, opts *runOptions) error {
	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	cfg, projectDir, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	cfg.MergeWithFlags(opts.overrides(cmd))
	if cmd.Flags().Changed("seed") {
		cfg.Seed = opts.seed
	}
	if err := cfg.Validate(); err != nil {
		return usageError(fmt.Errorf("invalid configuration: %w", err))
	}
	cfg.Resolve(projectDir)

	store, err := loadCatalog(paths)
	if err != nil {
		return err
	}
	snippets := store.Filter(opts.topic)
	if opts.topic != "" && len(snippets) == 0 {
		return usageError(fmt.Errorf("no snippets with topic %q (topics: %s)", opts.topic, strings.Join(store.Topics(), ", ")))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: Version,
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return usageError(fmt.Errorf("failed to initialize tracing: %w", err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	colorOut := resolveColor(cfg.Color, stdout)
	console := logger.NewConsoleLogger(stderr, cfg.LogLevel)
	console.SetColor(resolveColor(cfg.Color, stderr))
	loggers := logger.Multi{console}
	if cfg.LogDir != "" {
		fileLogger, err := logger.NewFileLoggerWithDirAndLevel(cfg.LogDir, cfg.LogLevel)
		if err != nil {
			console.LogWarn(fmt.Sprintf("File logging disabled: %v", err))
		} else {
			defer fileLogger.Close()
			loggers = append(loggers, fileLogger)
		}
	}

	registry, err := executor.NewRegistry(&executor.JavaScriptModule{Seed: cfg.Seed})
	if err != nil {
		return err
	}
	exec := executor.NewSnippetExecutor(registry, cfg.Timeout)
	orch := executor.NewOrchestrator(exec, loggers, executor.Options{
		Parallel:      cfg.Parallel,
		Catalog:       store,
		HandleSignals: true,
	})

	runCtx := ctx
	if cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.RunTimeout)
		defer cancel()
	}

	startedAt := time.Now()
	rep, runErr := orch.Run(runCtx, snippets)
	if rep == nil {
		return runErr
	}

	if err := report.WriteText(stdout, *rep, report.TextOptions{Color: colorOut, Verbose: opts.verbose}); err != nil {
		return err
	}
	if opts.jsonPath != "" {
		if err := report.WriteJSONFile(opts.jsonPath, *rep); err != nil {
			return usageError(fmt.Errorf("failed to write JSON report: %w", err))
		}
	}

	if cfg.History.Enabled {
		recordHistory(cfg.History, *rep, startedAt, paths, console)
	}

	if runErr != nil && rep.CancelledCount == 0 {
		return &ExitError{Code: ExitFailed, Err: runErr}
	}
	if !rep.AllPassed() {
		return &ExitError{Code: ExitFailed, Err: errSnippetsFailed}
	}
	return nil
}

// recordHistory stores rep and prunes old runs. Failures are logged, never fatal.
func recordHistory(cfg config.HistoryConfig, rep models.Report, startedAt time.Time, paths []string, log warnLogger) {
	store, err := history.NewStore(cfg.DBPath)
	if err != nil {
		log.LogWarn(fmt.Sprintf("Run history disabled: %v", err))
		return
	}
	defer store.Close()

	// The run context may already be cancelled; history writes still proceed.
	ctx := context.Background()
	if _, err := store.RecordRun(ctx, rep, startedAt, strings.Join(paths, ",")); err != nil {
		log.LogWarn(fmt.Sprintf("Failed to record run history: %v", err))
		return
	}
	if cfg.KeepRunsDays > 0 {
		if _, err := store.CleanupOldRuns(ctx, cfg.KeepRunsDays); err != nil {
			log.LogWarn(fmt.Sprintf("Failed to prune run history: %v", err))
		}
	}
}

type warnLogger interface {
	LogWarn(message string)
}
