package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harrison/snippetcheck/internal/comparator"
	"github.com/harrison/snippetcheck/internal/models"
	"github.com/harrison/snippetcheck/internal/observability"
	"github.com/harrison/snippetcheck/internal/report"
)

// Logger receives run progress. LogSnippetStart may be called concurrently
// with the other methods.
type Logger interface {
	LogRunStart(runID string, total, parallel int)
	LogSnippetStart(snippet models.Snippet)
	LogVerdict(verdict models.Verdict, result models.ExecutionResult)
	LogSummary(report models.Report)
}

// Options configures an Orchestrator.
type Options struct {
	// Parallel bounds concurrently running snippets. Values below 2 run
	// snippets one at a time in catalog order.
	Parallel int
	// Catalog, when set, makes the reporter reject verdicts for unknown ids.
	Catalog report.Catalog
	// RunID overrides the generated run id.
	RunID string
	// HandleSignals cancels the run on SIGINT/SIGTERM.
	HandleSignals bool
}

// Orchestrator drives snippets through the executor, the comparator and the
// reporter.
type Orchestrator struct {
	executor Executor
	logger   Logger
	opts     Options
}

// NewOrchestrator creates an Orchestrator. The logger is optional.
func NewOrchestrator(exec Executor, logger Logger, opts Options) *Orchestrator {
	if exec == nil {
		panic("executor cannot be nil")
	}
	if opts.Parallel < 1 {
		opts.Parallel = 1
	}
	return &Orchestrator{executor: exec, logger: logger, opts: opts}
}

// Run checks every snippet and returns the finalized report. Cancelling ctx
// (or a signal when HandleSignals is set) stops in-flight snippets and records
// them, and every snippet not yet started, as cancelled; the report always
// holds one verdict per snippet. The returned error is non-nil when a verdict
// could not be recorded or the run was cancelled; the report is returned
// either way.
func (o *Orchestrator) Run(ctx context.Context, snippets []models.Snippet) (*models.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if o.opts.HandleSignals {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		go func() {
			select {
			case <-sigChan:
				fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, cancelling remaining snippets...")
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	var ropts []report.Option
	if o.opts.Catalog != nil {
		ropts = append(ropts, report.WithCatalog(o.opts.Catalog))
	}
	if o.opts.RunID != "" {
		ropts = append(ropts, report.WithRunID(o.opts.RunID))
	}
	reporter := report.NewReporter(ropts...)

	ctx, runSpan := observability.StartRunSpan(ctx, reporter.RunID(), len(snippets), o.opts.Parallel)
	defer runSpan.End()

	if o.logger != nil {
		o.logger.LogRunStart(reporter.RunID(), len(snippets), o.opts.Parallel)
	}

	var recordErrs []error
	handle := func(out snippetOutcome) {
		v := o.verdictFor(ctx, out)
		if err := reporter.Record(v); err != nil {
			recordErrs = append(recordErrs, err)
			return
		}
		if o.logger != nil {
			o.logger.LogVerdict(v, out.result)
		}
	}
	var onStart func(models.Snippet)
	if o.logger != nil {
		onStart = o.logger.LogSnippetStart
	}

	runPool(ctx, &tracedExecutor{o.executor}, snippets, o.opts.Parallel, onStart, handle)

	rep := reporter.Finalize()
	observability.RecordReport(runSpan, rep)
	if o.logger != nil {
		o.logger.LogSummary(rep)
	}

	if len(recordErrs) > 0 {
		err := errors.Join(recordErrs...)
		observability.RecordError(runSpan, err)
		return &rep, err
	}
	if rep.CancelledCount > 0 {
		return &rep, fmt.Errorf("run cancelled: %w", context.Canceled)
	}
	return &rep, nil
}

// verdictFor turns one pool outcome into a verdict.
func (o *Orchestrator) verdictFor(ctx context.Context, out snippetOutcome) models.Verdict {
	if !out.ran {
		return comparator.Compare(out.snippet, models.ExecutionResult{
			SnippetID: out.snippet.ID,
			Status:    models.StatusCancelled,
		})
	}
	if out.err != nil && !IsTimeoutError(out.err) && !IsCancelledError(out.err) {
		return comparator.Failure(out.snippet, out.err)
	}
	return comparator.Compare(out.snippet, out.result)
}

// tracedExecutor wraps each snippet run in a span and records its verdict.
type tracedExecutor struct {
	inner Executor
}

func (t *tracedExecutor) Run(ctx context.Context, snippet models.Snippet) (models.ExecutionResult, error) {
	ctx, span := observability.StartSnippetSpan(ctx, snippet)
	defer span.End()

	start := time.Now()
	result, err := t.inner.Run(ctx, snippet)
	if result.Duration == 0 {
		result.Duration = time.Since(start)
	}
	if err != nil && !IsTimeoutError(err) && !IsCancelledError(err) {
		observability.RecordError(span, err)
		return result, err
	}
	observability.RecordVerdict(span, comparator.Compare(snippet, result))
	return result, err
}
