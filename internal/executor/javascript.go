package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/harrison/snippetcheck/internal/models"
	"github.com/harrison/snippetcheck/internal/sandbox"
)

// interruptReason tells the module why the watchdog stopped a runtime.
type interruptReason string

const (
	reasonDeadline  interruptReason = "deadline"
	reasonCancelled interruptReason = "cancelled"
)

// JavaScriptModule runs snippets in a fresh sandbox.Context per invocation.
type JavaScriptModule struct {
	Epoch          time.Time // Virtual clock origin, sandbox default when zero
	Seed           int64     // Math.random seed
	MaxOutputLines int       // Console capture limit, sandbox default when zero
}

// NewJavaScriptModule creates a module with default sandbox settings.
func NewJavaScriptModule() *JavaScriptModule {
	return &JavaScriptModule{}
}

// Language implements Module.
func (m *JavaScriptModule) Language() string {
	return models.DefaultLanguage
}

// Execute runs the snippet's source and drains its deferred work. Errors raised
// by the snippet land in the result; the returned error is reserved for
// *TimeoutError, *CancelledError and failures to build the context.
func (m *JavaScriptModule) Execute(ctx context.Context, snippet models.Snippet, budget time.Duration) (models.ExecutionResult, error) {
	result := models.ExecutionResult{
		SnippetID: snippet.ID,
		Status:    models.StatusCompleted,
	}
	if ctx.Err() != nil {
		result.Status = models.StatusCancelled
		return result, NewCancelledError(snippet.ID, ctx)
	}

	start := time.Now()
	sb, err := sandbox.New(sandbox.Options{
		Budget:         budget,
		Epoch:          m.Epoch,
		Seed:           m.Seed,
		MaxOutputLines: m.MaxOutputLines,
	})
	if err != nil {
		return result, NewSnippetError(snippet.ID, "create evaluation context", err)
	}

	done := make(chan struct{})
	go watchdog(ctx, sb, budget, done)
	res := sb.Run(snippet.Source)
	close(done)

	result.Duration = time.Since(start)
	result.Output = res.Output
	result.RaisedError = res.Raised
	result.PendingTasks = res.Pending

	switch res.Stop {
	case sandbox.StopBudget:
		result.Status = models.StatusIncomplete
		te := NewTimeoutError(snippet.ID, budget)
		te.Context = fmt.Sprintf("%d deferred task(s) still pending", res.Pending)
		return result, te
	case sandbox.StopInterrupted:
		if res.Reason == reasonDeadline {
			result.Status = models.StatusIncomplete
			te := NewTimeoutError(snippet.ID, budget)
			te.Context = "still running"
			return result, te
		}
		result.Status = models.StatusCancelled
		return result, NewCancelledError(snippet.ID, ctx)
	}
	return result, nil
}

// watchdog interrupts sb when the wall-clock budget elapses or ctx is
// cancelled, whichever comes first, unless done closes before either.
func watchdog(ctx context.Context, sb *sandbox.Context, budget time.Duration, done <-chan struct{}) {
	var deadline <-chan time.Time
	if budget > 0 {
		timer := time.NewTimer(budget)
		defer timer.Stop()
		deadline = timer.C
	}
	select {
	case <-done:
	case <-deadline:
		sb.Interrupt(reasonDeadline)
	case <-ctx.Done():
		sb.Interrupt(reasonCancelled)
	}
}
