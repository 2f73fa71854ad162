package executor

import (
	"context"
	"time"

	"github.com/harrison/snippetcheck/internal/models"
)

// DefaultTimeout is the per-snippet time budget when neither the snippet nor
// the run configures one.
const DefaultTimeout = 5 * time.Second

// Executor runs one snippet in an isolated evaluation context.
type Executor interface {
	Run(ctx context.Context, snippet models.Snippet) (models.ExecutionResult, error)
}

// SnippetExecutor resolves each snippet's time budget and language module.
type SnippetExecutor struct {
	registry       *Registry
	defaultTimeout time.Duration
}

// NewSnippetExecutor creates an executor over registry. A non-positive
// defaultTimeout selects DefaultTimeout.
func NewSnippetExecutor(registry *Registry, defaultTimeout time.Duration) *SnippetExecutor {
	if registry == nil {
		panic("registry cannot be nil")
	}
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	return &SnippetExecutor{registry: registry, defaultTimeout: defaultTimeout}
}

// NewDefaultExecutor creates an executor with the JavaScript module registered.
func NewDefaultExecutor(defaultTimeout time.Duration) (*SnippetExecutor, error) {
	registry, err := NewRegistry(NewJavaScriptModule())
	if err != nil {
		return nil, err
	}
	return NewSnippetExecutor(registry, defaultTimeout), nil
}

// DefaultTimeout returns the budget applied to snippets without their own.
func (e *SnippetExecutor) DefaultTimeout() time.Duration {
	return e.defaultTimeout
}

// Run implements Executor.
func (e *SnippetExecutor) Run(ctx context.Context, snippet models.Snippet) (models.ExecutionResult, error) {
	module, err := e.registry.moduleFor(snippet.EffectiveLanguage())
	if err != nil {
		return models.ExecutionResult{SnippetID: snippet.ID, Status: models.StatusCompleted},
			NewSnippetError(snippet.ID, "no executor", err)
	}
	return module.Execute(ctx, snippet, snippet.TimeoutOr(e.defaultTimeout))
}
