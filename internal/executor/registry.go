package executor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harrison/snippetcheck/internal/models"
)

// Module runs snippets written in one language.
type Module interface {
	Language() string
	Execute(ctx context.Context, snippet models.Snippet, budget time.Duration) (models.ExecutionResult, error)
}

// ErrUnsupportedLanguage is returned when no module handles a snippet's language.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Registry dispatches snippets to the module registered for their language.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
}

// NewRegistry constructs a registry from the supplied modules.
func NewRegistry(mods ...Module) (*Registry, error) {
	reg := &Registry{modules: make(map[string]Module, len(mods))}
	for _, m := range mods {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	if len(reg.modules) == 0 {
		return nil, fmt.Errorf("at least one language module must be registered")
	}
	return reg, nil
}

// Register adds a module. Languages are matched case-insensitively.
func (r *Registry) Register(m Module) error {
	if m == nil {
		return fmt.Errorf("language module cannot be nil")
	}
	lang := strings.ToLower(m.Language())
	if lang == "" {
		return fmt.Errorf("language module missing language identifier")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[lang]; exists {
		return fmt.Errorf("duplicate language module for %q", lang)
	}
	r.modules[lang] = m
	return nil
}

// Languages returns the registered languages in sorted order.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	langs := make([]string, 0, len(r.modules))
	for lang := range r.modules {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

func (r *Registry) moduleFor(lang string) (Module, error) {
	r.mu.RLock()
	m, ok := r.modules[strings.ToLower(lang)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnsupportedLanguage, lang)
	}
	return m, nil
}
