// Package sandbox provides isolated JavaScript evaluation contexts. Each
// Context owns one goja runtime, a captured console and a deferred-work queue
// driven by a virtual clock, so snippets never observe each other's state and
// timer-driven output is reproducible.
package sandbox

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/harrison/snippetcheck/internal/models"
)

const (
	// DefaultMaxOutputLines bounds the console capture of a single snippet.
	DefaultMaxOutputLines = 10000

	// DefaultMaxCallStackSize turns runaway recursion into a RangeError.
	DefaultMaxCallStackSize = 10000

	// ScriptName is the file name reported in syntax error positions.
	ScriptName = "snippet.js"
)

// Stop describes why a Run ended.
type Stop int

const (
	// StopDrained means the deferred-work queue emptied.
	StopDrained Stop = iota
	// StopRaised means an uncaught error ended the run.
	StopRaised
	// StopBudget means the next deferred task was due after the time budget.
	StopBudget
	// StopInterrupted means Interrupt was called while the run was active.
	StopInterrupted
)

func (s Stop) String() string {
	switch s {
	case StopDrained:
		return "drained"
	case StopRaised:
		return "raised"
	case StopBudget:
		return "budget"
	case StopInterrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("Stop(%d)", int(s))
	}
}

// Options configures a Context.
type Options struct {
	// Budget is the virtual time after which pending timers are abandoned.
	// Zero means unbounded.
	Budget time.Duration
	// Epoch is the wall time the virtual clock starts at (Date.now()).
	Epoch time.Time
	// Seed feeds Math.random.
	Seed int64
	// MaxOutputLines caps captured console lines. Zero uses the default.
	MaxOutputLines int
	// MaxCallStackSize caps call depth. Zero uses the default.
	MaxCallStackSize int
}

// Result is what one Run produced.
type Result struct {
	Output  []string
	Raised  *models.RaisedError
	Stop    Stop
	Reason  interface{} // value passed to Interrupt, when Stop is StopInterrupted
	Pending int         // deferred tasks still queued
	Elapsed time.Duration
	Dropped int // console lines discarded over the limit
}

// Context is a single-use evaluation context.
type Context struct {
	vm      *goja.Runtime
	opts    Options
	console *Console
	tasks   *TaskQueue

	unhandled []*goja.Promise

	mu          sync.Mutex
	interrupted bool
	reason      interface{}
}

// New builds a fresh runtime with console, print and timer globals installed.
func New(opts Options) (*Context, error) {
	if opts.MaxOutputLines == 0 {
		opts.MaxOutputLines = DefaultMaxOutputLines
	}
	if opts.MaxCallStackSize == 0 {
		opts.MaxCallStackSize = DefaultMaxCallStackSize
	}
	if opts.Epoch.IsZero() {
		opts.Epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	}

	vm := goja.New()
	c := &Context{
		vm:      vm,
		opts:    opts,
		console: newConsole(vm, opts.MaxOutputLines),
		tasks:   NewTaskQueue(),
	}

	vm.SetMaxCallStackSize(opts.MaxCallStackSize)
	vm.SetTimeSource(func() time.Time { return opts.Epoch.Add(c.tasks.Now()) })
	rng := rand.New(rand.NewSource(opts.Seed))
	vm.SetRandSource(rng.Float64)
	vm.SetPromiseRejectionTracker(c.trackRejection)

	if err := c.console.install(); err != nil {
		return nil, fmt.Errorf("install console: %w", err)
	}
	if err := c.installTimers(); err != nil {
		return nil, fmt.Errorf("install timers: %w", err)
	}
	return c, nil
}

// Interrupt stops the run at the next opportunity. It is safe to call from
// any goroutine; the first reason wins.
func (c *Context) Interrupt(reason interface{}) {
	c.mu.Lock()
	if !c.interrupted {
		c.interrupted = true
		c.reason = reason
	}
	c.mu.Unlock()
	c.vm.Interrupt(reason)
}

func (c *Context) interruption() (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason, c.interrupted
}

// Run evaluates source, then drains deferred work in virtual-time order until
// the queue is empty, an uncaught error is raised, the budget is exhausted or
// the context is interrupted. Output captured before the stop is kept.
func (c *Context) Run(source string) *Result {
	res := &Result{}
	defer func() {
		res.Output = c.console.Lines()
		res.Dropped = c.console.Dropped()
		res.Pending = c.tasks.Len()
		res.Elapsed = c.tasks.Now()
	}()

	if c.step(res, func() error {
		_, err := c.vm.RunScript(ScriptName, source)
		return err
	}) {
		return res
	}

	for {
		if reason, ok := c.interruption(); ok {
			res.Stop, res.Reason = StopInterrupted, reason
			return res
		}
		t, ok := c.tasks.Peek()
		if !ok {
			res.Stop = StopDrained
			return res
		}
		if c.opts.Budget > 0 && t.due > c.opts.Budget {
			res.Stop = StopBudget
			return res
		}
		c.tasks.Pop()
		if c.step(res, func() error {
			_, err := t.fn(goja.Undefined(), t.args...)
			return err
		}) {
			return res
		}
	}
}

// step runs one macrotask (its microtasks run as control leaves the runtime)
// and reports whether draining must stop.
func (c *Context) step(res *Result, task func() error) (stop bool) {
	defer func() {
		if r := recover(); r != nil {
			res.Raised = &models.RaisedError{Kind: "InternalError", Message: fmt.Sprint(r)}
			res.Stop = StopRaised
			stop = true
		}
	}()

	if err := task(); err != nil {
		var ie *goja.InterruptedError
		if errors.As(err, &ie) {
			res.Stop, res.Reason = StopInterrupted, ie.Value()
			return true
		}
		res.Raised = c.classify(err)
		res.Stop = StopRaised
		return true
	}
	if reason, ok := c.interruption(); ok {
		res.Stop, res.Reason = StopInterrupted, reason
		return true
	}
	if len(c.unhandled) > 0 {
		p := c.unhandled[0]
		c.unhandled = nil
		res.Raised = c.rejection(p.Result())
		res.Stop = StopRaised
		return true
	}
	return false
}

func (c *Context) trackRejection(p *goja.Promise, op goja.PromiseRejectionOperation) {
	switch op {
	case goja.PromiseRejectionReject:
		c.unhandled = append(c.unhandled, p)
	case goja.PromiseRejectionHandle:
		for i, u := range c.unhandled {
			if u == p {
				c.unhandled = append(c.unhandled[:i], c.unhandled[i+1:]...)
				break
			}
		}
	}
}

// classify converts an uncaught runtime error into its reported form.
func (c *Context) classify(err error) *models.RaisedError {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return c.raised(ex.Value())
	}
	var se *goja.CompilerSyntaxError
	if errors.As(err, &se) {
		return &models.RaisedError{Kind: "SyntaxError", Message: se.Message}
	}
	if strings.Contains(strings.ToLower(err.Error()), "stack overflow") {
		return &models.RaisedError{Kind: "RangeError", Message: "Maximum call stack size exceeded"}
	}
	return &models.RaisedError{Kind: "InternalError", Message: err.Error()}
}

// raised describes a thrown value. Error objects report their name and
// message; any other thrown value is reported as Uncaught with its text.
func (c *Context) raised(v goja.Value) *models.RaisedError {
	if obj, ok := v.(*goja.Object); ok && isErrorValue(c.vm, obj) {
		kind := stringProp(obj, "name", "Error")
		msg := stringProp(obj, "message", "")
		if kind == "SyntaxError" {
			msg = strings.TrimPrefix(msg, "SyntaxError: ")
		}
		return &models.RaisedError{Kind: kind, Message: msg}
	}
	return &models.RaisedError{Kind: "Uncaught", Message: thrownText(c.vm, v)}
}

func (c *Context) rejection(v goja.Value) *models.RaisedError {
	if obj, ok := v.(*goja.Object); ok && isErrorValue(c.vm, obj) {
		return c.raised(v)
	}
	return &models.RaisedError{Kind: "UnhandledPromiseRejection", Message: thrownText(c.vm, v)}
}

func thrownText(vm *goja.Runtime, v goja.Value) string {
	if isObject(v) {
		return safeInspect(vm, v)
	}
	return formatPrimitive(v, false)
}
