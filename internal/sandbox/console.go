package sandbox

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"
)

// Console captures everything a snippet prints, one entry per output line.
type Console struct {
	vm      *goja.Runtime
	lines   []string
	limit   int
	dropped int
	indent  string
	counts  map[string]int
}

func newConsole(vm *goja.Runtime, limit int) *Console {
	return &Console{vm: vm, limit: limit, counts: make(map[string]int)}
}

// install binds the console object and the print global into the runtime.
func (c *Console) install() error {
	obj := c.vm.NewObject()
	for _, name := range []string{"log", "info", "debug", "warn", "error", "trace"} {
		if err := obj.Set(name, c.print); err != nil {
			return err
		}
	}
	methods := map[string]func(goja.FunctionCall) goja.Value{
		"dir":      c.dir,
		"group":    c.group,
		"groupEnd": c.groupEnd,
		"assert":   c.assert,
		"count":    c.count,
	}
	for name, fn := range methods {
		if err := obj.Set(name, fn); err != nil {
			return err
		}
	}
	if err := c.vm.Set("console", obj); err != nil {
		return err
	}
	return c.vm.Set("print", c.print)
}

// Lines returns the captured output.
func (c *Console) Lines() []string {
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out
}

// Dropped returns how many lines were discarded after the limit was reached.
func (c *Console) Dropped() int {
	return c.dropped
}

func (c *Console) print(call goja.FunctionCall) goja.Value {
	c.write(Format(c.vm, call.Arguments...))
	return goja.Undefined()
}

func (c *Console) dir(call goja.FunctionCall) goja.Value {
	c.write(safeInspect(c.vm, call.Argument(0)))
	return goja.Undefined()
}

func (c *Console) group(call goja.FunctionCall) goja.Value {
	if len(call.Arguments) > 0 {
		c.write(Format(c.vm, call.Arguments...))
	}
	c.indent += "  "
	return goja.Undefined()
}

func (c *Console) groupEnd(goja.FunctionCall) goja.Value {
	if len(c.indent) >= 2 {
		c.indent = c.indent[2:]
	}
	return goja.Undefined()
}

func (c *Console) assert(call goja.FunctionCall) goja.Value {
	if call.Argument(0).ToBoolean() {
		return goja.Undefined()
	}
	msg := "Assertion failed"
	if len(call.Arguments) > 1 {
		msg += ": " + Format(c.vm, call.Arguments[1:]...)
	}
	c.write(msg)
	return goja.Undefined()
}

func (c *Console) count(call goja.FunctionCall) goja.Value {
	label := "default"
	if arg := call.Argument(0); !goja.IsUndefined(arg) {
		label = arg.String()
	}
	c.counts[label]++
	c.write(fmt.Sprintf("%s: %d", label, c.counts[label]))
	return goja.Undefined()
}

func (c *Console) write(text string) {
	for _, line := range strings.Split(text, "\n") {
		if c.limit > 0 && len(c.lines) >= c.limit {
			c.dropped++
			continue
		}
		c.lines = append(c.lines, c.indent+line)
	}
}

// Format renders console arguments the way Node's util.format does: a leading
// string may carry %s %d %i %f %j %o %O %c substitutions, remaining arguments
// are appended separated by spaces.
func Format(vm *goja.Runtime, args ...goja.Value) string {
	if len(args) == 0 {
		return ""
	}
	var b strings.Builder
	rest := args
	if first, ok := args[0].Export().(string); ok && !isObject(args[0]) {
		if len(args) == 1 {
			return first
		}
		rest = args[1:]
		last := 0
		for i := 0; i < len(first)-1; i++ {
			if first[i] != '%' {
				continue
			}
			next := first[i+1]
			if next == '%' {
				b.WriteString(first[last:i])
				b.WriteByte('%')
				i++
				last = i + 1
				continue
			}
			if len(rest) == 0 || !strings.ContainsRune("sdifjoOc", rune(next)) {
				continue
			}
			b.WriteString(first[last:i])
			b.WriteString(substitute(vm, next, rest[0]))
			rest = rest[1:]
			i++
			last = i + 1
		}
		b.WriteString(first[last:])
		for _, arg := range rest {
			b.WriteByte(' ')
			b.WriteString(formatArg(vm, arg))
		}
		return b.String()
	}
	for i, arg := range rest {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(formatArg(vm, arg))
	}
	return b.String()
}

// formatArg renders one console argument: strings verbatim, errors as
// "Name: message", everything else inspected.
func formatArg(vm *goja.Runtime, v goja.Value) string {
	if obj, ok := v.(*goja.Object); ok {
		if _, fn := goja.AssertFunction(obj); !fn && (obj.ClassName() == "Error" || isErrorValue(vm, obj)) {
			return errorString(obj)
		}
		return safeInspect(vm, v)
	}
	return formatPrimitive(v, false)
}

func substitute(vm *goja.Runtime, verb byte, v goja.Value) string {
	switch verb {
	case 's':
		obj, ok := v.(*goja.Object)
		if !ok {
			return formatPrimitive(v, false)
		}
		if _, fn := goja.AssertFunction(obj); fn || hasCustomToString(obj) {
			return obj.String()
		}
		return safeInspectDepth(vm, v, 0)
	case 'd':
		if isObject(v) {
			return "NaN"
		}
		return formatPrimitive(v.ToNumber(), false)
	case 'i':
		return formatPrimitive(callGlobal(vm, "parseInt", v), false)
	case 'f':
		return formatPrimitive(callGlobal(vm, "parseFloat", v), false)
	case 'j':
		return jsonString(vm, v)
	case 'o', 'O':
		return safeInspect(vm, v)
	}
	return ""
}

func jsonString(vm *goja.Runtime, v goja.Value) string {
	json, ok := vm.Get("JSON").(*goja.Object)
	if !ok {
		return "undefined"
	}
	stringify, ok := goja.AssertFunction(prop(json, "stringify"))
	if !ok {
		return "undefined"
	}
	out, err := stringify(json, v)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "circular") {
			return "[Circular]"
		}
		return "undefined"
	}
	return formatPrimitive(out, false)
}

func callGlobal(vm *goja.Runtime, name string, arg goja.Value) goja.Value {
	fn, ok := goja.AssertFunction(vm.Get(name))
	if !ok {
		return goja.Undefined()
	}
	out, err := fn(goja.Undefined(), arg)
	if err != nil {
		return goja.Undefined()
	}
	return out
}

// hasCustomToString reports whether obj inherits a toString that is not one
// of the runtime's built-ins.
func hasCustomToString(obj *goja.Object) bool {
	fn, ok := prop(obj, "toString").(*goja.Object)
	if !ok {
		return false
	}
	return !strings.Contains(fn.String(), "[native code]")
}

func isObject(v goja.Value) bool {
	_, ok := v.(*goja.Object)
	return ok
}

func isErrorValue(vm *goja.Runtime, obj *goja.Object) bool {
	in := &inspector{vm: vm}
	return in.isError(obj)
}

// safeInspect inspects v, falling back to its string conversion when a getter
// or proxy trap throws while it is being walked.
func safeInspect(vm *goja.Runtime, v goja.Value) string {
	return safeInspectDepth(vm, v, inspectDepth)
}

func safeInspectDepth(vm *goja.Runtime, v goja.Value, depth int) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = fmt.Sprint(r)
		}
	}()
	return inspectWithDepth(vm, v, depth)
}
