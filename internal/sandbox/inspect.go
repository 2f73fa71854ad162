package sandbox

import (
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/dop251/goja"
)

// Formatting limits, matching Node's util.inspect defaults.
const (
	inspectDepth   = 2
	maxArrayLength = 100
	breakLength    = 80
	compactLevels  = 3
)

var keyIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z_0-9]*$`)

// inspector renders one value. It is not reusable across top-level values.
type inspector struct {
	vm           *goja.Runtime
	seen         []*goja.Object
	circular     bool
	currentDepth int
	depth        int
}

// Inspect formats v the way Node's util.inspect does with default options:
// strings quoted, nested objects beyond depth 2 collapsed, long containers
// broken over several lines.
func Inspect(vm *goja.Runtime, v goja.Value) string {
	return inspectWithDepth(vm, v, inspectDepth)
}

func inspectWithDepth(vm *goja.Runtime, v goja.Value, depth int) string {
	in := &inspector{vm: vm, depth: depth}
	s := in.format(v, 0, 0)
	if in.circular {
		s = "<ref *1> " + s
	}
	return s
}

func (in *inspector) format(v goja.Value, level, indent int) string {
	obj, ok := v.(*goja.Object)
	if !ok {
		return formatPrimitive(v, true)
	}
	return in.formatObject(obj, level, indent)
}

func formatPrimitive(v goja.Value, quote bool) string {
	switch {
	case v == nil || goja.IsUndefined(v):
		return "undefined"
	case goja.IsNull(v):
		return "null"
	}
	if sym, ok := v.(*goja.Symbol); ok {
		return "Symbol(" + sym.String() + ")"
	}
	switch x := v.Export().(type) {
	case string:
		if quote {
			return quoteString(x)
		}
		return x
	case float64:
		if x == 0 && math.Signbit(x) {
			return "-0"
		}
	case *big.Int:
		return x.String() + "n"
	}
	return v.String()
}

func (in *inspector) formatObject(obj *goja.Object, level, indent int) string {
	if _, ok := goja.AssertFunction(obj); ok {
		return in.formatFunction(obj)
	}

	class := in.kind(obj)
	switch {
	case class == "Error" || in.isError(obj):
		return "[" + errorString(obj) + "]"
	case class == "Date":
		return dateString(obj)
	case class == "RegExp":
		return obj.String()
	case class == "WeakMap" || class == "WeakSet":
		return class + " { <items unknown> }"
	case class == "String":
		return "[String: " + quoteString(obj.String()) + "]"
	case class == "Number" || class == "Boolean":
		return "[" + class + ": " + formatPrimitive(callMethod(obj, "valueOf"), true) + "]"
	}

	for _, s := range in.seen {
		if s.SameAs(obj) {
			in.circular = true
			return "[Circular *1]"
		}
	}

	switch class {
	case "Array":
		return in.formatArray(obj, "", level, indent)
	case "Arguments":
		return in.formatArray(obj, "[Arguments] ", level, indent)
	case "Map":
		return in.formatMap(obj, level, indent)
	case "Set":
		return in.formatSet(obj, level, indent)
	case "Promise":
		return in.formatPromise(obj, level, indent)
	}
	return in.formatPlain(obj, level, indent)
}

func (in *inspector) formatFunction(obj *goja.Object) string {
	name := stringProp(obj, "name", "")
	if src := obj.String(); strings.HasPrefix(src, "class ") || strings.HasPrefix(src, "class{") {
		s := "[class " + orAnonymous(name)
		if parent := obj.Prototype(); parent != nil {
			if _, ok := goja.AssertFunction(parent); ok {
				if pn := stringProp(parent, "name", ""); pn != "" {
					s += " extends " + pn
				}
			}
		}
		return s + "]"
	}
	kind := "Function"
	if ctor, ok := prop(obj, "constructor").(*goja.Object); ok {
		switch cn := stringProp(ctor, "name", ""); cn {
		case "AsyncFunction", "GeneratorFunction", "AsyncGeneratorFunction":
			kind = cn
		}
	}
	if name == "" {
		return "[" + kind + " (anonymous)]"
	}
	return "[" + kind + ": " + name + "]"
}

func orAnonymous(name string) string {
	if name == "" {
		return "(anonymous)"
	}
	return name
}

func (in *inspector) formatArray(obj *goja.Object, prefix string, level, indent int) string {
	length := int(prop(obj, "length").ToInteger())
	if length == 0 {
		return prefix + "[]"
	}
	if level > in.depth {
		return "[Array]"
	}

	in.enter(obj, level)
	defer in.leave()

	shown := length
	if shown > maxArrayLength {
		shown = maxArrayLength
	}
	output := make([]string, 0, shown+1)
	numeric := true
	for i := 0; i < shown; i++ {
		v := obj.Get(strconv.Itoa(i))
		if v == nil {
			holes := 1
			for i+1 < shown && obj.Get(strconv.Itoa(i+1)) == nil {
				holes++
				i++
			}
			output = append(output, fmt.Sprintf("<%d empty item%s>", holes, plural(holes)))
			numeric = false
			continue
		}
		if !isNumeric(v) {
			numeric = false
		}
		output = append(output, in.format(v, level+1, indent+2))
	}
	truncated := false
	if length > shown {
		rest := length - shown
		output = append(output, fmt.Sprintf("... %d more item%s", rest, plural(rest)))
		truncated = true
	}

	entries := len(output)
	if entries > 6 {
		output = groupArrayElements(output, indent, truncated, numeric)
	}
	return in.reduce(output, prefix+"[", "]", level, indent, entries == len(output))
}

func (in *inspector) formatMap(obj *goja.Object, level, indent int) string {
	size := prop(obj, "size").ToInteger()
	open := fmt.Sprintf("Map(%d) {", size)
	if size == 0 {
		return open + "}"
	}
	if level > in.depth {
		return "[Map]"
	}
	in.enter(obj, level)
	defer in.leave()

	var output []string
	in.forEach(obj, func(value, key goja.Value) {
		output = append(output, in.format(key, level+1, indent+2)+" => "+in.format(value, level+1, indent+2))
	})
	return in.reduce(output, open, "}", level, indent, true)
}

func (in *inspector) formatSet(obj *goja.Object, level, indent int) string {
	size := prop(obj, "size").ToInteger()
	open := fmt.Sprintf("Set(%d) {", size)
	if size == 0 {
		return open + "}"
	}
	if level > in.depth {
		return "[Set]"
	}
	in.enter(obj, level)
	defer in.leave()

	var output []string
	in.forEach(obj, func(value, _ goja.Value) {
		output = append(output, in.format(value, level+1, indent+2))
	})
	return in.reduce(output, open, "}", level, indent, true)
}

func (in *inspector) formatPromise(obj *goja.Object, level, indent int) string {
	p, ok := obj.Export().(*goja.Promise)
	if !ok {
		return in.formatPlain(obj, level, indent)
	}
	if level > in.depth {
		return "[Promise]"
	}
	in.enter(obj, level)
	defer in.leave()

	var entry string
	switch p.State() {
	case goja.PromiseStatePending:
		entry = "<pending>"
	case goja.PromiseStateRejected:
		entry = "<rejected> " + in.format(p.Result(), level+1, indent+2)
	default:
		entry = in.format(p.Result(), level+1, indent+2)
	}
	return in.reduce([]string{entry}, "Promise {", "}", level, indent, true)
}

func (in *inspector) formatPlain(obj *goja.Object, level, indent int) string {
	open, tag := "{", "Object"
	proto := obj.Prototype()
	if proto == nil {
		open = "[Object: null prototype] {"
	} else if name := constructorName(proto); name != "" && name != "Object" {
		open, tag = name+" {", name
	}

	keys := obj.Keys()
	if len(keys) == 0 {
		return open + "}"
	}
	if level > in.depth {
		return "[" + tag + "]"
	}

	in.enter(obj, level)
	defer in.leave()

	output := make([]string, 0, len(keys))
	for _, k := range keys {
		name := k
		if !keyIdentifier.MatchString(k) {
			name = quoteString(k)
		}
		output = append(output, name+": "+in.format(prop(obj, k), level+1, indent+2))
	}
	return in.reduce(output, open, "}", level, indent, true)
}

func (in *inspector) enter(obj *goja.Object, level int) {
	in.seen = append(in.seen, obj)
	in.currentDepth = level
}

func (in *inspector) leave() {
	in.seen = in.seen[:len(in.seen)-1]
}

// reduce joins container entries onto one line when they fit, otherwise one
// entry (or grouped row) per line.
func (in *inspector) reduce(output []string, open, closing string, level, indent int, mayInline bool) string {
	if mayInline && in.currentDepth-level < compactLevels {
		start := len(output) + indent + len(open) + 10
		if belowBreakLength(output, start) {
			joined := strings.Join(output, ", ")
			if !strings.Contains(joined, "\n") {
				return open + " " + joined + " " + closing
			}
		}
	}
	pad := "\n" + strings.Repeat(" ", indent)
	return open + pad + "  " + strings.Join(output, ","+pad+"  ") + pad + closing
}

func belowBreakLength(output []string, start int) bool {
	total := len(output) + start
	if total+len(output) > breakLength {
		return false
	}
	for _, s := range output {
		total += len(s)
		if total > breakLength {
			return false
		}
	}
	return true
}

// groupArrayElements lays short array entries out in aligned columns.
func groupArrayElements(output []string, indent int, truncated, numeric bool) []string {
	const separatorSpace = 2
	outputLength := len(output)
	if truncated {
		outputLength--
	}
	dataLen := make([]int, outputLength)
	totalLength, maxLength := 0, 0
	for i := 0; i < outputLength; i++ {
		l := len(output[i])
		dataLen[i] = l
		totalLength += l + separatorSpace
		if l > maxLength {
			maxLength = l
		}
	}
	actualMax := maxLength + separatorSpace
	if actualMax*3+indent >= breakLength || !(float64(totalLength)/float64(actualMax) > 5 || maxLength <= 6) {
		return output
	}

	averageBias := math.Sqrt(float64(actualMax) - float64(totalLength)/float64(len(output)))
	biasedMax := math.Max(float64(actualMax)-3-averageBias, 1)
	columns := minInt(
		int(math.Round(math.Sqrt(2.5*biasedMax*float64(outputLength))/biasedMax)),
		(breakLength-indent)/actualMax,
		compactLevels*4,
		15,
	)
	if columns <= 1 {
		return output
	}

	maxLineLength := make([]int, 0, columns)
	for i := 0; i < columns; i++ {
		lineLength := 0
		for j := i; j < outputLength; j += columns {
			if dataLen[j] > lineLength {
				lineLength = dataLen[j]
			}
		}
		maxLineLength = append(maxLineLength, lineLength+separatorSpace)
	}

	grouped := make([]string, 0, outputLength/columns+2)
	for i := 0; i < outputLength; i += columns {
		end := minInt(i+columns, outputLength)
		var b strings.Builder
		j := i
		for ; j < end-1; j++ {
			cell := output[j] + ", "
			if numeric {
				b.WriteString(padStart(cell, maxLineLength[j-i]))
			} else {
				b.WriteString(padEnd(cell, maxLineLength[j-i]))
			}
		}
		if numeric {
			b.WriteString(padStart(output[j], maxLineLength[j-i]-separatorSpace))
		} else {
			b.WriteString(output[j])
		}
		grouped = append(grouped, b.String())
	}
	if truncated {
		grouped = append(grouped, output[outputLength])
	}
	return grouped
}

func (in *inspector) isError(obj *goja.Object) bool {
	return in.instanceOf(obj, "Error")
}

// kind names the built-in type of obj. Keyed collections and promises report
// the plain "Object" class, so they are recognised by prototype instead.
func (in *inspector) kind(obj *goja.Object) string {
	class := obj.ClassName()
	if class != "Object" {
		return class
	}
	if _, ok := obj.Export().(*goja.Promise); ok {
		return "Promise"
	}
	for _, name := range [...]string{"Map", "Set", "WeakMap", "WeakSet"} {
		if in.instanceOf(obj, name) {
			return name
		}
	}
	return class
}

func (in *inspector) instanceOf(obj *goja.Object, ctorName string) bool {
	ctor, ok := in.vm.GlobalObject().Get(ctorName).(*goja.Object)
	return ok && in.vm.InstanceOf(obj, ctor)
}

// forEach walks a Map or Set through its own forEach method.
func (in *inspector) forEach(obj *goja.Object, fn func(value, key goja.Value)) {
	each, ok := goja.AssertFunction(prop(obj, "forEach"))
	if !ok {
		return
	}
	cb := in.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		fn(call.Argument(0), call.Argument(1))
		return goja.Undefined()
	})
	_, _ = each(obj, cb)
}

// errorString renders an error as "Name: message", or just the name when the
// message is empty.
func errorString(obj *goja.Object) string {
	name := stringProp(obj, "name", "Error")
	msg := stringProp(obj, "message", "")
	if msg == "" {
		return name
	}
	return name + ": " + msg
}

func dateString(obj *goja.Object) string {
	v := callMethod(obj, "toISOString")
	if v == nil {
		return "Invalid Date"
	}
	return v.String()
}

func constructorName(proto *goja.Object) string {
	ctor, ok := prop(proto, "constructor").(*goja.Object)
	if !ok {
		return ""
	}
	return stringProp(ctor, "name", "")
}

// prop reads a property, mapping a missing one to undefined.
func prop(obj *goja.Object, name string) goja.Value {
	v := obj.Get(name)
	if v == nil {
		return goja.Undefined()
	}
	return v
}

func stringProp(obj *goja.Object, name, fallback string) string {
	v := prop(obj, name)
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return fallback
	}
	return v.String()
}

// callMethod invokes obj[name]() and returns nil when it is missing or throws.
func callMethod(obj *goja.Object, name string) goja.Value {
	fn, ok := goja.AssertFunction(prop(obj, name))
	if !ok {
		return nil
	}
	v, err := fn(obj)
	if err != nil {
		return nil
	}
	return v
}

func isNumeric(v goja.Value) bool {
	if _, ok := v.(*goja.Object); ok {
		return false
	}
	switch v.Export().(type) {
	case int64, float64, *big.Int:
		return true
	}
	return false
}

// quoteString quotes s with single quotes, switching to double quotes or
// backticks when that avoids escaping.
func quoteString(s string) string {
	quote := byte('\'')
	if strings.Contains(s, "'") {
		switch {
		case !strings.Contains(s, `"`):
			quote = '"'
		case !strings.Contains(s, "`") && !strings.Contains(s, "${"):
			quote = '`'
		}
	}
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte(quote)
	for _, r := range s {
		switch {
		case r == rune(quote) || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\t':
			b.WriteString(`\t`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\b':
			b.WriteString(`\b`)
		case r == '\f':
			b.WriteString(`\f`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\x%02X`, r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(quote)
	return b.String()
}

func padStart(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

func padEnd(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func minInt(first int, rest ...int) int {
	m := first
	for _, v := range rest {
		if v < m {
			m = v
		}
	}
	return m
}
