// Package logger provides logging implementations for snippet check runs.
//
// The logger package reports run progress at the snippet and summary levels.
// Implementations are thread-safe and support console and file destinations.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/harrison/snippetcheck/internal/models"
)

// ConsoleLogger logs run progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps.
// It supports log level filtering to control message verbosity.
// Color output is automatically enabled for terminal output (os.Stdout/os.Stderr).
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
	progress    *ProgressBar
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive).
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// SetColor forces color output on or off regardless of the writer.
func (cl *ConsoleLogger) SetColor(enabled bool) {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	cl.colorOutput = enabled
}

// isTerminal checks if the writer is a terminal that supports colors.
func isTerminal(w io.Writer) bool {
	if w == os.Stdout || w == os.Stderr {
		// fatih/color reports NoColor for non-TTYs and when NO_COLOR is set
		return !color.NoColor
	}
	return false
}

func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return cl.writer != nil && enabled(cl.logLevel, messageLevel)
}

// paint applies attrs when color output is on.
func (cl *ConsoleLogger) paint(s string, attrs ...color.Attribute) string {
	if !cl.colorOutput {
		return s
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(s)
}

// LogTrace logs a trace-level message (most verbose).
// Format: "[HH:MM:SS] [TRACE] <message>"
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	label := level
	switch level {
	case "TRACE":
		label = cl.paint(level, color.FgHiBlack)
	case "DEBUG":
		label = cl.paint(level, color.FgCyan)
	case "INFO":
		label = cl.paint(level, color.FgBlue)
	case "WARN":
		label = cl.paint(level, color.FgYellow)
	case "ERROR":
		label = cl.paint(level, color.FgRed)
	}
	cl.write(fmt.Sprintf("[%s] [%s] %s\n", timestamp(), label, message))
}

// write must be called with the mutex held.
func (cl *ConsoleLogger) write(s string) {
	_, _ = io.WriteString(cl.writer, s)
}

// LogRunStart logs the start of a run at INFO level.
// Format: "[HH:MM:SS] Starting run <id>: <n> snippets (parallel: <p>)"
func (cl *ConsoleLogger) LogRunStart(runID string, total, parallel int) {
	cl.mutex.Lock()
	cl.progress = NewProgressBar(total, 20, cl.colorOutput)
	cl.mutex.Unlock()

	if !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	cl.write(fmt.Sprintf("[%s] Starting run %s: %d %s (parallel: %d)\n",
		timestamp(), cl.paint(runID, color.Bold), total, plural(total, "snippet"), parallel))
}

// LogSnippetStart logs a snippet launch at DEBUG level.
func (cl *ConsoleLogger) LogSnippetStart(snippet models.Snippet) {
	if !cl.shouldLog("debug") {
		return
	}
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	cl.write(fmt.Sprintf("[%s] Running %s (%s)\n", timestamp(), snippet.ID, snippet.Topic))
}

// LogVerdict logs one verdict. Passing snippets are logged at DEBUG level,
// everything else at INFO level together with the first line of its detail.
// At TRACE level the snippet's captured output follows.
// Format: "[HH:MM:SS] <id>: PASSED (12ms) [====      ] 3/8 (37%)"
func (cl *ConsoleLogger) LogVerdict(verdict models.Verdict, result models.ExecutionResult) {
	cl.mutex.Lock()
	progress := ""
	if cl.progress != nil {
		cl.progress.Increment()
		progress = " " + cl.progress.Render()
	}
	cl.mutex.Unlock()

	level := "info"
	if verdict.Passed {
		level = "debug"
	}
	if !cl.shouldLog(level) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s (%s)%s\n", ts, verdict.SnippetID, cl.outcomeLabel(verdict.Outcome), formatDuration(verdict.Duration), progress)
	if verdict.Error != "" {
		fmt.Fprintf(&b, "[%s]   error: %s\n", ts, verdict.Error)
	}
	if !verdict.Passed && verdict.Detail != "" {
		fmt.Fprintf(&b, "[%s]   %s\n", ts, firstLine(verdict.Detail))
	}
	if enabled(cl.logLevel, "trace") {
		for _, line := range result.Output {
			fmt.Fprintf(&b, "[%s]   > %s\n", ts, line)
		}
	}
	cl.write(b.String())
}

func (cl *ConsoleLogger) outcomeLabel(o models.Outcome) string {
	label := strings.ToUpper(string(o))
	switch o {
	case models.OutcomePassed:
		return cl.paint(label, color.FgGreen)
	case models.OutcomeIncomplete, models.OutcomeCancelled:
		return cl.paint(label, color.FgYellow)
	default:
		return cl.paint(label, color.FgRed)
	}
}

// LogSummary logs the run summary with completion statistics at INFO level.
func (cl *ConsoleLogger) LogSummary(rep models.Report) {
	if !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n", ts, cl.paint("=== Run Summary ===", color.Bold))
	fmt.Fprintf(&b, "[%s] Total snippets: %d\n", ts, rep.TotalCount)
	fmt.Fprintf(&b, "[%s] %s\n", ts, cl.paint(fmt.Sprintf("Passed: %d", rep.PassedCount), color.FgGreen))
	failed := fmt.Sprintf("Failed: %d", rep.FailedCount)
	if rep.FailedCount > 0 {
		failed = cl.paint(failed, color.FgRed)
	}
	fmt.Fprintf(&b, "[%s] %s\n", ts, failed)
	if rep.IncompleteCount > 0 || rep.CancelledCount > 0 {
		fmt.Fprintf(&b, "[%s] Incomplete: %d, Cancelled: %d\n", ts, rep.IncompleteCount, rep.CancelledCount)
	}
	fmt.Fprintf(&b, "[%s] Duration: %s\n", ts, formatDuration(rep.Duration))

	if failures := rep.Failures(); len(failures) > 0 {
		fmt.Fprintf(&b, "[%s] %s\n", ts, cl.paint("Failed snippets:", color.FgRed))
		for _, v := range failures {
			fmt.Fprintf(&b, "[%s]   - %s (%s): %s\n", ts, v.SnippetID, v.Topic, v.Outcome)
		}
	}
	cl.write(b.String())
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// NoOpLogger discards all log messages.
// Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

// LogRunStart is a no-op implementation.
func (n *NoOpLogger) LogRunStart(string, int, int) {}

// LogSnippetStart is a no-op implementation.
func (n *NoOpLogger) LogSnippetStart(models.Snippet) {}

// LogVerdict is a no-op implementation.
func (n *NoOpLogger) LogVerdict(models.Verdict, models.ExecutionResult) {}

// LogSummary is a no-op implementation.
func (n *NoOpLogger) LogSummary(models.Report) {}
