package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/harrison/snippetcheck/internal/models"
)

// DefaultLogDir is where NewFileLogger writes when no directory is configured.
var DefaultLogDir = filepath.Join(".snippetcheck", "logs")

// FileLogger logs run events to files in a log directory.
// It creates timestamped per-run log files, per-snippet logs of captured
// output, and maintains a latest.log symlink pointing to the most recent run.
// It is thread-safe and implements the executor.Logger interface.
type FileLogger struct {
	logDir      string
	runLog      *os.File
	runFile     string
	snippetsDir string
	logLevel    string
	mu          sync.Mutex
}

// NewFileLogger creates a FileLogger that writes to DefaultLogDir at info level.
func NewFileLogger() (*FileLogger, error) {
	return NewFileLoggerWithDirAndLevel(DefaultLogDir, "info")
}

// NewFileLoggerWithDirAndLevel creates a FileLogger with a custom log directory
// and log level. It creates the directory if needed, opens a timestamped run
// log file and repoints the latest.log symlink at it.
func NewFileLoggerWithDirAndLevel(logDir string, logLevel string) (*FileLogger, error) {
	snippetsDir := filepath.Join(logDir, "snippets")
	if err := os.MkdirAll(snippetsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// run-YYYYMMDD-HHMMSS.log; a suffix keeps runs started in the same second apart
	stamp := time.Now().Format("20060102-150405")
	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", stamp))
	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	for n := 1; err != nil && os.IsExist(err); n++ {
		runFile = filepath.Join(logDir, fmt.Sprintf("run-%s-%d.log", stamp, n))
		file, err = os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	logger := &FileLogger{
		logDir:      logDir,
		runLog:      file,
		runFile:     runFile,
		snippetsDir: snippetsDir,
		logLevel:    normalizeLogLevel(logLevel),
	}

	logger.writeRunLog("=== snippetcheck Run Log ===\n")
	logger.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))

	return logger, nil
}

// RunFile returns the path of this run's log file.
func (fl *FileLogger) RunFile() string {
	return fl.runFile
}

func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return enabled(fl.logLevel, messageLevel)
}

// LogInfo logs an info-level message.
func (fl *FileLogger) LogInfo(message string) {
	fl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (fl *FileLogger) LogWarn(message string) {
	fl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (fl *FileLogger) LogError(message string) {
	fl.logWithLevel("ERROR", message)
}

func (fl *FileLogger) logWithLevel(level string, message string) {
	if !fl.shouldLog(strings.ToLower(level)) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", timestamp(), level, message))
}

// LogRunStart logs the start of a run at INFO level.
func (fl *FileLogger) LogRunStart(runID string, total, parallel int) {
	if !fl.shouldLog("info") {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] Starting run %s: %d %s (parallel: %d)\n",
		timestamp(), runID, total, plural(total, "snippet"), parallel))
}

// LogSnippetStart logs a snippet launch at DEBUG level.
func (fl *FileLogger) LogSnippetStart(snippet models.Snippet) {
	if !fl.shouldLog("debug") {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] Running %s (%s)\n", timestamp(), snippet.ID, snippet.Topic))
}

// LogVerdict writes the verdict line to the run log and the full record,
// captured output included, to snippets/<id>.log.
func (fl *FileLogger) LogVerdict(verdict models.Verdict, result models.ExecutionResult) {
	if fl.shouldLog("info") {
		fl.writeRunLog(fmt.Sprintf("[%s] %s: %s (%.3fs)\n",
			timestamp(), verdict.SnippetID, strings.ToUpper(string(verdict.Outcome)), verdict.Duration.Seconds()))
	}
	if err := fl.writeSnippetLog(verdict, result); err != nil {
		fl.logWithLevel("WARN", err.Error())
	}
}

func (fl *FileLogger) writeSnippetLog(verdict models.Verdict, result models.ExecutionResult) error {
	path := filepath.Join(fl.snippetsDir, SnippetLogName(verdict.SnippetID))

	var b strings.Builder
	fmt.Fprintf(&b, "=== Snippet %s (%s) ===\n", verdict.SnippetID, verdict.Topic)
	fmt.Fprintf(&b, "Outcome: %s\n", verdict.Outcome)
	fmt.Fprintf(&b, "Status: %s\n", result.Status)
	fmt.Fprintf(&b, "Duration: %.3fs\n", verdict.Duration.Seconds())
	if result.PendingTasks > 0 {
		fmt.Fprintf(&b, "Pending tasks: %d\n", result.PendingTasks)
	}
	b.WriteString("\nOutput:\n")
	for _, line := range result.Output {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if verdict.Error != "" {
		fmt.Fprintf(&b, "\nError:\n%s\n", verdict.Error)
	}
	if verdict.Detail != "" {
		fmt.Fprintf(&b, "\nDetail:\n%s\n", verdict.Detail)
	}
	fmt.Fprintf(&b, "\nCompleted at: %s\n", time.Now().Format(time.RFC3339))

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write snippet log: %w", err)
	}
	return nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SnippetLogName maps a snippet id to its log file name.
func SnippetLogName(id string) string {
	name := unsafeFileChars.ReplaceAllString(id, "_")
	if name == "" || name == "." || name == ".." {
		name = "_"
	}
	return name + ".log"
}

// LogSummary logs the run summary with final statistics at INFO level.
func (fl *FileLogger) LogSummary(rep models.Report) {
	if !fl.shouldLog("info") {
		return
	}

	status := "SUCCESS"
	if rep.FailedCount > 0 {
		status = "FAILED"
		if rep.PassedCount > 0 {
			status = "PARTIAL"
		}
	}

	ts := timestamp()
	message := fmt.Sprintf(
		"\n[%s] === RUN SUMMARY ===\n"+
			"[%s] Run id:       %s\n"+
			"[%s] Total:        %d\n"+
			"[%s] Passed:       %d\n"+
			"[%s] Failed:       %d (incomplete %d, cancelled %d)\n"+
			"[%s] Total time:   %.1fs\n"+
			"[%s] Status:       %s (%d/%d snippets passed)\n"+
			"[%s] Completed at: %s\n",
		ts,
		ts, rep.RunID,
		ts, rep.TotalCount,
		ts, rep.PassedCount,
		ts, rep.FailedCount, rep.IncompleteCount, rep.CancelledCount,
		ts, rep.Duration.Seconds(),
		ts, status, rep.PassedCount, rep.TotalCount,
		ts, time.Now().Format(time.RFC3339),
	)
	fl.writeRunLog(message)
}

// Close flushes and closes the run log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		if err := fl.runLog.Sync(); err != nil {
			return fmt.Errorf("failed to sync run log: %w", err)
		}
		if err := fl.runLog.Close(); err != nil {
			return fmt.Errorf("failed to close run log: %w", err)
		}
		fl.runLog = nil
	}
	return nil
}

func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		fl.runLog.WriteString(message)
		fl.runLog.Sync()
	}
}
