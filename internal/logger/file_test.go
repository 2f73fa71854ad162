package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/snippetcheck/internal/models"
)

func newFileLogger(t *testing.T, level string) (*FileLogger, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "logs")
	l, err := NewFileLoggerWithDirAndLevel(dir, level)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l, dir
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestFileLogger_CreatesRunLogAndSymlink(t *testing.T) {
	l, dir := newFileLogger(t, "info")

	base := filepath.Base(l.RunFile())
	assert.True(t, strings.HasPrefix(base, "run-"), base)
	assert.True(t, strings.HasSuffix(base, ".log"), base)

	target, err := os.Readlink(filepath.Join(dir, "latest.log"))
	require.NoError(t, err)
	assert.Equal(t, base, target)

	info, err := os.Stat(filepath.Join(dir, "snippets"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFileLogger_SecondRunRepointsLatest(t *testing.T) {
	first, dir := newFileLogger(t, "info")
	second, err := NewFileLoggerWithDirAndLevel(dir, "info")
	require.NoError(t, err)
	defer second.Close()

	assert.NotEqual(t, first.RunFile(), second.RunFile())
	target, err := os.Readlink(filepath.Join(dir, "latest.log"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(second.RunFile()), target)
}

func TestFileLogger_RunEvents(t *testing.T) {
	l, dir := newFileLogger(t, "debug")

	l.LogRunStart("run-1", 2, 2)
	l.LogSnippetStart(models.Snippet{ID: "closure1", Topic: "closures"})
	l.LogVerdict(
		models.Verdict{SnippetID: "closure1", Topic: "closures", Passed: true, Outcome: models.OutcomePassed},
		models.ExecutionResult{Output: []string{"1", "2"}, Status: models.StatusCompleted},
	)
	l.LogVerdict(
		models.Verdict{SnippetID: "bad/id", Topic: "errors", Outcome: models.OutcomeFailed, Error: "Error: x", Detail: "uncaught Error: x"},
		models.ExecutionResult{Status: models.StatusCompleted},
	)
	l.LogSummary(models.Report{RunID: "run-1", TotalCount: 2, PassedCount: 1, FailedCount: 1})
	require.NoError(t, l.Close())

	run := readFile(t, filepath.Join(dir, "latest.log"))
	assert.Contains(t, run, "=== snippetcheck Run Log ===")
	assert.Contains(t, run, "Starting run run-1: 2 snippets (parallel: 2)")
	assert.Contains(t, run, "Running closure1 (closures)")
	assert.Contains(t, run, "closure1: PASSED")
	assert.Contains(t, run, "bad/id: FAILED")
	assert.Contains(t, run, "Status:       PARTIAL (1/2 snippets passed)")

	snippet := readFile(t, filepath.Join(dir, "snippets", "closure1.log"))
	assert.Contains(t, snippet, "=== Snippet closure1 (closures) ===")
	assert.Contains(t, snippet, "Output:\n1\n2\n")

	bad := readFile(t, filepath.Join(dir, "snippets", "bad_id.log"))
	assert.Contains(t, bad, "Error:\nError: x")
	assert.Contains(t, bad, "Detail:\nuncaught Error: x")
}

func TestFileLogger_LevelFiltering(t *testing.T) {
	l, dir := newFileLogger(t, "error")
	l.LogInfo("hidden")
	l.LogWarn("hidden too")
	l.LogError("shown")
	l.LogRunStart("r", 1, 1)
	require.NoError(t, l.Close())

	run := readFile(t, filepath.Join(dir, "latest.log"))
	assert.NotContains(t, run, "hidden")
	assert.NotContains(t, run, "Starting run")
	assert.Contains(t, run, "[ERROR] shown")
}

func TestFileLogger_CloseIsIdempotent(t *testing.T) {
	l, _ := newFileLogger(t, "info")
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	assert.NotPanics(t, func() { l.LogInfo("after close") })
}

func TestSnippetLogName(t *testing.T) {
	assert.Equal(t, "closure1.log", SnippetLogName("closure1"))
	assert.Equal(t, "a_b.log", SnippetLogName("a/b"))
	assert.Equal(t, "_.log", SnippetLogName(".."))
	assert.Equal(t, "_.log", SnippetLogName(""))
}
