package logger

import (
	"bytes"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/harrison/snippetcheck/internal/models"
)

var timestampPrefix = regexp.MustCompile(`^\[\d{2}:\d{2}:\d{2}\] `)

func passed(id string) models.Verdict {
	return models.Verdict{SnippetID: id, Topic: "closures", Passed: true, Outcome: models.OutcomePassed, Duration: 12 * time.Millisecond}
}

func failed(id string) models.Verdict {
	return models.Verdict{
		SnippetID: id,
		Topic:     "errors",
		Outcome:   models.OutcomeFailed,
		Error:     "TypeError: bad",
		Detail:    "uncaught TypeError: bad\n--- expected",
	}
}

func TestConsoleLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  []string
	}{
		{"trace", []string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR"}},
		{"debug", []string{"DEBUG", "INFO", "WARN", "ERROR"}},
		{"", []string{"INFO", "WARN", "ERROR"}},
		{"bogus", []string{"INFO", "WARN", "ERROR"}},
		{"WARN", []string{"WARN", "ERROR"}},
		{"error", []string{"ERROR"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewConsoleLogger(&buf, tt.level)
			l.LogTrace("m")
			l.LogDebug("m")
			l.LogInfo("m")
			l.LogWarn("m")
			l.LogError("m")

			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			var got []string
			for _, line := range lines {
				assert.Regexp(t, timestampPrefix, line)
				got = append(got, strings.Trim(strings.Fields(line)[1], "[]"))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConsoleLogger_NilWriter(t *testing.T) {
	l := NewConsoleLogger(nil, "trace")
	assert.NotPanics(t, func() {
		l.LogInfo("x")
		l.LogRunStart("r", 1, 1)
		l.LogVerdict(passed("a"), models.ExecutionResult{})
		l.LogSummary(models.Report{})
	})
}

func TestConsoleLogger_RunEvents(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(&buf, "info")

	l.LogRunStart("run-42", 2, 1)
	l.LogSnippetStart(models.Snippet{ID: "a", Topic: "closures"})
	l.LogVerdict(passed("a"), models.ExecutionResult{})
	l.LogVerdict(failed("b"), models.ExecutionResult{})

	out := buf.String()
	assert.Contains(t, out, "Starting run run-42: 2 snippets (parallel: 1)")
	assert.NotContains(t, out, "Running a", "snippet start is debug level")
	assert.NotContains(t, out, "a: PASSED", "passing verdicts are debug level")
	assert.Contains(t, out, "b: FAILED (0ms) [====================] 2/2 (100%)")
	assert.Contains(t, out, "  error: TypeError: bad")
	assert.Contains(t, out, "  uncaught TypeError: bad")
	assert.NotContains(t, out, "--- expected")
}

func TestConsoleLogger_TraceIncludesOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(&buf, "trace")

	l.LogSnippetStart(models.Snippet{ID: "a", Topic: "closures"})
	l.LogVerdict(passed("a"), models.ExecutionResult{Output: []string{"1", "2"}})

	out := buf.String()
	assert.Contains(t, out, "Running a (closures)")
	assert.Contains(t, out, "a: PASSED (12ms)")
	assert.Contains(t, out, "  > 1\n")
	assert.Contains(t, out, "  > 2\n")
}

func TestConsoleLogger_Summary(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(&buf, "info")

	rep := models.Report{
		TotalCount:      3,
		PassedCount:     1,
		FailedCount:     2,
		IncompleteCount: 1,
		Topics:          []string{"closures", "errors"},
		VerdictsByTopic: map[string][]models.Verdict{
			"closures": {passed("a")},
			"errors":   {failed("b"), {SnippetID: "c", Topic: "errors", Outcome: models.OutcomeIncomplete}},
		},
		Duration: 1500 * time.Millisecond,
	}
	l.LogSummary(rep)

	out := buf.String()
	assert.Contains(t, out, "=== Run Summary ===")
	assert.Contains(t, out, "Total snippets: 3")
	assert.Contains(t, out, "Passed: 1")
	assert.Contains(t, out, "Failed: 2")
	assert.Contains(t, out, "Incomplete: 1, Cancelled: 0")
	assert.Contains(t, out, "Duration: 1.5s")
	assert.Contains(t, out, "  - b (errors): failed")
	assert.Contains(t, out, "  - c (errors): incomplete")
}

func TestConsoleLogger_Color(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(&buf, "info")
	l.SetColor(true)
	l.LogVerdict(failed("b"), models.ExecutionResult{})
	assert.Contains(t, buf.String(), "\x1b[31mFAILED")

	buf.Reset()
	l.SetColor(false)
	l.LogVerdict(failed("b"), models.ExecutionResult{})
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0ms", formatDuration(0))
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	assert.Equal(t, "2.0s", formatDuration(2*time.Second))
	assert.Equal(t, "1m", formatDuration(time.Minute))
	assert.Equal(t, "1m30s", formatDuration(90*time.Second))
}

func TestIsValidLevel(t *testing.T) {
	assert.True(t, IsValidLevel("Debug"))
	assert.True(t, IsValidLevel(" warn "))
	assert.False(t, IsValidLevel("verbose"))
	assert.False(t, IsValidLevel(""))
}
