package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/snippetcheck/internal/config"
)

const passingCatalog = `topic: closures
snippets:
  - id: closure1
    description: counter keeps private state
    source: |
      function makeCounter() {
        let count = 0;
        return () => ++count;
      }
      const next = makeCounter();
      console.log(next());
      console.log(next());
    expected_output: ["1", "2"]
  - id: err1
    topic: errors
    source: |
      try { throw new Error("Oops"); } catch (e) { console.log(e.message); }
    expected_output: ["Oops"]
`

const failingCatalog = `topic: operators
snippets:
  - id: wrong1
    source: console.log(1 + "1");
    expected_output: ["2"]
`

// setup isolates the project directory and returns it.
func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.HomeEnv, dir)
	t.Setenv("NO_COLOR", "1")
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func execute(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := Execute(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	root := NewRootCommand()
	assert.Equal(t, "snippetcheck", root.Use)

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"run", "validate", "list", "history"} {
		assert.Contains(t, names, want)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"failed run", &ExitError{Code: ExitFailed, Err: errSnippetsFailed}, ExitFailed},
		{"wrapped exit error", fmt.Errorf("outer: %w", usageError(errors.New("bad"))), ExitUsage},
		{"plain error", errors.New("unknown flag"), ExitUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestExitError_Message(t *testing.T) {
	assert.Equal(t, "exit status 1", (&ExitError{Code: 1}).Error())
	inner := errors.New("boom")
	err := &ExitError{Code: 2, Err: inner}
	assert.Equal(t, "boom", err.Error())
	assert.ErrorIs(t, err, inner)
}

func TestRun_AllPassExitsZero(t *testing.T) {
	dir := setup(t)
	path := writeFile(t, dir, "closures.yaml", passingCatalog)

	code, stdout, stderr := execute("run", path, "--no-history")
	assert.Equal(t, ExitOK, code, "stderr: %s", stderr)
	assert.Contains(t, stdout, "closures  1/1 passed")
	assert.Contains(t, stdout, "errors  1/1 passed")
	assert.Contains(t, stdout, "OK: 2 snippets, 2 passed, 0 failed")
	assert.NotContains(t, stderr, "Error:")
}

func TestRun_FailureExitsOne(t *testing.T) {
	dir := setup(t)
	path := writeFile(t, dir, "ops.yaml", failingCatalog)

	code, stdout, stderr := execute("run", path, "--no-history", "--log-dir", "")
	assert.Equal(t, ExitFailed, code)
	assert.Contains(t, stdout, "FAIL wrong1")
	assert.Contains(t, stdout, "FAILED: 1 snippets, 0 passed, 1 failed")
	assert.NotContains(t, stderr, "Error:", "a failing run prints its report, not an error")
}

func TestRun_CatalogErrorsExitTwo(t *testing.T) {
	dir := setup(t)
	dup := `snippets:
  - id: same
    topic: a
    source: console.log(1);
    expected_output: ["1"]
  - id: same
    topic: a
    source: console.log(2);
    expected_output: ["2"]
`
	tests := []struct {
		name string
		path string
		want string
	}{
		{"duplicate id", writeFile(t, dir, "dup.yaml", dup), "same"},
		{"missing file", filepath.Join(dir, "nope.yaml"), "nope.yaml"},
		{"malformed yaml", writeFile(t, dir, "bad.yaml", "snippets: [unclosed"), "bad.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := execute("run", tt.path, "--no-history")
			assert.Equal(t, ExitUsage, code)
			assert.Empty(t, stdout, "no snippet runs against a broken catalog")
			assert.Contains(t, stderr, tt.want)
		})
	}
}

func TestRun_InvalidConfigExitsTwo(t *testing.T) {
	dir := setup(t)
	path := writeFile(t, dir, "closures.yaml", passingCatalog)

	code, _, stderr := execute("run", path, "--no-history", "--color", "sometimes")
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, stderr, "invalid configuration")

	cfgPath := writeFile(t, dir, "cfg.yaml", "parallel: 0\n")
	code, _, stderr = execute("run", path, "--no-history", "--config", cfgPath)
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, stderr, "parallel must be >= 1")
}

func TestRun_TopicFilter(t *testing.T) {
	dir := setup(t)
	path := writeFile(t, dir, "closures.yaml", passingCatalog)

	code, stdout, _ := execute("run", path, "--no-history", "--topic", "errors")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, stdout, "OK: 1 snippets, 1 passed, 0 failed")
	assert.NotContains(t, stdout, "closures")

	code, _, stderr := execute("run", path, "--no-history", "--topic", "generators")
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, stderr, `no snippets with topic "generators"`)
}

func TestRun_ParallelMatchesSequential(t *testing.T) {
	dir := setup(t)
	path := writeFile(t, dir, "closures.yaml", passingCatalog+strings.TrimPrefix(failingCatalog, "topic: operators\nsnippets:\n"))
	seqJSON := filepath.Join(dir, "seq.json")
	parJSON := filepath.Join(dir, "par.json")

	code, _, _ := execute("run", path, "--no-history", "--json", seqJSON)
	assert.Equal(t, ExitFailed, code)
	code, _, _ = execute("run", path, "--no-history", "--parallel", "3", "--json", parJSON)
	assert.Equal(t, ExitFailed, code)

	outcomes := func(p string) map[string]string {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		var doc struct {
			Verdicts []struct {
				SnippetID string `json:"snippet_id"`
				Outcome   string `json:"outcome"`
			} `json:"verdicts"`
		}
		require.NoError(t, json.Unmarshal(data, &doc))
		out := make(map[string]string)
		for _, v := range doc.Verdicts {
			out[v.SnippetID] = v.Outcome
		}
		return out
	}
	seq := outcomes(seqJSON)
	assert.Equal(t, map[string]string{"closure1": "passed", "err1": "passed", "wrong1": "failed"}, seq)
	assert.Equal(t, seq, outcomes(parJSON))
}

func TestRun_TimeoutIsIncomplete(t *testing.T) {
	dir := setup(t)
	path := writeFile(t, dir, "slow.yaml", `topic: event-loop
snippets:
  - id: slow1
    source: setTimeout(() => console.log("late"), 5000);
    expected_output: ["late"]
`)

	code, stdout, _ := execute("run", path, "--no-history", "--timeout-ms", "100")
	assert.Equal(t, ExitFailed, code)
	assert.Contains(t, stdout, "TIME slow1")
	assert.Contains(t, stdout, "(1 incomplete, 0 cancelled)")
}

func TestRun_WritesLogsAndHistory(t *testing.T) {
	dir := setup(t)
	path := writeFile(t, dir, "closures.yaml", passingCatalog)

	code, _, stderr := execute("run", path)
	require.Equal(t, ExitOK, code, "stderr: %s", stderr)

	logDir := filepath.Join(dir, config.DirName, "logs")
	latest, err := os.Readlink(filepath.Join(logDir, "latest.log"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(latest, "run-"))
	assert.FileExists(t, filepath.Join(logDir, "snippets", "closure1.log"))

	code, stdout, _ := execute("history")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, stdout, "2/2 passed")
	assert.Contains(t, stdout, path)

	code, stdout, _ = execute("history", "--snippet", "closure1")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, stdout, "History for closure1 (closures)")
	assert.Contains(t, stdout, "passed")

	code, stdout, _ = execute("history", "--stats")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, stdout, "100.0%")
}

func TestRun_NoHistorySkipsDatabase(t *testing.T) {
	dir := setup(t)
	path := writeFile(t, dir, "closures.yaml", passingCatalog)

	code, _, _ := execute("run", path, "--no-history")
	require.Equal(t, ExitOK, code)
	assert.NoFileExists(t, filepath.Join(dir, config.DirName, "history.db"))

	code, stdout, _ := execute("history")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, stdout, "No run history found")
}

func TestHistory_RejectsConflictingFlags(t *testing.T) {
	setup(t)
	code, _, stderr := execute("history", "--snippet", "x", "--stats")
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, stderr, "cannot be combined")
}

func TestValidate(t *testing.T) {
	dir := setup(t)
	good := writeFile(t, dir, "good.yaml", passingCatalog)

	code, stdout, _ := execute("validate", good)
	assert.Equal(t, ExitOK, code)
	assert.Equal(t, "Catalog valid: 2 snippets in 2 topics\n", stdout)

	bad := writeFile(t, dir, "bad.yaml", `snippets:
  - id: nosource
    topic: a
`)
	code, _, stderr := execute("validate", bad)
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, stderr, "nosource")
}

func TestValidate_DuplicateAcrossFiles(t *testing.T) {
	dir := setup(t)
	first := writeFile(t, dir, "a.yaml", passingCatalog)
	second := writeFile(t, dir, "b.yaml", `topic: other
snippets:
  - id: closure1
    source: console.log(1);
    expected_output: ["1"]
`)
	code, _, stderr := execute("validate", first, second)
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, stderr, "closure1")
}

func TestList(t *testing.T) {
	dir := setup(t)
	path := writeFile(t, dir, "closures.yaml", passingCatalog+`  - id: browser1
    topic: errors
    allow_error: true
    source: document.title;
    expected_output: []
`)

	code, stdout, _ := execute("list", path)
	require.Equal(t, ExitOK, code)
	assert.Equal(t, `closures (1)
  closure1 - counter keeps private state

errors (2)
  err1
  browser1 [allows error]
`, stdout)

	code, stdout, _ = execute("list", path, "--topic", "closures")
	require.Equal(t, ExitOK, code)
	assert.NotContains(t, stdout, "errors")
}

func TestList_MarkdownCatalog(t *testing.T) {
	dir := setup(t)
	path := writeFile(t, dir, "timers.md", "# Event Loop\n\n## timers1\n\n**Timeout**: 500ms\n\n```js\nsetTimeout(() => console.log(\"b\"), 0);\nconsole.log(\"a\");\n```\n\n```output\na\nb\n```\n")

	code, stdout, stderr := execute("list", path)
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, "timers1 [timeout 500ms]")

	code, stdout, stderr = execute("run", path, "--no-history")
	assert.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, "1 passed")
}

func TestResolveColor(t *testing.T) {
	var buf bytes.Buffer
	assert.True(t, resolveColor(config.ColorAlways, &buf))
	assert.False(t, resolveColor(config.ColorNever, os.Stdout))
	assert.False(t, resolveColor(config.ColorAuto, &buf), "non-file writers never get color")
}

func TestRun_BundledExampleCatalog(t *testing.T) {
	setup(t)
	catalogDir, err := filepath.Abs(filepath.Join("..", "..", "examples", "catalog"))
	require.NoError(t, err)

	code, stdout, stderr := execute("validate", catalogDir)
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, "Catalog valid:")

	code, stdout, stderr = execute("run", catalogDir, "--no-history", "--parallel", "4")
	assert.Equal(t, ExitOK, code, "stdout:\n%s\nstderr:\n%s", stdout, stderr)
	assert.Contains(t, stdout, "OK:")
}
