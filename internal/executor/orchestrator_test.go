package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/snippetcheck/internal/models"
)

type recordingLogger struct {
	mu       sync.Mutex
	runID    string
	started  []string
	verdicts []string
	summary  *models.Report
}

func (l *recordingLogger) LogRunStart(runID string, total, parallel int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.runID = runID
}

func (l *recordingLogger) LogSnippetStart(snippet models.Snippet) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = append(l.started, snippet.ID)
}

func (l *recordingLogger) LogVerdict(v models.Verdict, _ models.ExecutionResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.verdicts = append(l.verdicts, v.SnippetID)
}

func (l *recordingLogger) LogSummary(rep models.Report) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.summary = &rep
}

func snippet(index int, id, topic, source string, expected ...string) models.Snippet {
	return models.Snippet{ID: id, Topic: topic, Index: index, Source: source, ExpectedOutput: expected}
}

func tutorialSnippets() []models.Snippet {
	return []models.Snippet{
		snippet(0, "closure1", "closures", `
function createCounter() {
	let count = 0;
	return function () { count++; return count; };
}
const counter = createCounter();
console.log(counter());
console.log(counter());`, "1", "2"),
		{ID: "err1", Topic: "errors", Index: 1, Source: `throw "Oops";`, AllowError: true, ExpectedOutput: []string{"Oops"}},
		snippet(2, "timers1", "event-loop", `
console.log("start");
setTimeout(() => console.log("timeout"), 0);
Promise.resolve().then(() => console.log("promise"));
console.log("end");`, "start", "end", "promise", "timeout"),
		snippet(3, "closure2", "closures", `console.log([1, 2, 3].map(x => x * 2));`, "[ 2, 4, 6 ]"),
		snippet(4, "wrong1", "errors", `console.log("actual");`, "expected"),
	}
}

func newTestExecutor(t *testing.T) *SnippetExecutor {
	t.Helper()
	exec, err := NewDefaultExecutor(2 * time.Second)
	require.NoError(t, err)
	return exec
}

func TestOrchestrator_TutorialExamples(t *testing.T) {
	logger := &recordingLogger{}
	orch := NewOrchestrator(newTestExecutor(t), logger, Options{RunID: "run-1"})

	rep, err := orch.Run(context.Background(), tutorialSnippets())
	require.NoError(t, err)

	assert.Equal(t, "run-1", rep.RunID)
	assert.Equal(t, 5, rep.TotalCount)
	assert.Equal(t, 4, rep.PassedCount)
	assert.Equal(t, 1, rep.FailedCount)
	assert.Equal(t, []string{"closures", "errors", "event-loop"}, rep.Topics)

	closures := rep.VerdictsByTopic["closures"]
	require.Len(t, closures, 2)
	assert.Equal(t, "closure1", closures[0].SnippetID)
	assert.True(t, closures[0].Passed)

	errs := rep.VerdictsByTopic["errors"]
	require.Len(t, errs, 2)
	assert.True(t, errs[0].Passed, "err1: %s", errs[0].Detail)
	assert.False(t, errs[1].Passed)
	assert.Contains(t, errs[1].Detail, "-expected")
	assert.Contains(t, errs[1].Detail, "+actual")

	assert.Equal(t, "run-1", logger.runID)
	assert.Len(t, logger.started, 5)
	assert.Len(t, logger.verdicts, 5)
	require.NotNil(t, logger.summary)
	assert.Equal(t, rep.TotalCount, logger.summary.TotalCount)
}

func TestOrchestrator_ParallelMatchesSequential(t *testing.T) {
	snippets := tutorialSnippets()
	for i := 0; i < 10; i++ {
		snippets = append(snippets, snippet(len(snippets), fmt.Sprintf("extra%d", i), "extra",
			fmt.Sprintf(`setTimeout(() => console.log(%d), %d);`, i, 10-i), fmt.Sprint(i)))
	}

	seq, err := NewOrchestrator(newTestExecutor(t), nil, Options{RunID: "r"}).Run(context.Background(), snippets)
	require.NoError(t, err)
	par, err := NewOrchestrator(newTestExecutor(t), nil, Options{RunID: "r", Parallel: 4}).Run(context.Background(), snippets)
	require.NoError(t, err)

	assert.Equal(t, stripDurations(*seq), stripDurations(*par))
}

func stripDurations(rep models.Report) models.Report {
	rep.Duration = 0
	byTopic := make(map[string][]models.Verdict, len(rep.VerdictsByTopic))
	for topic, vs := range rep.VerdictsByTopic {
		out := make([]models.Verdict, len(vs))
		for i, v := range vs {
			v.Duration = 0
			out[i] = v
		}
		byTopic[topic] = out
	}
	rep.VerdictsByTopic = byTopic
	return rep
}

func TestOrchestrator_TimeoutIsIncomplete(t *testing.T) {
	snippets := []models.Snippet{
		{ID: "spin", Topic: "loops", Source: `console.log("go"); for (;;) {}`, Timeout: 100 * time.Millisecond, ExpectedOutput: []string{"go"}},
		{ID: "after", Topic: "loops", Index: 1, Source: `console.log("ok")`, ExpectedOutput: []string{"ok"}},
	}

	rep, err := NewOrchestrator(newTestExecutor(t), nil, Options{}).Run(context.Background(), snippets)
	require.NoError(t, err)

	assert.Equal(t, 1, rep.PassedCount)
	assert.Equal(t, 1, rep.FailedCount)
	assert.Equal(t, 1, rep.IncompleteCount)
	v := rep.VerdictsByTopic["loops"][0]
	assert.Equal(t, models.OutcomeIncomplete, v.Outcome)
}

// blockingExecutor blocks on the snippet named block until ctx is cancelled.
type blockingExecutor struct {
	block   string
	started chan struct{}
}

func (b *blockingExecutor) Run(ctx context.Context, s models.Snippet) (models.ExecutionResult, error) {
	if s.ID != b.block {
		return models.ExecutionResult{SnippetID: s.ID, Output: s.ExpectedOutput, Status: models.StatusCompleted}, nil
	}
	close(b.started)
	<-ctx.Done()
	return models.ExecutionResult{SnippetID: s.ID, Status: models.StatusCancelled}, NewCancelledError(s.ID, ctx)
}

func TestOrchestrator_CancellationRecordsEverySnippet(t *testing.T) {
	exec := &blockingExecutor{block: "b", started: make(chan struct{})}
	snippets := []models.Snippet{
		snippet(0, "a", "t", "x", "a"),
		snippet(1, "b", "t", "x", "b"),
		snippet(2, "c", "t", "x", "c"),
		snippet(3, "d", "t", "x", "d"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-exec.started
		cancel()
	}()

	rep, err := NewOrchestrator(exec, nil, Options{}).Run(ctx, snippets)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	assert.Equal(t, 4, rep.TotalCount)
	assert.Equal(t, 1, rep.PassedCount)
	assert.Equal(t, 3, rep.CancelledCount)
	verdicts := rep.VerdictsByTopic["t"]
	require.Len(t, verdicts, 4)
	assert.Equal(t, models.OutcomePassed, verdicts[0].Outcome)
	for _, v := range verdicts[1:] {
		assert.Equal(t, models.OutcomeCancelled, v.Outcome, v.SnippetID)
	}
}

type unknownCatalog struct{}

func (unknownCatalog) Has(id string) bool { return id != "ghost" }

func TestOrchestrator_RecordErrorsReturned(t *testing.T) {
	exec := &blockingExecutor{block: "none"}
	snippets := []models.Snippet{snippet(0, "real", "t", "x", "1"), snippet(1, "ghost", "t", "x", "2")}

	rep, err := NewOrchestrator(exec, nil, Options{Catalog: unknownCatalog{}}).Run(context.Background(), snippets)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
	assert.Equal(t, 1, rep.TotalCount)
}

func TestOrchestrator_UnsupportedLanguageFails(t *testing.T) {
	snippets := []models.Snippet{{ID: "py", Topic: "t", Language: "python", Source: "print(1)", ExpectedOutput: []string{"1"}}}

	rep, err := NewOrchestrator(newTestExecutor(t), nil, Options{}).Run(context.Background(), snippets)
	require.NoError(t, err)
	require.Equal(t, 1, rep.FailedCount)
	v := rep.VerdictsByTopic["t"][0]
	assert.Equal(t, models.OutcomeFailed, v.Outcome)
	assert.Contains(t, v.Error, "unsupported language")
}

func TestOrchestrator_EmptyRun(t *testing.T) {
	rep, err := NewOrchestrator(newTestExecutor(t), nil, Options{Parallel: 3}).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.TotalCount)
	assert.True(t, rep.AllPassed())
}
