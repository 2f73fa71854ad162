package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/snippetcheck/internal/catalog"
	"github.com/harrison/snippetcheck/internal/models"
)

type fakeCatalog map[string]bool

func (c fakeCatalog) Has(id string) bool { return c[id] }

func verdict(id, topic string, index int, outcome models.Outcome) models.Verdict {
	return models.Verdict{
		SnippetID: id,
		Topic:     topic,
		Index:     index,
		Passed:    outcome == models.OutcomePassed,
		Outcome:   outcome,
		Duration:  time.Millisecond,
	}
}

func TestReporter_CountsAndOrdering(t *testing.T) {
	r := NewReporter(WithRunID("run-1"))
	recorded := []models.Verdict{
		verdict("promise1", "promises", 3, models.OutcomeFailed),
		verdict("closure2", "closures", 1, models.OutcomePassed),
		verdict("var1", "variables", 0, models.OutcomePassed),
		verdict("timer1", "promises", 4, models.OutcomeIncomplete),
		verdict("closure1", "closures", 2, models.OutcomeCancelled),
	}
	for _, v := range recorded {
		require.NoError(t, r.Record(v))
	}

	rep := r.Finalize()
	assert.Equal(t, "run-1", rep.RunID)
	assert.Equal(t, 5, rep.TotalCount)
	assert.Equal(t, 2, rep.PassedCount)
	assert.Equal(t, 3, rep.FailedCount)
	assert.Equal(t, 1, rep.IncompleteCount)
	assert.Equal(t, 1, rep.CancelledCount)
	assert.Equal(t, []string{"variables", "closures", "promises"}, rep.Topics)

	var ids []string
	for _, v := range rep.VerdictsByTopic["closures"] {
		ids = append(ids, v.SnippetID)
	}
	assert.Equal(t, []string{"closure2", "closure1"}, ids)

	total := 0
	for _, vs := range rep.VerdictsByTopic {
		total += len(vs)
	}
	assert.Equal(t, rep.TotalCount, total)
	assert.Equal(t, rep.TotalCount, rep.PassedCount+rep.FailedCount)
}

func TestReporter_OrderIndependent(t *testing.T) {
	vs := []models.Verdict{
		verdict("a", "x", 0, models.OutcomePassed),
		verdict("b", "y", 1, models.OutcomeFailed),
		verdict("c", "x", 2, models.OutcomePassed),
		verdict("d", "z", 3, models.OutcomeIncomplete),
	}

	forward := NewReporter(WithRunID("r"))
	backward := NewReporter(WithRunID("r"))
	for i := range vs {
		require.NoError(t, forward.Record(vs[i]))
		require.NoError(t, backward.Record(vs[len(vs)-1-i]))
	}

	a, b := forward.Finalize(), backward.Finalize()
	a.Duration, b.Duration = 0, 0
	assert.Equal(t, a, b)
}

func TestReporter_FinalizeIsIdempotent(t *testing.T) {
	r := NewReporter()
	require.NoError(t, r.Record(verdict("a", "x", 0, models.OutcomePassed)))

	first := r.Finalize()
	first.Topics[0] = "mutated"
	second := r.Finalize()

	assert.Equal(t, []string{"x"}, second.Topics)
	assert.Equal(t, second, r.Finalize())
	assert.Equal(t, r.RunID(), second.RunID)
}

func TestReporter_RecordAfterFinalize(t *testing.T) {
	r := NewReporter()
	r.Finalize()
	err := r.Record(verdict("a", "x", 0, models.OutcomePassed))
	assert.ErrorIs(t, err, ErrFinalized)
}

func TestReporter_RejectsUnknownSnippet(t *testing.T) {
	r := NewReporter(WithCatalog(fakeCatalog{"known": true}))
	require.NoError(t, r.Record(verdict("known", "x", 0, models.OutcomePassed)))

	err := r.Record(verdict("ghost", "x", 1, models.OutcomePassed))
	var nf *catalog.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "ghost", nf.ID)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	assert.Equal(t, 1, r.Len())
}

func TestReporter_RejectsDuplicate(t *testing.T) {
	r := NewReporter()
	require.NoError(t, r.Record(verdict("a", "x", 0, models.OutcomePassed)))
	err := r.Record(verdict("a", "x", 0, models.OutcomeFailed))
	var dup *DuplicateVerdictError
	assert.True(t, errors.As(err, &dup))
}

func TestReporter_EmptyReport(t *testing.T) {
	rep := NewReporter().Finalize()
	assert.Equal(t, 0, rep.TotalCount)
	assert.NotNil(t, rep.Topics)
	assert.NotEmpty(t, rep.RunID)
	assert.True(t, rep.AllPassed())
}

func TestReporter_ConcurrentRecord(t *testing.T) {
	r := NewReporter()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, r.Record(verdict(fmt.Sprintf("s%02d", i), fmt.Sprintf("t%d", i%3), i, models.OutcomePassed)))
		}(i)
	}
	wg.Wait()

	rep := r.Finalize()
	assert.Equal(t, 50, rep.TotalCount)
	assert.Equal(t, []string{"t0", "t1", "t2"}, rep.Topics)
	for _, vs := range rep.VerdictsByTopic {
		for i := 1; i < len(vs); i++ {
			assert.Less(t, vs[i-1].Index, vs[i].Index)
		}
	}
}

func sampleReport() models.Report {
	r := NewReporter(WithRunID("run-42"))
	pass := verdict("closure1", "closures", 0, models.OutcomePassed)
	fail := verdict("closure2", "closures", 1, models.OutcomeFailed)
	fail.Diff = []models.Mismatch{{Line: 2, Kind: models.MismatchChanged, Expected: "2", Actual: "3"}}
	fail.Detail = "--- expected\n+++ actual"
	slow := verdict("timer1", "event loop", 2, models.OutcomeIncomplete)
	slow.Detail = "execution did not finish within its time budget"
	for _, v := range []models.Verdict{pass, fail, slow} {
		if err := r.Record(v); err != nil {
			panic(err)
		}
	}
	return r.Finalize()
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleReport(), TextOptions{}))
	out := buf.String()

	assert.Contains(t, out, "closures  1/2 passed")
	assert.Contains(t, out, "event loop  0/1 passed")
	assert.Contains(t, out, "FAIL closure2")
	assert.Contains(t, out, `line 2: expected "2", got "3"`)
	assert.Contains(t, out, "TIME timer1")
	assert.Contains(t, out, "execution did not finish within its time budget")
	assert.NotContains(t, out, "PASS closure1")
	assert.Contains(t, out, "FAILED: 3 snippets, 1 passed, 2 failed (1 incomplete, 0 cancelled)")
	assert.NotContains(t, out, "\x1b[")
}

func TestWriteText_VerboseAndColor(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleReport(), TextOptions{Verbose: true, Color: true}))
	out := buf.String()

	assert.Contains(t, out, "closure1")
	assert.Contains(t, out, "--- expected")
	assert.Contains(t, out, "\x1b[")
}

func TestWriteText_AllPassed(t *testing.T) {
	r := NewReporter()
	require.NoError(t, r.Record(verdict("a", "basics", 0, models.OutcomePassed)))
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, r.Finalize(), TextOptions{}))
	assert.Contains(t, buf.String(), "OK: 1 snippets, 1 passed, 0 failed")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleReport()))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-42", decoded["run_id"])
	assert.Equal(t, float64(3), decoded["total"])
	assert.Equal(t, float64(2), decoded["failed"])
	assert.Equal(t, []interface{}{"closures", "event loop"}, decoded["topics"])

	verdicts, ok := decoded["verdicts"].([]interface{})
	require.True(t, ok)
	require.Len(t, verdicts, 3)
	first := verdicts[0].(map[string]interface{})
	assert.Equal(t, "closure1", first["snippet_id"])
	assert.Equal(t, float64(1), first["duration_ms"])
}

func TestWriteJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "latest.json")
	require.NoError(t, WriteJSONFile(path, sampleReport()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_id": "run-42"`)
}
