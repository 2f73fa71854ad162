// Package report aggregates verdicts into a run Report and renders it.
package report

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/snippetcheck/internal/catalog"
	"github.com/harrison/snippetcheck/internal/models"
)

// ErrFinalized is returned by Record once Finalize has been called.
var ErrFinalized = errors.New("reporter already finalized")

// DuplicateVerdictError is returned when a snippet is recorded twice.
type DuplicateVerdictError struct {
	ID string
}

func (e *DuplicateVerdictError) Error() string {
	return fmt.Sprintf("verdict for snippet %q already recorded", e.ID)
}

// Catalog is the subset of the catalog store the reporter checks ids against.
type Catalog interface {
	Has(id string) bool
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithCatalog makes Record reject verdicts for snippets missing from c.
func WithCatalog(c Catalog) Option {
	return func(r *Reporter) { r.catalog = c }
}

// WithRunID sets the report's run id instead of a generated UUID.
func WithRunID(id string) Option {
	return func(r *Reporter) { r.runID = id }
}

// Reporter collects verdicts from any number of goroutines.
type Reporter struct {
	mu       sync.Mutex
	catalog  Catalog
	runID    string
	start    time.Time
	verdicts []models.Verdict
	seen     map[string]struct{}
	final    *models.Report
}

// NewReporter creates an empty reporter; the report duration is measured
// from this call.
func NewReporter(opts ...Option) *Reporter {
	r := &Reporter{
		start: time.Now(),
		seen:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.runID == "" {
		r.runID = uuid.NewString()
	}
	return r
}

// RunID returns the id the report will carry.
func (r *Reporter) RunID() string {
	return r.runID
}

// Record adds a verdict.
func (r *Reporter) Record(v models.Verdict) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.final != nil {
		return ErrFinalized
	}
	if r.catalog != nil && !r.catalog.Has(v.SnippetID) {
		return &catalog.NotFoundError{ID: v.SnippetID}
	}
	if _, dup := r.seen[v.SnippetID]; dup {
		return &DuplicateVerdictError{ID: v.SnippetID}
	}
	r.seen[v.SnippetID] = struct{}{}
	r.verdicts = append(r.verdicts, v)
	return nil
}

// Len returns the number of verdicts recorded so far.
func (r *Reporter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.verdicts)
}

// Finalize builds the Report. Topics appear in order of their first snippet
// in the catalog and verdicts within a topic in catalog order, regardless of
// the order they were recorded in. Later calls return an equal Report.
func (r *Reporter) Finalize() models.Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.final == nil {
		rep := build(r.verdicts)
		rep.RunID = r.runID
		rep.Duration = time.Since(r.start)
		r.final = &rep
	}
	return clone(*r.final)
}

func build(verdicts []models.Verdict) models.Report {
	ordered := make([]models.Verdict, len(verdicts))
	copy(ordered, verdicts)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Index < ordered[j].Index
	})

	rep := models.Report{
		Topics:          []string{},
		VerdictsByTopic: make(map[string][]models.Verdict),
	}
	for _, v := range ordered {
		if _, ok := rep.VerdictsByTopic[v.Topic]; !ok {
			rep.Topics = append(rep.Topics, v.Topic)
		}
		rep.VerdictsByTopic[v.Topic] = append(rep.VerdictsByTopic[v.Topic], v)

		rep.TotalCount++
		if v.Passed {
			rep.PassedCount++
			continue
		}
		rep.FailedCount++
		switch v.Outcome {
		case models.OutcomeIncomplete:
			rep.IncompleteCount++
		case models.OutcomeCancelled:
			rep.CancelledCount++
		}
	}
	return rep
}

func clone(rep models.Report) models.Report {
	out := rep
	out.Topics = append([]string{}, rep.Topics...)
	out.VerdictsByTopic = make(map[string][]models.Verdict, len(rep.VerdictsByTopic))
	for topic, vs := range rep.VerdictsByTopic {
		out.VerdictsByTopic[topic] = append([]models.Verdict(nil), vs...)
	}
	return out
}
