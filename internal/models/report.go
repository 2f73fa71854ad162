package models

import "time"

// Report aggregates verdicts for a whole run.
// PassedCount + FailedCount always equals TotalCount; IncompleteCount and
// CancelledCount are the subsets of FailedCount with those outcomes.
type Report struct {
	RunID           string               `json:"run_id"`
	TotalCount      int                  `json:"total"`
	PassedCount     int                  `json:"passed"`
	FailedCount     int                  `json:"failed"`
	IncompleteCount int                  `json:"incomplete"`
	CancelledCount  int                  `json:"cancelled"`
	Topics          []string             `json:"topics"`
	VerdictsByTopic map[string][]Verdict `json:"verdicts_by_topic"`
	Duration        time.Duration        `json:"-"`
}

// AllPassed reports whether every verdict in the report passed.
func (r *Report) AllPassed() bool {
	return r.FailedCount == 0
}

// Verdicts returns every verdict in topic order, then catalog order.
func (r *Report) Verdicts() []Verdict {
	out := make([]Verdict, 0, r.TotalCount)
	for _, topic := range r.Topics {
		out = append(out, r.VerdictsByTopic[topic]...)
	}
	return out
}

// Failures returns the verdicts that did not pass, in report order.
func (r *Report) Failures() []Verdict {
	var out []Verdict
	for _, v := range r.Verdicts() {
		if !v.Passed {
			out = append(out, v)
		}
	}
	return out
}
