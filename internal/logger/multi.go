package logger

import "github.com/harrison/snippetcheck/internal/models"

// RunLogger is the set of run events every logger in this package handles.
type RunLogger interface {
	LogRunStart(runID string, total, parallel int)
	LogSnippetStart(snippet models.Snippet)
	LogVerdict(verdict models.Verdict, result models.ExecutionResult)
	LogSummary(rep models.Report)
}

// Multi fans every event out to each logger in order. Nil entries are skipped.
type Multi []RunLogger

// LogRunStart implements RunLogger.
func (m Multi) LogRunStart(runID string, total, parallel int) {
	for _, l := range m {
		if l != nil {
			l.LogRunStart(runID, total, parallel)
		}
	}
}

// LogSnippetStart implements RunLogger.
func (m Multi) LogSnippetStart(snippet models.Snippet) {
	for _, l := range m {
		if l != nil {
			l.LogSnippetStart(snippet)
		}
	}
}

// LogVerdict implements RunLogger.
func (m Multi) LogVerdict(verdict models.Verdict, result models.ExecutionResult) {
	for _, l := range m {
		if l != nil {
			l.LogVerdict(verdict, result)
		}
	}
}

// LogSummary implements RunLogger.
func (m Multi) LogSummary(rep models.Report) {
	for _, l := range m {
		if l != nil {
			l.LogSummary(rep)
		}
	}
}
