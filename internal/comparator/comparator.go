// Package comparator turns execution results into verdicts by diffing the
// captured output against a snippet's expected output.
package comparator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/harrison/snippetcheck/internal/models"
)

// Detail messages for verdicts that fail without a line diff.
const (
	DetailNoError    = "expected an error but none was raised"
	DetailIncomplete = "execution did not finish within its time budget"
	DetailCancelled  = "execution was cancelled"
)

// Compare decides whether result satisfies snippet's expectation.
//
// When the snippet allows an error, the raised error's message is appended as
// the final actual line before comparing; a run that raised nothing fails.
// When it does not, any raised error fails the snippet. Incomplete and
// cancelled runs never pass.
func Compare(snippet models.Snippet, result models.ExecutionResult) models.Verdict {
	v := models.Verdict{
		SnippetID: snippet.ID,
		Topic:     snippet.Topic,
		Index:     snippet.Index,
		Duration:  result.Duration,
		Outcome:   models.OutcomeFailed,
	}
	if result.RaisedError != nil {
		v.Error = result.RaisedError.String()
	}

	switch result.Status {
	case models.StatusIncomplete:
		v.Outcome = models.OutcomeIncomplete
		v.Detail = DetailIncomplete
		if result.PendingTasks > 0 {
			v.Detail += fmt.Sprintf(" (%d deferred task(s) pending)", result.PendingTasks)
		}
		return v
	case models.StatusCancelled:
		v.Outcome = models.OutcomeCancelled
		v.Detail = DetailCancelled
		return v
	}

	mode := snippet.EffectiveMatch()
	actual := result.Output
	if snippet.AllowError {
		if result.RaisedError == nil {
			v.Diff = DiffLines(snippet.ExpectedOutput, actual, mode)
			v.Detail = DetailNoError
			return v
		}
		actual = append(append([]string(nil), actual...), result.RaisedError.Message)
	} else if result.RaisedError != nil {
		v.Diff = DiffLines(snippet.ExpectedOutput, actual, mode)
		v.Detail = "uncaught " + result.RaisedError.String()
		if len(v.Diff) > 0 {
			v.Detail += "\n" + UnifiedDiff(snippet.ExpectedOutput, actual)
		}
		return v
	}

	v.Diff = DiffLines(snippet.ExpectedOutput, actual, mode)
	if len(v.Diff) == 0 {
		v.Passed = true
		v.Outcome = models.OutcomePassed
		return v
	}
	v.Detail = UnifiedDiff(snippet.ExpectedOutput, actual)
	return v
}

// Failure builds the verdict for a snippet the executor could not run at all.
func Failure(snippet models.Snippet, err error) models.Verdict {
	return models.Verdict{
		SnippetID: snippet.ID,
		Topic:     snippet.Topic,
		Index:     snippet.Index,
		Outcome:   models.OutcomeFailed,
		Detail:    "execution failed",
		Error:     err.Error(),
	}
}

// DiffLines compares expected and actual position by position and returns
// one Mismatch per differing line. An empty result means the outputs match.
func DiffLines(expected, actual []string, mode models.MatchMode) []models.Mismatch {
	var diff []models.Mismatch
	n := len(expected)
	if len(actual) > n {
		n = len(actual)
	}
	for i := 0; i < n; i++ {
		switch {
		case i >= len(actual):
			diff = append(diff, models.Mismatch{Line: i + 1, Kind: models.MismatchMissing, Expected: expected[i]})
		case i >= len(expected):
			diff = append(diff, models.Mismatch{Line: i + 1, Kind: models.MismatchExtra, Actual: actual[i]})
		case !lineMatches(expected[i], actual[i], mode):
			diff = append(diff, models.Mismatch{Line: i + 1, Kind: models.MismatchChanged, Expected: expected[i], Actual: actual[i]})
		}
	}
	return diff
}

func lineMatches(expected, actual string, mode models.MatchMode) bool {
	if mode != models.MatchPattern || !strings.Contains(expected, "*") {
		return expected == actual
	}
	return patternFor(expected).MatchString(actual)
}

// patternFor compiles an expected line whose '*' characters match any run of
// characters; everything else matches literally.
func patternFor(expected string) *regexp.Regexp {
	parts := strings.Split(expected, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile("^" + strings.Join(parts, ".*") + "$")
}

// UnifiedDiff renders expected vs. actual as a unified diff.
func UnifiedDiff(expected, actual []string) string {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        withNewlines(expected),
		B:        withNewlines(actual),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return strings.TrimRight(text, "\n")
}

func withNewlines(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l + "\n"
	}
	return out
}
