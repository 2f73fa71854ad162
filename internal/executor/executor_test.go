package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/snippetcheck/internal/comparator"
	"github.com/harrison/snippetcheck/internal/models"
)

func TestSnippetExecutor_TutorialSnippetsPass(t *testing.T) {
	tests := []struct {
		name    string
		snippet models.Snippet
		kind    string
	}{
		{
			name: "closure counter",
			snippet: models.Snippet{
				ID:    "closure1",
				Topic: "closures",
				Source: `function outer() {
  let count = 0;
  return function inner() { count++; return count; };
}
const counter = outer();
console.log(counter());
console.log(counter());`,
				ExpectedOutput: []string{"1", "2"},
			},
		},
		{
			name: "thrown string",
			snippet: models.Snippet{
				ID:             "err1",
				Topic:          "error handling",
				Source:         `throw "Oops";`,
				ExpectedOutput: []string{"Oops"},
				AllowError:     true,
			},
			kind: "Uncaught",
		},
		{
			name: "thrown error",
			snippet: models.Snippet{
				ID:             "err2",
				Topic:          "error handling",
				Source:         `console.log("before"); throw new Error("Oops");`,
				ExpectedOutput: []string{"before", "Oops"},
				AllowError:     true,
			},
			kind: "Error",
		},
		{
			name: "collections",
			snippet: models.Snippet{
				ID:    "collections1",
				Topic: "collections",
				Source: `console.log(new Set([1, 2, 3]));
console.log(new Map([["key", "value"]]));`,
				ExpectedOutput: []string{"Set(3) { 1, 2, 3 }", "Map(1) { 'key' => 'value' }"},
			},
		},
	}

	exec, err := NewDefaultExecutor(0)
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := exec.Run(context.Background(), tt.snippet)
			require.NoError(t, err)
			assert.Equal(t, models.StatusCompleted, res.Status)
			if tt.kind == "" {
				assert.Nil(t, res.RaisedError)
			} else {
				require.NotNil(t, res.RaisedError)
				assert.Equal(t, tt.kind, res.RaisedError.Kind)
				assert.Equal(t, "Oops", res.RaisedError.Message)
			}

			v := comparator.Compare(tt.snippet, res)
			assert.True(t, v.Passed, "verdict detail: %s", v.Detail)
			assert.Equal(t, models.OutcomePassed, v.Outcome)
			assert.Empty(t, v.Diff)
		})
	}
}

func TestSnippetExecutor_UnknownLanguage(t *testing.T) {
	exec, err := NewDefaultExecutor(0)
	require.NoError(t, err)

	_, err = exec.Run(context.Background(), models.Snippet{ID: "py", Language: "python", Source: "print(1)"})
	require.Error(t, err)
	assert.True(t, IsSnippetError(err), "unexpected error type: %v", err)
}
