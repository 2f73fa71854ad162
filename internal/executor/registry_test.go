package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/snippetcheck/internal/models"
)

type stubModule struct {
	lang   string
	output []string
	budget time.Duration
}

func (m *stubModule) Language() string { return m.lang }

func (m *stubModule) Execute(_ context.Context, snippet models.Snippet, budget time.Duration) (models.ExecutionResult, error) {
	m.budget = budget
	return models.ExecutionResult{SnippetID: snippet.ID, Output: m.output, Status: models.StatusCompleted}, nil
}

func TestNewRegistry(t *testing.T) {
	_, err := NewRegistry()
	assert.Error(t, err)

	_, err = NewRegistry(nil)
	assert.Error(t, err)

	_, err = NewRegistry(&stubModule{lang: ""})
	assert.Error(t, err)

	_, err = NewRegistry(&stubModule{lang: "lua"}, &stubModule{lang: "LUA"})
	assert.ErrorContains(t, err, "duplicate")

	reg, err := NewRegistry(&stubModule{lang: "lua"}, NewJavaScriptModule())
	require.NoError(t, err)
	assert.Equal(t, []string{"javascript", "lua"}, reg.Languages())
}

func TestSnippetExecutor_Dispatch(t *testing.T) {
	lua := &stubModule{lang: "lua", output: []string{"from lua"}}
	reg, err := NewRegistry(lua)
	require.NoError(t, err)
	exec := NewSnippetExecutor(reg, 0)
	assert.Equal(t, DefaultTimeout, exec.DefaultTimeout())

	res, err := exec.Run(context.Background(), models.Snippet{ID: "l1", Language: "Lua", Source: "print(1)"})
	require.NoError(t, err)
	assert.Equal(t, []string{"from lua"}, res.Output)
	assert.Equal(t, DefaultTimeout, lua.budget)

	_, err = exec.Run(context.Background(), models.Snippet{ID: "l2", Language: "lua", Source: "x", Timeout: 250 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, lua.budget)
}

func TestSnippetExecutor_UnsupportedLanguage(t *testing.T) {
	reg, err := NewRegistry(NewJavaScriptModule())
	require.NoError(t, err)
	exec := NewSnippetExecutor(reg, time.Second)

	res, err := exec.Run(context.Background(), models.Snippet{ID: "py1", Language: "python", Source: "print(1)"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedLanguage))
	assert.True(t, IsSnippetError(err))
	assert.Equal(t, "py1", res.SnippetID)
}
