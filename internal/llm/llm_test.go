package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/tracker/internal/models"
)

type fakeCompleter struct {
	reply  string
	err    error
	calls  int
	system string
	user   string
}

func (f *fakeCompleter) Complete(_ context.Context, system, user string) (string, error) {
	f.calls++
	f.system, f.user = system, user
	return f.reply, f.err
}

var existing = []*models.Issue{
	{ID: "01A", Title: "Login fails on Safari"},
	{ID: "01B", Title: "Add dark mode"},
}

func TestBuildSimilarPrompt(t *testing.T) {
	system, user := buildSimilarPrompt("Can't log in with Safari", existing)

	assert.Contains(t, system, `"match"`)
	assert.Contains(t, system, "JSON object")
	assert.Contains(t, user, "New issue title: Can't log in with Safari")
	assert.Contains(t, user, `- id=01A title="Login fails on Safari"`)
	assert.Contains(t, user, `- id=01B title="Add dark mode"`)
}

func TestStripFence(t *testing.T) {
	assert.Equal(t, `{"match":""}`, stripFence("```json\n{\"match\":\"\"}\n```"))
	assert.Equal(t, `{"match":"x"}`, stripFence("  {\"match\":\"x\"}\n"))
}

func TestSimilarTitleFinder(t *testing.T) {
	ctx := context.Background()

	t.Run("exact match skips the model", func(t *testing.T) {
		fc := &fakeCompleter{}
		got, err := NewSimilarTitleFinder(fc).FindDuplicate(ctx, " add DARK mode", existing)
		require.NoError(t, err)
		assert.Equal(t, "01B", got.ID)
		assert.Zero(t, fc.calls)
	})

	t.Run("empty collection skips the model", func(t *testing.T) {
		fc := &fakeCompleter{}
		got, err := NewSimilarTitleFinder(fc).FindDuplicate(ctx, "anything", nil)
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.Zero(t, fc.calls)
	})

	t.Run("model match", func(t *testing.T) {
		fc := &fakeCompleter{reply: "```json\n{\"match\": \"01A\"}\n```"}
		got, err := NewSimilarTitleFinder(fc).FindDuplicate(ctx, "Can't log in with Safari", existing)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Login fails on Safari", got.Title)
		assert.Equal(t, 1, fc.calls)
	})

	t.Run("no match", func(t *testing.T) {
		fc := &fakeCompleter{reply: `{"match": ""}`}
		got, err := NewSimilarTitleFinder(fc).FindDuplicate(ctx, "Export to CSV", existing)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("unknown id is ignored", func(t *testing.T) {
		fc := &fakeCompleter{reply: `{"match": "01Z"}`}
		got, err := NewSimilarTitleFinder(fc).FindDuplicate(ctx, "Export to CSV", existing)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("errors surface", func(t *testing.T) {
		fc := &fakeCompleter{err: errors.New("rate limited")}
		_, err := NewSimilarTitleFinder(fc).FindDuplicate(ctx, "Export to CSV", existing)
		assert.Error(t, err)

		fc = &fakeCompleter{reply: "not json"}
		_, err = NewSimilarTitleFinder(fc).FindDuplicate(ctx, "Export to CSV", existing)
		assert.ErrorContains(t, err, "parse LLM response")
	})
}
