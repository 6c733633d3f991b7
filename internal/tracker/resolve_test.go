package tracker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/tracker/internal/models"
	"github.com/joescharf/tracker/internal/store"
)

func TestResolveIssue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := &models.Issue{ID: "01HAAA0001", Title: "A"}
	b := &models.Issue{ID: "01HAAB0002", Title: "B"}
	require.NoError(t, s.AddIssue(ctx, a))
	require.NoError(t, s.AddIssue(ctx, b))

	got, err := ResolveIssue(ctx, s, "01HAAA0001")
	require.NoError(t, err)
	assert.Equal(t, "A", got.Title)

	got, err = ResolveIssue(ctx, s, "01haab")
	require.NoError(t, err)
	assert.Equal(t, "B", got.Title)

	_, err = ResolveIssue(ctx, s, "01HAA")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ResolveIssue(ctx, s, "ZZZ")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = ResolveIssue(ctx, s, " ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
