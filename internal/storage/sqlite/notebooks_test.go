package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evernotelocal/qstore/internal/types"
)

func TestPutNotebookAndFindRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := NewNotebookHandler(newTestPool(t))

	nb := &types.Notebook{Name: "Inbox", Default: true}
	require.NoError(t, h.PutNotebook(ctx, nb))
	require.NotEmpty(t, nb.LocalID)

	found, err := h.FindNotebookByLocalID(ctx, nb.LocalID)
	require.NoError(t, err)
	assert.Equal(t, "Inbox", found.Name)
	assert.True(t, found.Default)
}

func TestPutNotebookRejectsDuplicateNameInUserScope(t *testing.T) {
	ctx := context.Background()
	h := NewNotebookHandler(newTestPool(t))

	require.NoError(t, h.PutNotebook(ctx, &types.Notebook{Name: "Work"}))
	err := h.PutNotebook(ctx, &types.Notebook{Name: "Work"})
	require.Error(t, err)
}

func TestPutNotebookAllowsSameNameInDifferentLinkedNotebookScopes(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	h := NewNotebookHandler(pool)

	// Two different linked-notebook guids, same name, plus the user-own
	// scope, must all coexist: uniqueness is scoped per (name, scope).
	linkedA := "linked-guid-a"
	linkedB := "linked-guid-b"
	require.NoError(t, seedLinkedNotebook(ctx, pool, linkedA))
	require.NoError(t, seedLinkedNotebook(ctx, pool, linkedB))

	require.NoError(t, h.PutNotebook(ctx, &types.Notebook{Name: "Shared"}))
	require.NoError(t, h.PutNotebook(ctx, &types.Notebook{Name: "Shared", LinkedNotebookGuid: &linkedA}))
	require.NoError(t, h.PutNotebook(ctx, &types.Notebook{Name: "Shared", LinkedNotebookGuid: &linkedB}))
}

func TestPutNotebookOnlyOneDefaultSurvives(t *testing.T) {
	ctx := context.Background()
	h := NewNotebookHandler(newTestPool(t))

	first := &types.Notebook{Name: "First", Default: true}
	require.NoError(t, h.PutNotebook(ctx, first))

	second := &types.Notebook{Name: "Second", Default: true}
	require.NoError(t, h.PutNotebook(ctx, second))

	def, err := h.FindDefaultNotebook(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.LocalID, def.LocalID)

	firstAfter, err := h.FindNotebookByLocalID(ctx, first.LocalID)
	require.NoError(t, err)
	assert.False(t, firstAfter.Default)
}

func TestExpungeNotebookByName(t *testing.T) {
	ctx := context.Background()
	h := NewNotebookHandler(newTestPool(t))

	nb := &types.Notebook{Name: "Temp"}
	require.NoError(t, h.PutNotebook(ctx, nb))

	require.NoError(t, h.ExpungeNotebookByName(ctx, "Temp", ""))

	_, err := h.FindNotebookByLocalID(ctx, nb.LocalID)
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestExpungeNotebookByLocalIDNotFound(t *testing.T) {
	ctx := context.Background()
	h := NewNotebookHandler(newTestPool(t))

	err := h.ExpungeNotebookByLocalID(ctx, "missing")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func seedLinkedNotebook(ctx context.Context, pool *Pool, guid string) error {
	_, err := pool.DB().ExecContext(ctx,
		`INSERT INTO linked_notebooks (guid, share_name) VALUES (?, ?)`, guid, guid)
	return err
}
