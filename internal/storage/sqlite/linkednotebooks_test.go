package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evernotelocal/qstore/internal/types"
)

func TestPutLinkedNotebookAndFindRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := NewLinkedNotebookHandler(newTestPool(t))

	shareName := "Team Notebook"
	ln := &types.LinkedNotebook{Guid: "linked-1", ShareName: &shareName}
	require.NoError(t, h.PutLinkedNotebook(ctx, ln))

	found, err := h.FindLinkedNotebookByGuid(ctx, "linked-1")
	require.NoError(t, err)
	assert.Equal(t, "Team Notebook", *found.ShareName)
}

func TestPutLinkedNotebookRejectsEmptyGuid(t *testing.T) {
	ctx := context.Background()
	h := NewLinkedNotebookHandler(newTestPool(t))

	err := h.PutLinkedNotebook(ctx, &types.LinkedNotebook{})
	require.Error(t, err)
}

func TestListAndCountLinkedNotebooks(t *testing.T) {
	ctx := context.Background()
	h := NewLinkedNotebookHandler(newTestPool(t))

	require.NoError(t, h.PutLinkedNotebook(ctx, &types.LinkedNotebook{Guid: "b"}))
	require.NoError(t, h.PutLinkedNotebook(ctx, &types.LinkedNotebook{Guid: "a"}))

	list, err := h.ListLinkedNotebooks(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Guid)
	assert.Equal(t, "b", list[1].Guid)

	count, err := h.CountLinkedNotebooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestExpungeLinkedNotebookByGuidNotFound(t *testing.T) {
	ctx := context.Background()
	h := NewLinkedNotebookHandler(newTestPool(t))

	err := h.ExpungeLinkedNotebookByGuid(ctx, "missing")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}
