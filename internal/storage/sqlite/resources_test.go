package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evernotelocal/qstore/internal/types"
)

func TestPutResourceAndFindRoundTrip(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	noteHandler := NewNoteHandler(pool)
	resourceHandler := NewResourceHandler(pool)
	notebookLocalID := seedNotebook(ctx, t, pool, "Inbox")

	n := &types.Note{NotebookLocalID: notebookLocalID}
	_, err := noteHandler.PutNote(ctx, n)
	require.NoError(t, err)

	mime := "image/png"
	r := &types.Resource{
		NoteLocalID: n.LocalID,
		Mime:        &mime,
		Data:        &types.ResourceData{Body: []byte("binary"), Size: 6},
	}
	require.NoError(t, resourceHandler.PutResource(ctx, r, true, nil))
	require.NotEmpty(t, r.LocalID)

	found, err := resourceHandler.FindResourceByLocalID(ctx, r.LocalID, types.FetchResourceOptions{WithBinaryData: true})
	require.NoError(t, err)
	assert.Equal(t, "image/png", *found.Mime)
	require.NotNil(t, found.Data)
	assert.Equal(t, []byte("binary"), found.Data.Body)
}

func TestPutResourceWithoutBinaryDataOmitsBody(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	noteHandler := NewNoteHandler(pool)
	resourceHandler := NewResourceHandler(pool)
	notebookLocalID := seedNotebook(ctx, t, pool, "Inbox")

	n := &types.Note{NotebookLocalID: notebookLocalID}
	_, err := noteHandler.PutNote(ctx, n)
	require.NoError(t, err)

	r := &types.Resource{NoteLocalID: n.LocalID, Data: &types.ResourceData{Body: []byte("x"), Size: 1}}
	require.NoError(t, resourceHandler.PutResource(ctx, r, false, nil))

	found, err := resourceHandler.FindResourceByLocalID(ctx, r.LocalID, types.FetchResourceOptions{WithBinaryData: true})
	require.NoError(t, err)
	assert.Nil(t, found.Data)
}

func TestPutResourceIndexInNoteShiftsSiblings(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	noteHandler := NewNoteHandler(pool)
	resourceHandler := NewResourceHandler(pool)
	notebookLocalID := seedNotebook(ctx, t, pool, "Inbox")

	n := &types.Note{NotebookLocalID: notebookLocalID}
	_, err := noteHandler.PutNote(ctx, n)
	require.NoError(t, err)

	r0 := &types.Resource{NoteLocalID: n.LocalID}
	require.NoError(t, resourceHandler.PutResource(ctx, r0, false, nil))
	r1 := &types.Resource{NoteLocalID: n.LocalID}
	require.NoError(t, resourceHandler.PutResource(ctx, r1, false, nil))

	// Both default to index 0; insert a new resource explicitly at index 0,
	// which must push both existing siblings one slot later.
	rNew := &types.Resource{NoteLocalID: n.LocalID}
	zero := 0
	require.NoError(t, resourceHandler.PutResource(ctx, rNew, false, &zero))

	ordered, err := resourceHandler.ListResourcesByNote(ctx, n.LocalID, types.FetchResourceOptions{})
	require.NoError(t, err)
	require.Len(t, ordered, 3)
	assert.Equal(t, rNew.LocalID, ordered[0].LocalID)
	assert.Equal(t, 0, ordered[0].IndexInNote)
}

func TestCountResourcesByNote(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	noteHandler := NewNoteHandler(pool)
	resourceHandler := NewResourceHandler(pool)
	notebookLocalID := seedNotebook(ctx, t, pool, "Inbox")

	n := &types.Note{NotebookLocalID: notebookLocalID}
	_, err := noteHandler.PutNote(ctx, n)
	require.NoError(t, err)

	require.NoError(t, resourceHandler.PutResource(ctx, &types.Resource{NoteLocalID: n.LocalID}, false, nil))
	require.NoError(t, resourceHandler.PutResource(ctx, &types.Resource{NoteLocalID: n.LocalID}, false, nil))

	count, err := resourceHandler.CountResourcesByNote(ctx, n.LocalID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestExpungeResourceByLocalIDNotFound(t *testing.T) {
	ctx := context.Background()
	h := NewResourceHandler(newTestPool(t))

	err := h.ExpungeResourceByLocalID(ctx, "missing")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}
