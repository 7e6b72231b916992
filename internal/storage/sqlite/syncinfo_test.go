package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evernotelocal/qstore/internal/types"
)

func TestHighestUSNWithinUserOwnContent(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	h := NewSyncInfoHandler(pool)

	usn := int32(5)
	nb := &types.Notebook{Name: "Inbox", UpdateSequenceNumber: &usn}
	require.NoError(t, NewNotebookHandler(pool).PutNotebook(ctx, nb))

	noteUSN := int32(9)
	n := &types.Note{NotebookLocalID: nb.LocalID, UpdateSequenceNumber: &noteUSN}
	_, err := NewNoteHandler(pool).PutNote(ctx, n)
	require.NoError(t, err)

	max, err := h.HighestUSN(ctx, types.SyncScopeWithinUserOwnContent, "")
	require.NoError(t, err)
	assert.Equal(t, int32(9), max)
}

func TestHighestUSNWithinEmptyDatabaseIsZero(t *testing.T) {
	ctx := context.Background()
	h := NewSyncInfoHandler(newTestPool(t))

	max, err := h.HighestUSN(ctx, types.SyncScopeWithinUserOwnContent, "")
	require.NoError(t, err)
	assert.Equal(t, int32(0), max)
}

func TestHighestUSNWithinLinkedNotebookRequiresGuid(t *testing.T) {
	ctx := context.Background()
	h := NewSyncInfoHandler(newTestPool(t))

	_, err := h.HighestUSN(ctx, types.SyncScopeWithinLinkedNotebook, "")
	require.Error(t, err)
}

func TestHighestUSNWithinLinkedNotebookScopesToGuid(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	h := NewSyncInfoHandler(pool)

	require.NoError(t, seedLinkedNotebook(ctx, pool, "linked-1"))
	_, err := pool.DB().ExecContext(ctx,
		`UPDATE linked_notebooks SET update_sequence_number = ? WHERE guid = ?`, 3, "linked-1")
	require.NoError(t, err)

	max, err := h.HighestUSN(ctx, types.SyncScopeWithinLinkedNotebook, "linked-1")
	require.NoError(t, err)
	assert.Equal(t, int32(3), max)
}
