package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evernotelocal/qstore/internal/search"
	"github.com/evernotelocal/qstore/internal/types"
)

func TestFindNotesFreeTermMatchesTagName(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	noteHandler := NewNoteHandler(pool)
	notebookLocalID := seedNotebook(ctx, t, pool, "Inbox")
	tagLocalID := seedTag(ctx, t, pool, "roadtrip")

	title := "unrelated title"
	content := "unrelated content"
	n := &types.Note{
		NotebookLocalID: notebookLocalID,
		Title:           &title,
		Content:         &content,
		TagLocalIDs:     []string{tagLocalID},
	}
	_, err := noteHandler.PutNote(ctx, n)
	require.NoError(t, err)

	q, err := search.Parse("roadtrip", time.Now().UTC())
	require.NoError(t, err)

	ids, err := noteHandler.FindNotes(ctx, q, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{n.LocalID}, ids)
}

func TestFindNotesFreeTermMatchesResourceRecognitionText(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	noteHandler := NewNoteHandler(pool)
	resourceHandler := NewResourceHandler(pool)
	notebookLocalID := seedNotebook(ctx, t, pool, "Inbox")

	n := &types.Note{NotebookLocalID: notebookLocalID}
	_, err := noteHandler.PutNote(ctx, n)
	require.NoError(t, err)

	r := &types.Resource{
		NoteLocalID:     n.LocalID,
		RecognitionData: &types.ResourceData{Body: []byte("invoice")},
	}
	require.NoError(t, resourceHandler.PutResource(ctx, r, true, nil))

	q, err := search.Parse("invoice", time.Now().UTC())
	require.NoError(t, err)

	ids, err := noteHandler.FindNotes(ctx, q, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{n.LocalID}, ids)
}

func TestFindNotesFreeTermDoesNotMatchUnrelatedNote(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	noteHandler := NewNoteHandler(pool)
	notebookLocalID := seedNotebook(ctx, t, pool, "Inbox")

	title := "grocery list"
	_, err := noteHandler.PutNote(ctx, &types.Note{NotebookLocalID: notebookLocalID, Title: &title})
	require.NoError(t, err)

	q, err := search.Parse("roadtrip", time.Now().UTC())
	require.NoError(t, err)

	ids, err := noteHandler.FindNotes(ctx, q, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
