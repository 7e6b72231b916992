package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evernotelocal/qstore/internal/types"
)

func seedNotebook(ctx context.Context, t *testing.T, pool *Pool, name string) string {
	t.Helper()
	nb := &types.Notebook{Name: name}
	require.NoError(t, NewNotebookHandler(pool).PutNotebook(ctx, nb))
	return nb.LocalID
}

func seedTag(ctx context.Context, t *testing.T, pool *Pool, name string) string {
	t.Helper()
	tag := &types.Tag{Name: name}
	require.NoError(t, NewTagHandler(pool).PutTag(ctx, tag))
	return tag.LocalID
}

func TestPutNoteAndFindRoundTrip(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	h := NewNoteHandler(pool)
	notebookLocalID := seedNotebook(ctx, t, pool, "Inbox")

	title := "Hello"
	n := &types.Note{NotebookLocalID: notebookLocalID, Title: &title}
	result, err := h.PutNote(ctx, n)
	require.NoError(t, err)
	assert.True(t, result.Inserted)
	require.NotEmpty(t, n.LocalID)

	found, err := h.FindNoteByLocalID(ctx, n.LocalID, types.FetchNoteOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Hello", *found.Title)
}

func TestPutNoteAlwaysOverwritesTagsUnlikeUpdateNote(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	h := NewNoteHandler(pool)
	notebookLocalID := seedNotebook(ctx, t, pool, "Inbox")
	tagA := seedTag(ctx, t, pool, "a")
	tagB := seedTag(ctx, t, pool, "b")

	n := &types.Note{NotebookLocalID: notebookLocalID, TagLocalIDs: []string{tagA}}
	_, err := h.PutNote(ctx, n)
	require.NoError(t, err)

	// PutNote with no tags given unconditionally clears the tag list.
	n.TagLocalIDs = nil
	_, err = h.PutNote(ctx, n)
	require.NoError(t, err)
	found, err := h.FindNoteByLocalID(ctx, n.LocalID, types.FetchNoteOptions{})
	require.NoError(t, err)
	assert.Empty(t, found.TagLocalIDs)

	// UpdateNote with UpdateTags=false leaves the existing tag list alone.
	n.TagLocalIDs = []string{tagA}
	_, err = h.PutNote(ctx, n)
	require.NoError(t, err)
	n.TagLocalIDs = []string{tagB}
	_, err = h.UpdateNote(ctx, n, types.UpdateNoteOptions{UpdateTags: false})
	require.NoError(t, err)
	found, err = h.FindNoteByLocalID(ctx, n.LocalID, types.FetchNoteOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{tagA}, found.TagLocalIDs)
}

func TestUpsertNoteResultReportsInsertedOnlyOnce(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	h := NewNoteHandler(pool)
	notebookLocalID := seedNotebook(ctx, t, pool, "Inbox")

	n := &types.Note{NotebookLocalID: notebookLocalID}
	result, err := h.PutNote(ctx, n)
	require.NoError(t, err)
	assert.True(t, result.Inserted)

	result, err = h.UpdateNote(ctx, n, types.UpdateNoteOptions{})
	require.NoError(t, err)
	assert.False(t, result.Inserted)
}

func TestUpsertNoteResultDiffsNotebookAndTags(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	h := NewNoteHandler(pool)
	notebookA := seedNotebook(ctx, t, pool, "A")
	notebookB := seedNotebook(ctx, t, pool, "B")
	tagA := seedTag(ctx, t, pool, "a")

	n := &types.Note{NotebookLocalID: notebookA}
	result, err := h.PutNote(ctx, n)
	require.NoError(t, err)
	assert.Empty(t, result.OldNotebookLocalID)
	assert.Equal(t, notebookA, result.NewNotebookLocalID)
	assert.Empty(t, result.OldTagLocalIDs)
	assert.Empty(t, result.NewTagLocalIDs)

	n.NotebookLocalID = notebookB
	n.TagLocalIDs = []string{tagA}
	result, err = h.PutNote(ctx, n)
	require.NoError(t, err)
	assert.Equal(t, notebookA, result.OldNotebookLocalID)
	assert.Equal(t, notebookB, result.NewNotebookLocalID)
	assert.Empty(t, result.OldTagLocalIDs)
	assert.Equal(t, []string{tagA}, result.NewTagLocalIDs)
}

func TestCountNotesVariants(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	h := NewNoteHandler(pool)
	notebookA := seedNotebook(ctx, t, pool, "A")
	notebookB := seedNotebook(ctx, t, pool, "B")
	tagA := seedTag(ctx, t, pool, "a")
	tagB := seedTag(ctx, t, pool, "b")

	n1 := &types.Note{NotebookLocalID: notebookA, TagLocalIDs: []string{tagA}}
	_, err := h.PutNote(ctx, n1)
	require.NoError(t, err)
	n2 := &types.Note{NotebookLocalID: notebookB, TagLocalIDs: []string{tagA, tagB}}
	_, err = h.PutNote(ctx, n2)
	require.NoError(t, err)

	countOpts := types.NoteCountIncludeNonDeleted

	total, err := h.CountNotes(ctx, countOpts)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	byNotebook, err := h.CountNotesByNotebook(ctx, notebookA, countOpts)
	require.NoError(t, err)
	assert.Equal(t, 1, byNotebook)

	byTag, err := h.CountNotesByTag(ctx, tagA, countOpts)
	require.NoError(t, err)
	assert.Equal(t, 2, byTag)

	byNotebookAndTag, err := h.CountNotesByNotebookAndTag(ctx, notebookB, tagB, countOpts)
	require.NoError(t, err)
	assert.Equal(t, 1, byNotebookAndTag)

	byTags, err := h.CountNotesByTags(ctx, []string{tagA, tagB}, countOpts)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{tagA: 2, tagB: 1}, byTags)
}

func TestListNoteLocalIDsVariants(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	h := NewNoteHandler(pool)
	notebookA := seedNotebook(ctx, t, pool, "A")
	notebookB := seedNotebook(ctx, t, pool, "B")
	tagA := seedTag(ctx, t, pool, "a")
	tagB := seedTag(ctx, t, pool, "b")

	n1 := &types.Note{NotebookLocalID: notebookA, TagLocalIDs: []string{tagA}}
	_, err := h.PutNote(ctx, n1)
	require.NoError(t, err)
	n2 := &types.Note{NotebookLocalID: notebookB, TagLocalIDs: []string{tagA, tagB}}
	_, err = h.PutNote(ctx, n2)
	require.NoError(t, err)

	byNotebook, err := h.ListNoteLocalIDsByNotebook(ctx, notebookA)
	require.NoError(t, err)
	assert.Equal(t, []string{n1.LocalID}, byNotebook)

	byTag, err := h.ListNoteLocalIDsByTag(ctx, tagB)
	require.NoError(t, err)
	assert.Equal(t, []string{n2.LocalID}, byTag)

	combined, err := h.ListNoteLocalIDsByNotebookAndTag(ctx, []string{notebookA, notebookB}, []string{tagA})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{n1.LocalID, n2.LocalID}, combined)

	byIDs, err := h.ListNoteLocalIDsByLocalIDs(ctx, []string{n1.LocalID, "missing", n2.LocalID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{n1.LocalID, n2.LocalID}, byIDs)
}

func TestExpungeNoteByLocalIDNotFound(t *testing.T) {
	ctx := context.Background()
	h := NewNoteHandler(newTestPool(t))

	err := h.ExpungeNoteByLocalID(ctx, "missing")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestExpungeNoteCascadesToResources(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	noteHandler := NewNoteHandler(pool)
	resourceHandler := NewResourceHandler(pool)
	notebookLocalID := seedNotebook(ctx, t, pool, "Inbox")

	n := &types.Note{NotebookLocalID: notebookLocalID}
	_, err := noteHandler.PutNote(ctx, n)
	require.NoError(t, err)

	r := &types.Resource{NoteLocalID: n.LocalID}
	require.NoError(t, resourceHandler.PutResource(ctx, r, false, nil))

	require.NoError(t, noteHandler.ExpungeNoteByLocalID(ctx, n.LocalID))

	_, err = resourceHandler.FindResourceByLocalID(ctx, r.LocalID, types.FetchResourceOptions{})
	assert.True(t, errors.Is(err, types.ErrNotFound))
}
