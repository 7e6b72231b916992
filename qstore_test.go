package qstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evernotelocal/qstore/internal/config"
	"github.com/evernotelocal/qstore/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	opts := config.Options{
		DatabasePath:              t.TempDir(),
		ResourceDataDirectoryPath: t.TempDir(),
	}
	s, err := Open(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRejectsInvalidOptions(t *testing.T) {
	_, err := Open(context.Background(), config.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestPutNotebookFindRoundTripThroughFacade(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	nb := &Notebook{Name: "Personal"}
	_, err := s.PutNotebook(ctx, nb).Get(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, nb.LocalID)

	found, err := s.FindNotebookByLocalID(ctx, nb.LocalID).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Personal", found.Name)
}

func TestPutNotebookPublishesNotifierEvent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	sub := s.Notifier().Subscribe(NotebookPut)

	nb := &Notebook{Name: "Watched"}
	_, err := s.PutNotebook(ctx, nb).Get(ctx)
	require.NoError(t, err)

	select {
	case ev := <-sub:
		assert.Equal(t, NotebookPut, ev.Kind)
		assert.Equal(t, nb.LocalID, string(ev.LocalID))
	case <-time.After(time.Second):
		t.Fatal("expected a NotebookPut event")
	}
}

func TestPutTagThenPutNoteThenExpungeTagCascadesIntoNoteTagList(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	nb := &Notebook{Name: "Work"}
	require.NoError(t, must(s.PutNotebook(ctx, nb).Get(ctx)))

	tag := &Tag{Name: "urgent"}
	require.NoError(t, must(s.PutTag(ctx, tag).Get(ctx)))

	note := &Note{NotebookLocalID: nb.LocalID, TagLocalIDs: []string{tag.LocalID}}
	require.NoError(t, must(s.PutNote(ctx, note).Get(ctx)))

	found, err := s.FindNoteByLocalID(ctx, note.LocalID, types.FetchNoteOptions{}).Get(ctx)
	require.NoError(t, err)
	assert.Contains(t, found.TagLocalIDs, tag.LocalID)

	_, err = s.ExpungeTagByLocalID(ctx, tag.LocalID).Get(ctx)
	require.NoError(t, err)

	afterExpunge, err := s.FindNoteByLocalID(ctx, note.LocalID, types.FetchNoteOptions{}).Get(ctx)
	require.NoError(t, err)
	assert.NotContains(t, afterExpunge.TagLocalIDs, tag.LocalID)
}

func must(_ struct{}, err error) error { return err }
