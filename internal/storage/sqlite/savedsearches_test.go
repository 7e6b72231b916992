package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evernotelocal/qstore/internal/types"
)

func TestPutSavedSearchAndFindRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := NewSavedSearchHandler(newTestPool(t))

	s := &types.SavedSearch{Name: "Recent work", Query: "notebook:Work"}
	require.NoError(t, h.PutSavedSearch(ctx, s))
	require.NotEmpty(t, s.LocalID)

	found, err := h.FindSavedSearchByLocalID(ctx, s.LocalID)
	require.NoError(t, err)
	assert.Equal(t, "Recent work", found.Name)
	assert.Equal(t, "notebook:Work", found.Query)
}

func TestPutSavedSearchRejectsDuplicateName(t *testing.T) {
	ctx := context.Background()
	h := NewSavedSearchHandler(newTestPool(t))

	require.NoError(t, h.PutSavedSearch(ctx, &types.SavedSearch{Name: "Dup", Query: "a"}))
	err := h.PutSavedSearch(ctx, &types.SavedSearch{Name: "Dup", Query: "b"})
	require.Error(t, err)
}

func TestFindSavedSearchByName(t *testing.T) {
	ctx := context.Background()
	h := NewSavedSearchHandler(newTestPool(t))

	s := &types.SavedSearch{Name: "Café notes", Query: "any:"}
	require.NoError(t, h.PutSavedSearch(ctx, s))

	found, err := h.FindSavedSearchByName(ctx, "cafe notes")
	require.NoError(t, err)
	assert.Equal(t, s.LocalID, found.LocalID)
}

func TestListSavedSearchesAndGuids(t *testing.T) {
	ctx := context.Background()
	h := NewSavedSearchHandler(newTestPool(t))

	synced := &types.SavedSearch{Name: "A", Query: "a"}
	guid := "guid-a"
	synced.Guid = &guid
	require.NoError(t, h.PutSavedSearch(ctx, synced))
	unsynced := &types.SavedSearch{Name: "B", Query: "b"}
	require.NoError(t, h.PutSavedSearch(ctx, unsynced))

	list, err := h.ListSavedSearches(ctx, types.SavedSearchListOptions{Order: types.SavedSearchOrderByName})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].Name)
	assert.Equal(t, "B", list[1].Name)

	guids, err := h.ListSavedSearchGuids(ctx, types.SavedSearchListOptions{Order: types.SavedSearchOrderByName})
	require.NoError(t, err)
	assert.Equal(t, []string{"guid-a"}, guids)
}

func TestCountSavedSearches(t *testing.T) {
	ctx := context.Background()
	h := NewSavedSearchHandler(newTestPool(t))

	require.NoError(t, h.PutSavedSearch(ctx, &types.SavedSearch{Name: "A", Query: "a"}))
	require.NoError(t, h.PutSavedSearch(ctx, &types.SavedSearch{Name: "B", Query: "b"}))

	count, err := h.CountSavedSearches(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestExpungeSavedSearchByLocalIDNotFound(t *testing.T) {
	ctx := context.Background()
	h := NewSavedSearchHandler(newTestPool(t))

	err := h.ExpungeSavedSearchByLocalID(ctx, "missing")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}
