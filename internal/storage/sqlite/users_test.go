package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evernotelocal/qstore/internal/types"
)

func TestPutUserAndFindRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := NewUserHandler(newTestPool(t))

	name := "Ada"
	u := &types.User{ID: 1, Name: &name}
	require.NoError(t, h.PutUser(ctx, u))

	found, err := h.FindUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Ada", *found.Name)
	assert.Nil(t, found.Accounting)
}

func TestPutUserSubBlocksDeletedWhenNil(t *testing.T) {
	ctx := context.Background()
	h := NewUserHandler(newTestPool(t))

	u := &types.User{ID: 1, Accounting: &types.Accounting{UnitPrice: int32Ptr(100)}}
	require.NoError(t, h.PutUser(ctx, u))

	found, err := h.FindUser(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, found.Accounting)
	assert.Equal(t, int32(100), *found.Accounting.UnitPrice)

	// Putting again with Accounting left nil deletes the stored sub-block
	// (invariant 8), rather than leaving the previous value in place.
	u.Accounting = nil
	require.NoError(t, h.PutUser(ctx, u))

	found, err = h.FindUser(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, found.Accounting)
}

func TestExpungeUserNotFound(t *testing.T) {
	ctx := context.Background()
	h := NewUserHandler(newTestPool(t))

	err := h.ExpungeUser(ctx, 42)
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func int32Ptr(v int32) *int32 { return &v }
