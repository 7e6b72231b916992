package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evernotelocal/qstore/internal/types"
)

func strPtr(s string) *string { return &s }

func TestPutTagAndFindRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := NewTagHandler(newTestPool(t))

	tag := &types.Tag{Name: "café"}
	require.NoError(t, h.PutTag(ctx, tag))
	require.NotEmpty(t, tag.LocalID)

	byID, err := h.FindTagByLocalID(ctx, tag.LocalID)
	require.NoError(t, err)
	assert.Equal(t, "café", byID.Name)

	byName, err := h.FindTagByName(ctx, "cafe", "")
	require.NoError(t, err)
	assert.Equal(t, tag.LocalID, byName.LocalID)
}

func TestPutTagRejectsSelfParentCycle(t *testing.T) {
	ctx := context.Background()
	h := NewTagHandler(newTestPool(t))

	tag := &types.Tag{Name: "root"}
	require.NoError(t, h.PutTag(ctx, tag))

	tag.ParentTagLocalID = &tag.LocalID
	err := h.PutTag(ctx, tag)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrCycle))
}

func TestPutTagRejectsIndirectCycle(t *testing.T) {
	ctx := context.Background()
	h := NewTagHandler(newTestPool(t))

	parent := &types.Tag{Name: "parent"}
	require.NoError(t, h.PutTag(ctx, parent))

	child := &types.Tag{Name: "child", ParentTagLocalID: strPtr(parent.LocalID)}
	require.NoError(t, h.PutTag(ctx, child))

	// Now attempt to make parent a child of child, closing the loop.
	parent.ParentTagLocalID = strPtr(child.LocalID)
	err := h.PutTag(ctx, parent)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrCycle))
}

func TestExpungeTagCascadesToDescendants(t *testing.T) {
	ctx := context.Background()
	h := NewTagHandler(newTestPool(t))

	root := &types.Tag{Name: "root"}
	require.NoError(t, h.PutTag(ctx, root))
	child := &types.Tag{Name: "child", ParentTagLocalID: strPtr(root.LocalID)}
	require.NoError(t, h.PutTag(ctx, child))
	grandchild := &types.Tag{Name: "grandchild", ParentTagLocalID: strPtr(child.LocalID)}
	require.NoError(t, h.PutTag(ctx, grandchild))

	cascaded, err := h.ExpungeTagByLocalID(ctx, root.LocalID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{child.LocalID, grandchild.LocalID}, cascaded)

	_, err = h.FindTagByLocalID(ctx, root.LocalID)
	assert.True(t, errors.Is(err, types.ErrNotFound))
	_, err = h.FindTagByLocalID(ctx, child.LocalID)
	assert.True(t, errors.Is(err, types.ErrNotFound))
	_, err = h.FindTagByLocalID(ctx, grandchild.LocalID)
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestExpungeTagByLocalIDNotFound(t *testing.T) {
	ctx := context.Background()
	h := NewTagHandler(newTestPool(t))

	_, err := h.ExpungeTagByLocalID(ctx, "does-not-exist")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestPutTagResolvesDanglingParentGuid(t *testing.T) {
	ctx := context.Background()
	h := NewTagHandler(newTestPool(t))

	parentGuid := "parent-guid-1"
	child := &types.Tag{Name: "child", ParentGuid: &parentGuid}
	require.NoError(t, h.PutTag(ctx, child))

	byID, err := h.FindTagByLocalID(ctx, child.LocalID)
	require.NoError(t, err)
	assert.Nil(t, byID.ParentTagLocalID)

	parent := &types.Tag{Name: "parent", Guid: &parentGuid}
	require.NoError(t, h.PutTag(ctx, parent))

	byID, err = h.FindTagByLocalID(ctx, child.LocalID)
	require.NoError(t, err)
	require.NotNil(t, byID.ParentTagLocalID)
	assert.Equal(t, parent.LocalID, *byID.ParentTagLocalID)
}
