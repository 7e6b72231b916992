package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileFreeTermMatchesTitleContentTagsAndResourceText(t *testing.T) {
	q, err := Parse("hello", time.Now().UTC())
	require.NoError(t, err)

	pred, err := Compile(q)
	require.NoError(t, err)
	assert.Contains(t, pred.Where, "notes.title_stripped LIKE ?")
	assert.Contains(t, pred.Where, "notes.content_stripped LIKE ?")
	assert.Contains(t, pred.Where, "tags.name_stripped LIKE ?")
	assert.Contains(t, pred.Where, "resources.reco_stripped LIKE ?")
	require.Len(t, pred.Args, 4)
	for _, arg := range pred.Args {
		assert.Equal(t, "hello", arg)
	}
}

func TestCompileNegatedTermWraps(t *testing.T) {
	q, err := Parse("-tag:work", time.Now().UTC())
	require.NoError(t, err)

	pred, err := Compile(q)
	require.NoError(t, err)
	assert.Contains(t, pred.Where, "NOT (")
	assert.Equal(t, []any{"work"}, pred.Args)
}

func TestCompileAnyModeUsesOr(t *testing.T) {
	q, err := Parse("any: tag:work notebook:personal", time.Now().UTC())
	require.NoError(t, err)

	pred, err := Compile(q)
	require.NoError(t, err)
	assert.Contains(t, pred.Where, " OR ")
	assert.NotContains(t, pred.Where, ") AND ")
}

func TestCompileDefaultModeUsesAnd(t *testing.T) {
	q, err := Parse("tag:work notebook:personal", time.Now().UTC())
	require.NoError(t, err)

	pred, err := Compile(q)
	require.NoError(t, err)
	assert.Contains(t, pred.Where, " AND ")
}

func TestCompileWildcardAppendsPercent(t *testing.T) {
	q, err := Parse("tag:proj*", time.Now().UTC())
	require.NoError(t, err)

	pred, err := Compile(q)
	require.NoError(t, err)
	require.Len(t, pred.Args, 1)
	assert.Equal(t, "proj%", pred.Args[0])
}

func TestCompileExistenceTermHasNoArgs(t *testing.T) {
	q, err := Parse("notebook:*", time.Now().UTC())
	require.NoError(t, err)

	pred, err := Compile(q)
	require.NoError(t, err)
	assert.Contains(t, pred.Where, "IS NOT NULL")
	assert.Empty(t, pred.Args)
}

func TestCompileEscapesLikeMetacharacters(t *testing.T) {
	q, err := Parse(`tag:100%_done`, time.Now().UTC())
	require.NoError(t, err)

	pred, err := Compile(q)
	require.NoError(t, err)
	assert.Equal(t, `100\%\_done`, pred.Args[0])
}

func TestCompileEmptyQueryMatchesEverything(t *testing.T) {
	pred, err := Compile(&Query{})
	require.NoError(t, err)
	assert.Equal(t, "1=1", pred.Where)
	assert.Empty(t, pred.Args)
}

func TestCompileApplicationDataKeyValue(t *testing.T) {
	q, err := Parse("applicationData:color=red", time.Now().UTC())
	require.NoError(t, err)

	pred, err := Compile(q)
	require.NoError(t, err)
	require.Len(t, pred.Args, 2)
	assert.Equal(t, "color", pred.Args[0])
	assert.Equal(t, "red", pred.Args[1])
}
