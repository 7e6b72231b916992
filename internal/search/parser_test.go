package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFreeAndPhraseTerms(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	q, err := Parse(`hello -world "exact phrase*"`, now)
	require.NoError(t, err)
	require.Len(t, q.Terms, 3)

	assert.Equal(t, TermFree, q.Terms[0].Kind)
	assert.False(t, q.Terms[0].Negated)
	assert.Equal(t, "hello", q.Terms[0].Value)

	assert.True(t, q.Terms[1].Negated)
	assert.Equal(t, "world", q.Terms[1].Value)

	assert.True(t, q.Terms[2].IsWildcard)
	assert.Equal(t, "exact phrase", q.Terms[2].Value)
}

func TestParseAnyModeSwitch(t *testing.T) {
	now := time.Now().UTC()
	q, err := Parse("any: tag:work notebook:personal", now)
	require.NoError(t, err)
	assert.True(t, q.AnyMode)
	require.Len(t, q.Terms, 2)
	assert.Equal(t, TermTag, q.Terms[0].Kind)
	assert.Equal(t, TermNotebook, q.Terms[1].Kind)
}

func TestParseTypedWildcardAndExistence(t *testing.T) {
	now := time.Now().UTC()

	q, err := Parse("tag:proj*", now)
	require.NoError(t, err)
	assert.True(t, q.Terms[0].IsWildcard)
	assert.Equal(t, "proj", q.Terms[0].Value)

	q, err = Parse("notebook:*", now)
	require.NoError(t, err)
	assert.True(t, q.Terms[0].IsExistence)
}

func TestParseDiacriticFolding(t *testing.T) {
	now := time.Now().UTC()
	q, err := Parse("tag:café", now)
	require.NoError(t, err)
	assert.Equal(t, "cafe", q.Terms[0].Value)
}

func TestParseNumericTerms(t *testing.T) {
	now := time.Now().UTC()

	q, err := Parse("latitude:45.5", now)
	require.NoError(t, err)
	assert.InDelta(t, 45.5, q.Terms[0].NumericValue, 0.0001)

	q, err = Parse("-latitude:10", now)
	require.NoError(t, err)
	assert.True(t, q.Terms[0].Negated)
}

func TestParseTodoTerm(t *testing.T) {
	now := time.Now().UTC()

	q, err := Parse("todo:true", now)
	require.NoError(t, err)
	assert.True(t, q.Terms[0].BoolValue)

	q, err = Parse("todo:*", now)
	require.NoError(t, err)
	assert.True(t, q.Terms[0].IsExistence)

	_, err = Parse("todo:maybe", now)
	assert.Error(t, err)
}

func TestParseDateAnchors(t *testing.T) {
	now := time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC) // Friday

	q, err := Parse("created:day", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), q.Terms[0].DateValue)

	q, err = Parse("created:day-1", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), q.Terms[0].DateValue)

	q, err = Parse("created:month", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), q.Terms[0].DateValue)

	q, err = Parse("created:year-1", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), q.Terms[0].DateValue)

	q, err = Parse("created:2024-01-15", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), q.Terms[0].DateValue)

	_, err = Parse("created:not-a-date", now)
	assert.Error(t, err)
}

func TestParseRejectsDanglingNegationAndUnterminatedPhrase(t *testing.T) {
	now := time.Now().UTC()

	_, err := Parse("- ", now)
	assert.Error(t, err)

	_, err = Parse(`"unterminated`, now)
	assert.Error(t, err)
}

func TestParseEmptyQueryRejected(t *testing.T) {
	_, err := Parse("   ", time.Now().UTC())
	assert.Error(t, err)
}
