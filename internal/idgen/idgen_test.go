package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLocalIDIsNonEmptyAndUnique(t *testing.T) {
	a := NewLocalID()
	b := NewLocalID()
	assert.True(t, IsValid(a))
	assert.True(t, IsValid(b))
	assert.NotEqual(t, a, b)
}

func TestIsValidRejectsEmpty(t *testing.T) {
	assert.False(t, IsValid(""))
}

func TestRequireNonEmpty(t *testing.T) {
	assert.NoError(t, RequireNonEmpty("guid", "x"))
	err := RequireNonEmpty("guid", "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "guid")
}
