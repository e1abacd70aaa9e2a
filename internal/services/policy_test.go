package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanMutate(t *testing.T) {
	assert.True(t, CanMutate("u-1", "u-1"))
	assert.False(t, CanMutate("u-2", "u-1"))
	assert.False(t, CanMutate("", ""))
}

func TestAssertOwnership(t *testing.T) {
	assert.NoError(t, AssertOwnership("u-1", "u-1"))
	assert.ErrorIs(t, AssertOwnership("u-2", "u-1"), ErrForbidden)
}
