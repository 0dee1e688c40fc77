package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSenderCheckerRequiresAllowList(t *testing.T) {
	_, err := NewSenderChecker(nil)
	assert.Error(t, err)

	_, err = NewSenderChecker([]int64{})
	assert.Error(t, err)
}

func TestIsAllowed(t *testing.T) {
	checker, err := NewSenderChecker([]int64{10, -100})
	require.NoError(t, err)

	assert.True(t, checker.IsAllowed(10))
	assert.True(t, checker.IsAllowed(-100))
	assert.False(t, checker.IsAllowed(11))
	assert.False(t, checker.IsAllowed(0))
}
