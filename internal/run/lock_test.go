package run

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLock_Exclusive(t *testing.T) {
	dir := t.TempDir()

	first, err := TryAcquireRunLock(dir)
	require.NoError(t, err)

	_, err = TryAcquireRunLock(dir)
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, first.Release())

	again, err := TryAcquireRunLock(dir)
	require.NoError(t, err)
	assert.NoError(t, again.Release())

	var nilLock *RunLock
	assert.NoError(t, nilLock.Release())
}
