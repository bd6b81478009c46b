package git

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentBranch(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	ctx := context.Background()
	dir := t.TempDir()

	assert.False(t, Available(ctx, dir))
	_, err := CurrentBranch(ctx, dir)
	require.Error(t, err)

	_, err = RunCmdOutput(ctx, dir, "init", "-q", "-b", "ralph/feature")
	require.NoError(t, err)
	_, err = RunCmdOutput(ctx, dir, "-c", "user.email=t@example.com", "-c", "user.name=t", "commit", "-q", "--allow-empty", "-m", "init")
	require.NoError(t, err)

	assert.True(t, Available(ctx, dir))
	branch, err := CurrentBranch(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, "ralph/feature", branch)
}
