// Package git provides the few git queries ralph needs for status reporting.
package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// Available checks if the given directory is inside a git work tree.
func Available(ctx context.Context, dir string) bool {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = dir
	return cmd.Run() == nil
}

// RunCmdOutput runs git with args in dir and returns its combined output.
func RunCmdOutput(ctx context.Context, dir string, args ...string) (string, error) {
	log.Debug().Str("dir", dir).Strs("args", args).Msg("running git command")
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// CurrentBranch returns the checked-out branch of the work tree containing dir.
func CurrentBranch(ctx context.Context, dir string) (string, error) {
	if !Available(ctx, dir) {
		return "", fmt.Errorf("not a git repository: %s", dir)
	}
	out, err := RunCmdOutput(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolve current branch: %w", err)
	}
	branch := strings.TrimSpace(out)
	if branch == "" {
		return "", fmt.Errorf("resolve current branch: empty branch name")
	}
	if branch == "HEAD" {
		return "", fmt.Errorf("resolve current branch: detached HEAD")
	}
	return branch, nil
}
