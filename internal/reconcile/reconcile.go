// Package reconcile brings the on-disk run state in line with the branch a run targets.
//
// Before a run starts, the previously recorded branch is compared with the
// current one. On a switch, the prior task list and progress log are
// snapshotted under archive/ and the progress log is reset.
package reconcile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// LastBranchFile records the branch of the most recently started run.
	LastBranchFile = ".last-branch"
	// ProgressFile is the append-only agent journal.
	ProgressFile = "progress.txt"
	// ArchiveDir holds snapshots of earlier branches.
	ArchiveDir = "archive"

	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05"
)

// Archiver reconciles a run directory against the current branch.
type Archiver struct {
	Dir          string
	TaskListPath string
	// Disabled skips snapshots and progress resets; the branch is still recorded.
	Disabled bool
	Now      func() time.Time
}

// Result reports what Run did.
type Result struct {
	PreviousBranch string
	Archived       bool
	ArchivePath    string
	Files          []string
}

// Run compares the recorded branch with branch, archives on a switch and
// records branch as the latest. Errors are fatal for the caller.
func (a *Archiver) Run(branch string) (Result, error) {
	previous, err := ReadLastBranch(a.Dir)
	if err != nil {
		return Result{}, err
	}
	res := Result{PreviousBranch: previous}

	if previous != "" && previous != branch && !a.Disabled {
		if err := a.archive(previous, &res); err != nil {
			return res, err
		}
	}

	if err := os.WriteFile(filepath.Join(a.Dir, LastBranchFile), []byte(branch+"\n"), 0o644); err != nil {
		return res, fmt.Errorf("write %s: %w", LastBranchFile, err)
	}
	return res, nil
}

func (a *Archiver) archive(previous string, res *Result) error {
	now := a.now()
	dest, err := uniqueDir(filepath.Join(a.Dir, ArchiveDir), now.Format(dateLayout)+"-"+BranchTail(previous))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}

	sources := []string{a.taskListPath(), filepath.Join(a.Dir, ProgressFile)}
	for _, src := range sources {
		copied, err := copyIfExists(src, filepath.Join(dest, filepath.Base(src)))
		if err != nil {
			return err
		}
		if copied {
			res.Files = append(res.Files, filepath.Base(src))
		}
	}

	if err := WriteProgressHeader(a.Dir, now); err != nil {
		return err
	}

	res.Archived = true
	res.ArchivePath = dest
	log.Info().
		Str("previous_branch", previous).
		Str("dir", dest).
		Strs("files", res.Files).
		Msg("archived previous run")
	return nil
}

func (a *Archiver) taskListPath() string {
	if a.TaskListPath != "" {
		return a.TaskListPath
	}
	return filepath.Join(a.Dir, "prd.json")
}

func (a *Archiver) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// BranchTail returns the text after the last "/" of branch. Trailing slashes
// are ignored, so "ralph/" yields "ralph".
func BranchTail(branch string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(branch), "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	if trimmed == "" {
		return "branch"
	}
	return trimmed
}

// ReadLastBranch returns the trimmed recorded branch, or "" when none is recorded.
func ReadLastBranch(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, LastBranchFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read %s: %w", LastBranchFile, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// EnsureProgressLog writes a fresh progress header when the log is absent.
func EnsureProgressLog(dir string, now time.Time) error {
	_, err := os.Stat(filepath.Join(dir, ProgressFile))
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", ProgressFile, err)
	}
	return WriteProgressHeader(dir, now)
}

// WriteProgressHeader replaces the progress log with a fresh header.
func WriteProgressHeader(dir string, now time.Time) error {
	header := "# Ralph Progress Log\nStarted: " + now.Format(timestampLayout) + "\n---\n"
	if err := os.WriteFile(filepath.Join(dir, ProgressFile), []byte(header), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", ProgressFile, err)
	}
	return nil
}

// uniqueDir picks parent/name, or parent/name-N when earlier snapshots exist.
func uniqueDir(parent, name string) (string, error) {
	candidate := filepath.Join(parent, name)
	for n := 2; ; n++ {
		_, err := os.Stat(candidate)
		if errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("stat archive dir: %w", err)
		}
		candidate = filepath.Join(parent, fmt.Sprintf("%s-%d", name, n))
	}
}

func copyIfExists(src, dst string) (bool, error) {
	in, err := os.Open(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return false, fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return false, fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return false, fmt.Errorf("close %s: %w", dst, err)
	}
	return true, nil
}
