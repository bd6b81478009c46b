package reconcile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// legacyFiles live at the project root in the pre-ralph/ layout.
var legacyFiles = []string{"prd.json", ProgressFile, LastBranchFile}

// HasLegacyLayout reports whether root holds a task list that was never moved into runDir.
func HasLegacyLayout(root, runDir string) bool {
	if _, err := os.Stat(filepath.Join(root, "prd.json")); err != nil {
		return false
	}
	_, err := os.Stat(filepath.Join(runDir, "prd.json"))
	return errors.Is(err, os.ErrNotExist)
}

// MigrateLegacy moves root-level run files and archive entries into runDir.
// Entries that already exist in runDir are left in place.
func MigrateLegacy(root, runDir string) ([]string, error) {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}

	var moved []string
	for _, name := range legacyFiles {
		ok, err := moveIfAbsent(filepath.Join(root, name), filepath.Join(runDir, name))
		if err != nil {
			return moved, err
		}
		if ok {
			moved = append(moved, name)
		}
	}

	legacyArchive := filepath.Join(root, ArchiveDir)
	entries, err := os.ReadDir(legacyArchive)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return moved, fmt.Errorf("read legacy archive: %w", err)
	}
	if len(entries) > 0 {
		if err := os.MkdirAll(filepath.Join(runDir, ArchiveDir), 0o755); err != nil {
			return moved, fmt.Errorf("create archive dir: %w", err)
		}
	}
	for _, entry := range entries {
		rel := filepath.Join(ArchiveDir, entry.Name())
		ok, err := moveIfAbsent(filepath.Join(root, rel), filepath.Join(runDir, rel))
		if err != nil {
			return moved, err
		}
		if ok {
			moved = append(moved, rel)
		}
	}
	if len(entries) > 0 {
		// Only succeeds once every entry has moved.
		_ = os.Remove(legacyArchive)
	}
	return moved, nil
}

func moveIfAbsent(src, dst string) (bool, error) {
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", src, err)
	}
	if _, err := os.Stat(dst); err == nil {
		log.Warn().Str("path", dst).Msg("migration target exists, leaving legacy file in place")
		return false, nil
	}
	if err := os.Rename(src, dst); err != nil {
		return false, fmt.Errorf("move %s: %w", src, err)
	}
	return true, nil
}
