package reconcile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Entry is one snapshot under archive/.
type Entry struct {
	Name   string
	Path   string
	Date   time.Time
	Branch string
	Files  []string
}

// ListArchives returns the snapshots of dir, newest first.
func ListArchives(dir string) ([]Entry, error) {
	root := filepath.Join(dir, ArchiveDir)
	items, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read archive dir: %w", err)
	}

	var out []Entry
	for _, item := range items {
		if !item.IsDir() {
			continue
		}
		entry := Entry{Name: item.Name(), Path: filepath.Join(root, item.Name())}
		if len(entry.Name) > len(dateLayout) {
			if date, err := time.Parse(dateLayout, entry.Name[:len(dateLayout)]); err == nil {
				entry.Date = date
				entry.Branch = entry.Name[len(dateLayout)+1:]
			}
		}
		files, err := os.ReadDir(entry.Path)
		if err != nil {
			return nil, fmt.Errorf("read archive %s: %w", entry.Name, err)
		}
		for _, f := range files {
			if !f.IsDir() {
				entry.Files = append(entry.Files, f.Name())
			}
		}
		out = append(out, entry)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].Name > out[j].Name
	})
	return out, nil
}
