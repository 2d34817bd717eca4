package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// Stage collects outputs built under temporary sibling paths and moves them
// into place together once every output is complete. The zero value is
// ready to use.
type Stage struct {
	entries []stageEntry
}

type stageEntry struct {
	temp  string
	final string
}

// Path returns the temporary path the output for final is built under. The
// temporary name keeps the suffix of final, so formats chosen by extension
// are preserved. Leftovers from an earlier run are removed.
func (s *Stage) Path(final string) string {
	temp := filepath.Join(filepath.Dir(final), ".staged-"+filepath.Base(final))
	os.RemoveAll(temp)
	s.entries = append(s.entries, stageEntry{temp: temp, final: final})
	return temp
}

// Abort removes every output that has not been moved into place.
func (s *Stage) Abort() {
	for _, e := range s.entries {
		os.RemoveAll(e.temp)
	}
	s.entries = nil
}

// Commit moves the staged outputs into place in the order they were staged.
// A staged directory is merged into an existing destination directory file
// by file. On failure the outputs not yet moved are removed.
func (s *Stage) Commit() error {
	for i, e := range s.entries {
		if err := move(e.temp, e.final); err != nil {
			s.entries = s.entries[i:]
			s.Abort()
			return err
		}
	}
	s.entries = nil
	return nil
}

func move(temp, final string) error {
	info, err := os.Stat(temp)
	if err != nil {
		return fmt.Errorf("staged output for %s: %w", filepath.Base(final), err)
	}
	if info.IsDir() {
		if fi, err := os.Stat(final); err == nil && fi.IsDir() {
			entries, err := os.ReadDir(temp)
			if err != nil {
				return fmt.Errorf("failed to read staged directory: %w", err)
			}
			for _, de := range entries {
				if err := osRename(filepath.Join(temp, de.Name()), filepath.Join(final, de.Name())); err != nil {
					return fmt.Errorf("failed to move %s into place: %w", de.Name(), err)
				}
			}
			return os.Remove(temp)
		}
	}
	if err := osRename(temp, final); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", filepath.Base(final), err)
	}
	return nil
}
