// Package extract dispatches on package type to VSIX or MSI extraction and
// tree-merges the result into a staging directory, per spec.md §4.7.
package extract

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/vsprovision/vsprovision/errors"
)

// MergeTrees implements spec.md §4.7's mergeTrees: if dest doesn't exist,
// src is renamed wholesale to dest. Otherwise every entry of src is merged
// into dest, treating a case-insensitive name match in dest as the same
// directory rather than a separate one — "the only routine that tolerates
// the upstream case inconsistencies" (spec.md §9).
func MergeTrees(src, dest string) error {
	if _, err := os.Lstat(dest); err != nil {
		if !os.IsNotExist(err) {
			return errors.WithStack(err)
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return errors.WithStack(err)
		}
		return errors.WithStack(os.Rename(src, dest))
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return errors.WithStack(err)
	}
	destEntries, err := os.ReadDir(dest)
	if err != nil {
		return errors.WithStack(err)
	}
	destByLower := make(map[string]string, len(destEntries))
	for _, de := range destEntries {
		destByLower[strings.ToLower(de.Name())] = de.Name()
	}

	for _, entry := range entries {
		srcChild := filepath.Join(src, entry.Name())
		destChild := filepath.Join(dest, entry.Name())

		if !entry.IsDir() {
			if err := replaceFile(srcChild, destChild); err != nil {
				return err
			}
			continue
		}

		if _, err := os.Lstat(destChild); err == nil {
			// Case-sensitive match: recurse directly.
			if err := MergeTrees(srcChild, destChild); err != nil {
				return err
			}
			continue
		}

		if caseMatch, ok := destByLower[strings.ToLower(entry.Name())]; ok {
			if err := MergeTrees(srcChild, filepath.Join(dest, caseMatch)); err != nil {
				return err
			}
			continue
		}

		// No collision at all: move the whole subtree across.
		if err := os.Rename(srcChild, destChild); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

// replaceFile renames srcChild onto destChild, overwriting any existing
// file there (spec.md §4.7: "Files always rename (overwriting is acceptable)").
func replaceFile(srcChild, destChild string) error {
	if err := os.RemoveAll(destChild); err != nil {
		return errors.WithStack(err)
	}
	if err := os.Rename(srcChild, destChild); err != nil {
		return errors.WithStack(err)
	}
	return nil
}
