package extract

import (
	"archive/zip"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/vsprovision/vsprovision/errors"
	"github.com/vsprovision/vsprovision/internal/genericarchive"
	"github.com/vsprovision/vsprovision/ui"
)

// unzipFiltered decodes percent-encoded zip entry names (VSIX archives
// percent-encode entry names, spec.md §4.7) and extracts every entry under
// "dest" using the decoded form throughout — including for any
// intermediate directories — per spec.md §9's resolution of the canonical-
// form open question.
func unzipFiltered(task *ui.Task, source, dest string) (entries []string, err error) {
	r, err := zip.OpenReader(source)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", source)
	}
	defer r.Close() // nolint: errcheck

	sub := task.SubProgress("unpack", len(r.File))
	defer sub.Done()

	for _, zf := range r.File {
		sub.Add(1)
		decoded, err := url.PathUnescape(zf.Name)
		if err != nil {
			decoded = zf.Name
		}
		decoded = strings.ReplaceAll(decoded, `\`, "/")
		entries = append(entries, decoded)

		if err := genericarchive.SanitizeExtractPath(decoded, dest); err != nil {
			return nil, err
		}
		destPath := filepath.Join(dest, decoded)

		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(destPath, 0755); err != nil {
				return nil, errors.WithStack(err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return nil, errors.WithStack(err)
		}
		if err := extractZipEntry(zf, destPath); err != nil {
			return nil, errors.Wrap(err, destPath)
		}
	}
	return entries, nil
}

func extractZipEntry(zf *zip.File, destPath string) error {
	rc, err := zf.Open()
	if err != nil {
		return errors.WithStack(err)
	}
	defer rc.Close() // nolint: errcheck

	w, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, zf.Mode()&^0077|0600)
	if err != nil {
		return errors.WithStack(err)
	}
	defer w.Close() // nolint: errcheck
	buf := make([]byte, 32*1024)
	for {
		n, readErr := rc.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				return errors.WithStack(writeErr)
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return errors.WithStack(readErr)
		}
	}
	return nil
}

// UnpackVsixFile unpacks an arbitrary .vsix file into dest, for callers
// outside the Selection-List extraction flow (the WDK installer's embedded
// VS extension, SPEC_FULL.md §7).
func UnpackVsixFile(task *ui.Task, source, dest, listingName string) error {
	return unpackVsix(task, source, dest, listingName)
}

// unpackVsix extracts "source" into a fresh sibling staging directory
// (<dest>.vsix-staging), merges a
// top-level Contents/ into dest and $MSBuild/ into dest/MSBuild (spec.md
// §4.7), and writes the entry listing to <dest>/<PackageKey>-listing.txt.
func unpackVsix(task *ui.Task, source, dest, listingName string) error {
	staging := dest + ".vsix-staging"
	if err := os.RemoveAll(staging); err != nil {
		return errors.WithStack(err)
	}
	if err := os.MkdirAll(staging, 0755); err != nil {
		return errors.WithStack(err)
	}
	defer os.RemoveAll(staging) // nolint: errcheck

	entries, err := unzipFiltered(task, source, staging)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dest, 0755); err != nil {
		return errors.WithStack(err)
	}

	if contents := filepath.Join(staging, "Contents"); dirExists(contents) {
		if err := MergeTrees(contents, dest); err != nil {
			return errors.Wrap(err, "merging Contents/")
		}
		_ = os.RemoveAll(contents)
	}
	if msbuild := filepath.Join(staging, "$MSBuild"); dirExists(msbuild) {
		if err := MergeTrees(msbuild, filepath.Join(dest, "MSBuild")); err != nil {
			return errors.Wrap(err, "merging $MSBuild/")
		}
		_ = os.RemoveAll(msbuild)
	}
	// Whatever remains in staging (everything outside Contents/$MSBuild)
	// merges straight into dest too.
	if err := MergeTrees(staging, dest); err != nil {
		return errors.Wrap(err, "merging remaining VSIX entries")
	}

	return writeListing(filepath.Join(dest, fmt.Sprintf("%s-listing.txt", listingName)), entries)
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func writeListing(path string, entries []string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close() // nolint: errcheck
	for _, e := range entries {
		if _, err := fmt.Fprintln(f, e); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}
