package postprocess

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vsprovision/vsprovision/errors"
	"github.com/vsprovision/vsprovision/ui"
	"github.com/vsprovision/vsprovision/util"
)

// ApplyPatches walks patchesDir, mirroring its layout onto dest per
// spec.md §4.8.4:
//   - "*.patch" -> applied in-place against the corresponding dest file via
//     the host "patch" tool, skipped if a reverse-apply dry run succeeds
//     (already applied).
//   - "*.remove" -> the corresponding dest file is deleted if present.
//   - anything else -> copied into dest as a new file, creating parent
//     directories as needed.
func ApplyPatches(task *ui.Task, patchesDir, dest string) error {
	return filepath.Walk(patchesDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return errors.WithStack(err)
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(patchesDir, path)
		if err != nil {
			return errors.WithStack(err)
		}

		switch {
		case strings.HasSuffix(rel, ".patch"):
			return applyPatchFile(task, path, filepath.Join(dest, strings.TrimSuffix(rel, ".patch")))
		case strings.HasSuffix(rel, ".remove"):
			target := filepath.Join(dest, strings.TrimSuffix(rel, ".remove"))
			if _, statErr := os.Lstat(target); statErr != nil {
				if os.IsNotExist(statErr) {
					return nil
				}
				return errors.WithStack(statErr)
			}
			task.Debugf("removing %s", target)
			return errors.WithStack(os.Remove(target))
		default:
			return copyNewFile(path, filepath.Join(dest, rel))
		}
	})
}

// applyPatchFile applies a unified diff to target via the host "patch"
// tool, skipping it if a reverse dry-run shows it's already applied.
func applyPatchFile(task *ui.Task, patchFile, target string) error {
	dir := filepath.Dir(target)
	name := filepath.Base(target)

	if alreadyApplied(task, dir, name, patchFile) {
		task.Debugf("skipping already-applied patch %s", patchFile)
		return nil
	}

	task.Infof("applying patch %s", patchFile)
	if _, err := util.CaptureInDir(task, dir, "patch", "-p0", "-s", name, patchFile); err != nil {
		return errors.Wrapf(err, "applying %s to %s", patchFile, target)
	}
	return nil
}

// alreadyApplied runs "patch" in reverse-apply dry-run mode; a clean exit
// means the patch's changes are already present in the target.
func alreadyApplied(task *ui.Task, dir, name, patchFile string) bool {
	_, err := util.CaptureInDir(task, dir, "patch", "-p0", "-R", "-s", "--dry-run", name, patchFile)
	return err == nil
}

func copyNewFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errors.WithStack(err)
	}
	in, err := os.Open(src)
	if err != nil {
		return errors.WithStack(err)
	}
	defer in.Close() // nolint: errcheck

	out, err := os.Create(dest)
	if err != nil {
		return errors.WithStack(err)
	}
	defer out.Close() // nolint: errcheck

	if _, err := io.Copy(out, in); err != nil {
		return errors.Wrapf(err, "copying %s to %s", src, dest)
	}
	return nil
}
