package postprocess

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/vsprovision/vsprovision/errors"
	"github.com/vsprovision/vsprovision/extract"
	"github.com/vsprovision/vsprovision/ui"
)

// RelocateOptions controls which optional subtrees Relocate moves out of
// staging, per spec.md §4.8.1 and SPEC_FULL.md §7's --skip-dia-sdk flag.
type RelocateOptions struct {
	SkipDIASDK bool
}

// Relocate moves the canonical `VC` and `Windows Kits` subtrees (plus
// `MSBuild` and, unless skipped, `DIA SDK`) out of the extractor's staging
// directory into dest, via extract.MergeTrees. On non-Windows hosts
// msiextract unpacks the SDK under a `Program Files` prefix that Windows'
// own msiexec doesn't produce; that prefix is stripped during the move.
func Relocate(task *ui.Task, staging, dest string, opts RelocateOptions) error {
	if err := mergeIfExists(filepath.Join(staging, "VC"), filepath.Join(dest, "VC")); err != nil {
		return errors.Wrapf(err, "relocating VC")
	}

	kitsSrc := staging
	if runtime.GOOS != "windows" {
		kitsSrc = filepath.Join(kitsSrc, "Program Files")
	}
	if err := mergeIfExists(filepath.Join(kitsSrc, "Windows Kits"), filepath.Join(dest, "Windows Kits")); err != nil {
		return errors.Wrapf(err, "relocating Windows Kits")
	}

	extraDirs := []string{"MSBuild"}
	if !opts.SkipDIASDK {
		extraDirs = append(extraDirs, "DIA SDK")
	}
	for _, dir := range extraDirs {
		if err := mergeIfExists(filepath.Join(staging, dir), filepath.Join(dest, dir)); err != nil {
			return errors.Wrapf(err, "relocating %s", dir)
		}
	}

	if err := canonicalizeLayout(dest); err != nil {
		return err
	}

	if err := RemoveVCTip(dest); err != nil {
		return err
	}
	task.Debugf("relocated canonical subtrees into %s", dest)
	return nil
}

// canonicalizeLayout applies the lowercase path-segment renames spec.md §6
// names for the final tree: `VC/tools/msvc` stays VC-capitalized at the
// top but lowercases `Tools`/`MSVC`, while `Windows Kits` becomes `kits`
// with its `Include`/`Lib` children lowercased too.
func canonicalizeLayout(dest string) error {
	if err := renameCaseInsensitive(filepath.Join(dest, "VC"), "Tools", "tools"); err != nil {
		return err
	}
	if err := renameCaseInsensitive(filepath.Join(dest, "VC", "tools"), "MSVC", "msvc"); err != nil {
		return err
	}
	if err := renameCaseInsensitive(dest, "Windows Kits", "kits"); err != nil {
		return err
	}
	kitsTen := filepath.Join(dest, "kits", "10")
	if err := renameCaseInsensitive(kitsTen, "Include", "include"); err != nil {
		return err
	}
	return renameCaseInsensitive(kitsTen, "Lib", "lib")
}

// renameCaseInsensitive renames the child of parent matching "from"
// (case-insensitively) to "to", merging into an already-canonical sibling
// if one exists. No-op if parent or the matching child doesn't exist.
func renameCaseInsensitive(parent, from, to string) error {
	entries, err := os.ReadDir(parent)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.WithStack(err)
	}
	var actual string
	for _, e := range entries {
		if strings.EqualFold(e.Name(), from) {
			actual = e.Name()
			break
		}
	}
	if actual == "" || actual == to {
		return nil
	}
	return extract.MergeTrees(filepath.Join(parent, actual), filepath.Join(parent, to))
}

// mergeIfExists merges src into dest, silently doing nothing if src isn't
// present: not every selection includes every optional subtree (e.g. a
// run skipping the DIA SDK component never populates that directory).
func mergeIfExists(src, dest string) error {
	info, err := os.Lstat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.WithStack(err)
	}
	if !info.IsDir() {
		return nil
	}
	return extract.MergeTrees(src, dest)
}

// RemoveVCTip deletes every vctip.exe found under dest: the MSVC telemetry
// uploader is known to hang or crash under emulation and serves no purpose
// outside a live Visual Studio installation (SPEC_FULL.md §7).
func RemoveVCTip(dest string) error {
	if _, err := os.Lstat(dest); os.IsNotExist(err) {
		return nil
	}
	return filepath.Walk(dest, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return errors.WithStack(err)
		}
		if info.IsDir() || info.Name() != "vctip.exe" {
			return nil
		}
		return errors.WithStack(os.Remove(path))
	})
}
