package postprocess

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vsprovision/vsprovision/errors"
	"github.com/vsprovision/vsprovision/platform"
)

// LowercaseSDKSurface recursively case-folds the SDK include/lib roots that
// ship with mixed-case names in the upstream VSIX/MSI payloads, per
// spec.md §4.8.2: `kits/10/include/<sdkver>/{um,shared}` and
// `kits/10/lib/<sdkver>/um/<arch>` for every requested target arch.
// Symlink targets are rewritten to lowercase where needed. Running this
// twice over the same tree is a no-op (P9): the second pass finds
// everything already lowercased and no rename occurs.
func LowercaseSDKSurface(destRoot, sdkVersion string, targets []platform.Arch) error {
	includeBase := filepath.Join(destRoot, "kits", "10", "include", sdkVersion)
	for _, sub := range []string{"um", "shared"} {
		if err := lowercaseTree(filepath.Join(includeBase, sub)); err != nil {
			return err
		}
	}
	for _, arch := range targets {
		libDir := filepath.Join(destRoot, "kits", "10", "lib", sdkVersion, "um", string(arch))
		if err := lowercaseTree(libDir); err != nil {
			return err
		}
	}
	return nil
}

// lowercaseTree renames every entry under root to its lowercased name,
// deepest first so a rename never invalidates an already-computed child
// path, merging into any already-lowercase sibling that exists.
func lowercaseTree(root string) error {
	if _, err := os.Lstat(root); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.WithStack(err)
	}

	// Collect every path bottom-up so children are renamed before their
	// parent directory is renamed out from under them.
	var paths []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return errors.WithStack(err)
		}
		if path != root {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	sort.Sort(sort.Reverse(byDepthThenName(paths)))

	for _, path := range paths {
		if err := lowercaseEntry(path); err != nil {
			return err
		}
	}
	return nil
}

func lowercaseEntry(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Already moved by an ancestor rename in this same pass.
			return nil
		}
		return errors.WithStack(err)
	}

	if info.Mode()&os.ModeSymlink != 0 {
		if err := lowercaseSymlinkTarget(path); err != nil {
			return err
		}
	}

	dir := filepath.Dir(path)
	name := info.Name()
	lower := strings.ToLower(name)
	if name == lower {
		return nil
	}
	dest := filepath.Join(dir, lower)

	if destInfo, statErr := os.Lstat(dest); statErr == nil {
		if info.IsDir() && destInfo.IsDir() {
			return mergeDirInto(path, dest)
		}
		if err := os.RemoveAll(dest); err != nil {
			return errors.WithStack(err)
		}
	}
	if err := os.Rename(path, dest); err != nil {
		return errors.Wrapf(err, "lowercasing %s", path)
	}
	return nil
}

// mergeDirInto moves every child of src into an already-lowercased dest
// directory, then removes the now-empty src.
func mergeDirInto(src, dest string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return errors.WithStack(err)
	}
	for _, e := range entries {
		from := filepath.Join(src, e.Name())
		to := filepath.Join(dest, e.Name())
		if toInfo, statErr := os.Lstat(to); statErr == nil {
			if e.IsDir() && toInfo.IsDir() {
				if err := mergeDirInto(from, to); err != nil {
					return err
				}
				continue
			}
			if err := os.RemoveAll(to); err != nil {
				return errors.WithStack(err)
			}
		}
		if err := os.Rename(from, to); err != nil {
			return errors.Wrapf(err, "merging %s into %s", from, to)
		}
	}
	return os.Remove(src)
}

func lowercaseSymlinkTarget(path string) error {
	target, err := os.Readlink(path)
	if err != nil {
		return errors.WithStack(err)
	}
	lower := strings.ToLower(strings.ReplaceAll(target, `\`, "/"))
	if lower == target {
		return nil
	}
	if err := os.Remove(path); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.Symlink(lower, path))
}

type byDepthThenName []string

func (b byDepthThenName) Len() int      { return len(b) }
func (b byDepthThenName) Swap(i, j int) { b[i], b[j] = b[j], b[i] }
func (b byDepthThenName) Less(i, j int) bool {
	di, dj := strings.Count(b[i], string(filepath.Separator)), strings.Count(b[j], string(filepath.Separator))
	if di != dj {
		return di < dj
	}
	return b[i] < b[j]
}
