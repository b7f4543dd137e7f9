// Package postprocess normalizes extracted MSVC/SDK trees into the
// canonical on-disk layout: case-folding headers/libs, rewriting #include
// directives, relocating canonical subtrees, applying out-of-tree patches
// and ingesting WDK installers. Grounded on original_source's
// fixinclude.py, lowercase.py and vsdownload.py/install.py.
package postprocess

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"

	"github.com/vsprovision/vsprovision/errors"
)

// includeDirective matches a #include line and captures the directive
// prefix, the bracketed/quoted path, and any trailing text (e.g. a
// trailing comment), per spec.md §4.8.3.
var includeDirective = regexp.MustCompile(`(?m)^(\s*#\s*include\s*)(<[^>]*>|"([^"\\]|\\.)*")(.*)$`)

// RewriteIncludeDirectives lowercases the path portion of every #include
// directive in "data" and replaces backslashes with forward slashes, byte
// for byte, leaving every other line untouched. Applying it twice to its
// own output is a no-op (P8).
func RewriteIncludeDirectives(data []byte) []byte {
	return includeDirective.ReplaceAllFunc(data, func(line []byte) []byte {
		m := includeDirective.FindSubmatch(line)
		prefix, path, trailer := m[1], m[2], m[4]
		path = bytes.ToLower(path)
		path = bytes.ReplaceAll(path, []byte(`\`), []byte("/"))
		out := make([]byte, 0, len(prefix)+len(path)+len(trailer))
		out = append(out, prefix...)
		out = append(out, path...)
		out = append(out, trailer...)
		return out
	})
}

// RewriteIncludesInTree walks "root" rewriting #include directives in
// every regular file (symlinks are left untouched: they're handled by the
// case-fold pass instead, spec.md §4.8.2).
func RewriteIncludesInTree(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return errors.WithStack(err)
		}
		if info.Mode()&os.ModeSymlink != 0 || info.IsDir() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "reading %s", path)
		}
		rewritten := RewriteIncludeDirectives(data)
		if bytes.Equal(rewritten, data) {
			return nil
		}
		if err := os.WriteFile(path, rewritten, info.Mode().Perm()); err != nil {
			return errors.Wrapf(err, "writing %s", path)
		}
		return nil
	})
}
