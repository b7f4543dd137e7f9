package postprocess

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/vsprovision/vsprovision/errors"
	"github.com/vsprovision/vsprovision/platform"
)

// msvcLibAliases are the import libraries MSVC's own /DEFAULTLIB directives
// reference by upper-case name (e.g. /DEFAULTLIB:"LIBCMT"), even though the
// files on disk are properly lowercased. Grounded on install.py's ARCHS
// loop.
var msvcLibAliases = []string{"libcmt", "libcmtd", "msvcrt", "msvcrtd", "oldnames"}

// AddMSVCLibAliases adds upper-case symlinks (LIBCMT.lib -> libcmt.lib,
// etc.) next to MSVC's lowercased import libraries under
// <msvcToolsRoot>/lib/<arch>, for every requested target arch, so
// lld-link can resolve /DEFAULTLIB directives on a case-sensitive
// filesystem.
func AddMSVCLibAliases(msvcLibRoot string, targets []platform.Arch) error {
	for _, arch := range targets {
		archDir := filepath.Join(msvcLibRoot, string(arch))
		if _, err := os.Lstat(archDir); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return errors.WithStack(err)
		}
		for _, name := range msvcLibAliases {
			target := name + ".lib"
			if _, err := os.Lstat(filepath.Join(archDir, target)); err != nil {
				// Not every arch ships every alias target (e.g. debug CRT
				// libs may be absent); skip silently.
				continue
			}
			alias := filepath.Join(archDir, strings.ToUpper(name)+".lib")
			if _, err := os.Lstat(alias); err == nil {
				continue
			}
			if err := os.Symlink(target, alias); err != nil {
				return errors.Wrapf(err, "aliasing %s", alias)
			}
		}
	}
	return nil
}
