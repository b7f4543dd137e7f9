package postprocess

import (
	"path/filepath"

	"github.com/vsprovision/vsprovision/platform"
	"github.com/vsprovision/vsprovision/ui"
)

// Options configures the post-processing run, collecting the flags
// SPEC_FULL.md §7 and spec.md §6 add on top of plain extraction.
type Options struct {
	RelocateOptions
	SDKVersion string
	Targets    []platform.Arch
	MSVCVer    string
	PatchesDir string
	SkipPatch  bool
}

// Run performs the ordered spec.md §4.8 post-processing pass: canonical
// relocation, SDK surface case-folding, #include rewriting, MSVC import-lib
// aliasing, then optional out-of-tree patching.
func Run(task *ui.Task, staging, dest string, opts Options) error {
	if err := Relocate(task.SubTask("relocate"), staging, dest, opts.RelocateOptions); err != nil {
		return err
	}

	if opts.SDKVersion != "" {
		if err := LowercaseSDKSurface(dest, opts.SDKVersion, opts.Targets); err != nil {
			return err
		}
		includeBase := filepath.Join(dest, "kits", "10", "include", opts.SDKVersion)
		for _, sub := range []string{"um", "shared"} {
			if err := RewriteIncludesInTree(filepath.Join(includeBase, sub)); err != nil {
				return err
			}
		}
	}

	if opts.MSVCVer != "" {
		libRoot := filepath.Join(dest, "VC", "tools", "msvc", opts.MSVCVer, "lib")
		if err := AddMSVCLibAliases(libRoot, opts.Targets); err != nil {
			return err
		}
	}

	if opts.PatchesDir != "" && !opts.SkipPatch {
		if err := ApplyPatches(task.SubTask("patch"), opts.PatchesDir, dest); err != nil {
			return err
		}
	}

	return nil
}
