package manifest

import (
	"sort"
	"strconv"
	"strings"

	"github.com/gobwas/glob"

	"github.com/vsprovision/vsprovision/errors"
	"github.com/vsprovision/vsprovision/platform"
)

// schemaVariant distinguishes the two package-naming schemes spec.md §4.5
// describes for MSVC toolchain versions.
type schemaVariant int

const (
	schemaVS15 schemaVariant = iota
	schemaVS16
)

// presetEntry is one row of the MSVC version table: the SDK version and
// toolchain micro-version to request, and which package-naming schema
// applies.
type presetEntry struct {
	sdkVersion string
	toolVer    string
	schema     schemaVariant
}

// msvcPresets is spec.md §4.5's two-level version table, grounded on
// vsdownload.py's setPackageSelection dispatch (the literal per-version
// table it hard-codes).
var msvcPresets = map[string]presetEntry{
	"15.4": {"10.0.16299", "14.11", schemaVS15},
	"15.5": {"10.0.16299", "14.12", schemaVS15},
	"15.6": {"10.0.16299", "14.13", schemaVS15},
	"15.7": {"10.0.17134", "14.14", schemaVS15},
	"15.8": {"10.0.17134", "14.15", schemaVS15},
	"15.9": {"10.0.17763", "14.16", schemaVS15},

	"16.0":  {"10.0.17763", "14.20", schemaVS16},
	"16.1":  {"10.0.18362", "14.21", schemaVS16},
	"16.2":  {"10.0.18362", "14.22", schemaVS16},
	"16.3":  {"10.0.18362", "14.23", schemaVS16},
	"16.4":  {"10.0.18362", "14.24", schemaVS16},
	"16.5":  {"10.0.18362", "14.25", schemaVS16},
	"16.6":  {"10.0.18362", "14.26", schemaVS16},
	"16.7":  {"10.0.18362", "14.27", schemaVS16},
	"16.8":  {"10.0.18362", "14.28", schemaVS16},
	"16.9":  {"10.0.19041", "14.28.16.9", schemaVS16},
	"16.10": {"10.0.19041", "14.29.16.10", schemaVS16},
	"16.11": {"10.0.19041", "14.29.16.11", schemaVS16},
	"17.0":  {"10.0.19041", "14.30.17.0", schemaVS16},
	"17.1":  {"10.0.19041", "14.31.17.1", schemaVS16},
	"17.2":  {"10.0.19041", "14.32.17.2", schemaVS16},
	"17.3":  {"10.0.19041", "14.33.17.3", schemaVS16},
	"17.4":  {"10.0.22621", "14.34.17.4", schemaVS16},
	"17.5":  {"10.0.22621", "14.35.17.5", schemaVS16},
	"17.6":  {"10.0.22621", "14.36.17.6", schemaVS16},
	"17.7":  {"10.0.22621", "14.37.17.7", schemaVS16},
	"17.8":  {"10.0.22621", "14.38.17.8", schemaVS16},
	"17.9":  {"10.0.22621", "14.39.17.9", schemaVS16},
	"17.10": {"10.0.22621", "14.40.17.10", schemaVS16},
	"17.11": {"10.0.22621", "14.41.17.11", schemaVS16},
}

// SelectionOptions drives BuildRootSelection.
type SelectionOptions struct {
	MSVCVersion   string // "" means use the default/versionless workload
	SDKVersion    string // "" means don't pin
	Architectures []platform.Arch
	SkipATL       bool
	Packages      []string // explicit positional package ids, if any
}

// BuildRootSelection computes the root package id set and any ids that
// must be added to the ignore set, following spec.md §4.5. It returns the
// root ids (in the order they should be aggregated) and the extra ignore
// set entries SDK pinning produces.
func BuildRootSelection(index *Index, log warner, opts SelectionOptions) (roots []string, extraIgnore []string, err error) {
	if len(opts.Packages) > 0 {
		roots = append(roots, opts.Packages...)
	} else {
		roots = defaultPackages(opts)
	}

	if opts.MSVCVersion != "" {
		entry, ok := msvcPresets[opts.MSVCVersion]
		if !ok {
			return nil, nil, errors.Errorf("unsupported MSVC toolchain version %s", opts.MSVCVersion)
		}
		presetRoots, usedFallback := presetPackages(index, opts, entry)
		if usedFallback {
			log.Warnf("didn't find exact version packages for %s, assuming this is provided by the default/latest version", opts.MSVCVersion)
			roots = defaultPackages(opts)
		} else {
			roots = presetRoots
		}
	}

	if opts.SDKVersion != "" {
		extraIgnore, err = sdkIgnoreSet(index, opts.SDKVersion)
		if err != nil {
			return nil, nil, err
		}
		roots = append(roots, sdkPackageName(opts.SDKVersion))
	}

	return roots, extraIgnore, nil
}

// warner is the minimal logging surface BuildRootSelection needs; ui.Task
// and ui.UI both satisfy it.
type warner interface {
	Warnf(format string, args ...interface{})
}

func defaultPackages(opts SelectionOptions) []string {
	pkgs := []string{"Microsoft.VisualStudio.Workload.VCTools"}
	if !opts.SkipATL {
		pkgs = append(pkgs, "Microsoft.VisualStudio.Component.VC.ATL")
	}
	for _, arch := range opts.Architectures {
		switch arch {
		case platform.ARM, platform.ARM64:
			tag := strings.ToUpper(string(arch))
			pkgs = append(pkgs, "Microsoft.VisualStudio.Component.VC.Tools."+tag)
			if !opts.SkipATL {
				pkgs = append(pkgs, "Microsoft.VisualStudio.Component.VC.ATL."+tag)
			}
		}
	}
	return pkgs
}

// presetPackages builds the version-pinned root set for one table entry,
// reporting whether the expected toolchain package was absent from the
// manifest (the fallback-to-default path spec.md §4.5 describes).
func presetPackages(index *Index, opts SelectionOptions, entry presetEntry) (roots []string, usedFallback bool) {
	switch entry.schema {
	case schemaVS15:
		toolPkg := "Microsoft.VisualStudio.Component.VC.Tools." + entry.toolVer
		if _, ok := index.Lookup(toolPkg); !ok {
			return nil, true
		}
		sdkPkg := "Win10SDK_" + entry.sdkVersion
		return []string{sdkPkg, toolPkg}, false

	default: // schemaVS16
		toolPkg := "Microsoft.VisualStudio.Component.VC." + entry.toolVer + ".x86.x64"
		if _, ok := index.Lookup(toolPkg); !ok {
			return nil, true
		}
		sdkPkg := sdkPackageName(entry.sdkVersion)
		roots = []string{sdkPkg, toolPkg}
		if !opts.SkipATL {
			roots = append(roots, "Microsoft.VisualStudio.Component.VC."+entry.toolVer+".ATL")
		}
		for _, arch := range opts.Architectures {
			switch arch {
			case platform.ARM, platform.ARM64:
				tag := strings.ToUpper(string(arch))
				roots = append(roots, "Microsoft.VisualStudio.Component.VC."+entry.toolVer+"."+tag)
				if !opts.SkipATL {
					roots = append(roots, "Microsoft.VisualStudio.Component.VC."+entry.toolVer+".ATL."+tag)
				}
			}
		}
		return roots, false
	}
}

// sdkPackageName picks the Win10SDK_/Win11SDK_ prefix by SDK build number,
// per spec.md §4.5 ("minor >= 22000 -> Win11SDK").
func sdkPackageName(sdkVersion string) string {
	if build, ok := sdkBuildNumber(sdkVersion); ok && build >= 22000 {
		return "Win11SDK_" + sdkVersion
	}
	return "Win10SDK_" + sdkVersion
}

func sdkBuildNumber(sdkVersion string) (int, bool) {
	const prefix = "10.0."
	if !strings.HasPrefix(sdkVersion, prefix) {
		return 0, false
	}
	rest := sdkVersion[len(prefix):]
	if dot := strings.IndexByte(rest, '.'); dot >= 0 {
		rest = rest[:dot]
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}

// sdkIgnoreSet implements SDK pinning (spec.md §4.5): scan every
// win10sdk*/win11sdk* id, keep only the one matching "sdkVersion", and add
// every other SDK id to the ignore set. Returns SDKNotFound (with the
// sorted list of available versions in the error message) if none match.
func sdkIgnoreSet(index *Index, sdkVersion string) ([]string, error) {
	matchGlob := glob.MustCompile("win1[01]sdk*")
	var available []string
	var ignore []string
	matched := false
	target := sdkPackageName(sdkVersion)
	for _, id := range index.IDs() {
		if !matchGlob.Match(id) {
			continue
		}
		available = append(available, id)
		if strings.EqualFold(id, target) {
			matched = true
			continue
		}
		ignore = append(ignore, id)
	}
	if !matched {
		sort.Strings(available)
		return nil, errors.Errorf("WinSDK version %s not found; available versions: %s", sdkVersion, strings.Join(available, ", "))
	}
	return ignore, nil
}
