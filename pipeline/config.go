// Package pipeline wires the Manifest Loader, Package Index, Selection
// Presets, Dependency Resolver, Downloader, Extractor and Post-processor
// into the single control flow spec.md §2 describes: CLI args -> Manifest
// Loader -> Package Index -> Selection Presets -> Dependency Resolver ->
// Downloader -> Extractor -> Post-processor.
package pipeline

import (
	"github.com/vsprovision/vsprovision/manifest"
	"github.com/vsprovision/vsprovision/platform"
)

// Config mirrors the CLI surface of spec.md §6, already parsed and
// validated by cmd/vsprovision.
type Config struct {
	// Inputs
	ManifestRef string
	Major       int
	Preview     bool
	MSVCVersion string
	SDKVersion  string
	Architectures []platform.Arch
	HostArch    platform.Arch
	OnlyHost    bool

	// Selection
	Packages        []string
	Ignore          []string
	IncludeOptional bool
	SkipRecommended bool
	SkipATL         bool
	SkipDIASDK      bool

	// Diagnostics
	ListWorkloads    bool
	ListComponents   bool
	ListPackages     bool
	PrintDepsTree    bool
	PrintReverseDeps []string
	PrintSelection   bool
	PrintVersion     bool
	SaveManifestPath string

	// Execution
	CacheDir         string
	DestDir          string
	OnlyDownload     bool
	OnlyUnpack       bool
	KeepUnpack       bool
	SkipPatch        bool
	PatchesDir       string
	WithWDKInstallers string
	AcceptLicense    bool
}

// Channel returns the channel selector Preview implies.
func (c Config) Channel() manifest.Channel {
	if c.Preview {
		return manifest.ChannelPre
	}
	return manifest.ChannelRelease
}

// architectureSet converts Architectures into the set the Constraint
// Engine consumes, substituting the host arch for the literal "host"
// pseudo-arch spec.md §6 documents.
func (c Config) architectureSet() map[platform.Arch]bool {
	set := make(map[platform.Arch]bool, len(c.Architectures))
	for _, a := range c.Architectures {
		if a == "host" {
			set[c.HostArch] = true
			continue
		}
		set[a] = true
	}
	if len(set) == 0 {
		set[c.HostArch] = true
	}
	return set
}

// targetArches returns the resolved (non-"host") target architecture list
// the Post-processor needs for its per-arch case-fold/lib-alias passes.
func (c Config) targetArches() []platform.Arch {
	set := c.architectureSet()
	out := make([]platform.Arch, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	return out
}
