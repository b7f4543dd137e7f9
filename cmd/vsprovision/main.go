// Command vsprovision downloads and extracts the MSVC compiler toolchain
// and Windows SDK headers/libs from Microsoft's Visual Studio installer
// manifests, laid out into a portable, case-folded directory tree.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/mattn/go-isatty"
	"github.com/posener/complete"
	"github.com/willabides/kongplete"

	"github.com/vsprovision/vsprovision/errors"
	"github.com/vsprovision/vsprovision/pipeline"
	"github.com/vsprovision/vsprovision/platform"
	"github.com/vsprovision/vsprovision/ui"
)

var version = "devel"

// cli mirrors spec.md §6's flat flag surface; it is translated into a
// pipeline.Config after parsing rather than threaded through directly, so
// the pipeline package stays independent of the kong struct tags.
type cli struct {
	// Logging, not part of spec.md §6 proper but carried the way the
	// teacher's CLI exposes it.
	Debug bool     `help:"Enable debug logging." short:"d"`
	Trace bool     `help:"Enable trace logging." short:"t"`
	Quiet bool     `help:"Disable logging and progress UI, except errors." short:"q"`
	Level ui.Level `help:"Set minimum log level." default:"info" enum:"trace,debug,info,warn,error,fatal"`

	VersionFlag kong.VersionFlag `help:"Show vsprovision's own version and exit." name:"version"`

	// Inputs
	Manifest     string   `placeholder:"PATH|URL" help:"Installer manifest to use instead of resolving one from the channel."`
	Major        int      `default:"17" help:"Visual Studio major version to resolve a channel for."`
	Preview      bool     `help:"Use the pre-release channel instead of release."`
	MSVCVersion  string   `name:"msvc-version" placeholder:"V" help:"Pin a specific MSVC toolchain version (e.g. 17.8)."`
	SDKVersion   string   `name:"sdk-version" placeholder:"V" help:"Pin a specific Windows SDK version (e.g. 10.0.22621.0)."`
	Architecture []string `name:"architecture" placeholder:"{host,x86,x64,arm,arm64}" help:"Target architecture(s) to provision; repeatable."`
	HostArch     string   `name:"host-arch" placeholder:"{x86,x64,arm64}" help:"Override host architecture detection."`
	OnlyHost     bool     `name:"only-host" help:"Restrict to packages whose hostArch matches the detected/overridden host."`

	// Selection
	Packages        []string `arg:"" optional:"" name:"package" help:"Package ids to select as resolution roots (default: the VCTools workload)."`
	Ignore          []string `placeholder:"COMPONENT" help:"Package id(s) to drop from the dependency graph; repeatable."`
	IncludeOptional bool     `help:"Include Optional dependency edges."`
	SkipRecommended bool     `help:"Drop Recommended dependency edges."`
	SkipATL         bool     `help:"Don't add the default ATL packages for the selected architectures."`
	SkipDIASDK      bool     `name:"skip-dia-sdk" help:"Don't relocate the DIA SDK into the output tree."`

	// Diagnostics
	ListWorkloads    bool     `help:"List available workload package ids and exit."`
	ListComponents   bool     `help:"List available component package ids and exit."`
	ListPackages     bool     `help:"List every package id in the manifest and exit."`
	PrintDepsTree    bool     `name:"print-deps-tree" help:"Print the dependency tree from the selected roots and exit."`
	PrintReverseDeps []string `name:"print-reverse-deps" placeholder:"ID" help:"Print the chain of dependents pulling in ID and exit; repeatable."`
	PrintSelection   bool     `name:"print-selection" help:"Print the resolved Selection List (Package Keys) and exit."`
	PrintVersion     bool     `name:"print-version" help:"Print the manifest's product display version and exit."`
	SaveManifest     string   `name:"save-manifest" placeholder:"PATH" help:"Save the raw installer manifest to PATH."`

	// Execution
	Cache             string `placeholder:"DIR" help:"Download cache directory." default:"~/.cache/vsprovision"`
	Dest              string `placeholder:"DIR" help:"Destination directory for the provisioned toolchain (required unless --only-download)."`
	OnlyDownload      bool   `name:"only-download" help:"Stop after populating the cache; skip extraction and post-processing."`
	OnlyUnpack        bool   `name:"only-unpack" help:"Stop after extraction; skip post-processing."`
	KeepUnpack        bool   `name:"keep-unpack" help:"Don't remove the staging directory after post-processing."`
	SkipPatch         bool   `name:"skip-patch" help:"Don't apply out-of-tree patches."`
	PatchesDir        string `name:"patches" placeholder:"DIR" help:"Directory of .patch/.remove files to apply to the output tree."`
	WithWDKInstallers string `name:"with-wdk-installers" placeholder:"DIR" help:"Ingest a Windows Driver Kit installer directory alongside the SDK."`
	AcceptLicense     bool   `name:"accept-license" help:"Accept the Visual Studio Build Tools license (required before any payload is downloaded)."`
}

func main() {
	var c cli
	parser, err := kong.New(&c,
		kong.Description("Provision an MSVC compiler toolchain and Windows SDK headers/libs without the Visual Studio installer."),
		kong.Vars{"version": version},
		kong.UsageOnError(),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// kongplete.Complete intercepts shell-completion invocations (driven by
	// posener/complete's COMP_LINE protocol, e.g. `complete -C vsprovision
	// vsprovision`) and exits before reaching Parse below.
	kongplete.Complete(parser,
		kongplete.WithPredictor("dir", complete.PredictDirs("*")),
		kongplete.WithPredictor("file", complete.PredictFiles("*")),
	)

	_, err = parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	level := c.Level
	switch {
	case c.Trace:
		level = ui.LevelTrace
	case c.Debug:
		level = ui.LevelDebug
	case c.Quiet:
		level = ui.LevelError
	}

	w := ui.New(level, os.Stdout, os.Stderr, isatty.IsTerminal(os.Stdout.Fd()), isatty.IsTerminal(os.Stderr.Fd()))

	cfg := pipeline.Config{
		ManifestRef:       c.Manifest,
		Major:             c.Major,
		Preview:           c.Preview,
		MSVCVersion:       c.MSVCVersion,
		SDKVersion:        c.SDKVersion,
		Architectures:     toArches(c.Architecture),
		HostArch:          hostArch(c.HostArch),
		OnlyHost:          c.OnlyHost,
		Packages:          c.Packages,
		Ignore:            c.Ignore,
		IncludeOptional:   c.IncludeOptional,
		SkipRecommended:   c.SkipRecommended,
		SkipATL:           c.SkipATL,
		SkipDIASDK:        c.SkipDIASDK,
		ListWorkloads:     c.ListWorkloads,
		ListComponents:    c.ListComponents,
		ListPackages:      c.ListPackages,
		PrintDepsTree:     c.PrintDepsTree,
		PrintReverseDeps:  c.PrintReverseDeps,
		PrintSelection:    c.PrintSelection,
		PrintVersion:      c.PrintVersion,
		SaveManifestPath:  c.SaveManifest,
		CacheDir:          expandHome(c.Cache),
		DestDir:           c.Dest,
		OnlyDownload:      c.OnlyDownload,
		OnlyUnpack:        c.OnlyUnpack,
		KeepUnpack:        c.KeepUnpack,
		SkipPatch:         c.SkipPatch,
		PatchesDir:        c.PatchesDir,
		WithWDKInstallers: c.WithWDKInstallers,
		AcceptLicense:     c.AcceptLicense,
	}

	err = pipeline.New(w, cfg).Run()
	switch {
	case err == nil:
		os.Exit(0)
	case errors.Is(err, pipeline.ErrLicenseDeclined):
		// spec.md §6: declining the license exits 0, the same as a
		// diagnostic listing flag's early exit.
		w.Errorf("%s", err)
		os.Exit(0)
	default:
		w.Errorf("%s", err)
		os.Exit(errors.ExitCodeFromError(err))
	}
}

// hostArch leaves "" alone so Pipeline.Run can fall back to platform.HostArch
// autodetection; --host-arch only overrides when the user actually sets it.
func hostArch(raw string) platform.Arch {
	if raw == "" {
		return ""
	}
	return platform.Normalize(raw)
}

func toArches(raw []string) []platform.Arch {
	out := make([]platform.Arch, 0, len(raw))
	for _, a := range raw {
		if a == "host" {
			out = append(out, platform.Arch("host"))
			continue
		}
		out = append(out, platform.Normalize(a))
	}
	return out
}

func expandHome(path string) string {
	return kong.ExpandPath(path)
}
