package pipeline

import (
	"os"
	"sort"
	"strings"

	"github.com/vsprovision/vsprovision/cache"
	"github.com/vsprovision/vsprovision/errors"
	"github.com/vsprovision/vsprovision/extract"
	"github.com/vsprovision/vsprovision/manifest"
	"github.com/vsprovision/vsprovision/platform"
	"github.com/vsprovision/vsprovision/postprocess"
	"github.com/vsprovision/vsprovision/ui"
)

// ErrLicenseDeclined is returned when AcceptLicense is false: spec.md §6
// requires explicit license acceptance before any network activity.
var ErrLicenseDeclined = errors.New("license not accepted (pass --accept-license)")

// Pipeline runs the end-to-end provisioning flow against a single UI.
type Pipeline struct {
	UI  *ui.UI
	Cfg Config
}

// New returns a Pipeline bound to "w" and "cfg".
func New(w *ui.UI, cfg Config) *Pipeline {
	return &Pipeline{UI: w, Cfg: cfg}
}

// Run executes spec.md §2's control flow: load, index, select, resolve,
// download, extract, post-process. Diagnostic flags short-circuit after
// the step that produces their output.
func (p *Pipeline) Run() error {
	cfg := p.Cfg
	// Diagnostics only ever read the manifest; license acceptance gates
	// payload downloads, so every diagnostic early-exit is exempt.
	isDiagnostic := cfg.PrintVersion || cfg.ListWorkloads || cfg.ListComponents || cfg.ListPackages ||
		cfg.PrintDepsTree || len(cfg.PrintReverseDeps) > 0 || cfg.PrintSelection || cfg.SaveManifestPath != ""
	if !cfg.AcceptLicense && !isDiagnostic {
		return errors.WithStack(ErrLicenseDeclined)
	}

	task := p.UI.Task("provision")

	loader := manifest.NewLoader()
	if cfg.SaveManifestPath != "" {
		raw, err := loader.FetchRaw(cfg.ManifestRef, cfg.Major, cfg.Channel())
		if err != nil {
			return err
		}
		if err := manifest.SaveManifest(cfg.SaveManifestPath, raw); err != nil {
			return err
		}
	}

	m, err := loader.Load(cfg.ManifestRef, cfg.Major, cfg.Channel())
	if err != nil {
		return err
	}

	if cfg.PrintVersion {
		p.UI.Printf("%s\n", m.Info.ProductDisplayVersion)
		return nil
	}

	host := cfg.HostArch
	if host == "" {
		if h, ok := platform.HostArch(); ok {
			host = h
		} else {
			host = platform.X64
		}
	}
	index := manifest.BuildIndex(m.Packages, host)

	if cfg.ListWorkloads {
		printIDsOfType(p.UI, index, manifest.TypeWorkload)
		return nil
	}
	if cfg.ListComponents {
		printIDsOfType(p.UI, index, manifest.TypeComponent)
		return nil
	}
	if cfg.ListPackages {
		for _, id := range index.IDs() {
			p.UI.Printf("%s\n", id)
		}
		return nil
	}

	roots, extraIgnore, err := manifest.BuildRootSelection(index, task, manifest.SelectionOptions{
		MSVCVersion:   cfg.MSVCVersion,
		SDKVersion:    cfg.SDKVersion,
		Architectures: cfg.targetArches(),
		SkipATL:       cfg.SkipATL,
		Packages:      cfg.Packages,
	})
	if err != nil {
		return err
	}

	ignore := make(map[string]bool, len(cfg.Ignore)+len(extraIgnore))
	for _, id := range cfg.Ignore {
		ignore[strings.ToLower(id)] = true
	}
	for _, id := range extraIgnore {
		ignore[strings.ToLower(id)] = true
	}

	engine := manifest.NewEngine(index, manifest.Options{
		Ignore:          ignore,
		IncludeOptional: cfg.IncludeOptional,
		SkipRecommended: cfg.SkipRecommended,
		OnlyHost:        cfg.OnlyHost,
		HostArch:        host,
		Architectures:   cfg.architectureSet(),
	})
	resolver := manifest.NewResolver(index, engine, task)

	if cfg.PrintDepsTree {
		resolver.PrintTree(&printfWriter{p.UI}, roots)
		return nil
	}
	if len(cfg.PrintReverseDeps) > 0 {
		resolver.PrintReverseDeps(&printfWriter{p.UI}, roots, cfg.PrintReverseDeps)
		return nil
	}

	selection := resolver.Aggregate(roots)

	if cfg.PrintSelection {
		for _, v := range selection.Variants() {
			p.UI.Printf("%s\n", manifest.NewPackageKey(v))
		}
		return nil
	}

	if !cfg.AcceptLicense {
		return errors.WithStack(ErrLicenseDeclined)
	}

	c, err := cache.New(cfg.CacheDir)
	if err != nil {
		return err
	}
	stop := &cache.Flag{}
	downloader := cache.NewDownloader(c, stop)
	downloader.OnlyDownload = cfg.OnlyDownload
	pool := cache.NewPool(downloader)

	if _, err := cache.FetchAll(task, pool, selection.Variants()); err != nil {
		return err
	}
	if cfg.OnlyDownload {
		return nil
	}

	if cfg.DestDir == "" {
		return errors.New("--dest is required unless --only-download is set")
	}

	staging := cfg.DestDir + ".staging"
	extractor := extract.New(c)
	extractTask := task.SubTask("extract")
	for _, v := range selection.Variants() {
		if err := extractor.Extract(extractTask, staging, v); err != nil {
			return err
		}
	}

	if cfg.WithWDKInstallers != "" {
		if err := postprocess.IngestWDKInstallers(task.SubTask("wdk"), cfg.WithWDKInstallers, staging); err != nil {
			return err
		}
	}

	if cfg.OnlyUnpack {
		return nil
	}

	msvcVer := toolchainVersion(selection.Variants())
	err = postprocess.Run(task.SubTask("postprocess"), staging, cfg.DestDir, postprocess.Options{
		RelocateOptions: postprocess.RelocateOptions{SkipDIASDK: cfg.SkipDIASDK},
		SDKVersion:      cfg.SDKVersion,
		Targets:         cfg.targetArches(),
		MSVCVer:         msvcVer,
		PatchesDir:      cfg.PatchesDir,
		SkipPatch:       cfg.SkipPatch,
	})
	if err != nil {
		return err
	}

	if !cfg.KeepUnpack {
		_ = removeStaging(staging)
	}
	return nil
}

// toolchainVersion returns the MSVC toolchain version directory name: the
// Version of the selected VC.Tools.x86.x64/VC.Toolset.x86.x64 variants,
// taking the last in string order when there are several. Falls back to ""
// (no lib-aliasing pass) if no toolchain package was selected.
func toolchainVersion(variants []*manifest.Variant) string {
	var versions []string
	for _, v := range variants {
		if strings.Contains(strings.ToLower(v.ID), "vc.tools.x86.x64") || strings.Contains(strings.ToLower(v.ID), "vc.toolset.x86.x64") {
			versions = append(versions, v.Version)
		}
	}
	sort.Strings(versions)
	if len(versions) == 0 {
		return ""
	}
	return versions[len(versions)-1]
}

func printIDsOfType(w *ui.UI, index *manifest.Index, typ manifest.VariantType) {
	seen := make(map[string]bool)
	for _, id := range index.IDs() {
		v, ok := index.Preferred(id)
		if !ok || v.Type != typ || seen[id] {
			continue
		}
		seen[id] = true
		w.Printf("%s\n", id)
	}
}

// printfWriter adapts ui.UI.Printf to io.Writer, for Resolver methods that
// take a plain writer (they're shared with non-UI callers in tests).
type printfWriter struct{ w *ui.UI }

func (p *printfWriter) Write(b []byte) (int, error) {
	p.w.Printf("%s", b)
	return len(b), nil
}

func removeStaging(staging string) error {
	return errors.WithStack(os.RemoveAll(staging))
}
