package pipeline

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsprovision/vsprovision/manifest"
	"github.com/vsprovision/vsprovision/platform"
	"github.com/vsprovision/vsprovision/ui"
)

const testManifest = `{
	"info": {"productDisplayVersion": "17.9.1"},
	"packages": [
		{"id": "Microsoft.VisualStudio.Workload.VCTools", "type": "Workload", "version": "1.0",
		 "dependencies": {"Microsoft.VisualStudio.Component.VC.Tools.x86.x64": {}}},
		{"id": "Microsoft.VisualStudio.Component.VC.Tools.x86.x64", "type": "Component", "version": "1.0"},
		{"id": "Microsoft.VisualStudio.Component.VC.ATL", "type": "Component", "version": "1.0"}
	]
}`

func newTestPipeline(t *testing.T, manifestPath string, mutate func(*Config)) (*Pipeline, *ui.UI) {
	t.Helper()
	w, _ := ui.NewForTesting()
	cfg := Config{
		ManifestRef: manifestPath,
		AcceptLicense: true,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return New(w, cfg), w
}

func writeTestManifest(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "installer.json")
	require.NoError(t, os.WriteFile(path, []byte(testManifest), 0644))
	return path
}

func TestPipelineDeclinesWithoutLicense(t *testing.T) {
	path := writeTestManifest(t)
	p, _ := newTestPipeline(t, path, func(c *Config) { c.AcceptLicense = false })
	err := p.Run()
	assert.ErrorIs(t, err, ErrLicenseDeclined)
}

func TestPipelinePrintVersionBypassesLicense(t *testing.T) {
	path := writeTestManifest(t)
	p, w := newTestPipeline(t, path, func(c *Config) {
		c.AcceptLicense = false
		c.PrintVersion = true
	})
	require.NoError(t, p.Run())
	assert.NoError(t, w.Sync())
}

func TestPipelineListWorkloads(t *testing.T) {
	path := writeTestManifest(t)
	p, _ := newTestPipeline(t, path, func(c *Config) {
		c.AcceptLicense = false
		c.ListWorkloads = true
	})
	require.NoError(t, p.Run())
}

func TestPipelineListComponents(t *testing.T) {
	path := writeTestManifest(t)
	p, _ := newTestPipeline(t, path, func(c *Config) {
		c.AcceptLicense = false
		c.ListComponents = true
	})
	require.NoError(t, p.Run())
}

func TestPipelinePrintSelection(t *testing.T) {
	path := writeTestManifest(t)
	p, _ := newTestPipeline(t, path, func(c *Config) {
		c.AcceptLicense = false
		c.PrintSelection = true
		c.HostArch = platform.X64
		c.Architectures = []platform.Arch{platform.X64}
	})
	require.NoError(t, p.Run())
}

func TestPipelinePrintDepsTree(t *testing.T) {
	path := writeTestManifest(t)
	p, _ := newTestPipeline(t, path, func(c *Config) {
		c.AcceptLicense = false
		c.PrintDepsTree = true
		c.HostArch = platform.X64
		c.Architectures = []platform.Arch{platform.X64}
	})
	require.NoError(t, p.Run())
}

func TestPipelineSaveManifestWritesRawBytes(t *testing.T) {
	path := writeTestManifest(t)
	out := filepath.Join(t.TempDir(), "saved.manifest")
	p, _ := newTestPipeline(t, path, func(c *Config) {
		c.AcceptLicense = false
		c.SaveManifestPath = out
		c.PrintVersion = true
	})
	require.NoError(t, p.Run())
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, testManifest, string(data))
}

func TestPipelineOnlyDownloadSkipsExtraction(t *testing.T) {
	path := writeTestManifest(t)
	dir := t.TempDir()
	p, _ := newTestPipeline(t, path, func(c *Config) {
		c.CacheDir = filepath.Join(dir, "cache")
		c.OnlyDownload = true
		c.HostArch = platform.X64
		c.Architectures = []platform.Arch{platform.X64}
	})
	// The fixture manifest's only packages are meta-packages with no
	// payloads, so FetchAll has nothing to download and this exercises the
	// --only-download short-circuit without needing network access.
	require.NoError(t, p.Run())
	_, err := os.Stat(filepath.Join(dir, "cache"))
	assert.NoError(t, err)
}

func TestPipelineEndToEndWithoutPayloads(t *testing.T) {
	path := writeTestManifest(t)
	dir := t.TempDir()
	p, _ := newTestPipeline(t, path, func(c *Config) {
		c.CacheDir = filepath.Join(dir, "cache")
		c.DestDir = filepath.Join(dir, "dest")
		c.HostArch = platform.X64
		c.Architectures = []platform.Arch{platform.X64}
	})
	// All selected variants are meta-packages (no payloads), so this
	// exercises the full load->select->resolve->download->extract->
	// postprocess chain without any subprocess or network dependency.
	require.NoError(t, p.Run())
}

func TestPipelineResolvesManifestOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testManifest))
	}))
	defer srv.Close()

	p, _ := newTestPipeline(t, srv.URL+"/installer.json", func(c *Config) {
		c.PrintVersion = true
	})
	require.NoError(t, p.Run())
}

func TestToolchainVersionPicksHighest(t *testing.T) {
	variants := []*manifest.Variant{
		{ID: "Microsoft.VisualStudio.Component.VC.Tools.x86.x64", Version: "14.36"},
		{ID: "Microsoft.VisualStudio.Component.VC.Tools.x86.x64", Version: "14.38"},
		{ID: "Microsoft.VisualStudio.Component.VC.ATL", Version: "14.99"},
	}
	assert.Equal(t, "14.38", toolchainVersion(variants))
}

func TestToolchainVersionEmptyWithoutToolsPackage(t *testing.T) {
	variants := []*manifest.Variant{
		{ID: "Microsoft.VisualStudio.Component.VC.ATL", Version: "14.99"},
	}
	assert.Equal(t, "", toolchainVersion(variants))
}
