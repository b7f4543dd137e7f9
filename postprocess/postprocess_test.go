package postprocess

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsprovision/vsprovision/platform"
	"github.com/vsprovision/vsprovision/ui"
)

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	staging := filepath.Join(dir, "staging")
	dest := filepath.Join(dir, "dest")
	sdk := "10.0.22621.0"
	msvcVer := "14.38.33130"

	writeFile(t, filepath.Join(staging, "VC", "Tools", "MSVC", msvcVer, "bin", "Hostx64", "x64", "cl.exe"), "cl")
	writeFile(t, filepath.Join(staging, "VC", "Tools", "MSVC", msvcVer, "lib", "x64", "libcmt.lib"), "lib")

	kitsRoot := kitsRootFor(staging)
	writeFile(t, filepath.Join(kitsRoot, "Include", sdk, "um", "Windows.h"), "#include <WinDef.h>\n")

	p, _ := ui.NewForTesting()
	err := Run(p.Task("postprocess"), staging, dest, Options{
		SDKVersion: sdk,
		Targets:    []platform.Arch{platform.X64},
		MSVCVer:    msvcVer,
	})
	require.NoError(t, err)

	assertFileExists(t, filepath.Join(dest, "VC", "tools", "msvc", msvcVer, "bin", "Hostx64", "x64", "cl.exe"))

	content, err := os.ReadFile(filepath.Join(dest, "kits", "10", "include", sdk, "um", "windows.h"))
	require.NoError(t, err)
	assert.Equal(t, "#include <windef.h>\n", string(content))

	target, err := os.Readlink(filepath.Join(dest, "VC", "tools", "msvc", msvcVer, "lib", "x64", "LIBCMT.lib"))
	require.NoError(t, err)
	assert.Equal(t, "libcmt.lib", target)
}
