package postprocess

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsprovision/vsprovision/platform"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLowercaseSDKSurfaceFoldsIncludeAndLib(t *testing.T) {
	dest := t.TempDir()
	sdk := "10.0.22621.0"
	writeFile(t, filepath.Join(dest, "kits", "10", "include", sdk, "um", "Windows.h"), "x")
	writeFile(t, filepath.Join(dest, "kits", "10", "include", sdk, "shared", "WinAPI", "Core.h"), "y")
	writeFile(t, filepath.Join(dest, "kits", "10", "lib", sdk, "um", "x64", "Kernel32.Lib"), "z")

	require.NoError(t, LowercaseSDKSurface(dest, sdk, []platform.Arch{platform.X64}))

	_, err := os.Stat(filepath.Join(dest, "kits", "10", "include", sdk, "um", "windows.h"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dest, "kits", "10", "include", sdk, "shared", "winapi", "core.h"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dest, "kits", "10", "lib", sdk, "um", "x64", "kernel32.lib"))
	assert.NoError(t, err)
}

// P9: case-folding is idempotent.
func TestLowercaseSDKSurfaceIdempotent(t *testing.T) {
	dest := t.TempDir()
	sdk := "10.0.22621.0"
	writeFile(t, filepath.Join(dest, "kits", "10", "include", sdk, "um", "Windows.h"), "x")

	require.NoError(t, LowercaseSDKSurface(dest, sdk, nil))
	first, err := os.ReadDir(filepath.Join(dest, "kits", "10", "include", sdk, "um"))
	require.NoError(t, err)

	require.NoError(t, LowercaseSDKSurface(dest, sdk, nil))
	second, err := os.ReadDir(filepath.Join(dest, "kits", "10", "include", sdk, "um"))
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Name(), second[0].Name())
	assert.Equal(t, "windows.h", second[0].Name())
}

func TestLowercaseTreeMergesDirCollision(t *testing.T) {
	dest := t.TempDir()
	writeFile(t, filepath.Join(dest, "um", "windows.h"), "existing")
	writeFile(t, filepath.Join(dest, "Um", "New.h"), "added")

	require.NoError(t, lowercaseTree(dest))

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name()] = true
	}
	assert.True(t, names["um"])
	assert.False(t, names["Um"])

	_, err = os.Stat(filepath.Join(dest, "um", "windows.h"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dest, "um", "new.h"))
	assert.NoError(t, err)
}

func TestLowercaseSymlinkTargetRewrite(t *testing.T) {
	dest := t.TempDir()
	writeFile(t, filepath.Join(dest, "Real.h"), "x")
	link := filepath.Join(dest, "Link.h")
	if err := os.Symlink("Real.h", link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	require.NoError(t, lowercaseTree(dest))

	target, err := os.Readlink(filepath.Join(dest, "link.h"))
	require.NoError(t, err)
	assert.Equal(t, "real.h", target)
}
