package postprocess

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsprovision/vsprovision/platform"
)

func TestAddMSVCLibAliasesCreatesUppercaseSymlinks(t *testing.T) {
	dir := t.TempDir()
	libRoot := filepath.Join(dir, "lib")
	writeFile(t, filepath.Join(libRoot, "x64", "libcmt.lib"), "lib")
	writeFile(t, filepath.Join(libRoot, "x64", "oldnames.lib"), "lib")
	// msvcrtd.lib intentionally absent: aliasing must skip it silently.

	require.NoError(t, AddMSVCLibAliases(libRoot, []platform.Arch{platform.X64}))

	for _, name := range []string{"LIBCMT.lib", "OLDNAMES.lib"} {
		target, err := os.Readlink(filepath.Join(libRoot, "x64", name))
		require.NoError(t, err)
		assert.Equal(t, strings.ToLower(name), target)
	}
	_, err := os.Lstat(filepath.Join(libRoot, "x64", "MSVCRTD.lib"))
	assert.True(t, os.IsNotExist(err))
}

func TestAddMSVCLibAliasesSkipsMissingArch(t *testing.T) {
	dir := t.TempDir()
	libRoot := filepath.Join(dir, "lib")
	require.NoError(t, os.MkdirAll(libRoot, 0755))

	require.NoError(t, AddMSVCLibAliases(libRoot, []platform.Arch{platform.ARM64}))
}
