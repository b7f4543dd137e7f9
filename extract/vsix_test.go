package extract

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsprovision/vsprovision/ui"
)

func writeVsix(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	zw := zip.NewWriter(f)

	w, err := zw.Create("Contents/VC/include/stdio.h")
	require.NoError(t, err)
	_, err = w.Write([]byte("// stdio"))
	require.NoError(t, err)

	w, err = zw.Create("$MSBuild/Microsoft.Cpp.props")
	require.NoError(t, err)
	_, err = w.Write([]byte("<Project/>"))
	require.NoError(t, err)

	w, err = zw.Create("extension.vsixmanifest")
	require.NoError(t, err)
	_, err = w.Write([]byte("<manifest/>"))
	require.NoError(t, err)

	require.NoError(t, zw.Close())
}

func TestUnpackVsixMergesContentsAndMSBuild(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "pkg.vsix")
	writeVsix(t, source)
	dest := filepath.Join(dir, "dest")

	p, _ := ui.NewForTesting()
	err := unpackVsix(p.Task("extract"), source, dest, "Foo-1.0")
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dest, "VC", "include", "stdio.h"))
	require.NoError(t, err)
	assert.Equal(t, "// stdio", string(content))

	content, err = os.ReadFile(filepath.Join(dest, "MSBuild", "Microsoft.Cpp.props"))
	require.NoError(t, err)
	assert.Equal(t, "<Project/>", string(content))

	_, err = os.Stat(filepath.Join(dest, "extension.vsixmanifest"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dest, "Foo-1.0-listing.txt"))
	require.NoError(t, err)
}

func TestUnzipFilteredDecodesPercentEncodedNames(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "pkg.zip")
	f, err := os.Create(source)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("um/windows%20sdk/stdio.h")
	require.NoError(t, err)
	_, err = w.Write([]byte("hi"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	dest := filepath.Join(dir, "out")
	p, _ := ui.NewForTesting()
	entries, err := unzipFiltered(p.Task("extract"), source, dest)
	require.NoError(t, err)
	assert.Contains(t, entries, "um/windows sdk/stdio.h")

	content, err := os.ReadFile(filepath.Join(dest, "um", "windows sdk", "stdio.h"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(content))
}
