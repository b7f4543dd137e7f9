package postprocess

import (
	"archive/zip"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsprovision/vsprovision/ui"
)

func kitsRootFor(dest string) string {
	if runtime.GOOS != "windows" {
		return filepath.Join(dest, "Program Files", "Windows Kits", "10")
	}
	return filepath.Join(dest, "Windows Kits", "10")
}

func TestMergeWDKBuildTreeMergesAndRelocatesProps(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "dest")
	kits := kitsRootFor(dest)

	writeFile(t, filepath.Join(kits, "Build", "WDKContentVersion.txt"), "1")
	writeFile(t, filepath.Join(kits, "build", "10.0.22621.0", "existing.txt"), "old")
	writeFile(t, filepath.Join(kits, "DesignTime", "CommonConfiguration", "Neutral", "WDK", "wdf.props"), "<Project/>")

	p, _ := ui.NewForTesting()
	require.NoError(t, mergeWDKBuildTree(p.Task("wdk"), dest))

	assertFileExists(t, filepath.Join(kits, "build", "10.0.22621.0", "WDKContentVersion.txt"))
	assertFileExists(t, filepath.Join(kits, "build", "10.0.22621.0", "existing.txt"))
	_, err := os.Stat(filepath.Join(kits, "Build"))
	assert.True(t, os.IsNotExist(err))

	assertFileExists(t, filepath.Join(kits, "DesignTime", "CommonConfiguration", "Neutral", "WDK", "10.0.22621.0", "wdf.props"))
	_, err = os.Stat(filepath.Join(kits, "DesignTime", "CommonConfiguration", "Neutral", "WDK", "wdf.props"))
	assert.True(t, os.IsNotExist(err))
}

func TestMergeWDKBuildTreeNoopWithoutBrokenDir(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "dest")
	require.NoError(t, os.MkdirAll(dest, 0755))

	p, _ := ui.NewForTesting()
	require.NoError(t, mergeWDKBuildTree(p.Task("wdk"), dest))
}

func TestIngestWDKInstallersFallsBackToArchiveMirror(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "mirror")
	dest := filepath.Join(dir, "dest")
	require.NoError(t, os.MkdirAll(srcDir, 0755))

	zipPath := filepath.Join(srcDir, "wdk-mirror.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("Windows Kits/10/Include/wdf/wdf.h")
	require.NoError(t, err)
	_, err = w.Write([]byte("#define WDF 1\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	p, _ := ui.NewForTesting()
	require.NoError(t, IngestWDKInstallers(p.Task("wdk"), srcDir, dest))

	assertFileExists(t, filepath.Join(dest, "Windows Kits", "10", "Include", "wdf", "wdf.h"))
}
