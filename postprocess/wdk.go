package postprocess

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/vsprovision/vsprovision/errors"
	"github.com/vsprovision/vsprovision/extract"
	"github.com/vsprovision/vsprovision/internal/genericarchive"
	"github.com/vsprovision/vsprovision/ui"
)

// IngestWDKInstallers unpacks a directory of WDK installer MSIs
// (`--with-wdk-installers DIR`, SPEC_FULL.md §7) into dest: it extracts
// every "Windows Driver*.msi" (wdksetup.exe bundles a pile of unrelated
// installers alongside the WDK ones, so only that prefix is touched),
// unpacks the embedded WDK.vsix VS extension, merges the resulting split
// `Build`/`build` directories into a single versioned tree, and relocates
// the WDK's `.props` files into a versioned DesignTime subdirectory.
// Grounded on unpackWin10WDK in vsdownload.py.
func IngestWDKInstallers(task *ui.Task, srcDir, dest string) error {
	msis, err := filepath.Glob(filepath.Join(srcDir, "Windows Driver*.msi"))
	if err != nil {
		return errors.WithStack(err)
	}
	for _, msi := range msis {
		name := filepath.Base(msi)
		task.Infof("extracting %s", name)
		listing := filepath.Join(dest, "WDK-"+strings.TrimSuffix(name, filepath.Ext(name))+"-listing.txt")
		if err := extract.ExtractMSI(task.SubTask("wdk-msi"), msi, dest, listing); err != nil {
			return err
		}
	}

	if len(msis) == 0 {
		if err := ingestWDKArchiveMirror(task, srcDir, dest); err != nil {
			return err
		}
	}

	var vsixPath string
	err = filepath.Walk(dest, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return errors.WithStack(err)
		}
		if !info.IsDir() && strings.EqualFold(info.Name(), "WDK.vsix") {
			vsixPath = path
		}
		return nil
	})
	if err != nil {
		return err
	}
	if vsixPath != "" {
		task.Infof("unpacking WDK VS extension %s", filepath.Base(vsixPath))
		listingName := "WDK-VS-" + strings.TrimSuffix(filepath.Base(vsixPath), filepath.Ext(vsixPath))
		if err := extract.UnpackVsixFile(task.SubTask("wdk-vsix"), vsixPath, dest, listingName); err != nil {
			return err
		}
	}

	return mergeWDKBuildTree(task, dest)
}

// ingestWDKArchiveMirror handles the case where srcDir holds a plain archive
// (zip/tar/7z/.deb/.rpm) rather than genuine Windows Driver*.msi installers,
// as some non-Microsoft mirrors redistribute the WDK. Each archive is
// unpacked directly into dest via genericarchive, the same extractor
// mechanism hermit uses for its non-VSIX, non-MSI package formats.
func ingestWDKArchiveMirror(task *ui.Task, srcDir, dest string) error {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return errors.WithStack(err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		source := filepath.Join(srcDir, e.Name())
		archiveStaging := dest + ".wdk-archive-" + e.Name()
		task.Infof("extracting WDK mirror archive %s", e.Name())
		if err := genericarchive.Extract(task.SubTask("wdk-archive"), source, archiveStaging, 0); err != nil {
			task.Warnf("skipping %s: %s", e.Name(), err)
			continue
		}
		if err := extract.MergeTrees(archiveStaging, dest); err != nil {
			return errors.Wrapf(err, "merging WDK mirror archive %s", e.Name())
		}
	}
	return nil
}

// mergeWDKBuildTree merges the incorrectly extracted "Build" directory
// into each versioned "build/10.*" tree the WDK MSIs actually produce, and
// moves any loose .props files into a version-qualified DesignTime path.
func mergeWDKBuildTree(task *ui.Task, dest string) error {
	kitsPath := dest
	if runtime.GOOS != "windows" {
		kitsPath = filepath.Join(kitsPath, "Program Files")
	}
	kitsPath = filepath.Join(kitsPath, "Windows Kits", "10")

	brokenBuildDir := filepath.Join(kitsPath, "Build")
	if _, err := os.Lstat(brokenBuildDir); os.IsNotExist(err) {
		return nil
	}

	buildDirs, err := filepath.Glob(filepath.Join(kitsPath, "build", "10.*"))
	if err != nil {
		return errors.WithStack(err)
	}
	sort.Strings(buildDirs)

	var wdkVersion string
	for _, buildDir := range buildDirs {
		wdkVersion = filepath.Base(buildDir)
		task.Infof("merging WDK Build/build directories into version %s", wdkVersion)
		if err := extract.MergeTrees(brokenBuildDir, buildDir); err != nil {
			return errors.Wrapf(err, "merging WDK build tree for %s", wdkVersion)
		}
	}
	if err := os.RemoveAll(brokenBuildDir); err != nil {
		return errors.WithStack(err)
	}

	if wdkVersion == "" {
		return nil
	}
	return relocateWDKProps(task, kitsPath, wdkVersion)
}

func relocateWDKProps(task *ui.Task, kitsPath, wdkVersion string) error {
	propsPath := filepath.Join(kitsPath, "DesignTime", "CommonConfiguration", "Neutral", "WDK")
	versionedPath := filepath.Join(propsPath, wdkVersion)
	if err := os.MkdirAll(versionedPath, 0755); err != nil {
		return errors.WithStack(err)
	}

	props, err := filepath.Glob(filepath.Join(propsPath, "*.props"))
	if err != nil {
		return errors.WithStack(err)
	}
	for _, p := range props {
		name := filepath.Base(p)
		task.Debugf("moving %s into version %s", name, wdkVersion)
		if err := os.Rename(p, filepath.Join(versionedPath, name)); err != nil {
			return errors.Wrapf(err, "relocating %s", p)
		}
	}
	return nil
}
