package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/vsprovision/vsprovision/errors"
	"github.com/vsprovision/vsprovision/ui"
	"github.com/vsprovision/vsprovision/util"
)

// ExtractMSI extracts a single .msi file into dest via the host's MSI
// tool, for callers outside the Selection-List extraction flow (WDK
// installer ingestion, SPEC_FULL.md §7).
func ExtractMSI(task *ui.Task, source, dest, listingPath string) error {
	return extractMSI(task, source, dest, listingPath)
}

// extractMSI extracts a single .msi payload into "dest" via the host's MSI
// tool: "msiexec /a" on Windows, "msiextract" elsewhere (spec.md §4.7,
// §6). Combined stdout/stderr is captured to "listingPath".
func extractMSI(task *ui.Task, source, dest, listingPath string) error {
	if err := os.MkdirAll(dest, 0755); err != nil {
		return errors.WithStack(err)
	}

	var args []string
	if runtime.GOOS == "windows" {
		args = []string{"msiexec", "/a", source, "/qn", "TARGETDIR=" + dest}
	} else {
		args = []string{"msiextract", "-C", dest, source}
	}

	out, err := util.Capture(task, args...)
	if writeErr := os.WriteFile(listingPath, out, 0644); writeErr != nil {
		return errors.WithStack(writeErr)
	}
	if err != nil {
		return errors.Wrapf(err, "extracting %s", source)
	}
	return nil
}

// msiListingPath is the <dest>/WinSDK-<payloadName>-listing.txt path
// spec.md §4.7 names for MSI payload extraction.
func msiListingPath(dest, payloadBasename string) string {
	return filepath.Join(dest, fmt.Sprintf("WinSDK-%s-listing.txt", payloadBasename))
}
