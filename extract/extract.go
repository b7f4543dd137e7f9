package extract

import (
	"path/filepath"
	"strings"

	"github.com/vsprovision/vsprovision/cache"
	"github.com/vsprovision/vsprovision/manifest"
	"github.com/vsprovision/vsprovision/ui"
)

// Extractor runs the spec.md §4.7 dispatch table against every selected
// variant, in Selection-List order, merging results into one shared
// staging tree (tree-merging is not reentrant, spec.md §5 — callers must
// serialize calls to Extract).
type Extractor struct {
	Cache *cache.Cache
}

// New returns an Extractor reading payloads from "c".
func New(c *cache.Cache) *Extractor {
	return &Extractor{Cache: c}
}

// Extract dispatches on v.Type/v.ID per spec.md §4.7's table, merging any
// extracted payload into "staging".
func (e *Extractor) Extract(task *ui.Task, staging string, v *manifest.Variant) error {
	switch v.Type {
	case manifest.TypeComponent, manifest.TypeWorkload, manifest.TypeGroup:
		task.Debugf("skipping %s: no payloads to materialize", v.ID)
		return nil
	}

	key := manifest.NewPackageKey(v)
	lowerID := v.LowerID()

	switch {
	case v.Type == manifest.TypeVsix:
		return e.extractVsix(task, staging, v, key)

	case strings.HasPrefix(lowerID, "win10sdk") || strings.HasPrefix(lowerID, "win11sdk"):
		return e.extractSDKMsi(task, staging, v, key)

	default:
		task.Warnf("don't know how to extract %s (type %s); skipping", v.ID, v.Type)
		return nil
	}
}

func (e *Extractor) extractVsix(task *ui.Task, staging string, v *manifest.Variant, key manifest.PackageKey) error {
	sub := task.SubTask("vsix")
	for _, payload := range v.Payloads {
		source := e.Cache.Path(key, payload)
		if err := unpackVsix(sub, source, staging, string(key)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Extractor) extractSDKMsi(task *ui.Task, staging string, v *manifest.Variant, key manifest.PackageKey) error {
	sub := task.SubTask("msi")
	for _, payload := range v.Payloads {
		if !strings.EqualFold(filepath.Ext(payload.Basename()), ".msi") {
			continue
		}
		source := e.Cache.Path(key, payload)
		msiStaging := staging + ".msi-staging-" + payload.Basename()
		if err := extractMSI(sub, source, msiStaging, msiListingPath(staging, payload.Basename())); err != nil {
			return err
		}
		if err := MergeTrees(msiStaging, staging); err != nil {
			return err
		}
	}
	return nil
}
