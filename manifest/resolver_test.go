package manifest

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsprovision/vsprovision/platform"
)

func variant(id, version string, typ VariantType, deps map[string]Constraint) *Variant {
	return &Variant{ID: id, Version: version, Type: typ, Dependencies: deps}
}

func req(version string) Constraint { return Constraint{Version: version, Type: Required} }

func testIndex(variants []*Variant) *Index {
	return BuildIndex(variants, platform.X64)
}

func testResolver(variants []*Variant, opts Options) *Resolver {
	idx := testIndex(variants)
	engine := NewEngine(idx, opts)
	return NewResolver(idx, engine, nil)
}

func sampleManifest() []*Variant {
	return []*Variant{
		variant("Microsoft.VisualStudio.Workload.VCTools", "", TypeWorkload, map[string]Constraint{
			"Microsoft.VisualStudio.Component.VC.Tools.x86.x64": req("1.0"),
			"Win10SDK_10.0.19041":                                req("1.0"),
		}),
		variant("Microsoft.VisualStudio.Component.VC.Tools.x86.x64", "1.0", TypeComponent, map[string]Constraint{
			"Microsoft.VisualStudio.Component.VC.Redist.14.Latest": {Version: "1.0", Type: Recommended},
		}),
		variant("Microsoft.VisualStudio.Component.VC.Redist.14.Latest", "1.0", TypeVsix, nil),
		variant("Win10SDK_10.0.19041", "10.0.19041.1", TypeComponent, nil),
	}
}

func defaultOptions() Options {
	return Options{
		Ignore:        map[string]bool{},
		OnlyHost:      true,
		HostArch:      platform.X64,
		Architectures: map[platform.Arch]bool{platform.X64: true},
	}
}

func TestAggregateBasic(t *testing.T) {
	r := testResolver(sampleManifest(), defaultOptions())
	sel := r.Aggregate([]string{"Microsoft.VisualStudio.Workload.VCTools"})

	ids := map[string]bool{}
	for _, v := range sel.Variants() {
		ids[v.ID] = true
	}
	assert.True(t, ids["Microsoft.VisualStudio.Workload.VCTools"])
	assert.True(t, ids["Microsoft.VisualStudio.Component.VC.Tools.x86.x64"])
	assert.True(t, ids["Win10SDK_10.0.19041"])
	// Recommended dependency included by default (SkipRecommended is false).
	assert.True(t, ids["Microsoft.VisualStudio.Component.VC.Redist.14.Latest"])
}

// P1: aggregate(aggregate(roots).ids) == aggregate(roots) as multisets of keys.
func TestAggregateIdempotent(t *testing.T) {
	r := testResolver(sampleManifest(), defaultOptions())
	first := r.Aggregate([]string{"Microsoft.VisualStudio.Workload.VCTools"})

	var ids []string
	for _, v := range first.Variants() {
		ids = append(ids, v.ID)
	}
	second := r.Aggregate(ids)

	assert.ElementsMatch(t, first.Keys, second.Keys)
}

// P2: no two Selection-List entries share a Package Key.
func TestAggregateKeyUniqueness(t *testing.T) {
	r := testResolver(sampleManifest(), defaultOptions())
	sel := r.Aggregate([]string{"Microsoft.VisualStudio.Workload.VCTools"})
	seen := map[PackageKey]bool{}
	for _, k := range sel.Keys {
		require.False(t, seen[k], "duplicate key %s", k)
		seen[k] = true
	}
}

// P3: ignored ids never appear in the Selection List.
func TestAggregateIgnoreHonored(t *testing.T) {
	opts := defaultOptions()
	opts.Ignore["win10sdk_10.0.19041"] = true
	r := testResolver(sampleManifest(), opts)
	sel := r.Aggregate([]string{"Microsoft.VisualStudio.Workload.VCTools"})
	for _, v := range sel.Variants() {
		assert.NotEqual(t, "win10sdk_10.0.19041", v.LowerID())
	}
}

func TestAggregateSkipRecommended(t *testing.T) {
	opts := defaultOptions()
	opts.SkipRecommended = true
	r := testResolver(sampleManifest(), opts)
	sel := r.Aggregate([]string{"Microsoft.VisualStudio.Workload.VCTools"})
	for _, v := range sel.Variants() {
		assert.NotEqual(t, "Microsoft.VisualStudio.Component.VC.Redist.14.Latest", v.ID)
	}
}

// P5: findPackage(id, {}) returns the priority-index-0 variant.
func TestFindPackagePriorityDeterminism(t *testing.T) {
	variants := []*Variant{
		variant("Foo", "1.0", TypeVsix, nil),
		{ID: "Foo", Version: "1.0", Type: TypeVsix, MachineArch: "x64"},
		{ID: "Foo", Version: "1.0", Type: TypeVsix, MachineArch: "arm64"},
	}
	idx := testIndex(variants)
	engine := NewEngine(idx, defaultOptions())
	v, _, found := engine.FindPackage("Foo", Constraint{})
	require.True(t, found)
	assert.Equal(t, "x64", v.MachineArch)
}

func TestPrintTreeAnnotatesDroppedNodes(t *testing.T) {
	opts := defaultOptions()
	opts.Ignore["win10sdk_10.0.19041"] = true
	r := testResolver(sampleManifest(), opts)
	var buf bytes.Buffer
	r.PrintTree(&buf, []string{"Microsoft.VisualStudio.Workload.VCTools"})
	assert.Contains(t, buf.String(), "(Ignored)")
}

func TestPrintReverseDeps(t *testing.T) {
	r := testResolver(sampleManifest(), defaultOptions())
	var buf bytes.Buffer
	r.PrintReverseDeps(&buf, []string{"Microsoft.VisualStudio.Workload.VCTools"},
		[]string{"Microsoft.VisualStudio.Component.VC.Tools.x86.x64"})
	assert.Contains(t, buf.String(), "required by Microsoft.VisualStudio.Workload.VCTools")
}
