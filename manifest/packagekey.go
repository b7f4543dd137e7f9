package manifest

import "strings"

// PackageKey is the deterministic cache/dedup identifier described by
// spec.md §3: "id-version-chip.X-machineArch.Y-productArch.Z" with absent
// arch components omitted. It's a plain string type so it works directly
// as a map key.
type PackageKey string

// NewPackageKey builds the Package Key for a resolved variant.
func NewPackageKey(v *Variant) PackageKey {
	var b strings.Builder
	b.WriteString(v.ID)
	b.WriteByte('-')
	b.WriteString(v.Version)
	if v.Chip != "" {
		b.WriteString("-chip.")
		b.WriteString(v.Chip)
	}
	if v.MachineArch != "" {
		b.WriteString("-machineArch.")
		b.WriteString(v.MachineArch)
	}
	if v.ProductArch != "" {
		b.WriteString("-productArch.")
		b.WriteString(v.ProductArch)
	}
	return PackageKey(b.String())
}

func (k PackageKey) String() string { return string(k) }
