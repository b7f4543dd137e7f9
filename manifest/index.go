package manifest

import (
	"sort"
	"strings"

	"github.com/vsprovision/vsprovision/platform"
)

// Index groups the manifest's flat package list by lowercased id, with each
// group's variants ordered by the spec.md §4.2 total order so index 0 is
// always the "preferred" variant for the current host arch.
type Index struct {
	byID map[string][]*Variant
	host platform.Arch
}

// BuildIndex groups "variants" by lowercased id and sorts each group.
func BuildIndex(variants []*Variant, host platform.Arch) *Index {
	idx := &Index{byID: make(map[string][]*Variant), host: host}
	for _, v := range variants {
		id := v.LowerID()
		idx.byID[id] = append(idx.byID[id], v)
	}
	for id, group := range idx.byID {
		group := group
		sort.SliceStable(group, func(i, j int) bool {
			return variantLess(group[i], group[j], host)
		})
		idx.byID[id] = group
	}
	return idx
}

// Lookup returns the priority-ordered variants for a lowercased-or-not id.
func (idx *Index) Lookup(id string) ([]*Variant, bool) {
	group, ok := idx.byID[strings.ToLower(id)]
	return group, ok
}

// Preferred returns the index-0 ("best-fit") variant for id, if any.
func (idx *Index) Preferred(id string) (*Variant, bool) {
	group, ok := idx.Lookup(id)
	if !ok || len(group) == 0 {
		return nil, false
	}
	return group[0], true
}

// IDs returns every lowercased id the index knows about, sorted.
func (idx *Index) IDs() []string {
	ids := make([]string, 0, len(idx.byID))
	for id := range idx.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// archRank scores how well an arch tag "v" (possibly empty, meaning
// neutral) matches "host": 0 exact match, 1 neutral, 2 mismatch.
func archRank(v string, host platform.Arch) int {
	norm := platform.Normalize(v)
	switch {
	case norm == host:
		return 0
	case norm == platform.Neutral:
		return 1
	default:
		return 2
	}
}

// variantLess implements spec.md §4.2's total order: arch-tag rank
// (chip, then machineArch, then productArch) breaks ties first, then an
// "en-" language prefix, then stable (original manifest order).
func variantLess(a, b *Variant, host platform.Arch) bool {
	for _, pair := range [][2]string{
		{a.Chip, b.Chip},
		{a.MachineArch, b.MachineArch},
		{a.ProductArch, b.ProductArch},
	} {
		ra, rb := archRank(pair[0], host), archRank(pair[1], host)
		if ra != rb {
			return ra < rb
		}
	}
	aEn := strings.HasPrefix(strings.ToLower(a.Language), "en-")
	bEn := strings.HasPrefix(strings.ToLower(b.Language), "en-")
	if aEn != bEn {
		return aEn
	}
	return false
}
