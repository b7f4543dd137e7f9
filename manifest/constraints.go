package manifest

import (
	"regexp"
	"strings"

	"github.com/vsprovision/vsprovision/platform"
)

// DropReason annotates why an edge was filtered away, for the diagnostic
// tree/reverse-tree printers (spec.md §4.4).
type DropReason string

const (
	DropNone               DropReason = ""
	DropIgnored            DropReason = "Ignored"
	DropNotFound           DropReason = "NotFound"
	DropHostArchMismatch   DropReason = "HostArchMismatch"
	DropTargetArchMismatch DropReason = "TargetArchMismatch"
	DropOptional           DropReason = "Optional"
	DropRecommended        DropReason = "Recommended"
)

// targetArchRegexp matches a package id's embedded ".target<arch>" tag
// (spec.md §4.3 rule 4), e.g. "...vc.tools.x86.target x64..." style ids.
var targetArchRegexp = regexp.MustCompile(`(?i)\.target(x86|x64|arm|arm64)(\W|$)`)

// hostArchSubstringRegexp matches the "hostX" id substrings rule 3(a) uses
// to recognize a package as host-arch-specific at all.
var hostArchSubstringRegexp = regexp.MustCompile(`(?i)host(x86|x64|arm64|arm)`)

// Options configures the Constraint Engine for one resolution run.
type Options struct {
	Ignore           map[string]bool // lowercased ids
	IncludeOptional  bool
	SkipRecommended  bool
	OnlyHost         bool
	HostArch         platform.Arch
	Architectures    map[platform.Arch]bool // requested --architecture set
	SuppressFindWarn bool
}

// Engine evaluates the filters spec.md §4.3 describes, in order, wherever a
// dependency edge is considered.
type Engine struct {
	opts  Options
	index *Index
}

// NewEngine builds a Constraint Engine over "index" with "opts".
func NewEngine(index *Index, opts Options) *Engine {
	return &Engine{opts: opts, index: index}
}

// IsIgnored reports whether "id" (any case) is in the ignore set.
func (e *Engine) IsIgnored(id string) bool {
	return e.opts.Ignore[strings.ToLower(id)]
}

// FilterConstraintType applies rule 2: optional/recommended policy.
func (e *Engine) FilterConstraintType(c Constraint) (keep bool, reason DropReason) {
	switch c.Type {
	case Optional:
		if !e.opts.IncludeOptional {
			return false, DropOptional
		}
	case Recommended:
		if e.opts.SkipRecommended {
			return false, DropRecommended
		}
	}
	return true, DropNone
}

// MatchHostArch applies rule 3: when OnlyHost is set, a variant must not
// target a different host than the running host, either by id substring or
// by explicit chip/machineArch/productArch tag.
func (e *Engine) MatchHostArch(v *Variant) bool {
	if !e.opts.OnlyHost {
		return true
	}
	if m := hostArchSubstringRegexp.FindStringSubmatch(v.ID); m != nil {
		if !strings.EqualFold(m[1], string(e.opts.HostArch)) {
			return false
		}
	}
	for _, tag := range []string{v.Chip, v.MachineArch, v.ProductArch} {
		norm := platform.Normalize(tag)
		if norm != platform.Neutral && norm != e.opts.HostArch {
			return false
		}
	}
	return true
}

// MatchTargetArch applies rule 4: if the id embeds a ".target<arch>" tag,
// that arch must be in the requested --architecture set.
func (e *Engine) MatchTargetArch(v *Variant) bool {
	m := targetArchRegexp.FindStringSubmatch(v.ID)
	if m == nil {
		return true
	}
	arch := platform.Normalize(m[1])
	return e.opts.Architectures[arch]
}

// FindPackage implements spec.md §4.4's findPackage: look up "id" in the
// index, and among its priority-ordered variants return the first whose
// chip/machineArch (only — not productArch) match the constraint's, when
// the constraint specifies them. If none match, fall back to the
// priority-index-0 variant and report that the fallback was used so
// callers can warn (spec.md §9: "must be logged so tests can assert the
// fallback path").
func (e *Engine) FindPackage(id string, c Constraint) (v *Variant, usedFallback bool, found bool) {
	group, ok := e.index.Lookup(id)
	if !ok || len(group) == 0 {
		return nil, false, false
	}
	wantChip := c.lowerChip()
	wantMachineArch := c.lowerMachineArch()
	if wantChip == "" && wantMachineArch == "" {
		return group[0], false, true
	}
	for _, candidate := range group {
		if wantChip != "" && !strings.EqualFold(candidate.Chip, wantChip) {
			continue
		}
		if wantMachineArch != "" && !strings.EqualFold(candidate.MachineArch, wantMachineArch) {
			continue
		}
		return candidate, false, true
	}
	return group[0], true, true
}
