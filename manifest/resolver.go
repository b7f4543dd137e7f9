package manifest

import (
	"fmt"
	"io"
	"sort"

	"github.com/vsprovision/vsprovision/ui"
)

// Selection is the Dependency Resolver's output: a duplicate-free,
// first-visit-ordered list of concrete variants (spec.md §3 "Selection
// State").
type Selection struct {
	Keys  []PackageKey
	ByKey map[PackageKey]*Variant
}

// Variants returns the selected variants in Selection-List order.
func (s *Selection) Variants() []*Variant {
	out := make([]*Variant, 0, len(s.Keys))
	for _, k := range s.Keys {
		out = append(out, s.ByKey[k])
	}
	return out
}

// Resolver closes the dependency graph from user-selected roots into a
// Selection (spec.md §4.4).
type Resolver struct {
	Index  *Index
	Engine *Engine
	Log    ui.Logger
}

// NewResolver builds a Resolver over "index" using "engine"'s filters.
func NewResolver(index *Index, engine *Engine, log ui.Logger) *Resolver {
	return &Resolver{Index: index, Engine: engine, Log: log}
}

// Aggregate runs aggregate(roots): a depth-first traversal from each root
// id in input order, applying the Constraint Engine at every edge and
// deduplicating by Package Key.
func (r *Resolver) Aggregate(roots []string) *Selection {
	sel := &Selection{ByKey: make(map[PackageKey]*Variant)}
	included := make(map[PackageKey]bool)
	var visit func(id string, c Constraint)
	visit = func(id string, c Constraint) {
		if r.Engine.IsIgnored(id) {
			r.logf("skipping %s (Ignored)", id)
			return
		}
		if keep, reason := r.Engine.FilterConstraintType(c); !keep {
			r.logf("skipping %s (%s)", id, reason)
			return
		}
		v, usedFallback, found := r.Engine.FindPackage(id, c)
		if !found {
			r.logf("skipping %s (NotFound)", id)
			return
		}
		if usedFallback {
			r.logf("didn't find an exact match for %s, using default variant", id)
		}
		if !r.Engine.MatchHostArch(v) {
			r.logf("skipping %s (HostArchMismatch)", id)
			return
		}
		if !r.Engine.MatchTargetArch(v) {
			r.logf("skipping %s (TargetArchMismatch)", id)
			return
		}
		key := NewPackageKey(v)
		if included[key] {
			return
		}
		included[key] = true
		sel.Keys = append(sel.Keys, key)
		sel.ByKey[key] = v

		depIDs := make([]string, 0, len(v.Dependencies))
		for depID := range v.Dependencies {
			depIDs = append(depIDs, depID)
		}
		sort.Strings(depIDs)
		for _, depID := range depIDs {
			depConstraint := v.Dependencies[depID]
			visit(depConstraint.TargetID(depID), depConstraint)
		}
	}
	for _, root := range roots {
		visit(root, Constraint{Type: Required})
	}
	return sel
}

func (r *Resolver) logf(format string, args ...interface{}) {
	if r.Log != nil {
		r.Log.Warnf(format, args...)
	}
}

// treeNode is one line of tree/reverse-tree diagnostic output.
type treeNode struct {
	id     string
	reason DropReason
}

// PrintTree walks the same filters Aggregate does but, instead of
// recursing past a dropped edge, prints it annotated with its drop reason
// and stops (spec.md §4.4 "Diagnostic modes").
func (r *Resolver) PrintTree(w io.Writer, roots []string) {
	var walk func(id string, c Constraint, depth int)
	walk = func(id string, c Constraint, depth int) {
		indent := ""
		for i := 0; i < depth; i++ {
			indent += "  "
		}
		if r.Engine.IsIgnored(id) {
			fmt.Fprintf(w, "%s%s (Ignored)\n", indent, id)
			return
		}
		if keep, reason := r.Engine.FilterConstraintType(c); !keep {
			fmt.Fprintf(w, "%s%s (%s)\n", indent, id, reason)
			return
		}
		v, _, found := r.Engine.FindPackage(id, c)
		if !found {
			fmt.Fprintf(w, "%s%s (NotFound)\n", indent, id)
			return
		}
		if !r.Engine.MatchHostArch(v) {
			fmt.Fprintf(w, "%s%s (HostArchMismatch)\n", indent, id)
			return
		}
		if !r.Engine.MatchTargetArch(v) {
			fmt.Fprintf(w, "%s%s (TargetArchMismatch)\n", indent, id)
			return
		}
		fmt.Fprintf(w, "%s%s\n", indent, id)
		depIDs := make([]string, 0, len(v.Dependencies))
		for depID := range v.Dependencies {
			depIDs = append(depIDs, depID)
		}
		sort.Strings(depIDs)
		for _, depID := range depIDs {
			depConstraint := v.Dependencies[depID]
			walk(depConstraint.TargetID(depID), depConstraint, depth+1)
		}
	}
	for _, root := range roots {
		walk(root, Constraint{Type: Required}, 0)
	}
}

// PrintReverseDeps prints, for each id in "targets", the chain of
// dependents that pulled it in, computed by first walking the full forward
// tree from "roots" to record considered edges (with the same drop
// annotations), then inverting parent->child into child->[]parent.
func (r *Resolver) PrintReverseDeps(w io.Writer, roots []string, targets []string) {
	type edge struct {
		parent, child string
		reason        DropReason
	}
	var edges []edge
	seen := make(map[string]bool)
	var walk func(parent, id string, c Constraint)
	walk = func(parent, id string, c Constraint) {
		reason := DropNone
		var v *Variant
		switch {
		case r.Engine.IsIgnored(id):
			reason = DropIgnored
		default:
			if keep, why := r.Engine.FilterConstraintType(c); !keep {
				reason = why
			} else if vv, _, found := r.Engine.FindPackage(id, c); !found {
				reason = DropNotFound
			} else if !r.Engine.MatchHostArch(vv) {
				reason = DropHostArchMismatch
			} else if !r.Engine.MatchTargetArch(vv) {
				reason = DropTargetArchMismatch
			} else {
				v = vv
			}
		}
		if parent != "" {
			edges = append(edges, edge{parent, id, reason})
		}
		if reason != DropNone || v == nil {
			return
		}
		key := string(NewPackageKey(v))
		if seen[key] {
			return
		}
		seen[key] = true
		depIDs := make([]string, 0, len(v.Dependencies))
		for depID := range v.Dependencies {
			depIDs = append(depIDs, depID)
		}
		sort.Strings(depIDs)
		for _, depID := range depIDs {
			depConstraint := v.Dependencies[depID]
			walk(id, depConstraint.TargetID(depID), depConstraint)
		}
	}
	for _, root := range roots {
		walk("", root, Constraint{Type: Required})
	}

	parentsOf := make(map[string][]edge)
	for _, e := range edges {
		parentsOf[e.child] = append(parentsOf[e.child], e)
	}
	for _, target := range targets {
		fmt.Fprintf(w, "%s:\n", target)
		for _, e := range parentsOf[target] {
			if e.reason == DropNone {
				fmt.Fprintf(w, "  required by %s\n", e.parent)
			} else {
				fmt.Fprintf(w, "  required by %s (%s)\n", e.parent, e.reason)
			}
		}
	}
}
