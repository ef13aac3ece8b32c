package core

import "github.com/encodeous/spantree/state"

// OptimizeInsertions puts every edge in canonical form, lower id first.
// Entries that only differ in direction collapse into one, keeping the lower weight.
func OptimizeInsertions(ins map[state.Edge]uint32) map[state.Edge]uint32 {
	out := make(map[state.Edge]uint32, len(ins))
	for e, w := range ins {
		c := state.NewEdge(e.V1, e.V2)
		if cur, ok := out[c]; !ok || w < cur {
			out[c] = w
		}
	}
	return out
}

// OptimizeDeletions puts every edge in canonical form, lower id first
func OptimizeDeletions(del map[state.Edge]struct{}) map[state.Edge]struct{} {
	out := make(map[state.Edge]struct{}, len(del))
	for e := range del {
		out[state.NewEdge(e.V1, e.V2)] = struct{}{}
	}
	return out
}

// OptimizeDiff canonicalizes d in place
func OptimizeDiff(d *state.Diff) {
	d.Insertions = OptimizeInsertions(d.Insertions)
	d.Deletions = OptimizeDeletions(d.Deletions)
}
