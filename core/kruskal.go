package core

import (
	"cmp"
	"slices"

	"github.com/encodeous/spantree/state"
)

// KruskalMST computes the minimum spanning tree of the component of cfg that
// contains root. It is used to check converged views, never by the engine.
// Ties between equal weights are broken by edge, so the result is deterministic.
func KruskalMST(cfg *state.TopologyCfg, root state.NodeId) *state.Tree {
	if !cfg.HasNode(root) {
		return state.NewTree()
	}
	links := slices.Clone(cfg.Links)
	slices.SortStableFunc(links, func(a, b state.LinkCfg) int {
		if c := cmp.Compare(a.Weight, b.Weight); c != 0 {
			return c
		}
		ea, eb := a.Edge(), b.Edge()
		if c := cmp.Compare(ea.V1, eb.V1); c != 0 {
			return c
		}
		return cmp.Compare(ea.V2, eb.V2)
	})

	parent := make(map[state.NodeId]state.NodeId, len(cfg.Nodes))
	rank := make(map[state.NodeId]int, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		parent[n] = n
	}
	find := func(u state.NodeId) state.NodeId {
		for parent[u] != u {
			parent[u] = parent[parent[u]]
			u = parent[u]
		}
		return u
	}
	union := func(u, v state.NodeId) bool {
		ru, rv := find(u), find(v)
		if ru == rv {
			return false
		}
		if rank[ru] < rank[rv] {
			parent[ru] = rv
		} else {
			parent[rv] = ru
			if rank[ru] == rank[rv] {
				rank[ru]++
			}
		}
		return true
	}

	forest := state.NewTree()
	for _, l := range links {
		if union(l.A, l.B) {
			forest.AddEdge(l.A, l.B, l.Weight)
		}
	}

	out := state.NewTree()
	out.AddNode(root, true)
	for _, n := range cfg.Nodes {
		if find(n) == find(root) {
			out.SetActivated(n, true)
		}
	}
	for _, e := range forest.Edges() {
		if out.HasNode(e.V1) {
			w, _ := forest.Weight(e.V1, e.V2)
			out.AddEdge(e.V1, e.V2, w)
		}
	}
	return out
}
