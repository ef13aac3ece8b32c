package core

import (
	"cmp"
	"fmt"

	"github.com/encodeous/spantree/state"
)

// PathInTree returns the unique path from s to d in t, s first
func PathInTree(t *state.Tree, s, d state.NodeId) ([]state.NodeId, error) {
	if !t.HasNode(s) || !t.HasNode(d) {
		return nil, fmt.Errorf("%w: %d or %d is not in the tree", ErrNoPath, s, d)
	}
	parent := map[state.NodeId]state.NodeId{s: state.NoNode}
	stack := []state.NodeId{s}
	for len(stack) > 0 && !hasKey(parent, d) {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, nb := range t.Neighbours(cur) {
			if !hasKey(parent, nb) {
				parent[nb] = cur
				stack = append(stack, nb)
			}
		}
	}
	if !hasKey(parent, d) {
		return nil, fmt.Errorf("%w: from %d to %d", ErrNoPath, s, d)
	}
	path := make([]state.NodeId, 0)
	for cur := d; cur != state.NoNode; cur = parent[cur] {
		path = append(path, cur)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

func hasKey[K comparable, V any](m map[K]V, k K) bool {
	_, ok := m[k]
	return ok
}

// MaxWeightEdge returns the heaviest edge on path. On ties the edge closest to the start of the path wins.
func MaxWeightEdge(t *state.Tree, path []state.NodeId) (uint32, state.Edge, error) {
	if len(path) < 2 {
		return 0, state.Edge{}, fmt.Errorf("%w: path %v has no edges", ErrNoPath, path)
	}
	var maxW uint32
	var maxE state.Edge
	found := false
	for i := 0; i+1 < len(path); i++ {
		w, ok := t.Weight(path[i], path[i+1])
		if !ok {
			return 0, state.Edge{}, fmt.Errorf("%w: %d - %d is not a tree edge", ErrNoPath, path[i], path[i+1])
		}
		if !found || w > maxW {
			maxW = w
			maxE = state.NewEdge(path[i], path[i+1])
			found = true
		}
	}
	return maxW, maxE, nil
}

func PathCost(t *state.Tree, path []state.NodeId) uint64 {
	total := uint64(0)
	for i := 0; i+1 < len(path); i++ {
		w, _ := t.Weight(path[i], path[i+1])
		total += uint64(w)
	}
	return total
}

type reach struct {
	cost uint64
	hops int
}

// SelectDeactivatedNode picks the deactivated node that is cheapest to reach
// from current along the tree, then the one with fewest hops, then the lowest id.
// It returns NoNode when every node is activated.
func SelectDeactivatedNode(t *state.Tree, current state.NodeId) (state.NodeId, error) {
	candidates := t.Deactivated()
	if len(candidates) == 0 {
		return state.NoNode, nil
	}
	if !t.HasNode(current) {
		return state.NoNode, fmt.Errorf("%w: %d is not in the tree", ErrNoPath, current)
	}
	// paths in a tree are unique, so one traversal gives every path cost
	dist := map[state.NodeId]reach{current: {}}
	stack := []state.NodeId{current}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, nb := range t.Neighbours(cur) {
			if hasKey(dist, nb) {
				continue
			}
			w, _ := t.Weight(cur, nb)
			dist[nb] = reach{cost: dist[cur].cost + uint64(w), hops: dist[cur].hops + 1}
			stack = append(stack, nb)
		}
	}
	best := state.NoNode
	var bestReach reach
	for _, n := range candidates {
		r, ok := dist[n]
		if !ok {
			return state.NoNode, fmt.Errorf("%w: from %d to %d", ErrNoPath, current, n)
		}
		if best == state.NoNode || compareReach(r, n, bestReach, best) < 0 {
			best = n
			bestReach = r
		}
	}
	return best, nil
}

func compareReach(a reach, aId state.NodeId, b reach, bId state.NodeId) int {
	if c := cmp.Compare(a.cost, b.cost); c != 0 {
		return c
	}
	if c := cmp.Compare(a.hops, b.hops); c != 0 {
		return c
	}
	return cmp.Compare(aId, bId)
}
