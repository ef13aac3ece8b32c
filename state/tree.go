package state

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

var (
	ErrCycle        = errors.New("tree contains a cycle")
	ErrDisconnected = errors.New("tree is not connected")
)

// Tree is a node's view of the spanning tree. Nodes carry an activated flag,
// edges carry a weight. A Tree is owned by exactly one node; reconciliation
// always works on a Clone.
type Tree struct {
	nodes map[NodeId]bool
	adj   map[NodeId]map[NodeId]uint32
}

func NewTree() *Tree {
	return &Tree{
		nodes: make(map[NodeId]bool),
		adj:   make(map[NodeId]map[NodeId]uint32),
	}
}

func (t *Tree) Clone() *Tree {
	if t == nil {
		return nil
	}
	c := &Tree{
		nodes: maps.Clone(t.nodes),
		adj:   make(map[NodeId]map[NodeId]uint32, len(t.adj)),
	}
	for n, edges := range t.adj {
		c.adj[n] = maps.Clone(edges)
	}
	return c
}

// AddNode adds a node if it is absent. The activated flag of an existing node is left untouched.
func (t *Tree) AddNode(n NodeId, activated bool) {
	if _, ok := t.nodes[n]; ok {
		return
	}
	t.nodes[n] = activated
	t.adj[n] = make(map[NodeId]uint32)
}

func (t *Tree) HasNode(n NodeId) bool {
	if t == nil {
		return false
	}
	_, ok := t.nodes[n]
	return ok
}

func (t *Tree) SetActivated(n NodeId, activated bool) {
	t.AddNode(n, activated)
	t.nodes[n] = activated
}

func (t *Tree) IsActivated(n NodeId) bool {
	if t == nil {
		return false
	}
	return t.nodes[n]
}

// AddEdge adds both endpoints (deactivated if absent) and sets the edge weight.
func (t *Tree) AddEdge(a, b NodeId, weight uint32) {
	t.AddNode(a, false)
	t.AddNode(b, false)
	t.adj[a][b] = weight
	t.adj[b][a] = weight
}

func (t *Tree) RemoveEdge(a, b NodeId) {
	if t.adj[a] != nil {
		delete(t.adj[a], b)
	}
	if t.adj[b] != nil {
		delete(t.adj[b], a)
	}
}

func (t *Tree) HasEdge(a, b NodeId) bool {
	if t == nil {
		return false
	}
	_, ok := t.adj[a][b]
	return ok
}

func (t *Tree) Weight(a, b NodeId) (uint32, bool) {
	w, ok := t.adj[a][b]
	return w, ok
}

// Neighbours returns the tree-neighbours of n in ascending id order
func (t *Tree) Neighbours(n NodeId) []NodeId {
	if t == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(t.adj[n]))
}

// Nodes returns every node in ascending id order
func (t *Tree) Nodes() []NodeId {
	if t == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(t.nodes))
}

func (t *Tree) Activated() []NodeId {
	out := make([]NodeId, 0)
	for _, n := range t.Nodes() {
		if t.nodes[n] {
			out = append(out, n)
		}
	}
	return out
}

func (t *Tree) Deactivated() []NodeId {
	out := make([]NodeId, 0)
	for _, n := range t.Nodes() {
		if !t.nodes[n] {
			out = append(out, n)
		}
	}
	return out
}

func (t *Tree) ActivatedCount() int {
	if t == nil {
		return 0
	}
	cnt := 0
	for _, act := range t.nodes {
		if act {
			cnt++
		}
	}
	return cnt
}

// Edges returns every edge in canonical form, sorted
func (t *Tree) Edges() []Edge {
	if t == nil {
		return nil
	}
	edges := make([]Edge, 0, len(t.nodes))
	for a, nbs := range t.adj {
		for b := range nbs {
			if a < b {
				edges = append(edges, NewEdge(a, b))
			}
		}
	}
	SortEdges(edges)
	return edges
}

func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.nodes)
}

func (t *Tree) EdgeCount() int {
	if t == nil {
		return 0
	}
	cnt := 0
	for _, nbs := range t.adj {
		cnt += len(nbs)
	}
	return cnt / 2
}

func (t *Tree) TotalWeight() uint64 {
	total := uint64(0)
	for _, e := range t.Edges() {
		total += uint64(t.adj[e.V1][e.V2])
	}
	return total
}

func (t *Tree) Equal(o *Tree) bool {
	if t == nil || o == nil {
		return t == o
	}
	if !maps.Equal(t.nodes, o.nodes) {
		return false
	}
	for n, nbs := range t.adj {
		if !maps.Equal(nbs, o.adj[n]) {
			return false
		}
	}
	return true
}

// Validate checks that a non-empty tree is connected and acyclic
func (t *Tree) Validate() error {
	if t.Len() == 0 {
		return nil
	}
	if t.EdgeCount() != t.Len()-1 {
		if t.EdgeCount() >= t.Len() {
			return fmt.Errorf("%w: %d edges for %d nodes", ErrCycle, t.EdgeCount(), t.Len())
		}
		return fmt.Errorf("%w: %d edges for %d nodes", ErrDisconnected, t.EdgeCount(), t.Len())
	}
	// |E| = |V| - 1, so connected implies acyclic
	start := t.Nodes()[0]
	seen := map[NodeId]struct{}{start: {}}
	stack := []NodeId{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for nb := range t.adj[cur] {
			if _, ok := seen[nb]; !ok {
				seen[nb] = struct{}{}
				stack = append(stack, nb)
			}
		}
	}
	if len(seen) != t.Len() {
		return fmt.Errorf("%w: reached %d of %d nodes from %d", ErrDisconnected, len(seen), t.Len(), start)
	}
	return nil
}

func (t *Tree) String() string {
	if t == nil {
		return "(none)"
	}
	nodes := make([]string, 0, t.Len())
	for _, n := range t.Nodes() {
		if t.nodes[n] {
			nodes = append(nodes, fmt.Sprintf("%d*", n))
		} else {
			nodes = append(nodes, n.String())
		}
	}
	edges := make([]string, 0, t.EdgeCount())
	for _, e := range t.Edges() {
		edges = append(edges, fmt.Sprintf("%d-%d:%d", e.V1, e.V2, t.adj[e.V1][e.V2]))
	}
	return fmt.Sprintf("nodes [%s] edges [%s]", strings.Join(nodes, " "), strings.Join(edges, " "))
}
