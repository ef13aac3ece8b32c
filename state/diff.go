package state

import (
	"fmt"
	"maps"
	"slices"
)

// Diff is a log of mutations against a spanning tree view. In compressed mode
// the accumulated Diff of a node is the complete log since the empty view, so
// Replay reproduces the node's view.
type Diff struct {
	Insertions map[Edge]uint32
	Deletions  map[Edge]struct{}
	Activated  map[NodeId]struct{}
}

func NewDiff() *Diff {
	return &Diff{
		Insertions: make(map[Edge]uint32),
		Deletions:  make(map[Edge]struct{}),
		Activated:  make(map[NodeId]struct{}),
	}
}

func (d *Diff) Insert(a, b NodeId, weight uint32) {
	d.Insertions[Edge{V1: a, V2: b}] = weight
}

func (d *Diff) Delete(a, b NodeId) {
	d.Deletions[Edge{V1: a, V2: b}] = struct{}{}
}

func (d *Diff) Activate(n NodeId) {
	d.Activated[n] = struct{}{}
}

func (d *Diff) Clone() *Diff {
	if d == nil {
		return NewDiff()
	}
	return &Diff{
		Insertions: maps.Clone(d.Insertions),
		Deletions:  maps.Clone(d.Deletions),
		Activated:  maps.Clone(d.Activated),
	}
}

func (d *Diff) IsEmpty() bool {
	return d == nil || len(d.Insertions) == 0 && len(d.Deletions) == 0 && len(d.Activated) == 0
}

// Merge folds other into d. Duplicate insertions keep the lower weight.
func (d *Diff) Merge(other *Diff) {
	if other == nil {
		return
	}
	for e, w := range other.Insertions {
		if cur, ok := d.Insertions[e]; !ok || w < cur {
			d.Insertions[e] = w
		}
	}
	for e := range other.Deletions {
		d.Deletions[e] = struct{}{}
	}
	for n := range other.Activated {
		d.Activated[n] = struct{}{}
	}
}

// Apply applies insertions, then deletions, then activations to t.
// Re-applying a present insertion or an absent deletion does nothing.
func (d *Diff) Apply(t *Tree) {
	if d == nil {
		return
	}
	for _, e := range d.SortedInsertions() {
		t.AddEdge(e.V1, e.V2, d.Insertions[e])
	}
	for e := range d.Deletions {
		t.RemoveEdge(e.V1, e.V2)
	}
	for n := range d.Activated {
		t.SetActivated(n, true)
	}
}

// Replay applies the diff to an empty view
func (d *Diff) Replay() *Tree {
	t := NewTree()
	d.Apply(t)
	return t
}

func (d *Diff) SortedInsertions() []Edge {
	edges := slices.Collect(maps.Keys(d.Insertions))
	SortEdges(edges)
	return edges
}

func (d *Diff) SortedDeletions() []Edge {
	edges := slices.Collect(maps.Keys(d.Deletions))
	SortEdges(edges)
	return edges
}

func (d *Diff) SortedActivated() []NodeId {
	return slices.Sorted(maps.Keys(d.Activated))
}

func (d *Diff) String() string {
	if d == nil {
		return "(empty)"
	}
	return fmt.Sprintf("+%v -%v act%v", d.SortedInsertions(), d.SortedDeletions(), d.SortedActivated())
}
