package state

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

type NodeId int

// NoNode is the "none" sentinel, e.g. when there is no node left to activate.
const NoNode NodeId = -1

func (n NodeId) String() string {
	return strconv.Itoa(int(n))
}

func ParseNodeId(s string) (NodeId, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return NoNode, fmt.Errorf("invalid node id %q: %w", s, err)
	}
	if v < 0 {
		return NoNode, fmt.Errorf("invalid node id %q: must not be negative", s)
	}
	return NodeId(v), nil
}

// Edge is an undirected edge. The canonical form has V1 < V2, see NewEdge.
type Edge = Pair[NodeId, NodeId]

func NewEdge(a, b NodeId) Edge {
	return MakeSortedPair(a, b)
}

func SortEdges(edges []Edge) {
	SortPairs(edges)
}

type Neighbour struct {
	Id     NodeId
	Weight uint32
}

func (n Neighbour) String() string {
	return fmt.Sprintf("%d(%d)", n.Id, n.Weight)
}

// NeighbourTable maps a neighbour to the weight of the link leading to it.
// Entries are kept sorted by ascending weight, ties broken by id.
type NeighbourTable struct {
	entries []Neighbour
}

// Upsert inserts or updates a neighbour, then resorts the whole table.
func (t *NeighbourTable) Upsert(id NodeId, weight uint32) {
	idx := slices.IndexFunc(t.entries, func(n Neighbour) bool {
		return n.Id == id
	})
	if idx == -1 {
		t.entries = append(t.entries, Neighbour{Id: id, Weight: weight})
	} else {
		t.entries[idx].Weight = weight
	}
	slices.SortFunc(t.entries, func(a, b Neighbour) int {
		if c := cmp.Compare(a.Weight, b.Weight); c != 0 {
			return c
		}
		return cmp.Compare(a.Id, b.Id)
	})
}

func (t *NeighbourTable) Get(id NodeId) (uint32, bool) {
	for _, n := range t.entries {
		if n.Id == id {
			return n.Weight, true
		}
	}
	return 0, false
}

func (t *NeighbourTable) Has(id NodeId) bool {
	_, ok := t.Get(id)
	return ok
}

func (t *NeighbourTable) Len() int {
	return len(t.entries)
}

// Entries returns a copy of the table in weight order
func (t *NeighbourTable) Entries() []Neighbour {
	return slices.Clone(t.entries)
}

func (t *NeighbourTable) Ids() []NodeId {
	ids := make([]NodeId, 0, len(t.entries))
	for _, n := range t.entries {
		ids = append(ids, n.Id)
	}
	return ids
}

func (t *NeighbourTable) String() string {
	out := make([]string, 0, len(t.entries))
	for _, n := range t.entries {
		out = append(out, n.String())
	}
	return strings.Join(out, ", ")
}
