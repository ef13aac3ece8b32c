package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiff_ReplayKeepsDeletedEndpoints(t *testing.T) {
	d := NewDiff()
	d.Insert(0, 1, 1)
	d.Insert(0, 2, 3)
	d.Activate(0)
	d.Insert(1, 2, 2)
	d.Delete(0, 2)
	d.Activate(1)

	tr := d.Replay()
	assert.Equal(t, []NodeId{0, 1, 2}, tr.Nodes())
	assert.Equal(t, []Edge{{0, 1}, {1, 2}}, tr.Edges())
	assert.Equal(t, []NodeId{0, 1}, tr.Activated())
	assert.NoError(t, tr.Validate())
}

func TestDiff_ApplyIdempotent(t *testing.T) {
	d := NewDiff()
	d.Insert(0, 1, 1)
	d.Insert(1, 2, 2)
	d.Delete(2, 3)
	d.Activate(1)

	tr := sampleTree()
	d.Apply(tr)
	once := tr.Clone()
	d.Apply(tr)
	assert.True(t, once.Equal(tr))
	assert.False(t, tr.HasEdge(2, 3))
}

func TestDiff_Merge(t *testing.T) {
	a := NewDiff()
	a.Insert(0, 1, 4)
	a.Activate(0)

	b := NewDiff()
	b.Insert(0, 1, 2)
	b.Insert(1, 2, 1)
	b.Delete(0, 1)
	b.Activate(1)

	a.Merge(b)
	assert.Equal(t, map[Edge]uint32{{0, 1}: 2, {1, 2}: 1}, a.Insertions)
	assert.Equal(t, []Edge{{0, 1}}, a.SortedDeletions())
	assert.Equal(t, []NodeId{0, 1}, a.SortedActivated())

	a.Merge(nil)
	assert.Len(t, a.Insertions, 2)
}

func TestDiff_CloneIsIndependent(t *testing.T) {
	d := NewDiff()
	d.Insert(0, 1, 1)
	c := d.Clone()
	c.Insert(1, 2, 1)
	c.Activate(1)
	assert.Len(t, d.Insertions, 1)
	assert.Empty(t, d.Activated)
	assert.True(t, NewDiff().IsEmpty())
	assert.False(t, c.IsEmpty())
}
