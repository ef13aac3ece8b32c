package core

import (
	"testing"

	"github.com/encodeous/spantree/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//	0 -4- 1 -4- 2
//	|
//	1
//	|
//	3 -2- 4
func sampleTree() *state.Tree {
	t := state.NewTree()
	t.AddNode(0, true)
	t.AddEdge(0, 1, 4)
	t.AddEdge(1, 2, 4)
	t.AddEdge(0, 3, 1)
	t.AddEdge(3, 4, 2)
	return t
}

func TestPathInTree(t *testing.T) {
	tr := sampleTree()
	path, err := PathInTree(tr, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, []state.NodeId{2, 1, 0, 3, 4}, path)

	path, err = PathInTree(tr, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, []state.NodeId{3}, path)
}

func TestPathInTree_Missing(t *testing.T) {
	tr := sampleTree()
	_, err := PathInTree(tr, 0, 9)
	assert.ErrorIs(t, err, ErrNoPath)

	tr.AddNode(9, false)
	_, err = PathInTree(tr, 0, 9)
	assert.ErrorIs(t, err, ErrNoPath)
}

func TestMaxWeightEdge_FirstOnTie(t *testing.T) {
	tr := sampleTree()
	path, err := PathInTree(tr, 2, 0)
	require.NoError(t, err)
	w, e, err := MaxWeightEdge(tr, path)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), w)
	assert.Equal(t, state.NewEdge(1, 2), e)

	reversed, err := PathInTree(tr, 0, 2)
	require.NoError(t, err)
	_, e, err = MaxWeightEdge(tr, reversed)
	require.NoError(t, err)
	assert.Equal(t, state.NewEdge(0, 1), e)
}

func TestMaxWeightEdge_Errors(t *testing.T) {
	tr := sampleTree()
	_, _, err := MaxWeightEdge(tr, []state.NodeId{0})
	assert.ErrorIs(t, err, ErrNoPath)
	_, _, err = MaxWeightEdge(tr, []state.NodeId{0, 2})
	assert.ErrorIs(t, err, ErrNoPath)
}

func TestPathCost(t *testing.T) {
	tr := sampleTree()
	path, err := PathInTree(tr, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), PathCost(tr, path))
	assert.Equal(t, uint64(0), PathCost(tr, []state.NodeId{2}))
}

func TestSelectDeactivatedNode(t *testing.T) {
	tr := sampleTree()
	// costs from 0: 1->4, 2->8, 3->1, 4->3
	next, err := SelectDeactivatedNode(tr, 0)
	require.NoError(t, err)
	assert.Equal(t, state.NodeId(3), next)

	tr.SetActivated(3, true)
	next, err = SelectDeactivatedNode(tr, 0)
	require.NoError(t, err)
	assert.Equal(t, state.NodeId(4), next)
}

func TestSelectDeactivatedNode_TieBreak(t *testing.T) {
	// 5 and 6 both cost 4, 6 needs fewer hops; 1 and 7 cost 4 in one hop, 1 has the lower id
	tr := state.NewTree()
	tr.AddNode(0, true)
	tr.AddEdge(0, 2, 2)
	tr.AddEdge(2, 5, 2)
	tr.AddEdge(0, 6, 4)
	tr.SetActivated(2, true)
	next, err := SelectDeactivatedNode(tr, 0)
	require.NoError(t, err)
	assert.Equal(t, state.NodeId(6), next)

	tr.AddEdge(0, 7, 4)
	tr.AddEdge(0, 1, 4)
	tr.SetActivated(6, true)
	next, err = SelectDeactivatedNode(tr, 0)
	require.NoError(t, err)
	assert.Equal(t, state.NodeId(1), next)
}

func TestSelectDeactivatedNode_Complete(t *testing.T) {
	tr := sampleTree()
	for _, n := range tr.Nodes() {
		tr.SetActivated(n, true)
	}
	next, err := SelectDeactivatedNode(tr, 2)
	require.NoError(t, err)
	assert.Equal(t, state.NoNode, next)
}
