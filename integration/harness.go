//go:build integration

package integration

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/encodeous/spantree/core"
	"github.com/encodeous/spantree/network"
	"github.com/encodeous/spantree/state"
	"github.com/stretchr/testify/require"
)

// VirtualHarness builds a topology node by node and runs it on an in-memory network
type VirtualHarness struct {
	Topology state.TopologyCfg
	Run      state.RunCfg
	Net      *network.Network
	// Verbose sends node logs to stderr
	Verbose bool
}

func (v *VirtualHarness) NewNode(id state.NodeId) {
	v.Topology.Nodes = append(v.Topology.Nodes, id)
}

func (v *VirtualHarness) AddLink(a, b state.NodeId, weight uint32) {
	v.Topology.Links = append(v.Topology.Links, state.LinkCfg{A: a, B: b, Weight: weight})
}

func (v *VirtualHarness) WithLatency(lat, jitter time.Duration) *VirtualHarness {
	v.Run.Latency = lat
	v.Run.Jitter = jitter
	return v
}

func (v *VirtualHarness) WithDuplicates(rate float64) *VirtualHarness {
	v.Run.DuplicateRate = rate
	return v
}

func (v *VirtualHarness) Start(t *testing.T) {
	t.Helper()
	var out io.Writer = io.Discard
	if v.Verbose {
		out = os.Stderr
		v.Run.Verbose = true
	}
	n, err := network.New(&v.Topology, v.Run, out)
	require.NoError(t, err)
	require.NoError(t, n.Start(context.Background()))
	v.Net = n
}

// Settle waits until no frame is in flight
func (v *VirtualHarness) Settle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	require.NoError(t, v.Net.WaitIdle(ctx))
}

func (v *VirtualHarness) Stop(t *testing.T) {
	t.Helper()
	require.NoError(t, v.Net.Stop())
}

// Build starts the tree at root, waits for it to settle and returns the view of root
func (v *VirtualHarness) Build(t *testing.T, root state.NodeId, manual, compressed bool) *state.Tree {
	t.Helper()
	require.NoError(t, v.Net.StartMST(root, manual, compressed))
	v.Settle(t)
	if manual {
		v.Walk(t)
	}
	return v.RequireConverged(t, root)
}

// Walk moves the pen towards the cheapest deactivated node until every node is activated
func (v *VirtualHarness) Walk(t *testing.T) {
	t.Helper()
	for steps := 0; ; steps++ {
		require.Less(t, steps, 100*len(v.Topology.Nodes))
		holder, err := v.Net.PenHolder()
		require.NoError(t, err)
		require.NotEqual(t, state.NoNode, holder)
		view, err := v.Net.Snapshot(holder)
		require.NoError(t, err)
		next, err := core.SelectDeactivatedNode(view, holder)
		require.NoError(t, err)
		if next == state.NoNode {
			return
		}
		path, err := core.PathInTree(view, holder, next)
		require.NoError(t, err)
		require.NoError(t, v.Net.Handoff(holder, path[1]))
		v.Settle(t)
	}
}

// RequireConverged checks that every node reachable from root holds the same minimum spanning tree
func (v *VirtualHarness) RequireConverged(t *testing.T, root state.NodeId) *state.Tree {
	t.Helper()
	ref := core.KruskalMST(&v.Topology, root)
	trees, err := v.Net.Snapshots()
	require.NoError(t, err)
	view := trees[root]
	require.NotNil(t, view)
	require.NoError(t, view.Validate())
	require.Equal(t, ref.Nodes(), view.Activated())
	require.Equal(t, ref.TotalWeight(), view.TotalWeight(), "view %s, reference %s", view, ref)
	for _, id := range ref.Nodes() {
		require.True(t, view.Equal(trees[id]), "node %d has %s, node %d has %s", root, view, id, trees[id])
	}
	for id, tree := range trees {
		if !ref.HasNode(id) {
			require.Nil(t, tree, "node %d outside the component joined a tree", id)
		}
	}
	return view
}
