package core

import (
	"cmp"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/encodeous/spantree/protocol"
	"github.com/encodeous/spantree/state"
	"github.com/stretchr/testify/require"
)

type simLink = state.Pair[state.NodeId, state.NodeId]

// simNet drives engine states against each other without goroutines. Frames
// are encoded with the wire codec, kept in per-link FIFO queues, and links are
// drained in a seeded random order.
type simNet struct {
	t       *testing.T
	cfg     *state.TopologyCfg
	nodes   map[state.NodeId]*state.TreeState
	queues  map[simLink][][]byte
	rng     *rand.Rand
	headers []protocol.Header
	logs    []HarnessEvent
}

type simPort struct {
	net *simNet
	id  state.NodeId
}

func (p simPort) SendTreeUpdate(header protocol.Header, update *protocol.TreeUpdate) {
	p.net.t.Helper()
	_, ok := p.net.cfg.Weight(p.id, header.NextHop)
	require.True(p.net.t, ok, "node %d sent to %d without a link", p.id, header.NextHop)
	pkt, err := protocol.Marshal(&protocol.Message{Header: header, Payload: update})
	require.NoError(p.net.t, err)
	link := simLink{V1: p.id, V2: header.NextHop}
	p.net.queues[link] = append(p.net.queues[link], pkt)
	p.net.headers = append(p.net.headers, header)
}

func (p simPort) Log(event TreeEvent, desc string, args ...any) {
	p.net.logs = append(p.net.logs, MakeEvent("LOG", append([]any{p.id, event, desc}, args...)...))
}

func newSimNet(t *testing.T, cfg *state.TopologyCfg, seed uint64) *simNet {
	n := &simNet{
		t:      t,
		cfg:    cfg,
		nodes:  make(map[state.NodeId]*state.TreeState),
		queues: make(map[simLink][][]byte),
		rng:    rand.New(rand.NewPCG(seed, 7)),
	}
	for _, id := range cfg.Nodes {
		ts := state.NewTreeState(id)
		for _, l := range cfg.GetNeighbours(id) {
			ts.Neighbours.Upsert(l.B, l.Weight)
		}
		n.nodes[id] = ts
	}
	return n
}

func (n *simNet) port(id state.NodeId) simPort {
	return simPort{net: n, id: id}
}

func (n *simNet) start(id state.NodeId, manual, compressed bool) {
	require.NoError(n.t, StartMST(n.nodes[id], n.port(id), manual, compressed))
}

// run delivers frames until every queue is empty
func (n *simNet) run() {
	n.t.Helper()
	for steps := 0; ; steps++ {
		require.Less(n.t, steps, 100000, "network did not quiesce")
		links := make([]simLink, 0)
		for l, q := range n.queues {
			if len(q) > 0 {
				links = append(links, l)
			}
		}
		if len(links) == 0 {
			return
		}
		slices.SortFunc(links, func(a, b simLink) int {
			if c := cmp.Compare(a.V1, b.V1); c != 0 {
				return c
			}
			return cmp.Compare(a.V2, b.V2)
		})
		l := links[n.rng.IntN(len(links))]
		pkt := n.queues[l][0]
		n.queues[l] = n.queues[l][1:]

		msg, err := protocol.Unmarshal(pkt)
		require.NoError(n.t, err)
		upd := msg.Payload.(*protocol.TreeUpdate)
		require.NoError(n.t, HandleLocalMST(n.nodes[l.V2], n.port(l.V2), l.V1, upd))
	}
}

// walk moves the pen towards the cheapest deactivated node until the tree is complete
func (n *simNet) walk() {
	n.t.Helper()
	for steps := 0; ; steps++ {
		require.Less(n.t, steps, 10000, "manual walk did not finish")
		holder := n.penHolder()
		require.NotNil(n.t, holder, "nobody holds the pen")
		next, err := SelectDeactivatedNode(holder.LocalMST, holder.Id)
		require.NoError(n.t, err)
		if next == state.NoNode {
			return
		}
		path, err := PathInTree(holder.LocalMST, holder.Id, next)
		require.NoError(n.t, err)
		require.NoError(n.t, SendLocalMSTUpdateManually(holder, n.port(holder.Id), path[1]))
		n.run()
	}
}

func (n *simNet) penHolder() *state.TreeState {
	var holder *state.TreeState
	for _, ts := range n.nodes {
		if ts.HoldsPen {
			require.Nil(n.t, holder, "more than one node holds the pen")
			holder = ts
		}
	}
	return holder
}

// requireConverged checks that every node of root's component holds the same
// spanning tree, and that it is a minimum spanning tree
func (n *simNet) requireConverged(root state.NodeId) *state.Tree {
	n.t.Helper()
	ref := KruskalMST(n.cfg, root)
	view := n.nodes[root].LocalMST
	require.NotNil(n.t, view)
	require.NoError(n.t, view.Validate())
	require.Equal(n.t, ref.Nodes(), view.Nodes())
	require.Equal(n.t, ref.Nodes(), view.Activated())
	require.Equal(n.t, ref.TotalWeight(), view.TotalWeight(), "view %s, reference %s", view, ref)
	for _, id := range ref.Nodes() {
		other := n.nodes[id].LocalMST
		require.True(n.t, view.Equal(other), "node %d has %s, node %d has %s", root, view, id, other)
		if n.nodes[id].Compressed {
			require.True(n.t, n.nodes[id].Pending.Replay().Equal(other), "node %d log does not replay to its view", id)
		}
	}
	return view
}
