package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"sync"

	"github.com/dustin/go-broadcast"
	"github.com/encodeous/spantree/core"
	"github.com/encodeous/spantree/perf"
	"github.com/encodeous/spantree/protocol"
	"github.com/encodeous/spantree/state"
	"github.com/encodeous/tint"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	ErrUnknownNode    = errors.New("unknown node")
	ErrAlreadyStarted = errors.New("tree construction already started")
	ErrNotRunning     = errors.New("network is not running")
)

type linkKey = state.Pair[state.NodeId, state.NodeId]

// Network hosts one node actor per topology node and the virtual links between them
type Network struct {
	RunId    uuid.UUID
	Topology *state.TopologyCfg
	Cfg      state.RunCfg
	Log      *slog.Logger
	// Trace receives a state.TraceEvent every time a node's view changes
	Trace broadcast.Broadcaster
	Stats *perf.Collector

	logOutput io.Writer
	results   io.Closer

	links    map[linkKey]*VirtualLink
	outgoing map[state.NodeId][]*VirtualLink
	idle     *tracker

	mu      sync.Mutex
	nodes   map[state.NodeId]*core.Node
	started bool

	ctx    context.Context
	cancel context.CancelCauseFunc
	group  *errgroup.Group
}

// New builds the network of topo. Node logs go to logOutput, os.Stderr if nil.
func New(topo *state.TopologyCfg, cfg state.RunCfg, logOutput io.Writer) (*Network, error) {
	if err := state.TopologyValidator(topo); err != nil {
		return nil, err
	}
	if err := state.RunCfgValidator(&cfg); err != nil {
		return nil, err
	}
	if logOutput == nil {
		logOutput = os.Stderr
	}
	n := &Network{
		RunId:     uuid.New(),
		Topology:  topo,
		Cfg:       cfg,
		logOutput: logOutput,
		links:     make(map[linkKey]*VirtualLink),
		outgoing:  make(map[state.NodeId][]*VirtualLink),
		idle:      newTracker(),
		nodes:     make(map[state.NodeId]*core.Node),
	}
	n.Log = slog.New(tint.NewHandler(logOutput, &tint.Options{
		Level:        n.logLevel(),
		CustomPrefix: "net",
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if attr.Key == "time" {
				return slog.Attr{}
			}
			return attr
		},
	})).With("run", n.RunId.String())

	for _, l := range topo.Links {
		n.addLink(NewVirtualLink(l.A, l.B, l.Weight))
		n.addLink(NewVirtualLink(l.B, l.A, l.Weight))
	}

	var out io.Writer
	if cfg.ResultsPath != "" {
		f, err := os.OpenFile(cfg.ResultsPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
		if err != nil {
			return nil, err
		}
		n.results = f
		out = f
	}
	n.Stats = perf.NewCollector(n.RunId.String(), out, state.StatsBufferSize)
	n.Trace = broadcast.NewBroadcaster(state.TraceBufferSize)
	return n, nil
}

func (n *Network) logLevel() slog.Level {
	if n.Cfg.Verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func (n *Network) addLink(v *VirtualLink) {
	v.WithLatency(n.Cfg.Latency, n.Cfg.Jitter).WithDuplicates(n.Cfg.DuplicateRate)
	n.links[linkKey{V1: v.From, V2: v.To}] = v
	n.outgoing[v.From] = append(n.outgoing[v.From], v)
}

// Link returns the directed link from a to b
func (n *Network) Link(a, b state.NodeId) (*VirtualLink, bool) {
	v, ok := n.links[linkKey{V1: a, V2: b}]
	return v, ok
}

func (n *Network) send(v *VirtualLink, pkt []byte) {
	// the frame is counted before it becomes visible to the pump
	n.idle.Add(1)
	if cnt := v.enqueue(pkt); cnt > 1 {
		n.idle.Add(cnt - 1)
	}
}

func (n *Network) Send(from, to state.NodeId, pkt []byte) error {
	v, ok := n.Link(from, to)
	if !ok {
		return fmt.Errorf("%w: %d -> %d", state.ErrNoLink, from, to)
	}
	n.send(v, pkt)
	return nil
}

// Broadcast sends pkt on every link of from. Discovery probes are answered by
// the links themselves: each link sends its weight back to the prober.
func (n *Network) Broadcast(from state.NodeId, pkt []byte) error {
	msg, err := protocol.Unmarshal(pkt)
	if err != nil {
		return err
	}
	if msg.Header.Type != protocol.NeighbourDiscovery || msg.Header.To != protocol.Broadcast {
		for _, v := range n.outgoing[from] {
			n.send(v, pkt)
		}
		return nil
	}
	for _, v := range n.outgoing[from] {
		reply, err := protocol.Marshal(&protocol.Message{
			Header: protocol.Header{
				Type:    protocol.NeighbourDiscovery,
				From:    v.To,
				To:      from,
				NextHop: from,
			},
			Payload: &protocol.Discovery{Weight: v.Weight},
		})
		if err != nil {
			return err
		}
		back, ok := n.Link(v.To, from)
		if !ok {
			return fmt.Errorf("%w: %d -> %d", state.ErrNoLink, v.To, from)
		}
		n.send(back, reply)
	}
	return nil
}

// Start launches every node and returns once neighbour discovery has settled
func (n *Network) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancelCause(ctx)
	group, gctx := errgroup.WithContext(ctx)
	n.cancel = cancel
	n.group = group
	n.ctx = gctx

	opts := core.Options{
		LogLevel:  n.logLevel(),
		LogOutput: n.logOutput,
		LogAttrs:  []any{"run", n.RunId.String()},
		Trace:     n.Trace,
		Stats:     n.Stats,
	}
	ready := make(chan struct{}, len(n.Topology.Nodes))
	for _, id := range n.Topology.Nodes {
		ncfg := state.NodeCfg{Id: id, LogPath: n.Cfg.LogPath}
		group.Go(func() error {
			return core.Start(gctx, ncfg, n, opts, func(s *state.State) {
				n.mu.Lock()
				n.nodes[id] = core.NewNode(s.Env)
				n.mu.Unlock()
				ready <- struct{}{}
			})
		})
	}
	for range n.Topology.Nodes {
		select {
		case <-ready:
		case <-gctx.Done():
			return context.Cause(gctx)
		}
	}

	for _, v := range n.links {
		group.Go(func() error {
			node := n.nodes[v.To]
			return v.pump(gctx, func(f frame) {
				node.Deliver(v.From, f.seq, f.pkt, n.idle.Done)
			})
		})
	}

	// a node answers once its main loop runs, so every probe is queued after this
	for _, id := range n.Topology.Nodes {
		if _, err := n.nodes[id].GetNeighbours(); err != nil {
			return err
		}
	}
	if err := n.WaitIdle(ctx); err != nil {
		return err
	}
	n.Log.Info("network started", "nodes", len(n.Topology.Nodes), "links", len(n.Topology.Links))
	return nil
}

// WaitIdle blocks until no frame is in flight, or a node failed
func (n *Network) WaitIdle(ctx context.Context) error {
	if n.ctx == nil {
		return ErrNotRunning
	}
	return n.idle.Wait(ctx, n.ctx)
}

// Stop writes the results of the run, stops every node and returns the first node failure
func (n *Network) Stop() error {
	if n.cancel == nil {
		return ErrNotRunning
	}
	if n.ctx.Err() == nil {
		if err := n.Report(); err != nil {
			n.Log.Warn("failed to write results", "err", err)
		}
	}
	n.cancel(context.Canceled)
	err := n.group.Wait()
	n.Trace.Close()
	n.Stats.Close()
	if n.results != nil {
		if cerr := n.results.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Context is done once the network stopped or a node failed
func (n *Network) Context() context.Context {
	return n.ctx
}

// Wait blocks until every node stopped and returns the first node failure
func (n *Network) Wait() error {
	if n.group == nil {
		return ErrNotRunning
	}
	return n.group.Wait()
}

func (n *Network) node(id state.NodeId) (*core.Node, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	node, ok := n.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	return node, nil
}

// Nodes returns every node id in ascending order
func (n *Network) Nodes() []state.NodeId {
	ids := slices.Clone(n.Topology.Nodes)
	slices.Sort(ids)
	return ids
}

// StartMST makes id the initiator of the tree. Only one tree is built per run.
func (n *Network) StartMST(id state.NodeId, manual, compressed bool) error {
	node, err := n.node(id)
	if err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return ErrAlreadyStarted
	}
	if err := node.StartMST(manual, compressed); err != nil {
		return err
	}
	n.started = true
	n.Log.Info("started tree construction", "initiator", id, "manual", manual, "compressed", compressed)
	return nil
}

// Handoff moves the pen from the node from to its tree-neighbour to
func (n *Network) Handoff(from, to state.NodeId) error {
	node, err := n.node(from)
	if err != nil {
		return err
	}
	if _, err := n.node(to); err != nil {
		return err
	}
	return node.SendLocalMSTUpdateManually(to)
}

// Neighbours lists the neighbours of id in ascending weight order, as "id" or "id(weight)"
func (n *Network) Neighbours(id state.NodeId, withWeights bool) ([]string, error) {
	node, err := n.node(id)
	if err != nil {
		return nil, err
	}
	entries, err := node.GetNeighbours()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if withWeights {
			out = append(out, e.String())
		} else {
			out = append(out, e.Id.String())
		}
	}
	return out, nil
}

// Snapshot returns a copy of the view of id, nil if it has not joined a tree
func (n *Network) Snapshot(id state.NodeId) (*state.Tree, error) {
	node, err := n.node(id)
	if err != nil {
		return nil, err
	}
	return node.LocalMST()
}

func (n *Network) Snapshots() (map[state.NodeId]*state.Tree, error) {
	out := make(map[state.NodeId]*state.Tree)
	for _, id := range n.Nodes() {
		t, err := n.Snapshot(id)
		if err != nil {
			return nil, err
		}
		out[id] = t
	}
	return out, nil
}

// PenHolder returns the node holding the pen, NoNode if there is none
func (n *Network) PenHolder() (state.NodeId, error) {
	for _, id := range n.Nodes() {
		node, err := n.node(id)
		if err != nil {
			return state.NoNode, err
		}
		holds, err := node.HoldsPen()
		if err != nil {
			return state.NoNode, err
		}
		if holds {
			return id, nil
		}
	}
	return state.NoNode, nil
}

// Report writes the view of every node that joined the tree, and the run totals, to the results
func (n *Network) Report() error {
	trees, err := n.Snapshots()
	if err != nil {
		return err
	}
	n.Stats.Result("run " + n.RunId.String())
	for _, id := range n.Nodes() {
		t := trees[id]
		if t == nil {
			continue
		}
		n.Stats.Result(strconv.Itoa(int(id)) + ": " + t.String() + " weight " + strconv.FormatUint(t.TotalWeight(), 10))
	}
	n.Stats.Result(n.Stats.Totals().String())
	return nil
}
