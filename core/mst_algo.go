package core

import (
	"errors"
	"fmt"
	"slices"

	"github.com/encodeous/spantree/protocol"
	"github.com/encodeous/spantree/state"
)

var (
	// fatal, the node stops
	ErrInconsistentState = errors.New("inconsistent tree state")
	ErrNoPath            = errors.New("no path in tree")

	// returned to the caller, nothing is changed
	ErrInvalidTarget = errors.New("target is not a tree neighbour")
	ErrNotPenHolder  = errors.New("node does not hold the pen")
	ErrAlreadyJoined = errors.New("node already joined a tree")
)

// Transport is an interface that defines the I/O of the tree engine
type Transport interface {
	SendTreeUpdate(header protocol.Header, update *protocol.TreeUpdate)
	Log(event TreeEvent, desc string, args ...any)
}

// Reconcile runs one reconciliation step of ts.Id against view and persists the
// result as the local view. It reports whether the tree was extended.
func Reconcile(ts *state.TreeState, r Transport, view *state.Tree) (bool, error) {
	step := state.NewDiff()
	var next *state.Tree

	switch {
	case view.Len() == 0:
		next = state.NewTree()
		next.AddNode(ts.Id, true)
		step.Activate(ts.Id)
		for _, nb := range ts.Neighbours.Entries() {
			next.AddEdge(ts.Id, nb.Id, nb.Weight)
			step.Insert(ts.Id, nb.Id, nb.Weight)
		}
		r.Log(TreeCreated, "created tree", "neighbours", ts.Neighbours.Len())
	case !view.HasNode(ts.Id):
		r.Log(InconsistentState, "received view does not contain this node", "view", view)
		return false, fmt.Errorf("%w: node %d missing from %s", ErrInconsistentState, ts.Id, view)
	case view.IsActivated(ts.Id):
		return false, nil
	default:
		next = view.Clone()
		for _, nb := range ts.Neighbours.Entries() {
			if !next.HasNode(nb.Id) {
				next.AddEdge(ts.Id, nb.Id, nb.Weight)
				step.Insert(ts.Id, nb.Id, nb.Weight)
				continue
			}
			if next.HasEdge(ts.Id, nb.Id) {
				continue
			}
			path, err := PathInTree(next, ts.Id, nb.Id)
			if err != nil {
				return false, err
			}
			maxW, maxE, err := MaxWeightEdge(next, path)
			if err != nil {
				return false, err
			}
			if nb.Weight < maxW {
				next.RemoveEdge(maxE.V1, maxE.V2)
				step.Delete(maxE.V1, maxE.V2)
				next.AddEdge(ts.Id, nb.Id, nb.Weight)
				step.Insert(ts.Id, nb.Id, nb.Weight)
				r.Log(EdgeReplaced, "replaced edge", "old", maxE, "oldWeight", maxW, "new", nb)
			}
		}
		next.SetActivated(ts.Id, true)
		step.Activate(ts.Id)
		r.Log(TreeExtended, "extended tree", "activated", next.ActivatedCount(), "of", next.Len())
	}

	OptimizeDiff(step)
	ts.LocalMST = next
	ts.Pending.Merge(step)
	return true, nil
}

// mergeUpdate folds a received update into the local view and reports whether the view changed
func mergeUpdate(ts *state.TreeState, r Transport, from state.NodeId, upd *protocol.TreeUpdate) bool {
	if upd.Compressed {
		d := upd.Diff.Clone()
		OptimizeDiff(d)
		merged := ts.Pending.Clone()
		merged.Merge(d)
		view := merged.Replay()
		ts.Pending = merged
		if view.Equal(ts.LocalMST) {
			return false
		}
		ts.LocalMST = view
		r.Log(ViewMerged, "merged diff", "from", from, "activated", view.ActivatedCount())
		return true
	}
	if ts.LocalMST != nil && upd.Snapshot.ActivatedCount() < ts.LocalMST.ActivatedCount() {
		r.Log(StaleViewDropped, "dropped stale snapshot", "from", from,
			"activated", upd.Snapshot.ActivatedCount(), "local", ts.LocalMST.ActivatedCount())
		return false
	}
	if upd.Snapshot.Equal(ts.LocalMST) {
		return false
	}
	ts.LocalMST = upd.Snapshot.Clone()
	ts.ResetPending()
	r.Log(ViewMerged, "adopted snapshot", "from", from, "activated", ts.LocalMST.ActivatedCount())
	return true
}

func buildUpdate(ts *state.TreeState, nextActivation state.NodeId) *protocol.TreeUpdate {
	upd := &protocol.TreeUpdate{
		Compressed:     ts.Compressed,
		Manual:         ts.Manual,
		NextActivation: nextActivation,
	}
	if ts.Compressed {
		d := ts.Pending.Clone()
		OptimizeDiff(d)
		upd.Diff = d
	} else {
		upd.Snapshot = ts.LocalMST.Clone()
	}
	return upd
}

func send(ts *state.TreeState, r Transport, to, nextHop, nextActivation state.NodeId) {
	r.SendTreeUpdate(protocol.Header{
		Type:    protocol.LocalMST,
		From:    ts.Id,
		To:      to,
		NextHop: nextHop,
	}, buildUpdate(ts, nextActivation))
}

// propagate sends the local view to every activated tree-neighbour not in exclude
func propagate(ts *state.TreeState, r Transport, exclude ...state.NodeId) {
	targets := make([]state.NodeId, 0)
	for _, nb := range ts.LocalMST.Neighbours(ts.Id) {
		if !ts.LocalMST.IsActivated(nb) || slices.Contains(exclude, nb) {
			continue
		}
		send(ts, r, nb, nb, state.NoNode)
		targets = append(targets, nb)
	}
	if len(targets) > 0 {
		r.Log(ViewPropagated, "propagated view", "to", targets)
	}
}

// routeActivation sends the activation of target towards it. Physical neighbours
// are reached directly, anything else through the next hop on the tree path.
func routeActivation(ts *state.TreeState, r Transport, target state.NodeId) (state.NodeId, error) {
	hop := target
	if !ts.Neighbours.Has(target) {
		path, err := PathInTree(ts.LocalMST, ts.Id, target)
		if err != nil {
			return state.NoNode, err
		}
		if len(path) < 2 {
			return state.NoNode, fmt.Errorf("%w: activation of %d routed to itself", ErrInconsistentState, target)
		}
		hop = path[1]
	}
	send(ts, r, target, hop, target)
	return hop, nil
}

// afterExtension either keeps the pen (manual) or picks and activates the next node
func afterExtension(ts *state.TreeState, r Transport) error {
	if ts.Manual {
		ts.HoldsPen = true
		r.Log(PenTaken, "holding the pen")
		propagate(ts, r)
		return nil
	}
	next, err := SelectDeactivatedNode(ts.LocalMST, ts.Id)
	if err != nil {
		return err
	}
	if next == state.NoNode {
		r.Log(TreeComplete, "every node is activated", "weight", ts.LocalMST.TotalWeight(), "edges", ts.LocalMST.EdgeCount())
		propagate(ts, r)
		return nil
	}
	hop, err := routeActivation(ts, r, next)
	if err != nil {
		return err
	}
	r.Log(ActivationSent, "activating next node", "next", next, "via", hop)
	propagate(ts, r, hop)
	return nil
}

// StartMST makes this node the initiator of a new tree
func StartMST(ts *state.TreeState, r Transport, manual, compressed bool) error {
	if ts.Joined() {
		return ErrAlreadyJoined
	}
	ts.Manual = manual
	ts.Compressed = compressed
	ts.ResetPending()
	if _, err := Reconcile(ts, r, nil); err != nil {
		return err
	}
	return afterExtension(ts, r)
}

// HandleLocalMST processes a tree update received from the neighbour from
func HandleLocalMST(ts *state.TreeState, r Transport, from state.NodeId, upd *protocol.TreeUpdate) error {
	if ts.Joined() && upd.Compressed != ts.Compressed {
		r.Log(ModeMismatch, "dropped update of another mode", "from", from, "compressed", upd.Compressed)
		return nil
	}
	ts.Manual = upd.Manual
	ts.Compressed = upd.Compressed
	changed := mergeUpdate(ts, r, from, upd)

	switch upd.NextActivation {
	case ts.Id:
		return activate(ts, r, from, changed)
	case state.NoNode:
		if changed && ts.Activated() {
			propagate(ts, r, from)
		}
		return nil
	default:
		return relayActivation(ts, r, from, upd.NextActivation, changed)
	}
}

func activate(ts *state.TreeState, r Transport, from state.NodeId, changed bool) error {
	extended, err := Reconcile(ts, r, ts.LocalMST)
	if err != nil {
		return err
	}
	if extended {
		return afterExtension(ts, r)
	}
	if ts.Manual {
		ts.HoldsPen = true
		r.Log(PenTaken, "pen moved here", "from", from)
	}
	if changed {
		propagate(ts, r, from)
	}
	return nil
}

func relayActivation(ts *state.TreeState, r Transport, from, target state.NodeId, changed bool) error {
	hop := state.NoNode
	if ts.LocalMST.IsActivated(target) {
		r.Log(StaleActivationDropped, "target is already activated", "target", target, "from", from)
	} else {
		var err error
		hop, err = routeActivation(ts, r, target)
		if err != nil {
			return err
		}
		r.Log(ActivationForwarded, "forwarded activation", "target", target, "via", hop)
	}
	if changed && ts.Activated() {
		propagate(ts, r, from, hop)
	}
	return nil
}

// SendLocalMSTUpdateManually hands the pen to target. A deactivated target extends
// the tree, an activated one just takes the pen.
func SendLocalMSTUpdateManually(ts *state.TreeState, r Transport, target state.NodeId) error {
	if !ts.Joined() || !ts.Manual || !ts.HoldsPen {
		return ErrNotPenHolder
	}
	if target == ts.Id || !ts.LocalMST.HasEdge(ts.Id, target) {
		return fmt.Errorf("%w: %d", ErrInvalidTarget, target)
	}
	ts.HoldsPen = false
	send(ts, r, target, target, target)
	r.Log(PenHandedOff, "handed the pen over", "to", target)
	return nil
}
