package core

import (
	"errors"

	"github.com/encodeous/spantree/state"
)

// IsFatal reports whether err means the node can no longer make progress
func IsFatal(err error) bool {
	return errors.Is(err, ErrInconsistentState) || errors.Is(err, ErrNoPath)
}

// Node is the handle used to talk to a running node from other goroutines.
// Every call runs on the node's own goroutine.
type Node struct {
	env *state.Env
}

func NewNode(env *state.Env) *Node {
	return &Node{env: env}
}

func (n *Node) Id() state.NodeId {
	return n.env.Id
}

func (n *Node) Env() *state.Env {
	return n.env
}

// call runs fun on the node; fatal errors also stop the node
func (n *Node) call(fun func(s *state.State) (any, error)) (any, error) {
	return n.env.DispatchWait(func(s *state.State) (any, error) {
		res, err := fun(s)
		if err != nil && IsFatal(err) {
			s.Cancel(err)
		}
		return res, err
	})
}

// GetNeighbours returns the neighbour table in ascending weight order
func (n *Node) GetNeighbours() ([]state.Neighbour, error) {
	res, err := n.call(func(s *state.State) (any, error) {
		return s.Neighbours.Entries(), nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]state.Neighbour), nil
}

func (n *Node) StartMST(manual, compressed bool) error {
	_, err := n.call(func(s *state.State) (any, error) {
		return nil, Get[*TreeEngine](s).Start(manual, compressed)
	})
	return err
}

func (n *Node) SendLocalMSTUpdateManually(target state.NodeId) error {
	_, err := n.call(func(s *state.State) (any, error) {
		return nil, Get[*TreeEngine](s).HandOff(target)
	})
	return err
}

// LocalMST returns a copy of the node's view, nil if it has not joined a tree
func (n *Node) LocalMST() (*state.Tree, error) {
	res, err := n.call(func(s *state.State) (any, error) {
		return s.LocalMST.Clone(), nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*state.Tree), nil
}

func (n *Node) HoldsPen() (bool, error) {
	res, err := n.call(func(s *state.State) (any, error) {
		return s.HoldsPen, nil
	})
	if err != nil {
		return false, err
	}
	return res.(bool), nil
}

// Deliver hands a frame received on the link from the neighbour from to the node.
// done is called once the node has processed the frame, or dropped it because it stopped.
func (n *Node) Deliver(from state.NodeId, seq uint64, pkt []byte, done func()) {
	select {
	case n.env.DispatchChannel <- func(s *state.State) error {
		defer done()
		return Get[*LinkRelay](s).Receive(from, seq, pkt)
	}:
	case <-n.env.Context.Done():
		done()
	}
}
