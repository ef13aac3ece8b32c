package protocol

import (
	"errors"
	"fmt"

	"github.com/encodeous/spantree/state"
)

type MessageType uint8

const (
	NeighbourDiscovery MessageType = iota + 1
	LocalMST
)

func (t MessageType) String() string {
	switch t {
	case NeighbourDiscovery:
		return "NEIGHBOR_DISCOVERY"
	case LocalMST:
		return "LOCAL_MST"
	default:
		return fmt.Sprintf("MessageType(%d)", uint8(t))
	}
}

// Broadcast addresses every node on the other end of a link
const Broadcast = state.NoNode

var (
	ErrMalformed       = errors.New("malformed message")
	ErrSnapshotAndDiff = errors.New("tree update must carry exactly one of snapshot or diff")
)

type Header struct {
	Type    MessageType
	From    state.NodeId
	To      state.NodeId
	NextHop state.NodeId
}

func (h Header) String() string {
	return fmt.Sprintf("%s %d->%d via %d", h.Type, h.From, h.To, h.NextHop)
}

// Payload is either *Discovery or *TreeUpdate
type Payload interface {
	isPayload()
}

type Message struct {
	Header  Header
	Payload Payload
}

// Discovery is both the probe and its reply. The channel layer fills Weight
// on the reply with the weight of the link it travelled on.
type Discovery struct {
	Weight uint32
}

// TreeUpdate carries a node's view of the spanning tree, either as a full
// Snapshot or as a Diff when Compressed is set.
type TreeUpdate struct {
	Snapshot   *state.Tree
	Diff       *state.Diff
	Compressed bool
	Manual     bool
	// NextActivation is the node that should extend the tree next, or NoNode
	NextActivation state.NodeId
}

func (*Discovery) isPayload()  {}
func (*TreeUpdate) isPayload() {}

func (u *TreeUpdate) Validate() error {
	if (u.Snapshot == nil) == (u.Diff == nil) {
		return ErrSnapshotAndDiff
	}
	if u.Compressed != (u.Diff != nil) {
		return fmt.Errorf("%w: compressed flag does not match payload", ErrMalformed)
	}
	return nil
}

// View reconstructs the tree carried by the update
func (u *TreeUpdate) View() *state.Tree {
	if u.Diff != nil {
		return u.Diff.Replay()
	}
	return u.Snapshot.Clone()
}

func (m *Message) Validate() error {
	switch p := m.Payload.(type) {
	case *Discovery:
		if m.Header.Type != NeighbourDiscovery {
			return fmt.Errorf("%w: discovery payload with type %s", ErrMalformed, m.Header.Type)
		}
	case *TreeUpdate:
		if m.Header.Type != LocalMST {
			return fmt.Errorf("%w: tree payload with type %s", ErrMalformed, m.Header.Type)
		}
		return p.Validate()
	default:
		return fmt.Errorf("%w: missing payload", ErrMalformed)
	}
	return nil
}
