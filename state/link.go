package state

import "errors"

var ErrNoLink = errors.New("no link between nodes")

// LinkLayer is the channel layer a node transmits on. Implementations must
// never block the caller, and must preserve per-link send order.
type LinkLayer interface {
	// Broadcast sends pkt on every link of from
	Broadcast(from NodeId, pkt []byte) error
	// Send sends pkt on the link between from and to, or fails with ErrNoLink
	Send(from, to NodeId, pkt []byte) error
}
