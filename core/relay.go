package core

import (
	"fmt"

	"github.com/encodeous/spantree/perf"
	"github.com/encodeous/spantree/protocol"
	"github.com/encodeous/spantree/state"
	"github.com/jellydator/ttlcache/v3"
)

type frameKey = state.Pair[state.NodeId, uint64]

// LinkRelay encodes outgoing messages onto the link layer and decodes and
// dispatches inbound frames
type LinkRelay struct {
	*state.State
	// FrameDedup remembers the (sender, sequence number) of frames already handled
	FrameDedup *ttlcache.Cache[frameKey, struct{}]
}

func (r *LinkRelay) Init(s *state.State) error {
	s.Log.Debug("init link relay")
	r.State = s
	r.FrameDedup = ttlcache.New[frameKey, struct{}](
		ttlcache.WithTTL[frameKey, struct{}](state.FrameDedupTTL),
		ttlcache.WithDisableTouchOnHit[frameKey, struct{}](),
	)
	go r.FrameDedup.Start()
	return nil
}

func (r *LinkRelay) Cleanup(s *state.State) error {
	r.FrameDedup.Stop()
	r.State = nil
	return nil
}

func (r *LinkRelay) Send(msg *protocol.Message) error {
	pkt, err := protocol.Marshal(msg)
	if err != nil {
		return err
	}
	r.Stats.MessageSent(msg.Header.Type.String(), len(pkt))
	if msg.Header.Type == protocol.LocalMST {
		perf.UpdateSize.Add(float64(len(pkt)))
	}
	if msg.Header.NextHop == protocol.Broadcast {
		return r.Link.Broadcast(r.Id, pkt)
	}
	return r.Link.Send(r.Id, msg.Header.NextHop, pkt)
}

func checkNeigh(s *state.State, id state.NodeId) bool {
	if s.Neighbours.Has(id) {
		return true
	}
	s.Log.Warn("received packet from unknown neighbour", "from", id)
	return false
}

// Receive handles a frame that arrived on the link from the neighbour from
func (r *LinkRelay) Receive(from state.NodeId, seq uint64, pkt []byte) error {
	perf.RecvFramesPerSecond.Add(1)
	perf.RecvBytesPerSecond.Add(float64(len(pkt)))
	key := frameKey{V1: from, V2: seq}
	if r.FrameDedup.Has(key) {
		r.Log.Debug("dropped duplicate frame", "from", from, "seq", seq)
		r.Stats.MessageDropped("duplicate")
		return nil
	}
	r.FrameDedup.Set(key, struct{}{}, ttlcache.DefaultTTL)

	msg, err := protocol.Unmarshal(pkt)
	if err != nil {
		r.Log.Warn("received malformed frame", "from", from, "err", err)
		r.Stats.MessageDropped("malformed")
		return nil
	}
	if msg.Header.NextHop != r.Id && msg.Header.NextHop != protocol.Broadcast {
		r.Log.Warn("received frame for another hop", "from", from, "header", msg.Header.String())
		r.Stats.MessageDropped("misrouted")
		return nil
	}
	if msg.Header.From != from {
		r.Log.Warn("frame sender does not match link", "from", from, "header", msg.Header.String())
		r.Stats.MessageDropped("spoofed")
		return nil
	}

	switch p := msg.Payload.(type) {
	case *protocol.Discovery:
		return handleDiscovery(r.State, from, msg.Header, p)
	case *protocol.TreeUpdate:
		if !checkNeigh(r.State, from) {
			r.Stats.MessageDropped("unknown neighbour")
			return nil
		}
		return Get[*TreeEngine](r.State).HandleUpdate(from, p)
	default:
		return fmt.Errorf("unhandled payload %T", p)
	}
}
