package core

import (
	"github.com/encodeous/spantree/protocol"
	"github.com/encodeous/spantree/state"
)

// NeighbourDiscovery probes every link once when the node starts. The channel
// layer answers the probe on behalf of each neighbour with the link weight.
type NeighbourDiscovery struct{}

func (d *NeighbourDiscovery) Init(s *state.State) error {
	s.Log.Debug("probing neighbours")
	return Get[*LinkRelay](s).Send(&protocol.Message{
		Header: protocol.Header{
			Type:    protocol.NeighbourDiscovery,
			From:    s.Id,
			To:      protocol.Broadcast,
			NextHop: protocol.Broadcast,
		},
		Payload: &protocol.Discovery{},
	})
}

func (d *NeighbourDiscovery) Cleanup(s *state.State) error {
	return nil
}

func handleDiscovery(s *state.State, from state.NodeId, header protocol.Header, pkt *protocol.Discovery) error {
	if header.To == protocol.Broadcast {
		// probes are answered by the channel layer
		s.Log.Debug("ignoring discovery probe", "from", from)
		return nil
	}
	s.Neighbours.Upsert(from, pkt.Weight)
	s.Log.Debug("discovered neighbour", "neighbour", from, "weight", pkt.Weight, "table", s.Neighbours.String())
	return nil
}
