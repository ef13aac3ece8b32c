package state

import (
	"fmt"
	"testing"
)

// SampleTopology builds a ring of numNodes nodes where link i-(i+1) has weight i+1.
// If chords is true, every node is also linked to the node two hops away with a heavier weight.
func SampleTopology(t *testing.T, numNodes int, chords bool) TopologyCfg {
	t.Helper()
	cfg := TopologyCfg{}
	for idx := range numNodes {
		cfg.Nodes = append(cfg.Nodes, NodeId(idx))
	}
	for idx := range numNodes {
		cfg.Graph = append(cfg.Graph, fmt.Sprintf("%d - %d : %d", idx, (idx+1)%numNodes, idx+1))
	}
	if chords && numNodes > 4 {
		for idx := range numNodes {
			cfg.Graph = append(cfg.Graph, fmt.Sprintf("%d - %d : %d", idx, (idx+2)%numNodes, numNodes+idx+1))
		}
	}
	return cfg
}

func SampleState(id NodeId, dispatch chan<- func(*State) error) *State {
	return &State{
		Env: &Env{
			DispatchChannel: dispatch,
			NodeCfg:         NodeCfg{Id: id},
		},
		TreeState: NewTreeState(id),
		Modules:   make(map[string]NyModule),
	}
}
