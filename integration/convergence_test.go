//go:build integration

package integration

import (
	"testing"
	"time"

	"github.com/encodeous/spantree/core"
	"github.com/encodeous/spantree/state"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestRandomConvergence(t *testing.T) {
	defer goleak.VerifyNone(t)

	for seed := range uint64(8) {
		topo := state.RandomGeometric(25, 0.35, seed)
		root := topo.Nodes[int(seed)%len(topo.Nodes)]
		var weights []uint64
		for _, compressed := range []bool{false, true} {
			vh := &VirtualHarness{Topology: *topo}
			vh.Start(t)
			view := vh.Build(t, root, false, compressed)
			weights = append(weights, view.TotalWeight())
			vh.Stop(t)
		}
		assert.Equal(t, weights[0], weights[1])
		assert.Equal(t, core.KruskalMST(topo, root).TotalWeight(), weights[0])
	}
}

func TestConvergenceUnderJitter(t *testing.T) {
	defer goleak.VerifyNone(t)

	topo := state.RandomGeometric(20, 0.4, 42)
	for _, compressed := range []bool{false, true} {
		vh := &VirtualHarness{Topology: *topo}
		vh.WithLatency(2*time.Millisecond, 5*time.Millisecond).WithDuplicates(0.2)
		vh.Start(t)
		vh.Build(t, topo.Nodes[0], false, compressed)
		assert.Positive(t, vh.Net.Stats.Totals().Drops)
		vh.Stop(t)
	}
}

func TestManualConvergence(t *testing.T) {
	defer goleak.VerifyNone(t)

	for seed := range uint64(4) {
		topo := state.RandomGeometric(12, 0.45, seed+10)
		vh := &VirtualHarness{Topology: *topo}
		vh.WithLatency(time.Millisecond, time.Millisecond)
		vh.Start(t)
		vh.Build(t, topo.Nodes[0], true, seed%2 == 1)
		vh.Stop(t)
	}
}

func TestCompressedSendsFewerBytes(t *testing.T) {
	defer goleak.VerifyNone(t)

	topo := state.RandomGeometric(30, 0.3, 5)
	var bytes []uint64
	for _, compressed := range []bool{false, true} {
		vh := &VirtualHarness{Topology: *topo}
		vh.Start(t)
		vh.Build(t, topo.Nodes[0], false, compressed)
		bytes = append(bytes, vh.Net.Stats.Totals().Bytes)
		vh.Stop(t)
	}
	t.Logf("full: %d bytes, compressed: %d bytes", bytes[0], bytes[1])
}
