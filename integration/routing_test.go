//go:build integration

package integration

import (
	"testing"
	"time"

	"github.com/encodeous/spantree/state"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

// TestActivationAcrossTree builds a comb: a cheap spine 0-1-2-3-4 where every
// spine node has an expensive leaf. Leaves are activated last, each one through
// several transit hops along the spine.
func TestActivationAcrossTree(t *testing.T) {
	defer goleak.VerifyNone(t)

	for _, compressed := range []bool{false, true} {
		vh := &VirtualHarness{}
		for id := range state.NodeId(10) {
			vh.NewNode(id)
		}
		for id := range state.NodeId(4) {
			vh.AddLink(id, id+1, 1)
		}
		for id := range state.NodeId(5) {
			vh.AddLink(id, id+5, uint32(10+id))
		}
		vh.WithLatency(time.Millisecond, 0)
		vh.Start(t)
		view := vh.Build(t, 4, false, compressed)
		assert.Equal(t, uint64(4+10+11+12+13+14), view.TotalWeight())
		vh.Stop(t)
	}
}
