package state

import (
	"math"
	"math/rand/v2"
)

// RandomGeometric places n nodes uniformly in the unit square and links every
// pair at euclidean distance <= radius. Link weights are drawn uniformly from
// [1, n]. The same seed always produces the same topology.
func RandomGeometric(n int, radius float64, seed uint64) *TopologyCfg {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	type point struct{ x, y float64 }
	pos := make([]point, n)
	cfg := &TopologyCfg{}
	for i := range n {
		pos[i] = point{rng.Float64(), rng.Float64()}
		cfg.Nodes = append(cfg.Nodes, NodeId(i))
	}
	for i := range n {
		for j := i + 1; j < n; j++ {
			if math.Hypot(pos[i].x-pos[j].x, pos[i].y-pos[j].y) <= radius {
				cfg.Links = append(cfg.Links, LinkCfg{
					A:      NodeId(i),
					B:      NodeId(j),
					Weight: uint32(rng.IntN(n)) + 1,
				})
			}
		}
	}
	return cfg
}
