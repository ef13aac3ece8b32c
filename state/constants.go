package state

import "time"

var (
	DispatchBufferSize    = 128
	SlowDispatchThreshold = time.Millisecond * 4
	FrameDedupTTL         = time.Second * 3
	TraceBufferSize       = 1024
	StatsBufferSize       = 1024

	TopologyPath = "topology.yaml"
	RunCfgPath   = ""

	// random topology defaults, matching the classic 5 node demo network
	DefaultRandomNodes  = 5
	DefaultRandomRadius = 0.5
	DefaultRandomSeed   = uint64(3)
)
