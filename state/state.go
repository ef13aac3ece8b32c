package state

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/dustin/go-broadcast"
	"github.com/encodeous/spantree/perf"
)

type NyModule interface {
	Init(s *State) error
	Cleanup(s *State) error
}

// State access must be done only on a single Goroutine
type State struct {
	*Env
	*TreeState
	Modules map[string]NyModule
}

// Env can be read from any Goroutine
type Env struct {
	DispatchChannel chan<- func(s *State) error
	NodeCfg
	Context context.Context
	Cancel  context.CancelCauseFunc
	Log     *slog.Logger
	Link    LinkLayer
	// Trace receives a TraceEvent after every reconciliation, may be nil
	Trace broadcast.Broadcaster
	// Stats is the run-wide collector, may be nil
	Stats    *perf.Collector
	Started  atomic.Bool
	Stopping atomic.Bool
}

// TraceEvent is a snapshot of a node's view right after it reconciled
type TraceEvent struct {
	Node NodeId
	Tree *Tree
}
