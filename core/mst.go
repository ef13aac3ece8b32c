package core

import (
	"fmt"

	"github.com/encodeous/spantree/protocol"
	"github.com/encodeous/spantree/state"
)

// TreeEngine is the node module that runs the spanning tree algorithm
type TreeEngine struct {
	*state.State
}

func (e *TreeEngine) Init(s *state.State) error {
	s.Log.Debug("init tree engine")
	e.State = s
	s.TreeState = state.NewTreeState(s.NodeCfg.Id)
	return nil
}

func (e *TreeEngine) Cleanup(s *state.State) error {
	e.State = nil
	return nil
}

func (e *TreeEngine) SendTreeUpdate(header protocol.Header, update *protocol.TreeUpdate) {
	err := Get[*LinkRelay](e.State).Send(&protocol.Message{
		Header:  header,
		Payload: update,
	})
	if err != nil {
		e.Log(SendFailed, "failed to send tree update", "to", header.To, "via", header.NextHop, "err", err)
	}
}

func (e *TreeEngine) Log(event TreeEvent, desc string, args ...any) {
	if event.IsWarning() {
		e.Env.Log.Warn(fmt.Sprintf("%s %s", event.String(), desc), args...)
		return
	}
	e.Env.Log.Debug(fmt.Sprintf("%s %s", event.String(), desc), args...)
}

// observe runs fn and reports any change of the local view to the trace and stats
func (e *TreeEngine) observe(fn func() error) error {
	before := e.LocalMST
	wasActivated := e.TreeState.Activated()
	err := fn()
	if e.LocalMST == before {
		return err
	}
	extended := !wasActivated && e.TreeState.Activated()
	e.Stats.ViewChanged(extended)
	if e.Trace != nil {
		e.Trace.TrySubmit(state.TraceEvent{Node: e.Id, Tree: e.LocalMST.Clone()})
	}
	return err
}

func (e *TreeEngine) Start(manual, compressed bool) error {
	return e.observe(func() error {
		return StartMST(e.TreeState, e, manual, compressed)
	})
}

func (e *TreeEngine) HandleUpdate(from state.NodeId, update *protocol.TreeUpdate) error {
	return e.observe(func() error {
		return HandleLocalMST(e.TreeState, e, from, update)
	})
}

func (e *TreeEngine) HandOff(target state.NodeId) error {
	return SendLocalMSTUpdateManually(e.TreeState, e, target)
}
