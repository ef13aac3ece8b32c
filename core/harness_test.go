package core

import (
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/encodeous/spantree/protocol"
	"github.com/encodeous/spantree/state"
	"github.com/google/go-cmp/cmp"
)

type HarnessEvent struct {
	Message string
	Args    []any
}

func MakeEvent(msg string, args ...any) HarnessEvent {
	return HarnessEvent{
		Message: msg,
		Args:    args,
	}
}

// TreeHarness records everything the engine asks its transport to do
type TreeHarness struct {
	actions []HarnessEvent
	logs    []HarnessEvent
	updates []*protocol.TreeUpdate
}

func (h *TreeHarness) SendTreeUpdate(header protocol.Header, update *protocol.TreeUpdate) {
	h.actions = append(h.actions, MakeEvent("SEND_UPDATE", header.To, header.NextHop, update.NextActivation))
	h.updates = append(h.updates, update)
}

func (h *TreeHarness) Log(event TreeEvent, desc string, args ...any) {
	x := make([]any, 0)
	x = append(x, event)
	x = append(x, desc)
	x = append(x, args...)
	h.logs = append(h.logs, MakeEvent("LOG", x...))
}

type HarnessEvents []HarnessEvent

func (h HarnessEvents) String() string {
	out := make([]string, 0)
	for _, action := range h {
		cur := action.Message
		for _, arg := range action.Args {
			cur += " " + fmt.Sprint(arg)
		}
		out = append(out, cur)
	}
	slices.Sort(out)
	return strings.Join(out, "\n")
}

// GetActions returns and clears the recorded sends, logs are kept
func (h *TreeHarness) GetActions() HarnessEvents {
	x := h.actions
	h.actions = make([]HarnessEvent, 0)
	h.updates = nil
	return x
}

// GetLogs returns the recorded log events without clearing them
func (h *TreeHarness) GetLogs() HarnessEvents {
	return slices.Clone(h.logs)
}

func (e HarnessEvents) contains(msg string, args ...any) bool {
	for _, event := range e {
		if event.Message == msg {
			if len(event.Args) >= len(args) {
				match := true
				for i, arg := range args {
					if !cmp.Equal(event.Args[i], arg) {
						match = false
						break
					}
				}
				if match {
					return true
				}
			}
		}
	}
	return false
}

func (e HarnessEvents) AssertContains(t *testing.T, msg string, args ...any) {
	t.Helper()
	if e.contains(msg, args...) {
		return
	}
	t.Fatal("Expected event not found: ", msg, " with args: ", args, " in ", e)
}

func (e HarnessEvents) AssertNotContains(t *testing.T, msg string, args ...any) {
	t.Helper()
	if e.contains(msg, args...) {
		t.Fatal("Unexpected event found: ", msg, " with args: ", args, " in ", e)
	}
}

// MakeTreeState builds the engine state of id with the given neighbours, as (id, weight) pairs
func MakeTreeState(id state.NodeId, neighbours ...state.Neighbour) *state.TreeState {
	ts := state.NewTreeState(id)
	for _, n := range neighbours {
		ts.Neighbours.Upsert(n.Id, n.Weight)
	}
	return ts
}

func nb(id state.NodeId, weight uint32) state.Neighbour {
	return state.Neighbour{Id: id, Weight: weight}
}
