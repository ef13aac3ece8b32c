package core

import "fmt"

type TreeEvent int

// trace events

const (
	TreeCreated TreeEvent = iota
	TreeExtended
	EdgeReplaced
	ViewMerged
	StaleViewDropped
	ActivationSent
	ActivationForwarded
	StaleActivationDropped
	ViewPropagated
	PenTaken
	PenHandedOff
	TreeComplete
)

// warn events

const (
	InconsistentState TreeEvent = iota + 1000
	ModeMismatch
	SendFailed
)

func (e TreeEvent) String() string {
	switch e {
	case TreeCreated:
		return "TreeCreated"
	case TreeExtended:
		return "TreeExtended"
	case EdgeReplaced:
		return "EdgeReplaced"
	case ViewMerged:
		return "ViewMerged"
	case StaleViewDropped:
		return "StaleViewDropped"
	case ActivationSent:
		return "ActivationSent"
	case ActivationForwarded:
		return "ActivationForwarded"
	case StaleActivationDropped:
		return "StaleActivationDropped"
	case ViewPropagated:
		return "ViewPropagated"
	case PenTaken:
		return "PenTaken"
	case PenHandedOff:
		return "PenHandedOff"
	case TreeComplete:
		return "TreeComplete"
	case InconsistentState:
		return "InconsistentState"
	case ModeMismatch:
		return "ModeMismatch"
	case SendFailed:
		return "SendFailed"
	default:
		return fmt.Sprintf("TreeEvent(%d)", int(e))
	}
}

// IsWarning reports whether the event signals something unexpected
func (e TreeEvent) IsWarning() bool {
	return e >= InconsistentState
}
