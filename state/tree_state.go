package state

// TreeState is the spanning tree engine state of a single node
type TreeState struct {
	Id         NodeId
	Neighbours NeighbourTable
	// LocalMST is nil until the node joins a tree
	LocalMST *Tree
	// Pending accumulates every mutation since the last full synchronization
	Pending    *Diff
	Manual     bool
	Compressed bool
	HoldsPen   bool
}

func NewTreeState(id NodeId) *TreeState {
	return &TreeState{
		Id:      id,
		Pending: NewDiff(),
	}
}

func (ts *TreeState) Joined() bool {
	return ts.LocalMST != nil
}

// Activated reports whether this node is activated in its own view
func (ts *TreeState) Activated() bool {
	return ts.LocalMST.IsActivated(ts.Id)
}

// ResetPending starts a new accumulation window, used on full synchronization
func (ts *TreeState) ResetPending() {
	ts.Pending = NewDiff()
}
