package state

import (
	"context"
	"fmt"
)

// Dispatch Dispatches the function to run on the main thread without waiting for it to complete
func (e *Env) Dispatch(fun func(*State) error) {
	defer func() {
		if r := recover(); r != nil {
			e.Cancel(fmt.Errorf("panic: %v", r))
		}
	}()
	select {
	case e.DispatchChannel <- fun:
	case <-e.Context.Done():
	}
}

// DispatchWait Dispatches the function to run on the main thread and wait for it to complete.
// The error returned by fun goes back to the caller and does not stop the node.
func (e *Env) DispatchWait(fun func(*State) (any, error)) (any, error) {
	ret := make(chan Pair[any, error], 1)
	e.Dispatch(func(s *State) error {
		res, err := fun(s)
		ret <- Pair[any, error]{res, err}
		return nil
	})
	select {
	case res := <-ret:
		return res.V1, res.V2
	case <-e.Context.Done():
		return nil, context.Cause(e.Context)
	}
}
