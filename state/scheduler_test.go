package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	dispatchChan := make(chan func(*State) error, 10)
	state := SampleState(1, dispatchChan)
	state.Context = ctx
	state.Cancel = cancel

	var called bool

	go func() {
		select {
		case f := <-dispatchChan:
			if err := f(state); err != nil {
				t.Errorf("Dispatch error: %v", err)
			}
		case <-time.After(100 * time.Millisecond):
			t.Error("Timed out waiting for dispatched function")
		}
	}()

	state.Dispatch(func(s *State) error {
		called = true
		return nil
	})

	time.Sleep(150 * time.Millisecond)

	if !called {
		t.Fatal("Dispatch function was not executed")
	}
}

func TestDispatch_AfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	// unbuffered and never drained
	env := &Env{
		DispatchChannel: make(chan func(*State) error),
		Context:         ctx,
		Cancel:          cancel,
	}
	cancel(errors.New("stopped"))

	done := make(chan struct{})
	go func() {
		env.Dispatch(func(s *State) error { return nil })
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on a stopped node")
	}
}

func TestDispatchWait_ReturnsCallerError(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	dispatchChan := make(chan func(*State) error, 10)
	state := SampleState(2, dispatchChan)
	state.Context = ctx
	state.Cancel = cancel

	go func() {
		for f := range dispatchChan {
			if err := f(state); err != nil {
				cancel(err)
			}
		}
	}()
	defer close(dispatchChan)

	errRejected := errors.New("rejected")
	_, err := state.DispatchWait(func(s *State) (any, error) {
		return nil, errRejected
	})
	assert.ErrorIs(t, err, errRejected)
	// the node is still live
	require.NoError(t, ctx.Err())

	res, err := state.DispatchWait(func(s *State) (any, error) {
		return s.Id, nil
	})
	require.NoError(t, err)
	assert.Equal(t, NodeId(2), res)
}

func TestDispatchWait_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	env := &Env{
		DispatchChannel: make(chan func(*State) error),
		Context:         ctx,
		Cancel:          cancel,
	}
	cause := errors.New("node failed")
	cancel(cause)
	_, err := env.DispatchWait(func(s *State) (any, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, cause)
}
