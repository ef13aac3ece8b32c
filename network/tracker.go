package network

import (
	"context"
	"sync"
)

// tracker counts frames that were sent but not yet processed by their receiver
type tracker struct {
	mu       sync.Mutex
	inflight int
	idle     chan struct{}
}

func newTracker() *tracker {
	idle := make(chan struct{})
	close(idle)
	return &tracker{idle: idle}
}

func (t *tracker) Add(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inflight == 0 && n > 0 {
		t.idle = make(chan struct{})
	}
	t.inflight += n
}

func (t *tracker) Done() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inflight--
	if t.inflight == 0 {
		close(t.idle)
	}
}

func (t *tracker) Inflight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inflight
}

// Wait blocks until nothing is in flight. It returns the cause of failed once
// failed is done, or ctx.Err() once ctx is done.
func (t *tracker) Wait(ctx, failed context.Context) error {
	for {
		t.mu.Lock()
		idle := t.idle
		t.mu.Unlock()
		select {
		case <-idle:
			if t.Inflight() == 0 {
				return nil
			}
		case <-failed.Done():
			return context.Cause(failed)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
