package network

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/encodeous/spantree/state"
)

type frame struct {
	seq uint64
	pkt []byte
	due time.Time
}

// VirtualLink is one direction of a weighted link. Frames are delivered in the
// order they were sent, after Latency plus up to Jitter of extra delay.
type VirtualLink struct {
	From, To      state.NodeId
	Weight        uint32
	Latency       time.Duration
	Jitter        time.Duration
	DuplicateRate float64

	mu      sync.Mutex
	queue   []frame
	seq     uint64
	lastDue time.Time
	rng     *rand.Rand
	signal  chan struct{}
}

func NewVirtualLink(from, to state.NodeId, weight uint32) *VirtualLink {
	return &VirtualLink{
		From:   from,
		To:     to,
		Weight: weight,
		rng:    rand.New(rand.NewPCG(uint64(from), uint64(to))),
		signal: make(chan struct{}, 1),
	}
}

func (v *VirtualLink) WithLatency(lat, jitter time.Duration) *VirtualLink {
	v.Latency = lat
	v.Jitter = jitter
	return v
}

func (v *VirtualLink) WithDuplicates(rate float64) *VirtualLink {
	v.DuplicateRate = rate
	return v
}

// enqueue appends pkt to the queue and returns the number of frames queued,
// which is 2 when the frame is duplicated
func (v *VirtualLink) enqueue(pkt []byte) int {
	v.mu.Lock()
	v.seq++
	f := frame{seq: v.seq, pkt: pkt}
	if v.Latency != 0 || v.Jitter != 0 {
		f.due = time.Now().Add(v.Latency)
		if v.Jitter > 0 {
			f.due = f.due.Add(time.Duration(v.rng.Int64N(int64(v.Jitter))))
		}
		if f.due.Before(v.lastDue) {
			f.due = v.lastDue
		}
		v.lastDue = f.due
	}
	v.queue = append(v.queue, f)
	cnt := 1
	if v.DuplicateRate > 0 && v.rng.Float64() < v.DuplicateRate {
		v.queue = append(v.queue, f)
		cnt++
	}
	v.mu.Unlock()

	select {
	case v.signal <- struct{}{}:
	default:
	}
	return cnt
}

func (v *VirtualLink) pop() (frame, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.queue) == 0 {
		return frame{}, false
	}
	f := v.queue[0]
	v.queue[0] = frame{}
	v.queue = v.queue[1:]
	return f, true
}

// pump delivers queued frames until ctx is done
func (v *VirtualLink) pump(ctx context.Context, deliver func(f frame)) error {
	for {
		f, ok := v.pop()
		if !ok {
			select {
			case <-v.signal:
				continue
			case <-ctx.Done():
				return nil
			}
		}
		if wait := time.Until(f.due); !f.due.IsZero() && wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil
			}
		}
		deliver(f)
	}
}
