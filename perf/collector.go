package perf

import (
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Collector gathers the statistics of a single run. Every method is safe to
// call on a nil Collector, which records nothing.
type Collector struct {
	registry   *prometheus.Registry
	messages   *prometheus.CounterVec
	bytes      *prometheus.CounterVec
	drops      *prometheus.CounterVec
	views      prometheus.Counter
	extensions prometheus.Counter

	mu      sync.RWMutex
	closed  bool
	results chan string
	done    chan struct{}
}

// Totals is a snapshot of the counters of a Collector
type Totals struct {
	Messages    uint64
	Bytes       uint64
	Drops       uint64
	ViewChanges uint64
	Extensions  uint64
}

func (t Totals) String() string {
	return fmt.Sprintf("messages=%d bytes=%d drops=%d view_changes=%d extensions=%d",
		t.Messages, t.Bytes, t.Drops, t.ViewChanges, t.Extensions)
}

// NewCollector creates a Collector labelled with runId. Result lines are written
// to out by a single goroutine until Close; out may be nil.
func NewCollector(runId string, out io.Writer, bufSize int) *Collector {
	labels := prometheus.Labels{"run": runId}
	c := &Collector{
		registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "spantree",
			Name:        "messages_sent_total",
			Help:        "Messages handed to the link layer, by type.",
			ConstLabels: labels,
		}, []string{"type"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "spantree",
			Name:        "bytes_sent_total",
			Help:        "Encoded bytes handed to the link layer, by type.",
			ConstLabels: labels,
		}, []string{"type"}),
		drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "spantree",
			Name:        "messages_dropped_total",
			Help:        "Inbound frames that were discarded, by reason.",
			ConstLabels: labels,
		}, []string{"reason"}),
		views: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "spantree",
			Name:        "view_changes_total",
			Help:        "Changes of any local spanning tree view.",
			ConstLabels: labels,
		}),
		extensions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "spantree",
			Name:        "tree_extensions_total",
			Help:        "Nodes that extended the spanning tree.",
			ConstLabels: labels,
		}),
		results: make(chan string, bufSize),
		done:    make(chan struct{}),
	}
	c.registry.MustRegister(c.messages, c.bytes, c.drops, c.views, c.extensions)
	go c.writer(out)
	return c
}

func (c *Collector) writer(out io.Writer) {
	defer close(c.done)
	for line := range c.results {
		if out == nil {
			continue
		}
		_, _ = fmt.Fprintln(out, line)
	}
}

func (c *Collector) MessageSent(typ string, n int) {
	if c == nil {
		return
	}
	c.messages.WithLabelValues(typ).Inc()
	c.bytes.WithLabelValues(typ).Add(float64(n))
	SentFramesPerSecond.Add(1)
	SentBytesPerSecond.Add(float64(n))
}

func (c *Collector) MessageDropped(reason string) {
	if c == nil {
		return
	}
	c.drops.WithLabelValues(reason).Inc()
}

// ViewChanged records a change of some node's view, extended is set when the node activated itself
func (c *Collector) ViewChanged(extended bool) {
	if c == nil {
		return
	}
	c.views.Inc()
	ViewChangesPerSecond.Add(1)
	if extended {
		c.extensions.Inc()
	}
}

// Result queues a line for the result writer. Lines after Close are discarded.
func (c *Collector) Result(line string) {
	if c == nil {
		return
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	c.results <- line
}

func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Totals() Totals {
	var t Totals
	if c == nil {
		return t
	}
	t.Messages = sumVec(c.messages)
	t.Bytes = sumVec(c.bytes)
	t.Drops = sumVec(c.drops)
	t.ViewChanges = counterValue(c.views)
	t.Extensions = counterValue(c.extensions)
	return t
}

// Close flushes pending result lines and stops the writer
func (c *Collector) Close() {
	if c == nil {
		return
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.results)
	c.mu.Unlock()
	<-c.done
}

func counterValue(m prometheus.Metric) uint64 {
	var pb dto.Metric
	if err := m.Write(&pb); err != nil {
		return 0
	}
	return uint64(pb.GetCounter().GetValue())
}

func sumVec(v *prometheus.CounterVec) uint64 {
	ch := make(chan prometheus.Metric)
	go func() {
		v.Collect(ch)
		close(ch)
	}()
	total := uint64(0)
	for m := range ch {
		total += counterValue(m)
	}
	return total
}
