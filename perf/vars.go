package perf

import (
	"expvar"
	"net/http"

	"github.com/encodeous/metric"
)

var (
	DispatchLatency      = metric.NewHistogram("1m1s")
	UpdateSize           = metric.NewHistogram("10s1s")
	SentFramesPerSecond  = metric.NewCounter("10s1s")
	RecvFramesPerSecond  = metric.NewCounter("10s1s")
	SentBytesPerSecond   = metric.NewCounter("10s1s")
	RecvBytesPerSecond   = metric.NewCounter("10s1s")
	ViewChangesPerSecond = metric.NewCounter("10s1s")
)

func init() {
	http.Handle("/debug/metrics", metric.Handler(metric.Exposed))
	expvar.Publish("spantree:UpdateSize", UpdateSize)

	expvar.Publish("spantree:SentFrames/s", SentFramesPerSecond)
	expvar.Publish("spantree:RecvFrames/s", RecvFramesPerSecond)
	expvar.Publish("spantree:SentBytes/s", SentBytesPerSecond)
	expvar.Publish("spantree:RecvBytes/s", RecvBytesPerSecond)
	expvar.Publish("spantree:ViewChanges/s", ViewChangesPerSecond)
	expvar.Publish("spantree:DispatchLatency (µs)", DispatchLatency)
}
