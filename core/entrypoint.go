package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"reflect"
	"runtime"
	"time"

	"github.com/dustin/go-broadcast"
	"github.com/encodeous/spantree/perf"
	"github.com/encodeous/spantree/state"
	"github.com/encodeous/tint"
	slogmulti "github.com/samber/slog-multi"
)

// Options are the per-node settings that are shared by every node of a run
type Options struct {
	LogLevel slog.Level
	// LogOutput receives the console log, os.Stderr if nil
	LogOutput io.Writer
	// LogAttrs are attached to every log line, e.g. the run id
	LogAttrs []any
	Trace    broadcast.Broadcaster
	Stats    *perf.Collector
}

func newLogger(ncfg state.NodeCfg, opts Options) (*slog.Logger, io.Closer, error) {
	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	handlers := make([]slog.Handler, 0)
	handlers = append(handlers,
		tint.NewHandler(out, &tint.Options{
			Level:        opts.LogLevel,
			AddSource:    false,
			CustomPrefix: ncfg.Id.String(),
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				if attr.Key == "time" {
					return slog.Attr{}
				}
				return attr
			},
		}))

	var closer io.Closer
	if ncfg.LogPath != "" {
		err := os.MkdirAll(path.Dir(ncfg.LogPath), 0700)
		if err != nil {
			return nil, nil, err
		}
		f, err := os.OpenFile(ncfg.LogPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
		if err != nil {
			return nil, nil, err
		}
		closer = f
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: opts.LogLevel}))
	}

	logger := slog.New(
		slogmulti.Fanout(handlers...)).With(append([]any{"node", ncfg.Id}, opts.LogAttrs...)...)
	return logger, closer, nil
}

// Start runs a node until ctx is cancelled or the node fails. ready is called with the
// node state before any module is initialized, so the caller can start delivering frames.
func Start(ctx context.Context, ncfg state.NodeCfg, link state.LinkLayer, opts Options, ready func(s *state.State)) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(context.Canceled)

	dispatch := make(chan func(env *state.State) error, state.DispatchBufferSize)

	logger, closer, err := newLogger(ncfg, opts)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	s := state.State{
		Modules: make(map[string]state.NyModule),
		Env: &state.Env{
			Context:         ctx,
			Cancel:          cancel,
			DispatchChannel: dispatch,
			NodeCfg:         ncfg,
			Log:             logger,
			Link:            link,
			Trace:           opts.Trace,
			Stats:           opts.Stats,
		},
	}
	if ready != nil {
		ready(&s)
	}

	s.Log.Debug("init modules")
	err = initModules(&s)
	if err != nil {
		Stop(&s)
		return err
	}
	s.Log.Debug("init modules complete")

	return MainLoop(&s, dispatch)
}

func initModules(s *state.State) error {
	var modules []state.NyModule
	modules = append(modules, &LinkRelay{})
	modules = append(modules, &TreeEngine{})
	modules = append(modules, &NeighbourDiscovery{})

	for _, module := range modules {
		s.Modules[reflect.TypeOf(module).String()] = module
		if err := module.Init(s); err != nil {
			return err
		}
	}
	return nil
}

// MainLoop drains the dispatch channel until the node is stopped. It returns the
// error that stopped the node, or nil when it was cancelled from the outside.
func MainLoop(s *state.State, dispatch <-chan func(*state.State) error) error {
	s.Log.Debug("started main loop")
	s.Started.Store(true)
	for {
		select {
		case fun := <-dispatch:
			start := time.Now()
			err := fun(s)
			if err != nil {
				s.Log.Error("error occurred during dispatch: ", "error", err)
				s.Cancel(err)
			}
			elapsed := time.Since(start)
			perf.DispatchLatency.Add(float64(elapsed.Microseconds()))
			if elapsed > state.SlowDispatchThreshold {
				s.Log.Warn("dispatch took a long time!", "fun", runtime.FuncForPC(reflect.ValueOf(fun).Pointer()).Name(), "elapsed", elapsed, "len", len(dispatch))
			}
		case <-s.Context.Done():
			goto endLoop
		}
	}
endLoop:
	cause := context.Cause(s.Context)
	s.Log.Debug("stopped main loop", "reason", cause.Error())
	Stop(s)
	if errors.Is(cause, context.Canceled) {
		return nil
	}
	return fmt.Errorf("node %d failed: %w", s.Id, cause)
}

func Stop(s *state.State) {
	if s.Stopping.Swap(true) {
		return // don't stop twice
	}
	s.Cancel(context.Canceled)
	s.Log.Debug("cleaning up modules")
	for moduleName, module := range s.Modules {
		err := module.Cleanup(s)
		if err != nil {
			s.Log.Error("error occurred during Stop: ", "module", moduleName, "error", err)
		}
	}
	s.Log.Debug("stopped")
}
