package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/encodeous/spantree/network"
	"github.com/encodeous/spantree/state"
	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"
)

const maxMetricsConns = 16

var (
	runStart   int
	runTrace   bool
	runMetrics string
)

// loadRunCfg reads the run config if one is set, then applies the flags that were given explicitly
func loadRunCfg(cmd *cobra.Command) (state.RunCfg, error) {
	cfg := state.RunCfg{}
	if state.RunCfgPath != "" {
		loaded, err := state.LoadRunCfg(state.RunCfgPath)
		if err != nil {
			return cfg, err
		}
		cfg = *loaded
	}
	flags := cmd.Flags()
	if flags.Changed("verbose") {
		cfg.Verbose, _ = flags.GetBool("verbose")
	}
	if flags.Changed("latency") {
		cfg.Latency, _ = flags.GetDuration("latency")
	}
	if flags.Changed("jitter") {
		cfg.Jitter, _ = flags.GetDuration("jitter")
	}
	if flags.Changed("duplicates") {
		cfg.DuplicateRate, _ = flags.GetFloat64("duplicates")
	}
	if flags.Changed("log") {
		cfg.LogPath, _ = flags.GetString("log")
	}
	if flags.Changed("results") {
		cfg.ResultsPath, _ = flags.GetString("results")
	}
	if flags.Changed("manual") {
		cfg.Manual, _ = flags.GetBool("manual")
	}
	if flags.Changed("compressed") {
		cfg.Compressed, _ = flags.GetBool("compressed")
	}
	return cfg, state.RunCfgValidator(&cfg)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("verbose", "v", false, "Log engine events")
	cmd.Flags().Duration("latency", 0, "Per-link delivery delay")
	cmd.Flags().Duration("jitter", 0, "Random extra per-link delay, order is preserved")
	cmd.Flags().Float64("duplicates", 0, "Probability that a link delivers a frame twice")
	cmd.Flags().String("log", "", "Also write every node's log to this file")
	cmd.Flags().String("results", "", "Append the converged trees to this file")
	cmd.Flags().BoolP("manual", "m", false, "Manual hand-off by default")
	cmd.Flags().BoolP("compressed", "c", false, "Send diffs instead of full trees by default")
}

func serveMetrics(ctx context.Context, addr string, n *network.Network) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	// /debug/metrics and /debug/vars are registered by perf and expvar
	http.Handle("/metrics", n.Stats.Handler())
	srv := &http.Server{}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()
	go func() {
		if err := srv.Serve(netutil.LimitListener(ln, maxMetricsConns)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			n.Log.Error("metrics server failed", "err", err)
		}
	}()
	n.Log.Info("serving metrics", "addr", ln.Addr().String())
	return nil
}

func traceViews(n *network.Network) {
	ch := make(chan any, state.TraceBufferSize)
	n.Trace.Register(ch)
	go func() {
		for ev := range ch {
			te := ev.(state.TraceEvent)
			fmt.Printf("[trace] %d: %s\n", te.Node, te.Tree)
		}
	}()
}

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulated network",
	Long: `Starts one node per topology node and opens an interactive console.
With --start the tree is built from the given node without the console, and the run exits once it converged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		topo, err := state.LoadTopology(state.TopologyPath)
		if err != nil {
			return err
		}
		cfg, err := loadRunCfg(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		n, err := network.New(topo, cfg, os.Stderr)
		if err != nil {
			return err
		}
		if runTrace {
			traceViews(n)
		}
		if runMetrics != "" {
			if err := serveMetrics(ctx, runMetrics, n); err != nil {
				_ = n.Stop()
				return err
			}
		}
		if err := n.Start(ctx); err != nil {
			_ = n.Stop()
			return err
		}

		console := &Console{
			Net:        n,
			Out:        os.Stdout,
			Manual:     cfg.Manual,
			Compressed: cfg.Compressed,
		}
		if cmd.Flags().Changed("start") {
			_, err = console.Exec(ctx, fmt.Sprintf("m -s %d", runStart))
			if err == nil {
				_, err = console.Exec(ctx, "n -w -a")
			}
			for _, id := range n.Nodes() {
				if err != nil {
					break
				}
				err = console.tree([]string{id.String()})
			}
			fmt.Println(n.Stats.Totals())
		} else {
			err = console.Run(ctx, os.Stdin)
		}
		return errors.Join(err, n.Stop())
	},
	GroupID: "st",
}

func init() {
	rootCmd.AddCommand(runCmd)
	addRunFlags(runCmd)
	runCmd.Flags().IntVarP(&runStart, "start", "s", 0, "Build the tree from this node without the console")
	runCmd.Flags().BoolVar(&runTrace, "trace", false, "Print every view change")
	runCmd.Flags().StringVar(&runMetrics, "metrics", "", "Serve prometheus metrics, expvar and dispatch histograms on this address")
}
