package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/encodeous/spantree/core"
	"github.com/encodeous/spantree/network"
	"github.com/encodeous/spantree/state"
	"github.com/spf13/cobra"
)

var verifyRoot int

// verifyRun builds the tree once from root and checks every node against the reference tree
func verifyRun(ctx context.Context, topo *state.TopologyCfg, cfg state.RunCfg, root state.NodeId, out io.Writer) error {
	n, err := network.New(topo, cfg, out)
	if err != nil {
		return err
	}
	if err := n.Start(ctx); err != nil {
		_ = n.Stop()
		return err
	}
	err = func() error {
		if err := n.StartMST(root, false, cfg.Compressed); err != nil {
			return err
		}
		if err := n.WaitIdle(ctx); err != nil {
			return err
		}
		ref := core.KruskalMST(topo, root)
		trees, err := n.Snapshots()
		if err != nil {
			return err
		}
		for _, id := range ref.Nodes() {
			t := trees[id]
			if err := t.Validate(); err != nil {
				return fmt.Errorf("node %d: %w", id, err)
			}
			if t.Len() != ref.Len() || t.ActivatedCount() != ref.Len() {
				return fmt.Errorf("node %d did not span the network: %s", id, t)
			}
			if t.TotalWeight() != ref.TotalWeight() {
				return fmt.Errorf("node %d converged to weight %d, minimum is %d", id, t.TotalWeight(), ref.TotalWeight())
			}
			if !t.Equal(trees[root]) {
				return fmt.Errorf("node %d disagrees with node %d: %s", id, root, t)
			}
		}
		return nil
	}()
	if serr := n.Stop(); err == nil {
		err = serr
	}
	return err
}

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Build the tree with full snapshots and with diffs, and compare both to a reference minimum spanning tree",
	RunE: func(cmd *cobra.Command, args []string) error {
		topo, err := state.LoadTopology(state.TopologyPath)
		if err != nil {
			return err
		}
		cfg, err := loadRunCfg(cmd)
		if err != nil {
			return err
		}
		root := state.NodeId(verifyRoot)
		if !topo.HasNode(root) {
			return fmt.Errorf("node %d is not in the topology", root)
		}
		var logs io.Writer = io.Discard
		if cfg.Verbose {
			logs = os.Stderr
		}
		ref := core.KruskalMST(topo, root)
		fmt.Printf("reference: %s weight %d\n", ref, ref.TotalWeight())
		for _, compressed := range []bool{false, true} {
			cfg.Compressed = compressed
			err := verifyRun(cmd.Context(), topo, cfg, root, logs)
			mode := "full"
			if compressed {
				mode = "compressed"
			}
			if err != nil {
				return fmt.Errorf("%s mode: %w", mode, err)
			}
			fmt.Printf("%s mode: ok\n", mode)
		}
		return nil
	},
	GroupID: "st",
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	addRunFlags(verifyCmd)
	verifyCmd.Flags().IntVarP(&verifyRoot, "start", "s", 0, "Initiator node")
}
