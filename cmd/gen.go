package cmd

import (
	"fmt"

	"github.com/encodeous/spantree/state"
	"github.com/spf13/cobra"
)

var (
	genNodes       = state.DefaultRandomNodes
	genRadius      = state.DefaultRandomRadius
	genSeed        = state.DefaultRandomSeed
	genInteractive bool
)

// genCmd represents the gen command
var genCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate a random geometric topology",
	Long: `Places nodes uniformly in the unit square and links every pair closer than the radius.
Link weights are drawn uniformly from [1, nodes].`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := state.TopologyPath
		if genInteractive {
			genNodes = promptDefaultInt("nodes", genNodes, 1)
			genRadius = promptDefaultFloat("radius", genRadius)
			genSeed = uint64(promptDefaultInt("seed", int(genSeed), 0))
			path = safeSaveFile(path, "topology")
		}
		if genNodes < 1 {
			return fmt.Errorf("nodes must be at least 1")
		}
		if genRadius <= 0 {
			return fmt.Errorf("radius must be positive")
		}

		topo := state.RandomGeometric(genNodes, genRadius, genSeed)
		if err := state.TopologyValidator(topo); err != nil {
			return err
		}
		if err := state.SaveTopology(path, topo); err != nil {
			return err
		}
		fmt.Printf("wrote %d nodes and %d links to %s\n", len(topo.Nodes), len(topo.Links), path)
		return nil
	},
	GroupID: "init",
}

func init() {
	rootCmd.AddCommand(genCmd)

	genCmd.Flags().IntVarP(&genNodes, "nodes", "n", genNodes, "Number of nodes")
	genCmd.Flags().Float64Var(&genRadius, "radius", genRadius, "Link radius in the unit square")
	genCmd.Flags().Uint64VarP(&genSeed, "seed", "s", genSeed, "Random seed")
	genCmd.Flags().BoolVarP(&genInteractive, "interactive", "i", false, "Prompt for every parameter")
}
