package cmd

import (
	"os"

	"github.com/encodeous/spantree/state"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "spantree",
	Short: "Distributed minimum spanning tree simulator",
	Long: `spantree builds a minimum spanning tree over a simulated weighted network.
Every node only knows its direct neighbours, the tree is built by handing an evolving partial tree from one activated node to the next.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "init",
		Title: "Create Topologies",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "st",
		Title: "Simulation Commands",
	})
	rootCmd.PersistentFlags().StringVarP(&state.TopologyPath, "topology", "t", state.TopologyPath, "topology config")
	rootCmd.PersistentFlags().StringVarP(&state.RunCfgPath, "run-config", "r", state.RunCfgPath, "run config, flags override its values")
}
