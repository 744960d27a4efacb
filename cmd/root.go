package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/loomward/tilegen/cmd/generate"
	"github.com/loomward/tilegen/cmd/inspect"
	"github.com/loomward/tilegen/cmd/train"
	"github.com/loomward/tilegen/cmd/validate"
	"github.com/loomward/tilegen/pkg/common"
)

var (
	// Global flags
	verbose    bool
	workingDir string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "tilegen",
	Short: "Train and run a learned tile-adjacency generator",
	Long: `tilegen trains a tile-adjacency generator from example maps and uses it
to fill new regions with a constraint-satisfying, learned-plausible tiling.

It provides commands for:
  - Training a generator from example maps (train)
  - Generating new regions from a trained generator (generate)
  - Inspecting a trained generator's learned structure (inspect)
  - Validating a generated map against its generator (validate)`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		common.VerboseEnabled = verbose
		if workingDir != "" {
			common.Verbose("Changing working directory to: %s", workingDir)
			if err := os.Chdir(workingDir); err != nil {
				return err
			}
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output for debugging")
	rootCmd.PersistentFlags().StringVarP(&workingDir, "working-dir", "w", "", "working directory for example/generator paths (default: current directory)")

	rootCmd.AddCommand(train.GetCommand())
	rootCmd.AddCommand(generate.GetCommand())
	rootCmd.AddCommand(inspect.GetCommand())
	rootCmd.AddCommand(validate.GetCommand())
}
