// Package inspect implements the `tilegen inspect` subcommand: the unique
// tile count plus a colorized per-direction adjacency matrix, grounded on the
// teacher's cmd/render ASCII renderer and its fatih/color usage,
// generalized from "render a vine level" to "render a tile legend +
// adjacency matrix".
package inspect

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/loomward/tilegen/pkg/connectivity"
	"github.com/loomward/tilegen/pkg/tilegen"
	"github.com/loomward/tilegen/pkg/tileset"
)

var generatorPath string

// InspectCmd renders a trained generator's learned structure.
var InspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Render a trained generator's tile count and adjacency matrix",
	Long: `Inspect loads a trained generator and prints a human-readable report: the
unique tile count, the weight tensor's shape, and one colorized adjacency
matrix per supported direction. Tiles are shown by index only.

Examples:
  tilegen inspect --generator generator.json
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		gen, err := tilegen.Load(generatorPath)
		if err != nil {
			return fmt.Errorf("loading generator %s: %w", generatorPath, err)
		}
		renderReport(cmd.OutOrStdout(), gen)
		return nil
	},
}

func renderReport(w io.Writer, gen *tilegen.Generator) {
	u := gen.Tiles.Len()
	fmt.Fprintf(w, "Generator: %s\n", gen.Conn)
	fmt.Fprintf(w, "Unique tiles: %d (layers=%d)\n", u, gen.Tiles.LayerCount())
	fmt.Fprintf(w, "Weight tensor: U=%d S=%d epochs=%d\n\n", gen.Weights.U, gen.Weights.S, gen.Weights.Epochs)

	bold := color.New(color.Bold)
	yes := color.New(color.FgGreen)
	no := color.New(color.FgRed)

	for _, d := range connectivity.Directions(gen.Conn.Mode) {
		bold.Fprintf(w, "%s\n", d)
		fmt.Fprint(w, "    ")
		for b := 0; b < u; b++ {
			fmt.Fprintf(w, "%3d", b)
		}
		fmt.Fprintln(w)
		for a := 0; a < u; a++ {
			fmt.Fprintf(w, "%3d ", a)
			for b := 0; b < u; b++ {
				if gen.Conn.Get(d, tileset.Index(a), tileset.Index(b)) {
					yes.Fprint(w, "  1")
				} else {
					no.Fprint(w, "  .")
				}
			}
			fmt.Fprintln(w)
		}
		if gen.Conn.TracksBorder(d) {
			fmt.Fprint(w, "border:")
			for a := 0; a < u; a++ {
				if gen.Conn.GetBorder(d, tileset.Index(a)) {
					yes.Fprintf(w, " %d", a)
				}
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}
}

func init() {
	InspectCmd.Flags().StringVarP(&generatorPath, "generator", "g", "generator.json", "path to a trained generator")
}

// GetCommand returns the inspect command for registration with root.
func GetCommand() *cobra.Command {
	return InspectCmd
}
