// Package validate implements the `tilegen validate` subcommand: structural
// checks against a generated map, grounded on the teacher's cmd/validate +
// pkg/validator structural-error-list pattern ([]error, one violation per
// entry, printed then a single non-zero exit via the returned error).
package validate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomward/tilegen/pkg/common"
	"github.com/loomward/tilegen/pkg/connectivity"
	"github.com/loomward/tilegen/pkg/model"
	"github.com/loomward/tilegen/pkg/tilegen"
	"github.com/loomward/tilegen/pkg/tilemap"
	"github.com/loomward/tilegen/pkg/tileset"
)

var (
	generatorPath string
	mapPath       string
)

// ValidateCmd checks a generated map against its generator's learned
// connectivity relation.
var ValidateCmd = &cobra.Command{
	Use:     "validate",
	Aliases: []string{"val", "v"},
	Short:   "Validate a generated map against its generator",
	Long: `Validate checks a generated map for structural integrity against the
generator that produced it:

  - every non-nil cell's tile tuple is known to the generator's unique
    tile table (Testable Property 4: the ingest-populated relation must be
    a superset of what the examples implied, so a generated tile outside
    that vocabulary signals a mismatch between generator and map)
  - every in-bounds neighbor pair and enforced border satisfies the
    learned connectivity relation (Testable Property 1)

Examples:
  tilegen validate --generator generator.json --map out.json
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		gen, err := tilegen.Load(generatorPath)
		if err != nil {
			return fmt.Errorf("loading generator %s: %w", generatorPath, err)
		}
		grid, err := tilemap.LoadGrid(mapPath)
		if err != nil {
			return fmt.Errorf("loading map %s: %w", mapPath, err)
		}

		violations := Validate(gen, grid)
		if len(violations) == 0 {
			common.Info("%s is valid against %s (%d cells checked)", mapPath, generatorPath, grid.Width()*grid.Height())
			return nil
		}
		for _, v := range violations {
			common.Error("%s", v)
		}
		return fmt.Errorf("validation failed: %d violation(s)", len(violations))
	},
}

// Validate returns one error per structural violation found in grid against
// gen's learned vocabulary and connectivity relation. An empty slice means
// grid is fully consistent with gen.
func Validate(gen *tilegen.Generator, grid *tilemap.MemoryGrid) []error {
	var violations []error
	region := grid.Region()
	layerCount := grid.LayerCount()

	idx := make([]tileset.Index, region.Width*region.Height)
	present := make([]bool, region.Width*region.Height)

	for y := 0; y < region.Height; y++ {
		for x := 0; x < region.Width; x++ {
			tile := tileset.LayeredTile{Layers: make([]tilemap.TileHandle, layerCount)}
			any := false
			for l := 0; l < layerCount; l++ {
				h := grid.Get(x, y, l)
				tile.Layers[l] = h
				if h != nil {
					any = true
				}
			}
			if !any {
				continue
			}
			id, ok, err := gen.Tiles.Lookup(tile)
			if err != nil {
				violations = append(violations, fmt.Errorf("(%d,%d): %w", x, y, err))
				continue
			}
			if !ok {
				violations = append(violations, fmt.Errorf("(%d,%d): tile tuple %v is not in the generator's vocabulary", x, y, tile.Layers))
				continue
			}
			idx[y*region.Width+x] = id
			present[y*region.Width+x] = true
		}
	}

	for y := 0; y < region.Height; y++ {
		for x := 0; x < region.Width; x++ {
			if !present[y*region.Width+x] {
				continue
			}
			a := idx[y*region.Width+x]
			p := model.Point{X: x, Y: y}
			reported := map[connectivity.Direction]bool{}
			for _, d := range connectivity.Directions(gen.Conn.Mode) {
				n := connectivity.Neighbor(gen.Conn.Mode, p, d, region.OriginY)
				if region.Contains(n.X, n.Y) {
					if !present[n.Y*region.Width+n.X] {
						continue
					}
					b := idx[n.Y*region.Width+n.X]
					if !gen.Conn.Get(d, a, b) {
						violations = append(violations, fmt.Errorf("(%d,%d)-%s->(%d,%d): unlearned adjacency (tiles %d,%d)", x, y, d, n.X, n.Y, a, b))
					}
					continue
				}
				bd, ok := connectivity.BorderDirectionFor(gen.Conn.Mode, d, p.Y, region.Height)
				if ok && !reported[bd] && gen.AcknowledgeBounds.Enabled(bd) && !gen.Conn.GetBorder(bd, a) {
					reported[bd] = true
					violations = append(violations, fmt.Errorf("(%d,%d): tile %d violates enforced %s border", x, y, a, bd))
				}
			}
		}
	}
	return violations
}

func init() {
	ValidateCmd.Flags().StringVarP(&generatorPath, "generator", "g", "generator.json", "path to a trained generator")
	ValidateCmd.Flags().StringVarP(&mapPath, "map", "m", "out.json", "path to a generated JSON grid")
}

// GetCommand returns the validate command for registration with root.
func GetCommand() *cobra.Command {
	return ValidateCmd
}
