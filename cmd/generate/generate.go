// Package generate implements the `tilegen generate` subcommand, wrapping
// pkg/tilegen.Generate against a JSON tilemap.MemoryGrid, grounded on the
// teacher's own generate command: flag-driven parameters, common.Info/
// common.Verbose logging, a single call into the library, then persistence.
package generate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loomward/tilegen/pkg/common"
	"github.com/loomward/tilegen/pkg/connectivity"
	"github.com/loomward/tilegen/pkg/model"
	"github.com/loomward/tilegen/pkg/tilegen"
	"github.com/loomward/tilegen/pkg/tilegen/config"
	"github.com/loomward/tilegen/pkg/tilemap"
)

var (
	generatorPath string
	regionFlag    string
	temperature   float64
	forceful      bool
	seedFlag      int64
	seedSet       bool
	inFlag        string
	outFlag       string
	enforceBorder string
)

// GenerateCmd fills a region using a trained generator.
var GenerateCmd = &cobra.Command{
	Use:     "generate",
	Aliases: []string{"gen", "g"},
	Short:   "Generate a tilemap region from a trained generator",
	Long: `Generate loads a trained generator and runs the CSP solver over the
requested region, optionally seeding it with preexisting tiles from --in.

Examples:
  tilegen generate --generator generator.json --region 10x10 --out out.json
  tilegen generate --generator generator.json --region 10x10 --temperature 0 --forceful --seed 42 --out out.json
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		gen, err := tilegen.Load(generatorPath)
		if err != nil {
			return fmt.Errorf("loading generator %s: %w", generatorPath, err)
		}
		common.Verbose("Loaded generator with %d unique tiles", gen.Tiles.Len())

		w, h, err := parseRegion(regionFlag)
		if err != nil {
			return fmt.Errorf("invalid --region: %w", err)
		}
		region := model.Region{Width: w, Height: h}

		var out *tilemap.MemoryGrid
		if inFlag != "" {
			out, err = tilemap.LoadGrid(inFlag)
			if err != nil {
				return fmt.Errorf("loading --in %s: %w", inFlag, err)
			}
		} else {
			out = tilemap.NewMemoryGrid(w, h, gen.Tiles.LayerCount())
		}

		cfg := config.GenerateConfig{
			Temperature:               temperature,
			Forceful:                  forceful,
			EnforceBorderConnectivity: parseBorderFlags(enforceBorder),
		}
		if seedSet {
			s := seedFlag
			cfg.Seed = &s
		}

		common.Info("Generating %dx%d region (temperature=%.2f forceful=%v)...", w, h, temperature, forceful)
		if err := tilegen.Generate(gen, out, region, cfg); err != nil {
			return fmt.Errorf("generation failed: %w", err)
		}

		if err := tilemap.SaveGrid(outFlag, out); err != nil {
			return fmt.Errorf("saving %s: %w", outFlag, err)
		}
		common.Info("Wrote generated region to %s", outFlag)
		return nil
	},
}

// parseRegion parses a "WxH" region spec, e.g. "10x10".
func parseRegion(s string) (int, int, error) {
	parts := strings.SplitN(strings.ToLower(s), "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected WxH, got %q", s)
	}
	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("bad width: %w", err)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("bad height: %w", err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("width and height must be positive, got %dx%d", w, h)
	}
	return w, h, nil
}

func parseBorderFlags(s string) connectivity.BorderFlags {
	var f connectivity.BorderFlags
	for _, part := range strings.Split(s, ",") {
		switch strings.TrimSpace(strings.ToLower(part)) {
		case "top":
			f.Top = true
		case "bottom":
			f.Bottom = true
		case "left":
			f.Left = true
		case "right":
			f.Right = true
		}
	}
	return f
}

func init() {
	GenerateCmd.Flags().StringVarP(&generatorPath, "generator", "g", "generator.json", "path to a trained generator")
	GenerateCmd.Flags().StringVarP(&regionFlag, "region", "r", "10x10", "region size as WxH, e.g. 10x10")
	GenerateCmd.Flags().Float64VarP(&temperature, "temperature", "t", 0, "softmax temperature for the predictor's preview pass")
	GenerateCmd.Flags().BoolVar(&forceful, "forceful", false, "discard preexisting-tile constraints instead of failing when they are unsatisfiable")
	GenerateCmd.Flags().Int64Var(&seedFlag, "seed", 0, "RNG seed (omit for a time-based seed)")
	GenerateCmd.Flags().StringVar(&inFlag, "in", "", "optional input JSON grid seeding preexisting tiles")
	GenerateCmd.Flags().StringVarP(&outFlag, "out", "o", "out.json", "output path for the generated grid")
	GenerateCmd.Flags().StringVar(&enforceBorder, "enforce-border", "", "comma-separated borders to enforce during solving: top,bottom,left,right")
	GenerateCmd.PreRun = func(cmd *cobra.Command, args []string) {
		seedSet = cmd.Flags().Changed("seed")
	}
}

// GetCommand returns the generate command for registration with root.
func GetCommand() *cobra.Command {
	return GenerateCmd
}
