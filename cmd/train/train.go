// Package train implements the `tilegen train` subcommand, which wraps
// pkg/tilegen.Build over a directory of example JSON grids and saves the
// resulting generator, reporting progress via pkg/ui.Spinner when not
// verbose, exactly as the teacher's generation commands report progress
// with common.Verbose line-logging under -v.
package train

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/loomward/tilegen/pkg/builder"
	"github.com/loomward/tilegen/pkg/common"
	"github.com/loomward/tilegen/pkg/connectivity"
	"github.com/loomward/tilegen/pkg/tilegen"
	"github.com/loomward/tilegen/pkg/tilegen/config"
	"github.com/loomward/tilegen/pkg/tilemap"
	"github.com/loomward/tilegen/pkg/ui"
)

var (
	examplesDir  string
	radius       int
	modeFlag     string
	epochs       int
	lrStart      float64
	lrEnd        float64
	outPath      string
	inPath       string
	trackBorders string
	ackBounds    string
	emptyIsTile  bool
	continueFlag bool
	overwrite    bool
	seed         int64
)

// TrainCmd trains a generator from a directory of example maps.
var TrainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a generator from a directory of example maps",
	Long: `Train ingests every JSON grid in --examples, builds the unique-tile and
connectivity tables, and trains the weight tensor for the requested number
of epochs.

Examples:
  tilegen train --examples ./examples --radius 1 --mode four --epochs 2000 --out generator.json
  tilegen train --examples ./examples --epochs 500 --in generator.json --continue
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, ok := connectivity.ParseMode(modeFlag)
		if !ok {
			return fmt.Errorf("unknown --mode %q (want four, eight, or hex)", modeFlag)
		}
		if continueFlag && overwrite {
			return fmt.Errorf("--continue and --overwrite are mutually exclusive")
		}

		examples, err := loadExamples(examplesDir)
		if err != nil {
			return fmt.Errorf("loading examples: %w", err)
		}
		common.Verbose("Loaded %d example map(s) from %s", len(examples), examplesDir)

		var existing *tilegen.Generator
		buildMode := builder.FreshFresh
		switch {
		case continueFlag:
			buildMode = builder.Continue
		case overwrite:
			buildMode = builder.FreshOverwrite
		}
		if buildMode != builder.FreshFresh {
			if inPath == "" {
				return fmt.Errorf("--continue/--overwrite require --in pointing at an existing generator")
			}
			existing, err = tilegen.Load(inPath)
			if err != nil {
				return fmt.Errorf("loading existing generator %s: %w", inPath, err)
			}
		}

		cfg := config.BuildConfig{
			Radius:               radius,
			Mode:                 mode,
			TrackedBorders:       parseBorderFlags(trackBorders),
			AcknowledgeBounds:    parseBorderFlags(ackBounds),
			InterpretEmptyAsTile: emptyIsTile,
			LRStart:              lrStart,
			LREnd:                lrEnd,
			Epochs:               epochs,
			BuildMode:            buildMode,
			Seed:                 seed,
		}

		common.Info("Training %s connectivity, radius %d, %d epochs...", mode, radius, epochs)

		h, err := tilegen.Build(examples, cfg, existing)
		if err != nil {
			return fmt.Errorf("starting build: %w", err)
		}

		if common.VerboseEnabled {
			pollVerbose(h)
		} else {
			pollSpinner(h)
		}

		if err := h.Wait(); err != nil {
			return fmt.Errorf("training failed: %w", err)
		}

		gen := h.Generator()
		if err := tilegen.Save(outPath, gen); err != nil {
			return fmt.Errorf("saving generator to %s: %w", outPath, err)
		}
		common.Info("Saved trained generator to %s (%d unique tiles, %d epochs)", outPath, gen.Tiles.Len(), gen.Weights.Epochs)
		return nil
	},
}

func pollSpinner(h *tilegen.BuildHandle) {
	s := ui.NewSpinner("training...")
	s.Start()
	defer s.Stop()
	for {
		p := h.Progress()
		s.UpdateMessage("epoch %d/%d loss=%.4f avg20=%.4f lr=%.4f", p.Epoch, p.TotalEpochs, p.LossLast, p.LossAvg20, p.LearningRate)
		if p.State != builder.InProgress && p.State != builder.None {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func pollVerbose(h *tilegen.BuildHandle) {
	for {
		p := h.Progress()
		common.Verbose("epoch %d/%d loss=%.4f avg20=%.4f lr=%.4f state=%s", p.Epoch, p.TotalEpochs, p.LossLast, p.LossAvg20, p.LearningRate, p.State)
		if p.State != builder.InProgress && p.State != builder.None {
			return
		}
		time.Sleep(250 * time.Millisecond)
	}
}

// loadExamples reads every *.json file in dir as a tilemap.MemoryGrid, each
// given equal commonality.
func loadExamples(dir string) ([]builder.ExampleMap, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	examples := make([]builder.ExampleMap, 0, len(names))
	for _, name := range names {
		grid, err := tilemap.LoadGrid(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		examples = append(examples, builder.ExampleMap{
			Adapter:     grid,
			Region:      grid.Region(),
			Commonality: 1,
		})
	}
	return examples, nil
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
	TrainCmd.Flags().StringVarP(&examplesDir, "examples", "e", "", "directory of example JSON grids (required)")
	TrainCmd.Flags().IntVar(&radius, "radius", 1, "predictor neighborhood radius")
	TrainCmd.Flags().StringVarP(&modeFlag, "mode", "m", "four", "connectivity mode: four, eight, or hex")
	TrainCmd.Flags().IntVar(&epochs, "epochs", 2000, "number of training epochs")
	TrainCmd.Flags().Float64Var(&lrStart, "lr-start", 0.5, "starting learning rate")
	TrainCmd.Flags().Float64Var(&lrEnd, "lr-end", 0.01, "ending learning rate")
	TrainCmd.Flags().StringVarP(&outPath, "out", "o", "generator.json", "output path for the trained generator")
	TrainCmd.Flags().StringVar(&inPath, "in", "", "existing generator to continue training or overwrite")
	TrainCmd.Flags().StringVar(&trackBorders, "track-borders", "", "comma-separated borders to track during ingest: top,bottom,left,right")
	TrainCmd.Flags().StringVar(&ackBounds, "acknowledge-bounds", "", "comma-separated borders the predictor should acknowledge")
	TrainCmd.Flags().BoolVar(&emptyIsTile, "empty-is-tile", false, "treat the empty cell as an interned tile rather than skipping it")
	TrainCmd.Flags().BoolVar(&continueFlag, "continue", false, "resume training an existing generator (requires --in)")
	TrainCmd.Flags().BoolVar(&overwrite, "overwrite", false, "keep an existing generator's tiles/connectivity but retrain weights from scratch (requires --in)")
	TrainCmd.Flags().Int64Var(&seed, "seed", 1, "RNG seed for example sampling during training")
	_ = TrainCmd.MarkFlagRequired("examples")
}

// GetCommand returns the train command for registration with root.
func GetCommand() *cobra.Command {
	return TrainCmd
}
