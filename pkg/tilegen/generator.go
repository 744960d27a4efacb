// Package tilegen composes the IndexSet, uniqueness map, connectivity
// table, weights tensor, predictor engine, builder, and CSP solver behind
// the two exposed surfaces named in §6: Build (train) and Generate
// (infer). Grounded on the teacher's pkg/generator (api.go, generator.go),
// which plays the identical composition role over its own
// placer/solver/validator stack — a single type a host CLI or embedding
// program constructs and drives, without needing to know any of the
// packages it composes.
package tilegen

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loomward/tilegen/pkg/builder"
	"github.com/loomward/tilegen/pkg/connectivity"
	"github.com/loomward/tilegen/pkg/csp"
	"github.com/loomward/tilegen/pkg/engine"
	"github.com/loomward/tilegen/pkg/model"
	"github.com/loomward/tilegen/pkg/serialize"
	"github.com/loomward/tilegen/pkg/tilegen/config"
	"github.com/loomward/tilegen/pkg/tilemap"
	"github.com/loomward/tilegen/pkg/tileset"
	"github.com/loomward/tilegen/pkg/weights"
)

// Generator is the composed, persistable generator state: the uniqueness
// map, the learned connectivity table, the weight tensor, and the
// neighborhood radius/border-acknowledgement flags needed to reconstruct a
// PredictorEngine. It is the type pkg/serialize saves and loads.
type Generator = serialize.Generator

// Load reads a previously-saved generator from path.
func Load(path string) (*Generator, error) {
	return serialize.Load(path)
}

// Save writes gen to path as the JSON document described in §3.
func Save(path string, gen *Generator) error {
	return serialize.Save(path, gen)
}

// BuildProgress extends builder.Progress with the wall-clock bounds named
// in §6's polled-progress tuple; the core builder package never reads the
// clock itself (see its own doc comments), so BuildHandle stamps these.
type BuildProgress struct {
	builder.Progress
	StartTime time.Time
	EndTime   time.Time
}

// BuildHandle is the live handle to a training run started by Build. The
// epoch loop runs on its own goroutine so the caller can poll Progress and
// call CancelBuild/SaveAndQuitBuild without blocking, per §5's concrete-
// worker expansion (grounded on the teacher's pkg/batch background-job
// shape).
type BuildHandle struct {
	trainer *builder.Trainer
	tiles   *tileset.Table
	conn    *connectivity.Table
	cfg     config.BuildConfig

	start time.Time
	end   atomic.Value // time.Time once Run finishes

	mu     sync.Mutex
	runErr error
	doneCh chan struct{}
}

// Build validates examples, ingests (or reuses, per BuildMode) the
// uniqueness/connectivity tables, and starts training on a background
// goroutine, returning immediately with a handle to poll.
func Build(examples []builder.ExampleMap, cfg config.BuildConfig, existing *Generator) (*BuildHandle, error) {
	if err := builder.ValidateExamples(examples); err != nil {
		return nil, err
	}

	var tiles *tileset.Table
	var conn *connectivity.Table
	var w *weights.Weights

	switch cfg.BuildMode {
	case builder.FreshFresh:
		t, c, err := ingest(examples, cfg.Mode, cfg.TrackedBorders, cfg.InterpretEmptyAsTile)
		if err != nil {
			return nil, err
		}
		tiles, conn = t, c
	case builder.FreshOverwrite:
		if existing == nil {
			return nil, &NoExistingGeneratorError{Mode: "fresh-overwrite"}
		}
		tiles, conn = existing.Tiles, existing.Conn
	case builder.Continue:
		if existing == nil {
			return nil, &NoExistingGeneratorError{Mode: "continue"}
		}
		tiles, conn, w = existing.Tiles, existing.Conn, existing.Weights
	default:
		return nil, fmt.Errorf("tilegen: unknown build mode %v", cfg.BuildMode)
	}

	bcfg := builder.Config{
		Radius:             cfg.Radius,
		Mode:               cfg.Mode,
		Acknowledge:        cfg.AcknowledgeBounds,
		InterpretEmptyTile: cfg.InterpretEmptyAsTile,
		LRStart:            cfg.LRStart,
		LREnd:              cfg.LREnd,
		Epochs:             cfg.Epochs,
		BuildMode:          cfg.BuildMode,
	}
	tr, err := builder.New(examples, bcfg, tiles, conn, w, cfg.Seed)
	if err != nil {
		return nil, err
	}

	h := &BuildHandle{
		trainer: tr,
		tiles:   tiles,
		conn:    conn,
		cfg:     cfg,
		start:   time.Now(),
		doneCh:  make(chan struct{}),
	}
	go func() {
		runErr := tr.Run()
		h.mu.Lock()
		h.runErr = runErr
		h.mu.Unlock()
		h.end.Store(time.Now())
		close(h.doneCh)
	}()
	return h, nil
}

// Progress returns the most recent training snapshot. Safe to call
// concurrently with the background run.
func (h *BuildHandle) Progress() BuildProgress {
	end, _ := h.end.Load().(time.Time)
	return BuildProgress{Progress: h.trainer.Progress(), StartTime: h.start, EndTime: end}
}

// CancelBuild requests the training loop stop with Cancelled at the next
// epoch boundary (an epoch already running completes first); weights are
// left wherever they landed, per §5.
func (h *BuildHandle) CancelBuild() { h.trainer.Abort() }

// SaveAndQuitBuild requests the training loop finish its current epoch,
// then stop cleanly with Success.
func (h *BuildHandle) SaveAndQuitBuild() { h.trainer.SaveAndQuit() }

// Wait blocks until the background run finishes and returns its error, if
// any (a *weights.NumericFault from a NaN training step). Callers that
// only want to poll Progress need not call Wait.
func (h *BuildHandle) Wait() error {
	<-h.doneCh
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runErr
}

// Generator snapshots the handle's current state into a *Generator, usable
// immediately (e.g. after SaveAndQuit, or even mid-training for a live
// preview) since Run only ever mutates the tensor in place, never
// reallocating it.
func (h *BuildHandle) Generator() *Generator {
	return &Generator{
		Tiles:             h.tiles,
		Conn:              h.conn,
		Weights:           h.trainer.Weights(),
		Radius:            h.cfg.Radius,
		AcknowledgeBounds: h.cfg.AcknowledgeBounds,
	}
}

// Generate fills region on adapter, honoring any preexisting tiles already
// present there, per §6's runtime surface. A nil cfg.Seed draws from the
// wall clock; a non-nil seed makes the run reproducible.
func Generate(gen *Generator, adapter tilemap.Adapter, region model.Region, cfg config.GenerateConfig) error {
	if adapter.LayerCount() != gen.Tiles.LayerCount() {
		return &LayerCountMismatchError{Expected: gen.Tiles.LayerCount(), Got: adapter.LayerCount()}
	}
	if gen.Tiles.Len() == 0 {
		return EmptyUniqueTileSetError{}
	}

	var rng *rand.Rand
	if cfg.Seed != nil {
		rng = rand.New(rand.NewSource(*cfg.Seed))
	} else {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	nb := model.Neighborhood{Radius: gen.Radius}
	eng := engine.New(region, nb, gen.Conn.Mode, gen.AcknowledgeBounds, region.OriginY, gen.Weights, gen.Tiles.Len())
	preferred := eng.Preview(cfg.Temperature, rng)

	layers, err := preexistingLayers(gen, adapter, region)
	if err != nil {
		return err
	}

	res, err := csp.Solve(csp.Input{
		Region:        region,
		Mode:          gen.Conn.Mode,
		StartY:        region.OriginY,
		Conn:          gen.Conn,
		U:             gen.Tiles.Len(),
		Preferred:     preferred,
		Layers:        layers,
		EnforceBorder: cfg.EnforceBorderConnectivity,
		Forceful:      cfg.Forceful,
	})
	if err != nil {
		return err
	}

	for p, idx := range res.Assignment {
		tile := gen.Tiles.Tile(idx)
		for l, h := range tile.Layers {
			if err := adapter.WriteTile(region.OriginX+p.X, region.OriginY+p.Y, l, h); err != nil {
				return fmt.Errorf("tilegen: writing back (%d,%d) layer %d: %w", region.OriginX+p.X, region.OriginY+p.Y, l, err)
			}
		}
	}
	return nil
}

// preexistingLayers reads every layer of adapter's region once and builds
// one PreexistingLayer closure per layer, each resolving a coordinate to
// the tileset.Index of the full LayeredTile tuple already present there.
// Every layer's closure reports the same full-tuple index: this generator
// treats a preexisting cell as one already-known tile, not independently
// free per layer, which is the host shape every tilemap.Adapter in this
// codebase actually presents.
func preexistingLayers(gen *Generator, adapter tilemap.Adapter, region model.Region) ([]csp.PreexistingLayer, error) {
	layerCount := adapter.LayerCount()
	blocks := make([][][]tilemap.TileHandle, layerCount)
	for l := 0; l < layerCount; l++ {
		block, err := adapter.ReadBlock(region, l)
		if err != nil {
			return nil, fmt.Errorf("tilegen: reading preexisting layer %d: %w", l, err)
		}
		blocks[l] = block
	}

	lookup := func(p model.Point) (tileset.Index, bool) {
		tile := tileset.LayeredTile{Layers: make([]tilemap.TileHandle, layerCount)}
		any := false
		for l := 0; l < layerCount; l++ {
			if p.Y < 0 || p.Y >= len(blocks[l]) || p.X < 0 || p.X >= len(blocks[l][p.Y]) {
				continue
			}
			h := blocks[l][p.Y][p.X]
			tile.Layers[l] = h
			if h != nil {
				any = true
			}
		}
		if !any {
			return 0, false
		}
		idx, ok, err := gen.Tiles.Lookup(tile)
		if err != nil || !ok {
			return 0, false
		}
		return idx, true
	}

	layers := make([]csp.PreexistingLayer, layerCount)
	for l := range layers {
		layers[l] = lookup
	}
	return layers, nil
}
