// Package builder implements the Builder (trainer): the epoch loop that
// samples example maps, drives the engine cell-by-cell in the order it
// would choose at inference, and trains the weight tensor against the true
// tile at each position. Grounded on the teacher's own background-worker
// shape (pkg/generator.Generator's long-running, cooperatively cancellable
// loop) generalized from one-shot level generation to a resumable training
// run.
package builder

import (
	"fmt"
	"math"
	"math/rand"
	"sync/atomic"

	"github.com/loomward/tilegen/pkg/connectivity"
	"github.com/loomward/tilegen/pkg/engine"
	"github.com/loomward/tilegen/pkg/model"
	"github.com/loomward/tilegen/pkg/tilemap"
	"github.com/loomward/tilegen/pkg/tileset"
	"github.com/loomward/tilegen/pkg/weights"
)

// Mode selects how an existing generator is treated by Build, per §4.5.
type Mode int

const (
	// FreshFresh trains a brand new generator from scratch.
	FreshFresh Mode = iota
	// FreshOverwrite discards an existing generator's weights and starts
	// fresh, but keeps its unique-tile table and connectivity table.
	FreshOverwrite
	// Continue resumes training an existing generator, with its epoch
	// counter carried forward cumulatively.
	Continue
)

// ExampleMap is one ingest-time training example: a host adapter bound to a
// region, with a relative sampling weight.
type ExampleMap struct {
	Adapter     tilemap.Adapter
	Region      model.Region
	Commonality float64
}

// State is the build's lifecycle state, polled by the host per §6.
type State int32

const (
	None State = iota
	InProgress
	Cancelled
	Success
	NanError
	MismatchedLayers
	NullMaps
	ZeroMaps
	InvalidCommonality
)

func (s State) String() string {
	switch s {
	case None:
		return "none"
	case InProgress:
		return "in-progress"
	case Cancelled:
		return "cancelled"
	case Success:
		return "success"
	case NanError:
		return "nan-error"
	case MismatchedLayers:
		return "mismatched-layers"
	case NullMaps:
		return "null-maps"
	case ZeroMaps:
		return "zero-maps"
	case InvalidCommonality:
		return "invalid-commonality"
	default:
		return "unknown"
	}
}

// IngestError reports a fail-fast validation failure from Build, surfaced
// synchronously before any training work begins.
type IngestError struct {
	State State
	Msg   string
}

func (e *IngestError) Error() string { return fmt.Sprintf("builder: %s: %s", e.State, e.Msg) }

// Config bundles Build's tuning inputs, per §4.5 and §6's Build surface.
type Config struct {
	Radius             int
	Mode               connectivity.Mode
	Acknowledge        connectivity.BorderFlags
	InterpretEmptyTile bool
	LRStart, LREnd     float64
	Epochs             int
	BuildMode          Mode
}

// Progress is a point-in-time snapshot of training state, polled per §6:
// "(epoch, total_epochs, loss_last, loss_avg20, lr, start_time, end_time,
// state)". Timestamps are left to the caller (stamped outside the core, per
// the standing prohibition on wall-clock reads inside this package).
type Progress struct {
	Epoch        int
	TotalEpochs  int
	LossLast     float64
	LossAvg20    float64
	LearningRate float64
	State        State
}

// Trainer runs the epoch loop described in §4.5 against a set of example
// maps, producing a trained *weights.Weights and a populated
// *connectivity.Table.
type Trainer struct {
	examples []ExampleMap
	cfg      Config
	u        int
	hash     tilemap.Hashable

	tiles *tileset.Table
	conn  *connectivity.Table
	w     *weights.Weights

	abort    atomic.Bool
	saveQuit atomic.Bool
	progress atomic.Value // holds Progress
	rng      *rand.Rand
	rollingN []float64
}

// New validates the example maps per §4.5's ingest errors and constructs a
// Trainer ready to Run. tiles and conn are pre-populated uniqueness/
// connectivity tables (see Ingest); w is nil for FreshFresh/FreshOverwrite
// (a fresh tensor is allocated once U is known) or an existing tensor for
// Continue.
func New(examples []ExampleMap, cfg Config, tiles *tileset.Table, conn *connectivity.Table, w *weights.Weights, seed int64) (*Trainer, error) {
	if err := ValidateExamples(examples); err != nil {
		return nil, err
	}
	t := &Trainer{
		examples: examples,
		cfg:      cfg,
		u:        tiles.Len(),
		tiles:    tiles,
		conn:     conn,
		w:        w,
		rng:      rand.New(rand.NewSource(seed)),
	}
	if t.w == nil {
		side := model.Neighborhood{Radius: cfg.Radius}.Side()
		t.w = weights.New(t.u, side, t.rng)
	}
	t.progress.Store(Progress{State: None, TotalEpochs: cfg.Epochs})
	return t, nil
}

// ValidateExamples runs the fail-fast ingest checks from §4.5 — ZeroMaps,
// NullMaps, MismatchedLayers, InvalidCommonality — before any training or
// ingest work touches the example maps. Exported so pkg/tilegen.Build can
// validate before building the uniqueness/connectivity tables New expects.
func ValidateExamples(examples []ExampleMap) error {
	if len(examples) == 0 {
		return &IngestError{State: ZeroMaps, Msg: "at least one example map is required"}
	}
	var total float64
	for i, ex := range examples {
		if ex.Adapter == nil {
			return &IngestError{State: NullMaps, Msg: fmt.Sprintf("example %d has no layers/adapter", i)}
		}
		if ex.Commonality < 0 {
			return &IngestError{State: InvalidCommonality, Msg: fmt.Sprintf("example %d has negative commonality %v", i, ex.Commonality)}
		}
		total += ex.Commonality
	}
	layerCount := examples[0].Adapter.LayerCount()
	for i, ex := range examples {
		if ex.Adapter.LayerCount() != layerCount {
			return &IngestError{State: MismatchedLayers, Msg: fmt.Sprintf("example %d has %d layers, example 0 has %d", i, ex.Adapter.LayerCount(), layerCount)}
		}
	}
	if total <= 0 {
		return &IngestError{State: InvalidCommonality, Msg: "total commonality across examples must be positive"}
	}
	return nil
}

// Abort requests that the loop stop with Cancelled at the next epoch
// boundary, per §5: the flag is read before each epoch starts, so an epoch
// already running completes first, and weights are left in whatever state
// they reached.
func (t *Trainer) Abort() { t.abort.Store(true) }

// SaveAndQuit requests that the loop finish the current epoch, then stop
// cleanly with Success.
func (t *Trainer) SaveAndQuit() { t.saveQuit.Store(true) }

// Progress returns the most recently published progress snapshot. Safe to
// call concurrently with Run.
func (t *Trainer) Progress() Progress {
	v := t.progress.Load()
	if v == nil {
		return Progress{State: None}
	}
	return v.(Progress)
}

// Weights returns the trainer's weight tensor (mutated in place by Run).
func (t *Trainer) Weights() *weights.Weights { return t.w }

// Run executes the epoch loop described in §4.5. It returns when the loop
// finishes all epochs, is aborted, is asked to save-and-quit, or encounters
// a NumericFault (in which case the returned error is non-nil and the
// published state is NanError).
func (t *Trainer) Run() error {
	t.progress.Store(Progress{State: InProgress, TotalEpochs: t.cfg.Epochs, Epoch: t.w.Epochs})

	var currentExampleIdx = -1
	var eng *engine.Engine
	startEpoch := t.w.Epochs

	for epoch := startEpoch; epoch < startEpoch+t.cfg.Epochs; epoch++ {
		if t.abort.Load() {
			t.publish(epoch, Cancelled, 0, 0, 0)
			return nil
		}

		progressT := float64(epoch-startEpoch) / float64(t.cfg.Epochs)
		lr := logLerp(t.cfg.LRStart, t.cfg.LREnd, progressT)

		idx := t.sampleExample()
		ex := t.examples[idx]
		if idx != currentExampleIdx || eng == nil {
			nb := model.Neighborhood{Radius: t.cfg.Radius}
			eng = engine.New(ex.Region, nb, t.cfg.Mode, t.cfg.Acknowledge, ex.Region.OriginY, t.w, t.u)
			currentExampleIdx = idx
		}
		eng.Reset(t.rng)

		loss, err := t.runEpoch(eng, ex, lr)
		if err != nil {
			t.publish(epoch, NanError, 0, 0, lr)
			return err
		}

		t.rollingN = append(t.rollingN, loss)
		if len(t.rollingN) > 20 {
			t.rollingN = t.rollingN[len(t.rollingN)-20:]
		}
		t.w.Epochs = epoch + 1
		t.publish(t.w.Epochs, InProgress, loss, rollingMean(t.rollingN), lr)

		if t.saveQuit.Load() {
			t.publish(t.w.Epochs, Success, loss, rollingMean(t.rollingN), lr)
			return nil
		}
	}
	p := t.Progress()
	t.publish(t.w.Epochs, Success, p.LossLast, p.LossAvg20, t.cfg.LREnd)
	return nil
}

func (t *Trainer) runEpoch(eng *engine.Engine, ex ExampleMap, lr float64) (float64, error) {
	var total float64
	var count int
	for !eng.IsDone() {
		pos, ok := eng.NextPos()
		if !ok {
			break
		}
		tile, isEmpty, err := t.tileAt(ex, pos)
		if err != nil {
			return 0, fmt.Errorf("builder: reading example tile at %v: %w", pos, err)
		}
		if isEmpty && !t.cfg.InterpretEmptyTile {
			eng.MarkSkipped(pos)
			continue
		}
		idx, ok, err := t.tiles.Lookup(tile)
		if err != nil {
			return 0, fmt.Errorf("builder: hashing example tile at %v: %w", pos, err)
		}
		if !ok {
			eng.MarkSkipped(pos)
			continue
		}
		loss, err := eng.Train(pos, idx, lr, 0, t.rng)
		if err != nil {
			return 0, err
		}
		eng.MarkCollapsed(pos, idx)
		total += loss
		count++
	}
	if count == 0 {
		return 0, nil
	}
	return total / float64(count), nil
}

// tileAt reconstructs the full LayeredTile at an example's cell across all
// of its layers, and reports whether it is the empty sentinel.
func (t *Trainer) tileAt(ex ExampleMap, pos model.Point) (tileset.LayeredTile, bool, error) {
	layers := make([]tilemap.TileHandle, ex.Adapter.LayerCount())
	for l := 0; l < ex.Adapter.LayerCount(); l++ {
		block, err := ex.Adapter.ReadBlock(model.Region{OriginX: ex.Region.OriginX + pos.X, OriginY: ex.Region.OriginY + pos.Y, Width: 1, Height: 1}, l)
		if err != nil {
			return tileset.LayeredTile{}, false, err
		}
		if len(block) == 0 || len(block[0]) == 0 {
			continue
		}
		layers[l] = block[0][0]
	}
	tile := tileset.LayeredTile{Layers: layers}
	return tile, tile.IsEmpty(), nil
}

func (t *Trainer) sampleExample() int {
	var total float64
	for _, ex := range t.examples {
		total += ex.Commonality
	}
	r := t.rng.Float64() * total
	var running float64
	for i, ex := range t.examples {
		running += ex.Commonality
		if r <= running {
			return i
		}
	}
	return len(t.examples) - 1
}

func (t *Trainer) publish(epoch int, state State, lossLast, lossAvg20, lr float64) {
	t.progress.Store(Progress{
		Epoch:        epoch,
		TotalEpochs:  t.cfg.Epochs,
		LossLast:     lossLast,
		LossAvg20:    lossAvg20,
		LearningRate: lr,
		State:        state,
	})
}

// logLerp computes lr_start * (lr_end/lr_start)^t, the log-linear learning
// rate schedule from §4.5.
func logLerp(start, end, t float64) float64 {
	if start <= 0 || end <= 0 {
		return start
	}
	return start * math.Pow(end/start, t)
}

func rollingMean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
