// Package engine implements the PredictorEngine: a stateful driver over a
// rectangular region that orders cells by how constrained their
// neighborhood currently is, scores each with the weight tensor, and either
// trains against a known answer or samples a collapse. Grounded on the
// teacher's pkg/generator.Generator, which plays the analogous role of a
// stateful driver walking a region cell-by-cell applying a strategy.
package engine

import (
	"fmt"
	"math/rand"

	"github.com/loomward/tilegen/pkg/connectivity"
	"github.com/loomward/tilegen/pkg/indexset"
	"github.com/loomward/tilegen/pkg/model"
	"github.com/loomward/tilegen/pkg/tileset"
	"github.com/loomward/tilegen/pkg/weights"
)

const uncollapsed = -1

// Engine is the PredictorEngine. One Engine is bound to a single region and
// neighborhood radius for its lifetime; Reset lets the same Engine be
// reused across epochs against different regions' worth of state without
// reallocating.
type Engine struct {
	Region       model.Region
	Neighborhood model.Neighborhood
	Mode         connectivity.Mode
	Acknowledge  connectivity.BorderFlags
	StartY       int

	W *weights.Weights
	U int

	collapsed []int // collapsed[y*Width+x], tileset.Index or uncollapsed
	visited   []bool
	noise     []float64
}

// New creates an Engine bound to region, scoring with w (U unique tiles).
func New(region model.Region, neighborhood model.Neighborhood, mode connectivity.Mode, ack connectivity.BorderFlags, startY int, w *weights.Weights, u int) *Engine {
	e := &Engine{
		Region:       region,
		Neighborhood: neighborhood,
		Mode:         mode,
		Acknowledge:  ack,
		StartY:       startY,
		W:            w,
		U:            u,
	}
	e.collapsed = make([]int, region.Area())
	e.visited = make([]bool, region.Area())
	e.noise = make([]float64, region.Area())
	e.Reset(rand.New(rand.NewSource(1)))
	return e
}

func (e *Engine) flat(p model.Point) int {
	return p.Y*e.Region.Width + p.X
}

// Reset clears the collapsed-index buffer and visited flags, and draws a
// fresh per-cell noise value used to break next_pos ties, per §4.4:
// "Reset the engine with fresh noise and an empty collapsed-index buffer."
func (e *Engine) Reset(rng *rand.Rand) {
	for i := range e.collapsed {
		e.collapsed[i] = uncollapsed
		e.visited[i] = false
		e.noise[i] = rng.Float64()
	}
}

// IsDone reports whether every cell has been collapsed or skipped.
func (e *Engine) IsDone() bool {
	for _, v := range e.visited {
		if !v {
			return false
		}
	}
	return true
}

// NextPos returns the uncollapsed cell with the most collapsed neighbors,
// ties broken by the per-cell noise drawn at Reset. Reports false if every
// cell has already been visited.
func (e *Engine) NextPos() (model.Point, bool) {
	best := -1
	bestScore := -1
	var bestNoise float64
	for y := 0; y < e.Region.Height; y++ {
		for x := 0; x < e.Region.Width; x++ {
			i := y*e.Region.Width + x
			if e.visited[i] {
				continue
			}
			score := e.collapsedNeighborCount(model.Point{X: x, Y: y})
			if best == -1 || score > bestScore || (score == bestScore && e.noise[i] > bestNoise) {
				best = i
				bestScore = score
				bestNoise = e.noise[i]
			}
		}
	}
	if best == -1 {
		return model.Point{}, false
	}
	return model.Point{X: best % e.Region.Width, Y: best / e.Region.Width}, true
}

func (e *Engine) collapsedNeighborCount(p model.Point) int {
	r := e.Neighborhood.Radius
	count := 0
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			n := model.Point{X: p.X + dx, Y: p.Y + dy}
			if !e.Region.Contains(n.X, n.Y) {
				continue
			}
			if e.collapsed[e.flat(n)] != uncollapsed {
				count++
			}
		}
	}
	return count
}

// CollapsedAt returns the committed tile index at p, if any.
func (e *Engine) CollapsedAt(p model.Point) (tileset.Index, bool) {
	v := e.collapsed[e.flat(p)]
	if v == uncollapsed {
		return 0, false
	}
	return tileset.Index(v), true
}

// MarkCollapsed commits idx at p and marks p visited.
func (e *Engine) MarkCollapsed(p model.Point, idx tileset.Index) {
	i := e.flat(p)
	e.collapsed[i] = int(idx)
	e.visited[i] = true
}

// MarkSkipped marks p visited without collapsing it — used for empty cells
// during training when interpret_empty_as_tile is false; the cell stays
// "uncollapsed" in every neighbor's feature computation from here on.
func (e *Engine) MarkSkipped(p model.Point) {
	e.visited[e.flat(p)] = true
}

// Features computes the per-neighborhood-position active feature array for
// target cell p, laid out as features[nx*S+ny] to match weights.Forward's
// expectations, per §4.4's feature layout.
func (e *Engine) Features(p model.Point) weights.Features {
	r := e.Neighborhood.Radius
	s := e.Neighborhood.Side()
	out := make(weights.Features, s*s)
	for nx := 0; nx < s; nx++ {
		dx := nx - r
		for ny := 0; ny < s; ny++ {
			dy := ny - r
			out[nx*s+ny] = e.featureAt(p, dx, dy)
		}
	}
	return out
}

// featureAt computes the active feature index for the neighborhood cell at
// offset (dx,dy) from target cell p: the target cell itself is always
// "uncollapsed" (the center is what's being predicted); an in-bounds
// neighbor's feature is its committed tile index or "uncollapsed"; an
// out-of-bounds neighbor's feature is the relevant border flag when that
// border is acknowledged, else "uncollapsed". A neighbor that lies beyond
// two borders at once (a corner) resolves vertically before horizontally —
// an arbitrary but consistent tie-break, since the tensor has only one
// border slot per position.
func (e *Engine) featureAt(p model.Point, dx, dy int) int {
	if dx == 0 && dy == 0 {
		return weights.FeatureUncollapsed(e.U)
	}
	n := model.Point{X: p.X + dx, Y: p.Y + dy}
	if e.Region.Contains(n.X, n.Y) {
		if idx, ok := e.CollapsedAt(n); ok {
			return int(idx)
		}
		return weights.FeatureUncollapsed(e.U)
	}
	if n.Y >= e.Region.Height && e.Acknowledge.Top {
		return weights.FeatureTopBorder(e.U)
	}
	if n.Y < 0 && e.Acknowledge.Bottom {
		return weights.FeatureBottomBorder(e.U)
	}
	if n.X < 0 && e.Acknowledge.Left {
		return weights.FeatureLeftBorder(e.U)
	}
	if n.X >= e.Region.Width && e.Acknowledge.Right {
		return weights.FeatureRightBorder(e.U)
	}
	return weights.FeatureUncollapsed(e.U)
}

// Probabilities computes the Gumbel-perturbed softmax distribution over all
// U classes for cell p at the given temperature.
func (e *Engine) Probabilities(p model.Point, temperature float64, rng *rand.Rand) ([]float64, weights.Features) {
	features := e.Features(p)
	z := e.W.Forward(features)
	probs := weights.SoftmaxWithGumbel(z, temperature, rng)
	return probs, features
}

// Train runs one cross-entropy gradient step at cell p toward target class
// t, per §4.4's training update, and returns the reported loss.
func (e *Engine) Train(p model.Point, target tileset.Index, lr, temperature float64, rng *rand.Rand) (float64, error) {
	probs, features := e.Probabilities(p, temperature, rng)
	return e.W.Update(probs, int(target), features, lr)
}

// Collapse samples (argmax, per §4.4's "Collapse" rule — greedy, not
// stochastic, given the already-perturbed probabilities) a class for cell
// p. If domain is non-nil, the argmax is restricted to domain's members;
// otherwise every class is eligible (the "pure preview" case).
func (e *Engine) Collapse(p model.Point, domain *indexset.Set, temperature float64, rng *rand.Rand) (tileset.Index, error) {
	probs, _ := e.Probabilities(p, temperature, rng)
	best := -1
	var bestP float64
	if domain == nil {
		for c, pr := range probs {
			if best == -1 || pr > bestP {
				best, bestP = c, pr
			}
		}
	} else {
		domain.Each(func(c int) {
			if best == -1 || probs[c] > bestP {
				best, bestP = c, probs[c]
			}
		})
	}
	if best == -1 {
		return 0, fmt.Errorf("engine: no candidate values to collapse %v into", p)
	}
	return tileset.Index(best), nil
}

// Preview resets the engine and walks the entire region in next_pos order,
// collapsing each cell against its own prior preview guesses ("pure
// preview": the argmax is over all classes, not constrained to any CSP
// domain). The returned map is the per-cell preferred collapse the CSP
// solver uses to bias variable and value ordering, per §2's data flow:
// "Predictor produces an ordering and per-cell preferred collapse."
func (e *Engine) Preview(temperature float64, rng *rand.Rand) map[model.Point]tileset.Index {
	e.Reset(rng)
	preferred := make(map[model.Point]tileset.Index, e.Region.Area())
	for !e.IsDone() {
		pos, ok := e.NextPos()
		if !ok {
			break
		}
		idx, err := e.Collapse(pos, nil, temperature, rng)
		if err != nil {
			e.MarkSkipped(pos)
			continue
		}
		e.MarkCollapsed(pos, idx)
		preferred[pos] = idx
	}
	return preferred
}
