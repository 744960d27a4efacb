package engine

import (
	"math"
	"math/rand"
	"testing"

	"github.com/loomward/tilegen/pkg/connectivity"
	"github.com/loomward/tilegen/pkg/indexset"
	"github.com/loomward/tilegen/pkg/model"
	"github.com/loomward/tilegen/pkg/tileset"
	"github.com/loomward/tilegen/pkg/weights"
)

func newTestEngine(u int) *Engine {
	region := model.Region{Width: 3, Height: 3}
	nb := model.Neighborhood{Radius: 1}
	rng := rand.New(rand.NewSource(42))
	w := weights.New(u, nb.Side(), rng)
	return New(region, nb, connectivity.Four, connectivity.BorderFlags{Top: true, Bottom: true, Left: true, Right: true}, 0, w, u)
}

func TestNextPosPrefersMoreCollapsedNeighbors(t *testing.T) {
	e := newTestEngine(2)
	e.MarkCollapsed(model.Point{X: 0, Y: 0}, 0)
	e.MarkCollapsed(model.Point{X: 1, Y: 0}, 0)
	e.MarkCollapsed(model.Point{X: 2, Y: 0}, 0)

	// (1,1) touches three collapsed cells in an 8-neighborhood radius-1
	// window; every other uncollapsed cell touches at most two.
	got, ok := e.NextPos()
	if !ok {
		t.Fatalf("expected a next position")
	}
	if got != (model.Point{X: 1, Y: 1}) {
		t.Fatalf("expected (1,1) to have the most collapsed neighbors, got %v", got)
	}
}

func TestIsDoneAfterVisitingEveryCell(t *testing.T) {
	e := newTestEngine(1)
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			e.MarkSkipped(model.Point{X: x, Y: y})
		}
	}
	if !e.IsDone() {
		t.Fatalf("expected IsDone once every cell is visited")
	}
}

func TestFeaturesCenterIsAlwaysUncollapsed(t *testing.T) {
	e := newTestEngine(2)
	f := e.Features(model.Point{X: 1, Y: 1})
	center := f[1*3+1] // nx=1,ny=1 for S=3 is the center offset (0,0)
	if center != weights.FeatureUncollapsed(2) {
		t.Fatalf("expected center feature to be uncollapsed, got %d", center)
	}
}

func TestFeaturesBorderFlagsOutOfBounds(t *testing.T) {
	e := newTestEngine(2)
	// Corner cell (0,0): its (dx=-1,dy=-1) neighbor is off-grid past both
	// the left and bottom borders; vertical resolves first in our tie-break.
	f := e.Features(model.Point{X: 0, Y: 0})
	offset := (0)*3 + 0 // nx=0 (dx=-1), ny=0 (dy=-1)
	if f[offset] != weights.FeatureBottomBorder(2) {
		t.Fatalf("expected bottom-border feature at the (-1,-1) offset, got %d", f[offset])
	}
}

func TestCollapseRespectsDomain(t *testing.T) {
	e := newTestEngine(3)
	domain := indexset.NewEmpty(3)
	domain.Add(2)

	idx, err := e.Collapse(model.Point{X: 1, Y: 1}, domain, 0, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	if idx != 2 {
		t.Fatalf("expected the only domain member 2, got %d", idx)
	}
}

func TestTrainReturnsDecreasingLossOverRepeatedSteps(t *testing.T) {
	e := newTestEngine(2)
	p := model.Point{X: 1, Y: 1}
	rng := rand.New(rand.NewSource(7))

	first, err := e.Train(p, 0, 0.3, 0, rng)
	if err != nil {
		t.Fatal(err)
	}
	var last float64
	for i := 0; i < 20; i++ {
		last, err = e.Train(p, 0, 0.3, 0, rng)
		if err != nil {
			t.Fatal(err)
		}
	}
	if last >= first {
		t.Fatalf("expected loss to trend down after repeated training toward the same target: first=%v last=%v", first, last)
	}
}

// entropyOverRuns samples Collapse n times at the given temperature and
// returns the Shannon entropy (in bits) of the resulting class frequencies.
func entropyOverRuns(e *Engine, p model.Point, domain *indexset.Set, temperature float64, n int, seed int64) float64 {
	rng := rand.New(rand.NewSource(seed))
	counts := map[tileset.Index]int{}
	for i := 0; i < n; i++ {
		idx, err := e.Collapse(p, domain, temperature, rng)
		if err != nil {
			continue
		}
		counts[idx]++
	}
	var h float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		prob := float64(c) / float64(n)
		h -= prob * math.Log2(prob)
	}
	return h
}

// TestPreviewTemperatureMonotonicity is S6: raising the Gumbel-softmax
// temperature across the full [-5,5] range never decreases the entropy of
// the sampled class distribution. SoftmaxWithGumbel clamps its noise scale
// to [0,+inf), so every non-positive temperature collapses to the same
// noise-free, deterministic argmax(softmax(z)) (zero entropy, exactly, no
// sampling involved) and only the positive half introduces any randomness —
// this checks both halves: the non-positive half is asserted exactly equal,
// and temperature=5 is asserted to raise entropy above that floor.
func TestPreviewTemperatureMonotonicity(t *testing.T) {
	e := newTestEngine(4)
	p := model.Point{X: 1, Y: 1}
	const runs = 400

	for _, temp := range []float64{-5, -2, -1, 0} {
		h := entropyOverRuns(e, p, nil, temp, runs, 100)
		if h != 0 {
			t.Fatalf("expected deterministic (zero-entropy) collapse at temperature=%v, got entropy %v", temp, h)
		}
	}

	high := entropyOverRuns(e, p, nil, 5, runs, 200)
	if high <= 0 {
		t.Fatalf("expected temperature=5 to introduce nonzero entropy, got %v", high)
	}
}
