// Package csp implements the CSP Solver: arc-consistency establishment
// (AC-3) over per-cell domains seeded from any preexisting tiles, followed
// by backtracking search with LRV/LCV ordering heuristics and an explicit,
// heap-allocated search stack (never Go's call stack, so an arbitrarily
// deep search never risks a stack-growth surprise and every frame is
// individually inspectable for the undo-trail bookkeeping). Grounded on the
// teacher's pkg/generator/backtracking.go, which performs a similarly
// structured iterative backtracking search with its own explicit frame
// stack and undo semantics, generalized here from "random wall placement"
// to full AC-3-backed domain search.
package csp

import (
	"github.com/loomward/tilegen/pkg/connectivity"
	"github.com/loomward/tilegen/pkg/indexset"
	"github.com/loomward/tilegen/pkg/model"
	"github.com/loomward/tilegen/pkg/tileset"
)

// largeOffset pulls high-priority/border cells to the front of variable
// selection, and high-priority candidates or a cell's preferred value to the
// front of value ordering, without needing a separate comparison pass:
// subtracting it from a domain-size- or LCV-based key makes any entry
// without the bonus lose every tie against one that has it.
const largeOffset = 1_000_000

// ErrUnsatisfiable is returned when initial AC-3 establishment fails and
// forceful repair is disabled, or was never attempted.
type ErrUnsatisfiable struct{}

func (ErrUnsatisfiable) Error() string { return "csp: no consistent assignment exists" }

// ErrBorderImpossible is returned when forceful repair's second AC-3 pass
// (with all preexisting constraints discarded) still fails.
type ErrBorderImpossible struct{}

func (ErrBorderImpossible) Error() string {
	return "csp: no consistent assignment exists even after discarding preexisting tiles"
}

// PreexistingLayer supplies, for one layer, the tile index already present
// at a local region coordinate, or false if that cell is unconstrained on
// this layer.
type PreexistingLayer func(p model.Point) (tileset.Index, bool)

// Input bundles everything the solver needs for one Solve call.
type Input struct {
	Region        model.Region
	Mode          connectivity.Mode
	StartY        int
	Conn          *connectivity.Table
	U             int
	Preferred     map[model.Point]tileset.Index // from Engine.Preview
	Layers        []PreexistingLayer            // one per tilemap layer
	EnforceBorder connectivity.BorderFlags
	Forceful      bool
}

// Result is the solved per-cell tile assignment, local to Input.Region.
type Result struct {
	Assignment map[model.Point]tileset.Index
}

type undoRecord struct {
	pos   model.Point
	value int
}

// Solver runs one Solve call's worth of private state: domains, undo trail,
// and search stack, per §5: "Its data structures ... are private to one
// call."
type Solver struct {
	in        Input
	domains   map[model.Point]*indexset.Set
	committed map[model.Point]int // tileset.Index or -1
	high      map[model.Point]*indexset.Set
}

// Solve runs preparation, AC-3 establishment, and backtracking search, per
// §4.6. On success it returns every cell's committed tile index; on failure
// it returns ErrUnsatisfiable or ErrBorderImpossible.
func Solve(in Input) (*Result, error) {
	s := &Solver{in: in}
	s.prepare()

	trail := []undoRecord{}
	if s.establish(&trail) {
		if res, ok := s.search(); ok {
			return res, nil
		}
	}
	s.revert(trail)

	if !in.Forceful {
		return nil, ErrUnsatisfiable{}
	}

	// Forceful repair: discard preexisting constraints, reset every domain
	// to full, and retry — this time the original high-priority list
	// expresses the user's preference that preexisting border tiles be
	// honored where possible, per §4.6.
	s.domains = make(map[model.Point]*indexset.Set, in.Region.Area())
	s.committed = make(map[model.Point]int, in.Region.Area())
	for y := 0; y < in.Region.Height; y++ {
		for x := 0; x < in.Region.Width; x++ {
			p := model.Point{X: x, Y: y}
			s.domains[p] = indexset.NewFull(in.U)
			s.committed[p] = -1
		}
	}
	// s.high is untouched: search() restores every entry it consumes before
	// returning failure, so the original high-priority list survives intact.

	trail2 := []undoRecord{}
	if s.establish(&trail2) {
		if res, ok := s.search(); ok {
			return res, nil
		}
	}
	s.revert(trail2)
	return nil, ErrBorderImpossible{}
}

// prepare computes each cell's initial domain as the intersection, across
// all layers, of the candidate tile indices consistent with any
// preexisting tile on that layer; singleton domains are committed
// immediately, and non-full non-empty constrained border cells become
// high-priority, per §4.6's Preparation step.
func (s *Solver) prepare() {
	area := s.in.Region.Area()
	s.domains = make(map[model.Point]*indexset.Set, area)
	s.committed = make(map[model.Point]int, area)
	s.high = make(map[model.Point]*indexset.Set)

	for y := 0; y < s.in.Region.Height; y++ {
		for x := 0; x < s.in.Region.Width; x++ {
			p := model.Point{X: x, Y: y}
			s.committed[p] = -1
			domain := indexset.NewFull(s.in.U)
			constrained := false
			for _, layer := range s.in.Layers {
				if layer == nil {
					continue
				}
				if idx, ok := layer(p); ok {
					constrained = true
					singleton := indexset.NewEmpty(s.in.U)
					singleton.Add(int(idx))
					domain = domain.Intersect(singleton)
				}
			}
			s.domains[p] = domain

			if domain.Count() == 1 {
				v := domain.Dense(0)
				s.committed[p] = v
				continue
			}
			if constrained && s.onBorder(p) && domain.Count() > 0 && domain.Count() < s.in.U {
				s.high[p] = domain.Clone()
			}
		}
	}
}

func (s *Solver) onBorder(p model.Point) bool {
	return p.X == 0 || p.Y == 0 || p.X == s.in.Region.Width-1 || p.Y == s.in.Region.Height-1
}

type arc struct {
	pos model.Point
	dir connectivity.Direction
}

// establish seeds a work queue with every cell (committed or not) paired
// with every direction the connectivity mode supports and runs AC-3 to
// quiescence, appending every removal to trail. Returns false (leaving
// trail reverted by the caller) if any domain empties — including a
// committed cell's singleton, which is how a contradictory pair of
// preexisting tiles is caught.
func (s *Solver) establish(trail *[]undoRecord) bool {
	var queue []arc
	for y := 0; y < s.in.Region.Height; y++ {
		for x := 0; x < s.in.Region.Width; x++ {
			p := model.Point{X: x, Y: y}
			for _, d := range connectivity.Directions(s.in.Mode) {
				queue = append(queue, arc{pos: p, dir: d})
			}
		}
	}
	return s.runAC3(queue, trail)
}

func (s *Solver) runAC3(queue []arc, trail *[]undoRecord) bool {
	for len(queue) > 0 {
		a := queue[0]
		queue = queue[1:]
		// Committed cells are still revised: a committed singleton whose
		// sole value has no supporter across an incompatible committed (or
		// constrained) neighbor must empty here, not slip through to
		// search() as a silent contradiction.
		removed, emptied := s.revise(a.pos, a.dir, trail)
		if emptied {
			return false
		}
		if removed {
			for _, d2 := range connectivity.Directions(s.in.Mode) {
				n := connectivity.Neighbor(s.in.Mode, a.pos, d2, s.in.StartY)
				if !s.in.Region.Contains(n.X, n.Y) {
					continue
				}
				queue = append(queue, arc{pos: n, dir: d2.Opposite()})
			}
		}
	}
	return true
}

// revise removes from domain[p] any value with no supporter across the
// neighbor in direction d, per §4.6's AC-3 revision rule (including the
// border-enforcement branch for out-of-region neighbors).
func (s *Solver) revise(p model.Point, d connectivity.Direction, trail *[]undoRecord) (removed, emptied bool) {
	domain := s.domains[p]
	n := connectivity.Neighbor(s.in.Mode, p, d, s.in.StartY)

	if !s.in.Region.Contains(n.X, n.Y) {
		bd, ok := connectivity.BorderDirectionFor(s.in.Mode, d, p.Y, s.in.Region.Height)
		if !ok || !s.in.EnforceBorder.Enabled(bd) {
			return false, false
		}
		for _, a := range domain.Members() {
			if !s.in.Conn.GetBorder(bd, tileset.Index(a)) {
				domain.Remove(a)
				*trail = append(*trail, undoRecord{pos: p, value: a})
				removed = true
			}
		}
		return removed, domain.Count() == 0
	}

	if nv := s.committed[n]; nv != -1 {
		for _, a := range domain.Members() {
			if !s.in.Conn.Get(d, tileset.Index(a), tileset.Index(nv)) {
				domain.Remove(a)
				*trail = append(*trail, undoRecord{pos: p, value: a})
				removed = true
			}
		}
		return removed, domain.Count() == 0
	}

	neighborDomain := s.domains[n]
	for _, a := range domain.Members() {
		supported := false
		neighborDomain.Each(func(b int) {
			if !supported && s.in.Conn.Get(d, tileset.Index(a), tileset.Index(b)) {
				supported = true
			}
		})
		if !supported {
			domain.Remove(a)
			*trail = append(*trail, undoRecord{pos: p, value: a})
			removed = true
		}
	}
	return removed, domain.Count() == 0
}

func (s *Solver) revert(trail []undoRecord) {
	for i := len(trail) - 1; i >= 0; i-- {
		r := trail[i]
		s.domains[r.pos].Add(r.value)
	}
}

// frame is one level of the explicit, heap-allocated search stack.
type frame struct {
	pos           model.Point
	candidates    []int
	cursor        int
	fromHighPrio  bool
	highPrioSet   *indexset.Set
	trialTrail    []undoRecord
	awaitingChild bool
	savedDomain   *indexset.Set
}

// search performs the iterative backtracking search described in §4.6.
func (s *Solver) search() (*Result, bool) {
	var stack []*frame

	for {
		if len(stack) == 0 {
			pos, ok := s.selectVariable()
			if !ok {
				return s.finish(), true
			}
			stack = append(stack, s.newFrame(pos))
		}
		top := stack[len(stack)-1]

		if top.awaitingChild {
			s.revert(top.trialTrail)
			top.trialTrail = nil
			top.cursor++
			top.awaitingChild = false
		}

		if top.cursor >= len(top.candidates) {
			s.unassign(top)
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return nil, false
			}
			stack[len(stack)-1].awaitingChild = true
			continue
		}

		value := top.candidates[top.cursor]
		s.committed[top.pos] = value
		singleton := indexset.NewEmpty(s.in.U)
		singleton.Add(value)
		s.domains[top.pos] = singleton

		var queue []arc
		for _, d := range connectivity.Directions(s.in.Mode) {
			queue = append(queue, arc{pos: top.pos, dir: d})
		}
		trail := []undoRecord{}
		ok := s.runAC3(queue, &trail)
		if !ok {
			s.revert(trail)
			s.committed[top.pos] = -1
			top.cursor++
			continue
		}
		top.trialTrail = trail

		nextPos, found := s.selectVariable()
		if !found {
			return s.finish(), true
		}
		stack = append(stack, s.newFrame(nextPos))
	}
}

// unassign gives a cell back to the pool once every one of its candidates
// has failed. It restores domains[f.pos] to the snapshot newFrame took
// before the first candidate was tried — not a fresh full domain — so the
// cell keeps every exclusion already established before this frame existed
// (the initial establish() pass, and any AC-3 propagation from ancestors
// still on the stack). Resetting to full here would let the solver later
// recommit a value this cell's own committed neighbors already ruled out.
func (s *Solver) unassign(f *frame) {
	s.committed[f.pos] = -1
	s.domains[f.pos] = f.savedDomain
	if f.fromHighPrio {
		s.high[f.pos] = f.highPrioSet
	}
}

func (s *Solver) finish() *Result {
	assignment := make(map[model.Point]tileset.Index, s.in.Region.Area())
	for p, v := range s.committed {
		if v != -1 {
			assignment[p] = tileset.Index(v)
		}
	}
	return &Result{Assignment: assignment}
}

// selectVariable implements §4.6's variable-selection heuristic: while any
// high-priority cell remains uncommitted, the smallest-domain cell wins,
// with high-priority (border) cells given a large bonus so they win ties;
// once none remain, the smallest-domain cell wins with a smaller bonus when
// the engine's preferred value still lies in its domain.
func (s *Solver) selectVariable() (model.Point, bool) {
	anyHighPriority := len(s.high) > 0

	best := model.Point{}
	bestKey := 0.0
	found := false

	for p, v := range s.committed {
		if v != -1 {
			continue
		}
		domain := s.domains[p]
		key := float64(domain.Count()) + noiseFor(p)
		if anyHighPriority {
			if _, ok := s.high[p]; ok {
				key -= largeOffset
			}
		} else if pref, ok := s.in.Preferred[p]; ok && domain.Contains(int(pref)) {
			key -= 1
		}
		if !found || key < bestKey {
			best, bestKey, found = p, key, true
		}
	}
	return best, found
}

// noiseFor derives a small deterministic per-cell perturbation from its
// coordinates, breaking exact domain-size ties without needing a separate
// seeded generator threaded through the solver (the solver's selection
// order must be reproducible given the same region and domains).
func noiseFor(p model.Point) float64 {
	h := uint32(p.X)*2654435761 + uint32(p.Y)*40503
	return float64(h%1000) / 1000.0
}

// newFrame builds a search frame for pos, ordering its candidate values by
// §4.6's value-selection heuristic.
func (s *Solver) newFrame(pos model.Point) *frame {
	domain := s.domains[pos]
	saved := domain.Clone()
	members := domain.Members()
	highSet, fromHigh := s.high[pos]
	if fromHigh {
		delete(s.high, pos)
	}

	neighborDomains := make(map[connectivity.Direction]*indexset.Set)
	for _, d := range connectivity.Directions(s.in.Mode) {
		n := connectivity.Neighbor(s.in.Mode, pos, d, s.in.StartY)
		if !s.in.Region.Contains(n.X, n.Y) {
			continue
		}
		if v := s.committed[n]; v != -1 {
			singleton := indexset.NewEmpty(s.in.U)
			singleton.Add(v)
			neighborDomains[d] = singleton
		} else {
			neighborDomains[d] = s.domains[n]
		}
	}

	type scored struct {
		value int
		key   float64
	}
	scoredValues := make([]scored, len(members))
	for i, v := range members {
		lcv := float64(s.in.Conn.LCV(tileset.Index(v), neighborDomains))
		if fromHigh && highSet.Contains(v) {
			lcv -= largeOffset
		} else if !fromHigh {
			if pref, ok := s.in.Preferred[pos]; ok && int(pref) == v {
				lcv -= largeOffset
			}
		}
		scoredValues[i] = scored{value: v, key: lcv}
	}
	for i := 1; i < len(scoredValues); i++ {
		for j := i; j > 0 && scoredValues[j].key < scoredValues[j-1].key; j-- {
			scoredValues[j], scoredValues[j-1] = scoredValues[j-1], scoredValues[j]
		}
	}
	ordered := make([]int, len(scoredValues))
	for i, sv := range scoredValues {
		ordered[i] = sv.value
	}

	return &frame{
		pos:          pos,
		candidates:   ordered,
		fromHighPrio: fromHigh,
		highPrioSet:  highSet,
		savedDomain:  saved,
	}
}
