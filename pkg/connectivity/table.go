// Package connectivity implements the ConnectivityTable: the dense boolean
// adjacency and border relations learned from the example maps during
// ingest, and read (never written) during generation by AC-3 revision and
// the LCV heuristic. See the teacher's adjacency-list style graph packages
// (katalvlaran-lvlath's graph/core) for the general "dense table over small
// integer indices" shape this borrows, generalized here to per-direction
// boolean tables rather than a single weighted adjacency matrix.
package connectivity

import (
	"fmt"

	"github.com/loomward/tilegen/pkg/indexset"
	"github.com/loomward/tilegen/pkg/tileset"
)

// BorderFlags marks which of the rectangle's four edges are tracked or
// enforced; the same struct shape is reused for "which borders does the
// table record" at ingest time and "which borders must be enforced" at
// generation time (acknowledgeBounds / enforceBorderConnectivity).
type BorderFlags struct {
	Top, Bottom, Left, Right bool
}

// Enabled reports whether d is one of the flagged border directions. Only
// Top/Bottom/Left/Right are meaningful border directions; any other value
// reports false.
func (b BorderFlags) Enabled(d Direction) bool {
	switch d {
	case Top:
		return b.Top
	case Bottom:
		return b.Bottom
	case Left:
		return b.Left
	case Right:
		return b.Right
	default:
		return false
	}
}

// Any reports whether at least one border direction is flagged.
func (b BorderFlags) Any() bool {
	return b.Top || b.Bottom || b.Left || b.Right
}

// Table is the ConnectivityTable: per supported direction, a dense U×U
// boolean "was this pair ever observed as neighbors" relation, plus a
// dense U border-observed relation per enabled border direction.
type Table struct {
	Mode Mode
	U    int

	pairs   map[Direction][]bool // pairs[d][a*U+b]
	borders map[Direction][]bool // borders[d][a]
}

// NewTable creates an empty table for the given mode, unique-tile count u,
// and set of tracked border directions.
func NewTable(mode Mode, u int, tracked BorderFlags) *Table {
	t := &Table{
		Mode:    mode,
		U:       u,
		pairs:   make(map[Direction][]bool, len(Directions(mode))),
		borders: make(map[Direction][]bool, 4),
	}
	for _, d := range Directions(mode) {
		t.pairs[d] = make([]bool, u*u)
	}
	for _, d := range BorderDirections {
		if tracked.Enabled(d) {
			t.borders[d] = make([]bool, u)
		}
	}
	return t
}

// Get reports whether tile a was ever observed with tile b as a neighbor in
// direction d.
func (t *Table) Get(d Direction, a, b tileset.Index) bool {
	row, ok := t.pairs[d]
	if !ok {
		return false
	}
	return row[int(a)*t.U+int(b)]
}

// set marks a as having been observed with b as a neighbor in direction d.
func (t *Table) set(d Direction, a, b tileset.Index) {
	row, ok := t.pairs[d]
	if !ok {
		return
	}
	row[int(a)*t.U+int(b)] = true
}

// GetBorder reports whether tile a was ever observed on border d. Reports
// false (never true) for a border direction the table isn't tracking.
func (t *Table) GetBorder(d Direction, a tileset.Index) bool {
	row, ok := t.borders[d]
	if !ok {
		return false
	}
	return row[int(a)]
}

// SetBorder marks a as observed on border d.
func (t *Table) SetBorder(d Direction, a tileset.Index) {
	row, ok := t.borders[d]
	if !ok {
		return
	}
	row[int(a)] = true
}

// TracksBorder reports whether the table was constructed to track border
// direction d.
func (t *Table) TracksBorder(d Direction) bool {
	_, ok := t.borders[d]
	return ok
}

// Observe records that tile a had tile b as a neighbor in direction d
// during ingest, and symmetrically that b had a as a neighbor in d's
// opposite direction — "the A↔B fact populates both A-right-of-B and
// B-left-of-A semantics through the training sweep" per the data model.
func (t *Table) Observe(d Direction, a, b tileset.Index) {
	t.set(d, a, b)
	t.set(d.Opposite(), b, a)
}

// LCV returns the least-constraining-value score for assigning value at a
// cell whose in-bounds neighbors (keyed by the direction toward them) have
// the given current domains: the count of candidate values across all
// neighbor domains that assigning value would eliminate, i.e. for which no
// supporter exists. Smaller is better.
func (t *Table) LCV(value tileset.Index, neighborDomains map[Direction]*indexset.Set) int {
	eliminated := 0
	for d, domain := range neighborDomains {
		if domain == nil {
			continue
		}
		domain.Each(func(b int) {
			if !t.Get(d, value, tileset.Index(b)) {
				eliminated++
			}
		})
	}
	return eliminated
}

// PairTables returns a copy of the per-direction U×U observed-pair tables,
// keyed by direction name, for persistence by pkg/serialize.
func (t *Table) PairTables() map[string][]bool {
	out := make(map[string][]bool, len(t.pairs))
	for d, row := range t.pairs {
		cp := make([]bool, len(row))
		copy(cp, row)
		out[d.String()] = cp
	}
	return out
}

// BorderTables returns a copy of the per-direction observed-border tables,
// keyed by direction name, for persistence by pkg/serialize. Only the
// directions this table was constructed to track are present.
func (t *Table) BorderTables() map[string][]bool {
	out := make(map[string][]bool, len(t.borders))
	for d, row := range t.borders {
		cp := make([]bool, len(row))
		copy(cp, row)
		out[d.String()] = cp
	}
	return out
}

// directionByName inverts Direction.String for the fixed set of names this
// package ever produces.
func directionByName(name string) (Direction, bool) {
	for d := Direction(0); d < directionCount; d++ {
		if d.String() == name {
			return d, true
		}
	}
	return 0, false
}

// NewTableFromTables rebuilds a Table from the pair/border tables produced
// by PairTables/BorderTables, for a generator document being loaded back
// from disk.
func NewTableFromTables(mode Mode, u int, pairs, borders map[string][]bool) *Table {
	t := &Table{
		Mode:    mode,
		U:       u,
		pairs:   make(map[Direction][]bool, len(pairs)),
		borders: make(map[Direction][]bool, len(borders)),
	}
	for name, row := range pairs {
		if d, ok := directionByName(name); ok {
			cp := make([]bool, len(row))
			copy(cp, row)
			t.pairs[d] = cp
		}
	}
	for name, row := range borders {
		if d, ok := directionByName(name); ok {
			cp := make([]bool, len(row))
			copy(cp, row)
			t.borders[d] = cp
		}
	}
	return t
}

// String renders a compact human-readable summary, used by the inspect
// command.
func (t *Table) String() string {
	return fmt.Sprintf("connectivity{mode=%s, U=%d, directions=%d, borders=%d}", t.Mode, t.U, len(t.pairs), len(t.borders))
}
