package tilemap

import (
	"fmt"

	"github.com/loomward/tilegen/pkg/model"
)

// MemoryGrid is a reference Adapter backed by a plain in-process grid of
// comparable handles (typically strings, matching the teacher's own
// "tile letter" conventions in its ASCII rendering). It exists for tests
// and for the CLI's own train/generate/inspect commands, which have no host
// editor to integrate with.
type MemoryGrid struct {
	width, height int
	layers        [][]TileHandle // layers[layer][y*width+x]
}

// NewMemoryGrid creates a width x height grid with the given number of
// layers, all cells initially nil (unset).
func NewMemoryGrid(width, height, layerCount int) *MemoryGrid {
	g := &MemoryGrid{width: width, height: height}
	g.layers = make([][]TileHandle, layerCount)
	for l := range g.layers {
		g.layers[l] = make([]TileHandle, width*height)
	}
	return g
}

func (g *MemoryGrid) index(x, y int) int {
	return y*g.width + x
}

func (g *MemoryGrid) inBounds(x, y int) bool {
	return x >= 0 && x < g.width && y >= 0 && y < g.height
}

// Set writes handle at (x,y) on layer without going through the Adapter
// error path; used to seed test fixtures.
func (g *MemoryGrid) Set(x, y, layer int, handle TileHandle) {
	g.layers[layer][g.index(x, y)] = handle
}

// Get returns the handle at (x,y) on layer, or nil if unset or out of
// bounds.
func (g *MemoryGrid) Get(x, y, layer int) TileHandle {
	if !g.inBounds(x, y) || layer < 0 || layer >= len(g.layers) {
		return nil
	}
	return g.layers[layer][g.index(x, y)]
}

// Width returns the grid's width.
func (g *MemoryGrid) Width() int { return g.width }

// Height returns the grid's height.
func (g *MemoryGrid) Height() int { return g.height }

// Region returns the full-extent region covering this grid at origin
// (0,0), the shape every CLI command treats a loaded example/output file
// as occupying.
func (g *MemoryGrid) Region() model.Region {
	return model.Region{Width: g.width, Height: g.height}
}

// LayerCount implements Adapter.
func (g *MemoryGrid) LayerCount() int { return len(g.layers) }

// ReadBlock implements Adapter.
func (g *MemoryGrid) ReadBlock(region model.Region, layer int) ([][]TileHandle, error) {
	if layer < 0 || layer >= len(g.layers) {
		return nil, fmt.Errorf("tilemap: layer %d out of range [0,%d)", layer, len(g.layers))
	}
	out := make([][]TileHandle, region.Height)
	for y := 0; y < region.Height; y++ {
		row := make([]TileHandle, region.Width)
		for x := 0; x < region.Width; x++ {
			row[x] = g.Get(region.OriginX+x, region.OriginY+y, layer)
		}
		out[y] = row
	}
	return out, nil
}

// WriteTile implements Adapter.
func (g *MemoryGrid) WriteTile(x, y, layer int, handle TileHandle) error {
	if !g.inBounds(x, y) {
		return fmt.Errorf("tilemap: coordinate (%d,%d) out of bounds %dx%d", x, y, g.width, g.height)
	}
	if layer < 0 || layer >= len(g.layers) {
		return fmt.Errorf("tilemap: layer %d out of range [0,%d)", layer, len(g.layers))
	}
	g.layers[layer][g.index(x, y)] = handle
	return nil
}

// OccupiedBounds implements Adapter.
func (g *MemoryGrid) OccupiedBounds(layer int) (model.Region, bool, error) {
	if layer < 0 || layer >= len(g.layers) {
		return model.Region{}, false, fmt.Errorf("tilemap: layer %d out of range [0,%d)", layer, len(g.layers))
	}
	minX, minY, maxX, maxY := g.width, g.height, -1, -1
	found := false
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			if g.layers[layer][g.index(x, y)] == nil {
				continue
			}
			found = true
			if x < minX {
				minX = x
			}
			if y < minY {
				minY = y
			}
			if x > maxX {
				maxX = x
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if !found {
		return model.Region{}, false, nil
	}
	return model.Region{OriginX: minX, OriginY: minY, Width: maxX - minX + 1, Height: maxY - minY + 1}, true, nil
}

// Equal implements Adapter using Go's == for comparable underlying values
// (strings, ints, and similar are the expected common case); handles of
// differing dynamic type are never equal.
func (g *MemoryGrid) Equal(a, b TileHandle) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a == b
}

// HandleKey implements Hashable. MemoryGrid handles are expected to be
// comparable scalars (string tile IDs in the common case), so fmt.Sprint
// gives a stable, collision-free key for the values this adapter actually
// produces.
func (g *MemoryGrid) HandleKey(h TileHandle) (string, error) {
	if h == nil {
		return "", nil
	}
	return fmt.Sprint(h), nil
}
