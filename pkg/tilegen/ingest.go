package tilegen

import (
	"fmt"

	"github.com/loomward/tilegen/pkg/builder"
	"github.com/loomward/tilegen/pkg/connectivity"
	"github.com/loomward/tilegen/pkg/model"
	"github.com/loomward/tilegen/pkg/tilemap"
	"github.com/loomward/tilegen/pkg/tileset"
)

// ingest builds the uniqueness map and connectivity table from a fresh set
// of example maps, per §4.1/§4.2's population rules: every cell's tile is
// interned; every enabled-direction in-bounds neighbor pair is observed;
// every border-matching cell's tile index is recorded on that border. When
// interpretEmptyAsTile is set the empty sentinel is interned up front and
// out-of-region/missing neighbors are treated as that sentinel for
// observation purposes; otherwise they are skipped entirely, per §4.2:
// "otherwise empty neighbors are skipped (not false)."
func ingest(examples []builder.ExampleMap, mode connectivity.Mode, tracked connectivity.BorderFlags, interpretEmptyAsTile bool) (*tileset.Table, *connectivity.Table, error) {
	layerCount := examples[0].Adapter.LayerCount()
	tiles := tileset.NewTable(examples[0].Adapter, layerCount)
	if interpretEmptyAsTile {
		if _, err := tiles.EnableEmptySentinel(); err != nil {
			return nil, nil, err
		}
	}

	type scanned struct {
		idx     []tileset.Index
		present []bool
		width   int
	}
	scans := make([]scanned, len(examples))

	for ei, ex := range examples {
		w, h := ex.Region.Width, ex.Region.Height
		idx := make([]tileset.Index, w*h)
		present := make([]bool, w*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				tile, err := readExampleTile(ex, model.Point{X: x, Y: y})
				if err != nil {
					return nil, nil, fmt.Errorf("tilegen: ingest: reading example %d at (%d,%d): %w", ei, x, y, err)
				}
				if tile.IsEmpty() && !interpretEmptyAsTile {
					continue
				}
				id, err := tiles.Intern(tile)
				if err != nil {
					return nil, nil, fmt.Errorf("tilegen: ingest: interning example %d at (%d,%d): %w", ei, x, y, err)
				}
				idx[y*w+x] = id
				present[y*w+x] = true
			}
		}
		scans[ei] = scanned{idx: idx, present: present, width: w}
	}

	conn := connectivity.NewTable(mode, tiles.Len(), tracked)
	for ei, ex := range examples {
		s := scans[ei]
		w, h := ex.Region.Width, ex.Region.Height
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if !s.present[y*w+x] {
					continue
				}
				a := s.idx[y*w+x]
				p := model.Point{X: x, Y: y}
				for _, d := range connectivity.Directions(mode) {
					n := connectivity.Neighbor(mode, p, d, ex.Region.OriginY)
					if ex.Region.Contains(n.X, n.Y) {
						if !s.present[n.Y*w+n.X] {
							continue
						}
						conn.Observe(d, a, s.idx[n.Y*w+n.X])
						continue
					}
					if bd, ok := connectivity.BorderDirectionFor(mode, d, p.Y, h); ok && tracked.Enabled(bd) {
						conn.SetBorder(bd, a)
					}
				}
			}
		}
	}
	return tiles, conn, nil
}

// readExampleTile reconstructs the full LayeredTile at a local region
// coordinate across every layer of ex's adapter.
func readExampleTile(ex builder.ExampleMap, p model.Point) (tileset.LayeredTile, error) {
	layerCount := ex.Adapter.LayerCount()
	layers := make([]tilemap.TileHandle, layerCount)
	for l := 0; l < layerCount; l++ {
		block, err := ex.Adapter.ReadBlock(model.Region{
			OriginX: ex.Region.OriginX + p.X,
			OriginY: ex.Region.OriginY + p.Y,
			Width:   1,
			Height:  1,
		}, l)
		if err != nil {
			return tileset.LayeredTile{}, err
		}
		if len(block) == 0 || len(block[0]) == 0 {
			continue
		}
		layers[l] = block[0][0]
	}
	return tileset.LayeredTile{Layers: layers}, nil
}
