package tileset

import (
	"testing"

	"github.com/loomward/tilegen/pkg/tilemap"
)

type testStringHash struct{}

func (testStringHash) HandleKey(h tilemap.TileHandle) (string, error) {
	s, _ := h.(string)
	return s, nil
}

func TestInternAssignsStableIndices(t *testing.T) {
	tbl := NewTable(testStringHash{}, 2)

	grass := LayeredTile{Layers: []tilemap.TileHandle{"ground", "grass"}}
	wall := LayeredTile{Layers: []tilemap.TileHandle{"ground", "wall"}}

	i1, err := tbl.Intern(grass)
	if err != nil {
		t.Fatal(err)
	}
	i2, err := tbl.Intern(wall)
	if err != nil {
		t.Fatal(err)
	}
	if i1 == i2 {
		t.Fatalf("distinct tiles must get distinct indices")
	}

	i1again, err := tbl.Intern(LayeredTile{Layers: []tilemap.TileHandle{"ground", "grass"}})
	if err != nil {
		t.Fatal(err)
	}
	if i1again != i1 {
		t.Fatalf("interning an equal tile must return the same index, got %d want %d", i1again, i1)
	}
	if tbl.Len() != 2 {
		t.Fatalf("expected 2 unique tiles, got %d", tbl.Len())
	}
}

func TestEnableEmptySentinelIdempotent(t *testing.T) {
	tbl := NewTable(testStringHash{}, 1)
	tbl.Intern(LayeredTile{Layers: []tilemap.TileHandle{"grass"}})

	idx1, err := tbl.EnableEmptySentinel()
	if err != nil {
		t.Fatal(err)
	}
	idx2, err := tbl.EnableEmptySentinel()
	if err != nil {
		t.Fatal(err)
	}
	if idx1 != idx2 {
		t.Fatalf("EnableEmptySentinel must be idempotent")
	}
	if !tbl.Tile(idx1).IsEmpty() {
		t.Fatalf("sentinel tile must be empty")
	}
}

func TestLookupMissingReturnsFalse(t *testing.T) {
	tbl := NewTable(testStringHash{}, 1)
	_, ok, err := tbl.Lookup(LayeredTile{Layers: []tilemap.TileHandle{"nope"}})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("expected Lookup to miss on an unseen tile")
	}
}

func TestMismatchedLayerCountErrors(t *testing.T) {
	tbl := NewTable(testStringHash{}, 2)
	_, err := tbl.Intern(LayeredTile{Layers: []tilemap.TileHandle{"only-one"}})
	if err == nil {
		t.Fatalf("expected error interning a tile with the wrong layer count")
	}
}
