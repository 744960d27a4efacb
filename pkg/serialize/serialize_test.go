package serialize

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/loomward/tilegen/pkg/connectivity"
	"github.com/loomward/tilegen/pkg/tilemap"
	"github.com/loomward/tilegen/pkg/tileset"
	"github.com/loomward/tilegen/pkg/weights"
)

func buildGenerator(t *testing.T) *Generator {
	t.Helper()
	grid := tilemap.NewMemoryGrid(2, 2, 1)
	grid.Set(0, 0, 0, "a")
	grid.Set(1, 0, 0, "b")
	grid.Set(0, 1, 0, nil)
	grid.Set(1, 1, 0, "a")

	tiles := tileset.NewTable(grid, 1)
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			if _, err := tiles.Intern(tileset.LayeredTile{Layers: []tilemap.TileHandle{grid.Get(x, y, 0)}}); err != nil {
				t.Fatal(err)
			}
		}
	}

	conn := connectivity.NewTable(connectivity.Four, tiles.Len(), connectivity.BorderFlags{Top: true, Left: true})
	conn.Observe(connectivity.Right, 0, 1)
	conn.SetBorder(connectivity.Top, 1)

	w := weights.New(tiles.Len(), 3, rand.New(rand.NewSource(7)))
	w.Epochs = 4

	return &Generator{
		Tiles:             tiles,
		Conn:              conn,
		Weights:           w,
		Radius:            1,
		AcknowledgeBounds: connectivity.BorderFlags{Top: true},
	}
}

func TestSaveLoadRoundTripsTiles(t *testing.T) {
	gen := buildGenerator(t)
	path := filepath.Join(t.TempDir(), "generator.json")
	if err := Save(path, gen); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Tiles.Len() != gen.Tiles.Len() {
		t.Fatalf("expected %d tiles, got %d", gen.Tiles.Len(), loaded.Tiles.Len())
	}
	for i := 0; i < gen.Tiles.Len(); i++ {
		want := gen.Tiles.Tile(tileset.Index(i))
		got := loaded.Tiles.Tile(tileset.Index(i))
		if want.IsEmpty() != got.IsEmpty() {
			t.Fatalf("tile %d: emptiness mismatch", i)
		}
	}
}

func TestSaveLoadRoundTripsConnectivity(t *testing.T) {
	gen := buildGenerator(t)
	path := filepath.Join(t.TempDir(), "generator.json")
	if err := Save(path, gen); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !loaded.Conn.Get(connectivity.Right, 0, 1) {
		t.Fatal("expected observed pair to survive round trip")
	}
	if !loaded.Conn.Get(connectivity.Left, 1, 0) {
		t.Fatal("expected symmetric opposite-direction pair to survive round trip")
	}
	if !loaded.Conn.GetBorder(connectivity.Top, 1) {
		t.Fatal("expected border observation to survive round trip")
	}
	if loaded.Conn.TracksBorder(connectivity.Bottom) {
		t.Fatal("did not expect an untracked border direction to appear after round trip")
	}
}

func TestSaveLoadRoundTripsWeights(t *testing.T) {
	gen := buildGenerator(t)
	path := filepath.Join(t.TempDir(), "generator.json")
	if err := Save(path, gen); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Weights.Epochs != gen.Weights.Epochs {
		t.Fatalf("expected epochs %d, got %d", gen.Weights.Epochs, loaded.Weights.Epochs)
	}
	for c := 0; c < gen.Weights.U; c++ {
		if loaded.Weights.Bias(c) != gen.Weights.Bias(c) {
			t.Fatalf("bias %d: expected %v, got %v", c, gen.Weights.Bias(c), loaded.Weights.Bias(c))
		}
	}
	if loaded.Weights.Get(0, 0, 0, 0) != gen.Weights.Get(0, 0, 0, 0) {
		t.Fatal("expected a sampled weight value to survive round trip")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generator.json")
	if err := os.WriteFile(path, []byte(`{"layerCount": 1, "bogusField": true}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an unknown top-level field")
	}
}
