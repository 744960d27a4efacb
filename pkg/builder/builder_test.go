package builder

import (
	"testing"

	"github.com/loomward/tilegen/pkg/connectivity"
	"github.com/loomward/tilegen/pkg/model"
	"github.com/loomward/tilegen/pkg/tilemap"
	"github.com/loomward/tilegen/pkg/tileset"
)

func checkerboard(w, h int) *tilemap.MemoryGrid {
	g := tilemap.NewMemoryGrid(w, h, 1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				g.Set(x, y, 0, "a")
			} else {
				g.Set(x, y, 0, "b")
			}
		}
	}
	return g
}

func ingestTiles(t *testing.T, grid *tilemap.MemoryGrid) *tileset.Table {
	t.Helper()
	tbl := tileset.NewTable(grid, 1)
	for y := 0; y < grid.Height(); y++ {
		for x := 0; x < grid.Width(); x++ {
			handle := grid.Get(x, y, 0)
			if _, err := tbl.Intern(tileset.LayeredTile{Layers: []tilemap.TileHandle{handle}}); err != nil {
				t.Fatal(err)
			}
		}
	}
	return tbl
}

func TestValidateExamplesRejectsZeroMaps(t *testing.T) {
	_, err := New(nil, Config{Epochs: 1}, nil, nil, nil, 1)
	ie, ok := err.(*IngestError)
	if !ok || ie.State != ZeroMaps {
		t.Fatalf("expected ZeroMaps ingest error, got %v", err)
	}
}

func TestValidateExamplesRejectsMismatchedLayers(t *testing.T) {
	one := tilemap.NewMemoryGrid(2, 2, 1)
	two := tilemap.NewMemoryGrid(2, 2, 2)
	examples := []ExampleMap{
		{Adapter: one, Region: model.Region{Width: 2, Height: 2}, Commonality: 1},
		{Adapter: two, Region: model.Region{Width: 2, Height: 2}, Commonality: 1},
	}
	_, err := New(examples, Config{Epochs: 1}, nil, nil, nil, 1)
	ie, ok := err.(*IngestError)
	if !ok || ie.State != MismatchedLayers {
		t.Fatalf("expected MismatchedLayers ingest error, got %v", err)
	}
}

func TestValidateExamplesRejectsInvalidCommonality(t *testing.T) {
	grid := checkerboard(2, 2)
	examples := []ExampleMap{{Adapter: grid, Region: model.Region{Width: 2, Height: 2}, Commonality: 0}}
	_, err := New(examples, Config{Epochs: 1}, nil, nil, nil, 1)
	ie, ok := err.(*IngestError)
	if !ok || ie.State != InvalidCommonality {
		t.Fatalf("expected InvalidCommonality ingest error, got %v", err)
	}
}

func TestRunTrainsWithoutErrorAndReportsSuccess(t *testing.T) {
	grid := checkerboard(4, 4)
	tiles := ingestTiles(t, grid)
	conn := connectivity.NewTable(connectivity.Four, tiles.Len(), connectivity.BorderFlags{})

	examples := []ExampleMap{
		{Adapter: grid, Region: model.Region{Width: 4, Height: 4}, Commonality: 1},
	}
	cfg := Config{
		Radius:             1,
		Mode:               connectivity.Four,
		InterpretEmptyTile: true,
		LRStart:            0.2,
		LREnd:              0.05,
		Epochs:             5,
		BuildMode:          FreshFresh,
	}
	tr, err := New(examples, cfg, tiles, conn, nil, 99)
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Run(); err != nil {
		t.Fatalf("Run returned an error: %v", err)
	}
	p := tr.Progress()
	if p.State != Success {
		t.Fatalf("expected Success state, got %v", p.State)
	}
	if p.Epoch != cfg.Epochs {
		t.Fatalf("expected epoch counter to reach %d, got %d", cfg.Epochs, p.Epoch)
	}
}

func TestAbortStopsBeforeCompletingAllEpochs(t *testing.T) {
	grid := checkerboard(4, 4)
	tiles := ingestTiles(t, grid)
	conn := connectivity.NewTable(connectivity.Four, tiles.Len(), connectivity.BorderFlags{})
	examples := []ExampleMap{{Adapter: grid, Region: model.Region{Width: 4, Height: 4}, Commonality: 1}}
	cfg := Config{Radius: 1, Mode: connectivity.Four, InterpretEmptyTile: true, LRStart: 0.1, LREnd: 0.1, Epochs: 1000}
	tr, err := New(examples, cfg, tiles, conn, nil, 5)
	if err != nil {
		t.Fatal(err)
	}
	tr.Abort()
	if err := tr.Run(); err != nil {
		t.Fatal(err)
	}
	if tr.Progress().State != Cancelled {
		t.Fatalf("expected Cancelled after Abort, got %v", tr.Progress().State)
	}
}
