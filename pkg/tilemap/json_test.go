package tilemap

import (
	"path/filepath"
	"testing"
)

func TestSaveLoadGridRoundTrips(t *testing.T) {
	g := NewMemoryGrid(2, 2, 2)
	g.Set(0, 0, 0, "a")
	g.Set(1, 1, 0, "b")
	g.Set(0, 0, 1, "deco")

	path := filepath.Join(t.TempDir(), "grid.json")
	if err := SaveGrid(path, g); err != nil {
		t.Fatal(err)
	}
	got, err := LoadGrid(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Width() != 2 || got.Height() != 2 || got.LayerCount() != 2 {
		t.Fatalf("unexpected dimensions: %dx%d x%d", got.Width(), got.Height(), got.LayerCount())
	}
	if got.Get(0, 0, 0) != "a" || got.Get(1, 1, 0) != "b" || got.Get(0, 0, 1) != "deco" {
		t.Fatal("handles did not round-trip")
	}
	if got.Get(1, 0, 0) != nil {
		t.Fatal("expected unset cell to stay nil")
	}
}
