package tilegen

import (
	"testing"

	"github.com/loomward/tilegen/pkg/builder"
	"github.com/loomward/tilegen/pkg/connectivity"
	"github.com/loomward/tilegen/pkg/model"
	"github.com/loomward/tilegen/pkg/tilegen/config"
	"github.com/loomward/tilegen/pkg/tilemap"
)

// TestScenarioIdentity is S1: training on a uniform example collapses
// generation on an empty region to the same single tile everywhere.
func TestScenarioIdentity(t *testing.T) {
	grid := tilemap.NewMemoryGrid(5, 5, 1)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			grid.Set(x, y, 0, "G")
		}
	}
	examples := []builder.ExampleMap{{Adapter: grid, Region: model.Region{Width: 5, Height: 5}, Commonality: 1}}
	cfg := config.BuildConfig{
		Radius: 1, Mode: connectivity.Four, LRStart: 0.5, LREnd: 0.05,
		Epochs: 1000, BuildMode: builder.FreshFresh, Seed: 1,
	}
	h, err := Build(examples, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Wait(); err != nil {
		t.Fatal(err)
	}
	if h.Progress().LossLast >= 1e-3 {
		t.Fatalf("expected loss to collapse near zero on a single-tile alphabet, got %v", h.Progress().LossLast)
	}
	gen := h.Generator()

	out := tilemap.NewMemoryGrid(5, 5, 1)
	seed := int64(7)
	if err := Generate(gen, out, model.Region{Width: 5, Height: 5}, config.GenerateConfig{Seed: &seed}); err != nil {
		t.Fatal(err)
	}
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			if out.Get(x, y, 0) != "G" {
				t.Fatalf("expected every cell to be G, got %v at (%d,%d)", out.Get(x, y, 0), x, y)
			}
		}
	}
}

// wgsExample builds the 4x4 W/G/S example shared by S2 and S3: W only ever
// neighbors W or S; G only ever neighbors G or S; W and G are never
// observed adjacent to each other.
func wgsExample() *tilemap.MemoryGrid {
	grid := tilemap.NewMemoryGrid(4, 4, 1)
	rows := [4][4]string{
		{"W", "W", "S", "G"},
		{"W", "W", "S", "G"},
		{"S", "S", "S", "S"},
		{"G", "G", "S", "W"},
	}
	for y, row := range rows {
		for x, tile := range row {
			grid.Set(x, y, 0, tile)
		}
	}
	return grid
}

func trainWGS(t *testing.T) *Generator {
	t.Helper()
	examples := []builder.ExampleMap{{Adapter: wgsExample(), Region: model.Region{Width: 4, Height: 4}, Commonality: 1}}
	cfg := config.BuildConfig{
		Radius: 1, Mode: connectivity.Four, LRStart: 0.4, LREnd: 0.05,
		Epochs: 300, BuildMode: builder.FreshFresh, Seed: 3,
	}
	h, err := Build(examples, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Wait(); err != nil {
		t.Fatal(err)
	}
	return h.Generator()
}

// TestScenarioPureConstraint is S2: with W-G adjacency never observed, a
// generation seeded with a W at its center never places a G next to it.
func TestScenarioPureConstraint(t *testing.T) {
	gen := trainWGS(t)
	out := tilemap.NewMemoryGrid(6, 6, 1)
	out.Set(3, 3, 0, "W")
	seed := int64(5)
	err := Generate(gen, out, model.Region{Width: 6, Height: 6}, config.GenerateConfig{Seed: &seed})
	if err != nil {
		t.Fatal(err)
	}
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			if out.Get(x, y, 0) != "W" {
				continue
			}
			for _, d := range [][2]int{{0, 1}, {0, -1}, {1, 0}, {-1, 0}} {
				nx, ny := x+d[0], y+d[1]
				if nx < 0 || nx >= 6 || ny < 0 || ny >= 6 {
					continue
				}
				if out.Get(nx, ny, 0) == "G" {
					t.Fatalf("found G adjacent to W at (%d,%d)-(%d,%d), which was never observed", x, y, nx, ny)
				}
			}
		}
	}
}

// TestScenarioUnsatisfiableWithoutForceful is S3: two adjacent preexisting
// tiles whose adjacency was never observed (W next to G) make plain
// generation fail, but forceful repair still produces a full, internally
// consistent assignment.
func TestScenarioUnsatisfiableWithoutForceful(t *testing.T) {
	gen := trainWGS(t)

	out := tilemap.NewMemoryGrid(2, 1, 1)
	out.Set(0, 0, 0, "G")
	out.Set(1, 0, 0, "W")
	seed := int64(9)

	err := Generate(gen, out, model.Region{Width: 2, Height: 1}, config.GenerateConfig{Seed: &seed})
	if err == nil {
		t.Fatal("expected generation to fail on a directly-contradictory preexisting pair without forceful")
	}

	out2 := tilemap.NewMemoryGrid(2, 1, 1)
	out2.Set(0, 0, 0, "G")
	out2.Set(1, 0, 0, "W")
	if err := Generate(gen, out2, model.Region{Width: 2, Height: 1}, config.GenerateConfig{Seed: &seed, Forceful: true}); err != nil {
		t.Fatalf("expected forceful repair to succeed, got %v", err)
	}
	if out2.Get(0, 0, 0) == "G" && out2.Get(1, 0, 0) == "W" {
		t.Fatal("forceful repair produced an internally-inconsistent result: G next to W was never observed")
	}
}

// TestScenarioBorderEnforcement is S4: when S is the only tile ever seen on
// the enforced bottom border, every cell of the bottom row (y=0, per this
// codebase's lower-left origin convention — Bottom decreases y) comes out S.
func TestScenarioBorderEnforcement(t *testing.T) {
	grid := tilemap.NewMemoryGrid(4, 4, 1)
	for x := 0; x < 4; x++ {
		grid.Set(x, 0, 0, "S")
	}
	for y := 1; y < 4; y++ {
		for x := 0; x < 4; x++ {
			grid.Set(x, y, 0, "G")
		}
	}
	examples := []builder.ExampleMap{{Adapter: grid, Region: model.Region{Width: 4, Height: 4}, Commonality: 1}}
	cfg := config.BuildConfig{
		Radius: 1, Mode: connectivity.Four,
		TrackedBorders:    connectivity.BorderFlags{Bottom: true},
		AcknowledgeBounds: connectivity.BorderFlags{Bottom: true},
		LRStart:           0.4, LREnd: 0.05, Epochs: 400, BuildMode: builder.FreshFresh, Seed: 2,
	}
	h, err := Build(examples, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Wait(); err != nil {
		t.Fatal(err)
	}
	gen := h.Generator()

	out := tilemap.NewMemoryGrid(4, 4, 1)
	seed := int64(11)
	err = Generate(gen, out, model.Region{Width: 4, Height: 4}, config.GenerateConfig{
		Seed: &seed, EnforceBorderConnectivity: connectivity.BorderFlags{Bottom: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	for x := 0; x < 4; x++ {
		if out.Get(x, 0, 0) != "S" {
			t.Fatalf("expected row y=0 to be all S, got %v at x=%d", out.Get(x, 0, 0), x)
		}
	}
}

// TestScenarioHexBorderEnforcement is S4 under Hex connectivity: Hex carries
// vertical adjacency entirely through its four diagonal directions, so the
// bottom border must be learned and enforced through BottomLeft/BottomRight
// rather than a literal Bottom direction. Same fixture as
// TestScenarioBorderEnforcement, Hex mode instead of Four.
func TestScenarioHexBorderEnforcement(t *testing.T) {
	grid := tilemap.NewMemoryGrid(4, 4, 1)
	for x := 0; x < 4; x++ {
		grid.Set(x, 0, 0, "S")
	}
	for y := 1; y < 4; y++ {
		for x := 0; x < 4; x++ {
			grid.Set(x, y, 0, "G")
		}
	}
	examples := []builder.ExampleMap{{Adapter: grid, Region: model.Region{Width: 4, Height: 4}, Commonality: 1}}
	cfg := config.BuildConfig{
		Radius: 1, Mode: connectivity.Hex,
		TrackedBorders:    connectivity.BorderFlags{Bottom: true},
		AcknowledgeBounds: connectivity.BorderFlags{Bottom: true},
		LRStart:           0.4, LREnd: 0.05, Epochs: 400, BuildMode: builder.FreshFresh, Seed: 2,
	}
	h, err := Build(examples, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Wait(); err != nil {
		t.Fatal(err)
	}
	gen := h.Generator()

	out := tilemap.NewMemoryGrid(4, 4, 1)
	seed := int64(11)
	err = Generate(gen, out, model.Region{Width: 4, Height: 4}, config.GenerateConfig{
		Seed: &seed, EnforceBorderConnectivity: connectivity.BorderFlags{Bottom: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	for x := 0; x < 4; x++ {
		if out.Get(x, 0, 0) != "S" {
			t.Fatalf("expected row y=0 to be all S, got %v at x=%d", out.Get(x, 0, 0), x)
		}
	}
}
