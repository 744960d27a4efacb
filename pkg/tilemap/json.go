package tilemap

import (
	"encoding/json"
	"fmt"
	"os"
)

// jsonGrid is the on-disk shape for a MemoryGrid, used by the CLI's
// generate/inspect/validate commands which have no host editor to read
// from or write to. Handles are persisted as strings (empty string means
// unset), matching MemoryGrid's own HandleKey convention.
type jsonGrid struct {
	Width  int        `json:"width"`
	Height int        `json:"height"`
	Layers [][]string `json:"layers"`
}

// SaveGrid writes g to path as JSON, atomically (write-to-temp then
// rename), matching the atomic-write convention used for saved generators.
func SaveGrid(path string, g *MemoryGrid) error {
	doc := jsonGrid{Width: g.width, Height: g.height, Layers: make([][]string, len(g.layers))}
	for l, layer := range g.layers {
		row := make([]string, len(layer))
		for i, h := range layer {
			if h == nil {
				continue
			}
			s, err := g.HandleKey(h)
			if err != nil {
				return fmt.Errorf("tilemap: encoding layer %d cell %d: %w", l, i, err)
			}
			row[i] = s
		}
		doc.Layers[l] = row
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("tilemap: marshaling grid: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("tilemap: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("tilemap: renaming %s to %s: %w", tmp, path, err)
	}
	return nil
}

// LoadGrid reads a grid previously written by SaveGrid. Empty-string cells
// come back as nil (unset).
func LoadGrid(path string) (*MemoryGrid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tilemap: reading %s: %w", path, err)
	}
	var doc jsonGrid
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("tilemap: parsing %s: %w", path, err)
	}
	g := NewMemoryGrid(doc.Width, doc.Height, len(doc.Layers))
	for l, row := range doc.Layers {
		for i, s := range row {
			if s == "" {
				continue
			}
			g.layers[l][i] = s
		}
	}
	return g, nil
}
