// Package serialize persists and reloads a trained generator as a single
// JSON document: tileset, connectivity tables, weights, and the
// neighborhood/mode/border configuration needed to reconstruct every other
// package's state exactly. Grounded on the teacher's
// pkg/common.SaveModuleRegistry/LoadModuleRegistry (json.MarshalIndent,
// atomic temp-file-then-rename write, DisallowUnknownFields on read).
package serialize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/loomward/tilegen/pkg/connectivity"
	"github.com/loomward/tilegen/pkg/tileset"
	"github.com/loomward/tilegen/pkg/weights"
)

// weightsDoc is the on-disk shape of the GeneratorWeights tensor: a flat
// array plus the shape needed to reinterpret it.
type weightsDoc struct {
	U             int       `json:"u"`
	S             int       `json:"s"`
	F             int       `json:"f"`
	Data          []float32 `json:"data"`
	Bias          []float32 `json:"bias"`
	EpochsTrained int       `json:"epochsTrained"`
}

// connectivityDoc is the on-disk shape of one ConnectivityTable: per
// direction, a flat U×U bool array, plus the per-direction border arrays
// that were actually tracked.
type connectivityDoc struct {
	Mode    string            `json:"mode"`
	U       int               `json:"u"`
	Pairs   map[string][]bool `json:"pairs"`
	Borders map[string][]bool `json:"borders"`
}

// Document is the full persisted generator: every field needed to rebuild
// the tileset, connectivity table, and weight tensor without any of the
// example maps present on disk again.
type Document struct {
	LayerCount        int               `json:"layerCount"`
	Tiles             [][]*string       `json:"tiles"`
	Radius            int               `json:"radius"`
	AcknowledgeBounds connectivity.BorderFlags `json:"acknowledgeBounds"`
	Connectivity      connectivityDoc   `json:"connectivity"`
	Weights           weightsDoc        `json:"weights"`
}

// Generator bundles the in-memory state a Document round-trips: the
// uniqueness map, the learned adjacency table, the weight tensor, and the
// neighborhood radius/border-acknowledgement flags the engine needs.
type Generator struct {
	Tiles             *tileset.Table
	Conn              *connectivity.Table
	Weights           *weights.Weights
	Radius            int
	AcknowledgeBounds connectivity.BorderFlags
}

// Save renders gen as a Document and writes it to path, pretty-printed with
// a two-space indent to match the teacher's registry format, via a
// temp-file-then-rename so a crash mid-write never leaves a truncated file
// at path.
func Save(path string, gen *Generator) error {
	doc, err := toDocument(gen)
	if err != nil {
		return fmt.Errorf("serialize: building document: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize: marshaling generator: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("serialize: creating directory %s: %w", dir, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("serialize: writing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("serialize: renaming temp file into place: %w", err)
	}
	return nil
}

// Load reads path and rebuilds the generator state it describes.
func Load(path string) (*Generator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("serialize: reading %s: %w", path, err)
	}
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("serialize: parsing %s: %w", path, err)
	}
	return fromDocument(&doc)
}

func toDocument(gen *Generator) (*Document, error) {
	keys, err := gen.Tiles.Keys()
	if err != nil {
		return nil, err
	}
	mode, ok := parseModeName(gen.Conn.Mode)
	if !ok {
		return nil, fmt.Errorf("serialize: unknown connectivity mode %v", gen.Conn.Mode)
	}
	return &Document{
		LayerCount:        gen.Tiles.LayerCount(),
		Tiles:             keys,
		Radius:            gen.Radius,
		AcknowledgeBounds: gen.AcknowledgeBounds,
		Connectivity: connectivityDoc{
			Mode:    mode,
			U:       gen.Conn.U,
			Pairs:   gen.Conn.PairTables(),
			Borders: gen.Conn.BorderTables(),
		},
		Weights: weightsDoc{
			U:             gen.Weights.U,
			S:             gen.Weights.S,
			F:             weights.FeatureWidth(gen.Weights.U),
			Data:          gen.Weights.Data(),
			Bias:          gen.Weights.BiasData(),
			EpochsTrained: gen.Weights.Epochs,
		},
	}, nil
}

func fromDocument(doc *Document) (*Generator, error) {
	mode, ok := connectivity.ParseMode(doc.Connectivity.Mode)
	if !ok {
		return nil, fmt.Errorf("serialize: unknown connectivity mode %q", doc.Connectivity.Mode)
	}
	w, err := weights.FromData(doc.Weights.U, doc.Weights.S, doc.Weights.EpochsTrained, doc.Weights.Data, doc.Weights.Bias)
	if err != nil {
		return nil, fmt.Errorf("serialize: rebuilding weights: %w", err)
	}
	return &Generator{
		Tiles:             tileset.NewTableFromKeys(doc.LayerCount, doc.Tiles),
		Conn:              connectivity.NewTableFromTables(mode, doc.Connectivity.U, doc.Connectivity.Pairs, doc.Connectivity.Borders),
		Weights:           w,
		Radius:            doc.Radius,
		AcknowledgeBounds: doc.AcknowledgeBounds,
	}, nil
}

// parseModeName is the inverse of connectivity.ParseMode restricted to the
// canonical spelling connectivity.Mode.String() produces, so a document we
// wrote ourselves always round-trips even though ParseMode also accepts the
// CLI's looser spellings ("4", "8").
func parseModeName(m connectivity.Mode) (string, bool) {
	switch m {
	case connectivity.Four, connectivity.Eight, connectivity.Hex:
		return m.String(), true
	default:
		return "", false
	}
}
