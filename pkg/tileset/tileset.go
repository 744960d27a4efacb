// Package tileset implements the LayeredTile value type and the
// uniqueness map that assigns each distinct LayeredTile a stable small
// integer TileIndex during ingest.
package tileset

import (
	"fmt"
	"strings"

	"github.com/loomward/tilegen/pkg/tilemap"
)

// Index is a TileIndex: a non-negative integer in [0, U) that stays stable
// for the lifetime of a trained generator.
type Index int

// LayeredTile is the ordered tuple of per-layer tile handles that make up
// one cell's content. A nil entry at layer i means "no tile on this layer".
// Two LayeredTiles are equal iff they agree, layer by layer, under the
// owning tilemap.Adapter's Equal.
type LayeredTile struct {
	Layers []tilemap.TileHandle
}

// IsEmpty reports whether every layer of t is nil — the "empty" sentinel
// tuple.
func (t LayeredTile) IsEmpty() bool {
	for _, h := range t.Layers {
		if h != nil {
			return false
		}
	}
	return true
}

// key computes a layer-joined string key for t using the adapter's
// Hashable.HandleKey, so equal LayeredTiles always produce the same key
// regardless of the handles' concrete dynamic type.
func (t LayeredTile) key(hash tilemap.Hashable) (string, error) {
	var b strings.Builder
	for i, h := range t.Layers {
		if i > 0 {
			b.WriteByte('\x1f') // unit separator: handles are free-form strings
		}
		if h == nil {
			b.WriteString("∅")
			continue
		}
		k, err := hash.HandleKey(h)
		if err != nil {
			return "", fmt.Errorf("tileset: hashing layer %d: %w", i, err)
		}
		b.WriteString(k)
	}
	return b.String(), nil
}

// Table is the uniqueness map populated during ingest: it assigns every
// distinct LayeredTile observed across the example maps a stable Index, in
// first-seen order, and exposes the reverse mapping for writeback.
type Table struct {
	hash       tilemap.Hashable
	layerCount int
	byKey      map[string]Index
	tiles      []LayeredTile
	emptyIndex Index
	hasEmpty   bool
}

// NewTable creates an empty uniqueness table for tiles with layerCount
// layers, hashed via hash (normally the same Adapter used to read the
// example maps).
func NewTable(hash tilemap.Hashable, layerCount int) *Table {
	return &Table{
		hash:       hash,
		layerCount: layerCount,
		byKey:      make(map[string]Index),
		tiles:      make([]LayeredTile, 0, 16),
	}
}

// LayerCount returns the fixed layer count shared by every LayeredTile in
// this table.
func (t *Table) LayerCount() int {
	return t.layerCount
}

// Len returns U, the number of unique tiles assigned so far.
func (t *Table) Len() int {
	return len(t.tiles)
}

// Tile returns the LayeredTile assigned to idx.
func (t *Table) Tile(idx Index) LayeredTile {
	return t.tiles[idx]
}

// EnableEmptySentinel ensures an explicit "all-nil" LayeredTile has an
// index, even if no example ever placed it, so generation can represent
// unfilled cells. It is idempotent.
func (t *Table) EnableEmptySentinel() (Index, error) {
	if t.hasEmpty {
		return t.emptyIndex, nil
	}
	idx, err := t.Intern(LayeredTile{Layers: make([]tilemap.TileHandle, t.layerCount)})
	if err != nil {
		return 0, err
	}
	t.emptyIndex = idx
	t.hasEmpty = true
	return idx, nil
}

// EmptyIndex returns the index of the empty sentinel tile, if enabled.
func (t *Table) EmptyIndex() (Index, bool) {
	return t.emptyIndex, t.hasEmpty
}

// Intern returns the Index assigned to tile, assigning a new one (in
// insertion order) the first time this exact tuple is seen.
func (t *Table) Intern(tile LayeredTile) (Index, error) {
	if len(tile.Layers) != t.layerCount {
		return 0, fmt.Errorf("tileset: tile has %d layers, table expects %d", len(tile.Layers), t.layerCount)
	}
	key, err := tile.key(t.hash)
	if err != nil {
		return 0, err
	}
	if idx, ok := t.byKey[key]; ok {
		return idx, nil
	}
	idx := Index(len(t.tiles))
	t.tiles = append(t.tiles, tile)
	t.byKey[key] = idx
	return idx, nil
}

// Lookup returns the Index for tile without assigning a new one, and false
// if tile has never been interned.
func (t *Table) Lookup(tile LayeredTile) (Index, bool, error) {
	key, err := tile.key(t.hash)
	if err != nil {
		return 0, false, err
	}
	idx, ok := t.byKey[key]
	return idx, ok, nil
}

// Keys returns, for every interned tile in insertion order, the per-layer
// handle key as produced by this table's Hashable — nil where that layer's
// handle is nil. pkg/serialize uses this to persist tiles without taking a
// dependency on the host's concrete handle type.
func (t *Table) Keys() ([][]*string, error) {
	out := make([][]*string, len(t.tiles))
	for i, tile := range t.tiles {
		row := make([]*string, len(tile.Layers))
		for j, h := range tile.Layers {
			if h == nil {
				continue
			}
			k, err := t.hash.HandleKey(h)
			if err != nil {
				return nil, fmt.Errorf("tileset: hashing tile %d layer %d: %w", i, j, err)
			}
			row[j] = &k
		}
		out[i] = row
	}
	return out, nil
}

// stringHash is the Hashable used to rebuild a Table from persisted keys:
// the keys themselves become the handles, so HandleKey is the identity.
type stringHash struct{}

func (stringHash) HandleKey(h tilemap.TileHandle) (string, error) {
	s, ok := h.(string)
	if !ok {
		return "", fmt.Errorf("tileset: reconstructed handle %v is not a string", h)
	}
	return s, nil
}

// NewTableFromKeys rebuilds a Table from the per-layer handle keys produced
// by Keys, in the same insertion order, so persisted TileIndex values stay
// stable across a save/load round trip. The reconstructed table's handles
// are the key strings themselves (see stringHash) rather than the
// original host types, which is sufficient for everything the generator
// core does with a TileHandle (equality and keying) but not for writing
// tiles back through a host Adapter — the caller is responsible for
// mapping these keys back to live handles via its own Adapter before
// calling WriteTile.
func NewTableFromKeys(layerCount int, keys [][]*string) *Table {
	t := NewTable(stringHash{}, layerCount)
	for i, row := range keys {
		tile := LayeredTile{Layers: make([]tilemap.TileHandle, layerCount)}
		for j, k := range row {
			if k == nil {
				continue
			}
			tile.Layers[j] = *k
		}
		t.tiles = append(t.tiles, tile)
		key, _ := tile.key(stringHash{})
		t.byKey[key] = Index(i)
	}
	return t
}
