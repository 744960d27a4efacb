// Package tilemap defines the boundary between the learned generator and a
// host's layered tile grid. Everything in this package is a "consumed"
// interface per the external-interfaces section of the spec: the generator
// core never assumes anything about a tile handle beyond equality and a
// stable string key, and ships one reference implementation (MemoryGrid) for
// tests and for the CLI's own train/generate/inspect commands.
package tilemap

import "github.com/loomward/tilegen/pkg/model"

// TileHandle is an opaque reference to a host tile. The generator core only
// ever compares handles for equality (via Adapter.Equal) or derives a map
// key from them (via Hashable.HandleKey) — it never inspects their shape.
type TileHandle any

// Hashable is implemented by an Adapter whose handles can be turned into a
// stable string key without reflection, the same "x,y" style keying this
// codebase already uses for coordinates (see model.Point.Key). Ingest and
// the uniqueness map require this to deduplicate LayeredTiles without a
// linear scan.
type Hashable interface {
	HandleKey(h TileHandle) (string, error)
}

// Adapter is the host-provided view over one layered tile grid. Read
// operations are scoped to a single layer and a rectangular Region;
// WriteTile writes a single coordinate on a single layer.
type Adapter interface {
	Hashable

	// ReadBlock returns the tile handles within region on the given layer,
	// indexed [y][x] in local region coordinates. A nil entry at [y][x]
	// means "no tile" (not necessarily the empty sentinel).
	ReadBlock(region model.Region, layer int) ([][]TileHandle, error)

	// WriteTile writes handle at the absolute coordinate (x,y) on layer.
	WriteTile(x, y, layer int, handle TileHandle) error

	// OccupiedBounds returns the smallest Region enclosing every tile
	// currently present on layer, and false if the layer is empty.
	OccupiedBounds(layer int) (model.Region, bool, error)

	// Equal reports whether two handles represent the same tile. Used
	// instead of == so hosts may hand back boxed or pointer-identity
	// handles.
	Equal(a, b TileHandle) bool

	// LayerCount returns the number of layers this adapter exposes.
	LayerCount() int
}
