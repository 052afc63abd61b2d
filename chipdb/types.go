// Package chipdb is the immutable, load-once description of a specific
// device: tiles, bels, wires, pips, nodes and cluster/chain templates
// (spec §3 "Chip database"). It is grounded on the teacher's
// config.DeviceBuilder fluent construction idiom, adapted from a live
// simulated mesh to a flat, index-addressed array-of-structs database
// loaded once and never mutated again.
package chipdb

import "github.com/sarchlab/zeonica-pnr/ident"

// PipKind classifies a Pip the way the spec's Pip entity requires.
type PipKind int

// The fixed set of pip classifications used by the router cost model and
// by the crossbar fix-up pass.
const (
	PipRegular PipKind = iota
	PipCrossbar
	PipMux
	PipBypass
	PipLutPermutation
	PipInterconnect
	PipVirtual
)

// Direction is a bel pin's signal direction.
type Direction int

// The three directions a BelPin may have.
const (
	DirIn Direction = iota
	DirOut
	DirInout
)

// TileIndex addresses a Tile in ChipDb.Tiles. A value of -1 denotes "no
// tile" or, for a WireLoc, "this wire is nodal" (see WireLoc.Tile).
type TileIndex int32

// NoTile is the sentinel TileIndex used for nodal wires and unset fields.
const NoTile TileIndex = -1

// Tile is one instance of a TileType placed at (X, Y) in the device grid.
type Tile struct {
	TypeIndex int32
	X, Y      int32
	// Extra carries small per-tile data the architecture attaches (speed
	// grade, IO bank id, ...). Kept as an Id so it is cheap to compare
	// and copy; the architecture capability record interprets it.
	Extra ident.ID
}

// TileType is the template shared by every Tile instance of the same
// kind. Bel/wire/pip indices inside a tile are dense and relative to the
// owning TileType.
type TileType struct {
	Name     ident.ID
	Bels     []Bel
	Wires    []Wire
	Pips     []Pip
}

// BelLoc identifies a Bel by (tile, index-within-tile), matching the
// spec's "(tile_index, index_in_tile)" addressing.
type BelLoc struct {
	Tile  TileIndex
	Index int32
}

// Bel is a Basic Element of Logic: a placeable primitive inside a tile.
type Bel struct {
	Type ident.ID
	Name ident.ID
	Pins []BelPin
}

// BelPin is one port of a Bel, bound to a wire local to the owning tile.
type BelPin struct {
	Port      ident.ID
	Direction Direction
	WireIndex int32 // index into the owning TileType's Wires
}

// WireLoc identifies a Wire. Tile == NoTile means the wire is nodal and
// Index is a node id into ChipDb.Nodes; otherwise Tile/Index address a
// tile-local wire.
type WireLoc struct {
	Tile  TileIndex
	Index int32
}

// Wire is a routing resource: either local to one tile or, once joined
// into a Node, electrically one wire across tiles.
type Wire struct {
	Name ident.ID
	Site ident.ID // site/region tag

	// PipsUphill/PipsDownhill index into the owning TileType's Pips.
	PipsUphill   []int32
	PipsDownhill []int32

	// BelPins lists the (bel-index, pin-index) pairs attached to this
	// wire within the owning tile.
	BelPins []WireBelPin
}

// WireBelPin names a bel pin attached to a wire.
type WireBelPin struct {
	BelIndex int32
	PinIndex int32
}

// Pip is a directed, configurable edge between two wires local to one
// tile.
type Pip struct {
	SrcWire int32
	DstWire int32
	Kind    PipKind
	// CrossbarGroup names the shared mux this pip belongs to, for pips
	// of kind PipCrossbar/PipMux; zero for all other kinds.
	CrossbarGroup ident.ID
}

// PipLoc identifies a Pip by tile and index-within-tile.
type PipLoc struct {
	Tile  TileIndex
	Index int32
}

// Node is a set of (tile, wire-index) tuples that are electrically one
// wire across tiles.
type Node struct {
	Wires []WireLoc
}

// ClusterTemplate names a chainable group of cell types, their port
// patterns and relative placements, used by the packer to mark clusters
// and by the placer to resolve child placements.
type ClusterTemplate struct {
	Name      ident.ID
	CellTypes []ident.ID
	// PortPatterns maps a cell-type id to the ordered list of port ids
	// that must be present for that type to join the cluster.
	PortPatterns map[ident.ID][]ident.ID
}

// ChipDb is the immutable, loaded description of one device. All slices
// are read-only after Load returns; indices into them are valid for the
// life of the ChipDb value.
type ChipDb struct {
	Name   ident.ID
	Width  int32
	Height int32

	TileTypes []TileType
	Tiles     []Tile
	Nodes     []Node

	// TileWireToNode[tileIndex][wireIndex] is the node id that wire
	// joins, or -1 if the wire is tile-local only.
	TileWireToNode [][]int32

	Clusters map[ident.ID]ClusterTemplate
}
