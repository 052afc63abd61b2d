// Package arch defines the architecture capability record referenced by
// §4.F/§4.G and prescribed by §9's first redesign item: "replace deep
// class hierarchies and virtual dispatch for architecture back-ends with
// an architecture capability record — one record of function pointers
// passed by reference into Context". It is grounded on the teacher's
// confignew.IDImplBinding, which already binds an id to an arbitrary
// implementation via a plain map rather than a vtable; here the binding
// is from well-known capability names to function values, built once per
// architecture and threaded through pack/place/route.
package arch

import (
	"github.com/sarchlab/zeonica-pnr/chipdb"
	"github.com/sarchlab/zeonica-pnr/design"
	"github.com/sarchlab/zeonica-pnr/ident"
)

// Capability is the full set of architecture-specific callbacks the
// packer, placer and router need. A value of Capability is built once per
// target device and passed by reference; Context itself is polymorphic
// only over this record, never over an interface hierarchy.
type Capability struct {
	// Name identifies the architecture, used in diagnostics.
	Name string

	// IsValidBelForCell reports whether cell type may be placed on bel.
	// Defaults to Type == bel.Type when nil.
	IsValidBelForCell func(db *chipdb.ChipDb, cellType ident.ID, bel chipdb.BelLoc) bool

	// IsBelLocationValid inspects neighboring bels in the same tile for
	// shared-resource conflicts (shared clock/reset/enable, mutually
	// exclusive RAM/FIFO/CDC composites). Must be pure with respect to
	// Context state plus a tile-local snapshot (§5) so it can run on
	// worker threads.
	IsBelLocationValid func(db *chipdb.ChipDb, snapshot TileSnapshot, bel chipdb.BelLoc) bool

	// ChildPlacement resolves a cluster child's absolute bel location
	// given the cluster root's location and the child's ConstrZ.
	ChildPlacement func(db *chipdb.ChipDb, root chipdb.BelLoc, constr design.ConstrZ) (chipdb.BelLoc, bool)

	// BelBucketForCellType partitions bels so that a cell of the given
	// type only ever considers bels in the matching bucket.
	BelBucketForCellType func(cellType ident.ID) ident.ID

	// EstimateDelay is the placer's HPWL-like per-wire cost hook.
	EstimateDelay func(db *chipdb.ChipDb, from, to chipdb.WireLoc) float64

	// PredictDelay is the router's per-pip-or-bel-crossing cost hook.
	PredictDelay func(db *chipdb.ChipDb, fromBel chipdb.BelLoc, fromPort ident.ID, toBel chipdb.BelLoc, toPort ident.ID) float64

	// ChainSuccessor walks the architecture-defined carry-chain successor
	// map, returning the next cell's target bel given the current one.
	ChainSuccessor func(db *chipdb.ChipDb, current chipdb.BelLoc) (chipdb.BelLoc, bool)

	// RoutingMargin is the architecture-specific margin added to a net's
	// bounding box by expand_bounding_box.
	RoutingMargin int32

	// MaxRouteIterations bounds the router's negotiated-congestion outer
	// loop before it reports a route failure (§7 "Route congestion
	// exhaustion").
	MaxRouteIterations int

	// LutPassThroughCapable reports whether a bel of LUT type can be
	// configured as a routing pass-through.
	LutPassThroughCapable func(cellType ident.ID) bool
}

// TileSnapshot is the read-only, tile-local view of binding state that
// IsBelLocationValid may inspect. It is captured before a worker thread
// starts evaluating candidates so the callback never touches Context
// directly.
type TileSnapshot struct {
	Tile         chipdb.TileIndex
	BoundCellsAt map[int32]design.CellID // bel index -> bound cell, only for bound bels
	CellTypeOf   map[design.CellID]ident.ID
}

// Default fills in the zero-value callbacks of a partially specified
// Capability with the spec's documented defaults: type-equality bel
// compatibility and an always-valid location check.
func Default(c Capability) Capability {
	if c.IsValidBelForCell == nil {
		c.IsValidBelForCell = func(db *chipdb.ChipDb, cellType ident.ID, bel chipdb.BelLoc) bool {
			b := db.Bel(bel)
			return b != nil && b.Type == cellType
		}
	}
	if c.IsBelLocationValid == nil {
		c.IsBelLocationValid = func(*chipdb.ChipDb, TileSnapshot, chipdb.BelLoc) bool { return true }
	}
	if c.BelBucketForCellType == nil {
		c.BelBucketForCellType = func(cellType ident.ID) ident.ID { return cellType }
	}
	if c.MaxRouteIterations == 0 {
		c.MaxRouteIterations = 200
	}
	if c.LutPassThroughCapable == nil {
		c.LutPassThroughCapable = func(ident.ID) bool { return false }
	}
	return c
}
