// Package design holds the mutable netlist model of §3: cells, ports,
// nets, attributes, parameters and the hierarchy tree that survives
// flattening. It is grounded on the teacher's core/program.go and
// instr/instr.go, generalized from a fixed instruction-operand shape to
// the netlist's arbitrary cell/port/net graph; cross-reference integrity
// (§3 invariants) is enforced one level up, by pnrctx.Context, not here —
// design stays a plain, directly-mutable data structure exactly as
// core.Core's coreState is a plain struct mutated by its owning
// component.
package design

import "github.com/sarchlab/zeonica-pnr/ident"

// CellID and NetID are the unique identifiers of cells and nets. They are
// interned like any other name; both are aliases of ident.ID, so the
// compiler does not tell them apart from other ids.
type CellID = ident.ID
type NetID = ident.ID

// BelStrength classifies how firmly a cell is pinned to its bel.
type BelStrength int

// The fixed set of binding strengths from §3.
const (
	StrengthNone BelStrength = iota
	StrengthWeak
	StrengthStrong
	StrengthLocked
	StrengthUser
	StrengthFixed
)

// PortDirection is a cell port's signal direction.
type PortDirection int

// The three port directions.
const (
	PortIn PortDirection = iota
	PortOut
	PortInout
)

// PortRef names one cell's port, used as a net's driver or as an entry in
// a net's user list.
type PortRef struct {
	Cell CellID
	Port ident.ID
}

// Valid reports whether the reference names an actual cell/port pair.
func (r PortRef) Valid() bool {
	return r.Cell != ident.None
}

// Port is one named connection point on a Cell.
type Port struct {
	Name      ident.ID
	Direction PortDirection
	Net       NetID // ident.None if unconnected
	UserIdx   int   // index into Net.Users while connected as a user (PortIn or PortInout); -1 otherwise
}

// Cell is one instance in the design: either a leaf primitive from the
// original netlist or a device-primitive cell materialized by the
// packer.
type Cell struct {
	ID   CellID
	Type ident.ID

	Bel         chipBelRef
	BelStrength BelStrength

	Ports map[ident.ID]*Port
	// PortOrder preserves insertion order so iteration and serialization
	// are deterministic (§4.F determinism requirement applies beyond the
	// placer: any ordered traversal of a cell's ports must be stable).
	PortOrder []ident.ID

	Attrs  map[ident.ID]string
	Params map[ident.ID]string

	Cluster     ident.ID // ident.None if not in a cluster
	ClusterRoot CellID   // meaningful only when Cluster != ident.None
	ConstrZ     ConstrZ

	HierPath ident.List

	// PinToBelPin records, for cells with an architecture-defined pin
	// permutation table (LUTs), the logical input index -> bel pin name
	// mapping the packer assigned. Rewritten by postroute after the
	// router may have permuted physical pins.
	PinToBelPin []ident.ID
}

// chipBelRef avoids importing chipdb from design (design is the
// lower-level, chipdb-independent data model; pnrctx glues the two by
// storing the concrete chipdb.BelLoc inside this cell's Bel field via the
// same underlying struct shape). Kept as a tiny local type so design has
// zero dependency on chipdb, matching spec.md's component table which
// lists "Netlist model" and "Chip database" as independent components
// referenced only from Context.
type chipBelRef struct {
	Tile  int32
	Index int32
	Bound bool
}

// IsBound reports whether the cell currently has a bel assigned.
func (c chipBelRef) IsBound() bool { return c.Bound }

// NewCell creates an empty cell of the given type. Callers add ports with
// AddPort.
func NewCell(id CellID, cellType ident.ID) *Cell {
	return &Cell{
		ID:          id,
		Type:        cellType,
		Ports:       make(map[ident.ID]*Port),
		Attrs:       make(map[ident.ID]string),
		Params:      make(map[ident.ID]string),
		ClusterRoot: ident.None,
	}
}

// AddPort declares a port on the cell. It is an error (panics, a
// programmer error per §7) to add the same port name twice.
func (c *Cell) AddPort(name ident.ID, dir PortDirection) *Port {
	if _, ok := c.Ports[name]; ok {
		panic("design: duplicate port " + name.String())
	}
	p := &Port{Name: name, Direction: dir, Net: ident.None, UserIdx: -1}
	c.Ports[name] = p
	c.PortOrder = append(c.PortOrder, name)
	return p
}

// WireBinding records how a net reaches one of its bound wires: the pip
// used to get there (when HasPip is set; HasPip unset means this wire is
// the net's root) and the strength of the binding.
type WireBinding struct {
	Pip      uint64 // encodes chipdb.PipLoc; meaningful only when HasPip is set
	HasPip   bool
	Strength BelStrength
}

// PipNone is the WireBinding.Pip value stored for a root wire. It equals
// the encoding of pip 0 in tile 0, so HasPip, not Pip, tells a root wire
// apart from a pip-driven one.
const PipNone uint64 = 0

// Net is one electrical signal: a driver PortRef, zero or more user
// PortRefs, and the set of wires currently bound to implement it.
type Net struct {
	ID     NetID
	Driver PortRef
	Users  []PortRef

	// Wires maps an encoded chipdb.WireLoc (see pnrctx.EncodeWireLoc) to
	// its binding.
	Wires map[uint64]WireBinding

	Attrs   map[ident.ID]string
	Aliases []ident.ID

	// UData is front-end scratch space used while flattening hierarchy
	// (net merge bookkeeping); unused after import.
	UData int
}

// NewNet creates an empty net.
func NewNet(id NetID) *Net {
	return &Net{
		ID:    id,
		Wires: make(map[uint64]WireBinding),
		Attrs: make(map[ident.ID]string),
	}
}

// HierEntry is one node of the hierarchy tree mirroring the source module
// hierarchy after flattening (§3 "Hierarchy entry").
type HierEntry struct {
	Path     ident.List
	Name     ident.ID
	Type     ident.ID
	Parent   ident.List
	Children []ident.List
	Leaves   []CellID
}
