// Package pnrctx implements the Context described in §4.C: it owns the
// ChipDb handle and the mutable Design, mediates every binding mutation,
// and enforces the §3 cross-invariants. It is grounded on the teacher's
// core.Core, which likewise owns all mutable state behind a small set of
// methods and leaves pure queries to its siblings (here: the placer and
// router read through Context rather than touching the maps directly).
package pnrctx

import (
	"fmt"

	"github.com/sarchlab/zeonica-pnr/chipdb"
	"github.com/sarchlab/zeonica-pnr/design"
	"github.com/sarchlab/zeonica-pnr/ident"
	"github.com/sarchlab/zeonica-pnr/pnrerr"
)

// Context owns the chip database, the mutable design, and the id
// interner, and is the sole mutator of bindings. All the binding methods
// below are synchronous critical sections, per §5: there is no
// suspension inside a mutation.
type Context struct {
	Chip   *chipdb.ChipDb
	Idents *ident.Table

	cells map[design.CellID]*design.Cell
	nets  map[design.NetID]*design.Net

	belBound  map[uint64]design.CellID
	wireBound map[uint64]design.NetID
	pipBound  map[uint64]design.NetID

	hier map[string]*design.HierEntry
}

// New creates an empty Context bound to the given chip database and
// interner.
func New(chip *chipdb.ChipDb, idents *ident.Table) *Context {
	return &Context{
		Chip:      chip,
		Idents:    idents,
		cells:     make(map[design.CellID]*design.Cell),
		nets:      make(map[design.NetID]*design.Net),
		belBound:  make(map[uint64]design.CellID),
		wireBound: make(map[uint64]design.NetID),
		pipBound:  make(map[uint64]design.NetID),
		hier:      make(map[string]*design.HierEntry),
	}
}

// CreateCell creates and registers a new cell. It is an error if id is
// already present.
func (c *Context) CreateCell(id design.CellID, cellType ident.ID) (*design.Cell, error) {
	if _, ok := c.cells[id]; ok {
		return nil, pnrerr.Newf(pnrerr.InputError, id.String(), "", "cell id already present")
	}
	cell := design.NewCell(id, cellType)
	c.cells[id] = cell
	return cell, nil
}

// Cell returns the cell with the given id, or nil.
func (c *Context) Cell(id design.CellID) *design.Cell { return c.cells[id] }

// Cells returns every cell currently in the design. The returned slice is
// a fresh copy; callers may hold onto it across further mutations.
func (c *Context) Cells() []*design.Cell {
	out := make([]*design.Cell, 0, len(c.cells))
	for _, cell := range c.cells {
		out = append(out, cell)
	}
	return out
}

// RemoveCell destroys a cell. The cell must first be disconnected from
// every net and unbound from any bel.
func (c *Context) RemoveCell(id design.CellID) error {
	cell, ok := c.cells[id]
	if !ok {
		return pnrerr.Newf(pnrerr.InputError, id.String(), "", "no such cell")
	}
	if cell.Bel.IsBound() {
		return pnrerr.Newf(pnrerr.BindingConflict, id.String(), "", "cell still bound to a bel")
	}
	for _, port := range cell.Ports {
		if port.Net != ident.None {
			return pnrerr.Newf(pnrerr.BindingConflict, id.String(), "", "cell still connected")
		}
	}
	delete(c.cells, id)
	return nil
}

// CreateNet creates and registers a new net. It is an error if id is
// already present.
func (c *Context) CreateNet(id design.NetID) (*design.Net, error) {
	if _, ok := c.nets[id]; ok {
		return nil, pnrerr.Newf(pnrerr.InputError, id.String(), "", "net id already present")
	}
	net := design.NewNet(id)
	c.nets[id] = net
	return net, nil
}

// Net returns the net with the given id, or nil.
func (c *Context) Net(id design.NetID) *design.Net { return c.nets[id] }

// Nets returns every net currently in the design.
func (c *Context) Nets() []*design.Net {
	out := make([]*design.Net, 0, len(c.nets))
	for _, n := range c.nets {
		out = append(out, n)
	}
	return out
}

// RemoveNet destroys a net that has no driver, no users and no wire
// bindings. This implements the §8 boundary behavior "a net declared but
// with no driver and no users is silently removed before place" when the
// caller chooses to call it explicitly (removal itself is never implicit
// inside Context).
func (c *Context) RemoveNet(id design.NetID) error {
	net, ok := c.nets[id]
	if !ok {
		return pnrerr.Newf(pnrerr.InputError, id.String(), "", "no such net")
	}
	if net.Driver.Valid() || len(net.Users) > 0 || len(net.Wires) > 0 {
		return pnrerr.Newf(pnrerr.BindingConflict, id.String(), "", "net still in use")
	}
	delete(c.nets, id)
	return nil
}

// Connect wires a cell's port to a net, updating the driver or user list
// (§3 invariants 4 and 5). It is an error to attach a second driver to a
// net; the error names both drivers.
func (c *Context) Connect(cellID design.CellID, port ident.ID, netID design.NetID) error {
	cell, ok := c.cells[cellID]
	if !ok {
		return pnrerr.Newf(pnrerr.InputError, cellID.String(), "", "no such cell")
	}
	p, ok := cell.Ports[port]
	if !ok {
		return pnrerr.Newf(pnrerr.InputError, cellID.String(), port.String(), "no such port")
	}
	net, ok := c.nets[netID]
	if !ok {
		return pnrerr.Newf(pnrerr.InputError, netID.String(), "", "no such net")
	}
	if p.Net != ident.None {
		if err := c.Disconnect(cellID, port); err != nil {
			return err
		}
	}

	ref := design.PortRef{Cell: cellID, Port: port}
	if p.Direction == design.PortOut {
		if net.Driver.Valid() {
			return pnrerr.Newf(pnrerr.BindingConflict,
				fmt.Sprintf("%s.%s", cellID, port),
				fmt.Sprintf("%s.%s", net.Driver.Cell, net.Driver.Port),
				"net already has a driver")
		}
		net.Driver = ref
	} else {
		net.Users = append(net.Users, ref)
		p.UserIdx = len(net.Users) - 1
	}
	p.Net = netID
	return nil
}

// Disconnect removes a port's net linkage. Idempotent if already none.
func (c *Context) Disconnect(cellID design.CellID, port ident.ID) error {
	cell, ok := c.cells[cellID]
	if !ok {
		return pnrerr.Newf(pnrerr.InputError, cellID.String(), "", "no such cell")
	}
	p, ok := cell.Ports[port]
	if !ok {
		return pnrerr.Newf(pnrerr.InputError, cellID.String(), port.String(), "no such port")
	}
	if p.Net == ident.None {
		return nil
	}
	net := c.nets[p.Net]
	ref := design.PortRef{Cell: cellID, Port: port}
	if net.Driver == ref {
		net.Driver = design.PortRef{}
	} else if p.UserIdx >= 0 && p.UserIdx < len(net.Users) && net.Users[p.UserIdx] == ref {
		last := len(net.Users) - 1
		net.Users[p.UserIdx] = net.Users[last]
		net.Users = net.Users[:last]
		if p.UserIdx < len(net.Users) {
			movedRef := net.Users[p.UserIdx]
			movedCell := c.cells[movedRef.Cell]
			movedCell.Ports[movedRef.Port].UserIdx = p.UserIdx
		}
	}
	p.Net = ident.None
	p.UserIdx = -1
	return nil
}

// BindBel assigns cell to bel with the given strength. It is an error if
// the bel is already bound.
func (c *Context) BindBel(bel chipdb.BelLoc, cellID design.CellID, strength design.BelStrength) error {
	key := EncodeBelLoc(bel)
	if existing, ok := c.belBound[key]; ok {
		return pnrerr.Newf(pnrerr.BindingConflict, fmt.Sprint(bel), existing.String(), "bel already bound")
	}
	cell, ok := c.cells[cellID]
	if !ok {
		return pnrerr.Newf(pnrerr.InputError, cellID.String(), "", "no such cell")
	}
	c.belBound[key] = cellID
	cell.Bel.Tile = int32(bel.Tile)
	cell.Bel.Index = bel.Index
	cell.Bel.Bound = true
	cell.BelStrength = strength
	return nil
}

// UnbindBel releases a bel. It is an error if the bel is not bound.
func (c *Context) UnbindBel(bel chipdb.BelLoc) error {
	key := EncodeBelLoc(bel)
	cellID, ok := c.belBound[key]
	if !ok {
		return pnrerr.Newf(pnrerr.BindingConflict, fmt.Sprint(bel), "", "bel not bound")
	}
	delete(c.belBound, key)
	if cell, ok := c.cells[cellID]; ok {
		cell.Bel.Bound = false
		cell.BelStrength = design.StrengthNone
	}
	return nil
}

// CheckBelAvail reports whether bel has no cell bound to it.
func (c *Context) CheckBelAvail(bel chipdb.BelLoc) bool {
	_, ok := c.belBound[EncodeBelLoc(bel)]
	return !ok
}

// GetBoundBelCell returns the cell bound to bel, or ident.None.
func (c *Context) GetBoundBelCell(bel chipdb.BelLoc) design.CellID {
	return c.belBound[EncodeBelLoc(bel)]
}

// BindWire registers net as the owner of wire and adds a root entry
// (pip=none) to the net's wire map.
func (c *Context) BindWire(wire chipdb.WireLoc, netID design.NetID, strength design.BelStrength) error {
	key := EncodeWireLoc(wire)
	if existing, ok := c.wireBound[key]; ok {
		return pnrerr.Newf(pnrerr.BindingConflict, fmt.Sprint(wire), existing.String(), "wire already bound")
	}
	net, ok := c.nets[netID]
	if !ok {
		return pnrerr.Newf(pnrerr.InputError, netID.String(), "", "no such net")
	}
	c.wireBound[key] = netID
	net.Wires[key] = design.WireBinding{Pip: design.PipNone, HasPip: false, Strength: strength}
	return nil
}

// UnbindWire releases wire. If the wire's binding carries a pip, that pip
// is also unbound from the net atomically.
func (c *Context) UnbindWire(wire chipdb.WireLoc) error {
	key := EncodeWireLoc(wire)
	netID, ok := c.wireBound[key]
	if !ok {
		return pnrerr.Newf(pnrerr.BindingConflict, fmt.Sprint(wire), "", "wire not bound")
	}
	net := c.nets[netID]
	binding := net.Wires[key]
	delete(c.wireBound, key)
	delete(net.Wires, key)
	if binding.HasPip {
		pipLoc := DecodePipLoc(binding.Pip)
		delete(c.pipBound, EncodePipLoc(pipLoc))
	}
	return nil
}

// CheckWireAvail reports whether wire has no net bound to it.
func (c *Context) CheckWireAvail(wire chipdb.WireLoc) bool {
	_, ok := c.wireBound[EncodeWireLoc(wire)]
	return !ok
}

// GetBoundWireNet returns the net bound to wire, or ident.None.
func (c *Context) GetBoundWireNet(wire chipdb.WireLoc) design.NetID {
	return c.wireBound[EncodeWireLoc(wire)]
}

// BindPip binds pip to net; its destination wire becomes bound to the
// same net in the same call. It is an error if the destination is
// already bound to a different net.
func (c *Context) BindPip(tile chipdb.TileIndex, pip chipdb.PipLoc, netID design.NetID, strength design.BelStrength) error {
	p := c.Chip.Pip(pip)
	if p == nil {
		return pnrerr.Newf(pnrerr.InputError, fmt.Sprint(pip), "", "no such pip")
	}
	pipKey := EncodePipLoc(pip)
	if existing, ok := c.pipBound[pipKey]; ok {
		return pnrerr.Newf(pnrerr.BindingConflict, fmt.Sprint(pip), existing.String(), "pip already bound")
	}

	dst := c.Chip.DstWireLoc(pip.Tile, p)
	dstKey := EncodeWireLoc(dst)
	if existingNet, ok := c.wireBound[dstKey]; ok && existingNet != netID {
		return pnrerr.Newf(pnrerr.BindingConflict, fmt.Sprint(dst), existingNet.String(), "destination wire bound to a different net")
	}

	net, ok := c.nets[netID]
	if !ok {
		return pnrerr.Newf(pnrerr.InputError, netID.String(), "", "no such net")
	}

	c.pipBound[pipKey] = netID
	c.wireBound[dstKey] = netID
	net.Wires[dstKey] = design.WireBinding{Pip: pipKey, HasPip: true, Strength: strength}
	return nil
}

// UnbindPip releases pip and its implied destination wire.
func (c *Context) UnbindPip(pip chipdb.PipLoc) error {
	pipKey := EncodePipLoc(pip)
	netID, ok := c.pipBound[pipKey]
	if !ok {
		return pnrerr.Newf(pnrerr.BindingConflict, fmt.Sprint(pip), "", "pip not bound")
	}
	p := c.Chip.Pip(pip)
	dst := c.Chip.DstWireLoc(pip.Tile, p)
	dstKey := EncodeWireLoc(dst)

	delete(c.pipBound, pipKey)
	delete(c.wireBound, dstKey)
	if net := c.nets[netID]; net != nil {
		delete(net.Wires, dstKey)
	}
	return nil
}

// CheckPipAvail reports whether pip has no net bound to it.
func (c *Context) CheckPipAvail(pip chipdb.PipLoc) bool {
	_, ok := c.pipBound[EncodePipLoc(pip)]
	return !ok
}

// GetBoundPipNet returns the net bound to pip, or ident.None.
func (c *Context) GetBoundPipNet(pip chipdb.PipLoc) design.NetID {
	return c.pipBound[EncodePipLoc(pip)]
}

// Hierarchy returns the hierarchy entry at path, or nil.
func (c *Context) Hierarchy(path ident.List) *design.HierEntry {
	return c.hier[hierKey(path)]
}

// PutHierarchy registers or replaces a hierarchy entry.
func (c *Context) PutHierarchy(entry *design.HierEntry) {
	c.hier[hierKey(entry.Path)] = entry
}

func hierKey(path ident.List) string {
	b := make([]byte, 0, len(path)*5)
	for _, id := range path {
		b = append(b, byte(id>>24), byte(id>>16), byte(id>>8), byte(id), '/')
	}
	return string(b)
}
