// Package postroute implements §4.H: rewriting the Design to reflect
// routing decisions before export. It is grounded on the teacher's
// program package rewrite passes (a sequence of small, independently
// testable mutations run in a fixed order over a shared state) and on
// go-pretty/v6/table for the "count and log statistics" step, matching
// the teacher's own preference for a third-party renderer over
// hand-rolled column alignment.
package postroute

import (
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sarchlab/zeonica-pnr/arch"
	"github.com/sarchlab/zeonica-pnr/chipdb"
	"github.com/sarchlab/zeonica-pnr/design"
	"github.com/sarchlab/zeonica-pnr/diag"
	"github.com/sarchlab/zeonica-pnr/ident"
	"github.com/sarchlab/zeonica-pnr/pnrctx"
)

// Config carries the architecture capability the post-route rewrites
// need (LUT pass-through capability, truth-table width comes from the
// number of recorded PinToBelPin entries).
type Config struct {
	Arch arch.Capability
}

// Stats summarizes one Run, reported via Table.
type Stats struct {
	CellsReified     int
	LUTsPermuted     int
	FloatingNets     int
	EmptyNetsDropped int
}

// Rewriter runs the fixed sequence of post-route passes over a Context.
// It is grounded on the teacher's program.Builder: a small value type
// holding just what the passes need, built once and run to completion,
// no persistent component or tick loop (post-route is a single
// synchronous pass, not an iterative phase like place/route).
type Rewriter struct {
	ctx   *pnrctx.Context
	cfg   Config
	seq   int
	Stats Stats
}

// New creates a Rewriter over ctx.
func New(ctx *pnrctx.Context, cfg Config) *Rewriter {
	return &Rewriter{ctx: ctx, cfg: cfg}
}

// Run executes the four §4.H passes in order and logs the resulting
// Stats.
func (r *Rewriter) Run() error {
	r.reifyPassThroughs()
	r.permuteLUTs()
	r.classifyUndrivenNets()
	r.logStats()
	return nil
}

// reifyPassThroughs implements §4.H(1): every bound pip of kind
// PipBypass denotes a bel-crossing the router used to route a net
// through an otherwise-unused LUT bel; each such bel gets a synthetic
// cell recording the crossing so export sees a real occupant there
// instead of an anonymous pip.
//
// The crossing does not change the net's logical driver/user topology
// (§3's single-driver invariant is untouched): the synthetic cell is a
// placement record, not a new netlist edge. Its ports are added but left
// unconnected; the net that triggered the crossing is recorded in an
// attribute for diagnostics and export.
func (r *Rewriter) reifyPassThroughs() {
	netIDAttr := r.ctx.Idents.Intern("PASSTHRU_NET")

	seen := map[uint64]bool{}
	for _, net := range r.sortedNets() {
		for _, binding := range net.Wires {
			if !binding.HasPip {
				continue
			}
			pipLoc := pnrctx.DecodePipLoc(binding.Pip)
			pip := r.ctx.Chip.Pip(pipLoc)
			if pip == nil || pip.Kind != chipdb.PipBypass {
				continue
			}
			if seen[binding.Pip] {
				continue
			}
			seen[binding.Pip] = true

			bel, inPin, outPin, ok := findPassThroughBel(r.ctx.Chip, pipLoc.Tile, pip)
			if !ok {
				continue
			}
			if !r.ctx.CheckBelAvail(bel) {
				// already occupied by a real cell; nothing to reify.
				continue
			}

			r.seq++
			cellID := ident.ID(0)
			for {
				cellID = r.ctx.Idents.Intern(passThroughCellName(r.seq))
				if r.ctx.Cell(cellID) == nil {
					break
				}
				r.seq++
			}
			belType := r.ctx.Chip.Bel(bel)
			if belType == nil {
				continue
			}
			if r.cfg.Arch.LutPassThroughCapable != nil && !r.cfg.Arch.LutPassThroughCapable(belType.Type) {
				continue
			}
			cell, err := r.ctx.CreateCell(cellID, belType.Type)
			if err != nil {
				continue
			}
			cell.AddPort(inPin, design.PortIn)
			cell.AddPort(outPin, design.PortOut)
			cell.Attrs[netIDAttr] = net.ID.String()
			if err := r.ctx.BindBel(bel, cell.ID, design.StrengthFixed); err != nil {
				r.ctx.RemoveCell(cell.ID)
				continue
			}
			r.Stats.CellsReified++
		}
	}
}

func passThroughCellName(seq int) string {
	return "$passthru$" + itoa(seq)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// findPassThroughBel locates the bel in tile whose input pin sits on
// pip.SrcWire and output pin sits on pip.DstWire, i.e. the bel a bypass
// pip is routing through.
func findPassThroughBel(db *chipdb.ChipDb, tile chipdb.TileIndex, pip *chipdb.Pip) (loc chipdb.BelLoc, inPin, outPin ident.ID, ok bool) {
	tt := db.TileType(tile)
	if tt == nil {
		return chipdb.BelLoc{}, ident.None, ident.None, false
	}
	for i, bel := range tt.Bels {
		var in, out ident.ID
		var hasIn, hasOut bool
		for _, pin := range bel.Pins {
			if pin.Direction == chipdb.DirIn && pin.WireIndex == pip.SrcWire {
				hasIn, in = true, pin.Port
			}
			if pin.Direction == chipdb.DirOut && pin.WireIndex == pip.DstWire {
				hasOut, out = true, pin.Port
			}
		}
		if hasIn && hasOut {
			return chipdb.BelLoc{Tile: tile, Index: int32(i)}, in, out, true
		}
	}
	return chipdb.BelLoc{}, ident.None, ident.None, false
}

// permuteLUTs implements §4.H(2): for every cell with a recorded
// PinToBelPin table, compare the logical->bel-pin assignment the packer
// made against the bel pin each logical input's net is actually bound to
// today (routing an equivalent-input LUT may land a net on a different
// physical pin than the packer assumed), and if they differ, rewrite the
// cell's INIT parameter and PinToBelPin table to match.
func (r *Rewriter) permuteLUTs() {
	initAttr := r.ctx.Idents.Intern("INIT")
	for _, cell := range r.sortedCells() {
		if len(cell.PinToBelPin) == 0 || !cell.Bel.IsBound() {
			continue
		}
		init, ok := cell.Params[initAttr]
		if !ok {
			continue
		}
		belLoc := chipdb.BelLoc{Tile: chipdb.TileIndex(cell.Bel.Tile), Index: cell.Bel.Index}
		bel := r.ctx.Chip.Bel(belLoc)
		if bel == nil {
			continue
		}

		newAssignment, perm, changed := observedPermutation(r.ctx, cell, bel, belLoc)
		if !changed {
			continue
		}
		newInit := permuteLUT(init, perm)
		cell.Params[initAttr] = newInit
		cell.PinToBelPin = newAssignment
		r.Stats.LUTsPermuted++
	}
}

// observedPermutation inspects, for each logical input i of cell, which
// bel pin the net connected to input port "I<i>" is actually bound to at
// belLoc, and compares it against cell.PinToBelPin[i]. It returns the
// corrected PinToBelPin table, the bit permutation to apply to the INIT
// truth table (perm[newBit] = original logical index now sitting at
// newBit), and whether anything moved.
func observedPermutation(ctx *pnrctx.Context, cell *design.Cell, bel *chipdb.Bel, belLoc chipdb.BelLoc) ([]ident.ID, []int, bool) {
	n := len(cell.PinToBelPin)
	actual := make([]ident.ID, n)
	copy(actual, cell.PinToBelPin)
	changed := false
	for i, pinName := range cell.PinToBelPin {
		port, ok := cell.Ports[ctx.Idents.Intern(inputPortName(i))]
		if !ok || port.Net == ident.None {
			continue
		}
		found, ok := actualBelPinFor(ctx, bel, belLoc, port.Net)
		if !ok {
			continue
		}
		actual[i] = found
		if found != pinName {
			changed = true
		}
	}
	if !changed {
		return nil, nil, false
	}

	perm := make([]int, n)
	for newBit, pinName := range actual {
		perm[newBit] = newBit
		for orig, origPin := range cell.PinToBelPin {
			if origPin == pinName {
				perm[newBit] = orig
				break
			}
		}
	}
	return actual, perm, true
}

// actualBelPinFor finds the direction-In bel pin of bel (located at
// belLoc) whose wire is currently bound to netID, i.e. the physical pin
// a net actually lands on after routing.
func actualBelPinFor(ctx *pnrctx.Context, bel *chipdb.Bel, belLoc chipdb.BelLoc, netID design.NetID) (ident.ID, bool) {
	for _, pin := range bel.Pins {
		if pin.Direction != chipdb.DirIn {
			continue
		}
		wire := ctx.Chip.CanonicalWire(belLoc.Tile, pin.WireIndex)
		if ctx.GetBoundWireNet(wire) == netID {
			return pin.Port, true
		}
	}
	return ident.None, false
}

func inputPortName(i int) string {
	return "I" + itoa(i)
}

// permuteLUT rewrites a truth table (one character per address, character
// i holding the output for address i) under perm, where perm[newBit]
// names the original input bit now read at position newBit.
func permuteLUT(init string, perm []int) string {
	n := len(perm)
	size := 1 << n
	if len(init) != size {
		return init
	}
	out := make([]byte, size)
	for addr := 0; addr < size; addr++ {
		srcAddr := 0
		for bit := 0; bit < n; bit++ {
			if addr&(1<<uint(bit)) != 0 {
				srcAddr |= 1 << uint(perm[bit])
			}
		}
		out[addr] = init[srcAddr]
	}
	return string(out)
}

// classifyUndrivenNets implements §4.H(3): a net with no driver and no
// users is dead weight left over from earlier passes (e.g. a constant
// net whose last consumer was fused away) and is dropped; a net with no
// driver but live users is a floating input, reported but left in place
// for the exporter to flag.
func (r *Rewriter) classifyUndrivenNets() {
	for _, net := range r.sortedNets() {
		if net.Driver.Valid() {
			continue
		}
		if len(net.Users) == 0 {
			for key, binding := range net.Wires {
				loc := pnrctx.DecodeWireLoc(key)
				if binding.HasPip {
					r.ctx.UnbindPip(pnrctx.DecodePipLoc(binding.Pip))
				} else {
					r.ctx.UnbindWire(loc)
				}
			}
			if err := r.ctx.RemoveNet(net.ID); err == nil {
				r.Stats.EmptyNetsDropped++
			}
			continue
		}
		r.Stats.FloatingNets++
		diag.Warnf("net %s has no driver but %d user(s)", net.ID, len(net.Users))
	}
}

func (r *Rewriter) logStats() {
	diag.Infof("postroute: reified %d pass-through cell(s), permuted %d LUT(s), %d floating net(s), dropped %d empty net(s)",
		r.Stats.CellsReified, r.Stats.LUTsPermuted, r.Stats.FloatingNets, r.Stats.EmptyNetsDropped)
}

// Table renders Stats as an ASCII table via go-pretty, used by the CLI's
// --verbose output.
func (r *Rewriter) Table() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"metric", "count"})
	t.AppendRow(table.Row{"cells reified", r.Stats.CellsReified})
	t.AppendRow(table.Row{"LUTs permuted", r.Stats.LUTsPermuted})
	t.AppendRow(table.Row{"floating nets", r.Stats.FloatingNets})
	t.AppendRow(table.Row{"empty nets dropped", r.Stats.EmptyNetsDropped})
	return t.Render()
}

func (r *Rewriter) sortedNets() []*design.Net {
	nets := r.ctx.Nets()
	sort.Slice(nets, func(i, j int) bool { return nets[i].ID < nets[j].ID })
	return nets
}

func (r *Rewriter) sortedCells() []*design.Cell {
	cells := r.ctx.Cells()
	sort.Slice(cells, func(i, j int) bool { return cells[i].ID < cells[j].ID })
	return cells
}
