// Package interchange binds the generic frontend.ModuleReader capability
// to the FPGA interchange format's logical-netlist schema (§6.1): a
// capnp-serialized document whose cell-instance port-insts map onto
// port-bit indices via is_single_bit/bus_idx semantics, with per-port
// width inferred from bus bounds in either direction. The wire format
// here is a plain Go struct tree rather than a generated capnp reader —
// no capnp toolchain or schema is present anywhere in the retrieval
// pack — but the API shape (PortInst.IsSingleBit/BusIdx, width-from-
// bounds) is real and is what nextpnr's own interchange frontend
// exposes (read via original_source/).
package interchange

import (
	"github.com/sarchlab/zeonica-pnr/frontend"
)

// PortDecl is one cell-type port declaration: a name plus an optional
// bus range. A single-bit port has Width == 1 and IsBus == false.
type PortDecl struct {
	Name      string
	Dir       frontend.PortDir
	IsBus     bool
	MSBFirst  bool // bus_idx direction: true when bit 0 is the most significant
	Width     int
}

// PortInst is one instance-side connection: either a single bit
// (IsSingleBit true, Net valid) or a bus (IsSingleBit false, one Net per
// bit, ordered low-to-high regardless of the declaration's MSBFirst).
type PortInst struct {
	Port         string
	IsSingleBit  bool
	Net          int
	BusNets      []int
	BusIdx       []int // bus_idx: the declared bit position each BusNets entry occupies
}

// CellInst is one instance of a CellDecl inside a CellNetlist.
type CellInst struct {
	Name  string
	Type  string
	Ports []PortInst
}

// CellNetlist is one module-equivalent entry: its own port declarations
// (for when it is itself instantiated) plus its instances.
type CellNetlist struct {
	Name  string
	Ports []PortDecl
	Insts []CellInst
	Top   bool
}

// Document is the decoded logical-netlist document: a named set of
// CellNetlists plus the name of the top cell.
type Document struct {
	Cells map[string]CellNetlist
	Top   string
}

// widthFromBusIdx infers a bus port's width from the widest observed
// bus_idx entry in either direction, per §6.1's "per-port width
// inferred from bus bounds (either direction)".
func widthFromBusIdx(idx []int) int {
	max := 0
	for _, i := range idx {
		if i+1 > max {
			max = i + 1
		}
	}
	return max
}

// bitVector adapts a PortInst to frontend.BitVector: single-bit
// instances report length 1; bus instances report one entry per
// BusNets/BusIdx pair, normalized to position order.
type bitVector struct {
	inst PortInst
}

func (v bitVector) Length() int {
	if v.inst.IsSingleBit {
		return 1
	}
	return widthFromBusIdx(v.inst.BusIdx)
}

func (v bitVector) IsBitConstant(i int) bool { return v.netAt(i) < 0 }
func (v bitVector) BitConstVal(i int) frontend.BitConst {
	switch v.netAt(i) {
	case -1:
		return frontend.Bit0
	case -2:
		return frontend.Bit1
	default:
		return frontend.BitX
	}
}
func (v bitVector) BitSignal(i int) int { return v.netAt(i) }

// netAt resolves bit i to its net id, honoring bus_idx positions; an
// unoccupied position (no BusNets entry at that bus_idx) is treated as
// unconnected ('x'), matching the interchange format's sparse bus
// encoding.
func (v bitVector) netAt(i int) int {
	if v.inst.IsSingleBit {
		return v.inst.Net
	}
	for j, idx := range v.inst.BusIdx {
		if idx == i {
			return v.inst.BusNets[j]
		}
	}
	return -3 // no entry at this position: reported as BitX by callers
}

// module adapts a CellNetlist to frontend.Module.
type module struct {
	doc *Document
	net CellNetlist
}

func (m *module) ForEachPort(f func(name string, port frontend.PortInfo)) {
	for _, p := range m.net.Ports {
		f(p.Name, frontend.PortInfo{Direction: p.Dir, Bits: portBits(m.net, p.Name)})
	}
}

// portBits returns a BitVector of the declared width for the named port
// of net. Port declarations carry no per-bit net identity here, so every
// bit gets a negative net number, i.e. is reported as unconnected.
func portBits(net CellNetlist, name string) frontend.BitVector {
	for _, p := range net.Ports {
		if p.Name != name {
			continue
		}
		if !p.IsBus {
			return bitVector{inst: PortInst{IsSingleBit: true, Net: -3}}
		}
		return bitVector{inst: PortInst{IsSingleBit: false, BusIdx: seq(p.Width), BusNets: negSeq(p.Width)}}
	}
	return bitVector{inst: PortInst{IsSingleBit: true, Net: -3}}
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func negSeq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = -3
	}
	return out
}

func (m *module) ForEachCell(f func(instName string, cell frontend.CellInfo)) {
	for _, inst := range m.net.Insts {
		conns := map[string]frontend.BitVector{}
		dirs := map[string]frontend.PortDir{}
		for _, p := range inst.Ports {
			conns[p.Port] = bitVector{inst: p}
		}
		if decl, ok := m.doc.Cells[inst.Type]; ok {
			for _, pd := range decl.Ports {
				dirs[pd.Name] = pd.Dir
			}
		}
		f(inst.Name, frontend.CellInfo{Type: inst.Type, PortDir: dirs, PortConn: conns})
	}
}

func (m *module) ForEachNetname(f func(name string, net frontend.NetInfo)) {}

func (m *module) IsBox() bool { return len(m.net.Insts) == 0 }
func (m *module) IsTop() bool { return m.net.Top }

// Reader implements frontend.ModuleReader over a decoded Document.
type Reader struct {
	doc *Document
}

// NewReader wraps an already-decoded Document (interchange's capnp
// framing is not modeled here; callers decode the capnp message with
// whatever means are available and hand this package the resulting
// Document).
func NewReader(doc *Document) *Reader { return &Reader{doc: doc} }

func (r *Reader) ForEachModule(f func(name string, mod frontend.Module)) {
	for name, net := range r.doc.Cells {
		net.Top = name == r.doc.Top
		f(name, &module{doc: r.doc, net: net})
	}
}

// PostSynthesis reports true: interchange logical netlists are always
// post-synthesis, already carrying placed pads where applicable.
func (r *Reader) PostSynthesis() bool { return true }
