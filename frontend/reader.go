// Package frontend implements the generic, language-neutral import of a
// hierarchical logic netlist into a design.Cell/design.Net graph (§4.D).
// It consumes any source satisfying the ModuleReader capability; concrete
// bindings (JSON, interchange) live under ioformat/. The package is
// grounded on the teacher's program package, whose ISA/instruction
// registration (NewISA, registerNewInst, defaultISAinit) is the same
// shape as this package's lazy, name-keyed registration of modules and
// per-bit nets while flattening hierarchy.
package frontend

// BitConst is one of the four constant bit values a netlist may carry on
// a wire, per §4.D's bit-vector query contract.
type BitConst byte

// The four constant bit values.
const (
	Bit0 BitConst = '0'
	Bit1 BitConst = '1'
	BitX BitConst = 'x'
	BitZ BitConst = 'z'
)

// BitVector is the per-bit query contract §4.D requires of ports, cell
// connections and declared nets.
type BitVector interface {
	Length() int
	IsBitConstant(i int) bool
	BitConstVal(i int) BitConst
	BitSignal(i int) int
}

// PortDir is a module port's direction as reported by the reader.
type PortDir int

// The three port directions a reader reports.
const (
	DirInput PortDir = iota
	DirOutput
	DirInout
)

// PortInfo describes one module port.
type PortInfo struct {
	Direction PortDir
	Bits      BitVector
	Offset    int
	Upto      bool
}

// CellInfo describes one cell instance inside a module.
type CellInfo struct {
	Type      string
	PortDir   map[string]PortDir
	PortConn  map[string]BitVector
	Attrs     map[string]string
	Params    map[string]string
	IsTopHint bool // explicit instance-level hint, rarely set
}

// NetInfo describes one declared net name inside a module.
type NetInfo struct {
	Bits  BitVector
	Attrs map[string]string
}

// Module is one entry of a hierarchical netlist: a set of ports, cell
// instances and declared net names.
type Module interface {
	ForEachPort(f func(name string, port PortInfo))
	ForEachCell(f func(instName string, cell CellInfo))
	ForEachNetname(f func(name string, net NetInfo))
	// IsBox reports whether this module is an opaque leaf (no body to
	// recurse into) even though it is formally "defined".
	IsBox() bool
	// IsTop reports whether the source explicitly marked this module as
	// the design's top.
	IsTop() bool
}

// ModuleReader is the capability object the surrounding system provides
// (§4.D). Iteration order is preserved where the spec requires
// deterministic output.
type ModuleReader interface {
	ForEachModule(f func(name string, mod Module))
	// PostSynthesis reports whether the design already carries synthesized
	// I/O pads, suppressing step 8's pad synthesis.
	PostSynthesis() bool
}
