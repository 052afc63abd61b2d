package design

// ConstrZKind is the fixed set of placement-hint encodings the packer
// assigns to clustered cells (§4.E "a fixed set: absolute-z, relative-z,
// chain-next, named-slot").
type ConstrZKind int

// The four constr_z encodings.
const (
	ConstrZNone ConstrZKind = iota
	ConstrZAbsolute
	ConstrZRelative
	ConstrZChainNext
	ConstrZNamedSlot
)

// ConstrZ is a cell's resolved placement hint within its cluster.
type ConstrZ struct {
	Kind ConstrZKind
	// Value is the absolute or relative z depending on Kind; unused for
	// ChainNext and NamedSlot.
	Value int32
	// Slot names the architecture-defined slot for ConstrZNamedSlot
	// (e.g. "input #3 of the register file").
	Slot string
}
