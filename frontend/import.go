package frontend

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sarchlab/zeonica-pnr/design"
	"github.com/sarchlab/zeonica-pnr/ident"
	"github.com/sarchlab/zeonica-pnr/pnrctx"
	"github.com/sarchlab/zeonica-pnr/pnrerr"
)

// nameCandidate is one candidate name for a flattened net bit, used by
// step 4's "net name selection" tie-break.
type nameCandidate struct {
	name      string
	isTopPort bool
}

// netState is bookkeeping kept per flattened net while importing, enough
// to pick a canonical name (step 4) once every module has been visited.
type netState struct {
	id         design.NetID
	candidates []nameCandidate
}

// Importer flattens a hierarchical ModuleReader into a pnrctx.Context.
// Grounded on program.ISA's lazy, name-keyed registration: modules and
// nets are both created on first reference rather than pre-declared.
type Importer struct {
	ctx    *pnrctx.Context
	reader ModuleReader

	cellSeq int
	netSeq  int

	nets map[design.NetID]*netState

	gndNet     design.NetID
	vccNet     design.NetID
	constAlloc int
}

// NewImporter creates an Importer that will write into ctx.
func NewImporter(ctx *pnrctx.Context, reader ModuleReader) *Importer {
	return &Importer{
		ctx:    ctx,
		reader: reader,
		nets:   make(map[design.NetID]*netState),
	}
}

// Import runs the full §4.D algorithm: discover top, recursively
// flatten, choose canonical net names, and (unless the source is already
// post-synthesis) synthesize top-level pad cells.
func Import(ctx *pnrctx.Context, reader ModuleReader, topOverride string) error {
	im := NewImporter(ctx, reader)

	modules := map[string]Module{}
	var order []string
	reader.ForEachModule(func(name string, mod Module) {
		modules[name] = mod
		order = append(order, name)
	})

	topName, err := selectTop(modules, order, topOverride)
	if err != nil {
		return err
	}

	localNets, err := im.importModule(topName, modules[topName], modules, nil)
	if err != nil {
		return err
	}

	im.finalizeNames(ctx.Idents)

	if !reader.PostSynthesis() {
		im.synthesizePads(topName, modules[topName], localNets)
	}

	return nil
}

// selectTop implements §4.D step 1.
func selectTop(modules map[string]Module, order []string, override string) (string, error) {
	if override != "" {
		if _, ok := modules[override]; !ok {
			return "", pnrerr.Newf(pnrerr.InputError, override, "", "--top module not found")
		}
		return override, nil
	}

	var explicit []string
	for _, name := range order {
		if modules[name].IsTop() {
			explicit = append(explicit, name)
		}
	}
	if len(explicit) == 1 {
		return explicit[0], nil
	}
	if len(explicit) > 1 {
		return "", pnrerr.Newf(pnrerr.InputError, strings.Join(explicit, ","), "", "multiple modules claim top")
	}

	instantiated := map[string]bool{}
	for _, name := range order {
		modules[name].ForEachCell(func(_ string, cell CellInfo) {
			instantiated[cell.Type] = true
		})
	}
	var candidates []string
	for _, name := range order {
		if !modules[name].IsBox() && !instantiated[name] {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}
	return "", pnrerr.Newf(pnrerr.InputError, strings.Join(candidates, ","), "", "ambiguous top module")
}

// importModule recursively flattens mod (already known to be a non-box
// module), returning its local-signal-number -> flat net id map so the
// caller (when mod is itself a submodule instance) can merge boundary
// nets with the parent's connection bits.
func (im *Importer) importModule(
	name string,
	mod Module,
	modules map[string]Module,
	path ident.List,
) (map[int]design.NetID, error) {
	localToFlat := map[int]design.NetID{}

	getNet := func(signal int) design.NetID {
		if id, ok := localToFlat[signal]; ok {
			return id
		}
		im.netSeq++
		id := im.ctx.Idents.Intern(fmt.Sprintf("$net$%d$%d", im.netSeq, signal))
		if _, err := im.ctx.CreateNet(id); err != nil {
			panic(err) // netSeq is unique per Importer; cannot collide
		}
		im.nets[id] = &netState{id: id}
		localToFlat[signal] = id
		return id
	}

	// Step 3/4: walk ports first so port names win the naming tie-break,
	// then netnames contribute lower-priority aliases.
	mod.ForEachPort(func(pname string, port PortInfo) {
		for i := 0; i < port.Bits.Length(); i++ {
			if port.Bits.IsBitConstant(i) {
				continue
			}
			sig := port.Bits.BitSignal(i)
			id := getNet(sig)
			phys := physIndex(port.Offset, port.Bits.Length(), port.Upto, i)
			im.addCandidate(id, fmt.Sprintf("%s[%d]", pname, phys), true)
		}
	})

	mod.ForEachNetname(func(nname string, net NetInfo) {
		for i := 0; i < net.Bits.Length(); i++ {
			if net.Bits.IsBitConstant(i) {
				continue
			}
			sig := net.Bits.BitSignal(i)
			id := getNet(sig)
			im.addCandidate(id, fmt.Sprintf("%s[%d]", nname, i), false)
		}
	})

	var cellErr error
	mod.ForEachCell(func(instName string, cell CellInfo) {
		if cellErr != nil {
			return
		}
		sub, isSub := modules[cell.Type]
		if isSub && !sub.IsBox() {
			cellErr = im.importSubmodule(instName, cell, sub, modules, path, getNet)
			return
		}
		cellErr = im.importLeaf(instName, cell, path, getNet)
	})
	if cellErr != nil {
		return nil, cellErr
	}

	return localToFlat, nil
}

// importSubmodule flattens a cell whose type names another (non-box)
// module: its port-bit nets are identified with the parent net on the
// corresponding bit (§4.D step 5).
func (im *Importer) importSubmodule(
	instName string,
	cell CellInfo,
	sub Module,
	modules map[string]Module,
	path ident.List,
	parentNet func(int) design.NetID,
) error {
	childPath := append(append(ident.List{}, path...), im.ctx.Idents.Intern(instName))

	// Capture the child module's own port bit vectors before recursing so
	// each connection bit can be matched to the child's local signal
	// number for that exact port bit, not merely its position.
	childPorts := map[string]BitVector{}
	sub.ForEachPort(func(pname string, port PortInfo) {
		childPorts[pname] = port.Bits
	})

	childLocals, err := im.importModule(cell.Type, sub, modules, childPath)
	if err != nil {
		return err
	}

	for portName, conn := range cell.PortConn {
		dir := cell.PortDir[portName]
		childBits := childPorts[portName]
		for i := 0; i < conn.Length(); i++ {
			if conn.IsBitConstant(i) {
				// A constant driven onto a submodule input merges the
				// child's net for that bit into the canonical GND/VCC net
				// ('x'/'z' bits leave it undriven); a constant bound to a
				// submodule output is rejected.
				if dir == DirOutput {
					return pnrerr.Newf(pnrerr.InputError, instName, portName,
						"submodule output cannot be bound to a constant")
				}
				if childBits != nil && i < childBits.Length() && !childBits.IsBitConstant(i) {
					if childID, ok := childLocals[childBits.BitSignal(i)]; ok {
						im.mergeNets(im.constantNet(conn.BitConstVal(i)), childID)
					}
				}
				continue
			}
			if childBits == nil || i >= childBits.Length() || childBits.IsBitConstant(i) {
				continue
			}
			parentSig := conn.BitSignal(i)
			childSig := childBits.BitSignal(i)
			childID, ok := childLocals[childSig]
			if !ok {
				continue
			}
			im.mergeNets(parentNet(parentSig), childID)
		}
	}
	return nil
}

// importLeaf creates a device cell for a leaf instance and wires its
// connections, materializing constant-driver cells for constant bits
// (§4.D step 7).
func (im *Importer) importLeaf(
	instName string,
	cell CellInfo,
	path ident.List,
	getNet func(int) design.NetID,
) error {
	im.cellSeq++
	cellID := im.ctx.Idents.Intern(fmt.Sprintf("$cell$%d$%s", im.cellSeq, instName))
	typeID := im.ctx.Idents.Intern(cell.Type)

	dc, err := im.ctx.CreateCell(cellID, typeID)
	if err != nil {
		return err
	}
	dc.HierPath = append(append(ident.List{}, path...), im.ctx.Idents.Intern(instName))
	for k, v := range cell.Attrs {
		dc.Attrs[im.ctx.Idents.Intern(k)] = v
	}
	for k, v := range cell.Params {
		dc.Params[im.ctx.Idents.Intern(k)] = v
	}

	for portName, conn := range cell.PortConn {
		dir := cell.PortDir[portName]
		pid := im.ctx.Idents.Intern(portName)
		var pdir design.PortDirection
		switch dir {
		case DirInput:
			pdir = design.PortIn
		case DirOutput:
			pdir = design.PortOut
		default:
			pdir = design.PortInout
		}
		dc.AddPort(pid, pdir)

		if conn.Length() != 1 {
			// Wide ports are modeled bit-by-bit upstream of the device
			// primitive boundary; a leaf cell port connects to exactly
			// one net bit, matching the spec's per-bit PortRef model.
			continue
		}
		if conn.IsBitConstant(0) {
			net := im.constantNet(conn.BitConstVal(0))
			if net == ident.None {
				continue // 'x'/'z': undriven, left dangling per §4.D step 7
			}
			if err := im.ctx.Connect(cellID, pid, net); err != nil {
				return err
			}
			continue
		}
		netID := getNet(conn.BitSignal(0))
		if err := im.ctx.Connect(cellID, pid, netID); err != nil {
			return err
		}
	}
	return nil
}

// constantNet returns the single canonical GND or VCC net (§4.E
// "Constants are canonicalized to exactly two distinguished nets driven
// by at most one cell each"), creating the driving cell and the net on
// first use; 'x'/'z' bits have no driver at all and return ident.None.
func (im *Importer) constantNet(v BitConst) design.NetID {
	switch v {
	case Bit0:
		return im.constNet(&im.gndNet, "GND")
	case Bit1:
		return im.constNet(&im.vccNet, "VCC")
	default:
		return ident.None
	}
}

func (im *Importer) constNet(slot *design.NetID, typeName string) design.NetID {
	if *slot != ident.None {
		return *slot
	}
	im.constAlloc++
	cellID := im.ctx.Idents.Intern(fmt.Sprintf("$%s_drv$%d", typeName, im.constAlloc))
	typeID := im.ctx.Idents.Intern(typeName)
	cell, err := im.ctx.CreateCell(cellID, typeID)
	if err != nil {
		panic(err)
	}
	outPort := im.ctx.Idents.Intern("O")
	cell.AddPort(outPort, design.PortOut)

	netID := im.ctx.Idents.Intern("$" + typeName)
	if _, err := im.ctx.CreateNet(netID); err != nil {
		panic(err)
	}
	im.nets[netID] = &netState{id: netID}
	if err := im.ctx.Connect(cellID, outPort, netID); err != nil {
		panic(err)
	}
	*slot = netID
	return netID
}

// mergeNets re-points every user and the driver of `absorbed` onto
// `surviving`, unions alias lists, and never creates a second driver
// (§4.D step 6).
func (im *Importer) mergeNets(surviving, absorbed design.NetID) {
	if surviving == ident.None || absorbed == ident.None || surviving == absorbed {
		return
	}
	survivingNet := im.ctx.Net(surviving)
	absorbedNet := im.ctx.Net(absorbed)
	if survivingNet == nil || absorbedNet == nil {
		return
	}

	if absorbedNet.Driver.Valid() {
		ref := absorbedNet.Driver
		im.ctx.Disconnect(ref.Cell, ref.Port)
		im.ctx.Connect(ref.Cell, ref.Port, surviving)
	}
	for _, ref := range append([]design.PortRef{}, absorbedNet.Users...) {
		im.ctx.Disconnect(ref.Cell, ref.Port)
		im.ctx.Connect(ref.Cell, ref.Port, surviving)
	}

	if ss, ok := im.nets[surviving]; ok {
		if as, ok := im.nets[absorbed]; ok {
			ss.candidates = append(ss.candidates, as.candidates...)
		}
	}
	im.ctx.RemoveNet(absorbed)
	delete(im.nets, absorbed)
}

func (im *Importer) addCandidate(id design.NetID, name string, isTopPort bool) {
	if st, ok := im.nets[id]; ok {
		st.candidates = append(st.candidates, nameCandidate{name: name, isTopPort: isTopPort})
	}
}

// finalizeNames applies the step-4 tie-break: top-level port name, then
// fewer '$', then fewer '.', then lexicographically smaller. Non-chosen
// candidates become aliases.
func (im *Importer) finalizeNames(idents *ident.Table) {
	for _, st := range im.nets {
		if len(st.candidates) == 0 {
			continue
		}
		sort.SliceStable(st.candidates, func(i, j int) bool {
			a, b := st.candidates[i], st.candidates[j]
			if a.isTopPort != b.isTopPort {
				return a.isTopPort
			}
			if da, db := strings.Count(a.name, "$"), strings.Count(b.name, "$"); da != db {
				return da < db
			}
			if da, db := strings.Count(a.name, "."), strings.Count(b.name, "."); da != db {
				return da < db
			}
			return a.name < b.name
		})
		net := im.ctx.Net(st.id)
		if net == nil {
			continue
		}
		for _, c := range st.candidates[1:] {
			net.Aliases = append(net.Aliases, idents.Intern(c.name))
		}
	}
}

// physIndex implements step 3's upto handling: physical index = upto ?
// offset + length - i - 1 : offset + i.
func physIndex(offset, length int, upto bool, i int) int {
	if upto {
		return offset + length - i - 1
	}
	return offset + i
}

// synthesizePads adds pad cells for top-level port bits (§4.D step 8):
// an IBUF for each input bit whose net has no driver yet, an OBUF for
// each output bit and an IOBUF for each inout bit. It is skipped
// entirely when the reader reports the design is already post-synthesis.
func (im *Importer) synthesizePads(topName string, top Module, localNets map[int]design.NetID) {
	top.ForEachPort(func(pname string, port PortInfo) {
		for i := 0; i < port.Bits.Length(); i++ {
			if port.Bits.IsBitConstant(i) {
				continue
			}
			sig := port.Bits.BitSignal(i)
			netID, ok := localNets[sig]
			if !ok {
				continue
			}
			net := im.ctx.Net(netID)
			if net == nil {
				continue
			}
			switch port.Direction {
			case DirInput:
				if net.Driver.Valid() {
					continue
				}
				im.addPad(netID, "IBUF", pname, i, true)
			case DirOutput:
				im.addPad(netID, "OBUF", pname, i, false)
			default:
				im.addPad(netID, "IOBUF", pname, i, false)
			}
		}
	})
}

func (im *Importer) addPad(net design.NetID, padType, portName string, bit int, isDriver bool) {
	im.cellSeq++
	id := im.ctx.Idents.Intern(fmt.Sprintf("$pad$%d$%s[%d]", im.cellSeq, portName, bit))
	typeID := im.ctx.Idents.Intern(padType)
	cell, err := im.ctx.CreateCell(id, typeID)
	if err != nil {
		return
	}
	outPort := im.ctx.Idents.Intern("O")
	inPort := im.ctx.Idents.Intern("I")
	if isDriver {
		cell.AddPort(outPort, design.PortOut)
		im.ctx.Connect(id, outPort, net)
	} else {
		cell.AddPort(inPort, design.PortIn)
		im.ctx.Connect(id, inPort, net)
	}
}
