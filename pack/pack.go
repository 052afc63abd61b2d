// Package pack implements §4.E: the architecture-specific rewrite of the
// flattened front-end netlist into device-primitive cells, plus cluster
// and chain construction. It is grounded on the teacher's program
// package's instruction-rewrite passes (program.Program methods that
// walk and replace instr.Instr values in place) and, for chain
// splitting, on original_source/'s arch_pack_chains.cc.
package pack

import (
	"fmt"
	"sort"

	"github.com/sarchlab/zeonica-pnr/arch"
	"github.com/sarchlab/zeonica-pnr/chipdb"
	"github.com/sarchlab/zeonica-pnr/design"
	"github.com/sarchlab/zeonica-pnr/ident"
	"github.com/sarchlab/zeonica-pnr/pnrctx"
	"github.com/sarchlab/zeonica-pnr/pnrerr"
)

// FusionRule describes one LUT-output-feeds-one-DFF-input fusion the
// architecture allows: when a cell of LUTType drives, on OutPort, a
// single user of DFFType connected on InPort, the pair may be replaced
// by one cell of FusedType (§4.E "LUT/DFF fusion").
type FusionRule struct {
	LUTType ident.ID
	DFFType ident.ID
	OutPort ident.ID
	InPort  ident.ID
	Fused   ident.ID
}

// Config carries the architecture-specific knobs the packer needs; it is
// built once per device alongside the arch.Capability the placer and
// router share.
type Config struct {
	Arch arch.Capability

	// Fusions is tried, in order, against every cell of LUTType.
	Fusions []FusionRule

	// Clusters names the chip database's cluster templates to apply, in
	// priority order (first match wins a given cell).
	Clusters []ident.ID

	// ChainSeed reports whether a cell type is the head of a carry chain
	// the packer walks along its carry-out fan-out (see chainNext).
	ChainSeed func(cellType ident.ID) bool

	// MaxChainSpan bounds how many chain links may occupy the same tile
	// column before the chain is split into a fresh cluster, mirroring
	// arch_pack_chains.cc's per-column length cap.
	MaxChainSpan int

	// Placeable reports whether cellType names a type that exists
	// somewhere in the ChipDb and can ever be bound to a bel. Defaults to
	// "some tile type has a bel of this type" when nil.
	Placeable func(db *chipdb.ChipDb, cellType ident.ID) bool
}

// Packer runs the passes of §4.E against one Context in place.
type Packer struct {
	ctx *pnrctx.Context
	cfg Config

	clusterSeq int
}

// New creates a Packer bound to ctx using cfg.
func New(ctx *pnrctx.Context, cfg Config) *Packer {
	if cfg.Placeable == nil {
		cfg.Placeable = defaultPlaceable
	}
	return &Packer{ctx: ctx, cfg: cfg}
}

// Run executes every pass in the order §4.E describes: constant
// canonicalization, LUT/DFF fusion, chain construction, cluster
// construction, and finally the placeability check every architecture
// pack must honor.
func (p *Packer) Run() error {
	p.canonicalizeConstants()
	p.fuseLUTDFF()
	p.buildChains()
	p.buildClusters()
	return p.checkPlaceability()
}

// canonicalizeConstants removes constant-driver cells (type GND/VCC) that
// ended up with no users, enforcing "unused constant drivers are
// removed" (§4.E). The frontend importer already guarantees at most one
// driver cell per constant value; this pass only prunes the case where
// every consumer of a constant was itself later optimized away.
func (p *Packer) canonicalizeConstants() {
	for _, net := range p.ctx.Nets() {
		if len(net.Users) > 0 || !net.Driver.Valid() {
			continue
		}
		driver := p.ctx.Cell(net.Driver.Cell)
		if driver == nil {
			continue
		}
		name := p.ctx.Idents.StrOf(driver.Type)
		if name != "GND" && name != "VCC" {
			continue
		}
		p.ctx.Disconnect(net.Driver.Cell, net.Driver.Port)
		p.ctx.RemoveNet(net.ID)
		p.ctx.RemoveCell(driver.ID)
	}
}

// fuseLUTDFF implements §4.E's fusion example: where a LUT output feeds
// exactly one flip-flop input, the pair is replaced with one composite
// cell of the architecture's fused type, carrying the union of both
// cells' parameters and a rewired port set matching the surviving net
// topology.
func (p *Packer) fuseLUTDFF() {
	for _, rule := range p.cfg.Fusions {
		p.applyFusion(rule)
	}
}

func (p *Packer) applyFusion(rule FusionRule) {
	for _, lut := range p.ctx.Cells() {
		if lut.Type != rule.LUTType {
			continue
		}
		outPort, ok := lut.Ports[rule.OutPort]
		if !ok || outPort.Net == ident.None {
			continue
		}
		net := p.ctx.Net(outPort.Net)
		if net == nil || len(net.Users) != 1 {
			continue
		}
		user := net.Users[0]
		dff := p.ctx.Cell(user.Cell)
		if dff == nil || dff.Type != rule.DFFType || user.Port != rule.InPort {
			continue
		}

		lut.Type = rule.Fused
		for k, v := range dff.Params {
			if _, exists := lut.Params[k]; !exists {
				lut.Params[k] = v
			}
		}
		for k, v := range dff.Attrs {
			if _, exists := lut.Attrs[k]; !exists {
				lut.Attrs[k] = v
			}
		}
		p.ctx.Disconnect(lut.ID, rule.OutPort)
		p.ctx.Disconnect(dff.ID, rule.InPort)
		p.ctx.RemoveNet(net.ID)

		for _, pid := range dff.PortOrder {
			if pid == rule.InPort {
				continue
			}
			port := dff.Ports[pid]
			if _, exists := lut.Ports[pid]; exists {
				continue
			}
			lut.AddPort(pid, port.Direction)
			if port.Net == ident.None {
				continue
			}
			p.ctx.Disconnect(dff.ID, pid)
			p.ctx.Connect(lut.ID, pid, port.Net)
		}
		p.ctx.RemoveCell(dff.ID)
	}
}

// buildChains walks carry-chain seeds along their carry-out fan-out (it
// runs only when both cfg.ChainSeed and arch.Capability.ChainSuccessor
// are set, though ChainSuccessor itself is not called), grouping
// consecutive links into a chain cluster and assigning
// ConstrZChainNext to every non-head link. Per original_source/'s
// arch_pack_chains.cc, a chain longer than cfg.MaxChainSpan is split into
// multiple clusters rather than one unbounded one, since no single
// cluster may straddle more tile columns than the architecture allows a
// rigid placement to span.
func (p *Packer) buildChains() {
	if p.cfg.ChainSeed == nil || p.cfg.Arch.ChainSuccessor == nil {
		return
	}
	max := p.cfg.MaxChainSpan
	if max <= 0 {
		max = 1 << 30
	}

	seen := map[design.CellID]bool{}
	for _, cell := range p.sortedCells() {
		if seen[cell.ID] || !p.cfg.ChainSeed(cell.Type) || isChainLink(cell) {
			continue
		}
		chain := p.walkChain(cell, seen)
		for start := 0; start < len(chain); start += max {
			end := start + max
			if end > len(chain) {
				end = len(chain)
			}
			p.makeChainCluster(chain[start:end])
		}
	}
}

// isChainLink reports whether cell was already claimed as a successor of
// some earlier chain walk, so a later outer-loop cell that happens to
// also satisfy ChainSeed is not re-walked as a second chain head.
func isChainLink(cell *design.Cell) bool {
	return cell.Cluster != ident.None
}

func (p *Packer) walkChain(head *design.Cell, seen map[design.CellID]bool) []*design.Cell {
	chain := []*design.Cell{head}
	seen[head.ID] = true
	current := head
	for {
		next := p.chainNext(current)
		if next == nil || seen[next.ID] {
			break
		}
		chain = append(chain, next)
		seen[next.ID] = true
		current = next
	}
	return chain
}

// chainNext finds the cell, if any, bound (logically, pre-placement) to
// follow current in its carry chain: the unique fan-out cell of current's
// carry-out net that is itself a chain-eligible type. Chain membership
// order follows the netlist's own carry-out fan-out;
// arch.Capability.ChainSuccessor is not called here or by the placer.
func (p *Packer) chainNext(current *design.Cell) *design.Cell {
	for _, pid := range current.PortOrder {
		port := current.Ports[pid]
		if port.Direction != design.PortOut || port.Net == ident.None {
			continue
		}
		net := p.ctx.Net(port.Net)
		if net == nil || len(net.Users) != 1 {
			continue
		}
		cand := p.ctx.Cell(net.Users[0].Cell)
		if cand != nil && p.cfg.ChainSeed(cand.Type) {
			return cand
		}
	}
	return nil
}

func (p *Packer) makeChainCluster(chain []*design.Cell) {
	if len(chain) < 2 {
		return
	}
	p.clusterSeq++
	name := p.ctx.Idents.Intern(fmt.Sprintf("$chain$%d", p.clusterSeq))
	root := chain[0]
	root.Cluster = name
	root.ClusterRoot = root.ID
	root.ConstrZ = design.ConstrZ{Kind: design.ConstrZAbsolute}
	for _, link := range chain[1:] {
		link.Cluster = name
		link.ClusterRoot = root.ID
		link.ConstrZ = design.ConstrZ{Kind: design.ConstrZChainNext}
	}
}

// buildClusters applies the chip database's declared cluster templates
// (§3 "cluster invariants hold: cluster_root(ci).cluster == ci.name") to
// any cell not already claimed by chain construction, matching cells to
// templates by type and required port pattern.
func (p *Packer) buildClusters() {
	for _, tplName := range p.cfg.Clusters {
		tpl, ok := p.ctx.Chip.Clusters[tplName]
		if !ok {
			continue
		}
		p.applyClusterTemplate(tpl)
	}
}

func (p *Packer) applyClusterTemplate(tpl chipdb.ClusterTemplate) {
	typeSet := map[ident.ID]bool{}
	for _, t := range tpl.CellTypes {
		typeSet[t] = true
	}

	var members []*design.Cell
	for _, cell := range p.sortedCells() {
		if cell.Cluster != ident.None || !typeSet[cell.Type] {
			continue
		}
		ports, ok := tpl.PortPatterns[cell.Type]
		if ok && !hasAllPorts(cell, ports) {
			continue
		}
		members = append(members, cell)
	}
	if len(members) == 0 {
		return
	}

	p.clusterSeq++
	name := p.ctx.Idents.Intern(fmt.Sprintf("$%s$%d", p.ctx.Idents.StrOf(tpl.Name), p.clusterSeq))
	root := members[0]
	root.Cluster = name
	root.ClusterRoot = root.ID
	root.ConstrZ = design.ConstrZ{Kind: design.ConstrZAbsolute}
	for i, cell := range members[1:] {
		cell.Cluster = name
		cell.ClusterRoot = root.ID
		cell.ConstrZ = design.ConstrZ{Kind: design.ConstrZRelative, Value: int32(i + 1)}
	}
}

func hasAllPorts(cell *design.Cell, required []ident.ID) bool {
	for _, p := range required {
		if _, ok := cell.Ports[p]; !ok {
			return false
		}
	}
	return true
}

// checkPlaceability enforces "every cell whose type can never be placed
// fabricates a diagnostic before abort" and "every cell remaining after
// pack has a type that exists in the ChipDb" (§4.E).
func (p *Packer) checkPlaceability() error {
	for _, cell := range p.sortedCells() {
		if !p.cfg.Placeable(p.ctx.Chip, cell.Type) {
			return pnrerr.Newf(pnrerr.Impossibility, cell.ID.String(),
				p.ctx.Idents.StrOf(cell.Type), "no bel of this type exists in the chip database")
		}
	}
	return nil
}

// sortedCells returns every cell ordered by id so chain and cluster
// construction is deterministic regardless of Go's map iteration order
// (§4.G determinism requirement, applied here too since pack precedes
// place and any non-determinism here would propagate).
func (p *Packer) sortedCells() []*design.Cell {
	cells := p.ctx.Cells()
	sort.Slice(cells, func(i, j int) bool { return cells[i].ID < cells[j].ID })
	return cells
}

func defaultPlaceable(db *chipdb.ChipDb, cellType ident.ID) bool {
	for _, tt := range db.TileTypes {
		for _, bel := range tt.Bels {
			if bel.Type == cellType {
				return true
			}
		}
	}
	return false
}
