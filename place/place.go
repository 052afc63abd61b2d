// Package place implements §4.F: assigning a bel to every cell of a
// packed design. It is grounded on the teacher's core.Core as a
// sim.TickingComponent (one annealing move per tick) built through a
// fluent Builder exactly like core.Builder/NewBuilder, and on
// cgra-new/fu.go for the pattern of driving a bounded iterative search
// from a TickingComponent's Tick method rather than a plain for loop.
package place

import (
	"math"
	"math/rand"
	"sort"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/zeonica-pnr/arch"
	"github.com/sarchlab/zeonica-pnr/chipdb"
	"github.com/sarchlab/zeonica-pnr/design"
	"github.com/sarchlab/zeonica-pnr/ident"
	"github.com/sarchlab/zeonica-pnr/pnrctx"
	"github.com/sarchlab/zeonica-pnr/pnrerr"
)

// Config carries the annealer's tunables. Every random choice the
// algorithm makes flows from Seed, per §4.F's determinism requirement.
type Config struct {
	Arch arch.Capability

	Seed int64

	// Iterations bounds the annealer's outer loop (one proposal per
	// iteration).
	Iterations int

	// InitialTemperature and CoolingRate drive the Metropolis acceptance
	// schedule: temperature *= CoolingRate after every iteration.
	InitialTemperature float64
	CoolingRate        float64

	// ClusterRootRetries is how many alternate candidate bels a cluster
	// root placement tries before the cluster is declared unplaceable
	// (supplemented feature, grounded on nextpnr's arch_pack_clusters.cc
	// retry-with-alternate-roots behavior).
	ClusterRootRetries int
}

// Default fills unset numeric fields with the values nextpnr-shaped
// placers typically use for a small-to-medium device.
func Default(c Config) Config {
	if c.Iterations == 0 {
		c.Iterations = 5000
	}
	if c.InitialTemperature == 0 {
		c.InitialTemperature = 10
	}
	if c.CoolingRate == 0 {
		c.CoolingRate = 0.999
	}
	if c.ClusterRootRetries == 0 {
		c.ClusterRootRetries = 8
	}
	return c
}

// Placer is the §4.F bel-assignment component. Embedding
// *sim.TickingComponent lets it be wired into an akita simulation the
// same way core.Core is; PlaceAll drives it synchronously for callers
// (notably tests and the CLI) that do not need simulated-time pacing.
type Placer struct {
	*sim.TickingComponent

	ctx *pnrctx.Context
	cfg Config
	rng *rand.Rand

	buckets map[ident.ID][]chipdb.BelLoc
	occupied map[uint64]design.CellID

	cost        float64
	temperature float64
	iteration   int
	done        bool
	err         error
}

// Builder constructs a Placer through the teacher's With*/Build idiom.
type Builder struct {
	engine sim.Engine
	freq   sim.Freq
	ctx    *pnrctx.Context
	cfg    Config
}

// NewBuilder returns a Builder with the spec's documented cooling
// defaults already applied.
func NewBuilder() Builder {
	return Builder{freq: 1 * sim.GHz, cfg: Default(Config{})}
}

// WithEngine sets the akita engine the Placer's ticks are scheduled on.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the tick frequency.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithContext sets the Context the Placer mutates.
func (b Builder) WithContext(ctx *pnrctx.Context) Builder {
	b.ctx = ctx
	return b
}

// WithConfig sets the annealing configuration.
func (b Builder) WithConfig(cfg Config) Builder {
	b.cfg = Default(cfg)
	return b
}

// Build creates the Placer.
func (b Builder) Build(name string) *Placer {
	p := &Placer{
		ctx:      b.ctx,
		cfg:      b.cfg,
		rng:      rand.New(rand.NewSource(b.cfg.Seed)),
		occupied: make(map[uint64]design.CellID),
	}
	p.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, p)
	p.temperature = b.cfg.InitialTemperature
	return p
}

// Tick performs one annealing proposal and reports whether it made
// progress, satisfying sim.Ticker so a Placer can be driven by an akita
// engine exactly like any other component in the pipeline.
func (p *Placer) Tick(now sim.VTimeInSec) (madeProgress bool) {
	if p.done {
		return false
	}
	if p.iteration == 0 {
		if err := p.initialPlacement(); err != nil {
			p.err = err
			p.done = true
			return false
		}
		p.cost = p.totalCost()
	}
	if p.iteration >= p.cfg.Iterations {
		p.done = true
		return false
	}
	p.anneal()
	p.iteration++
	p.temperature *= p.cfg.CoolingRate
	if p.iteration >= p.cfg.Iterations {
		p.done = true
	}
	return true
}

// PlaceAll drives the annealer to completion synchronously, without
// requiring an akita engine event loop, and returns the first error
// encountered (initial legalization failure or an unplaceable cluster).
func (p *Placer) PlaceAll() error {
	for !p.done {
		p.Tick(0)
	}
	return p.err
}

// Cost returns the annealer's current total estimated-delay cost.
func (p *Placer) Cost() float64 { return p.cost }

// initialPlacement assigns every cell an initial legal bel: clusters are
// placed root-first via placeCluster (with the alternate-root retry),
// then every remaining unclustered cell is dropped into the first free
// bel of its bucket.
func (p *Placer) initialPlacement() error {
	p.buildBuckets()

	cells := p.sortedCells()
	placedCluster := map[ident.ID]bool{}
	for _, cell := range cells {
		if cell.Cluster == ident.None || cell.ClusterRoot != cell.ID {
			continue
		}
		if err := p.placeCluster(cell); err != nil {
			return err
		}
		placedCluster[cell.Cluster] = true
	}
	for _, cell := range cells {
		if cell.Cluster != ident.None {
			continue
		}
		if cell.Bel.IsBound() {
			continue
		}
		if err := p.placeSingle(cell); err != nil {
			return err
		}
	}
	return nil
}

// placeCluster implements the supplemented "cluster placement retry with
// alternate roots" behavior: candidate root bels are tried in order;
// a candidate is accepted only if every child in the cluster resolves to
// a free, type-compatible bel via arch.Capability.ChildPlacement. Up to
// ClusterRootRetries candidates are tried before the cluster is reported
// unplaceable.
func (p *Placer) placeCluster(root *design.Cell) error {
	bucket := p.cfg.Arch.BelBucketForCellType(root.Type)
	candidates := p.buckets[bucket]
	children := p.clusterChildren(root)

	tries := 0
	for _, rootBel := range candidates {
		if tries >= p.cfg.ClusterRootRetries {
			break
		}
		if !p.belFree(rootBel) || !p.cfg.Arch.IsValidBelForCell(p.ctx.Chip, root.Type, rootBel) {
			continue
		}
		tries++

		resolved := make(map[design.CellID]chipdb.BelLoc, len(children)+1)
		resolved[root.ID] = rootBel
		ok := true
		for _, child := range children {
			bel, found := p.resolveChild(rootBel, child)
			if !found || !p.belFreeExcluding(bel, resolved) || !p.cfg.Arch.IsValidBelForCell(p.ctx.Chip, child.Type, bel) {
				ok = false
				break
			}
			resolved[child.ID] = bel
		}
		if !ok {
			continue
		}

		for id, bel := range resolved {
			cell := p.ctx.Cell(id)
			if err := p.bindCell(cell, bel); err != nil {
				return err
			}
		}
		return nil
	}
	return pnrerr.Newf(pnrerr.Impossibility, root.ID.String(), p.ctx.Idents.StrOf(root.Cluster),
		"no legal placement found for cluster after %d candidate roots", tries)
}

func (p *Placer) resolveChild(rootBel chipdb.BelLoc, child *design.Cell) (chipdb.BelLoc, bool) {
	if p.cfg.Arch.ChildPlacement == nil {
		return chipdb.BelLoc{}, false
	}
	return p.cfg.Arch.ChildPlacement(p.ctx.Chip, rootBel, child.ConstrZ)
}

func (p *Placer) clusterChildren(root *design.Cell) []*design.Cell {
	var out []*design.Cell
	for _, cell := range p.sortedCells() {
		if cell.Cluster == root.Cluster && cell.ID != root.ID {
			out = append(out, cell)
		}
	}
	return out
}

// placeSingle assigns an unclustered cell to the first free, valid bel in
// its bucket.
func (p *Placer) placeSingle(cell *design.Cell) error {
	bucket := p.cfg.Arch.BelBucketForCellType(cell.Type)
	for _, bel := range p.buckets[bucket] {
		if !p.belFree(bel) {
			continue
		}
		if !p.cfg.Arch.IsValidBelForCell(p.ctx.Chip, cell.Type, bel) {
			continue
		}
		if !p.cfg.Arch.IsBelLocationValid(p.ctx.Chip, p.snapshot(bel.Tile), bel) {
			continue
		}
		return p.bindCell(cell, bel)
	}
	return pnrerr.Newf(pnrerr.Impossibility, cell.ID.String(), p.ctx.Idents.StrOf(cell.Type),
		"no free bel of the required bucket")
}

func (p *Placer) bindCell(cell *design.Cell, bel chipdb.BelLoc) error {
	if err := p.ctx.BindBel(bel, cell.ID, design.StrengthWeak); err != nil {
		return err
	}
	p.occupied[pnrctx.EncodeBelLoc(bel)] = cell.ID
	return nil
}

func (p *Placer) unbindCell(cell *design.Cell) chipdb.BelLoc {
	bel := chipdb.BelLoc{Tile: chipdb.TileIndex(cell.Bel.Tile), Index: cell.Bel.Index}
	p.ctx.UnbindBel(bel)
	delete(p.occupied, pnrctx.EncodeBelLoc(bel))
	return bel
}

func (p *Placer) belFree(bel chipdb.BelLoc) bool {
	_, taken := p.occupied[pnrctx.EncodeBelLoc(bel)]
	return !taken
}

func (p *Placer) belFreeExcluding(bel chipdb.BelLoc, reserved map[design.CellID]chipdb.BelLoc) bool {
	key := pnrctx.EncodeBelLoc(bel)
	for _, b := range reserved {
		if pnrctx.EncodeBelLoc(b) == key {
			return false
		}
	}
	return p.belFree(bel)
}

func (p *Placer) snapshot(tile chipdb.TileIndex) arch.TileSnapshot {
	snap := arch.TileSnapshot{
		Tile:         tile,
		BoundCellsAt: map[int32]design.CellID{},
		CellTypeOf:   map[design.CellID]ident.ID{},
	}
	tt := p.ctx.Chip.TileType(tile)
	if tt == nil {
		return snap
	}
	for i := range tt.Bels {
		bel := chipdb.BelLoc{Tile: tile, Index: int32(i)}
		if cellID, ok := p.occupied[pnrctx.EncodeBelLoc(bel)]; ok {
			snap.BoundCellsAt[int32(i)] = cellID
			if cell := p.ctx.Cell(cellID); cell != nil {
				snap.CellTypeOf[cellID] = cell.Type
			}
		}
	}
	return snap
}

// buildBuckets groups every bel in the chip database by
// BelBucketForCellType applied to the bel's own declared type, so a
// lookup by a cell's bucket id returns every bel that could ever host a
// cell of a type sharing that bucket.
func (p *Placer) buildBuckets() {
	p.buckets = map[ident.ID][]chipdb.BelLoc{}
	for tIdx, tile := range p.ctx.Chip.Tiles {
		tt := &p.ctx.Chip.TileTypes[tile.TypeIndex]
		for bIdx, bel := range tt.Bels {
			bucket := p.cfg.Arch.BelBucketForCellType(bel.Type)
			loc := chipdb.BelLoc{Tile: chipdb.TileIndex(tIdx), Index: int32(bIdx)}
			p.buckets[bucket] = append(p.buckets[bucket], loc)
		}
	}
	for bucket := range p.buckets {
		locs := p.buckets[bucket]
		sort.Slice(locs, func(i, j int) bool {
			if locs[i].Tile != locs[j].Tile {
				return locs[i].Tile < locs[j].Tile
			}
			return locs[i].Index < locs[j].Index
		})
	}
}

// anneal performs one Metropolis-accepted move proposal: pick a random
// movable cell, pick a random candidate bel from its bucket, tentatively
// rebind (moving the whole cluster atomically if the cell belongs to
// one), and accept or roll back based on the resulting cost delta.
func (p *Placer) anneal() {
	cells := p.sortedCells()
	if len(cells) == 0 {
		return
	}
	cell := cells[p.rng.Intn(len(cells))]
	if !cell.Bel.IsBound() {
		return
	}
	if cell.Cluster != ident.None && cell.ClusterRoot != cell.ID {
		cell = p.ctx.Cell(cell.ClusterRoot)
	}

	bucket := p.cfg.Arch.BelBucketForCellType(cell.Type)
	candidates := p.buckets[bucket]
	if len(candidates) == 0 {
		return
	}
	target := candidates[p.rng.Intn(len(candidates))]

	before := p.affectedCost(cell)
	snapshot := p.snapshotMove(cell)
	if !p.tryMove(cell, target) {
		return
	}
	after := p.affectedCost(cell)
	delta := after - before

	if delta <= 0 || p.rng.Float64() < math.Exp(-delta/p.temperature) {
		p.cost += delta
		return
	}
	p.restoreMove(snapshot)
}

// moveRecord captures enough state to undo a rejected move.
type moveRecord struct {
	cells []*design.Cell
	bels  []chipdb.BelLoc
}

func (p *Placer) snapshotMove(root *design.Cell) moveRecord {
	members := append([]*design.Cell{root}, p.clusterChildren(root)...)
	rec := moveRecord{}
	for _, c := range members {
		rec.cells = append(rec.cells, c)
		rec.bels = append(rec.bels, chipdb.BelLoc{Tile: chipdb.TileIndex(c.Bel.Tile), Index: c.Bel.Index})
	}
	return rec
}

func (p *Placer) restoreMove(rec moveRecord) {
	for _, c := range rec.cells {
		if c.Bel.IsBound() {
			p.unbindCell(c)
		}
	}
	for i, c := range rec.cells {
		p.bindCell(c, rec.bels[i])
	}
}

// tryMove rebinds root (and, atomically, its cluster children) to
// target. A move is rejected outright (no mutation at all) unless every
// member's resolved bel is either free or currently held by another
// member of the same move, so a cluster may rotate among its own bels.
func (p *Placer) tryMove(root *design.Cell, target chipdb.BelLoc) bool {
	children := p.clusterChildren(root)
	resolved := make(map[design.CellID]chipdb.BelLoc, len(children)+1)
	resolved[root.ID] = target
	for _, child := range children {
		bel, ok := p.resolveChild(target, child)
		if !ok {
			return false
		}
		resolved[child.ID] = bel
	}

	members := append([]*design.Cell{root}, children...)
	memberSet := make(map[design.CellID]bool, len(members))
	for _, c := range members {
		memberSet[c.ID] = true
	}

	newKeys := make(map[uint64]bool, len(members))
	for _, c := range members {
		key := pnrctx.EncodeBelLoc(resolved[c.ID])
		if newKeys[key] {
			return false
		}
		newKeys[key] = true
		if occ, taken := p.occupied[key]; taken && !memberSet[occ] {
			return false
		}
		if !p.cfg.Arch.IsValidBelForCell(p.ctx.Chip, c.Type, resolved[c.ID]) {
			return false
		}
	}

	for _, c := range members {
		p.unbindCell(c)
	}
	for _, c := range members {
		if err := p.bindCell(c, resolved[c.ID]); err != nil {
			return false
		}
	}
	return true
}

// affectedCost sums the cost of every net touching root's cluster.
func (p *Placer) affectedCost(root *design.Cell) float64 {
	total := 0.0
	members := append([]*design.Cell{root}, p.clusterChildren(root)...)
	seen := map[design.NetID]bool{}
	for _, c := range members {
		for _, pid := range c.PortOrder {
			net := c.Ports[pid].Net
			if net == ident.None || seen[net] {
				continue
			}
			seen[net] = true
			total += p.netCost(net)
		}
	}
	return total
}

// totalCost recomputes the full design cost from scratch, used once
// after initial placement.
func (p *Placer) totalCost() float64 {
	total := 0.0
	for _, net := range p.ctx.Nets() {
		total += p.netCost(net.ID)
	}
	return total
}

// netCost is the HPWL-like estimate §4.F specifies: the sum of
// arch.Capability.EstimateDelay over (driver wire, user wire) pairs.
func (p *Placer) netCost(netID design.NetID) float64 {
	net := p.ctx.Net(netID)
	if net == nil || !net.Driver.Valid() || len(net.Users) == 0 {
		return 0
	}
	driverWire, ok := p.pinWire(net.Driver)
	if !ok {
		return 0
	}
	total := 0.0
	for _, user := range net.Users {
		userWire, ok := p.pinWire(user)
		if !ok {
			continue
		}
		total += p.cfg.Arch.EstimateDelay(p.ctx.Chip, driverWire, userWire)
	}
	return total
}

func (p *Placer) pinWire(ref design.PortRef) (chipdb.WireLoc, bool) {
	cell := p.ctx.Cell(ref.Cell)
	if cell == nil || !cell.Bel.IsBound() {
		return chipdb.WireLoc{}, false
	}
	bel := chipdb.BelLoc{Tile: chipdb.TileIndex(cell.Bel.Tile), Index: cell.Bel.Index}
	b := p.ctx.Chip.Bel(bel)
	if b == nil {
		return chipdb.WireLoc{}, false
	}
	for _, pin := range b.Pins {
		if pin.Port == ref.Port {
			return p.ctx.Chip.CanonicalWire(bel.Tile, pin.WireIndex), true
		}
	}
	return chipdb.WireLoc{}, false
}

func (p *Placer) sortedCells() []*design.Cell {
	cells := p.ctx.Cells()
	sort.Slice(cells, func(i, j int) bool { return cells[i].ID < cells[j].ID })
	return cells
}
