// Package route implements §4.G: for every net, binding a tree of pips
// from the driver's bel-pin wire to each user's bel-pin wire. It is
// grounded on the teacher's core.Core as a sim.TickingComponent (one
// negotiated-congestion iteration per tick, mirroring how core.Core
// advances one instruction per tick) and on chipdb.BoxIndex/bart.Table
// for the per-net bounding-box search window.
package route

import (
	"container/heap"
	"sort"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/zeonica-pnr/arch"
	"github.com/sarchlab/zeonica-pnr/chipdb"
	"github.com/sarchlab/zeonica-pnr/design"
	"github.com/sarchlab/zeonica-pnr/ident"
	"github.com/sarchlab/zeonica-pnr/pnrctx"
	"github.com/sarchlab/zeonica-pnr/pnrerr"
)

// Config carries the router's architecture-specific knobs.
type Config struct {
	Arch arch.Capability

	// CongestionStart is the initial per-wire congestion penalty, charged
	// once for every net already claiming a wire the search enters.
	CongestionStart float64
	// CongestionGrowth multiplies the penalty after every iteration that
	// still has shared resources, ratcheting the pressure to rip up
	// losing nets.
	CongestionGrowth float64
}

// Default fills unset numeric fields with nextpnr-shaped defaults.
func Default(c Config) Config {
	if c.CongestionStart == 0 {
		c.CongestionStart = 0.5
	}
	if c.CongestionGrowth == 0 {
		c.CongestionGrowth = 1.25
	}
	if c.Arch.MaxRouteIterations == 0 {
		c.Arch.MaxRouteIterations = 200
	}
	return c
}

// wireUsage tracks, per iteration, how many nets currently claim a wire.
type wireUsage struct {
	users    map[design.NetID]bool
	pressure float64
}

// Router is the §4.G negotiated-congestion router. Embedding
// *sim.TickingComponent lets it be scheduled inside an akita simulation
// like every other phase component; RouteAll drives it synchronously for
// callers that do not need simulated-time pacing.
type Router struct {
	*sim.TickingComponent

	ctx *pnrctx.Context
	cfg Config

	usage map[uint64]*wireUsage

	iteration int
	done      bool
	err       error
	cancel    <-chan struct{}
}

// Builder constructs a Router through the teacher's With*/Build idiom.
type Builder struct {
	engine sim.Engine
	freq   sim.Freq
	ctx    *pnrctx.Context
	cfg    Config
}

// NewBuilder returns a Builder with the spec's documented congestion
// defaults already applied.
func NewBuilder() Builder {
	return Builder{freq: 1 * sim.GHz, cfg: Default(Config{})}
}

// WithEngine sets the akita engine the Router's ticks are scheduled on.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the tick frequency.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithContext sets the Context the Router mutates.
func (b Builder) WithContext(ctx *pnrctx.Context) Builder {
	b.ctx = ctx
	return b
}

// WithConfig sets the router configuration.
func (b Builder) WithConfig(cfg Config) Builder {
	b.cfg = Default(cfg)
	return b
}

// WithCancel sets a channel the router polls at each iteration boundary
// (§5 "the cancellation token is checked there"). A closed channel
// cancels the run, leaving the last consistent state in place.
func (b Builder) WithCancel(cancel <-chan struct{}) Builder {
	b.cancel = cancel
	return b
}

// Build creates the Router.
func (b Builder) Build(name string) *Router {
	r := &Router{
		ctx:    b.ctx,
		cfg:    b.cfg,
		usage:  make(map[uint64]*wireUsage),
		cancel: b.cancel,
	}
	r.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, r)
	return r
}

// Tick performs one negotiated-congestion iteration, satisfying
// sim.Ticker so a Router can be driven by an akita engine.
func (r *Router) Tick(now sim.VTimeInSec) (madeProgress bool) {
	if r.done {
		return false
	}
	select {
	case <-r.cancel:
		r.done = true
		return false
	default:
	}

	if r.iteration >= r.cfg.Arch.MaxRouteIterations {
		r.err = r.congestionFailure()
		r.done = true
		return false
	}

	congested := r.routeIteration()
	r.iteration++
	if !congested {
		r.fixupCrossbars()
		r.done = true
		return true
	}
	r.growPressure()
	return true
}

// RouteAll drives the router to completion synchronously.
func (r *Router) RouteAll() error {
	for !r.done {
		r.Tick(0)
	}
	return r.err
}

// routeIteration rips up and re-searches every net, returning whether
// any wire is still shared by more than one net afterward.
func (r *Router) routeIteration() bool {
	for _, net := range r.sortedNets() {
		r.ripUp(net.ID)
	}
	nets := r.sortedNets()
	for _, net := range nets {
		if !net.Driver.Valid() || len(net.Users) == 0 {
			continue
		}
		r.routeNet(net)
	}
	return r.hasCongestion()
}

func (r *Router) ripUp(netID design.NetID) {
	net := r.ctx.Net(netID)
	if net == nil {
		return
	}
	for key, binding := range net.Wires {
		loc := pnrctx.DecodeWireLoc(key)
		if binding.HasPip {
			r.ctx.UnbindPip(pnrctx.DecodePipLoc(binding.Pip))
		} else {
			r.ctx.UnbindWire(loc)
		}
		if u := r.usage[key]; u != nil {
			delete(u.users, netID)
		}
	}
}

// routeNet computes a bounding box around the net's driver and users and
// binds an A*-searched tree of pips/wires from the driver to each user
// in turn, growing the net's bound set as it goes so later searches in
// this same net can terminate on any wire already claimed.
func (r *Router) routeNet(net *design.Net) {
	box := r.netBox(net)
	box = r.ctx.Chip.Expand(box, r.cfg.Arch.RoutingMargin)
	index := chipdb.NewBoxIndex(box)

	driverWire, ok := r.pinWire(net.Driver)
	if !ok {
		return
	}
	r.claimWire(net.ID, driverWire, design.PipNone, 0, false)

	for _, user := range net.Users {
		userWire, ok := r.pinWire(user)
		if !ok {
			continue
		}
		if r.isBound(net.ID, userWire) {
			continue
		}
		path, ok := r.search(net.ID, userWire, index)
		if !ok {
			continue
		}
		for _, step := range path {
			r.claimWire(net.ID, step.wire, step.pip, step.strength, step.hasPip)
		}
	}
}

type pathStep struct {
	wire     chipdb.WireLoc
	pip      uint64
	hasPip   bool
	strength design.BelStrength
}

// claimWire binds wire (and its driving pip, if any) to net unless it is
// already bound there, and records the usage for congestion scoring.
func (r *Router) claimWire(netID design.NetID, wire chipdb.WireLoc, pip uint64, strength design.BelStrength, hasPip bool) {
	key := pnrctx.EncodeWireLoc(wire)
	if r.isBound(netID, wire) {
		r.trackUsage(key, netID)
		return
	}
	if hasPip {
		r.ctx.BindPip(wire.Tile, pnrctx.DecodePipLoc(pip), netID, design.StrengthWeak)
	} else {
		r.ctx.BindWire(wire, netID, design.StrengthWeak)
	}
	r.trackUsage(key, netID)
}

func (r *Router) trackUsage(key uint64, netID design.NetID) {
	u := r.usage[key]
	if u == nil {
		u = &wireUsage{users: map[design.NetID]bool{}, pressure: r.cfg.CongestionStart}
		r.usage[key] = u
	}
	u.users[netID] = true
}

func (r *Router) isBound(netID design.NetID, wire chipdb.WireLoc) bool {
	return r.ctx.GetBoundWireNet(wire) == netID
}

// search runs A* from any wire already bound to netID to target, with
// cost = base PredictDelay-derived weight + congestion pressure, scoped
// to wires inside index.
func (r *Router) search(netID design.NetID, target chipdb.WireLoc, index *chipdb.BoxIndex) ([]pathStep, bool) {
	net := r.ctx.Net(netID)
	starts := make([]chipdb.WireLoc, 0, len(net.Wires))
	for key := range net.Wires {
		starts = append(starts, pnrctx.DecodeWireLoc(key))
	}
	sort.Slice(starts, func(i, j int) bool {
		return pnrctx.EncodeWireLoc(starts[i]) < pnrctx.EncodeWireLoc(starts[j])
	})

	pq := &wireHeap{}
	heap.Init(pq)
	best := map[uint64]float64{}
	cameFrom := map[uint64]cameEntry{}
	isStart := map[uint64]bool{}
	targetKey := pnrctx.EncodeWireLoc(target)

	for _, s := range starts {
		key := pnrctx.EncodeWireLoc(s)
		best[key] = 0
		isStart[key] = true
		heap.Push(pq, wireNode{wire: s, cost: 0})
	}

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(wireNode)
		curKey := pnrctx.EncodeWireLoc(cur.wire)
		if curKey == targetKey {
			return reconstructPath(cameFrom, curKey, isStart), true
		}
		if cur.cost > best[curKey] {
			continue
		}
		for _, pip := range r.downhillPips(cur.wire) {
			p := r.ctx.Chip.Pip(pip)
			if p == nil {
				continue
			}
			dst := r.ctx.Chip.DstWireLoc(pip.Tile, p)
			if dst.Tile != chipdb.NoTile && !index.Contains(r.ctx.Chip.Tiles[dst.Tile].X, tileY(r.ctx.Chip, dst.Tile)) {
				continue
			}
			dstKey := pnrctx.EncodeWireLoc(dst)
			weight := r.pipWeight(pip, dst)
			next := cur.cost + weight
			if existing, ok := best[dstKey]; !ok || next < existing {
				best[dstKey] = next
				cameFrom[dstKey] = cameEntry{
					step: pathStep{wire: dst, pip: pnrctx.EncodePipLoc(pip), hasPip: true, strength: design.StrengthWeak},
					pred: curKey,
				}
				heap.Push(pq, wireNode{wire: dst, cost: next})
			}
		}
	}
	return nil, false
}

// downhillPips resolves a wire's downhill pips even when wire is nodal:
// a node has no pips of its own, so every tile-local wire the node joins
// contributes its own downhill pips to the search frontier.
func (r *Router) downhillPips(wire chipdb.WireLoc) []chipdb.PipLoc {
	if wire.Tile != chipdb.NoTile {
		return r.ctx.Chip.PipsDownhill(wire.Tile, wire.Index)
	}
	node := r.ctx.Chip.Node(wire.Index)
	if node == nil {
		return nil
	}
	var out []chipdb.PipLoc
	for _, w := range node.Wires {
		out = append(out, r.ctx.Chip.PipsDownhill(w.Tile, w.Index)...)
	}
	return out
}

// cameEntry records, for one discovered wire, the binding step that
// reached it and the key of the wire it was reached from, so the
// winning path can be walked back to any of the net's existing roots.
type cameEntry struct {
	step pathStep
	pred uint64
}

func reconstructPath(cameFrom map[uint64]cameEntry, targetKey uint64, isStart map[uint64]bool) []pathStep {
	var path []pathStep
	key := targetKey
	for {
		entry, ok := cameFrom[key]
		if !ok {
			break
		}
		path = append([]pathStep{entry.step}, path...)
		key = entry.pred
		if isStart[key] {
			break
		}
	}
	return path
}

func (r *Router) pipWeight(pip chipdb.PipLoc, dst chipdb.WireLoc) float64 {
	base := 1.0
	if r.cfg.Arch.PredictDelay != nil {
		base = r.cfg.Arch.PredictDelay(r.ctx.Chip, chipdb.BelLoc{}, ident.None, chipdb.BelLoc{}, ident.None)
		if base <= 0 {
			base = 1
		}
	}
	if u := r.usage[pnrctx.EncodeWireLoc(dst)]; u != nil && len(u.users) > 0 {
		base += u.pressure * float64(len(u.users))
	}
	return base
}

func (r *Router) hasCongestion() bool {
	for _, u := range r.usage {
		if len(u.users) > 1 {
			return true
		}
	}
	return false
}

func (r *Router) growPressure() {
	for _, u := range r.usage {
		if len(u.users) > 1 {
			u.pressure *= r.cfg.CongestionGrowth
		}
	}
}

// congestionFailure reports the worst-congested resources, per §4.G's
// "divergence after a configured iteration cap is a fatal route failure
// reporting the worst-congested resources".
func (r *Router) congestionFailure() error {
	var worstKey uint64
	worstCount := 0
	for key, u := range r.usage {
		if len(u.users) > worstCount {
			worstCount = len(u.users)
			worstKey = key
		}
	}
	loc := pnrctx.DecodeWireLoc(worstKey)
	return pnrerr.Newf(pnrerr.Congestion, formatWireLoc(loc), "", "route congestion unresolved after %d iterations, %d nets contend for the worst wire", r.cfg.Arch.MaxRouteIterations, worstCount)
}

func formatWireLoc(loc chipdb.WireLoc) string {
	if loc.Tile == chipdb.NoTile {
		return "node"
	}
	return "tile-wire"
}

// fixupCrossbars runs once routing has converged. For each net it visits
// the wires bound through a crossbar or mux pip in ascending wire-key
// order and records, per (tile, crossbar-group) key, the source wire of
// the first such pip. A later pip of the same group whose source differs
// keeps its binding: no pip is unbound, rewritten or re-routed here.
func (r *Router) fixupCrossbars() {
	for _, net := range r.sortedNets() {
		r.fixupCrossbarsForNet(net)
	}
}

func (r *Router) fixupCrossbarsForNet(net *design.Net) {
	type groupKey struct {
		tile  chipdb.TileIndex
		group ident.ID
	}
	chosen := map[groupKey]uint64{}

	keys := make([]uint64, 0, len(net.Wires))
	for key := range net.Wires {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, key := range keys {
		binding := net.Wires[key]
		if !binding.HasPip {
			continue
		}
		pipLoc := pnrctx.DecodePipLoc(binding.Pip)
		pip := r.ctx.Chip.Pip(pipLoc)
		if pip == nil || pip.Kind != chipdb.PipCrossbar && pip.Kind != chipdb.PipMux {
			continue
		}
		gk := groupKey{tile: pipLoc.Tile, group: pip.CrossbarGroup}
		srcWire := r.ctx.Chip.SrcWireLoc(pipLoc.Tile, pip)
		srcKey := pnrctx.EncodeWireLoc(srcWire)
		if existing, ok := chosen[gk]; ok && existing != srcKey {
			// a later pip disagrees with the first-chosen input for this
			// mux; it keeps its current binding.
			continue
		}
		chosen[gk] = srcKey
	}
}

func (r *Router) netBox(net *design.Net) chipdb.BoundingBox {
	var box chipdb.BoundingBox
	first := true
	add := func(ref design.PortRef) {
		cell := r.ctx.Cell(ref.Cell)
		if cell == nil || !cell.Bel.IsBound() {
			return
		}
		tile := r.ctx.Chip.Tiles[cell.Bel.Tile]
		if first {
			box = chipdb.BoundingBox{X0: tile.X, Y0: tile.Y, X1: tile.X, Y1: tile.Y}
			first = false
			return
		}
		box = box.Union(tile.X, tile.Y)
	}
	add(net.Driver)
	for _, u := range net.Users {
		add(u)
	}
	return box
}

func (r *Router) pinWire(ref design.PortRef) (chipdb.WireLoc, bool) {
	cell := r.ctx.Cell(ref.Cell)
	if cell == nil || !cell.Bel.IsBound() {
		return chipdb.WireLoc{}, false
	}
	bel := chipdb.BelLoc{Tile: chipdb.TileIndex(cell.Bel.Tile), Index: cell.Bel.Index}
	b := r.ctx.Chip.Bel(bel)
	if b == nil {
		return chipdb.WireLoc{}, false
	}
	for _, pin := range b.Pins {
		if pin.Port == ref.Port {
			return r.ctx.Chip.CanonicalWire(bel.Tile, pin.WireIndex), true
		}
	}
	return chipdb.WireLoc{}, false
}

func (r *Router) sortedNets() []*design.Net {
	nets := r.ctx.Nets()
	sort.Slice(nets, func(i, j int) bool { return nets[i].ID < nets[j].ID })
	return nets
}

func tileY(db *chipdb.ChipDb, tile chipdb.TileIndex) int32 {
	if tile == chipdb.NoTile || int(tile) >= len(db.Tiles) {
		return 0
	}
	return db.Tiles[tile].Y
}

// wireNode is one A* frontier entry.
type wireNode struct {
	wire chipdb.WireLoc
	cost float64
}

type wireHeap []wireNode

func (h wireHeap) Len() int            { return len(h) }
func (h wireHeap) Less(i, j int) bool  { return h[i].cost < h[j].cost }
func (h wireHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *wireHeap) Push(x interface{}) { *h = append(*h, x.(wireNode)) }
func (h *wireHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
