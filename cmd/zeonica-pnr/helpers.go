package main

import (
	stdjson "encoding/json"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/mem"
	"github.com/tklauser/numcpus"

	"github.com/sarchlab/zeonica-pnr/arch"
	"github.com/sarchlab/zeonica-pnr/chipdb"
	"github.com/sarchlab/zeonica-pnr/ident"
	"github.com/sarchlab/zeonica-pnr/ioformat/csvio"
	"github.com/sarchlab/zeonica-pnr/ioformat/physnet"
	"github.com/sarchlab/zeonica-pnr/pnrctx"
	"github.com/sarchlab/zeonica-pnr/pnrerr"
)

// defaultArchCapability fills in the numeric cost callbacks arch.Default
// leaves nil, for devices with no capability plugin of their own: a
// Manhattan tile-distance estimate standing in for both the placer's
// wire-cost model and the router's pip-cost model, matching the
// coordinate-only cost the --device flag's generic fallback can offer
// without a real device description.
func defaultArchCapability(name string) arch.Capability {
	return arch.Default(arch.Capability{
		Name:          name,
		EstimateDelay: tileManhattanDistance,
		PredictDelay: func(db *chipdb.ChipDb, fromBel chipdb.BelLoc, _ ident.ID, toBel chipdb.BelLoc, _ ident.ID) float64 {
			return tileManhattanDistance(db, chipdb.WireLoc{Tile: fromBel.Tile}, chipdb.WireLoc{Tile: toBel.Tile})
		},
	})
}

func tileManhattanDistance(db *chipdb.ChipDb, from, to chipdb.WireLoc) float64 {
	fx, fy, fok := tileXY(db, from.Tile)
	tx, ty, tok := tileXY(db, to.Tile)
	if !fok || !tok {
		return 1
	}
	dx, dy := fx-tx, fy-ty
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return float64(dx + dy + 1)
}

func tileXY(db *chipdb.ChipDb, t chipdb.TileIndex) (x, y int32, ok bool) {
	if t < 0 || int(t) >= len(db.Tiles) {
		return 0, 0, false
	}
	tile := db.Tiles[t]
	return tile.X, tile.Y, true
}

func newTable() *ident.Table {
	return ident.NewTable()
}

func loadConstraints(path string) (*csvio.Constraints, error) {
	return csvio.ReadFile(path)
}

// writeNetlist renders ctx's placed/routed design as the §6.2 physical
// netlist and writes it as JSON to path.
func writeNetlist(path string, ctx *pnrctx.Context) error {
	doc := physnet.Build(ctx)
	f, err := os.Create(path)
	if err != nil {
		return pnrerr.Newf(pnrerr.InputError, path, "", "could not create output: %v", err)
	}
	defer f.Close()
	enc := stdjson.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// reportHostStats prints the --stats line: online CPU count and current
// memory pressure, matching akita monitoring's own host-stat surface.
func reportHostStats() {
	cpus, err := numcpus.GetOnline()
	if err != nil {
		cpus = 0
	}
	vm, err := mem.VirtualMemory()
	usedPercent := 0.0
	if err == nil {
		usedPercent = vm.UsedPercent
	}
	fmt.Fprintf(os.Stderr, "[stats] cpus=%d mem_used=%.1f%%\n", cpus, usedPercent)
}
