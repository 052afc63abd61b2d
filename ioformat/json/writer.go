package json

import (
	"encoding/json"
	"io"
	"os"
	"sort"

	"github.com/sarchlab/zeonica-pnr/chipdb"
	"github.com/sarchlab/zeonica-pnr/design"
	"github.com/sarchlab/zeonica-pnr/pnrctx"
	"golang.org/x/exp/slices"
)

// Setup carries the device-level metadata §6.2 requires in the bitstream
// document's "setup" object.
type Setup struct {
	Variant string            `json:"variant"`
	IOBanks map[string]string `json:"iobanks"`
}

// instanceRecord is one placed cell's bitstream record.
type instanceRecord struct {
	Type string `json:"type"`
	Tile int32  `json:"tile"`
	Bel  int32  `json:"bel"`
}

type doc struct {
	Instances map[string]instanceRecord `json:"instances"`
	Nets      map[string][]string       `json:"nets"`
	Setup     Setup                     `json:"setup"`
}

// WriteBitstream renders ctx's placed-and-routed design as the §6.2 JSON
// bitstream document: one instance record per bound cell, one net record
// per net whose value is the sorted set of traversed pip strings
// "SRC_TILE:src_wire->DST_TILE:dst_wire".
func WriteBitstream(w io.Writer, ctx *pnrctx.Context, setup Setup) error {
	out := doc{
		Instances: map[string]instanceRecord{},
		Nets:      map[string][]string{},
		Setup:     setup,
	}

	for _, cell := range ctx.Cells() {
		if !cell.Bel.IsBound() {
			continue
		}
		name := ctx.Idents.StrOf(cell.ID)
		out.Instances[name] = instanceRecord{
			Type: ctx.Idents.StrOf(cell.Type),
			Tile: cell.Bel.Tile,
			Bel:  cell.Bel.Index,
		}
	}

	for _, net := range ctx.Nets() {
		name := ctx.Idents.StrOf(net.ID)
		out.Nets[name] = pipStrings(ctx, net)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// WriteBitstreamFile is the file-path convenience wrapper used by
// cmd/zeonica-pnr's --bit flag.
func WriteBitstreamFile(path string, ctx *pnrctx.Context, setup Setup) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteBitstream(f, ctx, setup)
}

// pipStrings walks every wire binding of net that carries a pip and
// renders "SRC_TILE:src_wire->DST_TILE:dst_wire", sorted for
// reproducibility (§6.2).
func pipStrings(ctx *pnrctx.Context, net *design.Net) []string {
	var out []string
	for key, binding := range net.Wires {
		if !binding.HasPip {
			continue
		}
		dst := pnrctx.DecodeWireLoc(key)
		pip := pnrctx.DecodePipLoc(binding.Pip)
		p := ctx.Chip.Pip(pip)
		if p == nil {
			continue
		}
		src := ctx.Chip.SrcWireLoc(pip.Tile, p)
		out = append(out, formatTraversal(ctx, src)+"->"+formatTraversal(ctx, dst))
	}
	sort.Strings(out)
	return slices.Clip(out)
}

func formatTraversal(ctx *pnrctx.Context, loc chipdb.WireLoc) string {
	return tileName(ctx, loc.Tile) + ":" + wireName(ctx, loc)
}

func tileName(ctx *pnrctx.Context, t chipdb.TileIndex) string {
	if t == chipdb.NoTile || int32(t) >= int32(len(ctx.Chip.Tiles)) {
		return "NODE"
	}
	tt := ctx.Chip.TileType(t)
	if tt == nil {
		return "TILE"
	}
	return ctx.Idents.StrOf(tt.Name)
}

func wireName(ctx *pnrctx.Context, loc chipdb.WireLoc) string {
	w := ctx.Chip.WireOf(loc)
	if w == nil {
		return "?"
	}
	return ctx.Idents.StrOf(w.Name)
}
