package postroute_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/zeonica-pnr/chipdb"
	"github.com/sarchlab/zeonica-pnr/design"
	"github.com/sarchlab/zeonica-pnr/ident"
	"github.com/sarchlab/zeonica-pnr/pnrctx"
	"github.com/sarchlab/zeonica-pnr/postroute"
)

var _ = Describe("Rewriter", func() {
	It("reifies a used pass-through bel into a synthetic cell", func() {
		tbl := ident.NewTable()
		ptType := tbl.Intern("PT")
		inPort := tbl.Intern("I")
		outPort := tbl.Intern("O")

		db := &chipdb.ChipDb{
			Width: 1, Height: 1,
			TileTypes: []chipdb.TileType{{
				Name: tbl.Intern("PTTILE"),
				Bels: []chipdb.Bel{{
					Type: ptType,
					Pins: []chipdb.BelPin{
						{Port: inPort, Direction: chipdb.DirIn, WireIndex: 0},
						{Port: outPort, Direction: chipdb.DirOut, WireIndex: 1},
					},
				}},
				Wires: []chipdb.Wire{{Name: tbl.Intern("W0")}, {Name: tbl.Intern("W1")}},
				Pips:  []chipdb.Pip{{SrcWire: 0, DstWire: 1, Kind: chipdb.PipBypass}},
			}},
			Tiles:          []chipdb.Tile{{TypeIndex: 0}},
			TileWireToNode: [][]int32{{-1, -1}},
		}
		ctx := pnrctx.New(db, tbl)
		net, err := ctx.CreateNet(10)
		Expect(err).NotTo(HaveOccurred())
		Expect(ctx.BindWire(chipdb.WireLoc{Tile: 0, Index: 0}, net.ID, design.StrengthWeak)).To(Succeed())
		Expect(ctx.BindPip(0, chipdb.PipLoc{Tile: 0, Index: 0}, net.ID, design.StrengthWeak)).To(Succeed())

		r := postroute.New(ctx, postroute.Config{})
		Expect(r.Run()).To(Succeed())
		Expect(r.Stats.CellsReified).To(Equal(1))

		found := false
		for _, cell := range ctx.Cells() {
			if cell.Bel.IsBound() {
				found = true
				Expect(cell.Type).To(Equal(ptType))
			}
		}
		Expect(found).To(BeTrue())
	})

	It("does not reify a pass-through bel that already hosts a real cell", func() {
		tbl := ident.NewTable()
		ptType := tbl.Intern("PT")
		inPort := tbl.Intern("I")
		outPort := tbl.Intern("O")

		db := &chipdb.ChipDb{
			Width: 1, Height: 1,
			TileTypes: []chipdb.TileType{{
				Name: tbl.Intern("PTTILE"),
				Bels: []chipdb.Bel{{
					Type: ptType,
					Pins: []chipdb.BelPin{
						{Port: inPort, Direction: chipdb.DirIn, WireIndex: 0},
						{Port: outPort, Direction: chipdb.DirOut, WireIndex: 1},
					},
				}},
				Wires: []chipdb.Wire{{Name: tbl.Intern("W0")}, {Name: tbl.Intern("W1")}},
				Pips:  []chipdb.Pip{{SrcWire: 0, DstWire: 1, Kind: chipdb.PipBypass}},
			}},
			Tiles:          []chipdb.Tile{{TypeIndex: 0}},
			TileWireToNode: [][]int32{{-1, -1}},
		}
		ctx := pnrctx.New(db, tbl)
		occupant, err := ctx.CreateCell(1, ptType)
		Expect(err).NotTo(HaveOccurred())
		Expect(ctx.BindBel(chipdb.BelLoc{Tile: 0, Index: 0}, occupant.ID, design.StrengthUser)).To(Succeed())

		net, _ := ctx.CreateNet(10)
		Expect(ctx.BindWire(chipdb.WireLoc{Tile: 0, Index: 0}, net.ID, design.StrengthWeak)).To(Succeed())
		Expect(ctx.BindPip(0, chipdb.PipLoc{Tile: 0, Index: 0}, net.ID, design.StrengthWeak)).To(Succeed())

		r := postroute.New(ctx, postroute.Config{})
		Expect(r.Run()).To(Succeed())
		Expect(r.Stats.CellsReified).To(Equal(0))
		Expect(ctx.Cells()).To(HaveLen(1))
	})

	It("permutes a LUT's INIT table when a logical input lands on a different physical pin", func() {
		tbl := ident.NewTable()
		lutType := tbl.Intern("LUT2")
		i0Port := tbl.Intern("I0")
		i1Port := tbl.Intern("I1")
		initAttr := tbl.Intern("INIT")

		db := &chipdb.ChipDb{
			Width: 1, Height: 1,
			TileTypes: []chipdb.TileType{{
				Name: tbl.Intern("LOGIC"),
				Bels: []chipdb.Bel{{
					Type: lutType,
					Pins: []chipdb.BelPin{
						{Port: i0Port, Direction: chipdb.DirIn, WireIndex: 0},
						{Port: i1Port, Direction: chipdb.DirIn, WireIndex: 1},
					},
				}},
				Wires: []chipdb.Wire{{Name: tbl.Intern("A")}, {Name: tbl.Intern("B")}},
			}},
			Tiles:          []chipdb.Tile{{TypeIndex: 0}},
			TileWireToNode: [][]int32{{-1, -1}},
		}
		ctx := pnrctx.New(db, tbl)

		lut, err := ctx.CreateCell(1, lutType)
		Expect(err).NotTo(HaveOccurred())
		lut.AddPort(i0Port, design.PortIn)
		lut.AddPort(i1Port, design.PortIn)
		// packer recorded I0 -> I0Port, I1 -> I1Port; init encodes I0 XOR I1:
		// addr (I1<<1|I0): 0=0,1(I0=1)=1,2(I1=1)=1,3=0
		lut.Params[initAttr] = "0110"
		lut.PinToBelPin = []ident.ID{i0Port, i1Port}
		Expect(ctx.BindBel(chipdb.BelLoc{Tile: 0, Index: 0}, lut.ID, design.StrengthUser)).To(Succeed())

		netA, _ := ctx.CreateNet(10)
		netB, _ := ctx.CreateNet(11)
		Expect(ctx.Connect(lut.ID, i0Port, netA.ID)).To(Succeed())
		Expect(ctx.Connect(lut.ID, i1Port, netB.ID)).To(Succeed())

		// simulate the router having swapped which physical wire carries
		// which net: netA actually lands on bel pin I1 (wire B), netB on
		// bel pin I0 (wire A).
		Expect(ctx.BindWire(chipdb.WireLoc{Tile: 0, Index: 1}, netA.ID, design.StrengthWeak)).To(Succeed())
		Expect(ctx.BindWire(chipdb.WireLoc{Tile: 0, Index: 0}, netB.ID, design.StrengthWeak)).To(Succeed())

		r := postroute.New(ctx, postroute.Config{})
		Expect(r.Run()).To(Succeed())
		Expect(r.Stats.LUTsPermuted).To(Equal(1))
		Expect(lut.PinToBelPin).To(Equal([]ident.ID{i1Port, i0Port}))
		// truth table must be relabeled so the function computed is
		// unchanged under the swap: XOR is symmetric, so INIT stays "0110".
		Expect(lut.Params[initAttr]).To(Equal("0110"))
	})

	It("drops a fully orphaned net and reports floating nets with live users", func() {
		tbl := ident.NewTable()
		cellType := tbl.Intern("BUF")
		inPort := tbl.Intern("I")
		db := &chipdb.ChipDb{Width: 1, Height: 1, TileTypes: []chipdb.TileType{{Name: tbl.Intern("T")}}, Tiles: []chipdb.Tile{{TypeIndex: 0}}, TileWireToNode: [][]int32{{}}}
		ctx := pnrctx.New(db, tbl)

		orphan, err := ctx.CreateNet(1)
		Expect(err).NotTo(HaveOccurred())
		_ = orphan

		cell, _ := ctx.CreateCell(1, cellType)
		cell.AddPort(inPort, design.PortIn)
		floating, _ := ctx.CreateNet(2)
		Expect(ctx.Connect(cell.ID, inPort, floating.ID)).To(Succeed())

		r := postroute.New(ctx, postroute.Config{})
		Expect(r.Run()).To(Succeed())
		Expect(r.Stats.EmptyNetsDropped).To(Equal(1))
		Expect(r.Stats.FloatingNets).To(Equal(1))
		Expect(ctx.Net(1)).To(BeNil())
		Expect(ctx.Net(2)).NotTo(BeNil())
	})
})
