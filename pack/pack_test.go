package pack_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/zeonica-pnr/arch"
	"github.com/sarchlab/zeonica-pnr/chipdb"
	"github.com/sarchlab/zeonica-pnr/design"
	"github.com/sarchlab/zeonica-pnr/ident"
	"github.com/sarchlab/zeonica-pnr/pack"
	"github.com/sarchlab/zeonica-pnr/pnrctx"
)

func dummyArch() arch.Capability {
	return arch.Capability{
		ChainSuccessor: func(*chipdb.ChipDb, chipdb.BelLoc) (chipdb.BelLoc, bool) {
			return chipdb.BelLoc{}, false
		},
	}
}

func fixture() (*pnrctx.Context, *ident.Table) {
	tbl := ident.NewTable()
	db := &chipdb.ChipDb{
		Width: 1, Height: 1,
		TileTypes: []chipdb.TileType{{
			Name: tbl.Intern("LOGIC"),
			Bels: []chipdb.Bel{
				{Type: tbl.Intern("LUT4")},
				{Type: tbl.Intern("DFF")},
				{Type: tbl.Intern("CARRY4")},
			},
		}},
		Tiles: []chipdb.Tile{{TypeIndex: 0}},
	}
	db.TileWireToNode = [][]int32{{}}
	return pnrctx.New(db, tbl), tbl
}

var _ = Describe("Packer.fuseLUTDFF", func() {
	It("fuses a LUT driving exactly one DFF input into one cell", func() {
		ctx, tbl := fixture()
		lut, _ := ctx.CreateCell(1, tbl.Intern("LUT4"))
		lut.AddPort(tbl.Intern("O"), design.PortOut)
		dff, _ := ctx.CreateCell(2, tbl.Intern("DFF"))
		dff.AddPort(tbl.Intern("D"), design.PortIn)
		dff.AddPort(tbl.Intern("Q"), design.PortOut)

		ctx.CreateNet(10)
		Expect(ctx.Connect(1, tbl.Intern("O"), 10)).To(Succeed())
		Expect(ctx.Connect(2, tbl.Intern("D"), 10)).To(Succeed())

		p := pack.New(ctx, pack.Config{
			Fusions: []pack.FusionRule{{
				LUTType: tbl.Intern("LUT4"),
				DFFType: tbl.Intern("DFF"),
				OutPort: tbl.Intern("O"),
				InPort:  tbl.Intern("D"),
				Fused:   tbl.Intern("LOGIC_CELL"),
			}},
			Placeable: func(*chipdb.ChipDb, ident.ID) bool { return true },
		})
		Expect(p.Run()).To(Succeed())

		Expect(ctx.Cell(2)).To(BeNil())
		fused := ctx.Cell(1)
		Expect(fused.Type).To(Equal(tbl.Intern("LOGIC_CELL")))
		Expect(fused.Ports).To(HaveKey(tbl.Intern("Q")))
		Expect(ctx.Net(10)).To(BeNil())
	})

	It("does not fuse when the LUT output drives more than one user", func() {
		ctx, tbl := fixture()
		lut, _ := ctx.CreateCell(1, tbl.Intern("LUT4"))
		lut.AddPort(tbl.Intern("O"), design.PortOut)
		dff, _ := ctx.CreateCell(2, tbl.Intern("DFF"))
		dff.AddPort(tbl.Intern("D"), design.PortIn)
		other, _ := ctx.CreateCell(3, tbl.Intern("DFF"))
		other.AddPort(tbl.Intern("D"), design.PortIn)

		ctx.CreateNet(10)
		Expect(ctx.Connect(1, tbl.Intern("O"), 10)).To(Succeed())
		Expect(ctx.Connect(2, tbl.Intern("D"), 10)).To(Succeed())
		Expect(ctx.Connect(3, tbl.Intern("D"), 10)).To(Succeed())

		p := pack.New(ctx, pack.Config{
			Fusions: []pack.FusionRule{{
				LUTType: tbl.Intern("LUT4"),
				DFFType: tbl.Intern("DFF"),
				OutPort: tbl.Intern("O"),
				InPort:  tbl.Intern("D"),
				Fused:   tbl.Intern("LOGIC_CELL"),
			}},
			Placeable: func(*chipdb.ChipDb, ident.ID) bool { return true },
		})
		Expect(p.Run()).To(Succeed())

		Expect(ctx.Cell(1).Type).To(Equal(tbl.Intern("LUT4")))
		Expect(ctx.Cell(2)).NotTo(BeNil())
	})
})

var _ = Describe("Packer.canonicalizeConstants", func() {
	It("removes a constant driver left with no users", func() {
		ctx, tbl := fixture()
		gnd, _ := ctx.CreateCell(1, tbl.Intern("GND"))
		gnd.AddPort(tbl.Intern("O"), design.PortOut)
		ctx.CreateNet(10)
		Expect(ctx.Connect(1, tbl.Intern("O"), 10)).To(Succeed())

		p := pack.New(ctx, pack.Config{
			Placeable: func(*chipdb.ChipDb, ident.ID) bool { return true },
		})
		Expect(p.Run()).To(Succeed())

		Expect(ctx.Cell(1)).To(BeNil())
		Expect(ctx.Net(10)).To(BeNil())
	})
})

var _ = Describe("Packer.buildChains", func() {
	It("groups carry-chain cells into a chain-next cluster", func() {
		ctx, tbl := fixture()
		carryType := tbl.Intern("CARRY4")
		coPort := tbl.Intern("CO")
		ciPort := tbl.Intern("CI")

		var cells []*design.Cell
		for i := design.CellID(1); i <= 3; i++ {
			c, _ := ctx.CreateCell(i, carryType)
			c.AddPort(ciPort, design.PortIn)
			c.AddPort(coPort, design.PortOut)
			cells = append(cells, c)
		}
		for i := 0; i < 2; i++ {
			netID := ident.ID(100 + i)
			ctx.CreateNet(netID)
			Expect(ctx.Connect(cells[i].ID, coPort, netID)).To(Succeed())
			Expect(ctx.Connect(cells[i+1].ID, ciPort, netID)).To(Succeed())
		}

		p := pack.New(ctx, pack.Config{
			ChainSeed:      func(t ident.ID) bool { return t == carryType },
			MaxChainSpan:   10,
			Placeable:      func(*chipdb.ChipDb, ident.ID) bool { return true },
			Arch:           dummyArch(),
		})
		Expect(p.Run()).To(Succeed())

		root := ctx.Cell(1)
		Expect(root.Cluster).NotTo(Equal(ident.None))
		Expect(ctx.Cell(2).Cluster).To(Equal(root.Cluster))
		Expect(ctx.Cell(3).Cluster).To(Equal(root.Cluster))
		Expect(ctx.Cell(2).ConstrZ.Kind).To(Equal(design.ConstrZChainNext))
		Expect(ctx.Cell(3).ClusterRoot).To(Equal(root.ID))
	})

	It("splits a chain longer than MaxChainSpan into multiple clusters", func() {
		ctx, tbl := fixture()
		carryType := tbl.Intern("CARRY4")
		coPort := tbl.Intern("CO")
		ciPort := tbl.Intern("CI")

		var cells []*design.Cell
		for i := design.CellID(1); i <= 5; i++ {
			c, _ := ctx.CreateCell(i, carryType)
			c.AddPort(ciPort, design.PortIn)
			c.AddPort(coPort, design.PortOut)
			cells = append(cells, c)
		}
		for i := 0; i < 4; i++ {
			netID := ident.ID(100 + i)
			ctx.CreateNet(netID)
			Expect(ctx.Connect(cells[i].ID, coPort, netID)).To(Succeed())
			Expect(ctx.Connect(cells[i+1].ID, ciPort, netID)).To(Succeed())
		}

		p := pack.New(ctx, pack.Config{
			ChainSeed:    func(t ident.ID) bool { return t == carryType },
			MaxChainSpan: 2,
			Placeable:    func(*chipdb.ChipDb, ident.ID) bool { return true },
			Arch:         dummyArch(),
		})
		Expect(p.Run()).To(Succeed())

		clusters := map[ident.ID]bool{}
		for _, id := range []design.CellID{1, 2, 3, 4, 5} {
			clusters[ctx.Cell(id).Cluster] = true
		}
		Expect(len(clusters)).To(BeNumerically(">", 1))
	})
})

var _ = Describe("Packer.checkPlaceability", func() {
	It("reports an impossibility for a cell type absent from the chip database", func() {
		ctx, tbl := fixture()
		ctx.CreateCell(1, tbl.Intern("BRAM36"))

		p := pack.New(ctx, pack.Config{})
		err := p.Run()
		Expect(err).To(HaveOccurred())
	})
})
