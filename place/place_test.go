package place_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/zeonica-pnr/arch"
	"github.com/sarchlab/zeonica-pnr/chipdb"
	"github.com/sarchlab/zeonica-pnr/design"
	"github.com/sarchlab/zeonica-pnr/ident"
	"github.com/sarchlab/zeonica-pnr/place"
	"github.com/sarchlab/zeonica-pnr/pnrctx"
)

func capability() arch.Capability {
	return arch.Default(arch.Capability{
		EstimateDelay: func(db *chipdb.ChipDb, from, to chipdb.WireLoc) float64 {
			return 1
		},
		ChildPlacement: func(db *chipdb.ChipDb, root chipdb.BelLoc, constr design.ConstrZ) (chipdb.BelLoc, bool) {
			if constr.Kind != design.ConstrZRelative {
				return chipdb.BelLoc{}, false
			}
			return chipdb.BelLoc{Tile: root.Tile, Index: root.Index + constr.Value}, true
		},
	})
}

var _ = Describe("Placer", func() {
	It("places a single unclustered cell on the matching bel", func() {
		tbl := ident.NewTable()
		lutType := tbl.Intern("LUT4")
		db := &chipdb.ChipDb{
			Width: 1, Height: 1,
			TileTypes: []chipdb.TileType{{
				Name: tbl.Intern("LOGIC"),
				Bels: []chipdb.Bel{{Type: lutType}},
			}},
			Tiles: []chipdb.Tile{{TypeIndex: 0}},
		}
		ctx := pnrctx.New(db, tbl)
		ctx.CreateCell(1, lutType)

		p := place.NewBuilder().
			WithContext(ctx).
			WithConfig(place.Config{Arch: capability(), Iterations: 0}).
			Build("placer")

		Expect(p.PlaceAll()).To(Succeed())
		Expect(ctx.Cell(1).Bel.IsBound()).To(BeTrue())
	})

	It("places a cluster root and child atomically via ChildPlacement", func() {
		tbl := ident.NewTable()
		rootType := tbl.Intern("ROOTT")
		childType := tbl.Intern("CHILDT")
		db := &chipdb.ChipDb{
			Width: 1, Height: 1,
			TileTypes: []chipdb.TileType{{
				Name: tbl.Intern("LOGIC"),
				Bels: []chipdb.Bel{{Type: rootType}, {Type: childType}},
			}},
			Tiles: []chipdb.Tile{{TypeIndex: 0}},
		}
		ctx := pnrctx.New(db, tbl)
		root, _ := ctx.CreateCell(1, rootType)
		child, _ := ctx.CreateCell(2, childType)

		clusterName := tbl.Intern("$cluster$0")
		root.Cluster = clusterName
		root.ClusterRoot = root.ID
		child.Cluster = clusterName
		child.ClusterRoot = root.ID
		child.ConstrZ = design.ConstrZ{Kind: design.ConstrZRelative, Value: 1}

		p := place.NewBuilder().
			WithContext(ctx).
			WithConfig(place.Config{Arch: capability(), Iterations: 0, ClusterRootRetries: 4}).
			Build("placer")

		Expect(p.PlaceAll()).To(Succeed())
		Expect(root.Bel.IsBound()).To(BeTrue())
		Expect(child.Bel.IsBound()).To(BeTrue())
		Expect(child.Bel.Index).To(Equal(root.Bel.Index + 1))
	})

	It("reports impossibility when no bel of the cell's type exists", func() {
		tbl := ident.NewTable()
		lutType := tbl.Intern("LUT4")
		bramType := tbl.Intern("BRAM36")
		db := &chipdb.ChipDb{
			Width: 1, Height: 1,
			TileTypes: []chipdb.TileType{{
				Name: tbl.Intern("LOGIC"),
				Bels: []chipdb.Bel{{Type: lutType}},
			}},
			Tiles: []chipdb.Tile{{TypeIndex: 0}},
		}
		ctx := pnrctx.New(db, tbl)
		ctx.CreateCell(1, bramType)

		p := place.NewBuilder().
			WithContext(ctx).
			WithConfig(place.Config{Arch: capability(), Iterations: 0}).
			Build("placer")

		err := p.PlaceAll()
		Expect(err).To(HaveOccurred())
	})
})
