package chipdb_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/zeonica-pnr/chipdb"
	"github.com/sarchlab/zeonica-pnr/ident"
)

func tinyDb() *chipdb.ChipDb {
	tbl := ident.NewTable()
	lutType := tbl.Intern("LUT4")
	ioType := tbl.Intern("IOPAD")

	logicTile := chipdb.TileType{
		Name: tbl.Intern("LOGIC"),
		Bels: []chipdb.Bel{
			{Type: lutType, Name: tbl.Intern("LUT4_0"), Pins: []chipdb.BelPin{
				{Port: tbl.Intern("I0"), Direction: chipdb.DirIn, WireIndex: 0},
				{Port: tbl.Intern("O"), Direction: chipdb.DirOut, WireIndex: 1},
			}},
		},
		Wires: []chipdb.Wire{
			{Name: tbl.Intern("A0"), PipsDownhill: []int32{0}},
			{Name: tbl.Intern("F0"), PipsUphill: []int32{0}},
		},
		Pips: []chipdb.Pip{
			{SrcWire: 0, DstWire: 1, Kind: chipdb.PipRegular},
		},
	}
	ioTile := chipdb.TileType{
		Name: tbl.Intern("IO"),
		Bels: []chipdb.Bel{
			{Type: ioType, Name: tbl.Intern("PAD"), Pins: []chipdb.BelPin{
				{Port: tbl.Intern("O"), Direction: chipdb.DirOut, WireIndex: 0},
			}},
		},
		Wires: []chipdb.Wire{{Name: tbl.Intern("PAD_O")}},
	}

	db := &chipdb.ChipDb{
		Width:  2,
		Height: 1,
		TileTypes: []chipdb.TileType{logicTile, ioTile},
		Tiles: []chipdb.Tile{
			{TypeIndex: 0, X: 0, Y: 0},
			{TypeIndex: 1, X: 1, Y: 0},
		},
		Nodes: []chipdb.Node{
			{Wires: []chipdb.WireLoc{{Tile: 0, Index: 1}, {Tile: 1, Index: 0}}},
		},
	}
	db.TileWireToNode = [][]int32{
		{-1, 0}, // logic tile: wire 0 local, wire 1 joins node 0
		{0},     // io tile: wire 0 joins node 0
	}
	return db
}

var _ = Describe("CanonicalWire", func() {
	It("returns the tile-local form for a non-nodal wire", func() {
		db := tinyDb()
		loc := db.CanonicalWire(0, 0)
		Expect(loc).To(Equal(chipdb.WireLoc{Tile: 0, Index: 0}))
	})

	It("returns the nodal form for a wire joined into a node", func() {
		db := tinyDb()
		loc := db.CanonicalWire(0, 1)
		Expect(loc).To(Equal(chipdb.WireLoc{Tile: chipdb.NoTile, Index: 0}))
	})

	It("agrees across tiles sharing the same node", func() {
		db := tinyDb()
		a := db.CanonicalWire(0, 1)
		b := db.CanonicalWire(1, 0)
		Expect(a).To(Equal(b))
	})
})

var _ = Describe("Save/Load", func() {
	It("round-trips a ChipDb", func() {
		db := tinyDb()
		path := filepath.Join(os.TempDir(), "zeonica-pnr-chipdb-test.bin")
		defer os.Remove(path)

		Expect(chipdb.Save(path, db)).To(Succeed())

		loaded, err := chipdb.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Width).To(Equal(db.Width))
		Expect(loaded.Tiles).To(HaveLen(2))
	})

	It("fails with DatabaseMissing when the path cannot be opened", func() {
		_, err := chipdb.Load("/nonexistent/path/to/chipdb.bin")
		Expect(err).To(HaveOccurred())
	})

	It("fails with DatabaseCorrupt on a bad header", func() {
		path := filepath.Join(os.TempDir(), "zeonica-pnr-chipdb-corrupt.bin")
		Expect(os.WriteFile(path, []byte("not a chipdb"), 0o644)).To(Succeed())
		defer os.Remove(path)

		_, err := chipdb.Load(path)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("BoxIndex", func() {
	It("reports membership for tiles inside the box", func() {
		bb := chipdb.BoundingBox{X0: 0, Y0: 0, X1: 3, Y1: 3}
		idx := chipdb.NewBoxIndex(bb)
		Expect(idx.Contains(1, 1)).To(BeTrue())
		Expect(idx.Contains(5, 5)).To(BeFalse())
	})

	It("expands and clamps to the grid", func() {
		db := tinyDb()
		bb := chipdb.BoundingBox{X0: 0, Y0: 0, X1: 0, Y1: 0}
		expanded := db.Expand(bb, 5)
		Expect(expanded.X1).To(Equal(db.Width - 1))
	})
})
