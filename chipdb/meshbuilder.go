package chipdb

import (
	"fmt"

	"github.com/sarchlab/zeonica-pnr/ident"
)

// MeshBuilder builds a regular width x height grid of identical tiles,
// each carrying one bel per configured (type, direction) pair and wired
// to its four orthogonal neighbors by a shared crossbar. Grounded on
// config.DeviceBuilder's fluent With*/Build construction of a CGRA mesh
// (createTiles/connectTiles): the CGRA's live tile-to-tile port
// connections become Node-joined directional wires here, and the CGRA
// core occupying each tile becomes a tile's placeable bels — the same
// "connect every tile to its orthogonal neighbors" idiom, generalized
// from a simulated device to a static chip database.
type MeshBuilder struct {
	idents       *ident.Table
	width        int
	height       int
	tileTypeName ident.ID
	belTypes     []ident.ID
	belDirs      []Direction
}

// NewMeshBuilder creates a 1x1 MeshBuilder with no bels; every With*
// call narrows or grows it before Build.
func NewMeshBuilder(idents *ident.Table) MeshBuilder {
	return MeshBuilder{idents: idents, width: 1, height: 1, tileTypeName: idents.Intern("MESH")}
}

// WithWidth sets the number of tile columns.
func (b MeshBuilder) WithWidth(w int) MeshBuilder {
	b.width = w
	return b
}

// WithHeight sets the number of tile rows.
func (b MeshBuilder) WithHeight(h int) MeshBuilder {
	b.height = h
	return b
}

// WithTileTypeName overrides the generated TileType's name.
func (b MeshBuilder) WithTileTypeName(name ident.ID) MeshBuilder {
	b.tileTypeName = name
	return b
}

// WithBel adds one more bel of belType to every tile, with a single pin
// of the given direction wired into the mesh crossbar.
func (b MeshBuilder) WithBel(belType ident.ID, dir Direction) MeshBuilder {
	b.belTypes = append(append([]ident.ID{}, b.belTypes...), belType)
	b.belDirs = append(append([]Direction{}, b.belDirs...), dir)
	return b
}

// the four directional wire indices sit immediately after the per-bel
// pin wires in every tile's wire list.
const (
	meshEastOffset = iota
	meshWestOffset
	meshNorthOffset
	meshSouthOffset
	meshDirCount
)

// Build constructs the width x height chip database: one TileType shared
// by every tile, a regular pip from every output/inout pin to all four
// directional wires and from all four directional wires to every
// input/inout pin, and a Node joining each tile's east/north wire to its
// east/north neighbor's west/south wire.
func (b MeshBuilder) Build() *ChipDb {
	n := len(b.belTypes)
	pinPort := b.idents.Intern("P")

	tt := TileType{Name: b.tileTypeName}
	for i, belType := range b.belTypes {
		tt.Bels = append(tt.Bels, Bel{
			Type: belType,
			Name: b.idents.Intern(fmt.Sprintf("BEL%d", i)),
			Pins: []BelPin{{Port: pinPort, Direction: b.belDirs[i], WireIndex: int32(i)}},
		})
		tt.Wires = append(tt.Wires, Wire{Name: b.idents.Intern(fmt.Sprintf("PIN%d", i))})
	}
	dirNames := [meshDirCount]string{"EAST", "WEST", "NORTH", "SOUTH"}
	dirWire := [meshDirCount]int32{}
	for i, name := range dirNames {
		dirWire[i] = int32(n + i)
		tt.Wires = append(tt.Wires, Wire{Name: b.idents.Intern(name)})
	}

	for i, dir := range b.belDirs {
		pin := int32(i)
		if dir == DirOut || dir == DirInout {
			for _, dw := range dirWire {
				pipIdx := int32(len(tt.Pips))
				tt.Pips = append(tt.Pips, Pip{SrcWire: pin, DstWire: dw, Kind: PipRegular})
				tt.Wires[pin].PipsDownhill = append(tt.Wires[pin].PipsDownhill, pipIdx)
			}
		}
		if dir == DirIn || dir == DirInout {
			for _, dw := range dirWire {
				pipIdx := int32(len(tt.Pips))
				tt.Pips = append(tt.Pips, Pip{SrcWire: dw, DstWire: pin, Kind: PipRegular})
				tt.Wires[dw].PipsDownhill = append(tt.Wires[dw].PipsDownhill, pipIdx)
			}
		}
	}

	db := &ChipDb{
		Name:      b.tileTypeName,
		Width:     int32(b.width),
		Height:    int32(b.height),
		TileTypes: []TileType{tt},
	}

	wireCount := n + meshDirCount
	at := func(x, y int) int { return y*b.width + x }

	for y := 0; y < b.height; y++ {
		for x := 0; x < b.width; x++ {
			db.Tiles = append(db.Tiles, Tile{TypeIndex: 0, X: int32(x), Y: int32(y)})
		}
	}

	tileWireToNode := make([][]int32, b.width*b.height)
	for i := range tileWireToNode {
		row := make([]int32, wireCount)
		for j := range row {
			row[j] = -1
		}
		tileWireToNode[i] = row
	}

	join := func(tileA int, wireA int32, tileB int, wireB int32) {
		nodeID := int32(len(db.Nodes))
		db.Nodes = append(db.Nodes, Node{Wires: []WireLoc{
			{Tile: TileIndex(tileA), Index: wireA},
			{Tile: TileIndex(tileB), Index: wireB},
		}})
		tileWireToNode[tileA][wireA] = nodeID
		tileWireToNode[tileB][wireB] = nodeID
	}

	for y := 0; y < b.height; y++ {
		for x := 0; x < b.width; x++ {
			here := at(x, y)
			if x+1 < b.width {
				join(here, dirWire[meshEastOffset], at(x+1, y), dirWire[meshWestOffset])
			}
			if y+1 < b.height {
				join(here, dirWire[meshNorthOffset], at(x, y+1), dirWire[meshSouthOffset])
			}
		}
	}
	db.TileWireToNode = tileWireToNode

	return db
}
