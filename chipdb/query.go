package chipdb

// TileAt returns the tile at (x, y).
func (db *ChipDb) TileAt(x, y int32) *Tile {
	idx := y*db.Width + x
	if idx < 0 || int(idx) >= len(db.Tiles) {
		return nil
	}
	return &db.Tiles[idx]
}

// TileType returns the TileType owning the given tile.
func (db *ChipDb) TileType(t TileIndex) *TileType {
	if t < 0 || int(t) >= len(db.Tiles) {
		return nil
	}
	return &db.TileTypes[db.Tiles[t].TypeIndex]
}

// Bel returns the Bel at loc.
func (db *ChipDb) Bel(loc BelLoc) *Bel {
	tt := db.TileType(loc.Tile)
	if tt == nil || int(loc.Index) >= len(tt.Bels) {
		return nil
	}
	return &tt.Bels[loc.Index]
}

// WireOf returns the Wire for a tile-local WireLoc. It does not resolve
// nodal wires; use CanonicalWire first when the caller does not already
// know whether the wire is nodal.
func (db *ChipDb) WireOf(loc WireLoc) *Wire {
	if loc.Tile == NoTile {
		return nil
	}
	tt := db.TileType(loc.Tile)
	if tt == nil || int(loc.Index) >= len(tt.Wires) {
		return nil
	}
	return &tt.Wires[loc.Index]
}

// Node returns the Node at the given node id.
func (db *ChipDb) Node(id int32) *Node {
	if id < 0 || int(id) >= len(db.Nodes) {
		return nil
	}
	return &db.Nodes[id]
}

// Pip returns the Pip at loc.
func (db *ChipDb) Pip(loc PipLoc) *Pip {
	tt := db.TileType(loc.Tile)
	if tt == nil || int(loc.Index) >= len(tt.Pips) {
		return nil
	}
	return &tt.Pips[loc.Index]
}

// SrcWireLoc and DstWireLoc resolve a Pip's endpoints to canonical wire
// locations (nodal form when the endpoint participates in a node).
func (db *ChipDb) SrcWireLoc(tile TileIndex, p *Pip) WireLoc {
	return db.CanonicalWire(tile, p.SrcWire)
}

// DstWireLoc resolves a pip's destination endpoint to its canonical wire
// location.
func (db *ChipDb) DstWireLoc(tile TileIndex, p *Pip) WireLoc {
	return db.CanonicalWire(tile, p.DstWire)
}

// CanonicalWire implements §4.B's key algorithm: given (tile, wire_idx),
// if the tile's tile_wire_to_node entry is not -1 the canonical form is
// the nodal wire (-1, node_id); otherwise the tile-local form is returned
// unchanged.
func (db *ChipDb) CanonicalWire(tile TileIndex, wireIdx int32) WireLoc {
	if tile == NoTile {
		return WireLoc{Tile: NoTile, Index: wireIdx}
	}
	nodes := db.TileWireToNode[tile]
	if int(wireIdx) < len(nodes) {
		if node := nodes[wireIdx]; node >= 0 {
			return WireLoc{Tile: NoTile, Index: node}
		}
	}
	return WireLoc{Tile: tile, Index: wireIdx}
}

// PipsUphill returns the tile-local locations of every pip feeding into
// the given tile-local wire.
func (db *ChipDb) PipsUphill(tile TileIndex, wireIdx int32) []PipLoc {
	tt := db.TileType(tile)
	if tt == nil || int(wireIdx) >= len(tt.Wires) {
		return nil
	}
	w := tt.Wires[wireIdx]
	out := make([]PipLoc, len(w.PipsUphill))
	for i, p := range w.PipsUphill {
		out[i] = PipLoc{Tile: tile, Index: p}
	}
	return out
}

// PipsDownhill returns the canonical pip locations driven by the given
// tile-local wire.
func (db *ChipDb) PipsDownhill(tile TileIndex, wireIdx int32) []PipLoc {
	tt := db.TileType(tile)
	if tt == nil || int(wireIdx) >= len(tt.Wires) {
		return nil
	}
	w := tt.Wires[wireIdx]
	out := make([]PipLoc, len(w.PipsDownhill))
	for i, p := range w.PipsDownhill {
		out[i] = PipLoc{Tile: tile, Index: p}
	}
	return out
}
