package chipdb

import (
	"net/netip"

	"github.com/gaissmai/bart"
)

// BoundingBox is the router's per-net search window (§4.G step 1):
// "compute a bounding box around its driver and users; expand_bounding_box
// adds an architecture-specific margin; the box is intersected with the
// grid".
type BoundingBox struct {
	X0, Y0, X1, Y1 int32
}

// Union grows bb to also cover (x, y).
func (bb BoundingBox) Union(x, y int32) BoundingBox {
	if x < bb.X0 {
		bb.X0 = x
	}
	if x > bb.X1 {
		bb.X1 = x
	}
	if y < bb.Y0 {
		bb.Y0 = y
	}
	if y > bb.Y1 {
		bb.Y1 = y
	}
	return bb
}

// Expand grows the box by margin in every direction and clamps it to the
// device grid, implementing expand_bounding_box.
func (db *ChipDb) Expand(bb BoundingBox, margin int32) BoundingBox {
	bb.X0 -= margin
	bb.Y0 -= margin
	bb.X1 += margin
	bb.Y1 += margin
	if bb.X0 < 0 {
		bb.X0 = 0
	}
	if bb.Y0 < 0 {
		bb.Y0 = 0
	}
	if bb.X1 >= db.Width {
		bb.X1 = db.Width - 1
	}
	if bb.Y1 >= db.Height {
		bb.Y1 = db.Height - 1
	}
	return bb
}

// tileAddr encodes a tile coordinate as a synthetic IPv4 address so it can
// be carried by a bart.Table, whose longest-prefix-match trie is built for
// address ranges: (x, y) becomes the 4 octets (xHi, xLo, yHi, yLo).
func tileAddr(x, y int32) netip.Addr {
	return netip.AddrFrom4([4]byte{
		byte(uint16(x) >> 8), byte(uint16(x)),
		byte(uint16(y) >> 8), byte(uint16(y)),
	})
}

// tilePrefix returns the /32 host route for the single tile (x, y);
// NewBoxIndex inserts one such route per tile of the box.
func tilePrefix(x, y int32) netip.Prefix {
	return netip.PrefixFrom(tileAddr(x, y), 32)
}

// BoxIndex is a membership index over a router bounding box, used in
// place of a plain map[coord]struct{} so the per-net search window reuses
// the pack's longest-prefix-match routing table instead of a bespoke set:
// every tile inside the box is inserted as a /32 host route and Lookup is
// the router's "is this wire's tile still inside my search window" test
// during A* expansion.
type BoxIndex struct {
	tbl *bart.Table[struct{}]
	box BoundingBox
}

// NewBoxIndex builds a BoxIndex covering every tile inside bb.
func NewBoxIndex(bb BoundingBox) *BoxIndex {
	idx := &BoxIndex{tbl: new(bart.Table[struct{}]), box: bb}
	for y := bb.Y0; y <= bb.Y1; y++ {
		for x := bb.X0; x <= bb.X1; x++ {
			idx.tbl.Insert(tilePrefix(x, y), struct{}{})
		}
	}
	return idx
}

// Contains reports whether (x, y) lies inside the indexed box.
func (b *BoxIndex) Contains(x, y int32) bool {
	return b.tbl.Contains(tileAddr(x, y))
}

// Box returns the bounding box the index was built from.
func (b *BoxIndex) Box() BoundingBox {
	return b.box
}
