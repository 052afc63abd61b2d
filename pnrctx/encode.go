package pnrctx

import "github.com/sarchlab/zeonica-pnr/chipdb"

// EncodeWireLoc and EncodePipLoc pack a chipdb location into the uint64
// keys used by design.Net.Wires and the Context's own binding maps, so
// the design package (which must not import chipdb, per its package doc)
// can still carry wire/pip references opaquely.
func EncodeWireLoc(l chipdb.WireLoc) uint64 {
	return uint64(uint32(l.Tile))<<32 | uint64(uint32(l.Index))
}

// DecodeWireLoc reverses EncodeWireLoc.
func DecodeWireLoc(key uint64) chipdb.WireLoc {
	return chipdb.WireLoc{
		Tile:  chipdb.TileIndex(int32(uint32(key >> 32))),
		Index: int32(uint32(key)),
	}
}

// EncodePipLoc packs a chipdb.PipLoc into a uint64 key.
func EncodePipLoc(l chipdb.PipLoc) uint64 {
	return uint64(uint32(l.Tile))<<32 | uint64(uint32(l.Index))
}

// DecodePipLoc reverses EncodePipLoc.
func DecodePipLoc(key uint64) chipdb.PipLoc {
	return chipdb.PipLoc{
		Tile:  chipdb.TileIndex(int32(uint32(key >> 32))),
		Index: int32(uint32(key)),
	}
}

// EncodeBelLoc packs a chipdb.BelLoc into a uint64 key.
func EncodeBelLoc(l chipdb.BelLoc) uint64 {
	return uint64(uint32(l.Tile))<<32 | uint64(uint32(l.Index))
}

// DecodeBelLoc reverses EncodeBelLoc.
func DecodeBelLoc(key uint64) chipdb.BelLoc {
	return chipdb.BelLoc{
		Tile:  chipdb.TileIndex(int32(uint32(key >> 32))),
		Index: int32(uint32(key)),
	}
}
