package chipdb

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"os"

	"github.com/sarchlab/zeonica-pnr/pnrerr"
)

// magic and version guard the on-disk encoding the way nextpnr's own
// binary chipdb carries a magic/version header (§4.B).
const (
	magic          = "ZPNRCDB1"
	currentVersion = 1
)

type header struct {
	Magic   string
	Version int
}

// diskImage is the gob-encoded payload written by Save and read by Load.
// The teacher repo has no analogous on-disk format (its "device" is always
// built live by config.DeviceBuilder); this loader follows the same
// Builder-returns-a-value shape for the in-memory result while using
// encoding/gob, the standard library's own "device description"
// serializer, for the immutable on-disk form — no example repo in the
// pack ships a binary chip/device database format to imitate here, so the
// ambient stdlib codec is used directly (see DESIGN.md).
type diskImage struct {
	Header header
	Db     ChipDb
}

// Save writes db to path in the loader's on-disk format.
func Save(path string, db *ChipDb) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("chipdb: create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := gob.NewEncoder(w)
	img := diskImage{Header: header{Magic: magic, Version: currentVersion}, Db: *db}
	if err := enc.Encode(&img); err != nil {
		return fmt.Errorf("chipdb: encode %s: %w", path, err)
	}
	return w.Flush()
}

// Load reads a device description from path. It fails with a
// pnrerr.Corrupt error if the magic/version header does not match, or a
// pnrerr.InputError if the path cannot be opened (the spec's
// DatabaseMissing case).
func Load(path string) (*ChipDb, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pnrerr.DatabaseMissing(path)
	}
	defer f.Close()

	dec := gob.NewDecoder(bufio.NewReader(f))
	var img diskImage
	if err := dec.Decode(&img); err != nil {
		return nil, pnrerr.DatabaseCorrupt(path)
	}
	if img.Header.Magic != magic || img.Header.Version != currentVersion {
		return nil, pnrerr.DatabaseCorrupt(path)
	}

	db := img.Db
	return &db, nil
}
