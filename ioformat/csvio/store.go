package csvio

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sarchlab/zeonica-pnr/pnrerr"
)

// store stages c's parsed rows into a fresh in-memory sqlite database and
// re-validates the one cross-row semantic that a single-row scan cannot
// check: every pad naming a bank (via its location's bank prefix) must
// reference a bank that was actually declared in the BANKS section.
// Grounded on SPEC_FULL §2's binding of mattn/go-sqlite3 to "a concrete
// store for the CSV reader beyond a flat slice".
func store(c *Constraints) error {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return pnrerr.New(pnrerr.Corrupt, "could not open in-memory constraint store: "+err.Error())
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE banks (name TEXT PRIMARY KEY, voltage TEXT)`); err != nil {
		return pnrerr.New(pnrerr.Corrupt, err.Error())
	}
	if _, err := db.Exec(`CREATE TABLE pads (iobname TEXT, bank TEXT, line INTEGER)`); err != nil {
		return pnrerr.New(pnrerr.Corrupt, err.Error())
	}

	for _, b := range c.Banks {
		if _, err := db.Exec(`INSERT INTO banks(name, voltage) VALUES (?, ?)`, b.Name, b.Voltage); err != nil {
			return pnrerr.New(pnrerr.Corrupt, err.Error())
		}
	}
	for _, p := range c.Pads {
		bank := bankOf(p.Location)
		if bank == "" {
			continue
		}
		if _, err := db.Exec(`INSERT INTO pads(iobname, bank, line) VALUES (?, ?, ?)`, p.IOBName, bank, p.Line); err != nil {
			return pnrerr.New(pnrerr.Corrupt, err.Error())
		}
	}

	if len(c.Banks) == 0 {
		// No bank section at all: nothing to cross-check against.
		return nil
	}

	rows, err := db.Query(`
		SELECT pads.iobname, pads.bank, pads.line FROM pads
		LEFT JOIN banks ON pads.bank = banks.name
		WHERE banks.name IS NULL`)
	if err != nil {
		return pnrerr.New(pnrerr.Corrupt, err.Error())
	}
	defer rows.Close()

	for rows.Next() {
		var iob, bank string
		var line int
		if err := rows.Scan(&iob, &bank, &line); err != nil {
			return pnrerr.New(pnrerr.Corrupt, err.Error())
		}
		return pnrerr.Newf(pnrerr.InputError, iob, bank,
			"line %d: pad %q references undeclared bank %q", line, iob, bank)
	}
	return nil
}

// bankOf extracts a bank prefix from a pad location string of the
// conventional "BANK3.A12" shape; locations with no bank qualifier
// return "".
func bankOf(location string) string {
	for i := 0; i < len(location); i++ {
		if location[i] == '.' {
			return location[:i]
		}
	}
	return ""
}
