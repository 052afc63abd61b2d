// Package csvio implements the §6.5 per-device I/O constraints reader:
// a CSV file of pad, bank and global-clock records separated by "!"
// section markers, validated row by row with a line-numbered fatal
// diagnostic on the first violation. Grounded on the teacher's
// config.DeviceBuilder for "load once, validate eagerly, fail fast" and
// on the BSDL parser's participle grammar style for the drive-field
// vocabulary (drive.go). Parsed rows are staged into an in-memory
// sqlite table (store.go) before the cross-row bank/pad join check runs,
// giving "the CSV reader" a real queryable store rather than a bare
// slice, per SPEC_FULL §2.
package csvio

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/sarchlab/zeonica-pnr/pnrerr"
)

// PadRecord is one of the 15-field pad constraint rows.
type PadRecord struct {
	IOBName               string
	Location              string
	Standard              string
	Drive                 string
	SlewRate              string
	InputDelayLine        string
	OutputDelayLine       string
	Differential          string
	WeakTermination       string
	Termination           string
	TerminationReference  string
	Turbo                 string
	InputSignalSlope      string
	OutputCapacity        string
	Registered            string
	Line                  int
}

var padFields = 15

// BankRecord is one bank-voltage row.
type BankRecord struct {
	Name     string
	Voltage  string
	Reserved string
	Line     int
}

// ClockRecord is one global-clock row; the field count varies by
// architecture, so it is kept as a raw field slice.
type ClockRecord struct {
	Fields []string
	Line   int
}

// Section names the current "!"-delimited section of the file; section
// names select which record shape subsequent rows are parsed as.
type Section string

// The three section kinds the file format recognizes.
const (
	SectionPads   Section = "PADS"
	SectionBanks  Section = "BANKS"
	SectionClocks Section = "CLOCKS"
)

// Constraints holds every parsed row of one constraints file.
type Constraints struct {
	Pads   []PadRecord
	Banks  []BankRecord
	Clocks []ClockRecord
}

// Read parses a §6.5 constraints CSV from r. Validation runs per pad row
// as it is parsed so the first invalid row aborts with a line-numbered
// diagnostic, matching the "Clash CSV" end-to-end scenario.
func Read(r io.Reader) (*Constraints, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	out := &Constraints{}
	section := SectionPads
	lineNo := 0

	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, pnrerr.Newf(pnrerr.InputError, "", "", "line %d: malformed CSV row: %v", lineNo+1, err)
		}
		lineNo++

		if len(fields) == 1 && strings.HasPrefix(fields[0], "!") {
			section = Section(strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(fields[0]), "!")))
			continue
		}

		switch section {
		case SectionBanks:
			out.Banks = append(out.Banks, parseBank(fields, lineNo))
		case SectionClocks:
			out.Clocks = append(out.Clocks, ClockRecord{Fields: fields, Line: lineNo})
		default:
			pad, perr := parsePad(fields, lineNo)
			if perr != nil {
				return nil, perr
			}
			out.Pads = append(out.Pads, pad)
		}
	}

	if err := store(out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadFile opens path and parses it as a §6.5 constraints file.
func ReadFile(path string) (*Constraints, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pnrerr.Newf(pnrerr.InputError, path, "", "could not open constraints CSV: %v", err)
	}
	defer f.Close()
	return Read(f)
}

func field(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return fields[i]
}

func parseBank(fields []string, line int) BankRecord {
	return BankRecord{
		Name:     field(fields, 0),
		Voltage:  field(fields, 1),
		Reserved: field(fields, 2),
		Line:     line,
	}
}

func parsePad(fields []string, line int) (PadRecord, error) {
	if len(fields) != padFields {
		return PadRecord{}, pnrerr.Newf(pnrerr.InputError, "", "", "line %d: pad record needs %d fields, got %d", line, padFields, len(fields))
	}
	p := PadRecord{
		IOBName:              fields[0],
		Location:             fields[1],
		Standard:             fields[2],
		Drive:                fields[3],
		SlewRate:             fields[4],
		InputDelayLine:       fields[5],
		OutputDelayLine:      fields[6],
		Differential:         fields[7],
		WeakTermination:      fields[8],
		Termination:          fields[9],
		TerminationReference: fields[10],
		Turbo:                fields[11],
		InputSignalSlope:     fields[12],
		OutputCapacity:       fields[13],
		Registered:           fields[14],
		Line:                 line,
	}
	if err := validatePad(p); err != nil {
		return PadRecord{}, err
	}
	return p, nil
}

// validatePad implements §6.5's semantic validations. Errors report the
// offending line number and the exact rule violated, matching the
// "Clash CSV" scenario's required diagnostic text.
func validatePad(p PadRecord) error {
	drive, err := parseDrive(p.Drive)
	if err != nil {
		return pnrerr.Newf(pnrerr.InputError, "", "", "line %d: unrecognized drive value %q", p.Line, p.Drive)
	}

	standard := strings.ToUpper(p.Standard)
	switch {
	case standard == "LVDS":
		if !drive.isUndefined() {
			return pnrerr.Newf(pnrerr.InputError, "", "", "line %d: LVDS requires drive = Undefined", p.Line)
		}
	case standard == "LVCMOS":
		if !drive.isMilliAmp() {
			return pnrerr.Newf(pnrerr.InputError, "", "", "line %d: LVCMOS requires drive = <N>mA", p.Line)
		}
	case standard == "SSTL" || standard == "HSTL":
		if !drive.isCat() {
			return pnrerr.Newf(pnrerr.InputError, "", "", "line %d: %s requires drive = CatI|CatII", p.Line, standard)
		}
	}

	if p.TerminationReference == "Floating" {
		if p.Differential != "True" {
			return pnrerr.Newf(pnrerr.InputError, "", "", "line %d: terminationReference = Floating requires differential = True", p.Line)
		}
		if p.WeakTermination != "None" {
			return pnrerr.Newf(pnrerr.InputError, "", "", "line %d: terminationReference = Floating requires weakTermination = None", p.Line)
		}
	}

	return nil
}
