package csvio

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// driveLexer tokenizes the small vocabulary a pad record's "drive" field
// may hold: a bare keyword ("Undefined", "CatI", "CatII") or a current
// rating ("12mA"). Grounded on the BSDL lexer's lexer.MustSimple style.
var driveLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "MilliAmp", Pattern: `[0-9]+mA`},
	{Name: "Ident", Pattern: `[A-Za-z][A-Za-z0-9]*`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// driveSpec is the parsed shape of a pad record's drive field.
type driveSpec struct {
	MilliAmp *string `parser:"@MilliAmp"`
	Keyword  *string `parser:"| @Ident"`
}

var driveParser = participle.MustBuild[driveSpec](
	participle.Lexer(driveLexer),
	participle.Elide("Whitespace"),
)

// parseDrive parses a pad record's raw drive field into a driveSpec, or
// returns an error if it matches neither a milliamp rating nor a bare
// keyword.
func parseDrive(raw string) (*driveSpec, error) {
	return driveParser.ParseString("", raw)
}

func (d *driveSpec) isUndefined() bool { return d.Keyword != nil && *d.Keyword == "Undefined" }
func (d *driveSpec) isMilliAmp() bool  { return d.MilliAmp != nil }
func (d *driveSpec) isCat() bool {
	return d.Keyword != nil && (*d.Keyword == "CatI" || *d.Keyword == "CatII")
}
