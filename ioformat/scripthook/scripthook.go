// Package scripthook implements the §6.3 pre-pack/pre-place/post-route
// hook-file mini-language: one statement per line, dispatched against a
// pnrctx.Context at the named phase boundary. Grounded on the BSDL
// parser's participle grammar style (lexer.MustSimple + a typed AST) and
// on the teacher's program package for "walk a small instruction list
// and apply each to live state in order".
package scripthook

import (
	"os"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/sarchlab/zeonica-pnr/chipdb"
	"github.com/sarchlab/zeonica-pnr/design"
	"github.com/sarchlab/zeonica-pnr/pnrctx"
	"github.com/sarchlab/zeonica-pnr/pnrerr"
)

var hookLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Newline", Pattern: `\n`},
	{Name: "Whitespace", Pattern: `[ \t\r]+`},
	{Name: "String", Pattern: `"(\\.|[^"])*"`},
	{Name: "Number", Pattern: `-?[0-9]+`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_.$]*`},
})

// statement is one hook-file line's AST: a keyword followed by a fixed
// argument shape depending on which keyword matched.
type statement struct {
	SetAttr  *setAttrStmt  `parser:"@@"`
	SetParam *setParamStmt `parser:"| @@"`
	FixBel   *fixBelStmt   `parser:"| @@"`
}

type setAttrStmt struct {
	Keyword string `parser:"\"set_attr\""`
	Cell    string `parser:"@Ident"`
	Key     string `parser:"@Ident"`
	Value   string `parser:"@String"`
}

type setParamStmt struct {
	Keyword string `parser:"\"set_param\""`
	Cell    string `parser:"@Ident"`
	Key     string `parser:"@Ident"`
	Value   string `parser:"@String"`
}

type fixBelStmt struct {
	Keyword string `parser:"\"fix_bel\""`
	Cell    string `parser:"@Ident"`
	Tile    int    `parser:"@Number"`
	Bel     int    `parser:"@Number"`
}

type hookFile struct {
	Statements []statement `parser:"( @@ )*"`
}

var hookParser = participle.MustBuild[hookFile](
	participle.Lexer(hookLexer),
	participle.Elide("Comment", "Whitespace", "Newline"),
)

// Phase names the three boundaries a hook may run at (§6.3).
type Phase string

// The three hook phases.
const (
	PrePack   Phase = "pre-pack"
	PrePlace  Phase = "pre-place"
	PostRoute Phase = "post-route"
)

// unquote strips the surrounding quotes a participle String token keeps.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// Run parses and applies the hook file at path against ctx, in the
// order its statements appear.
func Run(ctx *pnrctx.Context, phase Phase, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return pnrerr.Newf(pnrerr.InputError, path, string(phase), "could not open %s hook: %v", phase, err)
	}
	file, err := hookParser.ParseString(path, string(data))
	if err != nil {
		return pnrerr.Newf(pnrerr.InputError, path, string(phase), "malformed %s hook: %v", phase, err)
	}
	for _, st := range file.Statements {
		if err := apply(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

func apply(ctx *pnrctx.Context, st statement) error {
	switch {
	case st.SetAttr != nil:
		cellID := ctx.Idents.Intern(st.SetAttr.Cell)
		cell := ctx.Cell(cellID)
		if cell == nil {
			return pnrerr.Newf(pnrerr.InputError, st.SetAttr.Cell, "", "hook: unknown cell")
		}
		cell.Attrs[ctx.Idents.Intern(st.SetAttr.Key)] = unquote(st.SetAttr.Value)
	case st.SetParam != nil:
		cellID := ctx.Idents.Intern(st.SetParam.Cell)
		cell := ctx.Cell(cellID)
		if cell == nil {
			return pnrerr.Newf(pnrerr.InputError, st.SetParam.Cell, "", "hook: unknown cell")
		}
		cell.Params[ctx.Idents.Intern(st.SetParam.Key)] = unquote(st.SetParam.Value)
	case st.FixBel != nil:
		cellID := ctx.Idents.Intern(st.FixBel.Cell)
		loc := chipdb.BelLoc{Tile: chipdb.TileIndex(st.FixBel.Tile), Index: int32(st.FixBel.Bel)}
		if err := ctx.BindBel(loc, cellID, design.StrengthFixed); err != nil {
			return err
		}
	}
	return nil
}
