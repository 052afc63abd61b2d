package ident

// Global is the process-wide interner. Most production code shares this
// single table so that constants assigned below are stable process-wide;
// tests that want isolation construct their own Table with NewTable
// instead. The preloaded ids below are interned once at package init,
// before any concurrent reader (placer/router workers) can observe them,
// satisfying §4.A's publish
// requirement without additional locking on the hot path.
var Global = NewTable()

// Preloaded constant ids for the handful of names that appear on every hot
// path (port directions, the two constant nets, common bel/pin types) so
// comparisons against them never need a hash lookup.
var (
	IDInput  = Global.Intern("I")
	IDOutput = Global.Intern("O")
	IDInout  = Global.Intern("IO")

	IDGND = Global.Intern("GND")
	IDVCC = Global.Intern("VCC")

	IDClock  = Global.Intern("CLK")
	IDReset  = Global.Intern("RST")
	IDEnable = Global.Intern("EN")
)

// Preload interns the given constant names into Global, returning their
// ids in order. Call during process init for architecture-specific
// constant tables (bel type names, pin names) so later lookups are
// allocation-free. Safe to call concurrently with other Intern calls:
// each name goes through Intern, which holds the table's lock.
func Preload(names ...string) []ID {
	ids := make([]ID, len(names))
	for i, n := range names {
		ids[i] = Global.Intern(n)
	}
	return ids
}
