// Package ident implements the process-wide string-to-integer interning
// table described in §4.A. It is grounded on the teacher's package-level,
// mutex-guarded name registry (cgra.sideNames/sideNamesMu and
// confignew.NameIDBinding), generalized from a fixed enum of side names to
// an open-ended, append-only table of arbitrary strings.
package ident

import "sync"

// ID is an opaque interned string handle. The zero value, None, means
// "no identifier".
type ID uint32

// None is the distinguished id meaning "none".
const None ID = 0

// String renders the raw numeric id. It does not resolve the id to a
// name (that requires a Table); callers that have one should prefer
// Table.StrOf for anything user-facing.
func (id ID) String() string {
	return "#" + itoa(uint32(id))
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// Table is a process-wide (or test-scoped) string<->ID interner. Interning
// is monotonic: once assigned, an ID is never reused or changed. The zero
// value is not usable; construct a Table with NewTable.
type Table struct {
	mu      sync.RWMutex
	strings []string       // index 0 is unused so the zero ID means "none"
	byName  map[string]ID
}

// NewTable constructs an empty interner with the reserved zero slot already
// consumed.
func NewTable() *Table {
	t := &Table{
		strings: make([]string, 1), // strings[0] == "" reserved for None
		byName:  make(map[string]ID),
	}
	return t
}

// Intern returns the ID for s, assigning a new one the first time s is
// seen. Interning is idempotent and case-sensitive.
func (t *Table) Intern(s string) ID {
	t.mu.RLock()
	if id, ok := t.byName[s]; ok {
		t.mu.RUnlock()
		return id
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	// Re-check: another writer may have interned s while we waited for
	// the write lock.
	if id, ok := t.byName[s]; ok {
		return id
	}
	id := ID(len(t.strings))
	t.strings = append(t.strings, s)
	t.byName[s] = id
	return id
}

// StrOf returns the string interned under id, or "" if id is None or
// unknown.
func (t *Table) StrOf(id ID) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(id) <= 0 || int(id) >= len(t.strings) {
		return ""
	}
	return t.strings[id]
}

// Len returns the number of interned strings, excluding the reserved None
// slot.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.strings) - 1
}

// List is an ordered sequence of IDs, used for hierarchical path names.
type List []ID

// Equal reports whether two ID lists denote the same path.
func (l List) Equal(other List) bool {
	if len(l) != len(other) {
		return false
	}
	for i := range l {
		if l[i] != other[i] {
			return false
		}
	}
	return true
}

// String renders the path using the given table, joined with '.'.
func (l List) String(t *Table) string {
	out := make([]byte, 0, len(l)*8)
	for i, id := range l {
		if i > 0 {
			out = append(out, '.')
		}
		out = append(out, t.StrOf(id)...)
	}
	return string(out)
}
