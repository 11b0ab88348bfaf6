// Package intern assigns stable, comparable handles to identifier and
// mangled-name strings so every later stage compares and hashes a
// machine word instead of a byte slice.
package intern

// Handle is an opaque, trivially-copyable reference into a Table. The
// zero Handle is pre-reserved for the empty string: Table.Intern
// returns it only for "", so callers may use it to mean "no name" in a
// struct whose Handle is not yet known.
type Handle uint32

// Table is a single-threaded string-interning table. It is not safe for
// concurrent use; the core is single-threaded end to end.
type Table struct {
	index map[string]Handle
	store []string
}

// NewTable returns an empty interning table. Handle 0 is pre-reserved
// for the empty string so a zero Handle never aliases a real name.
func NewTable() *Table {
	t := &Table{index: make(map[string]Handle), store: make([]string, 0, 256)}
	t.store = append(t.store, "")
	t.index[""] = 0
	return t
}

// Intern returns the handle for s, assigning a new one on first sight.
// Interning the same byte sequence twice yields the same handle.
func (t *Table) Intern(s string) Handle {
	if h, ok := t.index[s]; ok {
		return h
	}
	h := Handle(len(t.store))
	t.store = append(t.store, s)
	t.index[s] = h
	return h
}

// View returns the byte sequence a handle was assigned. Panics on an
// out-of-range handle: a handle can only come from Intern on this same
// table, so an invalid one is an internal invariant violation.
func (t *Table) View(h Handle) string {
	if int(h) >= len(t.store) {
		panic("intern: handle out of range")
	}
	return t.store[h]
}

// Len reports how many distinct strings have been interned, including
// the reserved empty string.
func (t *Table) Len() int { return len(t.store) }

// Builder incrementally assembles a string (e.g. a mangled name or a
// token built up piece by piece) without committing it to the table
// until the caller is sure it wants to keep it. Preview lets a caller
// peek at the built text — for example to memoize a failed speculative
// parse — without paying for an intern on the failure
// path.
type Builder struct {
	buf []byte
}

// WriteString appends s to the builder.
func (b *Builder) WriteString(s string) { b.buf = append(b.buf, s...) }

// WriteByte appends a single byte.
func (b *Builder) WriteByte(c byte) { b.buf = append(b.buf, c) }

// Preview returns the text accumulated so far without interning it.
func (b *Builder) Preview() string { return string(b.buf) }

// Commit interns the accumulated text and resets the builder for reuse.
func (b *Builder) Commit(t *Table) Handle {
	h := t.Intern(string(b.buf))
	b.buf = b.buf[:0]
	return h
}

// Reset discards the accumulated text without interning it.
func (b *Builder) Reset() { b.buf = b.buf[:0] }
