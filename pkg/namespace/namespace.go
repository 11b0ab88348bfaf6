// Package namespace implements the namespace registry:
// namespace handles are issued on first sight and compose into fully
// qualified names on demand.
package namespace

import (
	"strconv"
	"strings"

	"github.com/cppc-project/cppc/pkg/intern"
)

// Handle identifies a namespace. The zero Handle is the global
// namespace.
type Handle int32

// Global is the translation unit's outermost namespace.
const Global Handle = 0

type entry struct {
	name   intern.Handle // empty for anonymous namespaces
	parent Handle
}

// Registry owns the namespace tree for one translation unit.
type Registry struct {
	strs    *intern.Table
	entries []entry
	byKey   map[string]Handle // "parent:name" -> handle, for reopening
}

// NewRegistry returns a registry containing only the global namespace.
func NewRegistry(strs *intern.Table) *Registry {
	return &Registry{
		strs:    strs,
		entries: []entry{{name: 0, parent: Global}},
		byKey:   make(map[string]Handle),
	}
}

// Open returns the handle for `parent::name`, creating it if this is
// the first time the namespace is opened (namespaces reopen across
// multiple `namespace X { ... }` blocks in the same translation unit).
func (r *Registry) Open(parent Handle, name intern.Handle) Handle {
	key := namespaceKey(parent, name)
	if h, ok := r.byKey[key]; ok {
		return h
	}
	h := Handle(len(r.entries))
	r.entries = append(r.entries, entry{name: name, parent: parent})
	r.byKey[key] = h
	return h
}

// Anonymous creates a fresh anonymous namespace nested in parent; unlike
// Open, it never reuses an existing handle, since each `namespace { }`
// block at the same nesting level is still only entered once per
// translation unit but must not collide with a same-named namespace.
func (r *Registry) Anonymous(parent Handle) Handle {
	h := Handle(len(r.entries))
	r.entries = append(r.entries, entry{name: 0, parent: parent})
	return h
}

// Parent returns the enclosing namespace of h, or Global's own parent
// (Global) if h is already Global.
func (r *Registry) Parent(h Handle) Handle {
	return r.entries[h].parent
}

// QualifiedName composes the fully qualified name of an unqualified
// name declared inside namespace h, e.g. QualifiedName(h, "foo") may
// yield "outer::inner::foo".
func (r *Registry) QualifiedName(h Handle, unqualified string) string {
	segs := r.segments(h)
	segs = append(segs, unqualified)
	return strings.Join(segs, "::")
}

func (r *Registry) segments(h Handle) []string {
	var chain []Handle
	for cur := h; cur != Global; cur = r.entries[cur].parent {
		chain = append(chain, cur)
	}
	segs := make([]string, 0, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		e := r.entries[chain[i]]
		if e.name == 0 {
			segs = append(segs, "(anonymous namespace)")
			continue
		}
		segs = append(segs, r.strs.View(e.name))
	}
	return segs
}

func namespaceKey(parent Handle, name intern.Handle) string {
	return strconv.Itoa(int(parent)) + ":" + strconv.Itoa(int(name))
}
