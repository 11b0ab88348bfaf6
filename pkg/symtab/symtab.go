// Package symtab implements the Symbol Table: a stack of
// lexically nested scopes mapping identifiers to declaration nodes,
// with multi-map overload sets and RAII-style scope guards.
package symtab

import (
	"fmt"

	"github.com/cppc-project/cppc/pkg/ast"
	"github.com/cppc-project/cppc/pkg/intern"
)

// Kind is a scope's lexical category.
type Kind int

const (
	Global Kind = iota
	Namespace
	Function
	Block
)

type scope struct {
	kind    Kind
	table   map[intern.Handle][]ast.Decl
	parent  *scope
	closed  bool
}

// Table is the symbol table: a stack of scopes plus the parser's
// current-template-parameters list. Template-parameter names are
// recognized via this secondary list supplied by the parser.
type Table struct {
	strs          *intern.Table
	top           *scope
	templateParam []map[string]bool // stack, one set per enclosing template
}

// New returns a symbol table with only the Global scope open.
func New(strs *intern.Table) *Table {
	t := &Table{strs: strs}
	t.top = &scope{kind: Global, table: make(map[intern.Handle][]ast.Decl)}
	return t
}

// Guard closes the scope it was returned for. Guard.Close is idempotent
// so a deferred Close after an early explicit Close (on an error path
// that wants the scope closed sooner) is always safe: every opened
// scope is closed on all exit paths, including errors.
type Guard struct {
	t *Table
	s *scope
}

// Close pops scopes back down to (and including) the guarded scope. It
// is safe to call multiple times and safe to call out of strict LIFO
// order: any scope still open above the guarded one is also closed,
// matching "closed on all exit paths" even when an error unwinds past
// several nested OpenScope calls whose individual defers fire in
// reverse order.
func (g *Guard) Close() {
	if g.s.closed {
		return
	}
	for cur := g.t.top; cur != nil; cur = cur.parent {
		cur.closed = true
		if cur == g.s {
			g.t.top = cur.parent
			return
		}
	}
}

// OpenScope pushes a new scope of the given kind and returns a Guard;
// callers open a scope with `defer t.OpenScope(kind).Close()`.
func (t *Table) OpenScope(kind Kind) *Guard {
	s := &scope{kind: kind, table: make(map[intern.Handle][]ast.Decl), parent: t.top}
	t.top = s
	return &Guard{t: t, s: s}
}

// ErrRedefinition is returned by Declare when a non-function name is
// redeclared in the same scope.
type ErrRedefinition struct {
	Name string
}

func (e *ErrRedefinition) Error() string {
	return fmt.Sprintf("redefinition of %q in the same scope", e.Name)
}

// isFunction reports whether decl participates in overloading.
func isFunction(decl ast.Decl) bool {
	_, ok := decl.(*ast.FunctionDecl)
	return ok
}

// Declare binds name to decl in the innermost open scope. Function
// declarations accumulate under one key (overloading); any other kind
// redeclared in the same scope is an error.
func (t *Table) Declare(name intern.Handle, decl ast.Decl) error {
	existing := t.top.table[name]
	if len(existing) > 0 {
		if isFunction(decl) && isFunction(existing[0]) {
			t.top.table[name] = append(existing, decl)
			return nil
		}
		return &ErrRedefinition{Name: t.strs.View(name)}
	}
	t.top.table[name] = []ast.Decl{decl}
	return nil
}

// Lookup walks outward through enclosing scopes and returns every
// declaration bound to name in the innermost scope where it is found
// (the full overload set, if any).
func (t *Table) Lookup(name intern.Handle) ([]ast.Decl, bool) {
	for s := t.top; s != nil; s = s.parent {
		if decls, ok := s.table[name]; ok {
			return decls, true
		}
	}
	return nil, false
}

// CurrentKind reports the innermost open scope's kind.
func (t *Table) CurrentKind() Kind { return t.top.kind }

// PushTemplateParams makes names recognizable as template-parameter
// identifiers (not ordinary symbols) for the duration of parsing one
// template's declaration and body.
func (t *Table) PushTemplateParams(names []string) {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	t.templateParam = append(t.templateParam, set)
}

// PopTemplateParams removes the innermost template-parameter set,
// e.g. once a nested member-function body has finished parsing within
// an enclosing class template.
func (t *Table) PopTemplateParams() {
	if len(t.templateParam) == 0 {
		return
	}
	t.templateParam = t.templateParam[:len(t.templateParam)-1]
}

// IsTemplateParam reports whether name currently names a live template
// parameter, searching from the innermost enclosing template outward.
func (t *Table) IsTemplateParam(name string) bool {
	for i := len(t.templateParam) - 1; i >= 0; i-- {
		if t.templateParam[i][name] {
			return true
		}
	}
	return false
}
