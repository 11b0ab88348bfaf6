// Package templates implements the template engine: lazy, memoized
// instantiation of class/function/variable templates and aliases,
// substituting dependent types and deferring instantiations whose
// arguments are themselves dependent.
//
// The engine never imports pkg/parser. It stores the BodyParser
// function value the parser supplies but does not call it: an
// instantiation substitutes into the already-parsed Record.Body, and
// the deferred token range is not re-parsed.
package templates

import (
	"fmt"

	"github.com/cppc-project/cppc/pkg/ast"
	"github.com/cppc-project/cppc/pkg/lexer"
	"github.com/cppc-project/cppc/pkg/types"
)

// Record is one registered template: its
// parameter list, optional requires clause, the parsed body, and the
// token range that body was parsed from (recorded only; not re-parsed).
type Record struct {
	Name         string
	Params       []*ast.TemplateParam
	Requires     ast.Expr
	Body         ast.Decl // StructDecl | FunctionDecl | VarDecl | AliasDecl
	DeferredFrom lexer.SaveHandle
	DeferredTo   lexer.SaveHandle
	IsAlias      bool

	instantiations map[string]*Instantiation // keyed by argument-tuple hash
}

// Instantiation is one materialized use of a Record with a concrete
// argument vector.
type Instantiation struct {
	MangledName string
	Args        []types.TemplateArgument
	Descriptor  *types.Descriptor
	Body        ast.Decl // the substituted copy of Record.Body
}

// MemberKey identifies one lazily-instantiated template member function
// or static member.
type MemberKey struct {
	Class  string
	Member string
}

// BodyParser re-parses a deferred token range with the given
// parameter-name-to-substituted-text bindings active, returning the
// parsed declaration. Supplied by the parser so the engine can re-enter
// it without an import cycle.
type BodyParser func(from, to lexer.SaveHandle, bindings map[string]string) (ast.Decl, error)

// Engine owns every template declared in the translation unit plus the
// lazy member-instantiation registry.
type Engine struct {
	records      map[string]*Record
	lazyMembers  map[MemberKey]*lazyMember
	parseBody    BodyParser
}

type lazyMember struct {
	class  *Instantiation
	member ast.Decl // the substituted-but-not-yet-typechecked FunctionDecl
}

// NewEngine returns an empty engine. parseBody may be nil if the caller
// never needs re-entrant lazy member instantiation (e.g. unit tests that
// only exercise class/function template substitution).
func NewEngine(parseBody BodyParser) *Engine {
	return &Engine{
		records:     make(map[string]*Record),
		lazyMembers: make(map[MemberKey]*lazyMember),
		parseBody:   parseBody,
	}
}

// Register records a template's deferred body.
func (e *Engine) Register(r *Record) {
	r.instantiations = make(map[string]*Instantiation)
	e.records[r.Name] = r
}

// Lookup returns the Record registered under name, if any.
func (e *Engine) Lookup(name string) (*Record, bool) {
	r, ok := e.records[name]
	return r, ok
}

// IsDependent reports whether any argument in the tuple is itself
// unresolved: the instantiation
// as a whole must then be deferred rather than materialized.
func IsDependent(args []types.TemplateArgument) bool {
	for _, a := range args {
		if a.Kind == types.DependentArg {
			return true
		}
	}
	return false
}

// key computes the stable per-argument-tuple key step 2
// describes: "A key is formed as (template name, argument tuple); its
// hash mangles to a unique instantiation name."
func key(name string, args []types.TemplateArgument) string {
	s := name + "<"
	for i, a := range args {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf("%v", a)
	}
	return s + ">"
}

// Instantiate materializes template `name` with the given arguments, or
// returns the already-materialized Instantiation: instantiating the
// same template with the same argument tuple twice produces the same
// descriptor pointer. If any
// argument is dependent, the instantiation is deferred: Instantiate
// returns (nil, false, nil) and the caller must treat the reference as
// a dependent placeholder.
func (e *Engine) Instantiate(name string, args []types.TemplateArgument, reg *types.Registry, substitutor *Substitutor) (*Instantiation, bool, error) {
	rec, ok := e.records[name]
	if !ok {
		return nil, false, fmt.Errorf("templates: no template registered for %q", name)
	}
	if IsDependent(args) {
		return nil, false, nil
	}
	k := key(name, args)
	if inst, ok := rec.instantiations[k]; ok {
		return inst, true, nil
	}

	baseNameHandle := substitutor.strs.Intern(name)
	desc, mangled := reg.RecordTemplateInstantiation(baseNameHandle, args)

	bindings := bindParams(rec.Params, args)
	substitutedBody := substitutor.Substitute(rec.Body, bindings)

	inst := &Instantiation{MangledName: mangled, Args: args, Descriptor: desc, Body: substitutedBody}
	rec.instantiations[k] = inst

	if sd, ok := substitutedBody.(*ast.StructDecl); ok {
		registerLazyMembers(e, name, inst, sd)
	}
	return inst, true, nil
}

func registerLazyMembers(e *Engine, className string, inst *Instantiation, sd *ast.StructDecl) {
	for _, m := range sd.Members {
		if fn, ok := m.(*ast.FunctionDecl); ok && fn.Body != nil {
			e.lazyMembers[MemberKey{Class: className, Member: fn.Name}] = &lazyMember{class: inst, member: fn}
		}
	}
}

// MaterializeMember returns the (already-substituted) function
// declaration for a template class's member, as registered when the
// class was instantiated. It does not parse or type-check anything:
// the body was parsed with the template and substituted by Instantiate.
func (e *Engine) MaterializeMember(class, member string) (ast.Decl, bool) {
	lm, ok := e.lazyMembers[MemberKey{Class: class, Member: member}]
	if !ok {
		return nil, false
	}
	return lm.member, true
}

// bindParams pairs each template parameter name with the textual
// substitution text for its bound argument. A
// non-type parameter binds to its literal value's decimal text; a type
// parameter binds to the argument's base-kind spelling.
func bindParams(params []*ast.TemplateParam, args []types.TemplateArgument) map[string]string {
	bindings := make(map[string]string, len(params))
	for i, p := range params {
		if i >= len(args) {
			break
		}
		a := args[i]
		if p.IsTypeParam {
			bindings[p.Name] = a.BaseKind.String()
		} else {
			bindings[p.Name] = fmt.Sprintf("%d", a.IntValue)
		}
	}
	return bindings
}
