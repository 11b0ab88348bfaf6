// Package concepts implements concept and constraint checking: a
// concept registers a name and a
// requirement expression; binding a constrained template parameter
// evaluates the requirement against the bound argument, and an
// unsatisfied constraint silently removes the candidate from the
// overload set.
package concepts

import (
	"fmt"

	"github.com/cppc-project/cppc/pkg/ast"
	"github.com/cppc-project/cppc/pkg/types"
)

// Predicate checks a bound argument kind against a built-in concept.
type Predicate func(kind types.BaseKind) bool

// builtins are the standard-library concepts cppc recognizes directly,
// without evaluating a requirement expression (`<concepts>`'s
// `std::integral`, `std::floating_point`, and friends).
var builtins = map[string]Predicate{
	"integral":               types.BaseKind.IsInteger,
	"signed_integral":        func(k types.BaseKind) bool { return k.IsInteger() && !k.IsUnsigned() },
	"unsigned_integral":      func(k types.BaseKind) bool { return k.IsInteger() && k.IsUnsigned() },
	"floating_point":         types.BaseKind.IsFloat,
	"default_initializable":  func(types.BaseKind) bool { return true },
}

// Registry owns every concept declared in the translation unit.
type Registry struct {
	decls map[string]*ast.ConceptDecl
}

// NewRegistry returns an empty concept registry.
func NewRegistry() *Registry { return &Registry{decls: make(map[string]*ast.ConceptDecl)} }

// Register records a `concept Name = Requirement;` declaration.
func (r *Registry) Register(decl *ast.ConceptDecl) { r.decls[decl.Name] = decl }

// Satisfies evaluates whether kind satisfies the named concept. An
// unknown concept name is reported as an error rather than silently
// accepted — SFINAE only suppresses *deduction* failures, not a typo'd
// constraint name (distinguishes "Template-argument
// deduction failure (SFINAE)" from ordinary semantic errors).
func (r *Registry) Satisfies(conceptName string, kind types.BaseKind) (bool, error) {
	return r.satisfies(conceptName, kind, map[string]bool{})
}

func (r *Registry) satisfies(conceptName string, kind types.BaseKind, visiting map[string]bool) (bool, error) {
	if p, ok := builtins[conceptName]; ok {
		return p(kind), nil
	}
	decl, ok := r.decls[conceptName]
	if !ok {
		return false, fmt.Errorf("concepts: unknown concept %q", conceptName)
	}
	if visiting[conceptName] {
		return false, fmt.Errorf("concepts: cyclic concept definition involving %q", conceptName)
	}
	visiting[conceptName] = true
	return r.evalRequirement(decl.Requirement, kind, visiting)
}

// evalRequirement supports the subset of requires-expressions cppc
// models directly: a bare concept-name reference, and && / || of
// concept-name references (composed concepts, e.g.
// `concept Number = integral<T> || floating_point<T>;`). A richer
// requires-expression body (compound requirements, nested requirements)
// is out of scope — SFINAE over such bodies is a non-goal alongside
// full conformance.
func (r *Registry) evalRequirement(expr ast.Expr, kind types.BaseKind, visiting map[string]bool) (bool, error) {
	switch n := expr.(type) {
	case *ast.Ident:
		return r.satisfies(n.Name, kind, visiting)
	case *ast.BinaryExpr:
		switch n.Op {
		case ast.OpAnd:
			l, err := r.evalRequirement(n.Left, kind, visiting)
			if err != nil || !l {
				return false, err
			}
			return r.evalRequirement(n.Right, kind, visiting)
		case ast.OpOr:
			l, err := r.evalRequirement(n.Left, kind, visiting)
			if err != nil {
				return false, err
			}
			if l {
				return true, nil
			}
			return r.evalRequirement(n.Right, kind, visiting)
		}
	}
	return false, fmt.Errorf("concepts: unsupported requirement expression %T", expr)
}

// FilterCandidates removes from candidates every (index, constraint)
// pair whose concept is not satisfied by argKind, implementing SFINAE:
// the rejection is silent, and the candidate is simply removed from the
// overload set.
func (r *Registry) FilterCandidates(argKind types.BaseKind, constraints []string) []int {
	var ok []int
	for i, c := range constraints {
		if c == "" {
			ok = append(ok, i)
			continue
		}
		satisfied, err := r.Satisfies(c, argKind)
		if err == nil && satisfied {
			ok = append(ok, i)
		}
	}
	return ok
}
