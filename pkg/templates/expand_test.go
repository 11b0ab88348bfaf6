package templates

import (
	"testing"

	"github.com/cppc-project/cppc/pkg/ast"
	"github.com/cppc-project/cppc/pkg/concepts"
	"github.com/cppc-project/cppc/pkg/intern"
	"github.com/cppc-project/cppc/pkg/types"
)

// TestExpandInstantiatesTemplateIDInVarDecl grounds the gap this pass
// exists to close: pkg/parser only registers a template's deferred
// body, so a variable declared with a concrete template-id type
// (`Box<int> b;`) must have Expand splice the instantiated struct into
// the program and rewrite the reference to the mangled name.
func TestExpandInstantiatesTemplateIDInVarDecl(t *testing.T) {
	strs := intern.NewTable()
	reg := types.NewRegistry(strs)
	conceptReg := concepts.NewRegistry()
	engine := NewEngine(nil)
	engine.Register(boxRecord())

	prog := &ast.Program{
		Decls: []ast.Decl{
			&ast.VarDecl{
				Name: "b",
				Type: &ast.TypeSpec{Name: "Box", TemplateArgs: []ast.Expr{&ast.Ident{Name: "int"}}},
			},
		},
	}

	if errs := Expand(prog, engine, reg, strs, conceptReg); len(errs) != 0 {
		t.Fatalf("Expand: %v", errs)
	}

	vd := prog.Decls[0].(*ast.VarDecl)
	if vd.Type.Name == "Box" || vd.Type.TemplateArgs != nil {
		t.Fatalf("expected Box<int> reference rewritten to a mangled name, got %q args=%v", vd.Type.Name, vd.Type.TemplateArgs)
	}

	var spliced *ast.StructDecl
	for _, d := range prog.Decls {
		if sd, ok := d.(*ast.StructDecl); ok {
			spliced = sd
		}
	}
	if spliced == nil {
		t.Fatalf("expected an instantiated StructDecl spliced into Program.Decls, got %d decls", len(prog.Decls))
	}
	if spliced.Name != vd.Type.Name {
		t.Fatalf("spliced struct name %q does not match rewritten reference %q", spliced.Name, vd.Type.Name)
	}
}

// TestExpandDedupesRepeatedInstantiation grounds memoization at the
// pass level: two variables instantiating Box<int> must only splice one
// copy of the instantiated struct.
func TestExpandDedupesRepeatedInstantiation(t *testing.T) {
	strs := intern.NewTable()
	reg := types.NewRegistry(strs)
	conceptReg := concepts.NewRegistry()
	engine := NewEngine(nil)
	engine.Register(boxRecord())

	mkVar := func(name string) *ast.VarDecl {
		return &ast.VarDecl{
			Name: name,
			Type: &ast.TypeSpec{Name: "Box", TemplateArgs: []ast.Expr{&ast.Ident{Name: "int"}}},
		}
	}
	prog := &ast.Program{Decls: []ast.Decl{mkVar("a"), mkVar("b")}}

	if errs := Expand(prog, engine, reg, strs, conceptReg); len(errs) != 0 {
		t.Fatalf("Expand: %v", errs)
	}

	structCount := 0
	for _, d := range prog.Decls {
		if _, ok := d.(*ast.StructDecl); ok {
			structCount++
		}
	}
	if structCount != 1 {
		t.Fatalf("expected exactly one spliced instantiation, got %d", structCount)
	}
}

// TestExpandLeavesDependentReferenceAlone grounds step 3's deferral:
// a template-id whose argument is an unresolvable name (still dependent,
// e.g. an outer template parameter that hasn't been bound yet) must be
// left as-is rather than treated as an error.
func TestExpandLeavesDependentReferenceAlone(t *testing.T) {
	strs := intern.NewTable()
	reg := types.NewRegistry(strs)
	conceptReg := concepts.NewRegistry()
	engine := NewEngine(nil)
	engine.Register(boxRecord())

	prog := &ast.Program{
		Decls: []ast.Decl{
			&ast.VarDecl{
				Name: "b",
				Type: &ast.TypeSpec{Name: "Box", TemplateArgs: []ast.Expr{&ast.Ident{Name: "U"}}},
			},
		},
	}

	if errs := Expand(prog, engine, reg, strs, conceptReg); len(errs) != 0 {
		t.Fatalf("Expand: %v", errs)
	}

	vd := prog.Decls[0].(*ast.VarDecl)
	if vd.Type.Name != "Box" || vd.Type.TemplateArgs == nil {
		t.Fatalf("expected dependent reference left unrewritten, got %q args=%v", vd.Type.Name, vd.Type.TemplateArgs)
	}
	if len(prog.Decls) != 1 {
		t.Fatalf("expected no instantiation spliced for a dependent argument, got %d decls", len(prog.Decls))
	}
}

// TestExpandRejectsUnsatisfiedConstraint grounds the concepts.Registry
// wiring: a constrained template parameter whose bound argument fails
// the concept check must surface as an Expand error, not a silent
// instantiation.
func TestExpandRejectsUnsatisfiedConstraint(t *testing.T) {
	strs := intern.NewTable()
	reg := types.NewRegistry(strs)
	conceptReg := concepts.NewRegistry()
	conceptReg.Register(&ast.ConceptDecl{
		Name:        "Integral",
		Param:       "T",
		Requirement: &ast.Ident{Name: "integral"},
	})

	engine := NewEngine(nil)
	rec := boxRecord()
	rec.Params = []*ast.TemplateParam{{Name: "T", IsTypeParam: true, Constraint: "Integral"}}
	engine.Register(rec)

	prog := &ast.Program{
		Decls: []ast.Decl{
			&ast.VarDecl{
				Name: "b",
				Type: &ast.TypeSpec{Name: "Box", TemplateArgs: []ast.Expr{&ast.Ident{Name: "float"}}},
			},
		},
	}

	errs := Expand(prog, engine, reg, strs, conceptReg)
	if len(errs) == 0 {
		t.Fatalf("expected a constraint-violation error instantiating Box<float> against Integral")
	}
}

// TestExpandResolvesNonTypeArgument grounds resolveArg's literal fast
// path: a non-type template argument spelled as an integer literal (and
// its negation) must resolve without needing the constant evaluator.
func TestExpandResolvesNonTypeArgument(t *testing.T) {
	strs := intern.NewTable()
	reg := types.NewRegistry(strs)
	conceptReg := concepts.NewRegistry()
	engine := NewEngine(nil)

	// template<int N> struct Array { int data[N]; };
	rec := &Record{
		Name:   "Array",
		Params: []*ast.TemplateParam{{Name: "N", IsTypeParam: false}},
		Body: &ast.StructDecl{
			Name: "Array",
			Members: []ast.Decl{
				&ast.VarDecl{Name: "data", Type: &ast.TypeSpec{Name: "int", ArrayDims: []ast.Expr{&ast.Ident{Name: "N"}}}},
			},
		},
	}
	engine.Register(rec)

	prog := &ast.Program{
		Decls: []ast.Decl{
			&ast.VarDecl{
				Name: "a",
				Type: &ast.TypeSpec{Name: "Array", TemplateArgs: []ast.Expr{
					&ast.UnaryExpr{Op: ast.UnaryNeg, Operand: &ast.NumericLit{IntVal: 4}},
				}},
			},
		},
	}

	if errs := Expand(prog, engine, reg, strs, conceptReg); len(errs) != 0 {
		t.Fatalf("Expand: %v", errs)
	}
	vd := prog.Decls[0].(*ast.VarDecl)
	if vd.Type.TemplateArgs != nil {
		t.Fatalf("expected -4 to resolve and rewrite the reference, got unrewritten args=%v", vd.Type.TemplateArgs)
	}
}
