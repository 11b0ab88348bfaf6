package emitter

import (
	"testing"

	"github.com/cppc-project/cppc/pkg/ast"
	"github.com/cppc-project/cppc/pkg/intern"
	"github.com/cppc-project/cppc/pkg/irbuilder"
	"github.com/cppc-project/cppc/pkg/mangle"
	"github.com/cppc-project/cppc/pkg/types"
)

// addFunction builds `int add(int a, int b) { return a + b; }` — the
// same shape irbuilder's own tests lower, reused here so Emit is
// exercised against a realistic ir.Program rather than a hand-built one
// that skips register allocation's usual operand shapes.
func addFunction() *ast.FunctionDecl {
	intType := &ast.TypeSpec{Name: "int"}
	return &ast.FunctionDecl{
		Name:       "add",
		ReturnType: intType,
		Params: []ast.Param{
			{Name: "a", Type: intType},
			{Name: "b", Type: intType},
		},
		Body: &ast.Block{Stmts: []ast.Stmt{
			&ast.ReturnStmt{Value: &ast.BinaryExpr{
				Op:    ast.OpAdd,
				Left:  &ast.Ident{Name: "a"},
				Right: &ast.Ident{Name: "b"},
			}},
		}},
	}
}

// TestEmitProducesMachineCodeForSimpleFunction grounds the whole
// lower-allocate-encode pipeline end to end: a function lowered by
// irbuilder must come out of Emit with a non-empty byte sequence and no
// error.
func TestEmitProducesMachineCodeForSimpleFunction(t *testing.T) {
	strs := intern.NewTable()
	reg := types.NewRegistry(strs)
	prog := &ast.Program{Decls: []ast.Decl{addFunction()}}

	irProg, errs := irbuilder.BuildProgram(prog, reg, strs, mangle.Itanium)
	if len(errs) != 0 {
		t.Fatalf("BuildProgram: %v", errs)
	}

	obj, err := Emit(irProg, strs)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(obj.Functions) != 1 {
		t.Fatalf("expected 1 emitted function, got %d", len(obj.Functions))
	}
	fc := obj.Functions[0]
	if len(fc.Code) == 0 {
		t.Fatalf("expected non-empty machine code for %q", fc.Name)
	}
	if !fc.Global {
		t.Fatalf("expected %q to be emitted as a global symbol", fc.Name)
	}
}

// TestEmitCollectsGlobals grounds Emit's global-variable pass: every
// ir.Program global must come out the other side as GlobalData carrying
// the same name and size, independent of whether any function touches
// it.
func TestEmitCollectsGlobals(t *testing.T) {
	strs := intern.NewTable()
	reg := types.NewRegistry(strs)
	prog := &ast.Program{Decls: []ast.Decl{
		&ast.VarDecl{Name: "counter", Type: &ast.TypeSpec{Name: "int"}},
	}}

	irProg, errs := irbuilder.BuildProgram(prog, reg, strs, mangle.Itanium)
	if len(errs) != 0 {
		t.Fatalf("BuildProgram: %v", errs)
	}

	obj, err := Emit(irProg, strs)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(obj.Globals) != 1 {
		t.Fatalf("expected 1 global, got %d", len(obj.Globals))
	}
	if obj.Globals[0].Name != "counter" || obj.Globals[0].Size != 4 {
		t.Fatalf("unexpected global: %+v", obj.Globals[0])
	}
}
