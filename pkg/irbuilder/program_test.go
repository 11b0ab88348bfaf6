package irbuilder

import (
	"testing"

	"github.com/cppc-project/cppc/pkg/ast"
	"github.com/cppc-project/cppc/pkg/intern"
	"github.com/cppc-project/cppc/pkg/ir"
	"github.com/cppc-project/cppc/pkg/mangle"
	"github.com/cppc-project/cppc/pkg/types"
)

func intType() *ast.TypeSpec { return &ast.TypeSpec{Name: "int"} }

// addFunction builds `int add(int a, int b) { return a + b; }`.
func addFunction() *ast.FunctionDecl {
	return &ast.FunctionDecl{
		Name:       "add",
		ReturnType: intType(),
		Params: []ast.Param{
			{Name: "a", Type: intType()},
			{Name: "b", Type: intType()},
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

// TestBuildProgramLowersFreeFunction grounds the simplest whole-program
// lowering: a single free function with two integer parameters and a
// `return a + b;` body must produce one ir.Function whose signature
// reports an integer, non-float return and whose code contains an Iop
// add feeding an Ireturn.
func TestBuildProgramLowersFreeFunction(t *testing.T) {
	strs := intern.NewTable()
	reg := types.NewRegistry(strs)
	prog := &ast.Program{Decls: []ast.Decl{addFunction()}}

	out, errs := BuildProgram(prog, reg, strs, mangle.Itanium)
	if len(errs) != 0 {
		t.Fatalf("BuildProgram: %v", errs)
	}
	if len(out.Functions) != 1 {
		t.Fatalf("expected 1 lowered function, got %d", len(out.Functions))
	}

	fn := out.Functions[0]
	if len(fn.Params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(fn.Params))
	}
	if !fn.Sig.HasReturn || fn.Sig.ReturnIsFloat {
		t.Fatalf("expected a non-float return, got %+v", fn.Sig)
	}

	var sawAdd, sawReturn bool
	for _, instr := range fn.Code {
		switch i := instr.(type) {
		case ir.Iop:
			if i.Op == ir.OAdd {
				sawAdd = true
			}
		case ir.Ireturn:
			sawReturn = true
		}
	}
	if !sawAdd {
		t.Fatalf("expected an OAdd instruction in the lowered function")
	}
	if !sawReturn {
		t.Fatalf("expected an Ireturn instruction in the lowered function")
	}
}

// TestBuildProgramResolvesForwardCall grounds program.go's two-pass
// discipline: a function defined before its callee in source order must
// still resolve the call, since every free function's signature is
// registered in the first pass before any body is lowered.
func TestBuildProgramResolvesForwardCall(t *testing.T) {
	strs := intern.NewTable()
	reg := types.NewRegistry(strs)

	caller := &ast.FunctionDecl{
		Name:       "callAdd",
		ReturnType: intType(),
		Body: &ast.Block{Stmts: []ast.Stmt{
			&ast.ReturnStmt{Value: &ast.CallExpr{
				Callee: &ast.Ident{Name: "add"},
				Args:   []ast.Expr{&ast.NumericLit{IntVal: 1}, &ast.NumericLit{IntVal: 2}},
			}},
		}},
	}
	prog := &ast.Program{Decls: []ast.Decl{caller, addFunction()}}

	out, errs := BuildProgram(prog, reg, strs, mangle.Itanium)
	if len(errs) != 0 {
		t.Fatalf("BuildProgram: %v", errs)
	}
	if len(out.Functions) != 2 {
		t.Fatalf("expected 2 lowered functions, got %d", len(out.Functions))
	}

	var sawCall bool
	for _, fn := range out.Functions {
		for _, instr := range fn.Code {
			if c, ok := instr.(ir.Icall); ok {
				if sym, ok := c.Fn.(ir.FunSymbol); ok && sym.Name != "" {
					sawCall = true
				}
			}
		}
	}
	if !sawCall {
		t.Fatalf("expected callAdd's body to lower to an Icall with a resolved symbol")
	}
}

// TestBuildProgramRegistersFileScopeGlobal grounds the globals pass: a
// file-scope VarDecl must appear in the lowered Program's Globals list
// sized per its type, independent of whether any function references it.
func TestBuildProgramRegistersFileScopeGlobal(t *testing.T) {
	strs := intern.NewTable()
	reg := types.NewRegistry(strs)
	prog := &ast.Program{Decls: []ast.Decl{
		&ast.VarDecl{Name: "counter", Type: intType()},
	}}

	out, errs := BuildProgram(prog, reg, strs, mangle.Itanium)
	if len(errs) != 0 {
		t.Fatalf("BuildProgram: %v", errs)
	}
	if len(out.Globals) != 1 || out.Globals[0].Name != "counter" {
		t.Fatalf("expected global %q, got %+v", "counter", out.Globals)
	}
	if out.Globals[0].Size != 4 {
		t.Fatalf("expected a 4-byte int global, got size %d", out.Globals[0].Size)
	}
}
