package coff

import (
	"encoding/binary"
	"testing"

	"github.com/cppc-project/cppc/pkg/ast"
	"github.com/cppc-project/cppc/pkg/emitter"
	"github.com/cppc-project/cppc/pkg/intern"
	"github.com/cppc-project/cppc/pkg/irbuilder"
	"github.com/cppc-project/cppc/pkg/mangle"
	"github.com/cppc-project/cppc/pkg/types"
)

// buildObject lowers `int add(int a, int b) { return a + b; }` down to
// an emitter.Object, the same fixture the ELF writer's tests use.
func buildObject(t *testing.T) *emitter.Object {
	t.Helper()
	strs := intern.NewTable()
	reg := types.NewRegistry(strs)
	intType := &ast.TypeSpec{Name: "int"}
	fn := &ast.FunctionDecl{
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
	prog := &ast.Program{Decls: []ast.Decl{fn}}
	irProg, errs := irbuilder.BuildProgram(prog, reg, strs, mangle.Itanium)
	if len(errs) != 0 {
		t.Fatalf("BuildProgram: %v", errs)
	}
	obj, err := emitter.Emit(irProg, strs)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	return obj
}

// TestWriteProducesAmd64CoffHeader grounds the COFF file header this
// writer commits to: IMAGE_FILE_MACHINE_AMD64 in the first two bytes,
// and a non-zero section count (the writer emits .text/.data/.bss/
// .rodata/.pdata/.xdata).
func TestWriteProducesAmd64CoffHeader(t *testing.T) {
	obj := buildObject(t)
	out, err := New().Write(obj)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(out) < 20 {
		t.Fatalf("expected at least a 20-byte COFF header, got %d bytes", len(out))
	}
	machine := binary.LittleEndian.Uint16(out[0:2])
	if machine != imageFileMachineAmd64 {
		t.Fatalf("expected IMAGE_FILE_MACHINE_AMD64 (0x%x), got 0x%x", imageFileMachineAmd64, machine)
	}
	numSections := binary.LittleEndian.Uint16(out[2:4])
	if numSections == 0 {
		t.Fatalf("expected at least one section")
	}
}
