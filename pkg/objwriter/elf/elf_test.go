package elf

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/cppc-project/cppc/pkg/ast"
	"github.com/cppc-project/cppc/pkg/emitter"
	"github.com/cppc-project/cppc/pkg/intern"
	"github.com/cppc-project/cppc/pkg/irbuilder"
	"github.com/cppc-project/cppc/pkg/mangle"
	"github.com/cppc-project/cppc/pkg/types"
)

// buildObject lowers `int add(int a, int b) { return a + b; }` all the
// way down to an emitter.Object, the same fixture irbuilder/emitter's
// own tests lower, reused here to exercise a realistic object rather
// than a hand-built one.
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

// TestWriteProducesValidElfHeader grounds the ELF64 little-endian
// relocatable-object header this writer commits to: the magic number,
// ELFCLASS64/ELFDATA2LSB identification bytes, and e_type == ET_REL.
func TestWriteProducesValidElfHeader(t *testing.T) {
	obj := buildObject(t)
	out, err := New().Write(obj)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(out) < 64 {
		t.Fatalf("expected at least a 64-byte ELF header, got %d bytes", len(out))
	}
	if !bytes.Equal(out[:4], []byte{0x7f, 'E', 'L', 'F'}) {
		t.Fatalf("expected ELF magic, got %v", out[:4])
	}
	if out[4] != elfClass64 {
		t.Fatalf("expected ELFCLASS64, got %d", out[4])
	}
	if out[5] != elfData2LSB {
		t.Fatalf("expected ELFDATA2LSB, got %d", out[5])
	}
	eType := binary.LittleEndian.Uint16(out[16:18])
	if eType != etRel {
		t.Fatalf("expected ET_REL (%d), got %d", etRel, eType)
	}
}
