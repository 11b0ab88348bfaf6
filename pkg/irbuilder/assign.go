package irbuilder

import (
	"github.com/cppc-project/cppc/pkg/ast"
	"github.com/cppc-project/cppc/pkg/ir"
)

// lowerAssign lowers `lhs = rhs`, storing through lhs's address and
// yielding the stored value (C++ assignment is itself an expression).
func (b *Builder) lowerAssign(lhs, rhs ast.Expr, succ ir.Node) (ir.Temp, ir.Node, ValueType) {
	storeNode := b.freshNode()
	rt, rhsEntry, _ := b.lowerExpr(rhs, storeNode)
	addr, addrEntry, vt := b.lowerAddress(lhs, rhsEntry)
	b.emitAt(storeNode, ir.Istore{Chunk: MChunkFor(vt), Args: []ir.Temp{addr}, Src: rt, Succ: succ})
	return rt, addrEntry, vt
}

// lowerCompoundAssign lowers `lhs OP= rhs` as `lhs = lhs OP rhs`,
// evaluating lhs's address exactly once: address first, then rhs, then
// a read-modify-write of that one address.
func (b *Builder) lowerCompoundAssign(lhs ast.Expr, op ast.BinaryOp, rhs ast.Expr, succ ir.Node) (ir.Temp, ir.Node, ValueType) {
	storeNode := b.freshNode()
	computeNode := b.freshNode()
	scaleNode := b.freshNode()
	loadNode := b.freshNode()

	rt, rhsEntry, rvt := b.lowerExpr(rhs, loadNode)
	addr, addrEntry, vt := b.lowerAddress(lhs, rhsEntry)

	loadDest := b.freshTemp()
	b.emitAt(loadNode, ir.Iload{Chunk: MChunkFor(vt), Args: []ir.Temp{addr}, Dest: loadDest, Succ: scaleNode})

	opcode, ok := binaryOpMap[op]
	if !ok {
		b.errorf("unsupported compound-assignment operator")
		opcode = ir.OAdd
	}
	dest := b.freshTemp()

	if vt.PointerDepth > 0 && (op == ast.OpAdd || op == ast.OpSub) && rvt.PointerDepth == 0 {
		elemSize := elemStride(vt, b.Reg)
		scaled := b.freshTemp()
		b.emitAt(scaleNode, ir.Iop{Op: ir.OMul, Args: []ir.Temp{rt}, Dest: scaled, Imm: elemSize, FBits: 64, Succ: computeNode})
		b.emitAt(computeNode, ir.Iop{Op: opcode, Args: []ir.Temp{loadDest, scaled}, Dest: dest, Succ: storeNode})
	} else {
		b.emitAt(scaleNode, ir.Inop{Succ: computeNode})
		b.emitAt(computeNode, ir.Iop{Op: opcode, Args: []ir.Temp{loadDest, rt}, Dest: dest, Succ: storeNode})
	}
	b.emitAt(storeNode, ir.Istore{Chunk: MChunkFor(vt), Args: []ir.Temp{addr}, Src: dest, Succ: succ})
	return dest, addrEntry, vt
}
