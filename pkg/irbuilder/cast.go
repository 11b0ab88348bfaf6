package irbuilder

import (
	"github.com/cppc-project/cppc/pkg/ast"
	"github.com/cppc-project/cppc/pkg/ir"
)

// lowerCast lowers static_cast/const_cast/reinterpret_cast/C-style
// casts uniformly by target representation width and kind.
// dynamic_cast is treated identically to static_cast: without RTTI
// vtables wired up, the runtime null-on-failure check it normally
// performs is skipped, so an invalid downcast is undefined behavior
// here rather than producing nullptr.
func (b *Builder) lowerCast(n *ast.CastExpr, succ ir.Node) (ir.Temp, ir.Node, ValueType) {
	target := b.resolveType(n.Type)

	convNode := b.freshNode()
	src, entry, srcType := b.lowerExpr(n.Operand, convNode)

	if n.Kind == ast.ConstCast || target.PointerDepth > 0 || srcType.PointerDepth > 0 || target.Kind == srcType.Kind {
		// Pointer reinterpretation (including const-qualification
		// changes) and same-kind casts never change bit representation.
		b.emitAt(convNode, ir.Inop{Succ: succ})
		return src, entry, target
	}

	op, bits := conversionOp(srcType, target, b)
	dest := b.freshTemp()
	b.emitAt(convNode, ir.Iop{Op: op, Args: []ir.Temp{src}, Dest: dest, FBits: bits, Succ: succ})
	return dest, entry, target
}

func conversionOp(from, to ValueType, b *Builder) (ir.Op, int) {
	fromFloat, toFloat := from.IsFloat(), to.IsFloat()
	toBits := to.SizeBytes(b.Reg) * 8
	switch {
	case fromFloat && toFloat:
		return ir.OFloatToFloat, toBits
	case fromFloat && !toFloat:
		return ir.OFloatToInt, toBits
	case !fromFloat && toFloat:
		return ir.OIntToFloat, toBits
	default:
		fromBits := from.SizeBytes(b.Reg) * 8
		switch {
		case toBits > fromBits:
			if from.Kind.IsUnsigned() {
				return ir.OZeroExtend, toBits
			}
			return ir.OSignExtend, toBits
		case toBits < fromBits:
			return ir.OTruncate, toBits
		default:
			return ir.OMove, toBits
		}
	}
}
