package irbuilder

import (
	"github.com/cppc-project/cppc/pkg/ast"
	"github.com/cppc-project/cppc/pkg/ir"
	"github.com/cppc-project/cppc/pkg/types"
)

// Every automatic variable is stack-allocated (ir.FrameSlot), so
// "address of x" never needs an instruction: the variable's own Temp
// already denotes its address. lowerAddress computes the address a
// MemberExpr/IndexExpr/UnaryDeref chain denotes, folding
// `&a.b[i].c`-style chains into a single base Temp plus a constant
// Offset the way the reference compiler's rtlgen folded Cminor `Eaddrstack`/
// `Ebinop Oadd` chains during address computation, folding a chain of
// member/array accesses into a single base plus constant offset
// whenever every index is itself constant.
func (b *Builder) lowerAddress(e ast.Expr, succ ir.Node) (addr ir.Temp, entry ir.Node, elemType ValueType) {
	switch n := e.(type) {
	case *ast.Ident:
		if slot, ok := b.lookupVar(n.Name); ok {
			return slot.temp, succ, slot.typ
		}
		if vt, ok := b.globals[n.Name]; ok {
			dest := b.freshTemp()
			n2 := b.emit(ir.Iglobaladdr{Name: n.Name, Dest: dest, Succ: succ})
			return dest, n2, vt
		}
		b.errorf("undeclared identifier %q", n.Name)
		return 0, succ, ValueType{Kind: types.Int}

	case *ast.UnaryExpr:
		if n.Op == ast.UnaryDeref {
			// *p: p is an ordinary rvalue (a pointer value), not itself
			// addressable storage, so it lowers via lowerExpr, not
			// lowerAddress.
			t, entry, vt := b.lowerExpr(n.Operand, succ)
			vt.PointerDepth--
			return t, entry, vt
		}

	case *ast.MemberExpr:
		var baseAddr ir.Temp
		var baseEntry ir.Node
		var baseType ValueType
		if n.Arrow {
			baseAddr, baseEntry, baseType = b.lowerExpr(n.Base, succ)
			baseType.PointerDepth--
		} else {
			baseAddr, baseEntry, baseType = b.lowerAddress(n.Base, succ)
		}
		member, memberType, offsetBits, ok := b.findMember(baseType, n.Name)
		if !ok {
			b.errorf("no member named %q on %s", n.Name, baseType.StructName)
			return baseAddr, baseEntry, baseType
		}
		_ = member
		if offsetBits%8 != 0 {
			// Bitfield: caller (lowerExpr/assignTo) must special-case this
			// member access via Iload/Istore's IsBitfield path rather than
			// treating the result as a plain address.
			return baseAddr, baseEntry, memberType
		}
		dest := b.freshTemp()
		n2 := b.emit(ir.Iload{
			Chunk:     MChunkFor(memberType),
			Args:      []ir.Temp{baseAddr},
			Offset:    int64(offsetBits / 8),
			Dest:      dest,
			IsAddress: true,
			Succ:      baseEntry,
		})
		return dest, n2, memberType

	case *ast.IndexExpr:
		baseAddr, baseEntry, baseType := b.lowerAddress(n.Base, succ)
		elemType = baseType
		elemType.PointerDepth--
		size := int64(elemType.SizeBytes(b.Reg))

		if lit, ok := n.Index.(*ast.NumericLit); ok && !lit.IsFloat {
			dest := b.freshTemp()
			n2 := b.emit(ir.Iload{
				Chunk:     MChunkFor(elemType),
				Args:      []ir.Temp{baseAddr},
				Offset:    lit.IntVal * size,
				Dest:      dest,
				IsAddress: true,
				Succ:      baseEntry,
			})
			return dest, n2, elemType
		}

		idxTemp, idxEntry, _ := b.lowerExpr(n.Index, baseEntry)
		scaled := b.freshTemp()
		nScale := b.emit(ir.Iop{Op: ir.OMul, Args: []ir.Temp{idxTemp}, Dest: scaled, Imm: size, FBits: 64, Succ: idxEntry})
		dest := b.freshTemp()
		nAdd := b.emit(ir.Iload{
			Chunk:     MChunkFor(elemType),
			Args:      []ir.Temp{baseAddr, scaled},
			Dest:      dest,
			IsAddress: true,
			Succ:      nScale,
		})
		return dest, nAdd, elemType
	}

	b.errorf("expression is not an lvalue")
	t, entry, vt := b.lowerExpr(e, succ)
	return t, entry, vt
}

// findMember resolves name against base's struct layout, returning the
// member's ValueType and bit offset.
func (b *Builder) findMember(base ValueType, name string) (types.Member, ValueType, int, bool) {
	if base.StructName == "" {
		return types.Member{}, ValueType{}, 0, false
	}
	h := b.Strs.Intern(base.StructName)
	d, ok := b.Reg.Find(h)
	if !ok || d.Struct == nil {
		return types.Member{}, ValueType{}, 0, false
	}
	for _, m := range d.Struct.Members {
		if b.Strs.View(m.Name) == name {
			mt := ValueType{Kind: m.Kind, PointerDepth: m.PointerDepth}
			if m.Kind == types.Struct || m.Kind == types.UserDefined {
				if md := b.Reg.At(m.TypeIndex); md != nil {
					mt.StructName = md.QualifiedName(b.Strs)
				}
			}
			return m, mt, m.OffsetBits, true
		}
	}
	return types.Member{}, ValueType{}, 0, false
}

// MChunkFor picks the memory-access width for a ValueType.
func MChunkFor(t ValueType) ir.MemChunk {
	if t.PointerDepth > 0 {
		return ir.MPointer
	}
	switch t.Kind {
	case types.Bool, types.Char, types.UChar:
		return ir.MInt8
	case types.Short, types.UShort:
		return ir.MInt16
	case types.Int, types.UInt, types.Float:
		if t.Kind == types.Float {
			return ir.MFloat32
		}
		return ir.MInt32
	case types.Double:
		return ir.MFloat64
	default:
		return ir.MInt64
	}
}
