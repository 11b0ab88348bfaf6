package irbuilder

import (
	"math"

	"github.com/cppc-project/cppc/pkg/ast"
	"github.com/cppc-project/cppc/pkg/ir"
	"github.com/cppc-project/cppc/pkg/types"
)

// lowerExpr lowers e into an instruction chain that, once control
// reaches the returned entry node, computes e's value into the
// returned Temp and falls through to succ — the reference compiler's rtlgen
// backward-construction order generalized across the full expression
// grammar.
func (b *Builder) lowerExpr(e ast.Expr, succ ir.Node) (ir.Temp, ir.Node, ValueType) {
	switch n := e.(type) {
	case *ast.NumericLit:
		return b.lowerNumericLit(n, succ)

	case *ast.BoolLit:
		dest := b.freshTemp()
		v := int64(0)
		if n.Value {
			v = 1
		}
		entry := b.emit(ir.Iop{Op: ir.OIntConst, Dest: dest, Imm: v, FBits: 8, Succ: succ})
		return dest, entry, ValueType{Kind: types.Bool}

	case *ast.NullptrLit:
		dest := b.freshTemp()
		entry := b.emit(ir.Iop{Op: ir.OIntConst, Dest: dest, Imm: 0, FBits: 64, Succ: succ})
		return dest, entry, ValueType{Kind: types.Void, PointerDepth: 1}

	case *ast.StringLit:
		handle := uint32(b.Strs.Intern(n.Value))
		dest := b.freshTemp()
		entry := b.emit(ir.Istringlit{Handle: handle, Dest: dest, Succ: succ})
		return dest, entry, ValueType{Kind: types.Char, PointerDepth: 1}

	case *ast.Ident:
		return b.loadIdent(n, succ)

	case *ast.QualifiedIdent:
		if vt, v, ok := b.lookupQualifiedConstant(n); ok {
			dest := b.freshTemp()
			entry := b.emit(ir.Iop{Op: ir.OIntConst, Dest: dest, Imm: v, FBits: 32, Succ: succ})
			return dest, entry, vt
		}
		b.errorf("unresolved qualified name %v::%s", n.Qualifiers, n.Name)
		dest := b.freshTemp()
		return dest, b.emit(ir.Iop{Op: ir.OIntConst, Dest: dest, Succ: succ}), ValueType{Kind: types.Int}

	case *ast.UnaryExpr:
		return b.lowerUnary(n, succ)

	case *ast.PostfixExpr:
		return b.lowerPostfix(n, succ)

	case *ast.BinaryExpr:
		return b.lowerBinary(n, succ)

	case *ast.TernaryExpr:
		return b.lowerTernary(n, succ)

	case *ast.MemberExpr, *ast.IndexExpr:
		addr, entry, vt := b.lowerAddress(e, succ)
		if vt.Kind == types.Struct && vt.PointerDepth == 0 {
			// Aggregate-valued access yields its address; the caller (e.g.
			// a by-value copy in an assignment) loads fields individually.
			return addr, entry, vt
		}
		dest := b.freshTemp()
		n2 := b.emit(ir.Iload{Chunk: MChunkFor(vt), Args: []ir.Temp{addr}, Dest: dest, Succ: entry})
		return dest, n2, vt

	case *ast.PointerToMemberExpr:
		// A pointer-to-member value is a runtime member-offset encoding
		// this flat Temp/offset IR doesn't model; out of scope, same as
		// the virtual/multiple-inheritance layout edge cases this
		// compiler's struct layout already excludes.
		b.errorf("pointer-to-member expressions are not supported")
		dest := b.freshTemp()
		return dest, b.emit(ir.Iop{Op: ir.OIntConst, Dest: dest, Succ: succ}), ValueType{Kind: types.Int}

	case *ast.CallExpr:
		return b.lowerCall(n, succ)

	case *ast.MemberCallExpr:
		return b.lowerMemberCall(n, succ)

	case *ast.ConstructorCallExpr:
		return b.lowerConstructorCall(n, succ)

	case *ast.CastExpr:
		return b.lowerCast(n, succ)

	case *ast.SizeofExpr:
		dest := b.freshTemp()
		var size int64
		if n.Type != nil {
			size = int64(b.resolveType(n.Type).SizeBytes(b.Reg))
		} else {
			_, _, vt := b.lowerExpr(n.Expr, succ)
			size = int64(vt.SizeBytes(b.Reg))
		}
		entry := b.emit(ir.Iop{Op: ir.OIntConst, Dest: dest, Imm: size, FBits: 64, Succ: succ})
		return dest, entry, ValueType{Kind: types.ULong}

	case *ast.LambdaExpr:
		// Closures require synthesizing an anonymous capture struct and a
		// call-operator method, a whole-program transformation this
		// per-function lowering pass doesn't perform.
		b.errorf("lambda expressions are not supported")
		dest := b.freshTemp()
		return dest, b.emit(ir.Iop{Op: ir.OIntConst, Dest: dest, Succ: succ}), ValueType{Kind: types.Int}
	}

	b.errorf("unsupported expression %T", e)
	dest := b.freshTemp()
	return dest, b.emit(ir.Iop{Op: ir.OIntConst, Dest: dest, Succ: succ}), ValueType{Kind: types.Int}
}

func (b *Builder) lowerNumericLit(n *ast.NumericLit, succ ir.Node) (ir.Temp, ir.Node, ValueType) {
	dest := b.freshTemp()
	if n.IsFloat {
		bits := 64
		vt := ValueType{Kind: types.Double}
		raw := int64(math.Float64bits(n.FloatVal))
		if containsRune(n.Suffix, 'f') {
			bits, vt.Kind = 32, types.Float
			raw = int64(math.Float32bits(float32(n.FloatVal)))
		}
		// Imm carries the constant's raw bit pattern (not its integer
		// value) when FBits/Dest classify as floating point; the emitter
		// moves it into a register as a 64-bit immediate, with no rodata
		// float-constant pool.
		entry := b.emit(ir.Iop{Op: ir.OIntConst, Dest: dest, FBits: bits, Succ: succ, Imm: raw})
		return dest, entry, vt
	}
	vt := ValueType{Kind: types.Int}
	bits := 32
	if containsRune(n.Suffix, 'l') {
		vt.Kind, bits = types.Long, 64
	}
	if containsRune(n.Suffix, 'u') {
		if vt.Kind == types.Long {
			vt.Kind = types.ULong
		} else {
			vt.Kind = types.UInt
		}
	}
	entry := b.emit(ir.Iop{Op: ir.OIntConst, Dest: dest, Imm: n.IntVal, FBits: bits, Succ: succ})
	return dest, entry, vt
}

func (b *Builder) loadIdent(n *ast.Ident, succ ir.Node) (ir.Temp, ir.Node, ValueType) {
	addr, entry, vt := b.lowerAddress(n, succ)
	if vt.Kind == types.Struct && vt.PointerDepth == 0 {
		return addr, entry, vt
	}
	dest := b.freshTemp()
	n2 := b.emit(ir.Iload{Chunk: MChunkFor(vt), Args: []ir.Temp{addr}, Dest: dest, Succ: entry})
	return dest, n2, vt
}

// lookupQualifiedConstant resolves `EnumName::Constant`-style qualified
// references against the registry's enum layouts.
func (b *Builder) lookupQualifiedConstant(n *ast.QualifiedIdent) (ValueType, int64, bool) {
	if len(n.Qualifiers) == 0 {
		return ValueType{}, 0, false
	}
	h := b.Strs.Intern(n.Qualifiers[len(n.Qualifiers)-1])
	d, ok := b.Reg.Find(h)
	if !ok || d.Enum == nil {
		return ValueType{}, 0, false
	}
	for _, c := range d.Enum.Constants {
		if b.Strs.View(c.Name) == n.Name {
			return ValueType{Kind: types.Int, StructName: n.Qualifiers[len(n.Qualifiers)-1]}, c.Value, true
		}
	}
	return ValueType{}, 0, false
}

func (b *Builder) lowerUnary(n *ast.UnaryExpr, succ ir.Node) (ir.Temp, ir.Node, ValueType) {
	switch n.Op {
	case ast.UnaryAddr, ast.UnaryAddressOfBuiltin:
		addr, entry, vt := b.lowerAddress(n.Operand, succ)
		vt.PointerDepth++
		return addr, entry, vt

	case ast.UnaryDeref:
		ptr, entry, vt := b.lowerExpr(n.Operand, succ)
		vt.PointerDepth--
		dest := b.freshTemp()
		n2 := b.emit(ir.Iload{Chunk: MChunkFor(vt), Args: []ir.Temp{ptr}, Dest: dest, Succ: entry})
		return dest, n2, vt

	case ast.UnaryNeg:
		v, entry, vt := b.lowerExpr(n.Operand, succ)
		dest := b.freshTemp()
		n2 := b.emit(ir.Iop{Op: ir.ONegate, Args: []ir.Temp{v}, Dest: dest, Succ: entry})
		return dest, n2, vt

	case ast.UnaryNot:
		v, entry, _ := b.lowerExpr(n.Operand, succ)
		dest := b.freshTemp()
		n2 := b.emit(ir.Iop{Op: ir.OLogicalNot, Args: []ir.Temp{v}, Dest: dest, Succ: entry})
		return dest, n2, ValueType{Kind: types.Bool}

	case ast.UnaryBitNot:
		v, entry, vt := b.lowerExpr(n.Operand, succ)
		dest := b.freshTemp()
		n2 := b.emit(ir.Iop{Op: ir.OBitwiseNot, Args: []ir.Temp{v}, Dest: dest, Succ: entry})
		return dest, n2, vt

	case ast.UnaryPlus:
		return b.lowerExpr(n.Operand, succ)

	case ast.UnaryPreIncr, ast.UnaryPreDecr:
		addr, entry, vt := b.lowerAddress(n.Operand, succ)
		op := ir.OPreIncrement
		if n.Op == ast.UnaryPreDecr {
			op = ir.OPreDecrement
		}
		elemSize := elemStride(vt, b.Reg)
		dest := b.freshTemp()
		nStore := b.emit(ir.Istore{Chunk: MChunkFor(vt), Args: []ir.Temp{addr}, Src: dest, Succ: entry})
		nCompute := b.emit(ir.Iop{Op: op, Args: []ir.Temp{addr}, Dest: dest, Imm: elemSize, Succ: nStore})
		return dest, nCompute, vt
	}
	b.errorf("unsupported unary operator")
	dest := b.freshTemp()
	return dest, b.emit(ir.Iop{Op: ir.OIntConst, Dest: dest, Succ: succ}), ValueType{Kind: types.Int}
}

func elemStride(vt ValueType, reg *types.Registry) int64 {
	if vt.PointerDepth > 1 {
		return 8
	}
	if vt.PointerDepth == 1 {
		elem := vt
		elem.PointerDepth = 0
		return int64(elem.SizeBytes(reg))
	}
	return 1
}

func (b *Builder) lowerPostfix(n *ast.PostfixExpr, succ ir.Node) (ir.Temp, ir.Node, ValueType) {
	addr, entry, vt := b.lowerAddress(n.Operand, succ)
	op := ir.OPostIncrement
	if n.Op == ast.PostfixDecr {
		op = ir.OPostDecrement
	}
	elemSize := elemStride(vt, b.Reg)
	old := b.freshTemp()
	updated := b.freshTemp()
	nStore := b.emit(ir.Istore{Chunk: MChunkFor(vt), Args: []ir.Temp{addr}, Src: updated, Succ: entry})
	nUpdate := b.emit(ir.Iop{Op: op, Args: []ir.Temp{addr}, Dest: updated, Imm: elemSize, Succ: nStore})
	nLoad := b.emit(ir.Iload{Chunk: MChunkFor(vt), Args: []ir.Temp{addr}, Dest: old, Succ: nUpdate})
	return old, nLoad, vt
}

var binaryOpMap = map[ast.BinaryOp]ir.Op{
	ast.OpAdd: ir.OAdd, ast.OpSub: ir.OSub, ast.OpMul: ir.OMul,
	ast.OpDiv: ir.ODiv, ast.OpMod: ir.OMod,
	ast.OpBitAnd: ir.OAnd, ast.OpBitOr: ir.OOr, ast.OpBitXor: ir.OXor,
	ast.OpShl: ir.OShl, ast.OpShr: ir.OShr,
}

var compareOpMap = map[ast.BinaryOp]ir.CondKind{
	ast.OpLt: ir.CLt, ast.OpLe: ir.CLe, ast.OpGt: ir.CGt,
	ast.OpGe: ir.CGe, ast.OpEq: ir.CEq, ast.OpNe: ir.CNe,
}

var compoundAssignMap = map[ast.BinaryOp]ast.BinaryOp{
	ast.OpAddAssign: ast.OpAdd, ast.OpSubAssign: ast.OpSub, ast.OpMulAssign: ast.OpMul,
	ast.OpDivAssign: ast.OpDiv, ast.OpModAssign: ast.OpMod,
	ast.OpAndAssign: ast.OpBitAnd, ast.OpOrAssign: ast.OpBitOr, ast.OpXorAssign: ast.OpBitXor,
	ast.OpShlAssign: ast.OpShl, ast.OpShrAssign: ast.OpShr,
}

func (b *Builder) lowerBinary(n *ast.BinaryExpr, succ ir.Node) (ir.Temp, ir.Node, ValueType) {
	switch n.Op {
	case ast.OpAssign:
		return b.lowerAssign(n.Left, n.Right, succ)

	case ast.OpComma:
		rt, rEntry, rvt := b.lowerExpr(n.Right, succ)
		_, lEntry, _ := b.lowerExpr(n.Left, rEntry)
		return rt, lEntry, rvt

	case ast.OpAnd, ast.OpOr:
		return b.lowerShortCircuit(n, succ)
	}

	if base, ok := compoundAssignMap[n.Op]; ok {
		return b.lowerCompoundAssign(n.Left, base, n.Right, succ)
	}

	if cond, ok := compareOpMap[n.Op]; ok {
		return b.lowerCompare(n.Left, n.Right, cond, succ)
	}

	op, ok := binaryOpMap[n.Op]
	if !ok {
		b.errorf("unsupported binary operator")
		dest := b.freshTemp()
		return dest, b.emit(ir.Iop{Op: ir.OIntConst, Dest: dest, Succ: succ}), ValueType{Kind: types.Int}
	}

	// compute is the final arithmetic instruction; scaleNode is an
	// unconditionally-reserved pass-through slot immediately before it so
	// pointer + integer's element-size scaling (known only once lvt is
	// available, which in this backward construction happens after Right
	// is already built) can be spliced in without rebuilding Right's
	// chain. When no scaling is needed scaleNode is just an Inop relay.
	dest := b.freshTemp()
	compute := b.freshNode()
	scaleNode := b.freshNode()
	rt, rEntry, rvt := b.lowerExpr(n.Right, scaleNode)
	lt, lEntry, lvt := b.lowerExpr(n.Left, rEntry)
	vt := promote(lvt, rvt)

	if lvt.PointerDepth > 0 && (n.Op == ast.OpAdd || n.Op == ast.OpSub) && rvt.PointerDepth == 0 {
		elemSize := elemStride(lvt, b.Reg)
		scaled := b.freshTemp()
		b.emitAt(scaleNode, ir.Iop{Op: ir.OMul, Args: []ir.Temp{rt}, Dest: scaled, Imm: elemSize, FBits: 64, Succ: compute})
		b.emitAt(compute, ir.Iop{Op: op, Args: []ir.Temp{lt, scaled}, Dest: dest, Succ: succ})
		return dest, lEntry, lvt
	}
	b.emitAt(scaleNode, ir.Inop{Succ: compute})
	b.emitAt(compute, ir.Iop{Op: op, Args: []ir.Temp{lt, rt}, Dest: dest, Succ: succ})
	return dest, lEntry, vt
}

// lowerCondBranch lowers cond for its truth value and routes control to
// ifSo/ifNot, materializing a zero constant to compare against since
// Icond always compares two Temps, never a Temp against a bare literal.
func (b *Builder) lowerCondBranch(cond ast.Expr, ifSo, ifNot ir.Node) ir.Node {
	zeroNode := b.freshNode()
	branch := b.freshNode()
	t, entry, _ := b.lowerExpr(cond, zeroNode)
	zeroTemp := b.freshTemp()
	b.emitAt(zeroNode, ir.Iop{Op: ir.OIntConst, Dest: zeroTemp, Succ: branch})
	b.emitAt(branch, ir.Icond{Cond: ir.CNe, Args: []ir.Temp{t, zeroTemp}, IfSo: ifSo, IfNot: ifNot})
	return entry
}

func (b *Builder) lowerCompare(left, right ast.Expr, cond ir.CondKind, succ ir.Node) (ir.Temp, ir.Node, ValueType) {
	dest := b.freshTemp()
	setTrue := b.emit(ir.Iop{Op: ir.OIntConst, Dest: dest, Imm: 1, FBits: 8, Succ: succ})
	setFalse := b.emit(ir.Iop{Op: ir.OIntConst, Dest: dest, Imm: 0, FBits: 8, Succ: succ})
	branch := b.freshNode()
	rt, rEntry, _ := b.lowerExpr(right, branch)
	lt, lEntry, _ := b.lowerExpr(left, rEntry)
	b.emitAt(branch, ir.Icond{Cond: cond, Args: []ir.Temp{lt, rt}, IfSo: setTrue, IfNot: setFalse})
	return dest, lEntry, ValueType{Kind: types.Bool}
}

func (b *Builder) lowerShortCircuit(n *ast.BinaryExpr, succ ir.Node) (ir.Temp, ir.Node, ValueType) {
	dest := b.freshTemp()
	setTrue := b.emit(ir.Iop{Op: ir.OIntConst, Dest: dest, Imm: 1, FBits: 8, Succ: succ})
	setFalse := b.emit(ir.Iop{Op: ir.OIntConst, Dest: dest, Imm: 0, FBits: 8, Succ: succ})

	rEntry := b.lowerCondBranch(n.Right, setTrue, setFalse)

	var ifSo, ifNot ir.Node
	if n.Op == ast.OpAnd {
		ifSo, ifNot = rEntry, setFalse
	} else {
		ifSo, ifNot = setTrue, rEntry
	}
	lEntry := b.lowerCondBranch(n.Left, ifSo, ifNot)
	return dest, lEntry, ValueType{Kind: types.Bool}
}

// lowerTernary builds the classic diamond: each arm computes its own
// value then moves it into the shared dest before joining at succ.
func (b *Builder) lowerTernary(n *ast.TernaryExpr, succ ir.Node) (ir.Temp, ir.Node, ValueType) {
	dest := b.freshTemp()

	movThen := b.freshNode()
	thenT, thenEntry, vt := b.lowerExpr(n.Then, movThen)
	b.emitAt(movThen, ir.Iop{Op: ir.OMove, Args: []ir.Temp{thenT}, Dest: dest, Succ: succ})

	movElse := b.freshNode()
	elseT, elseEntry, _ := b.lowerExpr(n.Else, movElse)
	b.emitAt(movElse, ir.Iop{Op: ir.OMove, Args: []ir.Temp{elseT}, Dest: dest, Succ: succ})

	condEntry := b.lowerCondBranch(n.Cond, thenEntry, elseEntry)
	return dest, condEntry, vt
}

func containsRune(s string, r rune) bool {
	for _, c := range s {
		lc := c
		if lc >= 'A' && lc <= 'Z' {
			lc += 'a' - 'A'
		}
		if lc == r {
			return true
		}
	}
	return false
}
