package irbuilder

import (
	"github.com/cppc-project/cppc/pkg/ast"
	"github.com/cppc-project/cppc/pkg/ir"
	"github.com/cppc-project/cppc/pkg/mangle"
	"github.com/cppc-project/cppc/pkg/types"
)

func toParamType(vt ValueType) mangle.ParamType {
	return mangle.ParamType{Kind: vt.Kind, Name: vt.StructName, PointerDepth: vt.PointerDepth}
}

// lowerArgs lowers a call's argument list left-to-right, threading succ
// backward exactly like any other expression sequence: the last
// argument's chain feeds the call node, and each earlier argument's
// chain feeds the next.
func (b *Builder) lowerArgs(args []ast.Expr, callNode ir.Node) ([]ir.Temp, []ValueType, ir.Node) {
	temps := make([]ir.Temp, len(args))
	vts := make([]ValueType, len(args))
	next := callNode
	for i := len(args) - 1; i >= 0; i-- {
		t, entry, vt := b.lowerExpr(args[i], next)
		temps[i] = t
		vts[i] = vt
		next = entry
	}
	return temps, vts, next
}

// lowerCall lowers a free-function call `name(args...)`.
func (b *Builder) lowerCall(n *ast.CallExpr, succ ir.Node) (ir.Temp, ir.Node, ValueType) {
	callee, ok := n.Callee.(*ast.Ident)
	if !ok {
		b.errorf("indirect/computed call targets are not supported")
		dest := b.freshTemp()
		return dest, b.emit(ir.Iop{Op: ir.OIntConst, Dest: dest, Succ: succ}), ValueType{Kind: types.Int}
	}

	callNode := b.freshNode()
	args, argTypes, entry := b.lowerArgs(n.Args, callNode)

	retType, ok := b.functionReturnTypes[callee.Name]
	if !ok {
		retType = ValueType{Kind: types.Int}
	}
	sig := mangle.FunctionSig{Name: callee.Name, Return: toParamType(retType)}
	for _, a := range argTypes {
		sig.Params = append(sig.Params, toParamType(a))
	}
	symbol := callee.Name
	if mangled, ok := b.functionSymbols[callee.Name]; ok {
		symbol = mangled
	} else {
		symbol = mangle.Mangle(b.Scheme, sig)
	}

	dest := ir.Temp(0)
	if retType.Kind != types.Void || retType.PointerDepth > 0 {
		dest = b.freshTemp()
	}
	b.emitAt(callNode, ir.Icall{Fn: ir.FunSymbol{Name: symbol}, Args: args, Dest: dest, Succ: succ})
	return dest, entry, retType
}

// lowerMemberCall lowers `base.method(args...)` / `base->method(args...)`
// as a call to the method's mangled name with an implicit first
// argument: the object's address (the System V/MSVC `this` convention,
// "Function call... member functions receive an implicit
// first argument").
func (b *Builder) lowerMemberCall(n *ast.MemberCallExpr, succ ir.Node) (ir.Temp, ir.Node, ValueType) {
	callNode := b.freshNode()
	args, argTypes, afterArgs := b.lowerArgs(n.Args, callNode)

	var thisAddr ir.Temp
	var thisEntry ir.Node
	var baseType ValueType
	if n.Arrow {
		thisAddr, thisEntry, baseType = b.lowerExpr(n.Base, afterArgs)
		baseType.PointerDepth--
	} else {
		thisAddr, thisEntry, baseType = b.lowerAddress(n.Base, afterArgs)
	}

	retType, methodInfo, ok := b.findMethodReturn(baseType, n.Method)
	if !ok {
		retType = ValueType{Kind: types.Int}
	}
	sig := mangle.FunctionSig{ClassName: baseType.StructName, Name: n.Method, Return: toParamType(retType), IsConst: methodInfo.Const}
	for _, a := range argTypes {
		sig.Params = append(sig.Params, toParamType(a))
	}
	symbol := mangle.Mangle(b.Scheme, sig)

	dest := ir.Temp(0)
	if retType.Kind != types.Void || retType.PointerDepth > 0 {
		dest = b.freshTemp()
	}
	allArgs := append([]ir.Temp{thisAddr}, args...)
	b.emitAt(callNode, ir.Icall{Fn: ir.FunSymbol{Name: symbol}, Args: allArgs, Dest: dest, Succ: succ})
	return dest, thisEntry, retType
}

func (b *Builder) findMethodReturn(base ValueType, method string) (ValueType, types.MethodInfo, bool) {
	if base.StructName == "" {
		return ValueType{}, types.MethodInfo{}, false
	}
	h := b.Strs.Intern(base.StructName)
	d, ok := b.Reg.Find(h)
	if !ok || d.Struct == nil {
		return ValueType{}, types.MethodInfo{}, false
	}
	for _, m := range d.Struct.Methods {
		if b.Strs.View(m.Name) == method {
			// Return type isn't tracked on MethodInfo directly; callers
			// needing more than "is this void" should consult Decl.
			return ValueType{Kind: types.Int}, m, true
		}
	}
	return ValueType{}, types.MethodInfo{}, false
}

// lowerConstructorCall lowers `Type(args...)` / `Type{args...}`: for a
// struct type this calls the mangled constructor with the newly
// stack-allocated object's address as `this`; for a builtin type it's
// just a value conversion/materialization.
func (b *Builder) lowerConstructorCall(n *ast.ConstructorCallExpr, succ ir.Node) (ir.Temp, ir.Node, ValueType) {
	vt := b.resolveType(n.Type)
	if vt.Kind != types.Struct {
		if len(n.Args) == 1 {
			return b.lowerExpr(n.Args[0], succ)
		}
		dest := b.freshTemp()
		return dest, b.emit(ir.Iop{Op: ir.OIntConst, Dest: dest, Succ: succ}), vt
	}

	objAddr := b.freshTemp()
	b.frameSlots = append(b.frameSlots, ir.FrameSlot{Temp: objAddr, Size: int64(vt.SizeBytes(b.Reg))})

	callNode := b.freshNode()
	args, argTypes, afterArgs := b.lowerArgs(n.Args, callNode)

	sig := mangle.FunctionSig{ClassName: vt.StructName, Name: vt.StructName}
	for _, a := range argTypes {
		sig.Params = append(sig.Params, toParamType(a))
	}
	symbol := mangle.Mangle(b.Scheme, sig)
	allArgs := append([]ir.Temp{objAddr}, args...)
	b.emitAt(callNode, ir.Icall{Fn: ir.FunSymbol{Name: symbol}, Args: allArgs, Succ: succ})
	return objAddr, afterArgs, vt
}
