package irbuilder

import (
	"github.com/cppc-project/cppc/pkg/ast"
	"github.com/cppc-project/cppc/pkg/intern"
	"github.com/cppc-project/cppc/pkg/ir"
	"github.com/cppc-project/cppc/pkg/mangle"
	"github.com/cppc-project/cppc/pkg/types"
)

// globalReg/funcReg are the whole-program facts program.go collects in
// its first pass over the translation unit, then replays onto a fresh
// Builder for every function body lowered in its second pass — each
// function gets its own Builder (temps/nodes start back at 1) but needs
// to see every sibling global and free function regardless of source
// order, exactly like a real linker resolving cross-TU references.
type globalReg struct {
	name string
	typ  ValueType
}

type funcReg struct {
	name   string
	ret    ValueType
	symbol string
}

type funcUnit struct {
	decl      *ast.FunctionDecl
	className string
}

func vtFromParam(pt mangle.ParamType) ValueType {
	return ValueType{Kind: pt.Kind, PointerDepth: pt.PointerDepth, StructName: pt.Name}
}

// computeSignature resolves a declaration's parameter/return types into
// a mangle.FunctionSig, shared by both the signature-collection pass and
// the per-function lowering pass so a free function's registered symbol
// and its own emitted Name always agree.
func computeSignature(b *Builder, fn *ast.FunctionDecl, className string) mangle.FunctionSig {
	ret := ValueType{Kind: types.Void}
	if fn.ReturnType != nil {
		ret = b.resolveType(fn.ReturnType)
	}
	if fn.IsConstructor || fn.IsDestructor {
		ret = ValueType{Kind: types.Void}
	}
	sig := mangle.FunctionSig{ClassName: className, Name: fn.Name, Return: toParamType(ret), IsConst: fn.IsConst}
	if fn.IsConstructor {
		sig.Name = className
	}
	for _, p := range fn.Params {
		sig.Params = append(sig.Params, toParamType(b.resolveType(p.Type)))
	}
	return sig
}

func paramFloatFlags(params []mangle.ParamType) []bool {
	flags := make([]bool, len(params))
	for i, p := range params {
		flags[i] = p.Kind.IsFloat() && p.PointerDepth == 0
	}
	return flags
}

// BuildProgram lowers a whole translation unit: every file-scope global
// and free function is registered before any function body is lowered,
// so a call or reference to something declared later in the file (or in
// a class defined further down) still resolves, matching the one-pass-
// after-full-parse discipline semantic checker already uses
// for declaration order.
func BuildProgram(prog *ast.Program, reg *types.Registry, strs *intern.Table, scheme mangle.Scheme) (*ir.Program, []error) {
	typeB := NewBuilder(reg, strs, scheme)

	var globals []globalReg
	var funcs []funcReg
	var units []funcUnit

	var walkDecls func(decls []ast.Decl)
	walkDecls = func(decls []ast.Decl) {
		for _, d := range decls {
			switch n := d.(type) {
			case *ast.VarDecl:
				globals = append(globals, globalReg{n.Name, typeB.resolveType(n.Type)})

			case *ast.FunctionDecl:
				if n.Body == nil {
					continue
				}
				className := n.Qualifier
				if className == "" {
					sig := computeSignature(typeB, n, "")
					symbol := mangle.Mangle(scheme, sig)
					funcs = append(funcs, funcReg{n.Name, vtFromParam(sig.Return), symbol})
				}
				units = append(units, funcUnit{n, className})

			case *ast.StructDecl:
				for _, m := range n.Members {
					if fd, ok := m.(*ast.FunctionDecl); ok && fd.Body != nil {
						units = append(units, funcUnit{fd, n.Name})
					}
					if vd, ok := m.(*ast.VarDecl); ok && vd.IsStatic {
						globals = append(globals, globalReg{n.Name + "::" + vd.Name, typeB.resolveType(vd.Type)})
					}
				}

			case *ast.NamespaceDecl:
				walkDecls(n.Decls)
			}
		}
	}
	walkDecls(prog.Decls)

	out := &ir.Program{}
	for _, g := range globals {
		out.Globals = append(out.Globals, ir.GlobalVar{Name: g.name, Size: int64(g.typ.SizeBytes(reg))})
	}

	var diags []error
	for _, u := range units {
		fb := NewBuilder(reg, strs, scheme)
		for _, g := range globals {
			fb.RegisterGlobal(g.name, g.typ)
		}
		for _, f := range funcs {
			fb.RegisterFunction(f.name, f.ret, f.symbol)
		}
		fn := fb.buildOneFunction(u.decl, u.className)
		out.Functions = append(out.Functions, *fn)
		diags = append(diags, fb.Diagnostics()...)
	}
	return out, diags
}

// buildOneFunction lowers a single function/method/constructor body,
// prepending an implicit `this` parameter for member functions.
func (b *Builder) buildOneFunction(fn *ast.FunctionDecl, className string) *ir.Function {
	b.resultType = ValueType{Kind: types.Void}
	if fn.ReturnType != nil {
		b.resultType = b.resolveType(fn.ReturnType)
	}
	if fn.IsConstructor || fn.IsDestructor {
		b.resultType = ValueType{Kind: types.Void}
	}

	b.pushScope()
	var params []ir.Temp
	if className != "" {
		thisTemp := b.freshTemp()
		b.scopes[len(b.scopes)-1]["this"] = varSlot{temp: thisTemp, typ: ValueType{Kind: types.Struct, StructName: className, PointerDepth: 1}}
		params = append(params, thisTemp)
	}
	for _, p := range fn.Params {
		params = append(params, b.declareVar(p.Name, b.resolveType(p.Type)))
	}

	if fn.Body != nil {
		labels := map[string]bool{}
		for _, st := range fn.Body.Stmts {
			collectLabels(st, labels)
		}
		for l := range labels {
			b.reserveLabel(l)
		}
	}

	exitNode := b.emit(ir.Ireturn{})
	entry := exitNode
	if fn.Body != nil {
		entry = b.lowerBlock(fn.Body, exitNode)
	}
	b.popScope()

	sig := computeSignature(b, fn, className)
	symbol := mangle.Mangle(b.Scheme, sig)

	return &ir.Function{
		Name:       symbol,
		Params:     params,
		Code:       b.code,
		Entrypoint: entry,
		Sig: ir.Signature{
			ParamIsFloat:  paramFloatFlags(sig.Params),
			ReturnIsFloat: b.resultType.IsFloat(),
			HasReturn:     b.resultType.Kind != types.Void,
		},
		FrameSlots: b.frameSlots,
	}
}
