package templates

import (
	"fmt"

	"github.com/cppc-project/cppc/pkg/ast"
	"github.com/cppc-project/cppc/pkg/concepts"
	"github.com/cppc-project/cppc/pkg/intern"
	"github.com/cppc-project/cppc/pkg/types"
)

// Expand is the monomorphization pass that runs between parsing and
// irbuilder.BuildProgram: pkg/parser's job ends at registering each
// template's deferred body with the Engine; nothing before this pass
// ever asks the Engine to materialize one, since irbuilder.BuildProgram
// has no case for a bare *ast.TemplateDecl and walks concrete
// declarations only.
//
// Expand walks every type reference in the translation unit looking for
// a template-id (a TypeSpec or Ident whose TemplateArgs is non-nil and
// whose Name is a registered template). For each one found it resolves
// the argument vector through the type registry (non-type arguments
// only from literals; see resolveArg), checks any concept constraint on the corresponding template parameter,
// asks the Engine to
// instantiate (memoized by argument tuple), appends the freshly
// substituted declaration to the program exactly once per distinct
// instantiation, and rewrites the reference in place to the mangled
// instantiation name so every later pass sees it as an ordinary,
// already-resolved type name.
func Expand(prog *ast.Program, engine *Engine, reg *types.Registry, strs *intern.Table, conceptReg *concepts.Registry) []error {
	x := &expander{
		engine: engine, reg: reg, strs: strs, concepts: conceptReg,
		seen: make(map[string]bool),
		subst: NewSubstitutor(strs),
	}
	for _, d := range prog.Decls {
		x.walkDecl(d)
	}
	prog.Decls = append(prog.Decls, x.newDecls...)
	return x.errs
}

type expander struct {
	engine   *Engine
	reg      *types.Registry
	strs     *intern.Table
	concepts *concepts.Registry
	subst    *Substitutor

	seen     map[string]bool // mangled instantiation names already spliced in
	newDecls []ast.Decl
	errs     []error
}

func (x *expander) fail(format string, args ...any) {
	x.errs = append(x.errs, fmt.Errorf(format, args...))
}

// tryInstantiate resolves ts's TemplateArgs (when ts.Name is a
// registered template) and rewrites ts in place to the mangled
// instantiation name, splicing the substituted body into the program on
// first use.
func (x *expander) tryInstantiate(ts *ast.TypeSpec) {
	if ts == nil || ts.TemplateArgs == nil {
		return
	}
	rec, ok := x.engine.Lookup(ts.Name)
	if !ok {
		return
	}
	args := make([]types.TemplateArgument, 0, len(ts.TemplateArgs))
	for i, argExpr := range ts.TemplateArgs {
		arg, ok := x.resolveArg(argExpr)
		if !ok {
			return // dependent or unresolvable: leave as a template-id, irbuilder's caller must not see it
		}
		if i < len(rec.Params) && rec.Params[i].Constraint != "" && arg.Kind == types.TypeArg {
			satisfied, err := x.concepts.Satisfies(rec.Params[i].Constraint, arg.BaseKind)
			if err != nil {
				x.fail("template %s: %w", ts.Name, err)
				return
			}
			if !satisfied {
				x.fail("template %s: argument %d does not satisfy concept %q", ts.Name, i, rec.Params[i].Constraint)
				return
			}
		}
		args = append(args, arg)
	}
	inst, ok, err := x.engine.Instantiate(ts.Name, args, x.reg, x.subst)
	if err != nil {
		x.fail("instantiating %s: %w", ts.Name, err)
		return
	}
	if !ok {
		return // dependent argument tuple: deferred until a concrete use resolves it
	}
	if !x.seen[inst.MangledName] {
		x.seen[inst.MangledName] = true
		// The spliced declaration carries the mangled name so it matches
		// the rewritten references.
		switch b := inst.Body.(type) {
		case *ast.StructDecl:
			b.Name = inst.MangledName
		case *ast.FunctionDecl:
			b.Name = inst.MangledName
		case *ast.VarDecl:
			b.Name = inst.MangledName
		case *ast.AliasDecl:
			b.Name = inst.MangledName
		}
		x.newDecls = append(x.newDecls, inst.Body)
		// The splice target is itself a fresh AST: walk it too, in case
		// this template's body references another template.
		x.walkDecl(inst.Body)
	}
	ts.Name = inst.MangledName
	ts.TemplateArgs = nil
}

// resolveArg turns one parsed template-argument expression into a
// types.TemplateArgument: a type argument (an *ast.Ident/*ast.CastExpr
// naming a builtin or already-resolved struct/enum) or a non-type
// argument (an integer or bool literal, or the negation of one).
// pkg/consteval is not used: any other expression, such as a reference
// to a const variable or sizeof, is not resolved.
func (x *expander) resolveArg(e ast.Expr) (types.TemplateArgument, bool) {
	switch n := e.(type) {
	case *ast.Ident:
		return x.resolveTypeArg(n.Name, nil)
	case *ast.CastExpr:
		if n.Kind == ast.CStyleCast && n.Type != nil {
			return x.resolveTypeArg(n.Type.Name, n.Type)
		}
	case *ast.NumericLit:
		return types.TemplateArgument{Kind: types.NonTypeArg, IntValue: n.IntVal}, true
	case *ast.BoolLit:
		v := int64(0)
		if n.Value {
			v = 1
		}
		return types.TemplateArgument{Kind: types.NonTypeArg, IntValue: v}, true
	case *ast.UnaryExpr:
		if n.Op == ast.UnaryNeg {
			if inner, ok := x.resolveArg(n.Operand); ok && inner.Kind == types.NonTypeArg {
				inner.IntValue = -inner.IntValue
				return inner, true
			}
		}
	}
	return types.TemplateArgument{}, false
}

var builtinKindByName = map[string]types.BaseKind{
	"void": types.Void, "bool": types.Bool, "char": types.Char,
	"unsigned char": types.UChar, "short": types.Short, "unsigned short": types.UShort,
	"int": types.Int, "unsigned int": types.UInt, "long": types.Long,
	"unsigned long": types.ULong, "long long": types.LongLong,
	"unsigned long long": types.ULongLong, "float": types.Float,
	"double": types.Double, "long double": types.LongDouble,
}

func (x *expander) resolveTypeArg(name string, ts *ast.TypeSpec) (types.TemplateArgument, bool) {
	arg := types.TemplateArgument{Kind: types.TypeArg}
	if ts != nil {
		arg.PointerDepth = ts.PointerDepth
		if ts.Ref == ast.LValueRefKind {
			arg.Ref = types.LValueRef
		} else if ts.Ref == ast.RValueRefKind {
			arg.Ref = types.RValueRef
		}
	}
	if kind, ok := builtinKindByName[name]; ok {
		arg.BaseKind = kind
		return arg, true
	}
	handle := x.strs.Intern(name)
	if d, ok := x.reg.Find(handle); ok {
		arg.BaseKind = d.Kind
		arg.TypeIndex = d.Index
		return arg, true
	}
	return types.TemplateArgument{}, false // not yet a known concrete type: treat as dependent
}

// ---- AST traversal ----
//
// walkDecl/walkStmt/walkExpr visit every TypeSpec and template-id Ident
// reachable from a declaration so a template-id buried in a parameter
// type, a cast, a sizeof, or a nested expression is found regardless of
// where grammar lets one appear.

func (x *expander) walkDecl(d ast.Decl) {
	switch n := d.(type) {
	case *ast.VarDecl:
		x.walkType(n.Type)
		x.walkExpr(n.Init)
	case *ast.FunctionDecl:
		x.walkType(n.ReturnType)
		for i := range n.Params {
			x.walkType(n.Params[i].Type)
		}
		for _, mi := range n.MemberInits {
			for _, a := range mi.Args {
				x.walkExpr(a)
			}
		}
		x.walkStmt(n.Body)
	case *ast.StructDecl:
		for _, m := range n.Members {
			x.walkDecl(m)
		}
	case *ast.EnumDecl:
		x.walkType(n.Underlying)
		for _, c := range n.Constants {
			x.walkExpr(c.Value)
		}
	case *ast.AliasDecl:
		x.walkType(n.Type)
	case *ast.NamespaceDecl:
		for _, nd := range n.Decls {
			x.walkDecl(nd)
		}
	case *ast.TemplateDecl:
		// A template's own body is only walked once it is instantiated
		// (tryInstantiate walks inst.Body); walking it here too would
		// chase dependent names that aren't concrete types yet.
	}
}

func (x *expander) walkStmt(s ast.Stmt) {
	switch n := s.(type) {
	case nil:
	case *ast.Block:
		for _, st := range n.Stmts {
			x.walkStmt(st)
		}
	case *ast.DeclStmt:
		x.walkDecl(n.Decl)
	case *ast.ExprStmt:
		x.walkExpr(n.Expr)
	case *ast.IfStmt:
		x.walkExpr(n.Cond)
		x.walkStmt(n.Then)
		x.walkStmt(n.Else)
	case *ast.ForStmt:
		x.walkStmt(n.Init)
		x.walkExpr(n.Cond)
		x.walkExpr(n.Post)
		x.walkStmt(n.Body)
	case *ast.WhileStmt:
		x.walkExpr(n.Cond)
		x.walkStmt(n.Body)
	case *ast.DoStmt:
		x.walkStmt(n.Body)
		x.walkExpr(n.Cond)
	case *ast.SwitchStmt:
		x.walkExpr(n.Tag)
		x.walkStmt(n.Body)
	case *ast.CaseStmt:
		x.walkExpr(n.Value)
	case *ast.ReturnStmt:
		x.walkExpr(n.Value)
	case *ast.LabelStmt:
		x.walkStmt(n.Stmt)
	case *ast.TryStmt:
		x.walkStmt(n.Body)
		for _, h := range n.Handlers {
			x.walkType(h.Type)
			x.walkStmt(h.Body)
		}
	case *ast.ThrowStmt:
		x.walkExpr(n.Value)
	case *ast.SehTryStmt:
		x.walkStmt(n.Body)
		x.walkExpr(n.Filter)
		x.walkStmt(n.Except)
		x.walkStmt(n.Finally)
	}
}

func (x *expander) walkExpr(e ast.Expr) {
	switch n := e.(type) {
	case nil:
	case *ast.Ident:
		for _, a := range n.TemplateArgs {
			x.walkExpr(a)
		}
		if n.TemplateArgs != nil {
			// A bare template-id used as a value expression, e.g.
			// `make<int>()`: resolved the same way a type reference is,
			// via a synthetic TypeSpec, then the mangled name copied
			// back onto the Ident.
			ts := &ast.TypeSpec{Name: n.Name, TemplateArgs: n.TemplateArgs}
			x.tryInstantiate(ts)
			n.Name = ts.Name
			n.TemplateArgs = ts.TemplateArgs
		}
	case *ast.UnaryExpr:
		x.walkExpr(n.Operand)
	case *ast.PostfixExpr:
		x.walkExpr(n.Operand)
	case *ast.BinaryExpr:
		x.walkExpr(n.Left)
		x.walkExpr(n.Right)
	case *ast.TernaryExpr:
		x.walkExpr(n.Cond)
		x.walkExpr(n.Then)
		x.walkExpr(n.Else)
	case *ast.MemberExpr:
		x.walkExpr(n.Base)
	case *ast.PointerToMemberExpr:
		x.walkExpr(n.Base)
		x.walkExpr(n.Member)
	case *ast.IndexExpr:
		x.walkExpr(n.Base)
		x.walkExpr(n.Index)
	case *ast.CallExpr:
		x.walkExpr(n.Callee)
		for _, a := range n.Args {
			x.walkExpr(a)
		}
	case *ast.MemberCallExpr:
		x.walkExpr(n.Base)
		for _, a := range n.Args {
			x.walkExpr(a)
		}
	case *ast.ConstructorCallExpr:
		x.walkType(n.Type)
		for _, a := range n.Args {
			x.walkExpr(a)
		}
	case *ast.CastExpr:
		x.walkType(n.Type)
		x.walkExpr(n.Operand)
	case *ast.SizeofExpr:
		x.walkType(n.Type)
		x.walkExpr(n.Expr)
	case *ast.LambdaExpr:
		x.walkType(n.ReturnType)
		for i := range n.Params {
			x.walkType(n.Params[i].Type)
		}
		x.walkStmt(n.Body)
	}
}

// walkType visits ts's own template-id (if any) plus every type nested
// inside its template-argument list, then rewrites ts in place.
func (x *expander) walkType(ts *ast.TypeSpec) {
	if ts == nil {
		return
	}
	for _, a := range ts.TemplateArgs {
		switch arg := a.(type) {
		case *ast.Ident:
			x.walkExpr(arg)
		case *ast.CastExpr:
			x.walkType(arg.Type)
		default:
			x.walkExpr(a)
		}
	}
	x.tryInstantiate(ts)
	if ts.Qualifier != nil {
		x.walkType(ts.Qualifier)
	}
}
