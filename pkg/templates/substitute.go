package templates

import (
	"strconv"

	"github.com/cppc-project/cppc/pkg/ast"
	"github.com/cppc-project/cppc/pkg/intern"
)

// Substitutor performs the AST-level substitution step of template
// instantiation: it deep-copies a template's body
// and rewrites every occurrence of a template-parameter name into the
// bound argument's text. A type parameter `T` rewrites every
// `*ast.TypeSpec` whose Name is `T`; a non-type parameter `N` rewrites
// every bare `*ast.Ident` named `N` used in expression position into the
// literal numeric value it was bound to.
type Substitutor struct {
	strs *intern.Table
}

// NewSubstitutor returns a substitutor backed by the translation unit's
// string interner (needed to name freshly materialized descriptors).
func NewSubstitutor(strs *intern.Table) *Substitutor {
	return &Substitutor{strs: strs}
}

// Substitute returns a deep copy of decl with bindings applied.
// Unrecognized declaration kinds are returned unchanged: a template body
// that is not a StructDecl/FunctionDecl/VarDecl/AliasDecl never reaches
// this engine.
func (s *Substitutor) Substitute(decl ast.Decl, bindings map[string]string) ast.Decl {
	switch d := decl.(type) {
	case *ast.StructDecl:
		return s.substStruct(d, bindings)
	case *ast.FunctionDecl:
		return s.substFunc(d, bindings)
	case *ast.VarDecl:
		return s.substVar(d, bindings)
	case *ast.AliasDecl:
		cp := *d
		cp.Type = s.substType(d.Type, bindings)
		return &cp
	default:
		return decl
	}
}

func (s *Substitutor) substStruct(d *ast.StructDecl, b map[string]string) *ast.StructDecl {
	cp := *d
	cp.Bases = append([]ast.BaseSpec(nil), d.Bases...)
	for i, base := range cp.Bases {
		if repl, ok := b[base.Name]; ok {
			cp.Bases[i].Name = repl
		}
	}
	cp.Members = make([]ast.Decl, len(d.Members))
	for i, m := range d.Members {
		cp.Members[i] = s.Substitute(m, b)
	}
	return &cp
}

func (s *Substitutor) substFunc(d *ast.FunctionDecl, b map[string]string) *ast.FunctionDecl {
	cp := *d
	cp.ReturnType = s.substType(d.ReturnType, b)
	cp.Params = make([]ast.Param, len(d.Params))
	for i, p := range d.Params {
		cp.Params[i] = ast.Param{Name: p.Name, Type: s.substType(p.Type, b)}
	}
	if d.Body != nil {
		cp.Body = s.substBlock(d.Body, b)
	}
	return &cp
}

func (s *Substitutor) substVar(d *ast.VarDecl, b map[string]string) *ast.VarDecl {
	cp := *d
	cp.Type = s.substType(d.Type, b)
	cp.Init = s.substExpr(d.Init, b)
	return &cp
}

func (s *Substitutor) substType(t *ast.TypeSpec, b map[string]string) *ast.TypeSpec {
	if t == nil {
		return nil
	}
	cp := *t
	if repl, ok := b[t.Name]; ok {
		cp.Name = repl
	}
	if t.TemplateArgs != nil {
		cp.TemplateArgs = make([]ast.Expr, len(t.TemplateArgs))
		for i, a := range t.TemplateArgs {
			cp.TemplateArgs[i] = s.substExpr(a, b)
		}
	}
	if t.ArrayDims != nil {
		cp.ArrayDims = make([]ast.Expr, len(t.ArrayDims))
		for i, d := range t.ArrayDims {
			cp.ArrayDims[i] = s.substExpr(d, b)
		}
	}
	cp.Qualifier = s.substType(t.Qualifier, b)
	return &cp
}

func (s *Substitutor) substBlock(blk *ast.Block, b map[string]string) *ast.Block {
	if blk == nil {
		return nil
	}
	cp := *blk
	cp.Stmts = make([]ast.Stmt, len(blk.Stmts))
	for i, st := range blk.Stmts {
		cp.Stmts[i] = s.substStmt(st, b)
	}
	return &cp
}

func (s *Substitutor) substStmt(st ast.Stmt, b map[string]string) ast.Stmt {
	switch n := st.(type) {
	case *ast.Block:
		return s.substBlock(n, b)
	case *ast.DeclStmt:
		cp := *n
		cp.Decl = s.Substitute(n.Decl, b)
		return &cp
	case *ast.ExprStmt:
		cp := *n
		cp.Expr = s.substExpr(n.Expr, b)
		return &cp
	case *ast.IfStmt:
		cp := *n
		cp.Cond = s.substExpr(n.Cond, b)
		cp.Then = s.substStmt(n.Then, b)
		if n.Else != nil {
			cp.Else = s.substStmt(n.Else, b)
		}
		return &cp
	case *ast.ForStmt:
		cp := *n
		if n.Init != nil {
			cp.Init = s.substStmt(n.Init, b)
		}
		cp.Cond = s.substExpr(n.Cond, b)
		cp.Post = s.substExpr(n.Post, b)
		cp.Body = s.substStmt(n.Body, b)
		return &cp
	case *ast.WhileStmt:
		cp := *n
		cp.Cond = s.substExpr(n.Cond, b)
		cp.Body = s.substStmt(n.Body, b)
		return &cp
	case *ast.DoStmt:
		cp := *n
		cp.Body = s.substStmt(n.Body, b)
		cp.Cond = s.substExpr(n.Cond, b)
		return &cp
	case *ast.SwitchStmt:
		cp := *n
		cp.Tag = s.substExpr(n.Tag, b)
		cp.Body = s.substStmt(n.Body, b)
		return &cp
	case *ast.CaseStmt:
		cp := *n
		cp.Value = s.substExpr(n.Value, b)
		return &cp
	case *ast.ReturnStmt:
		cp := *n
		cp.Value = s.substExpr(n.Value, b)
		return &cp
	case *ast.LabelStmt:
		cp := *n
		cp.Stmt = s.substStmt(n.Stmt, b)
		return &cp
	case *ast.TryStmt:
		cp := *n
		cp.Body = s.substBlock(n.Body, b)
		cp.Handlers = make([]ast.CatchHandler, len(n.Handlers))
		for i, h := range n.Handlers {
			cp.Handlers[i] = ast.CatchHandler{
				Type: s.substType(h.Type, b), Name: h.Name,
				Body: s.substBlock(h.Body, b), CatchAll: h.CatchAll,
			}
		}
		return &cp
	case *ast.ThrowStmt:
		cp := *n
		cp.Value = s.substExpr(n.Value, b)
		return &cp
	default:
		return st // BreakStmt, ContinueStmt, GotoStmt, SehLeaveStmt, SEH forms: no parameter-name surface
	}
}

func (s *Substitutor) substExpr(e ast.Expr, b map[string]string) ast.Expr {
	if e == nil {
		return nil
	}
	switch n := e.(type) {
	case *ast.Ident:
		if repl, ok := b[n.Name]; ok {
			if iv, err := strconv.ParseInt(repl, 10, 64); err == nil {
				return &ast.NumericLit{IntVal: iv}
			}
			cp := *n
			cp.Name = repl
			return &cp
		}
		return n
	case *ast.UnaryExpr:
		cp := *n
		cp.Operand = s.substExpr(n.Operand, b)
		return &cp
	case *ast.PostfixExpr:
		cp := *n
		cp.Operand = s.substExpr(n.Operand, b)
		return &cp
	case *ast.BinaryExpr:
		cp := *n
		cp.Left = s.substExpr(n.Left, b)
		cp.Right = s.substExpr(n.Right, b)
		return &cp
	case *ast.TernaryExpr:
		cp := *n
		cp.Cond = s.substExpr(n.Cond, b)
		cp.Then = s.substExpr(n.Then, b)
		cp.Else = s.substExpr(n.Else, b)
		return &cp
	case *ast.MemberExpr:
		cp := *n
		cp.Base = s.substExpr(n.Base, b)
		return &cp
	case *ast.IndexExpr:
		cp := *n
		cp.Base = s.substExpr(n.Base, b)
		cp.Index = s.substExpr(n.Index, b)
		return &cp
	case *ast.CallExpr:
		cp := *n
		cp.Callee = s.substExpr(n.Callee, b)
		cp.Args = substExprList(s, n.Args, b)
		return &cp
	case *ast.MemberCallExpr:
		cp := *n
		cp.Base = s.substExpr(n.Base, b)
		cp.Args = substExprList(s, n.Args, b)
		return &cp
	case *ast.ConstructorCallExpr:
		cp := *n
		cp.Type = s.substType(n.Type, b)
		cp.Args = substExprList(s, n.Args, b)
		return &cp
	case *ast.CastExpr:
		cp := *n
		cp.Type = s.substType(n.Type, b)
		cp.Operand = s.substExpr(n.Operand, b)
		return &cp
	case *ast.SizeofExpr:
		cp := *n
		cp.Type = s.substType(n.Type, b)
		cp.Expr = s.substExpr(n.Expr, b)
		return &cp
	default:
		return e // literals and forms with no parameter-name surface
	}
}

func substExprList(s *Substitutor, in []ast.Expr, b map[string]string) []ast.Expr {
	if in == nil {
		return nil
	}
	out := make([]ast.Expr, len(in))
	for i, e := range in {
		out[i] = s.substExpr(e, b)
	}
	return out
}
