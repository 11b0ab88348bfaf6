package ast

import (
	"testing"

	"github.com/cppc-project/cppc/pkg/lexer"
)

func TestNodeCarriesOriginatingToken(t *testing.T) {
	tok := lexer.Token{Kind: lexer.Identifier, Literal: "x", Pos: lexer.Pos{Line: 3, Column: 5}}
	var n Node = &Ident{base: base{Token: tok}, Name: "x"}
	if n.Tok() != tok {
		t.Fatalf("Tok() = %+v, want %+v", n.Tok(), tok)
	}
}

func TestExprAndStmtAreDistinctSumsWithSharedBase(t *testing.T) {
	var exprs []Expr = []Expr{
		&NumericLit{}, &BoolLit{}, &StringLit{}, &NullptrLit{}, &Ident{},
		&QualifiedIdent{}, &UnaryExpr{}, &PostfixExpr{}, &BinaryExpr{},
		&TernaryExpr{}, &MemberExpr{}, &PointerToMemberExpr{}, &IndexExpr{},
		&CallExpr{}, &MemberCallExpr{}, &ConstructorCallExpr{}, &CastExpr{},
		&SizeofExpr{}, &LambdaExpr{},
	}
	for _, e := range exprs {
		_ = e.Tok() // must not panic: every variant embeds base
	}

	var stmts []Stmt = []Stmt{
		&Block{}, &DeclStmt{}, &ExprStmt{}, &IfStmt{}, &ForStmt{}, &WhileStmt{},
		&DoStmt{}, &SwitchStmt{}, &CaseStmt{}, &ReturnStmt{}, &BreakStmt{},
		&ContinueStmt{}, &GotoStmt{}, &LabelStmt{}, &TryStmt{}, &ThrowStmt{},
		&SehTryStmt{}, &SehLeaveStmt{},
	}
	for _, s := range stmts {
		_ = s.Tok()
	}
}

func TestDeclVariantsImplementDecl(t *testing.T) {
	var decls []Decl = []Decl{
		&VarDecl{}, &FunctionDecl{}, &StructDecl{}, &EnumDecl{},
		&TemplateDecl{}, &AliasDecl{}, &ConceptDecl{}, &NamespaceDecl{},
	}
	for _, d := range decls {
		_ = d.Tok()
	}
}
