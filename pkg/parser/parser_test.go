package parser

import (
	"testing"

	"github.com/cppc-project/cppc/pkg/ast"
	"github.com/cppc-project/cppc/pkg/lexer"
)

func parseOneDecl(t *testing.T, src string) ast.Decl {
	t.Helper()
	toks := lexer.Tokenize(src, 0)
	s := lexer.NewStream(toks)
	prog, p := Parse(s)
	if len(p.Errors()) > 0 {
		t.Fatalf("parser errors for %q: %v", src, p.Errors())
	}
	if len(prog.Decls) != 1 {
		t.Fatalf("expected exactly one top-level decl for %q, got %d", src, len(prog.Decls))
	}
	return prog.Decls[0]
}

func mustFunc(t *testing.T, d ast.Decl) *ast.FunctionDecl {
	t.Helper()
	fn, ok := d.(*ast.FunctionDecl)
	if !ok {
		t.Fatalf("expected *ast.FunctionDecl, got %T", d)
	}
	return fn
}

func TestEmptyFunction(t *testing.T) {
	fn := mustFunc(t, parseOneDecl(t, `int main() {}`))
	if fn.Name != "main" {
		t.Errorf("expected name %q, got %q", "main", fn.Name)
	}
	if fn.ReturnType == nil || fn.ReturnType.Name != "int" {
		t.Errorf("expected return type %q, got %v", "int", fn.ReturnType)
	}
	if fn.Body == nil || len(fn.Body.Stmts) != 0 {
		t.Errorf("expected an empty body, got %v", fn.Body)
	}
}

func TestReturnStatement(t *testing.T) {
	fn := mustFunc(t, parseOneDecl(t, `int f() { return 42; }`))
	if len(fn.Body.Stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(fn.Body.Stmts))
	}
	ret, ok := fn.Body.Stmts[0].(*ast.ReturnStmt)
	if !ok {
		t.Fatalf("expected *ast.ReturnStmt, got %T", fn.Body.Stmts[0])
	}
	lit, ok := ret.Value.(*ast.NumericLit)
	if !ok {
		t.Fatalf("expected *ast.NumericLit, got %T", ret.Value)
	}
	if lit.IntVal != 42 {
		t.Errorf("expected value 42, got %d", lit.IntVal)
	}
}

func TestBinaryExpressions(t *testing.T) {
	tests := []struct {
		input    string
		leftVal  int64
		op       ast.BinaryOp
		rightVal int64
	}{
		{"int f() { return 1 + 2; }", 1, ast.OpAdd, 2},
		{"int f() { return 5 - 3; }", 5, ast.OpSub, 3},
		{"int f() { return 2 * 3; }", 2, ast.OpMul, 3},
		{"int f() { return 6 / 2; }", 6, ast.OpDiv, 2},
		{"int f() { return 7 % 3; }", 7, ast.OpMod, 3},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			fn := mustFunc(t, parseOneDecl(t, tt.input))
			ret := fn.Body.Stmts[0].(*ast.ReturnStmt)
			bin, ok := ret.Value.(*ast.BinaryExpr)
			if !ok {
				t.Fatalf("expected *ast.BinaryExpr, got %T", ret.Value)
			}
			if bin.Op != tt.op {
				t.Errorf("wrong op: expected %v, got %v", tt.op, bin.Op)
			}
			left := bin.Left.(*ast.NumericLit)
			if left.IntVal != tt.leftVal {
				t.Errorf("wrong left value: expected %d, got %d", tt.leftVal, left.IntVal)
			}
			right := bin.Right.(*ast.NumericLit)
			if right.IntVal != tt.rightVal {
				t.Errorf("wrong right value: expected %d, got %d", tt.rightVal, right.IntVal)
			}
		})
	}
}

func TestOperatorPrecedence(t *testing.T) {
	tests := []struct {
		input    string
		wantKind ast.BinaryOp // the root binary op once parsed
	}{
		{"int f() { return 1 + 2 * 3; }", ast.OpAdd},
		{"int f() { return 2 * 3 + 4; }", ast.OpAdd},
		{"int f() { return (1 + 2) * 3; }", ast.OpMul},
		{"int f() { return 1 - 2 - 3; }", ast.OpSub},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			fn := mustFunc(t, parseOneDecl(t, tt.input))
			ret := fn.Body.Stmts[0].(*ast.ReturnStmt)
			bin, ok := ret.Value.(*ast.BinaryExpr)
			if !ok {
				t.Fatalf("expected a root *ast.BinaryExpr, got %T", ret.Value)
			}
			if bin.Op != tt.wantKind {
				t.Errorf("wrong root op: expected %v, got %v", tt.wantKind, bin.Op)
			}
		})
	}

	// Left associativity: `1 - 2 - 3` must parse as `(1 - 2) - 3`, so the
	// root's Left operand is itself a BinaryExpr, not a literal.
	fn := mustFunc(t, parseOneDecl(t, `int f() { return 1 - 2 - 3; }`))
	ret := fn.Body.Stmts[0].(*ast.ReturnStmt)
	root := ret.Value.(*ast.BinaryExpr)
	if _, ok := root.Left.(*ast.BinaryExpr); !ok {
		t.Fatalf("expected left-associative nesting, got Left=%T", root.Left)
	}
	if _, ok := root.Right.(*ast.NumericLit); !ok {
		t.Fatalf("expected a literal on the right of the outer subtraction, got %T", root.Right)
	}
}

func TestUnaryExpressions(t *testing.T) {
	tests := []struct {
		input    string
		op       ast.UnaryOp
		innerVal int64
	}{
		{"int f() { return -5; }", ast.UnaryNeg, 5},
		{"int f() { return !0; }", ast.UnaryNot, 0},
		{"int f() { return ~1; }", ast.UnaryBitNot, 1},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			fn := mustFunc(t, parseOneDecl(t, tt.input))
			ret := fn.Body.Stmts[0].(*ast.ReturnStmt)
			un, ok := ret.Value.(*ast.UnaryExpr)
			if !ok {
				t.Fatalf("expected *ast.UnaryExpr, got %T", ret.Value)
			}
			if un.Op != tt.op {
				t.Errorf("wrong op: expected %v, got %v", tt.op, un.Op)
			}
			lit := un.Operand.(*ast.NumericLit)
			if lit.IntVal != tt.innerVal {
				t.Errorf("wrong inner value: expected %d, got %d", tt.innerVal, lit.IntVal)
			}
		})
	}
}

func TestVariableExpressions(t *testing.T) {
	fn := mustFunc(t, parseOneDecl(t, `int f() { return x; }`))
	ret := fn.Body.Stmts[0].(*ast.ReturnStmt)
	id, ok := ret.Value.(*ast.Ident)
	if !ok {
		t.Fatalf("expected *ast.Ident, got %T", ret.Value)
	}
	if id.Name != "x" {
		t.Errorf("expected name %q, got %q", "x", id.Name)
	}
}

func TestIfStatement(t *testing.T) {
	fn := mustFunc(t, parseOneDecl(t, `int f() { if (x) return 1; else return 2; }`))
	st, ok := fn.Body.Stmts[0].(*ast.IfStmt)
	if !ok {
		t.Fatalf("expected *ast.IfStmt, got %T", fn.Body.Stmts[0])
	}
	if _, ok := st.Cond.(*ast.Ident); !ok {
		t.Errorf("expected condition to be an *ast.Ident, got %T", st.Cond)
	}
	if _, ok := st.Then.(*ast.ReturnStmt); !ok {
		t.Errorf("expected then-branch to be a *ast.ReturnStmt, got %T", st.Then)
	}
	if st.Else == nil {
		t.Fatal("expected an else branch")
	}
	if _, ok := st.Else.(*ast.ReturnStmt); !ok {
		t.Errorf("expected else-branch to be a *ast.ReturnStmt, got %T", st.Else)
	}
}

func TestWhileStatement(t *testing.T) {
	fn := mustFunc(t, parseOneDecl(t, `int f() { while (x) x = x - 1; }`))
	st, ok := fn.Body.Stmts[0].(*ast.WhileStmt)
	if !ok {
		t.Fatalf("expected *ast.WhileStmt, got %T", fn.Body.Stmts[0])
	}
	if _, ok := st.Body.(*ast.ExprStmt); !ok {
		t.Errorf("expected body to be a *ast.ExprStmt, got %T", st.Body)
	}
}

func TestForStatement(t *testing.T) {
	fn := mustFunc(t, parseOneDecl(t, `int f() { for (int i = 0; i < 10; i = i + 1) {} }`))
	st, ok := fn.Body.Stmts[0].(*ast.ForStmt)
	if !ok {
		t.Fatalf("expected *ast.ForStmt, got %T", fn.Body.Stmts[0])
	}
	initDecl, ok := st.Init.(*ast.DeclStmt)
	if !ok {
		t.Fatalf("expected init to be a *ast.DeclStmt, got %T", st.Init)
	}
	vd, ok := initDecl.Decl.(*ast.VarDecl)
	if !ok {
		t.Fatalf("expected init declaration to be a *ast.VarDecl, got %T", initDecl.Decl)
	}
	if vd.Name != "i" {
		t.Errorf("expected loop variable %q, got %q", "i", vd.Name)
	}
	if st.Cond == nil || st.Post == nil {
		t.Fatal("expected both a condition and a post-expression")
	}
}

func TestSwitchStatement(t *testing.T) {
	fn := mustFunc(t, parseOneDecl(t, `int f() { switch (x) { case 1: break; default: break; } }`))
	st, ok := fn.Body.Stmts[0].(*ast.SwitchStmt)
	if !ok {
		t.Fatalf("expected *ast.SwitchStmt, got %T", fn.Body.Stmts[0])
	}
	body, ok := st.Body.(*ast.Block)
	if !ok {
		t.Fatalf("expected switch body to be a *ast.Block, got %T", st.Body)
	}
	if len(body.Stmts) < 2 {
		t.Fatalf("expected at least a case and a default arm, got %d statements", len(body.Stmts))
	}
	caseStmt, ok := body.Stmts[0].(*ast.CaseStmt)
	if !ok {
		t.Fatalf("expected first arm to be a *ast.CaseStmt, got %T", body.Stmts[0])
	}
	if caseStmt.Value == nil {
		t.Error("expected the case arm to carry a value")
	}
}

func TestTryCatchStatement(t *testing.T) {
	fn := mustFunc(t, parseOneDecl(t, `int f() { try { throw 1; } catch (int e) {} catch (...) {} }`))
	st, ok := fn.Body.Stmts[0].(*ast.TryStmt)
	if !ok {
		t.Fatalf("expected *ast.TryStmt, got %T", fn.Body.Stmts[0])
	}
	if len(st.Handlers) != 2 {
		t.Fatalf("expected 2 catch handlers, got %d", len(st.Handlers))
	}
	if st.Handlers[0].Type == nil || st.Handlers[0].Type.Name != "int" || st.Handlers[0].Name != "e" {
		t.Errorf("expected first handler to catch (int e), got %+v", st.Handlers[0])
	}
	if !st.Handlers[1].CatchAll {
		t.Error("expected second handler to be catch(...)")
	}
	if len(st.Body.Stmts) != 1 {
		t.Fatalf("expected 1 statement in try body, got %d", len(st.Body.Stmts))
	}
	if _, ok := st.Body.Stmts[0].(*ast.ThrowStmt); !ok {
		t.Errorf("expected a *ast.ThrowStmt in the try body, got %T", st.Body.Stmts[0])
	}
}

func TestSehTryExceptStatement(t *testing.T) {
	fn := mustFunc(t, parseOneDecl(t, `int f() { __try { x = 1; } __except(1) { x = 2; } }`))
	st, ok := fn.Body.Stmts[0].(*ast.SehTryStmt)
	if !ok {
		t.Fatalf("expected *ast.SehTryStmt, got %T", fn.Body.Stmts[0])
	}
	if st.Filter == nil {
		t.Error("expected a filter expression")
	}
	if st.Except == nil {
		t.Error("expected an __except block")
	}
	if st.Finally != nil {
		t.Error("expected no __finally block")
	}
}

func TestStructDeclaration(t *testing.T) {
	d := parseOneDecl(t, `struct Point { int x; int y; };`)
	sd, ok := d.(*ast.StructDecl)
	if !ok {
		t.Fatalf("expected *ast.StructDecl, got %T", d)
	}
	if sd.Name != "Point" {
		t.Errorf("expected name %q, got %q", "Point", sd.Name)
	}
	if len(sd.Members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(sd.Members))
	}
	for i, name := range []string{"x", "y"} {
		vd, ok := sd.Members[i].(*ast.VarDecl)
		if !ok {
			t.Fatalf("expected member %d to be a *ast.VarDecl, got %T", i, sd.Members[i])
		}
		if vd.Name != name {
			t.Errorf("expected member %d name %q, got %q", i, name, vd.Name)
		}
	}
}

func TestStructWithBaseAndAccessSpecifiers(t *testing.T) {
	d := parseOneDecl(t, `class Derived : public Base { public: int pub; private: int priv; };`)
	sd, ok := d.(*ast.StructDecl)
	if !ok {
		t.Fatalf("expected *ast.StructDecl, got %T", d)
	}
	if !sd.IsClass {
		t.Error("expected IsClass to be set for a `class` declaration")
	}
	if len(sd.Bases) != 1 || sd.Bases[0].Name != "Base" || sd.Bases[0].Access != ast.AccessPublic {
		t.Errorf("expected one public base named Base, got %+v", sd.Bases)
	}
	if sd.Access["pub"] != ast.AccessPublic {
		t.Errorf("expected pub to be public, got %v", sd.Access["pub"])
	}
	if sd.Access["priv"] != ast.AccessPrivate {
		t.Errorf("expected priv to be private, got %v", sd.Access["priv"])
	}
}

func TestEnumDeclaration(t *testing.T) {
	d := parseOneDecl(t, `enum class Color : int { Red, Green, Blue = 5 };`)
	ed, ok := d.(*ast.EnumDecl)
	if !ok {
		t.Fatalf("expected *ast.EnumDecl, got %T", d)
	}
	if !ed.IsScoped {
		t.Error("expected IsScoped for `enum class`")
	}
	if ed.Underlying == nil || ed.Underlying.Name != "int" {
		t.Errorf("expected underlying type int, got %v", ed.Underlying)
	}
	if len(ed.Constants) != 3 {
		t.Fatalf("expected 3 constants, got %d", len(ed.Constants))
	}
	if ed.Constants[2].Name != "Blue" || ed.Constants[2].Value == nil {
		t.Errorf("expected Blue = 5, got %+v", ed.Constants[2])
	}
}

func TestNamespaceDeclaration(t *testing.T) {
	toks := lexer.Tokenize(`namespace foo { int x; struct S {}; }`, 0)
	s := lexer.NewStream(toks)
	prog, p := Parse(s)
	if len(p.Errors()) > 0 {
		t.Fatalf("parser errors: %v", p.Errors())
	}
	if len(prog.Decls) != 1 {
		t.Fatalf("expected 1 top-level decl, got %d", len(prog.Decls))
	}
	ns, ok := prog.Decls[0].(*ast.NamespaceDecl)
	if !ok {
		t.Fatalf("expected *ast.NamespaceDecl, got %T", prog.Decls[0])
	}
	if ns.Name != "foo" {
		t.Errorf("expected namespace name %q, got %q", "foo", ns.Name)
	}
	if len(ns.Decls) != 2 {
		t.Fatalf("expected 2 nested decls, got %d", len(ns.Decls))
	}
}

func TestTemplateClassDeclarationRegistersWithEngine(t *testing.T) {
	toks := lexer.Tokenize(`template<typename T> struct Box { T value; };`, 0)
	s := lexer.NewStream(toks)
	prog, p := Parse(s)
	if len(p.Errors()) > 0 {
		t.Fatalf("parser errors: %v", p.Errors())
	}
	if len(prog.Decls) != 1 {
		t.Fatalf("expected 1 top-level decl, got %d", len(prog.Decls))
	}
	td, ok := prog.Decls[0].(*ast.TemplateDecl)
	if !ok {
		t.Fatalf("expected *ast.TemplateDecl, got %T", prog.Decls[0])
	}
	if len(td.Params) != 1 || td.Params[0].Name != "T" || !td.Params[0].IsTypeParam {
		t.Fatalf("expected a single type parameter named T, got %+v", td.Params)
	}
	if _, ok := p.Engine().Lookup("Box"); !ok {
		t.Fatal("expected the template engine to have Box registered")
	}
}

func TestConceptDeclaration(t *testing.T) {
	d := parseOneDecl(t, `concept Integral = integral;`)
	cd, ok := d.(*ast.ConceptDecl)
	if !ok {
		t.Fatalf("expected *ast.ConceptDecl, got %T", d)
	}
	if cd.Name != "Integral" {
		t.Errorf("expected name %q, got %q", "Integral", cd.Name)
	}
	if _, ok := cd.Requirement.(*ast.Ident); !ok {
		t.Errorf("expected requirement to be a bare concept-name reference, got %T", cd.Requirement)
	}
}

func TestMemberAccess(t *testing.T) {
	tests := []struct {
		input string
		arrow bool
	}{
		{"int f() { return a.b; }", false},
		{"int f() { return a->b; }", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			fn := mustFunc(t, parseOneDecl(t, tt.input))
			ret := fn.Body.Stmts[0].(*ast.ReturnStmt)
			m, ok := ret.Value.(*ast.MemberExpr)
			if !ok {
				t.Fatalf("expected *ast.MemberExpr, got %T", ret.Value)
			}
			if m.Name != "b" {
				t.Errorf("expected member name %q, got %q", "b", m.Name)
			}
			if m.Arrow != tt.arrow {
				t.Errorf("expected Arrow=%v, got %v", tt.arrow, m.Arrow)
			}
		})
	}
}

func TestFunctionCall(t *testing.T) {
	fn := mustFunc(t, parseOneDecl(t, `int f() { return g(1, 2); }`))
	ret := fn.Body.Stmts[0].(*ast.ReturnStmt)
	call, ok := ret.Value.(*ast.CallExpr)
	if !ok {
		t.Fatalf("expected *ast.CallExpr, got %T", ret.Value)
	}
	callee, ok := call.Callee.(*ast.Ident)
	if !ok || callee.Name != "g" {
		t.Fatalf("expected callee to be identifier %q, got %v", "g", call.Callee)
	}
	if len(call.Args) != 2 {
		t.Fatalf("expected 2 arguments, got %d", len(call.Args))
	}
}

func TestTemplateIdArgumentParsesAsTemplateArgs(t *testing.T) {
	src := `template<typename T> struct Box { T value; };
int f() { Box<int> b; return 0; }`
	toks := lexer.Tokenize(src, 0)
	s := lexer.NewStream(toks)
	prog, p := Parse(s)
	if len(p.Errors()) > 0 {
		t.Fatalf("parser errors: %v", p.Errors())
	}
	if len(prog.Decls) != 2 {
		t.Fatalf("expected 2 top-level decls, got %d", len(prog.Decls))
	}
	fn := mustFunc(t, prog.Decls[1])
	if len(fn.Body.Stmts) < 1 {
		t.Fatal("expected at least one statement")
	}
	declStmt, ok := fn.Body.Stmts[0].(*ast.DeclStmt)
	if !ok {
		t.Fatalf("expected *ast.DeclStmt, got %T", fn.Body.Stmts[0])
	}
	vd, ok := declStmt.Decl.(*ast.VarDecl)
	if !ok {
		t.Fatalf("expected *ast.VarDecl, got %T", declStmt.Decl)
	}
	if vd.Type.Name != "Box" {
		t.Errorf("expected type name %q, got %q", "Box", vd.Type.Name)
	}
	if len(vd.Type.TemplateArgs) != 1 {
		t.Fatalf("expected 1 template argument, got %d", len(vd.Type.TemplateArgs))
	}
}
