package symtab

import (
	"testing"

	"github.com/cppc-project/cppc/pkg/ast"
	"github.com/cppc-project/cppc/pkg/intern"
)

func TestOverloadsCoexist(t *testing.T) {
	strs := intern.NewTable()
	tab := New(strs)
	name := strs.Intern("f")

	if err := tab.Declare(name, &ast.FunctionDecl{Name: "f"}); err != nil {
		t.Fatalf("first declare: %v", err)
	}
	if err := tab.Declare(name, &ast.FunctionDecl{Name: "f"}); err != nil {
		t.Fatalf("overload declare should not error: %v", err)
	}
	decls, ok := tab.Lookup(name)
	if !ok || len(decls) != 2 {
		t.Fatalf("expected 2 overloads, got %d (ok=%v)", len(decls), ok)
	}
}

func TestNonFunctionRedefinitionErrors(t *testing.T) {
	strs := intern.NewTable()
	tab := New(strs)
	name := strs.Intern("x")
	if err := tab.Declare(name, &ast.VarDecl{Name: "x"}); err != nil {
		t.Fatalf("first declare: %v", err)
	}
	if err := tab.Declare(name, &ast.VarDecl{Name: "x"}); err == nil {
		t.Fatalf("expected redefinition error")
	}
}

func TestScopeGuardClosesOnExit(t *testing.T) {
	strs := intern.NewTable()
	tab := New(strs)
	name := strs.Intern("local")

	func() {
		g := tab.OpenScope(Block)
		defer g.Close()
		tab.Declare(name, &ast.VarDecl{Name: "local"})
		if _, ok := tab.Lookup(name); !ok {
			t.Fatalf("local should be visible inside its scope")
		}
	}()

	if _, ok := tab.Lookup(name); ok {
		t.Fatalf("local should not be visible after its scope closed")
	}
}

func TestLookupWalksOuterScopes(t *testing.T) {
	strs := intern.NewTable()
	tab := New(strs)
	outer := strs.Intern("g")
	tab.Declare(outer, &ast.VarDecl{Name: "g"})

	g := tab.OpenScope(Block)
	defer g.Close()
	if _, ok := tab.Lookup(outer); !ok {
		t.Fatalf("inner scope should see outer declarations")
	}
}

func TestTemplateParamRecognition(t *testing.T) {
	strs := intern.NewTable()
	tab := New(strs)
	tab.PushTemplateParams([]string{"T", "N"})
	if !tab.IsTemplateParam("T") {
		t.Fatalf("T should be recognized as a template parameter")
	}
	tab.PopTemplateParams()
	if tab.IsTemplateParam("T") {
		t.Fatalf("T should not be a template parameter after pop")
	}
}
