package templates

import (
	"testing"

	"github.com/cppc-project/cppc/pkg/ast"
	"github.com/cppc-project/cppc/pkg/intern"
	"github.com/cppc-project/cppc/pkg/types"
)

func boxRecord() *Record {
	// template<typename T> struct Box { T value; };
	body := &ast.StructDecl{
		Name: "Box",
		Members: []ast.Decl{
			&ast.VarDecl{Name: "value", Type: &ast.TypeSpec{Name: "T"}},
		},
	}
	return &Record{
		Name:   "Box",
		Params: []*ast.TemplateParam{{Name: "T", IsTypeParam: true}},
		Body:   body,
	}
}

func intArg() types.TemplateArgument {
	return types.TemplateArgument{Kind: types.TypeArg, BaseKind: types.Int}
}

// TestInstantiationMemoizedAcrossCalls grounds : instantiating
// the same template with the same argument tuple twice returns the same
// descriptor pointer.
func TestInstantiationMemoizedAcrossCalls(t *testing.T) {
	strs := intern.NewTable()
	reg := types.NewRegistry(strs)
	sub := NewSubstitutor(strs)
	e := NewEngine(nil)
	e.Register(boxRecord())

	inst1, ok, err := e.Instantiate("Box", []types.TemplateArgument{intArg()}, reg, sub)
	if err != nil || !ok {
		t.Fatalf("Instantiate: ok=%v err=%v", ok, err)
	}
	inst2, ok, err := e.Instantiate("Box", []types.TemplateArgument{intArg()}, reg, sub)
	if err != nil || !ok {
		t.Fatalf("second Instantiate: ok=%v err=%v", ok, err)
	}
	if inst1 != inst2 {
		t.Fatalf("expected memoized instantiation to return the same *Instantiation")
	}
	if inst1.Descriptor != inst2.Descriptor {
		t.Fatalf("expected memoized instantiation to return the same descriptor pointer")
	}
}

// TestSubstitutionRewritesTypeParameter checks that the substituted body
// names the bound kind instead of the parameter placeholder.
func TestSubstitutionRewritesTypeParameter(t *testing.T) {
	strs := intern.NewTable()
	reg := types.NewRegistry(strs)
	sub := NewSubstitutor(strs)
	e := NewEngine(nil)
	e.Register(boxRecord())

	inst, _, err := e.Instantiate("Box", []types.TemplateArgument{intArg()}, reg, sub)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	sd, ok := inst.Body.(*ast.StructDecl)
	if !ok {
		t.Fatalf("expected substituted body to be a *ast.StructDecl, got %T", inst.Body)
	}
	field := sd.Members[0].(*ast.VarDecl)
	if field.Type.Name != "int" {
		t.Fatalf("expected member type substituted to %q, got %q", "int", field.Type.Name)
	}
	// The original record's body must be untouched (step 5
	// substitutes into a copy, never the template's own declaration).
	origField := boxRecord().Body.(*ast.StructDecl).Members[0].(*ast.VarDecl)
	if origField.Type.Name != "T" {
		t.Fatalf("original template body must not be mutated by substitution")
	}
}

// TestDependentArgumentDefersInstantiation grounds step 3:
// a dependent argument tuple must not materialize a descriptor.
func TestDependentArgumentDefersInstantiation(t *testing.T) {
	strs := intern.NewTable()
	reg := types.NewRegistry(strs)
	sub := NewSubstitutor(strs)
	e := NewEngine(nil)
	e.Register(boxRecord())

	dependent := types.TemplateArgument{Kind: types.DependentArg, Placeholder: strs.Intern("U")}
	inst, materialized, err := e.Instantiate("Box", []types.TemplateArgument{dependent}, reg, sub)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	if materialized || inst != nil {
		t.Fatalf("dependent argument tuple must defer, not materialize")
	}
}

// TestLazyMemberInstantiationRegistry grounds "Lazy
// member-instantiation registry": a template class's member function
// body is registered but only materialized on explicit request.
func TestLazyMemberInstantiationRegistry(t *testing.T) {
	strs := intern.NewTable()
	reg := types.NewRegistry(strs)
	sub := NewSubstitutor(strs)
	e := NewEngine(nil)

	rec := boxRecord()
	rec.Body = &ast.StructDecl{
		Name: "Box",
		Members: []ast.Decl{
			&ast.FunctionDecl{Name: "get", ReturnType: &ast.TypeSpec{Name: "T"}, Body: &ast.Block{}},
		},
	}
	e.Register(rec)

	if _, ok := e.MaterializeMember("Box", "get"); ok {
		t.Fatalf("member must not be materialized before instantiation")
	}
	if _, _, err := e.Instantiate("Box", []types.TemplateArgument{intArg()}, reg, sub); err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	member, ok := e.MaterializeMember("Box", "get")
	if !ok {
		t.Fatalf("expected member to be materializable after instantiation")
	}
	fn := member.(*ast.FunctionDecl)
	if fn.ReturnType.Name != "int" {
		t.Fatalf("expected lazily materialized member's return type substituted to int, got %q", fn.ReturnType.Name)
	}
}
