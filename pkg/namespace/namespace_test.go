package namespace

import (
	"testing"

	"github.com/cppc-project/cppc/pkg/intern"
)

func TestQualifiedName(t *testing.T) {
	strs := intern.NewTable()
	reg := NewRegistry(strs)
	outer := reg.Open(Global, strs.Intern("outer"))
	inner := reg.Open(outer, strs.Intern("inner"))

	got := reg.QualifiedName(inner, "foo")
	want := "outer::inner::foo"
	if got != want {
		t.Fatalf("QualifiedName = %q, want %q", got, want)
	}
}

func TestOpenReopensSameHandle(t *testing.T) {
	strs := intern.NewTable()
	reg := NewRegistry(strs)
	name := strs.Intern("ns")
	a := reg.Open(Global, name)
	b := reg.Open(Global, name)
	if a != b {
		t.Fatalf("reopening the same namespace produced different handles")
	}
}

func TestAnonymousNamespace(t *testing.T) {
	strs := intern.NewTable()
	reg := NewRegistry(strs)
	anon := reg.Anonymous(Global)
	got := reg.QualifiedName(anon, "x")
	want := "(anonymous namespace)::x"
	if got != want {
		t.Fatalf("QualifiedName = %q, want %q", got, want)
	}
}
