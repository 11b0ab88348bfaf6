package intern

import "testing"

func TestInternIdempotent(t *testing.T) {
	tbl := NewTable()
	a := tbl.Intern("foo")
	b := tbl.Intern("foo")
	if a != b {
		t.Fatalf("interning the same bytes twice gave different handles: %v != %v", a, b)
	}
	if tbl.View(a) != "foo" {
		t.Fatalf("View(%v) = %q, want foo", a, tbl.View(a))
	}
}

func TestInternDistinct(t *testing.T) {
	tbl := NewTable()
	a := tbl.Intern("foo")
	b := tbl.Intern("bar")
	if a == b {
		t.Fatalf("distinct strings got the same handle")
	}
}

func TestZeroHandleIsEmptyString(t *testing.T) {
	tbl := NewTable()
	var z Handle
	if tbl.View(z) != "" {
		t.Fatalf("zero handle should view as empty string, got %q", tbl.View(z))
	}
}

func TestBuilderPreviewDoesNotCommit(t *testing.T) {
	tbl := NewTable()
	before := tbl.Len()
	var b Builder
	b.WriteString("abc")
	if b.Preview() != "abc" {
		t.Fatalf("Preview() = %q, want abc", b.Preview())
	}
	if tbl.Len() != before {
		t.Fatalf("Preview must not intern; table grew from %d to %d", before, tbl.Len())
	}
	h := b.Commit(tbl)
	if tbl.View(h) != "abc" {
		t.Fatalf("Commit produced wrong handle")
	}
}
