package lexer

import "testing"

func TestTokenizeBasic(t *testing.T) {
	toks := Tokenize("int main(){ return 2+3*4; }", 0)
	lits := literalsOf(toks)
	want := []string{"int", "main", "(", ")", "{", "return", "2", "+", "3", "*", "4", ";", "}", ""}
	if len(lits) != len(want) {
		t.Fatalf("got %d tokens %v, want %d", len(lits), lits, len(want))
	}
	for i := range want {
		if lits[i] != want[i] {
			t.Fatalf("token %d = %q, want %q", i, lits[i], want[i])
		}
	}
}

func literalsOf(toks []Token) []string {
	out := make([]string, len(toks))
	for i, tok := range toks {
		out[i] = tok.Literal
	}
	return out
}

func TestTemplateRightShiftSplit(t *testing.T) {
	toks := Tokenize("A<B<C>> x;", 0)
	s := NewStream(toks)
	for s.Peek(0).Literal != ">>" {
		s.Next()
	}
	s.SplitShr()
	if s.Peek(0).Literal != ">" || s.Peek(1).Literal != ">" {
		t.Fatalf("SplitShr did not split >> into two >, got %q %q", s.Peek(0).Literal, s.Peek(1).Literal)
	}
}

func TestSaveRestore(t *testing.T) {
	toks := Tokenize("a b c", 0)
	s := NewStream(toks)
	h := s.Save()
	s.Next()
	s.Next()
	s.Restore(h)
	if s.Peek(0).Literal != "a" {
		t.Fatalf("Restore did not rewind to saved position, got %q", s.Peek(0).Literal)
	}
}

func TestMultiCharOperators(t *testing.T) {
	toks := Tokenize("a <=> b ->* c ... d", 0)
	lits := literalsOf(toks)
	wantContains := []string{"<=>", "->*", "..."}
	for _, w := range wantContains {
		found := false
		for _, l := range lits {
			if l == w {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("expected operator %q in %v", w, lits)
		}
	}
}

func TestKeywordVsIdentifier(t *testing.T) {
	toks := Tokenize("concept foo", 0)
	if toks[0].Kind != Keyword {
		t.Fatalf("'concept' should lex as Keyword, got %v", toks[0].Kind)
	}
	if toks[1].Kind != Identifier {
		t.Fatalf("'foo' should lex as Identifier, got %v", toks[1].Kind)
	}
}
