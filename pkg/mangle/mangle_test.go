package mangle

import (
	"testing"

	"github.com/cppc-project/cppc/pkg/types"
)

func TestItaniumFreeFunctionNoParams(t *testing.T) {
	sig := FunctionSig{Name: "main"}
	got := Mangle(Itanium, sig)
	want := "_Z4mainv"
	if got != want {
		t.Errorf("Mangle(Itanium) = %q, want %q", got, want)
	}
}

func TestItaniumFreeFunctionWithParams(t *testing.T) {
	sig := FunctionSig{
		Name: "add",
		Params: []ParamType{
			{Kind: types.Int},
			{Kind: types.Int},
		},
	}
	got := Mangle(Itanium, sig)
	want := "_Z3addii"
	if got != want {
		t.Errorf("Mangle(Itanium) = %q, want %q", got, want)
	}
}

func TestItaniumPointerAndConstRef(t *testing.T) {
	sig := FunctionSig{
		Name: "f",
		Params: []ParamType{
			{Kind: types.Int, PointerDepth: 1, PtrCV: []types.CVQual{types.CVConst}},
			{Kind: types.Double, Ref: types.LValueRef, CV: types.CVConst},
		},
	}
	got := Mangle(Itanium, sig)
	want := "_Z1fPKiRKd"
	if got != want {
		t.Errorf("Mangle(Itanium) = %q, want %q", got, want)
	}
}

func TestItaniumMemberFunction(t *testing.T) {
	sig := FunctionSig{
		ClassName: "Box",
		Name:      "get",
		Return:    ParamType{Kind: types.Int},
	}
	got := Mangle(Itanium, sig)
	want := "_ZN3Box3getEv"
	if got != want {
		t.Errorf("Mangle(Itanium) = %q, want %q", got, want)
	}
}

func TestItaniumStructParam(t *testing.T) {
	sig := FunctionSig{
		Name:   "take",
		Params: []ParamType{{Kind: types.Struct, Name: "Point"}},
	}
	got := Mangle(Itanium, sig)
	want := "_Z4take5Point"
	if got != want {
		t.Errorf("Mangle(Itanium) = %q, want %q", got, want)
	}
}

func TestTypeinfoAndVtableSymbols(t *testing.T) {
	if got := TypeinfoSymbol("Widget"); got != "_ZTI6Widget" {
		t.Errorf("TypeinfoSymbol = %q", got)
	}
	if got := VtableSymbol("Widget"); got != "_ZTV6Widget" {
		t.Errorf("VtableSymbol = %q", got)
	}
}

func TestMSVCFreeFunction(t *testing.T) {
	sig := FunctionSig{
		Name:   "add",
		Return: ParamType{Kind: types.Int},
		Params: []ParamType{{Kind: types.Int}, {Kind: types.Int}},
	}
	got := Mangle(MSVC, sig)
	want := "?add@@YAHHH@Z"
	if got != want {
		t.Errorf("Mangle(MSVC) = %q, want %q", got, want)
	}
}

func TestMSVCMemberFunctionConst(t *testing.T) {
	sig := FunctionSig{
		ClassName: "Box",
		Name:      "get",
		IsConst:   true,
		Return:    ParamType{Kind: types.Int},
	}
	got := Mangle(MSVC, sig)
	want := "?get@Box@@QEBAHXZ"
	if got != want {
		t.Errorf("Mangle(MSVC) = %q, want %q", got, want)
	}
}

func TestMSVCDistinctSignaturesProduceDistinctNames(t *testing.T) {
	a := Mangle(MSVC, FunctionSig{Name: "f", Params: []ParamType{{Kind: types.Int}}})
	b := Mangle(MSVC, FunctionSig{Name: "f", Params: []ParamType{{Kind: types.Double}}})
	if a == b {
		t.Error("overloads with different parameter types must mangle differently")
	}
}

func TestStringLiteralSymbolNarrowAndWide(t *testing.T) {
	narrowSym, narrowData, err := StringLiteralSymbol(0, "hi", false)
	if err != nil {
		t.Fatalf("narrow: %v", err)
	}
	if string(narrowData) != "hi\x00" {
		t.Errorf("narrow data = %q", narrowData)
	}
	if narrowSym == "" {
		t.Error("expected a non-empty symbol")
	}

	wideSym, wideData, err := StringLiteralSymbol(1, "hi", true)
	if err != nil {
		t.Fatalf("wide: %v", err)
	}
	wantWide := []byte{'h', 0, 'i', 0, 0, 0}
	if string(wideData) != string(wantWide) {
		t.Errorf("wide data = %v, want %v", wideData, wantWide)
	}
	if wideSym == narrowSym {
		t.Error("narrow and wide literal symbols should differ")
	}
}
